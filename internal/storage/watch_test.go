package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kalviumcommunity/FocusRoom/internal"
)

func TestPollWatchEmitsOnChange(t *testing.T) {
	var mu sync.Mutex
	val := []internal.Task{{ID: "a"}}
	fetch := func(ctx context.Context) ([]internal.Task, error) {
		mu.Lock()
		defer mu.Unlock()
		return append([]internal.Task(nil), val...), nil
	}

	ch, cancel, err := pollWatch(context.Background(), 5*time.Millisecond, internal.NopLogger{}, fetch)
	require.NoError(t, err)
	defer cancel()

	require.Len(t, <-ch, 1)

	mu.Lock()
	val = append(val, internal.Task{ID: "b"})
	mu.Unlock()

	select {
	case got := <-ch:
		require.Len(t, got, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("change never delivered")
	}
}

// A subscriber that stalls long enough to fill the buffer must still
// end up seeing the latest state once it drains, not stay one change
// behind until something else happens.
func TestPollWatchRedeliversAfterSlowConsumer(t *testing.T) {
	var mu sync.Mutex
	size := 1
	fetch := func(ctx context.Context) ([]internal.Task, error) {
		mu.Lock()
		defer mu.Unlock()
		return make([]internal.Task, size), nil
	}

	ch, cancel, err := pollWatch(context.Background(), 5*time.Millisecond, internal.NopLogger{}, fetch)
	require.NoError(t, err)
	defer cancel()

	// Stall while the state changes more times than the channel buffers.
	for i := 2; i <= 10; i++ {
		mu.Lock()
		size = i
		mu.Unlock()
		time.Sleep(15 * time.Millisecond)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-ch:
			if len(got) == 10 {
				return
			}
		case <-deadline:
			t.Fatal("latest state never delivered")
		}
	}
}
