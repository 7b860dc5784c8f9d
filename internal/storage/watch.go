package storage

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/kalviumcommunity/FocusRoom/internal"
)

// pollWatch emulates a live subscription for backends without native
// change streams: it emits the current result immediately, then polls
// at the given interval and emits only when the result changed.
func pollWatch[T any](ctx context.Context, interval time.Duration, logger internal.Logger, fetch func(context.Context) ([]T, error)) (<-chan []T, func(), error) {
	initial, err := fetch(ctx)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan []T, 4)
	ch <- initial
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		last := initial
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				cur, err := fetch(ctx)
				if err != nil {
					logger.Errorf("storage: watch poll failed: %v", err)
					continue
				}
				if reflect.DeepEqual(cur, last) {
					continue
				}
				select {
				case ch <- cur:
					last = cur
				default:
					// Slow consumer: keep last unchanged so the state
					// is re-sent on the next poll once there is room.
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() { close(done) })
	}
	return ch, cancel, nil
}
