package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kalviumcommunity/FocusRoom/internal"
	"github.com/kalviumcommunity/FocusRoom/internal/storage"
)

// fakeClock drives AfterFunc callbacks deterministically. Advance fires
// due timers in order, releasing the clock lock around each callback so
// callbacks may schedule new timers.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	nextID int
	timers map[int]*scheduledCall
}

type scheduledCall struct {
	at time.Time
	f  func()
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start, timers: make(map[int]*scheduledCall)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.timers[id] = &scheduledCall{at: c.now.Add(d), f: f}
	return &fakeTimer{clock: c, id: id}
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	end := c.now.Add(d)
	for {
		bestID := -1
		var best *scheduledCall
		for id, s := range c.timers {
			if s.at.After(end) {
				continue
			}
			if best == nil || s.at.Before(best.at) || (s.at.Equal(best.at) && id < bestID) {
				best, bestID = s, id
			}
		}
		if best == nil {
			break
		}
		if best.at.After(c.now) {
			c.now = best.at
		}
		delete(c.timers, bestID)
		f := best.f
		c.mu.Unlock()
		f()
		c.mu.Lock()
	}
	c.now = end
	c.mu.Unlock()
}

type fakeTimer struct {
	clock *fakeClock
	id    int
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	_, ok := t.clock.timers[t.id]
	delete(t.clock.timers, t.id)
	return ok
}

var testStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *fakeClock, *storage.FileStorage) {
	t.Helper()
	store, err := storage.NewFileStorage("", internal.NopLogger{})
	require.NoError(t, err)

	err = store.CreateProfile(context.Background(), &internal.UserProfile{
		ID:     "u1",
		Name:   "Demo User",
		Status: internal.UserIdle,
	})
	require.NoError(t, err)

	clock := newFakeClock(testStart)
	eng := NewWithClock("u1", store, store, internal.NopLogger{}, clock, DefaultGrace)
	t.Cleanup(eng.Close)
	return eng, clock, store
}

func profile(t *testing.T, store *storage.FileStorage) *internal.UserProfile {
	t.Helper()
	p, err := store.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	return p
}

func TestStartWorkSession(t *testing.T) {
	eng, _, store := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.Start(ctx))

	snap := eng.Snapshot()
	require.Equal(t, StateActive, snap.State)
	require.Equal(t, internal.SessionWork, snap.Type)
	require.Equal(t, 1500, snap.Remaining)
	require.NotNil(t, snap.Session)

	p := profile(t, store)
	require.Equal(t, internal.UserActive, p.Status)
	require.Equal(t, snap.Session.ID, p.CurrentSessionID)

	require.ErrorIs(t, eng.Start(ctx), ErrSessionRunning)
}

func TestTransitionGuards(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	require.ErrorIs(t, eng.Pause(ctx), ErrNoActiveSession)
	require.ErrorIs(t, eng.Resume(ctx), ErrNotPaused)
	require.ErrorIs(t, eng.Stop(ctx), ErrNoSession)

	require.NoError(t, eng.Start(ctx))
	require.ErrorIs(t, eng.Resume(ctx), ErrNotPaused)
	require.NoError(t, eng.Pause(ctx))
	require.ErrorIs(t, eng.Pause(ctx), ErrNoActiveSession)
}

func TestWorkCompletionCreditsAndAutoBreak(t *testing.T) {
	eng, clock, store := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.Start(ctx))
	sessID := eng.Snapshot().Session.ID

	clock.Advance(25 * time.Minute)

	snap := eng.Snapshot()
	require.Equal(t, StateNoSession, snap.State)
	require.Equal(t, internal.SessionBreak, snap.Type)
	require.Equal(t, 300, snap.Remaining)

	p := profile(t, store)
	require.Equal(t, 25, p.TotalMinutesToday)
	require.Equal(t, 1, p.TotalSessionsToday)
	require.Equal(t, internal.UserBreak, p.Status)
	require.Empty(t, p.CurrentSessionID)

	sess, err := store.GetSession(ctx, sessID)
	require.NoError(t, err)
	require.Equal(t, internal.SessionCompleted, sess.Status)
	require.NotNil(t, sess.CompletedAt)

	// The break starts by itself after the grace delay.
	clock.Advance(DefaultGrace)
	snap = eng.Snapshot()
	require.Equal(t, StateActive, snap.State)
	require.Equal(t, internal.SessionBreak, snap.Type)
	require.Equal(t, 300, snap.Remaining)
}

func TestBreakCompletionWaitsForUser(t *testing.T) {
	eng, clock, store := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.Start(ctx))
	clock.Advance(25*time.Minute + DefaultGrace)
	require.Equal(t, StateActive, eng.Snapshot().State)

	clock.Advance(5 * time.Minute)

	snap := eng.Snapshot()
	require.Equal(t, StateNoSession, snap.State)
	require.Equal(t, internal.SessionWork, snap.Type)
	require.Equal(t, 1500, snap.Remaining)

	p := profile(t, store)
	require.Equal(t, internal.UserIdle, p.Status)
	require.Equal(t, 30, p.TotalMinutesToday)
	require.Equal(t, 1, p.TotalSessionsToday)

	// No auto-start back into work.
	clock.Advance(time.Minute)
	require.Equal(t, StateNoSession, eng.Snapshot().State)
}

func TestPauseResumeAccounting(t *testing.T) {
	eng, clock, store := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.Start(ctx))
	clock.Advance(300 * time.Second)
	require.NoError(t, eng.Pause(ctx))
	require.Equal(t, 5, profile(t, store).TotalMinutesToday)

	clock.Advance(600 * time.Second)
	require.NoError(t, eng.Resume(ctx))

	clock.Advance(100 * time.Second)
	require.NoError(t, eng.Stop(ctx))

	p := profile(t, store)
	require.Equal(t, 6, p.TotalMinutesToday)
	require.Equal(t, 0, p.TotalSessionsToday)
	require.Equal(t, internal.UserIdle, p.Status)
	require.Empty(t, p.CurrentSessionID)
}

func TestPausedCountdownFrozen(t *testing.T) {
	eng, clock, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.Start(ctx))
	clock.Advance(100 * time.Second)
	require.NoError(t, eng.Pause(ctx))
	require.Equal(t, 1400, eng.Snapshot().Remaining)

	clock.Advance(time.Hour)
	require.Equal(t, 1400, eng.Snapshot().Remaining)
	require.Equal(t, StatePaused, eng.Snapshot().State)
}

func TestStopWhilePausedCreditsNothingExtra(t *testing.T) {
	eng, clock, store := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.Start(ctx))
	clock.Advance(90 * time.Second)
	require.NoError(t, eng.Pause(ctx))
	require.Equal(t, 1, profile(t, store).TotalMinutesToday)

	clock.Advance(30 * time.Minute)
	require.NoError(t, eng.Stop(ctx))
	require.Equal(t, 1, profile(t, store).TotalMinutesToday)
}

func TestStopKeepsPendingType(t *testing.T) {
	eng, clock, _ := newTestEngine(t)
	ctx := context.Background()

	// Reach the auto-started break, then stop it: the next start should
	// arm a break again, not a work interval.
	require.NoError(t, eng.Start(ctx))
	clock.Advance(25*time.Minute + DefaultGrace)
	require.NoError(t, eng.Stop(ctx))

	snap := eng.Snapshot()
	require.Equal(t, StateNoSession, snap.State)
	require.Equal(t, internal.SessionBreak, snap.Type)

	require.NoError(t, eng.ResetToWork(ctx))
	require.Equal(t, internal.SessionWork, eng.Snapshot().Type)
	require.Equal(t, 1500, eng.Snapshot().Remaining)
}

func TestRestoreActiveSession(t *testing.T) {
	eng, clock, store := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.Start(ctx))
	sessID := eng.Snapshot().Session.ID
	clock.Advance(600 * time.Second)
	eng.Close()

	restored := NewWithClock("u1", store, store, internal.NopLogger{}, clock, DefaultGrace)
	defer restored.Close()
	require.NoError(t, restored.Restore(ctx))

	snap := restored.Snapshot()
	require.Equal(t, StateActive, snap.State)
	require.Equal(t, 900, snap.Remaining)
	require.Equal(t, sessID, snap.Session.ID)

	// Restoring again lands in the same state.
	require.NoError(t, restored.Restore(ctx))
	require.Equal(t, 900, restored.Snapshot().Remaining)
}

func TestRestoreExpiredSessionCompletes(t *testing.T) {
	eng, clock, store := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.Start(ctx))
	eng.Close()
	clock.Advance(40 * time.Minute)

	restored := NewWithClock("u1", store, store, internal.NopLogger{}, clock, DefaultGrace)
	defer restored.Close()
	require.NoError(t, restored.Restore(ctx))

	// Credited as if the interval had completed on schedule.
	p := profile(t, store)
	require.Equal(t, 25, p.TotalMinutesToday)
	require.Equal(t, 1, p.TotalSessionsToday)
	require.Empty(t, p.CurrentSessionID)

	snap := restored.Snapshot()
	require.Equal(t, StateNoSession, snap.State)
	require.Equal(t, internal.SessionBreak, snap.Type)

	clock.Advance(DefaultGrace)
	require.Equal(t, StateActive, restored.Snapshot().State)
}

func TestRestorePausedSession(t *testing.T) {
	eng, clock, store := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.Start(ctx))
	clock.Advance(120 * time.Second)
	require.NoError(t, eng.Pause(ctx))
	eng.Close()
	clock.Advance(2 * time.Hour)

	restored := NewWithClock("u1", store, store, internal.NopLogger{}, clock, DefaultGrace)
	defer restored.Close()
	require.NoError(t, restored.Restore(ctx))

	snap := restored.Snapshot()
	require.Equal(t, StatePaused, snap.State)
	require.Equal(t, 1380, snap.Remaining)
}

func TestRestoreStopsStraySession(t *testing.T) {
	eng, clock, store := newTestEngine(t)
	ctx := context.Background()

	// A non-terminal session exists but the profile does not point at it.
	now := clock.Now()
	strayID, err := store.CreateSession(ctx, &internal.Session{
		UserID:          "u1",
		Type:            internal.SessionWork,
		Status:          internal.SessionActive,
		StartTime:       now,
		EndTime:         now.Add(WorkDuration),
		DurationSeconds: 1500,
		CreatedAt:       now,
	})
	require.NoError(t, err)

	require.NoError(t, eng.Restore(ctx))

	sess, err := store.GetSession(ctx, strayID)
	require.NoError(t, err)
	require.Equal(t, internal.SessionStopped, sess.Status)

	snap := eng.Snapshot()
	require.Equal(t, StateNoSession, snap.State)
	require.Equal(t, internal.SessionWork, snap.Type)
}

func TestRestoreDanglingPointer(t *testing.T) {
	eng, _, store := newTestEngine(t)
	ctx := context.Background()

	missing := "no-such-session"
	require.NoError(t, store.PatchProfile(ctx, "u1", storage.ProfilePatch{CurrentSessionID: &missing}))

	require.NoError(t, eng.Restore(ctx))

	p := profile(t, store)
	require.Empty(t, p.CurrentSessionID)
	require.Equal(t, internal.UserIdle, p.Status)
	require.Equal(t, StateNoSession, eng.Snapshot().State)
}

func TestRestoreUnknownProfile(t *testing.T) {
	store, err := storage.NewFileStorage("", internal.NopLogger{})
	require.NoError(t, err)

	clock := newFakeClock(testStart)
	eng := NewWithClock("ghost", store, store, internal.NopLogger{}, clock, DefaultGrace)
	defer eng.Close()

	require.NoError(t, eng.Restore(context.Background()))
	require.Equal(t, StateNoSession, eng.Snapshot().State)
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	eng, clock, _ := newTestEngine(t)
	ctx := context.Background()

	updates, cancel := eng.Subscribe()
	defer cancel()

	initial := <-updates
	require.Equal(t, StateNoSession, initial.State)

	require.NoError(t, eng.Start(ctx))
	started := <-updates
	require.Equal(t, StateActive, started.State)
	require.Equal(t, 1500, started.Remaining)

	clock.Advance(time.Second)
	ticked := <-updates
	require.Equal(t, 1499, ticked.Remaining)
}

func TestManagerRestoresOncePerUser(t *testing.T) {
	store, err := storage.NewFileStorage("", internal.NopLogger{})
	require.NoError(t, err)
	require.NoError(t, store.CreateProfile(context.Background(), &internal.UserProfile{ID: "u1", Status: internal.UserIdle}))

	m := NewManager(&storage.Repositories{Profiles: store, Sessions: store, Teams: store, Tasks: store}, internal.NopLogger{})
	defer m.Close()

	a, err := m.ForUser(context.Background(), "u1")
	require.NoError(t, err)
	b, err := m.ForUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Same(t, a, b)

	other, err := m.ForUser(context.Background(), "u2")
	require.NoError(t, err)
	require.NotSame(t, a, other)
}
