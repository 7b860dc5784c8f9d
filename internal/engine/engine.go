package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kalviumcommunity/FocusRoom/internal"
	"github.com/kalviumcommunity/FocusRoom/internal/storage"
)

const (
	// WorkDuration and BreakDuration are the fixed interval lengths.
	WorkDuration  = 25 * time.Minute
	BreakDuration = 5 * time.Minute

	// DefaultGrace is the delay between a completed work interval and
	// the auto-started break. Breaks are automatic, resuming work is
	// not: after a break the engine waits for an explicit start.
	DefaultGrace = 2 * time.Second

	tickInterval = time.Second
)

var (
	ErrSessionRunning  = errors.New("a session is already in progress")
	ErrNoActiveSession = errors.New("no active session")
	ErrNotPaused       = errors.New("session is not paused")
	ErrNoSession       = errors.New("no session in progress")
)

// State is the engine's in-memory timer state. Suspension is encoded as
// the absence of a scheduled tick timer, not a boolean guard.
type State string

const (
	StateNoSession State = "no_session"
	StateActive    State = "active"
	StatePaused    State = "paused"
)

// Snapshot is what the presentation layer sees: the timer state, the
// interval type the timer is (or would be) counting, and seconds left.
type Snapshot struct {
	State     State                `json:"state"`
	Type      internal.SessionType `json:"type"`
	Remaining int                  `json:"remaining_seconds"`
	Session   *internal.Session    `json:"session,omitempty"`
}

func intervalDuration(t internal.SessionType) time.Duration {
	if t == internal.SessionBreak {
		return BreakDuration
	}
	return WorkDuration
}

// Engine owns the focus/break countdown for one user. All persistence
// happens at transition boundaries (start/pause/resume/stop/complete);
// the 1-second tick only decrements the local counter. Store failures
// are logged and the operation abandoned, with no retry and no
// optimistic rollback.
type Engine struct {
	userID   string
	profiles storage.ProfileRepository
	sessions storage.SessionRepository
	logger   internal.Logger
	clock    Clock
	grace    time.Duration

	mu         sync.Mutex
	state      State
	current    *internal.Session
	remaining  int
	nextType   internal.SessionType
	tickTimer  Timer
	graceTimer Timer
	closed     bool

	listeners  map[int]chan Snapshot
	nextListen int
}

func New(userID string, profiles storage.ProfileRepository, sessions storage.SessionRepository, logger internal.Logger) *Engine {
	return NewWithClock(userID, profiles, sessions, logger, RealClock(), DefaultGrace)
}

func NewWithClock(userID string, profiles storage.ProfileRepository, sessions storage.SessionRepository, logger internal.Logger, clock Clock, grace time.Duration) *Engine {
	return &Engine{
		userID:    userID,
		profiles:  profiles,
		sessions:  sessions,
		logger:    logger,
		clock:     clock,
		grace:     grace,
		state:     StateNoSession,
		nextType:  internal.SessionWork,
		remaining: int(WorkDuration / time.Second),
		listeners: make(map[int]chan Snapshot),
	}
}

// Start begins a new interval of the pending type (work by default,
// break after a completed work interval).
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateNoSession {
		return ErrSessionRunning
	}
	return e.startLocked(ctx, e.nextType)
}

func (e *Engine) startLocked(ctx context.Context, t internal.SessionType) error {
	now := e.clock.Now()
	d := intervalDuration(t)
	sess := &internal.Session{
		UserID:          e.userID,
		Type:            t,
		Status:          internal.SessionActive,
		StartTime:       now,
		EndTime:         now.Add(d),
		DurationSeconds: int(d / time.Second),
		CreatedAt:       now,
	}
	id, err := e.sessions.CreateSession(ctx, sess)
	if err != nil {
		e.logger.Errorf("engine: failed to create session for user %s: %v", e.userID, err)
		return err
	}
	sess.ID = id

	status := internal.UserStatusFor(t, internal.SessionActive)
	if err := e.profiles.PatchProfile(ctx, e.userID, storage.ProfilePatch{
		Status:           &status,
		CurrentSessionID: &id,
	}); err != nil {
		// Session record exists; the profile pointer will be repaired
		// at the next transition or restoration pass.
		e.logger.Errorf("engine: failed to update profile for user %s: %v", e.userID, err)
	}

	e.current = sess
	e.state = StateActive
	e.remaining = sess.DurationSeconds
	e.scheduleTickLocked()
	e.notifyLocked()
	return nil
}

// Pause suspends the countdown and flushes the elapsed minutes of the
// current run cycle into the profile's daily counter.
func (e *Engine) Pause(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateActive {
		return ErrNoActiveSession
	}
	now := e.clock.Now()
	mins := elapsedMinutes(e.current, now)

	paused := internal.SessionPaused
	if err := e.sessions.PatchSession(ctx, e.current.ID, storage.SessionPatch{
		Status:   &paused,
		PausedAt: &now,
	}); err != nil {
		e.logger.Errorf("engine: failed to pause session %s: %v", e.current.ID, err)
		return err
	}
	status := internal.UserPaused
	if err := e.profiles.PatchProfile(ctx, e.userID, storage.ProfilePatch{
		Status:     &status,
		AddMinutes: mins,
	}); err != nil {
		e.logger.Errorf("engine: failed to update profile for user %s: %v", e.userID, err)
	}

	e.cancelTickLocked()
	e.current.Status = paused
	e.current.PausedAt = &now
	e.state = StatePaused
	e.notifyLocked()
	return nil
}

// Resume restarts the countdown from where it was paused. The recorded
// ResumedAt anchors the next elapsed-minutes flush so pause/resume
// cycles are never double-counted.
func (e *Engine) Resume(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePaused {
		return ErrNotPaused
	}
	now := e.clock.Now()

	active := internal.SessionActive
	if err := e.sessions.PatchSession(ctx, e.current.ID, storage.SessionPatch{
		Status:    &active,
		ResumedAt: &now,
	}); err != nil {
		e.logger.Errorf("engine: failed to resume session %s: %v", e.current.ID, err)
		return err
	}
	status := internal.UserStatusFor(e.current.Type, internal.SessionActive)
	if err := e.profiles.PatchProfile(ctx, e.userID, storage.ProfilePatch{Status: &status}); err != nil {
		e.logger.Errorf("engine: failed to update profile for user %s: %v", e.userID, err)
	}

	e.current.Status = active
	e.current.ResumedAt = &now
	e.state = StateActive
	e.scheduleTickLocked()
	e.notifyLocked()
	return nil
}

// Stop cancels the current interval. A paused session credits nothing
// beyond what was already flushed at the pause boundary.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateNoSession {
		return ErrNoSession
	}
	return e.stopLocked(ctx)
}

func (e *Engine) stopLocked(ctx context.Context) error {
	now := e.clock.Now()
	mins := 0
	if e.state == StateActive {
		mins = elapsedMinutes(e.current, now)
	}

	stopped := internal.SessionStopped
	if err := e.sessions.PatchSession(ctx, e.current.ID, storage.SessionPatch{
		Status:        &stopped,
		ActualEndTime: &now,
	}); err != nil {
		e.logger.Errorf("engine: failed to stop session %s: %v", e.current.ID, err)
		return err
	}
	status := internal.UserIdle
	if err := e.profiles.PatchProfile(ctx, e.userID, storage.ProfilePatch{
		Status:       &status,
		ClearSession: true,
		AddMinutes:   mins,
	}); err != nil {
		e.logger.Errorf("engine: failed to update profile for user %s: %v", e.userID, err)
	}

	e.cancelTickLocked()
	e.nextType = e.current.Type
	e.current = nil
	e.state = StateNoSession
	e.remaining = int(intervalDuration(e.nextType) / time.Second)
	e.notifyLocked()
	return nil
}

// ResetToWork stops whatever is running and arms a fresh work interval.
func (e *Engine) ResetToWork(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateNoSession {
		if err := e.stopLocked(ctx); err != nil {
			return err
		}
	}
	e.cancelGraceLocked()
	e.freshLocked(internal.SessionWork)
	return nil
}

func (e *Engine) scheduleTickLocked() {
	e.cancelTickLocked()
	e.tickTimer = e.clock.AfterFunc(tickInterval, e.onTick)
}

func (e *Engine) cancelTickLocked() {
	if e.tickTimer != nil {
		e.tickTimer.Stop()
		e.tickTimer = nil
	}
}

func (e *Engine) cancelGraceLocked() {
	if e.graceTimer != nil {
		e.graceTimer.Stop()
		e.graceTimer = nil
	}
}

func (e *Engine) onTick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickLocked(context.Background())
}

// tickLocked advances the countdown by one second. It never writes to
// the store except through completion at zero.
func (e *Engine) tickLocked(ctx context.Context) {
	if e.state != StateActive || e.closed {
		return
	}
	e.remaining--
	if e.remaining > 0 {
		e.scheduleTickLocked()
		e.notifyLocked()
		return
	}
	e.remaining = 0
	e.completeLocked(ctx, e.clock.Now())
}

// completeLocked runs the completion side effects. at is the effective
// completion instant used for elapsed-minutes accounting; restoration
// of an interval that expired offline passes the scheduled EndTime so
// the credit matches a live run.
func (e *Engine) completeLocked(ctx context.Context, at time.Time) {
	sess := e.current
	now := e.clock.Now()

	completed := internal.SessionCompleted
	if err := e.sessions.PatchSession(ctx, sess.ID, storage.SessionPatch{
		Status:        &completed,
		CompletedAt:   &now,
		ActualEndTime: &now,
	}); err != nil {
		e.logger.Errorf("engine: failed to complete session %s: %v", sess.ID, err)
	}

	patch := storage.ProfilePatch{
		ClearSession: true,
		AddMinutes:   elapsedMinutes(sess, at),
	}
	var next internal.SessionType
	var status internal.UserStatus
	if sess.Type == internal.SessionWork {
		patch.AddSessions = 1
		status = internal.UserBreak
		next = internal.SessionBreak
	} else {
		status = internal.UserIdle
		next = internal.SessionWork
	}
	patch.Status = &status
	if err := e.profiles.PatchProfile(ctx, e.userID, patch); err != nil {
		e.logger.Errorf("engine: failed to update profile for user %s: %v", e.userID, err)
	}

	e.cancelTickLocked()
	e.current = nil
	e.state = StateNoSession
	e.nextType = next
	e.remaining = int(intervalDuration(next) / time.Second)
	if next == internal.SessionBreak {
		e.cancelGraceLocked()
		e.graceTimer = e.clock.AfterFunc(e.grace, e.autoAdvance)
	}
	e.notifyLocked()
}

// autoAdvance starts the break interval after the grace period, unless
// the user acted in the meantime.
func (e *Engine) autoAdvance() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.state != StateNoSession || e.nextType != internal.SessionBreak {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.startLocked(ctx, internal.SessionBreak); err != nil {
		e.logger.Errorf("engine: failed to auto-start break for user %s: %v", e.userID, err)
	}
}

// elapsedMinutes is the whole minutes since the last resume instant
// (ResumedAt if present, else StartTime). Each pause/resume cycle is
// flushed at its boundary, so a fresh ResumedAt anchors the next cycle
// and nothing is counted twice.
func elapsedMinutes(sess *internal.Session, now time.Time) int {
	anchor := sess.StartTime
	if sess.ResumedAt != nil {
		anchor = *sess.ResumedAt
	}
	elapsed := now.Sub(anchor)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / time.Minute)
}

// Restore rebuilds in-memory state from the store, e.g. after a process
// restart. The profile's CurrentSessionID pointer is authoritative; a
// latest-session query is used only to reconcile stray records when the
// pointer is empty.
func (e *Engine) Restore(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelTickLocked()
	e.cancelGraceLocked()

	prof, err := e.profiles.GetProfile(ctx, e.userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			e.freshLocked(internal.SessionWork)
			return nil
		}
		e.logger.Errorf("engine: failed to read profile for user %s: %v", e.userID, err)
		return err
	}

	if prof.CurrentSessionID == "" {
		e.reconcileStrayLocked(ctx)
		e.freshLocked(internal.SessionWork)
		return nil
	}

	sess, err := e.sessions.GetSession(ctx, prof.CurrentSessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Pointer to a vanished record: treat as no session.
			e.clearProfileSessionLocked(ctx)
			e.freshLocked(internal.SessionWork)
			return nil
		}
		e.logger.Errorf("engine: failed to read session %s: %v", prof.CurrentSessionID, err)
		return err
	}

	now := e.clock.Now()
	switch sess.Status {
	case internal.SessionActive:
		remaining := int(sess.EndTime.Sub(now) / time.Second)
		if remaining > 0 {
			e.current = sess
			e.state = StateActive
			e.remaining = remaining
			e.scheduleTickLocked()
			e.notifyLocked()
			return nil
		}
		// Expired while offline: run the completion side effects as if
		// the tick had reached zero at the scheduled end.
		e.current = sess
		e.state = StateActive
		e.remaining = 0
		e.completeLocked(ctx, sess.EndTime)
		return nil
	case internal.SessionPaused:
		pausedAt := now
		if sess.PausedAt != nil {
			pausedAt = *sess.PausedAt
		}
		remaining := int(sess.EndTime.Sub(pausedAt) / time.Second)
		if remaining < 0 {
			remaining = 0
		}
		e.current = sess
		e.state = StatePaused
		e.remaining = remaining
		e.notifyLocked()
		return nil
	default:
		// Terminal session left behind the pointer.
		e.clearProfileSessionLocked(ctx)
		e.freshLocked(internal.SessionWork)
		return nil
	}
}

func (e *Engine) reconcileStrayLocked(ctx context.Context) {
	stray, err := e.sessions.LatestNonTerminal(ctx, e.userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			e.logger.Errorf("engine: stray-session query failed for user %s: %v", e.userID, err)
		}
		return
	}
	now := e.clock.Now()
	stopped := internal.SessionStopped
	if err := e.sessions.PatchSession(ctx, stray.ID, storage.SessionPatch{
		Status:        &stopped,
		ActualEndTime: &now,
	}); err != nil {
		e.logger.Errorf("engine: failed to reconcile stray session %s: %v", stray.ID, err)
		return
	}
	e.logger.Warnf("engine: stopped stray session %s for user %s", stray.ID, e.userID)
}

func (e *Engine) clearProfileSessionLocked(ctx context.Context) {
	idle := internal.UserIdle
	if err := e.profiles.PatchProfile(ctx, e.userID, storage.ProfilePatch{
		Status:       &idle,
		ClearSession: true,
	}); err != nil {
		e.logger.Errorf("engine: failed to clear session pointer for user %s: %v", e.userID, err)
	}
}

func (e *Engine) freshLocked(t internal.SessionType) {
	e.current = nil
	e.state = StateNoSession
	e.nextType = t
	e.remaining = int(intervalDuration(t) / time.Second)
	e.notifyLocked()
}

// Snapshot returns the current timer state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:     e.state,
		Type:      e.nextType,
		Remaining: e.remaining,
	}
	if e.current != nil {
		cp := *e.current
		snap.Type = cp.Type
		snap.Session = &cp
	}
	return snap
}

// Subscribe registers a snapshot listener. Slow consumers miss updates
// rather than blocking the engine.
func (e *Engine) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	e.mu.Lock()
	id := e.nextListen
	e.nextListen++
	e.listeners[id] = ch
	ch <- e.snapshotLocked()
	e.mu.Unlock()

	cancel := func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
	return ch, cancel
}

func (e *Engine) notifyLocked() {
	if len(e.listeners) == 0 {
		return
	}
	snap := e.snapshotLocked()
	for _, ch := range e.listeners {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Close cancels all local timers. No in-flight store write is awaited
// or cancelled; state already persisted at the last transition boundary
// is what restoration will see.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.cancelTickLocked()
	e.cancelGraceLocked()
}
