package storage

import (
	"context"
	"errors"
	"time"

	"github.com/kalviumcommunity/FocusRoom/internal"
)

// ErrNotFound is returned by point reads and patches when the record
// does not exist.
var ErrNotFound = errors.New("record not found")

// ProfilePatch is a partial update of a UserProfile. Nil pointers leave
// the field untouched. AddMinutes/AddSessions are applied as increments
// within the same record write.
type ProfilePatch struct {
	Status           *internal.UserStatus
	CurrentSessionID *string
	ClearSession     bool
	TeamID           *string
	ClearTeam        bool
	AddMinutes       int
	AddSessions      int
}

// SessionPatch is a partial update of a Session.
type SessionPatch struct {
	Status        *internal.SessionStatus
	PausedAt      *time.Time
	ResumedAt     *time.Time
	CompletedAt   *time.Time
	ActualEndTime *time.Time
}

type ProfileRepository interface {
	GetProfile(ctx context.Context, id string) (*internal.UserProfile, error)
	CreateProfile(ctx context.Context, p *internal.UserProfile) error
	PatchProfile(ctx context.Context, id string, patch ProfilePatch) error
	// WatchTeam streams the member profiles of a team on every change
	// until the returned cancel func is called.
	WatchTeam(ctx context.Context, teamID string) (<-chan []internal.UserProfile, func(), error)
}

type SessionRepository interface {
	GetSession(ctx context.Context, id string) (*internal.Session, error)
	CreateSession(ctx context.Context, s *internal.Session) (string, error)
	PatchSession(ctx context.Context, id string, patch SessionPatch) error
	// LatestNonTerminal returns the most recently created session for
	// the user that is still active or paused, or ErrNotFound.
	LatestNonTerminal(ctx context.Context, userID string) (*internal.Session, error)
	// CompletedInRange lists sessions completed within [from, to).
	CompletedInRange(ctx context.Context, userID string, from, to time.Time) ([]internal.Session, error)
}

type TeamRepository interface {
	GetTeam(ctx context.Context, id string) (*internal.Team, error)
	CreateTeam(ctx context.Context, t *internal.Team) (string, error)
	SetMembers(ctx context.Context, id string, members []string) error
	FindByJoinCode(ctx context.Context, code string) (*internal.Team, error)
}

type TaskRepository interface {
	ListTasks(ctx context.Context, userID string) ([]internal.Task, error)
	CreateTask(ctx context.Context, t *internal.Task) (string, error)
	PatchTaskStatus(ctx context.Context, userID, id, status string, completedAt *time.Time) error
	// WatchTasks streams the user's task list (newest first) on every
	// change until the returned cancel func is called.
	WatchTasks(ctx context.Context, userID string) (<-chan []internal.Task, func(), error)
}

// Repositories bundles the store backends handed to services and the
// session engine.
type Repositories struct {
	Profiles ProfileRepository
	Sessions SessionRepository
	Teams    TeamRepository
	Tasks    TaskRepository
}
