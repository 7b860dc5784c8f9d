package internal

import "time"

// SessionType is the kind of interval a focus session covers.
type SessionType string

const (
	SessionWork  SessionType = "work"
	SessionBreak SessionType = "break"
)

// SessionStatus is the lifecycle state of a single focus session.
// Completed and Stopped are terminal; a session is never resurrected.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
	SessionStopped   SessionStatus = "stopped"
)

// Terminal reports whether s is a terminal session status.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionStopped
}

// UserStatus is the presence state shown to teammates. It is a distinct
// vocabulary from SessionStatus: a user on a break interval is "break",
// not "active".
type UserStatus string

const (
	UserIdle   UserStatus = "idle"
	UserActive UserStatus = "active"
	UserPaused UserStatus = "paused"
	UserBreak  UserStatus = "break"
)

// UserStatusFor maps a session's type and lifecycle status to the
// owning user's presence status.
func UserStatusFor(t SessionType, s SessionStatus) UserStatus {
	switch s {
	case SessionPaused:
		return UserPaused
	case SessionActive:
		if t == SessionBreak {
			return UserBreak
		}
		return UserActive
	default:
		return UserIdle
	}
}

// UserProfile is the per-identity record. CurrentSessionID is non-empty
// only while a non-terminal session exists for the user. The daily
// counters are reset externally at the day boundary.
type UserProfile struct {
	ID                 string     `json:"id" bson:"_id"`
	Name               string     `json:"name" bson:"name"`
	Email              string     `json:"email" bson:"email"`
	PhotoURL           string     `json:"photo_url,omitempty" bson:"photo_url,omitempty"`
	TeamID             string     `json:"team_id,omitempty" bson:"team_id,omitempty"`
	Status             UserStatus `json:"status" bson:"status"`
	CurrentSessionID   string     `json:"current_session_id,omitempty" bson:"current_session_id,omitempty"`
	TotalMinutesToday  int        `json:"total_minutes_today" bson:"total_minutes_today"`
	TotalSessionsToday int        `json:"total_sessions_today" bson:"total_sessions_today"`
	CreatedAt          time.Time  `json:"created_at" bson:"created_at"`
}

// Session is one timed work or break interval. EndTime is the
// originally scheduled window end (StartTime + planned duration); it is
// not moved by pauses. PausedAt and ResumedAt mark the most recent
// pause/resume edge only.
type Session struct {
	ID              string        `json:"id" bson:"_id"`
	UserID          string        `json:"user_id" bson:"user_id"`
	Type            SessionType   `json:"type" bson:"type"`
	Status          SessionStatus `json:"status" bson:"status"`
	StartTime       time.Time     `json:"start_time" bson:"start_time"`
	EndTime         time.Time     `json:"end_time" bson:"end_time"`
	PausedAt        *time.Time    `json:"paused_at,omitempty" bson:"paused_at,omitempty"`
	ResumedAt       *time.Time    `json:"resumed_at,omitempty" bson:"resumed_at,omitempty"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	ActualEndTime   *time.Time    `json:"actual_end_time,omitempty" bson:"actual_end_time,omitempty"`
	DurationSeconds int           `json:"duration" bson:"duration"`
	CreatedAt       time.Time     `json:"created_at" bson:"created_at"`
}

// Team is a focus room users join by an 8-character code.
type Team struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	OwnerID   string    `json:"owner_id" bson:"owner_id"`
	JoinCode  string    `json:"join_code" bson:"join_code"`
	Members   []string  `json:"members" bson:"members"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

const (
	TaskTodo       = "todo"
	TaskInProgress = "inprogress"
	TaskDone       = "done"

	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"
)

// Task is a personal to-do item shown on the dashboard.
type Task struct {
	ID          string     `json:"id" bson:"_id"`
	UserID      string     `json:"user_id" bson:"user_id"`
	Title       string     `json:"title" bson:"title"`
	Description string     `json:"description,omitempty" bson:"description,omitempty"`
	Priority    string     `json:"priority" bson:"priority"`
	Status      string     `json:"status" bson:"status"`
	Image       string     `json:"image,omitempty" bson:"image,omitempty"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}
