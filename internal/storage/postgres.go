package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kalviumcommunity/FocusRoom/internal"
)

type PostgresStorage struct {
	pool          *pgxpool.Pool
	logger        internal.Logger
	watchInterval time.Duration
}

func NewPostgresStorage(dsn string, watchInterval time.Duration, logger internal.Logger) (*PostgresStorage, error) {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Errorf("failed to connect to postgres: %v", err)
		return nil, err
	}
	s := &PostgresStorage{pool: pool, logger: logger, watchInterval: watchInterval}
	if err := s.ensureSchema(ctx); err != nil {
		logger.Errorf("failed to ensure schema: %v", err)
		return nil, err
	}
	return s, nil
}

func (p *PostgresStorage) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			photo_url TEXT NOT NULL DEFAULT '',
			team_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'idle',
			current_session_id TEXT NOT NULL DEFAULT '',
			total_minutes_today INT NOT NULL DEFAULT 0,
			total_sessions_today INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			status TEXT NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			paused_at TIMESTAMPTZ,
			resumed_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			actual_end_time TIMESTAMPTZ,
			duration INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS sessions_user_created_idx ON sessions (user_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS teams (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			join_code TEXT NOT NULL UNIQUE,
			members TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL,
			status TEXT NOT NULL,
			image TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			completed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS tasks_user_created_idx ON tasks (user_id, created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}

// --- ProfileRepository ---

const profileColumns = `id, name, email, photo_url, team_id, status, current_session_id, total_minutes_today, total_sessions_today, created_at`

func scanProfile(row pgx.Row) (*internal.UserProfile, error) {
	var u internal.UserProfile
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PhotoURL, &u.TeamID, &u.Status,
		&u.CurrentSessionID, &u.TotalMinutesToday, &u.TotalSessionsToday, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (p *PostgresStorage) GetProfile(ctx context.Context, id string) (*internal.UserProfile, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM users WHERE id = $1`, id)
	return scanProfile(row)
}

func (p *PostgresStorage) CreateProfile(ctx context.Context, u *internal.UserProfile) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO users (`+profileColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.Name, u.Email, u.PhotoURL, u.TeamID, u.Status, u.CurrentSessionID,
		u.TotalMinutesToday, u.TotalSessionsToday, u.CreatedAt)
	if err != nil {
		p.logger.Errorf("failed to insert user profile: %v", err)
		return err
	}
	return nil
}

func (p *PostgresStorage) PatchProfile(ctx context.Context, id string, patch ProfilePatch) error {
	sets := []string{}
	args := []any{}
	add := func(expr string, val ...any) {
		for _, v := range val {
			args = append(args, v)
		}
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}
	if patch.Status != nil {
		add(`status = $%d`, *patch.Status)
	}
	if patch.ClearSession {
		sets = append(sets, `current_session_id = ''`)
	} else if patch.CurrentSessionID != nil {
		add(`current_session_id = $%d`, *patch.CurrentSessionID)
	}
	if patch.ClearTeam {
		sets = append(sets, `team_id = ''`)
	} else if patch.TeamID != nil {
		add(`team_id = $%d`, *patch.TeamID)
	}
	if patch.AddMinutes != 0 {
		add(`total_minutes_today = total_minutes_today + $%d`, patch.AddMinutes)
	}
	if patch.AddSessions != 0 {
		add(`total_sessions_today = total_sessions_today + $%d`, patch.AddSessions)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		p.logger.Errorf("failed to patch user profile: %v", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStorage) WatchTeam(ctx context.Context, teamID string) (<-chan []internal.UserProfile, func(), error) {
	return pollWatch(ctx, p.watchInterval, p.logger, func(ctx context.Context) ([]internal.UserProfile, error) {
		rows, err := p.pool.Query(ctx, `SELECT `+profileColumns+` FROM users WHERE team_id = $1 ORDER BY name`, teamID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		out := []internal.UserProfile{}
		for rows.Next() {
			u, err := scanProfile(rows)
			if err != nil {
				return nil, err
			}
			out = append(out, *u)
		}
		return out, rows.Err()
	})
}

// --- SessionRepository ---

const sessionColumns = `id, user_id, type, status, start_time, end_time, paused_at, resumed_at, completed_at, actual_end_time, duration, created_at`

func scanSession(row pgx.Row) (*internal.Session, error) {
	var s internal.Session
	err := row.Scan(&s.ID, &s.UserID, &s.Type, &s.Status, &s.StartTime, &s.EndTime,
		&s.PausedAt, &s.ResumedAt, &s.CompletedAt, &s.ActualEndTime, &s.DurationSeconds, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (p *PostgresStorage) GetSession(ctx context.Context, id string) (*internal.Session, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

func (p *PostgresStorage) CreateSession(ctx context.Context, s *internal.Session) (string, error) {
	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := p.pool.Exec(ctx, `INSERT INTO sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id, s.UserID, s.Type, s.Status, s.StartTime, s.EndTime,
		s.PausedAt, s.ResumedAt, s.CompletedAt, s.ActualEndTime, s.DurationSeconds, createdAt)
	if err != nil {
		p.logger.Errorf("failed to insert session: %v", err)
		return "", err
	}
	return id, nil
}

func (p *PostgresStorage) PatchSession(ctx context.Context, id string, patch SessionPatch) error {
	sets := []string{}
	args := []any{}
	add := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}
	if patch.Status != nil {
		add(`status = $%d`, *patch.Status)
	}
	if patch.PausedAt != nil {
		add(`paused_at = $%d`, *patch.PausedAt)
	}
	if patch.ResumedAt != nil {
		add(`resumed_at = $%d`, *patch.ResumedAt)
	}
	if patch.CompletedAt != nil {
		add(`completed_at = $%d`, *patch.CompletedAt)
	}
	if patch.ActualEndTime != nil {
		add(`actual_end_time = $%d`, *patch.ActualEndTime)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE sessions SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		p.logger.Errorf("failed to patch session: %v", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStorage) LatestNonTerminal(ctx context.Context, userID string) (*internal.Session, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = $1 AND status IN ('active', 'paused')
		ORDER BY created_at DESC LIMIT 1`, userID)
	return scanSession(row)
}

func (p *PostgresStorage) CompletedInRange(ctx context.Context, userID string, from, to time.Time) ([]internal.Session, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = $1 AND status = 'completed' AND completed_at >= $2 AND completed_at < $3
		ORDER BY completed_at DESC`, userID, from, to)
	if err != nil {
		p.logger.Errorf("failed to query completed sessions: %v", err)
		return nil, err
	}
	defer rows.Close()
	out := []internal.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// --- TeamRepository ---

const teamColumns = `id, name, owner_id, join_code, members, created_at`

func scanTeam(row pgx.Row) (*internal.Team, error) {
	var t internal.Team
	err := row.Scan(&t.ID, &t.Name, &t.OwnerID, &t.JoinCode, &t.Members, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (p *PostgresStorage) GetTeam(ctx context.Context, id string) (*internal.Team, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1`, id)
	return scanTeam(row)
}

func (p *PostgresStorage) CreateTeam(ctx context.Context, t *internal.Team) (string, error) {
	id := t.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := p.pool.Exec(ctx, `INSERT INTO teams (`+teamColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, t.Name, t.OwnerID, t.JoinCode, t.Members, t.CreatedAt)
	if err != nil {
		p.logger.Errorf("failed to insert team: %v", err)
		return "", err
	}
	return id, nil
}

func (p *PostgresStorage) SetMembers(ctx context.Context, id string, members []string) error {
	tag, err := p.pool.Exec(ctx, `UPDATE teams SET members = $1 WHERE id = $2`, members, id)
	if err != nil {
		p.logger.Errorf("failed to update team members: %v", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStorage) FindByJoinCode(ctx context.Context, code string) (*internal.Team, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+teamColumns+` FROM teams WHERE join_code = $1`, code)
	return scanTeam(row)
}

// --- TaskRepository ---

const taskColumns = `id, user_id, title, description, priority, status, image, created_at, completed_at`

func scanTask(row pgx.Row) (*internal.Task, error) {
	var t internal.Task
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Priority, &t.Status,
		&t.Image, &t.CreatedAt, &t.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (p *PostgresStorage) ListTasks(ctx context.Context, userID string) ([]internal.Task, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		p.logger.Errorf("failed to query tasks: %v", err)
		return nil, err
	}
	defer rows.Close()
	out := []internal.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (p *PostgresStorage) CreateTask(ctx context.Context, t *internal.Task) (string, error) {
	id := t.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := p.pool.Exec(ctx, `INSERT INTO tasks (`+taskColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, t.UserID, t.Title, t.Description, t.Priority, t.Status, t.Image, createdAt, t.CompletedAt)
	if err != nil {
		p.logger.Errorf("failed to insert task: %v", err)
		return "", err
	}
	return id, nil
}

func (p *PostgresStorage) PatchTaskStatus(ctx context.Context, userID, id, status string, completedAt *time.Time) error {
	tag, err := p.pool.Exec(ctx, `UPDATE tasks SET status = $1, completed_at = $2 WHERE id = $3 AND user_id = $4`,
		status, completedAt, id, userID)
	if err != nil {
		p.logger.Errorf("failed to patch task: %v", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStorage) WatchTasks(ctx context.Context, userID string) (<-chan []internal.Task, func(), error) {
	return pollWatch(ctx, p.watchInterval, p.logger, func(ctx context.Context) ([]internal.Task, error) {
		return p.ListTasks(ctx, userID)
	})
}

// --- Compile-time assertions ---
var _ ProfileRepository = (*PostgresStorage)(nil)
var _ SessionRepository = (*PostgresStorage)(nil)
var _ TeamRepository = (*PostgresStorage)(nil)
var _ TaskRepository = (*PostgresStorage)(nil)
