package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kalviumcommunity/FocusRoom/internal"
)

func newMemStore(t *testing.T) *FileStorage {
	t.Helper()
	s, err := NewFileStorage("", internal.NopLogger{})
	require.NoError(t, err)
	return s
}

func TestProfileCRUDAndPatch(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()

	_, err := s.GetProfile(ctx, "u1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.CreateProfile(ctx, &internal.UserProfile{ID: "u1", Name: "A", Status: internal.UserIdle}))

	active := internal.UserActive
	sessID := "s1"
	require.NoError(t, s.PatchProfile(ctx, "u1", ProfilePatch{
		Status:           &active,
		CurrentSessionID: &sessID,
		AddMinutes:       5,
		AddSessions:      1,
	}))

	p, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, internal.UserActive, p.Status)
	require.Equal(t, "s1", p.CurrentSessionID)
	require.Equal(t, 5, p.TotalMinutesToday)
	require.Equal(t, 1, p.TotalSessionsToday)

	// Increments accumulate, clears win over sets.
	require.NoError(t, s.PatchProfile(ctx, "u1", ProfilePatch{ClearSession: true, AddMinutes: 3}))
	p, err = s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, p.CurrentSessionID)
	require.Equal(t, 8, p.TotalMinutesToday)

	require.ErrorIs(t, s.PatchProfile(ctx, "ghost", ProfilePatch{}), ErrNotFound)
}

func TestSessionLifecycle(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()
	now := time.Now()

	id, err := s.CreateSession(ctx, &internal.Session{
		UserID:          "u1",
		Type:            internal.SessionWork,
		Status:          internal.SessionActive,
		StartTime:       now,
		EndTime:         now.Add(25 * time.Minute),
		DurationSeconds: 1500,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	latest, err := s.LatestNonTerminal(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, id, latest.ID)

	completed := internal.SessionCompleted
	completedAt := now.Add(25 * time.Minute)
	require.NoError(t, s.PatchSession(ctx, id, SessionPatch{
		Status:        &completed,
		CompletedAt:   &completedAt,
		ActualEndTime: &completedAt,
	}))

	_, err = s.LatestNonTerminal(ctx, "u1")
	require.ErrorIs(t, err, ErrNotFound)

	sess, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	require.Equal(t, internal.SessionCompleted, sess.Status)
	require.NotNil(t, sess.CompletedAt)
}

func TestLatestNonTerminalPicksNewest(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()
	base := time.Now()

	_, err := s.CreateSession(ctx, &internal.Session{UserID: "u1", Status: internal.SessionActive, CreatedAt: base})
	require.NoError(t, err)
	newest, err := s.CreateSession(ctx, &internal.Session{UserID: "u1", Status: internal.SessionPaused, CreatedAt: base.Add(time.Minute)})
	require.NoError(t, err)

	latest, err := s.LatestNonTerminal(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, newest, latest.ID)
}

func TestCompletedInRange(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, offset := range []time.Duration{-48 * time.Hour, time.Hour, 26 * time.Hour} {
		at := base.Add(offset)
		completed := internal.SessionCompleted
		id, err := s.CreateSession(ctx, &internal.Session{UserID: "u1", Type: internal.SessionWork, Status: internal.SessionActive, CreatedAt: at})
		require.NoError(t, err)
		require.NoError(t, s.PatchSession(ctx, id, SessionPatch{Status: &completed, CompletedAt: &at}))
	}

	got, err := s.CompletedInRange(ctx, "u1", base, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, base.Add(time.Hour), *got[0].CompletedAt)
}

func TestTeamJoinCodeIndex(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()

	id, err := s.CreateTeam(ctx, &internal.Team{Name: "Crew", JoinCode: "ABCD1234", Members: []string{"u1"}})
	require.NoError(t, err)

	team, err := s.FindByJoinCode(ctx, "ABCD1234")
	require.NoError(t, err)
	require.Equal(t, id, team.ID)

	_, err = s.FindByJoinCode(ctx, "ZZZZZZZZ")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetMembers(ctx, id, []string{"u1", "u2"}))
	team, err = s.GetTeam(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []string{"u1", "u2"}, team.Members)
}

func TestTaskOrderingAndStatusPatch(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()
	base := time.Now()

	oldID, err := s.CreateTask(ctx, &internal.Task{UserID: "u1", Title: "old", Status: internal.TaskTodo, CreatedAt: base})
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, &internal.Task{UserID: "u1", Title: "new", Status: internal.TaskTodo, CreatedAt: base.Add(time.Minute)})
	require.NoError(t, err)

	tasks, err := s.ListTasks(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Equal(t, "new", tasks[0].Title)

	done := time.Now()
	require.NoError(t, s.PatchTaskStatus(ctx, "u1", oldID, internal.TaskDone, &done))
	tasks, _ = s.ListTasks(ctx, "u1")
	require.Equal(t, internal.TaskDone, tasks[1].Status)
	require.NotNil(t, tasks[1].CompletedAt)

	// Leaving done clears the completion timestamp.
	require.NoError(t, s.PatchTaskStatus(ctx, "u1", oldID, internal.TaskInProgress, nil))
	tasks, _ = s.ListTasks(ctx, "u1")
	require.Nil(t, tasks[1].CompletedAt)

	require.ErrorIs(t, s.PatchTaskStatus(ctx, "u1", "ghost", internal.TaskDone, &done), ErrNotFound)
}

func TestWatchTasksPushesUpdates(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()

	ch, cancel, err := s.WatchTasks(ctx, "u1")
	require.NoError(t, err)
	defer cancel()

	initial := <-ch
	require.Empty(t, initial)

	_, err = s.CreateTask(ctx, &internal.Task{UserID: "u1", Title: "t", Status: internal.TaskTodo})
	require.NoError(t, err)

	select {
	case tasks := <-ch:
		require.Len(t, tasks, 1)
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}
}

func TestWatchTeamPushesMemberChanges(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateProfile(ctx, &internal.UserProfile{ID: "u1", Status: internal.UserIdle}))
	teamID, err := s.CreateTeam(ctx, &internal.Team{Name: "Crew", JoinCode: "AAAA1111", Members: []string{"u1"}})
	require.NoError(t, err)
	tid := teamID
	require.NoError(t, s.PatchProfile(ctx, "u1", ProfilePatch{TeamID: &tid}))

	ch, cancel, err := s.WatchTeam(ctx, teamID)
	require.NoError(t, err)
	defer cancel()

	initial := <-ch
	require.Len(t, initial, 1)

	busy := internal.UserActive
	require.NoError(t, s.PatchProfile(ctx, "u1", ProfilePatch{Status: &busy}))

	select {
	case members := <-ch:
		require.Len(t, members, 1)
		require.Equal(t, internal.UserActive, members[0].Status)
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFileStorage(dir, internal.NopLogger{})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.CreateProfile(ctx, &internal.UserProfile{ID: "u1", Name: "A", Status: internal.UserIdle}))
	sessID, err := s.CreateSession(ctx, &internal.Session{UserID: "u1", Type: internal.SessionWork, Status: internal.SessionActive})
	require.NoError(t, err)
	teamID, err := s.CreateTeam(ctx, &internal.Team{Name: "Crew", JoinCode: "ABCD1234", Members: []string{"u1"}})
	require.NoError(t, err)
	taskID, err := s.CreateTask(ctx, &internal.Task{UserID: "u1", Title: "t", Status: internal.TaskTodo})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := NewFileStorage(dir, internal.NopLogger{})
	require.NoError(t, err)
	defer reopened.Close()

	p, err := reopened.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "A", p.Name)

	sess, err := reopened.GetSession(ctx, sessID)
	require.NoError(t, err)
	require.Equal(t, internal.SessionActive, sess.Status)

	team, err := reopened.FindByJoinCode(ctx, "ABCD1234")
	require.NoError(t, err)
	require.Equal(t, teamID, team.ID)

	tasks, err := reopened.ListTasks(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, taskID, tasks[0].ID)
}
