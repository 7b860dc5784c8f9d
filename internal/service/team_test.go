package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kalviumcommunity/FocusRoom/internal"
	"github.com/kalviumcommunity/FocusRoom/internal/cache"
	"github.com/kalviumcommunity/FocusRoom/internal/storage"
)

var noCache *cache.Cache

func newStore(t *testing.T) *storage.FileStorage {
	t.Helper()
	store, err := storage.NewFileStorage("", internal.NopLogger{})
	require.NoError(t, err)
	return store
}

func newUser(t *testing.T, store *storage.FileStorage, id string) *internal.UserProfile {
	t.Helper()
	p := &internal.UserProfile{ID: id, Name: "User " + id, Status: internal.UserIdle, CreatedAt: time.Now()}
	require.NoError(t, store.CreateProfile(context.Background(), p))
	return p
}

func TestCreateTeamGeneratesJoinCode(t *testing.T) {
	store := newStore(t)
	user := newUser(t, store, "u1")

	team, err := CreateTeam(context.Background(), store, store, noCache, user, &TeamRequest{Name: "Deep Work Crew"})
	require.NoError(t, err)
	require.Len(t, team.JoinCode, 8)
	for _, r := range team.JoinCode {
		require.Contains(t, joinCodeChars, string(r))
	}
	require.Equal(t, []string{"u1"}, team.Members)
	require.Equal(t, "u1", team.OwnerID)

	p, err := store.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, team.ID, p.TeamID)
}

func TestJoinTeamByCode(t *testing.T) {
	store := newStore(t)
	owner := newUser(t, store, "u1")
	joiner := newUser(t, store, "u2")

	team, err := CreateTeam(context.Background(), store, store, noCache, owner, &TeamRequest{Name: "Crew"})
	require.NoError(t, err)

	joined, err := JoinTeam(context.Background(), store, store, noCache, joiner, team.JoinCode)
	require.NoError(t, err)
	require.Equal(t, team.ID, joined.ID)
	require.Equal(t, []string{"u1", "u2"}, joined.Members)

	p, err := store.GetProfile(context.Background(), "u2")
	require.NoError(t, err)
	require.Equal(t, team.ID, p.TeamID)
}

func TestJoinTeamUnknownCodeLeavesProfileUntouched(t *testing.T) {
	store := newStore(t)
	user := newUser(t, store, "u1")

	_, err := JoinTeam(context.Background(), store, store, noCache, user, "NOPENOPE")
	require.ErrorIs(t, err, ErrTeamNotFound)

	p, err := store.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	require.Empty(t, p.TeamID)
}

func TestJoinTeamTwiceIsIdempotent(t *testing.T) {
	store := newStore(t)
	owner := newUser(t, store, "u1")

	team, err := CreateTeam(context.Background(), store, store, noCache, owner, &TeamRequest{Name: "Crew"})
	require.NoError(t, err)

	again, err := JoinTeam(context.Background(), store, store, noCache, owner, team.JoinCode)
	require.NoError(t, err)
	require.Equal(t, []string{"u1"}, again.Members)
}

func TestLeaveTeam(t *testing.T) {
	store := newStore(t)
	owner := newUser(t, store, "u1")
	joiner := newUser(t, store, "u2")

	team, err := CreateTeam(context.Background(), store, store, noCache, owner, &TeamRequest{Name: "Crew"})
	require.NoError(t, err)
	_, err = JoinTeam(context.Background(), store, store, noCache, joiner, team.JoinCode)
	require.NoError(t, err)

	require.NoError(t, LeaveTeam(context.Background(), store, store, noCache, joiner))

	p, err := store.GetProfile(context.Background(), "u2")
	require.NoError(t, err)
	require.Empty(t, p.TeamID)

	fresh, err := store.GetTeam(context.Background(), team.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"u1"}, fresh.Members)
}

func TestLeaveTeamWithoutTeamIsNoop(t *testing.T) {
	store := newStore(t)
	user := newUser(t, store, "u1")
	require.NoError(t, LeaveTeam(context.Background(), store, store, noCache, user))
}

func TestGetTeamData(t *testing.T) {
	store := newStore(t)
	owner := newUser(t, store, "u1")

	team, err := CreateTeam(context.Background(), store, store, noCache, owner, &TeamRequest{Name: "Crew"})
	require.NoError(t, err)

	busy := internal.UserActive
	require.NoError(t, store.PatchProfile(context.Background(), "u1", storage.ProfilePatch{Status: &busy, AddMinutes: 42, AddSessions: 2}))

	data, err := GetTeamData(context.Background(), store, store, noCache, team.ID)
	require.NoError(t, err)
	require.Len(t, data.Members, 1)
	require.Equal(t, "u1", data.Members[0].UID)
	require.Equal(t, internal.UserActive, data.Members[0].Status)
	require.Equal(t, 42, data.Members[0].TotalMinutesToday)
	require.Equal(t, 2, data.Members[0].TotalSessionsToday)
}

func TestRandomJoinCodeDrawsFromAlphabet(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		code, err := randomJoinCode()
		require.NoError(t, err)
		require.Len(t, code, joinCodeLen)
		for _, r := range code {
			require.Contains(t, joinCodeChars, string(r))
		}
		seen[code] = true
	}
	require.Greater(t, len(seen), 1)
}

func TestValidateJoinRequestNormalizes(t *testing.T) {
	body := &JoinRequest{Code: "  abcd1234 "}
	require.NoError(t, ValidateJoinRequest(body))
	require.Equal(t, "ABCD1234", body.Code)

	require.Error(t, ValidateJoinRequest(&JoinRequest{Code: "short"}))
	require.Error(t, ValidateJoinRequest(&JoinRequest{Code: ""}))
	require.Error(t, ValidateJoinRequest(&JoinRequest{Code: "has spac!"}))
}
