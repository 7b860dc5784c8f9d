package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kalviumcommunity/FocusRoom/internal"
	"github.com/kalviumcommunity/FocusRoom/internal/cache"
	"github.com/kalviumcommunity/FocusRoom/internal/storage"
)

var validate = validator.New()

// ErrTeamNotFound signals an unknown join code or team id; handlers map
// it to a user-facing not-found message.
var ErrTeamNotFound = errors.New("team not found")

const joinCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const joinCodeLen = 8

type TeamRequest struct {
	Name string `json:"name" validate:"required,min=2,max=60"`
}

type JoinRequest struct {
	Code string `json:"code" validate:"required,len=8,alphanum"`
}

func ValidateTeamRequest(body *TeamRequest) error {
	return validate.Struct(body)
}

func ValidateJoinRequest(body *JoinRequest) error {
	body.Code = strings.ToUpper(strings.TrimSpace(body.Code))
	return validate.Struct(body)
}

// MemberStats is the teammate card shown on the room dashboard.
type MemberStats struct {
	UID                string              `json:"uid"`
	Name               string              `json:"name"`
	PhotoURL           string              `json:"photo_url,omitempty"`
	Status             internal.UserStatus `json:"status"`
	TotalMinutesToday  int                 `json:"total_minutes_today"`
	TotalSessionsToday int                 `json:"total_sessions_today"`
}

type TeamData struct {
	Team    *internal.Team `json:"team"`
	Members []MemberStats  `json:"members"`
}

// randomJoinCode draws each character uniformly from the code alphabet.
func randomJoinCode() (string, error) {
	code := make([]byte, joinCodeLen)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(joinCodeChars))))
		if err != nil {
			return "", err
		}
		code[i] = joinCodeChars[n.Int64()]
	}
	return string(code), nil
}

// GenerateJoinCode draws random 8-character codes until one is free.
func GenerateJoinCode(ctx context.Context, teams storage.TeamRepository) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		code, err := randomJoinCode()
		if err != nil {
			return "", err
		}
		_, err = teams.FindByJoinCode(ctx, code)
		if errors.Is(err, storage.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("could not generate a unique join code")
}

func CreateTeam(ctx context.Context, teams storage.TeamRepository, profiles storage.ProfileRepository, c *cache.Cache, user *internal.UserProfile, body *TeamRequest) (*internal.Team, error) {
	code, err := GenerateJoinCode(ctx, teams)
	if err != nil {
		return nil, err
	}
	team := &internal.Team{
		Name:      body.Name,
		OwnerID:   user.ID,
		JoinCode:  code,
		Members:   []string{user.ID},
		CreatedAt: time.Now(),
	}
	id, err := teams.CreateTeam(ctx, team)
	if err != nil {
		return nil, err
	}
	team.ID = id

	if err := profiles.PatchProfile(ctx, user.ID, storage.ProfilePatch{TeamID: &id}); err != nil {
		return nil, err
	}
	user.TeamID = id
	return team, nil
}

// JoinTeam adds the user to the team behind the code. An unknown code
// returns ErrTeamNotFound and leaves the profile untouched.
func JoinTeam(ctx context.Context, teams storage.TeamRepository, profiles storage.ProfileRepository, c *cache.Cache, user *internal.UserProfile, code string) (*internal.Team, error) {
	team, err := teams.FindByJoinCode(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}

	member := false
	for _, id := range team.Members {
		if id == user.ID {
			member = true
			break
		}
	}
	if !member {
		members := append(append([]string(nil), team.Members...), user.ID)
		if err := teams.SetMembers(ctx, team.ID, members); err != nil {
			return nil, err
		}
		team.Members = members
	}

	if err := profiles.PatchProfile(ctx, user.ID, storage.ProfilePatch{TeamID: &team.ID}); err != nil {
		return nil, err
	}
	user.TeamID = team.ID
	c.Invalidate(ctx, membersCacheKey(team.ID))
	return team, nil
}

// LeaveTeam removes the user from the member list and clears the
// profile pointer. A vanished team record is ignored.
func LeaveTeam(ctx context.Context, teams storage.TeamRepository, profiles storage.ProfileRepository, c *cache.Cache, user *internal.UserProfile) error {
	teamID := user.TeamID
	if teamID != "" {
		team, err := teams.GetTeam(ctx, teamID)
		if err == nil {
			members := make([]string, 0, len(team.Members))
			for _, id := range team.Members {
				if id != user.ID {
					members = append(members, id)
				}
			}
			if err := teams.SetMembers(ctx, teamID, members); err != nil {
				return err
			}
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}

	if err := profiles.PatchProfile(ctx, user.ID, storage.ProfilePatch{ClearTeam: true}); err != nil {
		return err
	}
	user.TeamID = ""
	c.Invalidate(ctx, membersCacheKey(teamID))
	return nil
}

// GetTeamData returns the team record with per-member stats. The member
// list is cached briefly; staleness is bounded by the cache TTL.
func GetTeamData(ctx context.Context, teams storage.TeamRepository, profiles storage.ProfileRepository, c *cache.Cache, teamID string) (*TeamData, error) {
	team, err := teams.GetTeam(ctx, teamID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}

	var members []MemberStats
	if c.GetJSON(ctx, membersCacheKey(teamID), &members) {
		return &TeamData{Team: team, Members: members}, nil
	}

	members = make([]MemberStats, 0, len(team.Members))
	for _, uid := range team.Members {
		p, err := profiles.GetProfile(ctx, uid)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		members = append(members, MemberStatsFor(p))
	}
	c.SetJSON(ctx, membersCacheKey(teamID), members)
	return &TeamData{Team: team, Members: members}, nil
}

// MemberStatsFor projects a profile onto its dashboard card.
func MemberStatsFor(p *internal.UserProfile) MemberStats {
	return MemberStats{
		UID:                p.ID,
		Name:               p.Name,
		PhotoURL:           p.PhotoURL,
		Status:             p.Status,
		TotalMinutesToday:  p.TotalMinutesToday,
		TotalSessionsToday: p.TotalSessionsToday,
	}
}

func membersCacheKey(teamID string) string {
	return "team:members:" + teamID
}
