package api

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/kalviumcommunity/FocusRoom/internal"
	"github.com/kalviumcommunity/FocusRoom/internal/service"
)

func PostTeam(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.UserProfile)

		var body service.TeamRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}
		if err := service.ValidateTeamRequest(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Validation failed")
			return
		}

		team, err := service.CreateTeam(c.Request.Context(), app.Repos().Teams, app.Repos().Profiles, app.Cache(), user, &body)
		if err != nil {
			HandleError(c, app.Logger(), err, 500, "Failed to create team")
			return
		}
		HandleSuccess(c, app.Logger(), team, nil)
	}
}

func PostTeamJoin(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.UserProfile)

		var body service.JoinRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}
		if err := service.ValidateJoinRequest(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Validation failed")
			return
		}

		team, err := service.JoinTeam(c.Request.Context(), app.Repos().Teams, app.Repos().Profiles, app.Cache(), user, body.Code)
		if err != nil {
			if errors.Is(err, service.ErrTeamNotFound) {
				HandleError(c, app.Logger(), err, 404, "Unknown join code")
				return
			}
			HandleError(c, app.Logger(), err, 500, "Failed to join team")
			return
		}
		HandleSuccess(c, app.Logger(), team, nil)
	}
}

func PostTeamLeave(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.UserProfile)

		if err := service.LeaveTeam(c.Request.Context(), app.Repos().Teams, app.Repos().Profiles, app.Cache(), user); err != nil {
			HandleError(c, app.Logger(), err, 500, "Failed to leave team")
			return
		}
		HandleSuccess(c, app.Logger(), gin.H{"left": true}, nil)
	}
}

func GetTeam(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.UserProfile)
		if user.TeamID == "" {
			HandleSuccess(c, app.Logger(), nil, map[string]any{"in_team": false})
			return
		}

		data, err := service.GetTeamData(c.Request.Context(), app.Repos().Teams, app.Repos().Profiles, app.Cache(), user.TeamID)
		if err != nil {
			if errors.Is(err, service.ErrTeamNotFound) {
				HandleError(c, app.Logger(), err, 404, "Team no longer exists")
				return
			}
			HandleError(c, app.Logger(), err, 500, "Failed to fetch team")
			return
		}
		HandleSuccess(c, app.Logger(), data, map[string]any{"in_team": true})
	}
}

// GetTeamStream pushes the member list of the user's team over SSE so
// teammates see status changes without polling.
func GetTeamStream(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.UserProfile)
		if user.TeamID == "" {
			HandleError(c, app.Logger(), service.ErrTeamNotFound, 404, "Not in a team")
			return
		}

		updates, cancel, err := app.Repos().Profiles.WatchTeam(c.Request.Context(), user.TeamID)
		if err != nil {
			HandleError(c, app.Logger(), err, 500, "Failed to watch team")
			return
		}
		defer cancel()

		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Stream(func(w io.Writer) bool {
			select {
			case members, open := <-updates:
				if !open {
					return false
				}
				cards := make([]service.MemberStats, 0, len(members))
				for i := range members {
					cards = append(cards, service.MemberStatsFor(&members[i]))
				}
				c.SSEvent("members", cards)
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	}
}
