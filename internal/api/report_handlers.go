package api

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kalviumcommunity/FocusRoom/internal"
	"github.com/kalviumcommunity/FocusRoom/internal/service"
)

func GetStats(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.UserProfile)

		stats, err := service.GetUserStats(c.Request.Context(), app.Repos().Sessions, user, time.Now())
		if err != nil {
			HandleError(c, app.Logger(), err, 500, "Failed to compute stats")
			return
		}
		HandleSuccess(c, app.Logger(), stats, nil)
	}
}

func GetReport(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.UserProfile)
		rng := c.DefaultQuery("range", service.Range7d)

		report, err := service.GetReport(c.Request.Context(), app.Repos().Tasks, app.Repos().Sessions, user.ID, rng, time.Now())
		if err != nil {
			if errors.Is(err, service.ErrBadRange) {
				HandleError(c, app.Logger(), err, 400, "Invalid range")
				return
			}
			HandleError(c, app.Logger(), err, 500, "Failed to build report")
			return
		}
		HandleSuccess(c, app.Logger(), report, nil)
	}
}

func GetMe(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.UserProfile)
		HandleSuccess(c, app.Logger(), user, nil)
	}
}
