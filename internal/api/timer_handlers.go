package api

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/kalviumcommunity/FocusRoom/internal"
	"github.com/kalviumcommunity/FocusRoom/internal/engine"
)

func userEngine(c *gin.Context, app App) (*engine.Engine, bool) {
	user := c.MustGet("user").(*internal.UserProfile)
	eng, err := app.Engines().ForUser(c.Request.Context(), user.ID)
	if err != nil {
		HandleError(c, app.Logger(), err, 500, "Failed to restore session state")
		return nil, false
	}
	return eng, true
}

func timerError(c *gin.Context, app App, err error, msg string) {
	switch {
	case errors.Is(err, engine.ErrSessionRunning),
		errors.Is(err, engine.ErrNoActiveSession),
		errors.Is(err, engine.ErrNotPaused),
		errors.Is(err, engine.ErrNoSession):
		HandleError(c, app.Logger(), err, 409, msg)
	default:
		HandleError(c, app.Logger(), err, 500, msg)
	}
}

func PostTimerStart(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		eng, ok := userEngine(c, app)
		if !ok {
			return
		}
		if err := eng.Start(c.Request.Context()); err != nil {
			timerError(c, app, err, "Failed to start session")
			return
		}
		HandleSuccess(c, app.Logger(), eng.Snapshot(), nil)
	}
}

func PostTimerPause(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		eng, ok := userEngine(c, app)
		if !ok {
			return
		}
		if err := eng.Pause(c.Request.Context()); err != nil {
			timerError(c, app, err, "Failed to pause session")
			return
		}
		HandleSuccess(c, app.Logger(), eng.Snapshot(), nil)
	}
}

func PostTimerResume(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		eng, ok := userEngine(c, app)
		if !ok {
			return
		}
		if err := eng.Resume(c.Request.Context()); err != nil {
			timerError(c, app, err, "Failed to resume session")
			return
		}
		HandleSuccess(c, app.Logger(), eng.Snapshot(), nil)
	}
}

func PostTimerStop(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		eng, ok := userEngine(c, app)
		if !ok {
			return
		}
		if err := eng.Stop(c.Request.Context()); err != nil {
			timerError(c, app, err, "Failed to stop session")
			return
		}
		HandleSuccess(c, app.Logger(), eng.Snapshot(), nil)
	}
}

// PostTimerReset is the "back to work" action: it discards whatever is
// running or armed (including a pending auto-break) and arms a fresh
// work interval.
func PostTimerReset(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		eng, ok := userEngine(c, app)
		if !ok {
			return
		}
		if err := eng.ResetToWork(c.Request.Context()); err != nil {
			timerError(c, app, err, "Failed to reset timer")
			return
		}
		HandleSuccess(c, app.Logger(), eng.Snapshot(), nil)
	}
}

func GetTimer(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		eng, ok := userEngine(c, app)
		if !ok {
			return
		}
		HandleSuccess(c, app.Logger(), eng.Snapshot(), nil)
	}
}

// GetTimerStream pushes engine snapshots over SSE. The initial state is
// sent immediately, then every transition and tick until the client
// disconnects.
func GetTimerStream(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		eng, ok := userEngine(c, app)
		if !ok {
			return
		}

		updates, cancel := eng.Subscribe()
		defer cancel()

		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Stream(func(w io.Writer) bool {
			select {
			case snap, open := <-updates:
				if !open {
					return false
				}
				c.SSEvent("timer", snap)
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	}
}
