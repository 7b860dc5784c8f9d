package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the HTTP surface. Everything under /api sits behind
// the auth middleware; /healthz does not.
func NewRouter(app App, authMiddleware gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	g := r.Group("/api")
	g.Use(authMiddleware)

	g.GET("/me", GetMe(app))

	g.POST("/timer/start", PostTimerStart(app))
	g.POST("/timer/pause", PostTimerPause(app))
	g.POST("/timer/resume", PostTimerResume(app))
	g.POST("/timer/stop", PostTimerStop(app))
	g.POST("/timer/reset", PostTimerReset(app))
	g.GET("/timer", GetTimer(app))
	g.GET("/timer/stream", GetTimerStream(app))

	g.GET("/stats", GetStats(app))
	g.GET("/reports", GetReport(app))

	g.POST("/teams", PostTeam(app))
	g.POST("/teams/join", PostTeamJoin(app))
	g.POST("/teams/leave", PostTeamLeave(app))
	g.GET("/teams/current", GetTeam(app))
	g.GET("/teams/current/stream", GetTeamStream(app))

	g.POST("/tasks", PostTask(app))
	g.GET("/tasks", GetTasks(app))
	g.PATCH("/tasks/:id/status", PatchTaskStatus(app))
	g.GET("/tasks/stream", GetTaskStream(app))

	return r
}
