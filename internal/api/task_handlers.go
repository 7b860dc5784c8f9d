package api

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/kalviumcommunity/FocusRoom/internal"
	"github.com/kalviumcommunity/FocusRoom/internal/service"
	"github.com/kalviumcommunity/FocusRoom/internal/storage"
)

func PostTask(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.UserProfile)

		var body service.TaskRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}
		if err := service.ValidateTaskRequest(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Validation failed")
			return
		}

		task, err := service.CreateTask(c.Request.Context(), app.Repos().Tasks, user.ID, &body)
		if err != nil {
			HandleError(c, app.Logger(), err, 500, "Failed to create task")
			return
		}
		HandleSuccess(c, app.Logger(), task, nil)
	}
}

func GetTasks(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.UserProfile)

		tasks, err := service.ListTasks(c.Request.Context(), app.Repos().Tasks, user.ID)
		if err != nil {
			HandleError(c, app.Logger(), err, 500, "Failed to fetch tasks")
			return
		}
		HandleSuccess(c, app.Logger(), tasks, nil)
	}
}

func PatchTaskStatus(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.UserProfile)

		var body service.TaskStatusRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}
		if err := service.ValidateTaskStatusRequest(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Validation failed")
			return
		}

		err := service.SetTaskStatus(c.Request.Context(), app.Repos().Tasks, user.ID, c.Param("id"), body.Status)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				HandleError(c, app.Logger(), err, 404, "Task not found")
				return
			}
			HandleError(c, app.Logger(), err, 500, "Failed to update task")
			return
		}
		HandleSuccess(c, app.Logger(), gin.H{"id": c.Param("id"), "status": body.Status}, nil)
	}
}

// GetTaskStream pushes the task board over SSE whenever it changes.
func GetTaskStream(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.UserProfile)

		updates, cancel, err := app.Repos().Tasks.WatchTasks(c.Request.Context(), user.ID)
		if err != nil {
			HandleError(c, app.Logger(), err, 500, "Failed to watch tasks")
			return
		}
		defer cancel()

		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Stream(func(w io.Writer) bool {
			select {
			case tasks, open := <-updates:
				if !open {
					return false
				}
				c.SSEvent("tasks", tasks)
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	}
}
