package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kalviumcommunity/FocusRoom/internal"
	"github.com/kalviumcommunity/FocusRoom/internal/storage"
)

type TaskRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	Priority    string `json:"priority" validate:"required,oneof=High Medium Low"`
	Image       string `json:"image" validate:"omitempty,url"`
}

type TaskStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=todo inprogress done"`
}

func ValidateTaskRequest(body *TaskRequest) error {
	return validate.Struct(body)
}

func ValidateTaskStatusRequest(body *TaskStatusRequest) error {
	return validate.Struct(body)
}

func CreateTask(ctx context.Context, tasks storage.TaskRepository, userID string, body *TaskRequest) (*internal.Task, error) {
	task := &internal.Task{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       body.Title,
		Description: body.Description,
		Priority:    body.Priority,
		Status:      internal.TaskTodo,
		Image:       body.Image,
		CreatedAt:   time.Now(),
	}
	id, err := tasks.CreateTask(ctx, task)
	if err != nil {
		return nil, err
	}
	task.ID = id
	return task, nil
}

// SetTaskStatus moves a task between todo, inprogress and done. The
// completion timestamp is set when entering done and cleared when
// leaving it.
func SetTaskStatus(ctx context.Context, tasks storage.TaskRepository, userID, taskID, status string) error {
	var completedAt *time.Time
	if status == internal.TaskDone {
		now := time.Now()
		completedAt = &now
	}
	return tasks.PatchTaskStatus(ctx, userID, taskID, status, completedAt)
}

func ListTasks(ctx context.Context, tasks storage.TaskRepository, userID string) ([]internal.Task, error) {
	return tasks.ListTasks(ctx, userID)
}
