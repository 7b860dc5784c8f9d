package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kalviumcommunity/FocusRoom/internal"
)

var reportNow = time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC) // a Wednesday

func doneTask(daysAgo int, priority string) internal.Task {
	completed := reportNow.AddDate(0, 0, -daysAgo)
	return internal.Task{
		Title:       "done",
		Priority:    priority,
		Status:      internal.TaskDone,
		CreatedAt:   completed.Add(-time.Hour),
		CompletedAt: &completed,
	}
}

func openTask(daysAgo int, status string) internal.Task {
	return internal.Task{
		Title:     "open",
		Priority:  internal.PriorityMedium,
		Status:    status,
		CreatedAt: reportNow.AddDate(0, 0, -daysAgo),
	}
}

func TestBuildReportCounts(t *testing.T) {
	tasks := []internal.Task{
		doneTask(0, internal.PriorityHigh),
		doneTask(1, internal.PriorityHigh),
		openTask(2, internal.TaskInProgress),
		openTask(3, internal.TaskTodo),
	}

	r := BuildReport(Range7d, tasks, nil, reportNow)
	require.Equal(t, 4, r.TotalTasks)
	require.Equal(t, 2, r.Done)
	require.Equal(t, 1, r.InProgress)
	require.Equal(t, 1, r.Todo)
	require.Equal(t, 50, r.CompletionRate)
	require.Equal(t, 2, r.Priorities[internal.PriorityHigh])
	require.Equal(t, 2, r.Priorities[internal.PriorityMedium])
	require.Equal(t, 0, r.Priorities[internal.PriorityLow])
}

func TestBuildReportRangeFiltering(t *testing.T) {
	tasks := []internal.Task{
		doneTask(0, internal.PriorityLow),
		doneTask(10, internal.PriorityLow),
		doneTask(40, internal.PriorityLow),
	}

	require.Equal(t, 1, BuildReport(Range7d, tasks, nil, reportNow).TotalTasks)
	require.Equal(t, 2, BuildReport(Range30d, tasks, nil, reportNow).TotalTasks)
	require.Equal(t, 3, BuildReport(RangeAll, tasks, nil, reportNow).TotalTasks)
}

func TestBuildReportStreak(t *testing.T) {
	tasks := []internal.Task{
		doneTask(0, internal.PriorityLow),
		doneTask(1, internal.PriorityLow),
		doneTask(2, internal.PriorityLow),
		doneTask(4, internal.PriorityLow), // gap at day 3 ends the streak
	}
	r := BuildReport(Range7d, tasks, nil, reportNow)
	require.Equal(t, 3, r.Streak)
}

func TestBuildReportStreakZeroWithoutToday(t *testing.T) {
	tasks := []internal.Task{doneTask(1, internal.PriorityLow)}
	r := BuildReport(Range7d, tasks, nil, reportNow)
	require.Equal(t, 0, r.Streak)
}

func TestBuildReportDayBuckets(t *testing.T) {
	tasks := []internal.Task{
		doneTask(0, internal.PriorityLow),
		doneTask(0, internal.PriorityLow),
		doneTask(6, internal.PriorityLow),
	}
	r := BuildReport(Range7d, tasks, nil, reportNow)
	require.Len(t, r.Days, 7)
	require.Equal(t, 1, r.Days[0].Count)
	require.Equal(t, 2, r.Days[6].Count)
	require.Equal(t, "Wed", r.Days[6].Label)

	require.Len(t, BuildReport(Range30d, tasks, nil, reportNow).Days, 30)
}

func TestBuildReportFocusTotals(t *testing.T) {
	completedAt := reportNow.Add(-time.Hour)
	sessions := []internal.Session{
		{Type: internal.SessionWork, Status: internal.SessionCompleted, DurationSeconds: 1500, CompletedAt: &completedAt},
		{Type: internal.SessionWork, Status: internal.SessionCompleted, DurationSeconds: 1500, CompletedAt: &completedAt},
		{Type: internal.SessionBreak, Status: internal.SessionCompleted, DurationSeconds: 300, CompletedAt: &completedAt},
	}
	r := BuildReport(Range7d, nil, sessions, reportNow)
	require.Equal(t, 2, r.FocusSessions)
	require.Equal(t, 50, r.FocusMinutes)
}

func TestBuildReportRecentCompleted(t *testing.T) {
	tasks := []internal.Task{}
	for i := 0; i < 8; i++ {
		task := doneTask(0, internal.PriorityLow)
		completed := reportNow.Add(-time.Duration(i) * time.Minute)
		task.CompletedAt = &completed
		tasks = append(tasks, task)
	}
	r := BuildReport(Range7d, tasks, nil, reportNow)
	require.Len(t, r.Recent, 5)
	require.True(t, r.Recent[0].CompletedAt.After(*r.Recent[4].CompletedAt))
}

func TestWeekRangeSundayAnchored(t *testing.T) {
	start, end := WeekRange(reportNow)
	require.Equal(t, time.Sunday, start.Weekday())
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), end)

	// A Sunday is its own week start.
	start, _ = WeekRange(time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC))
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), start)
}

func TestValidateTaskRequest(t *testing.T) {
	require.NoError(t, ValidateTaskRequest(&TaskRequest{Title: "Write tests", Priority: internal.PriorityHigh}))
	require.Error(t, ValidateTaskRequest(&TaskRequest{Priority: internal.PriorityHigh}))
	require.Error(t, ValidateTaskRequest(&TaskRequest{Title: "x", Priority: "Urgent"}))
	require.Error(t, ValidateTaskRequest(&TaskRequest{Title: "x", Priority: internal.PriorityLow, Image: "not-a-url"}))

	require.NoError(t, ValidateTaskStatusRequest(&TaskStatusRequest{Status: internal.TaskDone}))
	require.Error(t, ValidateTaskStatusRequest(&TaskStatusRequest{Status: "finished"}))
}
