package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/kalviumcommunity/FocusRoom/internal"
	"github.com/kalviumcommunity/FocusRoom/internal/storage"
)

// ErrBadRange is returned for a range outside 7d/30d/all.
var ErrBadRange = errors.New("invalid report range")

const (
	Range7d  = "7d"
	Range30d = "30d"
	RangeAll = "all"
)

type DayCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Report aggregates the user's tasks and focus sessions over a range.
type Report struct {
	Range          string          `json:"range"`
	TotalTasks     int             `json:"total_tasks"`
	Done           int             `json:"done"`
	InProgress     int             `json:"in_progress"`
	Todo           int             `json:"todo"`
	CompletionRate int             `json:"completion_rate"`
	Streak         int             `json:"streak"`
	Days           []DayCount      `json:"days"`
	Priorities     map[string]int  `json:"priorities"`
	Recent         []internal.Task `json:"recent"`
	FocusSessions  int             `json:"focus_sessions"`
	FocusMinutes   int             `json:"focus_minutes"`
}

// GetReport builds the report for one of the supported ranges.
func GetReport(ctx context.Context, tasks storage.TaskRepository, sessions storage.SessionRepository, userID, rng string, now time.Time) (*Report, error) {
	if rng != Range7d && rng != Range30d && rng != RangeAll {
		return nil, ErrBadRange
	}

	list, err := tasks.ListTasks(ctx, userID)
	if err != nil {
		return nil, err
	}

	from := rangeStart(rng, now)
	completed, err := sessions.CompletedInRange(ctx, userID, from, now.Add(time.Second))
	if err != nil {
		return nil, err
	}

	return BuildReport(rng, list, completed, now), nil
}

// BuildReport is the pure aggregation over an already loaded task list
// and the completed sessions of the range.
func BuildReport(rng string, list []internal.Task, completed []internal.Session, now time.Time) *Report {
	from := rangeStart(rng, now)

	filtered := make([]internal.Task, 0, len(list))
	for _, t := range list {
		if rng == RangeAll || !t.CreatedAt.Before(from) {
			filtered = append(filtered, t)
		}
	}

	r := &Report{
		Range:      rng,
		TotalTasks: len(filtered),
		Priorities: map[string]int{internal.PriorityHigh: 0, internal.PriorityMedium: 0, internal.PriorityLow: 0},
	}
	for _, t := range filtered {
		switch t.Status {
		case internal.TaskDone:
			r.Done++
		case internal.TaskInProgress:
			r.InProgress++
		case internal.TaskTodo:
			r.Todo++
		}
		r.Priorities[t.Priority]++
	}
	if r.TotalTasks > 0 {
		r.CompletionRate = int(math.Round(float64(r.Done) / float64(r.TotalTasks) * 100))
	}

	r.Streak = completionStreak(list, now)
	r.Days = completedPerDay(filtered, rng, now)
	r.Recent = recentCompleted(filtered, 5)

	for _, s := range completed {
		if s.Type != internal.SessionWork {
			continue
		}
		r.FocusSessions++
		r.FocusMinutes += s.DurationSeconds / 60
	}
	return r
}

func rangeStart(rng string, now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch rng {
	case Range7d:
		return day.AddDate(0, 0, -6)
	case Range30d:
		return day.AddDate(0, 0, -29)
	default:
		return time.Time{}
	}
}

// completionStreak counts consecutive days, ending today, that have at
// least one task completed. It always looks at the full task history so
// the streak does not shrink when a narrow range is selected.
func completionStreak(list []internal.Task, now time.Time) int {
	days := make(map[string]bool)
	for _, t := range list {
		if t.Status == internal.TaskDone && t.CompletedAt != nil {
			days[t.CompletedAt.Format("2006-01-02")] = true
		}
	}
	streak := 0
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for days[day.Format("2006-01-02")] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// completedPerDay buckets completed tasks per day for the chart. The 7d
// and all views show the last 7 days, 30d shows 30.
func completedPerDay(list []internal.Task, rng string, now time.Time) []DayCount {
	window := 7
	if rng == Range30d {
		window = 30
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	counts := make(map[string]int)
	for _, t := range list {
		if t.Status == internal.TaskDone && t.CompletedAt != nil {
			counts[t.CompletedAt.Format("2006-01-02")]++
		}
	}

	days := make([]DayCount, 0, window)
	for i := window - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		label := day.Format("Mon")
		if window > 7 {
			label = day.Format("Jan 2")
		}
		days = append(days, DayCount{Label: label, Count: counts[day.Format("2006-01-02")]})
	}
	return days
}

func recentCompleted(list []internal.Task, limit int) []internal.Task {
	done := make([]internal.Task, 0)
	for _, t := range list {
		if t.Status == internal.TaskDone && t.CompletedAt != nil {
			done = append(done, t)
		}
	}
	sort.Slice(done, func(i, j int) bool {
		return done[i].CompletedAt.After(*done[j].CompletedAt)
	})
	if len(done) > limit {
		done = done[:limit]
	}
	return done
}
