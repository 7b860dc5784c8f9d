package service

import (
	"context"
	"math"
	"time"

	"github.com/kalviumcommunity/FocusRoom/internal"
	"github.com/kalviumcommunity/FocusRoom/internal/storage"
)

// UserStats is the personal stats card: today's totals come straight
// from the profile counters, the weekly count from completed work
// sessions in the current week.
type UserStats struct {
	SessionsToday   int     `json:"sessions_today"`
	FocusHoursToday float64 `json:"focus_hours_today"`
	SessionsWeek    int     `json:"sessions_week"`
}

// WeekRange returns the Sunday-anchored week containing now, as
// [start, end).
func WeekRange(now time.Time) (time.Time, time.Time) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start := day.AddDate(0, 0, -int(day.Weekday()))
	return start, start.AddDate(0, 0, 7)
}

func GetUserStats(ctx context.Context, sessions storage.SessionRepository, profile *internal.UserProfile, now time.Time) (*UserStats, error) {
	from, to := WeekRange(now)
	completed, err := sessions.CompletedInRange(ctx, profile.ID, from, to)
	if err != nil {
		return nil, err
	}
	week := 0
	for _, s := range completed {
		if s.Type == internal.SessionWork {
			week++
		}
	}

	hours := math.Round(float64(profile.TotalMinutesToday)/60*10) / 10
	return &UserStats{
		SessionsToday:   profile.TotalSessionsToday,
		FocusHoursToday: hours,
		SessionsWeek:    week,
	}, nil
}
