// Package stats computes the dashboard statistics for a user.
package stats

import (
	"math"
	"time"

	"github.com/taskflow-ai/taskflow-api/internal/models"
)

// Boundaries are the calendar instants the dashboard counts are bucketed by
type Boundaries struct {
	Now           time.Time
	Today         time.Time
	Yesterday     time.Time
	ThisWeekStart time.Time
	LastWeekStart time.Time
}

// NewBoundaries computes the boundaries for now in loc. Day arithmetic uses
// calendar days, so a DST transition does not shift midnight.
func NewBoundaries(now time.Time, loc *time.Location) Boundaries {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return Boundaries{
		Now:           local,
		Today:         today,
		Yesterday:     today.AddDate(0, 0, -1),
		ThisWeekStart: today.AddDate(0, 0, -7),
		LastWeekStart: today.AddDate(0, 0, -14),
	}
}

// Counts are the raw per-user counts the dashboard is derived from
type Counts struct {
	Total             int
	Completed         int
	Active            int
	Today             int
	Yesterday         int
	ThisWeekCompleted int
	LastWeekCompleted int
}

// Compute derives the dashboard record from raw counts
func Compute(c Counts) models.DashboardStats {
	return models.DashboardStats{
		TotalTasks:         c.Total,
		CompletedTasks:     c.Completed,
		ActiveTasks:        c.Active,
		CompletionRate:     CompletionRate(c.Completed, c.Total),
		ProductivityChange: ProductivityChange(c.ThisWeekCompleted, c.LastWeekCompleted),
		TasksChange:        c.Today - c.Yesterday,
		ThisWeekCompleted:  c.ThisWeekCompleted,
	}
}

// CompletionRate is completed/total as a rounded percentage, 0 when total is 0
func CompletionRate(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return percent(float64(completed) / float64(total))
}

// ProductivityChange is the week-over-week change in completions as a rounded
// percentage. With no completions last week it is 100 if any happened this week, else 0.
func ProductivityChange(thisWeek, lastWeek int) int {
	switch {
	case lastWeek > 0:
		return percent(float64(thisWeek-lastWeek) / float64(lastWeek))
	case thisWeek > 0:
		return 100
	default:
		return 0
	}
}

// percent rounds ratio*100 half away from zero
func percent(ratio float64) int {
	return int(math.Round(ratio * 100))
}
