package analytics

import (
	"math"
	"time"

	"habittracker/internal/model"
)

func completedDays(entries []model.Entry) map[string]bool {
	done := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Completed {
			done[e.Date] = true
		}
	}
	return done
}

// CalculateStreak counts consecutive completed days ending today, or ending
// yesterday when today has no completed entry yet. Entries after today are
// ignored.
func CalculateStreak(entries []model.Entry, today time.Time) int {
	done := completedDays(entries)
	if len(done) == 0 {
		return 0
	}

	day := Day(today)
	if !done[FormatDate(day)] {
		day = day.AddDate(0, 0, -1)
	}
	return countBack(done, day)
}

// StreakEndingOn counts consecutive completed days ending exactly on day.
func StreakEndingOn(entries []model.Entry, day time.Time) int {
	return countBack(completedDays(entries), Day(day))
}

func countBack(done map[string]bool, day time.Time) int {
	streak := 0
	for done[FormatDate(day)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// CalculateCompletionRate is the rounded percentage of entries marked
// completed; 0 when there are no entries.
func CalculateCompletionRate(entries []model.Entry) int {
	if len(entries) == 0 {
		return 0
	}
	completed := 0
	for _, e := range entries {
		if e.Completed {
			completed++
		}
	}
	return percent(completed, len(entries))
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
