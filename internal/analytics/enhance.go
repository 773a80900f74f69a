package analytics

import (
	"math"
	"time"

	"habittracker/internal/model"
)

// Enhance attaches entries and derived state to each habit. Habit order is
// preserved; entries keep their input order and entries of unknown habits are
// dropped.
func Enhance(habits []model.Habit, entries []model.Entry, today time.Time) []model.HabitWithEntries {
	byHabit := make(map[string][]model.Entry, len(habits))
	for _, e := range entries {
		byHabit[e.HabitID] = append(byHabit[e.HabitID], e)
	}

	todayStr := FormatDate(Day(today))
	out := make([]model.HabitWithEntries, 0, len(habits))
	for _, h := range habits {
		out = append(out, enhanceOne(h, byHabit[h.ID], todayStr, today))
	}
	return out
}

// EnhanceOne is Enhance for a single habit whose entries are already known.
func EnhanceOne(h model.Habit, entries []model.Entry, today time.Time) model.HabitWithEntries {
	return enhanceOne(h, entries, FormatDate(Day(today)), today)
}

func enhanceOne(h model.Habit, entries []model.Entry, todayStr string, today time.Time) model.HabitWithEntries {
	if entries == nil {
		entries = []model.Entry{}
	}
	todayCompleted := false
	for _, e := range entries {
		if e.Date == todayStr {
			todayCompleted = e.Completed
			break
		}
	}
	return model.HabitWithEntries{
		Habit:          h,
		Entries:        entries,
		Streak:         CalculateStreak(entries, today),
		CompletionRate: CalculateCompletionRate(entries),
		TodayCompleted: todayCompleted,
	}
}

// Overview aggregates derived state over active habits.
type Overview struct {
	ActiveHabits          int `json:"active_habits"`
	CompletedToday        int `json:"completed_today"`
	TodayPercentage       int `json:"today_percentage"`
	TotalStreak           int `json:"total_streak"`
	BestStreak            int `json:"best_streak"`
	AverageCompletionRate int `json:"average_completion_rate"`
}

// Summarize computes the dashboard and analytics figures. Inactive habits
// are excluded from every figure.
func Summarize(habits []model.HabitWithEntries) Overview {
	var o Overview
	rateSum := 0
	for _, h := range habits {
		if !h.IsActive {
			continue
		}
		o.ActiveHabits++
		if h.TodayCompleted {
			o.CompletedToday++
		}
		o.TotalStreak += h.Streak
		if h.Streak > o.BestStreak {
			o.BestStreak = h.Streak
		}
		rateSum += h.CompletionRate
	}
	o.TodayPercentage = percent(o.CompletedToday, o.ActiveHabits)
	if o.ActiveHabits > 0 {
		o.AverageCompletionRate = int(math.Round(float64(rateSum) / float64(o.ActiveHabits)))
	}
	return o
}

// ActiveOnly filters out inactive habits, keeping order.
func ActiveOnly(habits []model.HabitWithEntries) []model.HabitWithEntries {
	out := make([]model.HabitWithEntries, 0, len(habits))
	for _, h := range habits {
		if h.IsActive {
			out = append(out, h)
		}
	}
	return out
}
