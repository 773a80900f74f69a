package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habittracker/internal/model"
)

func TestMonthCalendar(t *testing.T) {
	habit := model.Habit{ID: "h1", Color: "#10B981"}
	entries := []model.Entry{
		entry("2026-10-01", true),
		entry("2026-10-02", false),
		entry("2026-10-19", true),
		entry("2026-09-30", true),
	}
	month := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	view := MonthCalendar(habit, entries, month, today)
	require.Len(t, view.Days, 31)
	assert.Equal(t, "2026-10", view.Month)
	assert.Equal(t, "#10B981", view.Color)
	assert.Equal(t, 2, view.CompletedDays)

	first := view.Days[0]
	assert.Equal(t, "2026-10-01", first.Date)
	assert.Equal(t, int(time.Thursday), first.Weekday)
	assert.True(t, first.Completed)
	assert.True(t, first.CanToggle)

	second := view.Days[1]
	assert.True(t, second.HasEntry)
	assert.False(t, second.Completed)

	todayCell := view.Days[18]
	assert.True(t, todayCell.IsToday)
	assert.False(t, todayCell.IsFuture)
	assert.True(t, todayCell.CanToggle)

	tomorrow := view.Days[19]
	assert.True(t, tomorrow.IsFuture)
	assert.False(t, tomorrow.CanToggle)
}

func TestMonthCalendarFebruaryLeapYear(t *testing.T) {
	view := MonthCalendar(model.Habit{ID: "h1"}, nil, time.Date(2028, 2, 10, 0, 0, 0, 0, time.UTC), today)
	assert.Len(t, view.Days, 29)
	for _, d := range view.Days {
		assert.True(t, d.IsFuture)
		assert.False(t, d.CanToggle)
	}
}

func TestMonthCalendarIgnoresOtherHabits(t *testing.T) {
	entries := []model.Entry{{HabitID: "other", Date: "2026-10-05", Completed: true}}
	view := MonthCalendar(model.Habit{ID: "h1"}, entries, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), today)
	assert.Equal(t, 0, view.CompletedDays)
}
