package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habittracker/internal/model"
)

func TestEnhanceGroupsEntriesPerHabit(t *testing.T) {
	habits := []model.Habit{
		{ID: "water", Name: "Drink water", IsActive: true},
		{ID: "read", Name: "Read", IsActive: true},
		{ID: "run", Name: "Run", IsActive: false},
	}
	entries := []model.Entry{
		{HabitID: "water", Date: "2026-10-19", Completed: true},
		{HabitID: "water", Date: "2026-10-18", Completed: true},
		{HabitID: "read", Date: "2026-10-18", Completed: true},
		{HabitID: "read", Date: "2026-10-17", Completed: false},
		{HabitID: "ghost", Date: "2026-10-19", Completed: true},
	}

	got := Enhance(habits, entries, today)
	require.Len(t, got, 3)

	assert.Equal(t, "water", got[0].ID)
	assert.Len(t, got[0].Entries, 2)
	assert.Equal(t, 2, got[0].Streak)
	assert.Equal(t, 100, got[0].CompletionRate)
	assert.True(t, got[0].TodayCompleted)

	assert.Equal(t, "read", got[1].ID)
	assert.Equal(t, 1, got[1].Streak)
	assert.Equal(t, 50, got[1].CompletionRate)
	assert.False(t, got[1].TodayCompleted)

	assert.Equal(t, "run", got[2].ID)
	assert.NotNil(t, got[2].Entries)
	assert.Empty(t, got[2].Entries)
	assert.Equal(t, 0, got[2].Streak)
	assert.Equal(t, 0, got[2].CompletionRate)
}

func TestEnhanceTodayToggledOff(t *testing.T) {
	habits := []model.Habit{{ID: "h1", IsActive: true}}
	entries := []model.Entry{entry("2026-10-19", false)}

	got := Enhance(habits, entries, today)
	assert.False(t, got[0].TodayCompleted)
	assert.Equal(t, 0, got[0].CompletionRate)
}

func TestSummarize(t *testing.T) {
	habits := []model.HabitWithEntries{
		{Habit: model.Habit{ID: "a", IsActive: true}, Streak: 5, CompletionRate: 80, TodayCompleted: true},
		{Habit: model.Habit{ID: "b", IsActive: true}, Streak: 2, CompletionRate: 45, TodayCompleted: false},
		{Habit: model.Habit{ID: "c", IsActive: true}, Streak: 0, CompletionRate: 0, TodayCompleted: false},
		{Habit: model.Habit{ID: "d", IsActive: false}, Streak: 40, CompletionRate: 100, TodayCompleted: true},
	}

	o := Summarize(habits)
	assert.Equal(t, 3, o.ActiveHabits)
	assert.Equal(t, 1, o.CompletedToday)
	assert.Equal(t, 33, o.TodayPercentage)
	assert.Equal(t, 7, o.TotalStreak)
	assert.Equal(t, 5, o.BestStreak)
	assert.Equal(t, 42, o.AverageCompletionRate)
}

func TestSummarizeNoActiveHabits(t *testing.T) {
	o := Summarize([]model.HabitWithEntries{
		{Habit: model.Habit{ID: "d", IsActive: false}, Streak: 3, CompletionRate: 90},
	})
	assert.Equal(t, Overview{}, o)
	assert.Equal(t, Overview{}, Summarize(nil))
}

func TestActiveOnly(t *testing.T) {
	got := ActiveOnly([]model.HabitWithEntries{
		{Habit: model.Habit{ID: "a", IsActive: true}},
		{Habit: model.Habit{ID: "b", IsActive: false}},
		{Habit: model.Habit{ID: "c", IsActive: true}},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}
