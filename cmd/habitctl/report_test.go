package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"habittracker/internal/analytics"
	"habittracker/internal/model"
)

func TestPrintReport(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	habits := []model.HabitWithEntries{
		{Habit: model.Habit{Name: "Read", IsActive: true}, Streak: 4, CompletionRate: 80, TodayCompleted: true},
		{Habit: model.Habit{Name: "Swim", IsActive: false}, Streak: 0, CompletionRate: 10},
	}

	var buf bytes.Buffer
	printReport(&buf, "Alice", now, habits, analytics.Summarize(habits))
	out := buf.String()

	assert.Contains(t, out, "Habits of Alice on 2026-10-19")
	assert.Contains(t, out, "Swim (paused)")
	assert.Contains(t, out, "active 1, done today 1 (100%), total streak 4, best streak 4, average rate 80%")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"migrate", "outbox", "user", "report"} {
		assert.True(t, names[want], want)
	}
}
