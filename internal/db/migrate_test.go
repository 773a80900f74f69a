package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaDeclaresTables(t *testing.T) {
	s := Schema()
	for _, table := range []string{"users", "habits", "habit_entries", "streak_milestones", "outbox_events"} {
		assert.Contains(t, s, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
	assert.Contains(t, s, "UNIQUE (habit_id, date)")
	assert.Contains(t, s, "UNIQUE (habit_id, streak, date)")
}
