package mq

import "time"

// Routing keys on the habit.events exchange.
const (
	RoutingKeyHabitCreated = "habit.created"
	RoutingKeyHabitUpdated = "habit.updated"
	RoutingKeyHabitDeleted = "habit.deleted"
	RoutingKeyEntryToggled = "entry.toggled"
)

const (
	AggregateHabit = "habit"
	AggregateEntry = "habit_entry"
)

// HabitChangedPayload is published for habit.created, habit.updated and
// habit.deleted.
type HabitChangedPayload struct {
	HabitID    string    `json:"habit_id"`
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	IsActive   bool      `json:"is_active"`
	OccurredAt time.Time `json:"occurred_at"`
	TraceID    string    `json:"trace_id,omitempty"`
}

type EntryToggledPayload struct {
	EntryID    string    `json:"entry_id"`
	HabitID    string    `json:"habit_id"`
	UserID     string    `json:"user_id"`
	Date       string    `json:"date"`
	Completed  bool      `json:"completed"`
	OccurredAt time.Time `json:"occurred_at"`
	TraceID    string    `json:"trace_id,omitempty"`
}
