package model

import "time"

type Habit struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Entry is the completion record of one habit on one calendar day.
// Date is formatted YYYY-MM-DD.
type Entry struct {
	ID        string    `json:"id"`
	HabitID   string    `json:"habit_id"`
	UserID    string    `json:"user_id"`
	Date      string    `json:"date"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

// HabitWithEntries is a habit together with its entries and derived state.
type HabitWithEntries struct {
	Habit
	Entries        []Entry `json:"entries"`
	Streak         int     `json:"streak"`
	CompletionRate int     `json:"completion_rate"`
	TodayCompleted bool    `json:"today_completed"`
}

type CreateHabitInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	IsActive    *bool  `json:"is_active"`
}

// UpdateHabitInput is a partial update; nil fields are left unchanged.
type UpdateHabitInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
	IsActive    *bool   `json:"is_active"`
}

func (in UpdateHabitInput) Empty() bool {
	return in.Name == nil && in.Description == nil && in.Color == nil && in.IsActive == nil
}

type Milestone struct {
	ID        string    `json:"id"`
	HabitID   string    `json:"habit_id"`
	UserID    string    `json:"user_id"`
	HabitName string    `json:"habit_name,omitempty"`
	Streak    int       `json:"streak"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"created_at"`
}
