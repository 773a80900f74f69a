package mqhandler

import (
	"context"
	"time"

	"habittracker/internal/model"
)

type Deduper interface {
	AcquireOnce(ctx context.Context, handler, eventID string) bool
	Release(ctx context.Context, handler, eventID string)
}

type CacheInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

type EntryLister interface {
	ListByHabit(ctx context.Context, userID, habitID string, from, to time.Time) ([]model.Entry, error)
}

type MilestoneRecorder interface {
	Insert(ctx context.Context, m *model.Milestone, date time.Time) (bool, error)
}
