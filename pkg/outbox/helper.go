package outbox

import (
	"context"
	"encoding/json"

	"habittracker/pkg/db"
)

// Writer enqueues domain events inside the caller's transaction.
type Writer struct {
	repo *Repository
}

func NewWriter(repo *Repository) *Writer {
	return &Writer{repo: repo}
}

// Enqueue 在事务中插入事件到 outbox
func (w *Writer) Enqueue(ctx context.Context, q db.DBTX, aggregateType, aggregateID, routingKey string, payload any) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return w.repo.InsertEvent(ctx, q, &Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		RoutingKey:    routingKey,
		Payload:       payloadJSON,
		Status:        StatusPending,
	})
}
