package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habittracker/pkg/trace"
)

func TestNextAttemptBacksOffLinearly(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	status, next := nextAttempt(1, 5, now)
	assert.Equal(t, StatusPending, status)
	require.NotNil(t, next)
	assert.Equal(t, now.Add(5*time.Second), *next)

	status, next = nextAttempt(3, 5, now)
	assert.Equal(t, StatusPending, status)
	assert.Equal(t, now.Add(15*time.Second), *next)
}

func TestNextAttemptFailsAfterMaxRetries(t *testing.T) {
	status, next := nextAttempt(5, 5, time.Now())
	assert.Equal(t, StatusFailed, status)
	assert.Nil(t, next)
}

func TestContextWithPayloadTrace(t *testing.T) {
	payload, err := json.Marshal(map[string]string{"trace_id": "t-123", "habit_id": "h"})
	require.NoError(t, err)

	ctx := contextWithPayloadTrace(context.Background(), payload)
	assert.Equal(t, "t-123", trace.FromContext(ctx))

	ctx = contextWithPayloadTrace(context.Background(), json.RawMessage(`not json`))
	assert.Empty(t, trace.FromContext(ctx))
}
