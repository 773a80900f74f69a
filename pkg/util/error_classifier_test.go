package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryableError(t *testing.T) {
	var syntaxErr error
	syntaxErr = json.Unmarshal([]byte("{"), &struct{}{})

	tests := []struct {
		name      string
		err       error
		retryable bool
		errType   string
	}{
		{"nil", nil, false, ""},
		{"permanent", Permanent(errors.New("bad payload")), false, "permanent"},
		{"json syntax", syntaxErr, false, "json_decode_error"},
		{"no rows", fmt.Errorf("load habit: %w", pgx.ErrNoRows), false, "not_found"},
		{"duplicate", errors.New("ERROR: duplicate key value violates unique constraint"), false, "duplicate_key"},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), true, "timeout"},
		{"canceled", context.Canceled, false, "context_canceled"},
		{"url error", &url.Error{Op: "Get", URL: "http://x", Err: errors.New("refused")}, true, "network_error"},
		{"connection", errors.New("failed to connect to `host=db`: connection refused"), true, "connection_error"},
		{"unknown", errors.New("boom"), false, "unknown_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retryable, errType := IsRetryableError(tt.err)
			assert.Equal(t, tt.retryable, retryable)
			assert.Equal(t, tt.errType, errType)
		})
	}
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(1, 3, true))
	assert.True(t, ShouldRetry(3, 3, true))
	assert.False(t, ShouldRetry(4, 3, true))
	assert.False(t, ShouldRetry(1, 3, false))
}

func TestPermanentUnwraps(t *testing.T) {
	base := errors.New("base")
	assert.ErrorIs(t, Permanent(base), base)
	assert.Nil(t, Permanent(nil))
}

func TestFormatRetryKey(t *testing.T) {
	assert.Equal(t, "retry:entry.toggled.milestone.q:42", FormatRetryKey("entry.toggled.milestone.q", "42"))
}
