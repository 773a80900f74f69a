package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "habittracker/contracts/mq"
	"habittracker/pkg/logger"
	"habittracker/pkg/util"
)

// HabitChangedCacheHandler drops the owner's cached views when a habit is
// created, updated or deleted on any API instance.
type HabitChangedCacheHandler struct {
	cache  CacheInvalidator
	logger *zap.Logger
}

func NewHabitChangedCacheHandler(cache CacheInvalidator, logger *zap.Logger) *HabitChangedCacheHandler {
	return &HabitChangedCacheHandler{cache: cache, logger: logger}
}

func (h *HabitChangedCacheHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.HabitChangedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal HabitChangedPayload", zap.Error(err))
		return util.Permanent(fmt.Errorf("decode habit event: %w", err))
	}
	if p.UserID == "" {
		return util.Permanent(fmt.Errorf("habit event %s without user_id", p.HabitID))
	}

	if err := h.cache.Invalidate(ctx, p.UserID); err != nil {
		return fmt.Errorf("invalidate views of %s: %w", p.UserID, err)
	}

	logger.WithTrace(ctx, h.logger).Debug("Habit views invalidated",
		zap.String("habit_id", p.HabitID),
		zap.String("user_id", p.UserID),
	)
	return nil
}
