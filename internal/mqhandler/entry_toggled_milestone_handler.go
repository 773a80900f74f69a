package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	mqcontracts "habittracker/contracts/mq"
	"habittracker/internal/analytics"
	"habittracker/internal/model"
	"habittracker/pkg/logger"
	"habittracker/pkg/metrics"
	"habittracker/pkg/mq"
	"habittracker/pkg/util"
)

const milestoneHandlerName = "milestone"

// EntryToggledMilestoneHandler records a milestone when a completed entry
// brings the habit's streak to one of the configured lengths.
type EntryToggledMilestoneHandler struct {
	entries    EntryLister
	milestones MilestoneRecorder
	cache      CacheInvalidator
	deduper    Deduper
	thresholds map[int]bool
	logger     *zap.Logger
}

func NewEntryToggledMilestoneHandler(
	entries EntryLister,
	milestones MilestoneRecorder,
	cache CacheInvalidator,
	deduper Deduper,
	thresholds []int,
	logger *zap.Logger,
) *EntryToggledMilestoneHandler {
	set := make(map[int]bool, len(thresholds))
	for _, t := range thresholds {
		if t > 0 {
			set[t] = true
		}
	}
	return &EntryToggledMilestoneHandler{
		entries:    entries,
		milestones: milestones,
		cache:      cache,
		deduper:    deduper,
		thresholds: set,
		logger:     logger,
	}
}

func (h *EntryToggledMilestoneHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.EntryToggledPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal EntryToggledPayload", zap.Error(err))
		return util.Permanent(fmt.Errorf("decode entry.toggled: %w", err))
	}

	log := logger.WithTrace(ctx, h.logger)
	log.Info("Handling entry.toggled event",
		zap.String("habit_id", p.HabitID),
		zap.String("user_id", p.UserID),
		zap.String("date", p.Date),
		zap.Bool("completed", p.Completed),
	)

	if _, err := uuid.Parse(p.UserID); err != nil {
		return util.Permanent(fmt.Errorf("invalid user_id %q", p.UserID))
	}
	if _, err := uuid.Parse(p.HabitID); err != nil {
		return util.Permanent(fmt.Errorf("invalid habit_id %q", p.HabitID))
	}
	day, err := analytics.ParseDate(p.Date)
	if err != nil {
		return util.Permanent(err)
	}

	eventID := mq.MessageIDFromContext(ctx)
	if eventID == "" {
		eventID = fmt.Sprintf("%s:%s:%t", p.EntryID, p.Date, p.Completed)
	}
	if !h.deduper.AcquireOnce(ctx, milestoneHandlerName, eventID) {
		return nil
	}

	if err := h.handle(ctx, log, p, day); err != nil {
		h.deduper.Release(ctx, milestoneHandlerName, eventID)
		return err
	}
	return nil
}

func (h *EntryToggledMilestoneHandler) handle(ctx context.Context, log *zap.Logger, p mqcontracts.EntryToggledPayload, day time.Time) error {
	if err := h.cache.Invalidate(ctx, p.UserID); err != nil {
		log.Warn("Cache invalidation failed", zap.String("user_id", p.UserID), zap.Error(err))
	}

	if !p.Completed {
		return nil
	}

	entries, err := h.entries.ListByHabit(ctx, p.UserID, p.HabitID, time.Time{}, day)
	if err != nil {
		return fmt.Errorf("load entries: %w", err)
	}

	streak := analytics.StreakEndingOn(entries, day)
	if !h.thresholds[streak] {
		log.Debug("No milestone reached", zap.String("habit_id", p.HabitID), zap.Int("streak", streak))
		return nil
	}

	m := &model.Milestone{HabitID: p.HabitID, UserID: p.UserID, Streak: streak, Date: p.Date}
	created, err := h.milestones.Insert(ctx, m, day)
	if err != nil {
		return fmt.Errorf("record milestone: %w", err)
	}
	if !created {
		log.Info("Milestone already recorded", zap.String("habit_id", p.HabitID), zap.Int("streak", streak))
		return nil
	}

	metrics.IncrementMilestone(strconv.Itoa(streak))
	log.Info("Streak milestone reached",
		zap.String("habit_id", p.HabitID),
		zap.String("user_id", p.UserID),
		zap.Int("streak", streak),
		zap.String("date", p.Date),
	)
	return nil
}
