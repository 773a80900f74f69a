package habit

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"habittracker/contracts/mq"
	"habittracker/internal/analytics"
	"habittracker/internal/model"
	"habittracker/internal/repository"
	"habittracker/internal/service"
	"habittracker/pkg/db"
	"habittracker/pkg/logger"
	"habittracker/pkg/metrics"
	"habittracker/pkg/trace"
)

var (
	ErrHabitNotFound = errors.New("habit not found")
	ErrFutureDate    = errors.New("cannot toggle a future date")
	ErrEmptyUpdate   = errors.New("no fields to update")
)

const (
	DefaultColor      = "#3B82F6"
	maxNameLength     = 100
	maxDescriptionLen = 500
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

type HabitStore interface {
	Insert(ctx context.Context, q db.DBTX, h *model.Habit) error
	ListByUser(ctx context.Context, userID string, activeOnly bool) ([]model.Habit, error)
	GetByID(ctx context.Context, userID, id string) (*model.Habit, error)
	Update(ctx context.Context, q db.DBTX, h *model.Habit) error
	Delete(ctx context.Context, q db.DBTX, userID, id string) error
}

type EntryStore interface {
	Toggle(ctx context.Context, q db.DBTX, userID, habitID string, date time.Time) (*model.Entry, error)
	ListByUser(ctx context.Context, userID string) ([]model.Entry, error)
	ListByHabit(ctx context.Context, userID, habitID string, from, to time.Time) ([]model.Entry, error)
}

type MilestoneStore interface {
	ListByUser(ctx context.Context, userID string) ([]model.Milestone, error)
}

type TxRunner interface {
	InTx(ctx context.Context, fn func(q db.DBTX) error) error
}

// EventWriter enqueues an outbox event in the caller's transaction.
type EventWriter interface {
	Enqueue(ctx context.Context, q db.DBTX, aggregateType, aggregateID, routingKey string, payload any) error
}

type ViewCache interface {
	Get(ctx context.Context, userID, day, view string, out any) (gen int64, hit bool)
	Set(ctx context.Context, userID string, gen int64, day, view string, v any)
	Invalidate(ctx context.Context, userID string) error
}

type Service struct {
	habits     HabitStore
	entries    EntryStore
	milestones MilestoneStore
	tx         TxRunner
	events     EventWriter
	cache      ViewCache
	logger     *zap.Logger
}

func NewService(
	habits HabitStore,
	entries EntryStore,
	milestones MilestoneStore,
	tx TxRunner,
	events EventWriter,
	cache ViewCache,
	logger *zap.Logger,
) *Service {
	return &Service{
		habits:     habits,
		entries:    entries,
		milestones: milestones,
		tx:         tx,
		events:     events,
		cache:      cache,
		logger:     logger,
	}
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", service.Invalid("name", "is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", service.Invalid("name", "must be at most 100 characters")
	}
	return name, nil
}

func validateDescription(desc string) (string, error) {
	desc = strings.TrimSpace(desc)
	if utf8.RuneCountInString(desc) > maxDescriptionLen {
		return "", service.Invalid("description", "must be at most 500 characters")
	}
	return desc, nil
}

func validateColor(color string) (string, error) {
	if color == "" {
		return DefaultColor, nil
	}
	if !colorPattern.MatchString(color) {
		return "", service.Invalid("color", "must be a #RRGGBB hex color")
	}
	return strings.ToUpper(color), nil
}

func (s *Service) Create(ctx context.Context, userID string, in model.CreateHabitInput) (*model.Habit, error) {
	name, err := validateName(in.Name)
	if err != nil {
		return nil, err
	}
	desc, err := validateDescription(in.Description)
	if err != nil {
		return nil, err
	}
	color, err := validateColor(in.Color)
	if err != nil {
		return nil, err
	}

	h := &model.Habit{
		UserID:      userID,
		Name:        name,
		Description: desc,
		Color:       color,
		IsActive:    in.IsActive == nil || *in.IsActive,
	}

	err = s.tx.InTx(ctx, func(q db.DBTX) error {
		if err := s.habits.Insert(ctx, q, h); err != nil {
			return err
		}
		return s.emitHabit(ctx, q, mq.RoutingKeyHabitCreated, h)
	})
	if err != nil {
		return nil, fmt.Errorf("create habit: %w", err)
	}

	s.invalidate(ctx, userID)
	logger.WithTrace(ctx, s.logger).Info("Habit created", zap.String("habit_id", h.ID), zap.String("user_id", userID))
	return h, nil
}

func (s *Service) Update(ctx context.Context, userID, id string, in model.UpdateHabitInput) (*model.Habit, error) {
	if in.Empty() {
		return nil, ErrEmptyUpdate
	}

	h, err := s.lookup(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		if h.Name, err = validateName(*in.Name); err != nil {
			return nil, err
		}
	}
	if in.Description != nil {
		if h.Description, err = validateDescription(*in.Description); err != nil {
			return nil, err
		}
	}
	if in.Color != nil {
		if h.Color, err = validateColor(*in.Color); err != nil {
			return nil, err
		}
	}
	if in.IsActive != nil {
		h.IsActive = *in.IsActive
	}

	err = s.tx.InTx(ctx, func(q db.DBTX) error {
		if err := s.habits.Update(ctx, q, h); err != nil {
			return err
		}
		return s.emitHabit(ctx, q, mq.RoutingKeyHabitUpdated, h)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("update habit: %w", err)
	}

	s.invalidate(ctx, userID)
	return h, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	h, err := s.lookup(ctx, userID, id)
	if err != nil {
		return err
	}

	err = s.tx.InTx(ctx, func(q db.DBTX) error {
		if err := s.habits.Delete(ctx, q, userID, id); err != nil {
			return err
		}
		return s.emitHabit(ctx, q, mq.RoutingKeyHabitDeleted, h)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrHabitNotFound
		}
		return fmt.Errorf("delete habit: %w", err)
	}

	s.invalidate(ctx, userID)
	logger.WithTrace(ctx, s.logger).Info("Habit deleted", zap.String("habit_id", id), zap.String("user_id", userID))
	return nil
}

// Toggle flips completion of habitID on date, which defaults to the
// calendar day of now. Dates after that day are rejected.
func (s *Service) Toggle(ctx context.Context, userID, habitID, date string, now time.Time) (*model.Entry, error) {
	today := analytics.Day(now)
	day := today
	if date != "" {
		d, err := analytics.ParseDate(date)
		if err != nil {
			return nil, service.Invalid("date", "must be YYYY-MM-DD")
		}
		day = d
	}
	if day.After(today) {
		return nil, ErrFutureDate
	}

	if _, err := s.lookup(ctx, userID, habitID); err != nil {
		return nil, err
	}

	var entry *model.Entry
	err := s.tx.InTx(ctx, func(q db.DBTX) error {
		e, err := s.entries.Toggle(ctx, q, userID, habitID, day)
		if err != nil {
			return err
		}
		entry = e
		return s.events.Enqueue(ctx, q, mq.AggregateEntry, e.ID, mq.RoutingKeyEntryToggled, mq.EntryToggledPayload{
			EntryID:    e.ID,
			HabitID:    e.HabitID,
			UserID:     userID,
			Date:       e.Date,
			Completed:  e.Completed,
			OccurredAt: time.Now().UTC(),
			TraceID:    trace.FromContext(ctx),
		})
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("toggle entry: %w", err)
	}

	metrics.IncrementEntryToggle(entry.Completed)
	s.invalidate(ctx, userID)
	logger.WithTrace(ctx, s.logger).Info("Entry toggled",
		zap.String("habit_id", habitID),
		zap.String("date", entry.Date),
		zap.Bool("completed", entry.Completed),
	)
	return entry, nil
}

func (s *Service) lookup(ctx context.Context, userID, id string) (*model.Habit, error) {
	h, err := s.habits.GetByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, err
	}
	return h, nil
}

func (s *Service) emitHabit(ctx context.Context, q db.DBTX, routingKey string, h *model.Habit) error {
	return s.events.Enqueue(ctx, q, mq.AggregateHabit, h.ID, routingKey, mq.HabitChangedPayload{
		HabitID:    h.ID,
		UserID:     h.UserID,
		Name:       h.Name,
		IsActive:   h.IsActive,
		OccurredAt: time.Now().UTC(),
		TraceID:    trace.FromContext(ctx),
	})
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("View cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}
