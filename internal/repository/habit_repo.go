package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"habittracker/internal/model"
	"habittracker/pkg/db"
)

type HabitRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewHabitRepository(db *pgxpool.Pool, logger *zap.Logger) *HabitRepository {
	return &HabitRepository{
		db:     db,
		logger: logger,
	}
}

const habitColumns = `id::text, user_id::text, name, description, color, is_active, created_at, updated_at`

func (r *HabitRepository) Insert(ctx context.Context, q db.DBTX, h *model.Habit) error {
	r.logger.Debug("Inserting habit",
		zap.String("user_id", h.UserID),
		zap.String("name", h.Name),
	)

	query := `
        INSERT INTO habits (user_id, name, description, color, is_active)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING ` + habitColumns

	err := scanHabit(q.QueryRow(ctx, query,
		h.UserID,
		h.Name,
		h.Description,
		h.Color,
		h.IsActive,
	), h)
	if err != nil {
		r.logger.Error("Failed to insert habit", zap.Error(err))
		return fmt.Errorf("insert habit: %w", err)
	}

	r.logger.Info("Habit inserted successfully",
		zap.String("id", h.ID),
		zap.String("user_id", h.UserID),
	)
	return nil
}

// ListByUser returns the user's habits, oldest first.
func (r *HabitRepository) ListByUser(ctx context.Context, userID string, activeOnly bool) ([]model.Habit, error) {
	r.logger.Debug("Listing habits for user", zap.String("user_id", userID), zap.Bool("active_only", activeOnly))

	query := `
        SELECT ` + habitColumns + `
        FROM habits
        WHERE user_id = $1 AND ($2 = FALSE OR is_active = TRUE)
        ORDER BY created_at ASC, id ASC
    `

	rows, err := r.db.Query(ctx, query, userID, activeOnly)
	if err != nil {
		r.logger.Error("Failed to list habits", zap.Error(err))
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()

	habits := []model.Habit{}
	for rows.Next() {
		var h model.Habit
		if err := scanHabit(rows, &h); err != nil {
			r.logger.Error("Failed to scan habit", zap.Error(err))
			return nil, err
		}
		habits = append(habits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r.logger.Debug("Listed habits",
		zap.String("user_id", userID),
		zap.Int("count", len(habits)),
	)
	return habits, nil
}

// GetByID returns the habit only when it belongs to userID.
func (r *HabitRepository) GetByID(ctx context.Context, userID, id string) (*model.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE id = $1 AND user_id = $2`

	var h model.Habit
	if err := scanHabit(r.db.QueryRow(ctx, query, id, userID), &h); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get habit", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return &h, nil
}

// Update writes every mutable field of h and refreshes its timestamps.
func (r *HabitRepository) Update(ctx context.Context, q db.DBTX, h *model.Habit) error {
	query := `
        UPDATE habits
        SET name = $3, description = $4, color = $5, is_active = $6, updated_at = NOW()
        WHERE id = $1 AND user_id = $2
        RETURNING ` + habitColumns

	err := scanHabit(q.QueryRow(ctx, query, h.ID, h.UserID, h.Name, h.Description, h.Color, h.IsActive), h)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		r.logger.Error("Failed to update habit", zap.String("id", h.ID), zap.Error(err))
		return fmt.Errorf("update habit: %w", err)
	}
	return nil
}

// Delete removes the habit; entries and milestones go with it.
func (r *HabitRepository) Delete(ctx context.Context, q db.DBTX, userID, id string) error {
	tag, err := q.Exec(ctx, `DELETE FROM habits WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		r.logger.Error("Failed to delete habit", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("delete habit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	r.logger.Info("Habit deleted", zap.String("id", id), zap.String("user_id", userID))
	return nil
}

func scanHabit(row pgx.Row, h *model.Habit) error {
	return row.Scan(
		&h.ID,
		&h.UserID,
		&h.Name,
		&h.Description,
		&h.Color,
		&h.IsActive,
		&h.CreatedAt,
		&h.UpdatedAt,
	)
}
