package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"habittracker/internal/model"
)

type MilestoneRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewMilestoneRepository(db *pgxpool.Pool, logger *zap.Logger) *MilestoneRepository {
	return &MilestoneRepository{db: db, logger: logger}
}

// Insert records a milestone. It reports false when the same habit already
// reached that streak on that date.
func (r *MilestoneRepository) Insert(ctx context.Context, m *model.Milestone, date time.Time) (bool, error) {
	query := `
        INSERT INTO streak_milestones (habit_id, user_id, streak, date)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (habit_id, streak, date) DO NOTHING
    `
	tag, err := r.db.Exec(ctx, query, m.HabitID, m.UserID, m.Streak, date)
	if err != nil {
		r.logger.Error("Failed to insert milestone", zap.String("habit_id", m.HabitID), zap.Error(err))
		return false, fmt.Errorf("insert milestone: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByUser returns the user's milestones, most recent first.
func (r *MilestoneRepository) ListByUser(ctx context.Context, userID string) ([]model.Milestone, error) {
	query := `
        SELECT m.id::text, m.habit_id::text, m.user_id::text, h.name, m.streak,
               to_char(m.date, 'YYYY-MM-DD'), m.created_at
        FROM streak_milestones m
        JOIN habits h ON h.id = m.habit_id
        WHERE m.user_id = $1
        ORDER BY m.date DESC, m.streak DESC
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list milestones", zap.Error(err))
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	defer rows.Close()

	out := []model.Milestone{}
	for rows.Next() {
		var m model.Milestone
		if err := rows.Scan(&m.ID, &m.HabitID, &m.UserID, &m.HabitName, &m.Streak, &m.Date, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
