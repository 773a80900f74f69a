package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"habittracker/internal/model"
	"habittracker/pkg/db"
)

type EntryRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewEntryRepository(db *pgxpool.Pool, logger *zap.Logger) *EntryRepository {
	return &EntryRepository{db: db, logger: logger}
}

const entryColumns = `id::text, habit_id::text, user_id::text, to_char(date, 'YYYY-MM-DD'), completed, created_at`

// Toggle flips the entry of (habit, date), creating it as completed when
// absent. The upsert keeps one entry per habit and date under concurrency.
func (r *EntryRepository) Toggle(ctx context.Context, q db.DBTX, userID, habitID string, date time.Time) (*model.Entry, error) {
	query := `
        INSERT INTO habit_entries (habit_id, user_id, date, completed)
        VALUES ($1, $2, $3, TRUE)
        ON CONFLICT (habit_id, date)
        DO UPDATE SET completed = NOT habit_entries.completed
        RETURNING ` + entryColumns

	var e model.Entry
	if err := scanEntry(q.QueryRow(ctx, query, habitID, userID, date), &e); err != nil {
		// habit deleted since the caller looked it up
		if db.IsForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to toggle entry",
			zap.String("habit_id", habitID),
			zap.Time("date", date),
			zap.Error(err),
		)
		return nil, fmt.Errorf("toggle entry: %w", err)
	}

	r.logger.Debug("Entry toggled",
		zap.String("habit_id", habitID),
		zap.String("date", e.Date),
		zap.Bool("completed", e.Completed),
	)
	return &e, nil
}

// ListByUser returns all entries of the user's habits, newest date first.
func (r *EntryRepository) ListByUser(ctx context.Context, userID string) ([]model.Entry, error) {
	query := `
        SELECT ` + entryColumns + `
        FROM habit_entries
        WHERE user_id = $1
        ORDER BY date DESC, habit_id
    `
	return r.query(ctx, query, userID)
}

// ListByHabit returns entries of one habit, newest first. Zero from/to
// leave that side of the range open.
func (r *EntryRepository) ListByHabit(ctx context.Context, userID, habitID string, from, to time.Time) ([]model.Entry, error) {
	query := `
        SELECT ` + entryColumns + `
        FROM habit_entries
        WHERE user_id = $1 AND habit_id = $2
          AND ($3::date IS NULL OR date >= $3::date)
          AND ($4::date IS NULL OR date <= $4::date)
        ORDER BY date DESC
    `
	return r.query(ctx, query, userID, habitID, nullableDate(from), nullableDate(to))
}

func (r *EntryRepository) query(ctx context.Context, query string, args ...any) ([]model.Entry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list entries", zap.Error(err))
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := []model.Entry{}
	for rows.Next() {
		var e model.Entry
		if err := scanEntry(rows, &e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullableDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func scanEntry(row pgx.Row, e *model.Entry) error {
	return row.Scan(&e.ID, &e.HabitID, &e.UserID, &e.Date, &e.Completed, &e.CreatedAt)
}
