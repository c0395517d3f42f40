package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/julianstephens/streakd/internal/models"
	"github.com/julianstephens/streakd/internal/storage"
)

const habitColumns = `id, owner_id, name, color, streak, total_completions, last_completed_at,
	is_active, created_at, updated_at, deleted_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanHabit(row scanner) (models.Habit, error) {
	var h models.Habit
	var createdAt, updatedAt string
	var lastCompletedAt, deletedAt sql.NullString

	err := row.Scan(&h.ID, &h.OwnerID, &h.Name, &h.Color, &h.Streak, &h.TotalCompletions,
		&lastCompletedAt, &h.IsActive, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return models.Habit{}, err
	}

	if h.CreatedAt, err = storage.ParseTime("created_at", createdAt); err != nil {
		return models.Habit{}, err
	}
	if h.UpdatedAt, err = storage.ParseTime("updated_at", updatedAt); err != nil {
		return models.Habit{}, err
	}
	if h.LastCompletedAt, err = storage.ParseNullTime("last_completed_at", lastCompletedAt); err != nil {
		return models.Habit{}, err
	}
	if h.DeletedAt, err = storage.ParseNullTime("deleted_at", deletedAt); err != nil {
		return models.Habit{}, err
	}
	return h, nil
}

func (s *Store) AddHabit(ctx context.Context, habit models.Habit) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO habits (`+habitColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		habit.ID, habit.OwnerID, habit.Name, habit.Color, habit.Streak, habit.TotalCompletions,
		storage.NullTime(habit.LastCompletedAt), habit.IsActive,
		storage.FormatTime(habit.CreatedAt), storage.FormatTime(habit.UpdatedAt), storage.NullTime(habit.DeletedAt))
	return err
}

func (s *Store) GetHabit(ctx context.Context, ownerID, id string) (models.Habit, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+habitColumns+`
FROM habits WHERE id = $1 AND owner_id = $2 AND is_active`, id, ownerID)

	h, err := scanHabit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Habit{}, storage.ErrNotFound
	}
	return h, err
}

func (s *Store) ListHabits(ctx context.Context, ownerID string) ([]models.Habit, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+habitColumns+`
FROM habits WHERE owner_id = $1 AND is_active
ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	habits := []models.Habit{}
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

func (s *Store) UpdateHabit(ctx context.Context, habit models.Habit) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE habits SET name = $1, color = $2, updated_at = $3
WHERE id = $4 AND owner_id = $5 AND is_active`,
		habit.Name, habit.Color, storage.FormatTime(habit.UpdatedAt), habit.ID, habit.OwnerID)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (s *Store) ApplyCompletion(ctx context.Context, ownerID, id string, streak int, completedAt time.Time) (int, error) {
	ts := storage.FormatTime(completedAt)
	var total int
	err := s.db.QueryRowContext(ctx, `
UPDATE habits
SET streak = $1, last_completed_at = $2, total_completions = total_completions + 1, updated_at = $2
WHERE id = $3 AND owner_id = $4 AND is_active
RETURNING total_completions`,
		streak, ts, id, ownerID).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrNotFound
	}
	return total, err
}

func (s *Store) DeactivateHabit(ctx context.Context, ownerID, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE habits SET is_active = FALSE, deleted_at = $1, updated_at = $1
WHERE id = $2 AND owner_id = $3 AND is_active`,
		storage.FormatTime(at), id, ownerID)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (s *Store) CountHabits(ctx context.Context, ownerID string, activeOnly bool) (int, error) {
	query := "SELECT COUNT(*) FROM habits WHERE owner_id = $1"
	if activeOnly {
		query += " AND is_active"
	}
	var n int
	err := s.db.QueryRowContext(ctx, query, ownerID).Scan(&n)
	return n, err
}

func (s *Store) ListActiveOwners(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT owner_id FROM habits WHERE is_active ORDER BY owner_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, err
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
