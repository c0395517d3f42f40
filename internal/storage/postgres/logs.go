package postgres

import (
	"context"

	"github.com/julianstephens/streakd/internal/models"
	"github.com/julianstephens/streakd/internal/storage"
)

func (s *Store) AddCompletionLog(ctx context.Context, log models.CompletionLog) error {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO habit_logs (
	id, owner_id, habit_id, habit_name, habit_category, day, completed_at,
	streak_at_completion, total_completions_at_time, auto_completed
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (habit_id, day) DO NOTHING`,
		log.ID, log.OwnerID, log.HabitID, log.HabitName, log.HabitCategory, log.Day,
		storage.FormatTime(log.CompletedAt), log.StreakAtCompletion, log.TotalCompletionsAtTime,
		log.AutoCompleted)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrDuplicate
	}
	return nil
}

func (s *Store) HasCompletion(ctx context.Context, habitID, day string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
SELECT EXISTS(SELECT 1 FROM habit_logs WHERE habit_id = $1 AND day = $2)`,
		habitID, day).Scan(&exists)
	return exists, err
}

func (s *Store) GetCompletionLogs(ctx context.Context, habitID, startDay, endDay string) ([]models.CompletionLog, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, owner_id, habit_id, habit_name, habit_category, day, completed_at,
       streak_at_completion, total_completions_at_time, auto_completed
FROM habit_logs
WHERE habit_id = $1 AND day >= $2 AND day <= $3
ORDER BY day`, habitID, startDay, endDay)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []models.CompletionLog{}
	for rows.Next() {
		var l models.CompletionLog
		var completedAt string
		if err := rows.Scan(&l.ID, &l.OwnerID, &l.HabitID, &l.HabitName, &l.HabitCategory, &l.Day,
			&completedAt, &l.StreakAtCompletion, &l.TotalCompletionsAtTime, &l.AutoCompleted); err != nil {
			return nil, err
		}
		if l.CompletedAt, err = storage.ParseTime("completed_at", completedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *Store) CompletedHabitIDs(ctx context.Context, ownerID, day string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT habit_id FROM habit_logs WHERE owner_id = $1 AND day = $2`, ownerID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		done[id] = true
	}
	return done, rows.Err()
}

func (s *Store) CountCompletions(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM habit_logs WHERE owner_id = $1", ownerID).Scan(&n)
	return n, err
}
