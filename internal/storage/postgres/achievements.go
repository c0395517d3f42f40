package postgres

import (
	"context"

	"github.com/julianstephens/streakd/internal/models"
	"github.com/julianstephens/streakd/internal/storage"
)

func (s *Store) HasAchievement(ctx context.Context, ownerID, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
SELECT EXISTS(SELECT 1 FROM achievements WHERE owner_id = $1 AND name = $2)`,
		ownerID, name).Scan(&exists)
	return exists, err
}

func (s *Store) AddAchievement(ctx context.Context, a models.AchievementUnlock) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO achievements (
	id, owner_id, name, description, icon, token_reward, metric_kind, metric_value, unlocked_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (owner_id, name) DO NOTHING`,
		a.ID, a.OwnerID, a.Name, a.Description, a.Icon, a.TokenReward, a.MetricKind, a.MetricValue,
		storage.FormatTime(a.UnlockedAt))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) ListAchievements(ctx context.Context, ownerID string) ([]models.AchievementUnlock, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, owner_id, name, description, icon, token_reward, metric_kind, metric_value, unlocked_at
FROM achievements WHERE owner_id = $1
ORDER BY unlocked_at DESC, name`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	unlocks := []models.AchievementUnlock{}
	for rows.Next() {
		var a models.AchievementUnlock
		var unlockedAt string
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Description, &a.Icon, &a.TokenReward,
			&a.MetricKind, &a.MetricValue, &unlockedAt); err != nil {
			return nil, err
		}
		if a.UnlockedAt, err = storage.ParseTime("unlocked_at", unlockedAt); err != nil {
			return nil, err
		}
		unlocks = append(unlocks, a)
	}
	return unlocks, rows.Err()
}
