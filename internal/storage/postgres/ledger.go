package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/julianstephens/streakd/internal/models"
	"github.com/julianstephens/streakd/internal/storage"
)

func (s *Store) GetTokenBalance(ctx context.Context, ownerID string) (models.TokenBalance, error) {
	var tb models.TokenBalance
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT owner_id, balance, created_at, updated_at FROM tokens WHERE owner_id = $1`, ownerID).
		Scan(&tb.OwnerID, &tb.Balance, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TokenBalance{}, storage.ErrNotFound
	}
	if err != nil {
		return models.TokenBalance{}, err
	}
	if tb.CreatedAt, err = storage.ParseTime("created_at", createdAt); err != nil {
		return models.TokenBalance{}, err
	}
	if tb.UpdatedAt, err = storage.ParseTime("updated_at", updatedAt); err != nil {
		return models.TokenBalance{}, err
	}
	return tb, nil
}

func (s *Store) IncrementTokens(ctx context.Context, ownerID string, delta int, at time.Time) (int, error) {
	ts := storage.FormatTime(at)
	var balance int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tokens (owner_id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id) DO UPDATE SET
			balance = tokens.balance + excluded.balance,
			updated_at = excluded.updated_at
		RETURNING balance`,
		ownerID, delta, ts, ts).Scan(&balance)
	return balance, err
}

func (s *Store) UpsertUserStats(ctx context.Context, ownerID string, d models.StatsDelta, at time.Time) error {
	ts := storage.FormatTime(at)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_stats (
			owner_id, total_habits_created, total_completions, total_tokens_earned, longest_streak,
			last_activity_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (owner_id) DO UPDATE SET
			total_habits_created = user_stats.total_habits_created + excluded.total_habits_created,
			total_completions = user_stats.total_completions + excluded.total_completions,
			total_tokens_earned = user_stats.total_tokens_earned + excluded.total_tokens_earned,
			longest_streak = GREATEST(user_stats.longest_streak, excluded.longest_streak),
			last_activity_at = excluded.last_activity_at,
			updated_at = excluded.updated_at`,
		ownerID, d.HabitsCreated, d.Completions, d.TokensEarned, d.LongestStreak, ts, ts, ts)
	return err
}

func (s *Store) GetUserStats(ctx context.Context, ownerID string) (models.UserStats, error) {
	var st models.UserStats
	var lastActivity sql.NullString
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT owner_id, total_habits_created, total_completions, total_tokens_earned, longest_streak,
		       last_activity_at, created_at, updated_at
		FROM user_stats WHERE owner_id = $1`, ownerID).
		Scan(&st.OwnerID, &st.TotalHabitsCreated, &st.TotalCompletions, &st.TotalTokensEarned,
			&st.LongestStreak, &lastActivity, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserStats{}, storage.ErrNotFound
	}
	if err != nil {
		return models.UserStats{}, err
	}
	if st.LastActivityAt, err = storage.ParseNullTime("last_activity_at", lastActivity); err != nil {
		return models.UserStats{}, err
	}
	if st.CreatedAt, err = storage.ParseTime("created_at", createdAt); err != nil {
		return models.UserStats{}, err
	}
	if st.UpdatedAt, err = storage.ParseTime("updated_at", updatedAt); err != nil {
		return models.UserStats{}, err
	}
	return st, nil
}

func (s *Store) UpsertUser(ctx context.Context, u models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (owner_id, email, first_name, last_name, username, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (owner_id) DO UPDATE SET
			email = excluded.email,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			username = excluded.username,
			image_url = excluded.image_url,
			updated_at = excluded.updated_at`,
		u.OwnerID, u.Email, u.FirstName, u.LastName, u.Username, u.ImageURL,
		storage.FormatTime(u.CreatedAt), storage.FormatTime(u.UpdatedAt))
	return err
}
