package tracker

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/julianstephens/streakd/internal/errors"
	"github.com/julianstephens/streakd/internal/models"
	"github.com/julianstephens/streakd/internal/storage"
)

// Stats is the owner's activity summary
type Stats struct {
	TotalHabitsCreated  int        `json:"totalHabitsCreated"`
	ActiveHabits        int        `json:"activeHabits"`
	TotalCompletions    int        `json:"totalCompletions"`
	TotalTokensEarned   int        `json:"totalTokensEarned"`
	CurrentTokenBalance int        `json:"currentTokenBalance"`
	LongestStreak       int        `json:"longestStreak"`
	TotalAchievements   int        `json:"totalAchievements"`
	LastActivityAt      *time.Time `json:"lastActivityAt"`
}

// TokenBalance returns the owner's balance, zero before the first grant
func (s *Service) TokenBalance(ctx context.Context, ownerID string) (int, error) {
	const op = "tracker.TokenBalance"

	if err := requireOwner(op, ownerID); err != nil {
		return 0, err
	}

	cctx, cancel := s.withTimeout(ctx)
	defer cancel()
	tb, err := s.store.GetTokenBalance(cctx, ownerID)
	if stderrors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, internal(op, ownerID, err)
	}
	return tb.Balance, nil
}

// ListAchievements returns the owner's unlocks, newest first
func (s *Service) ListAchievements(ctx context.Context, ownerID string) ([]models.AchievementUnlock, error) {
	const op = "tracker.ListAchievements"

	if err := requireOwner(op, ownerID); err != nil {
		return nil, err
	}

	cctx, cancel := s.withTimeout(ctx)
	defer cancel()
	unlocks, err := s.store.ListAchievements(cctx, ownerID)
	if err != nil {
		return nil, internal(op, ownerID, err)
	}
	return unlocks, nil
}

// Stats gathers counters, balance and achievement count for the owner
func (s *Service) Stats(ctx context.Context, ownerID string) (Stats, error) {
	const op = "tracker.Stats"

	if err := requireOwner(op, ownerID); err != nil {
		return Stats{}, err
	}

	cctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out Stats
	st, err := s.store.GetUserStats(cctx, ownerID)
	if err != nil && !stderrors.Is(err, storage.ErrNotFound) {
		return Stats{}, internal(op, ownerID, err)
	}
	out.TotalHabitsCreated = st.TotalHabitsCreated
	out.TotalCompletions = st.TotalCompletions
	out.TotalTokensEarned = st.TotalTokensEarned
	out.LongestStreak = st.LongestStreak
	out.LastActivityAt = st.LastActivityAt

	if out.TotalHabitsCreated == 0 {
		if out.TotalHabitsCreated, err = s.store.CountHabits(cctx, ownerID, false); err != nil {
			return Stats{}, internal(op, ownerID, err)
		}
	}
	if out.ActiveHabits, err = s.store.CountHabits(cctx, ownerID, true); err != nil {
		return Stats{}, internal(op, ownerID, err)
	}

	tb, err := s.store.GetTokenBalance(cctx, ownerID)
	if err != nil && !stderrors.Is(err, storage.ErrNotFound) {
		return Stats{}, internal(op, ownerID, err)
	}
	out.CurrentTokenBalance = tb.Balance

	unlocks, err := s.store.ListAchievements(cctx, ownerID)
	if err != nil {
		return Stats{}, internal(op, ownerID, err)
	}
	out.TotalAchievements = len(unlocks)

	return out, nil
}

// SyncUser upserts the owner's profile as reported by the identity provider
func (s *Service) SyncUser(ctx context.Context, user models.User) error {
	const op = "tracker.SyncUser"

	if err := requireOwner(op, user.OwnerID); err != nil {
		return err
	}

	now, _ := s.today()
	user.CreatedAt = now
	user.UpdatedAt = now

	cctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.store.UpsertUser(cctx, user); err != nil {
		return internal(op, user.OwnerID, err)
	}
	return nil
}

// Ping checks that storage is reachable
func (s *Service) Ping(ctx context.Context) error {
	cctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return errors.Wrap(errors.Internal, "tracker.Ping", s.store.Ping(cctx))
}
