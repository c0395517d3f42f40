package tracker

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/julianstephens/streakd/internal/achievements"
	"github.com/julianstephens/streakd/internal/constants"
	"github.com/julianstephens/streakd/internal/errors"
	"github.com/julianstephens/streakd/internal/logger"
	"github.com/julianstephens/streakd/internal/metrics"
	"github.com/julianstephens/streakd/internal/models"
	"github.com/julianstephens/streakd/internal/storage"
	"github.com/julianstephens/streakd/internal/streak"
)

// CompletionResult is returned by CompleteHabit
type CompletionResult struct {
	HabitID          string
	HabitName        string
	NewStreak        int
	TokensAwarded    int
	NewBalance       int
	Unlocked         []achievements.Achievement
	TotalCompletions int
	CompletedAt      time.Time
}

// UnlockedNames lists the unlocked achievement names in evaluation order
func (r CompletionResult) UnlockedNames() []string {
	return names(r.Unlocked)
}

// CompleteHabit records today's completion of habitID.
//
// Validation (ownership, already completed today) has no side effects. The
// completion log insert is the idempotency guard: its (habit, day) unique
// constraint turns a concurrent duplicate into AlreadyCompleted before any
// other write. Failures after that point are Internal and may leave earlier
// writes applied.
func (s *Service) CompleteHabit(ctx context.Context, ownerID, habitID string) (CompletionResult, error) {
	const op = "tracker.CompleteHabit"

	if err := requireOwner(op, ownerID); err != nil {
		return CompletionResult{}, err
	}
	if habitID == "" {
		return CompletionResult{}, errors.E(errors.InvalidInput, op, "habitId is required")
	}

	now, day := s.today()

	cctx, cancel := s.withTimeout(ctx)
	habit, err := s.store.GetHabit(cctx, ownerID, habitID)
	cancel()
	if stderrors.Is(err, storage.ErrNotFound) {
		return CompletionResult{}, notFound(op)
	}
	if err != nil {
		return CompletionResult{}, internal(op, ownerID, err, "habit", habitID)
	}

	cctx, cancel = s.withTimeout(ctx)
	done, err := s.store.HasCompletion(cctx, habitID, day)
	cancel()
	if err != nil {
		return CompletionResult{}, internal(op, ownerID, err, "habit", habitID)
	}
	if done {
		metrics.RecordAlreadyCompleted()
		return CompletionResult{}, errors.E(errors.AlreadyCompleted, op, "Habit already completed today")
	}

	newStreak := streak.Next(habit.Streak, habit.LastCompletedAt, now, s.loc)

	cctx, cancel = s.withTimeout(ctx)
	seen, err := s.store.CountCompletions(cctx, ownerID)
	cancel()
	if err != nil {
		return CompletionResult{}, internal(op, ownerID, err, "habit", habitID)
	}

	cctx, cancel = s.withTimeout(ctx)
	activeHabits, err := s.store.CountHabits(cctx, ownerID, true)
	cancel()
	if err != nil {
		return CompletionResult{}, internal(op, ownerID, err, "habit", habitID)
	}

	cctx, cancel = s.withTimeout(ctx)
	err = s.store.AddCompletionLog(cctx, models.CompletionLog{
		ID:                     newID(),
		OwnerID:                ownerID,
		HabitID:                habit.ID,
		HabitName:              habit.Name,
		HabitCategory:          habit.Color,
		Day:                    day,
		CompletedAt:            now,
		StreakAtCompletion:     newStreak,
		TotalCompletionsAtTime: seen + 1,
	})
	cancel()
	if stderrors.Is(err, storage.ErrDuplicate) {
		metrics.RecordAlreadyCompleted()
		return CompletionResult{}, errors.E(errors.AlreadyCompleted, op, "Habit already completed today")
	}
	if err != nil {
		return CompletionResult{}, internal(op, ownerID, err, "habit", habitID)
	}

	// recount so completions of other habits that landed since the first
	// read are included in the total this one crosses
	cctx, cancel = s.withTimeout(ctx)
	total, err := s.store.CountCompletions(cctx, ownerID)
	cancel()
	if err != nil {
		return CompletionResult{}, internal(op, ownerID, err, "habit", habitID)
	}
	priorTotal := total - 1

	cctx, cancel = s.withTimeout(ctx)
	_, err = s.store.ApplyCompletion(cctx, ownerID, habit.ID, newStreak, now)
	cancel()
	if err != nil {
		return CompletionResult{}, internal(op, ownerID, err, "habit", habitID)
	}

	candidates := achievements.Evaluate(
		achievements.Transition{Kind: achievements.KindStreak, Previous: habit.Streak, Current: newStreak},
		achievements.Transition{Kind: achievements.KindTotal, Previous: priorTotal, Current: total},
		achievements.Transition{Kind: achievements.KindDiversity, Previous: activeHabits - 1, Current: activeHabits},
	)
	granted, err := s.grant(ctx, op, ownerID, now, candidates, map[achievements.Kind]int{
		achievements.KindStreak:    newStreak,
		achievements.KindTotal:     total,
		achievements.KindDiversity: activeHabits,
	})
	if err != nil {
		return CompletionResult{}, err
	}

	delta := constants.BaseCompletionReward + achievements.TotalReward(granted)

	cctx, cancel = s.withTimeout(ctx)
	balance, err := s.store.IncrementTokens(cctx, ownerID, delta, now)
	cancel()
	if err != nil {
		return CompletionResult{}, internal(op, ownerID, err, "habit", habitID)
	}

	cctx, cancel = s.withTimeout(ctx)
	err = s.store.UpsertUserStats(cctx, ownerID, models.StatsDelta{
		Completions:   1,
		TokensEarned:  delta,
		LongestStreak: newStreak,
	}, now)
	cancel()
	if err != nil {
		return CompletionResult{}, internal(op, ownerID, err, "habit", habitID)
	}

	metrics.RecordCompletion("interactive")
	metrics.RecordTokens(delta)

	s.pub.Publish(ownerID, models.Event{
		Type:            constants.EventHabitCompleted,
		HabitID:         habit.ID,
		HabitName:       habit.Name,
		NewTokenBalance: balance,
		NewStreak:       newStreak,
		CompletedAt:     now.UTC().Format(time.RFC3339Nano),
	})
	s.publishUnlocks(ownerID, granted)

	logger.Debug("Habit completed", "owner", ownerID, "habit", habit.ID, "streak", newStreak, "tokens", delta)

	return CompletionResult{
		HabitID:          habit.ID,
		HabitName:        habit.Name,
		NewStreak:        newStreak,
		TokensAwarded:    delta,
		NewBalance:       balance,
		Unlocked:         granted,
		TotalCompletions: total,
		CompletedAt:      now,
	}, nil
}

// AutoComplete logs today's completion for every active habit of ownerID
// that has none yet and returns how many it completed. Streaks advance as
// for CompleteHabit, but no achievements are evaluated and no tokens are
// granted. Running it twice on the same day completes nothing the second
// time.
func (s *Service) AutoComplete(ctx context.Context, ownerID string) (int, error) {
	const op = "tracker.AutoComplete"

	if err := requireOwner(op, ownerID); err != nil {
		return 0, err
	}

	now, day := s.today()

	cctx, cancel := s.withTimeout(ctx)
	habits, err := s.store.ListHabits(cctx, ownerID)
	cancel()
	if err != nil {
		return 0, internal(op, ownerID, err)
	}

	cctx, cancel = s.withTimeout(ctx)
	total, err := s.store.CountCompletions(cctx, ownerID)
	cancel()
	if err != nil {
		return 0, internal(op, ownerID, err)
	}

	completed := 0
	longest := 0
	for _, habit := range habits {
		cctx, cancel = s.withTimeout(ctx)
		done, err := s.store.HasCompletion(cctx, habit.ID, day)
		cancel()
		if err != nil {
			return completed, internal(op, ownerID, err, "habit", habit.ID)
		}
		if done {
			continue
		}

		newStreak := streak.Next(habit.Streak, habit.LastCompletedAt, now, s.loc)

		cctx, cancel = s.withTimeout(ctx)
		err = s.store.AddCompletionLog(cctx, models.CompletionLog{
			ID:                     newID(),
			OwnerID:                ownerID,
			HabitID:                habit.ID,
			HabitName:              habit.Name,
			HabitCategory:          habit.Color,
			Day:                    day,
			CompletedAt:            now,
			StreakAtCompletion:     newStreak,
			TotalCompletionsAtTime: total + 1,
			AutoCompleted:          true,
		})
		cancel()
		if stderrors.Is(err, storage.ErrDuplicate) {
			continue
		}
		if err != nil {
			return completed, internal(op, ownerID, err, "habit", habit.ID)
		}

		cctx, cancel = s.withTimeout(ctx)
		_, err = s.store.ApplyCompletion(cctx, ownerID, habit.ID, newStreak, now)
		cancel()
		if err != nil {
			return completed, internal(op, ownerID, err, "habit", habit.ID)
		}

		total++
		completed++
		longest = max(longest, newStreak)
		metrics.RecordCompletion("auto")
	}

	if completed > 0 {
		cctx, cancel = s.withTimeout(ctx)
		err = s.store.UpsertUserStats(cctx, ownerID, models.StatsDelta{
			Completions:   completed,
			LongestStreak: longest,
		}, now)
		cancel()
		if err != nil {
			return completed, internal(op, ownerID, err)
		}
	}

	logger.Info("Auto-complete finished", "owner", ownerID, "completed", completed, "day", day)
	return completed, nil
}

// ActiveOwners lists owners with at least one active habit
func (s *Service) ActiveOwners(ctx context.Context) ([]string, error) {
	cctx, cancel := s.withTimeout(ctx)
	defer cancel()
	owners, err := s.store.ListActiveOwners(cctx)
	if err != nil {
		return nil, errors.Wrap(errors.Internal, "tracker.ActiveOwners", err)
	}
	return owners, nil
}
