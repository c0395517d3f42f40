package tracker

import (
	"context"
	stderrors "errors"
	"strings"
	"unicode/utf8"

	"github.com/julianstephens/streakd/internal/achievements"
	"github.com/julianstephens/streakd/internal/constants"
	"github.com/julianstephens/streakd/internal/errors"
	"github.com/julianstephens/streakd/internal/metrics"
	"github.com/julianstephens/streakd/internal/models"
	"github.com/julianstephens/streakd/internal/storage"
)

// CreateResult is returned by CreateHabit
type CreateResult struct {
	Habit         models.Habit
	Unlocked      []achievements.Achievement
	TokensAwarded int
	NewBalance    int
}

// UnlockedNames lists the unlocked achievement names in catalog order
func (r CreateResult) UnlockedNames() []string {
	return names(r.Unlocked)
}

// HabitUpdate carries an edit. An empty Color keeps the current one.
type HabitUpdate struct {
	Name  string
	Color string
}

func validateName(op, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.E(errors.InvalidInput, op, "Name is required")
	}
	if utf8.RuneCountInString(name) > constants.MaxHabitNameLength {
		return "", errors.E(errors.InvalidInput, op, "Name is too long")
	}
	return name, nil
}

func validateColor(op, color string, required bool) (string, error) {
	color = strings.TrimSpace(color)
	if color == "" && required {
		return "", errors.E(errors.InvalidInput, op, "Color is required")
	}
	if utf8.RuneCountInString(color) > constants.MaxHabitColorLength {
		return "", errors.E(errors.InvalidInput, op, "Color is too long")
	}
	return color, nil
}

// CreateHabit inserts a new active habit and evaluates diversity achievements
// against the owner's active habit count before and after the insert.
func (s *Service) CreateHabit(ctx context.Context, ownerID, name, color string) (CreateResult, error) {
	const op = "tracker.CreateHabit"

	if err := requireOwner(op, ownerID); err != nil {
		return CreateResult{}, err
	}
	name, err := validateName(op, name)
	if err != nil {
		return CreateResult{}, err
	}
	color, err = validateColor(op, color, true)
	if err != nil {
		return CreateResult{}, err
	}

	now, _ := s.today()

	cctx, cancel := s.withTimeout(ctx)
	prior, err := s.store.CountHabits(cctx, ownerID, true)
	cancel()
	if err != nil {
		return CreateResult{}, internal(op, ownerID, err)
	}

	habit := models.Habit{
		ID:        newID(),
		OwnerID:   ownerID,
		Name:      name,
		Color:     color,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	cctx, cancel = s.withTimeout(ctx)
	err = s.store.AddHabit(cctx, habit)
	cancel()
	if err != nil {
		return CreateResult{}, internal(op, ownerID, err)
	}

	current := prior + 1
	candidates := achievements.CrossedThresholds(achievements.KindDiversity, prior, current)
	granted, err := s.grant(ctx, op, ownerID, now, candidates, map[achievements.Kind]int{
		achievements.KindDiversity: current,
	})
	if err != nil {
		return CreateResult{}, err
	}

	result := CreateResult{Habit: habit, Unlocked: granted}
	tokens := achievements.TotalReward(granted)

	if tokens > 0 {
		cctx, cancel = s.withTimeout(ctx)
		balance, err := s.store.IncrementTokens(cctx, ownerID, tokens, now)
		cancel()
		if err != nil {
			return CreateResult{}, internal(op, ownerID, err)
		}
		result.TokensAwarded = tokens
		result.NewBalance = balance
		metrics.RecordTokens(tokens)
	}

	cctx, cancel = s.withTimeout(ctx)
	err = s.store.UpsertUserStats(cctx, ownerID, models.StatsDelta{HabitsCreated: 1, TokensEarned: tokens}, now)
	cancel()
	if err != nil {
		return CreateResult{}, internal(op, ownerID, err)
	}

	if tokens > 0 {
		s.pub.Publish(ownerID, models.Event{Type: constants.EventTokenUpdate, NewBalance: result.NewBalance})
	}
	s.publishUnlocks(ownerID, granted)

	return result, nil
}

// ListHabits returns the owner's active habits, newest first, with whether
// each has been completed today
func (s *Service) ListHabits(ctx context.Context, ownerID string) ([]models.HabitStatus, error) {
	const op = "tracker.ListHabits"

	if err := requireOwner(op, ownerID); err != nil {
		return nil, err
	}
	_, day := s.today()

	cctx, cancel := s.withTimeout(ctx)
	habits, err := s.store.ListHabits(cctx, ownerID)
	cancel()
	if err != nil {
		return nil, internal(op, ownerID, err)
	}

	cctx, cancel = s.withTimeout(ctx)
	done, err := s.store.CompletedHabitIDs(cctx, ownerID, day)
	cancel()
	if err != nil {
		return nil, internal(op, ownerID, err)
	}

	statuses := make([]models.HabitStatus, 0, len(habits))
	for _, h := range habits {
		statuses = append(statuses, models.HabitStatus{
			ID:              h.ID,
			Name:            h.Name,
			Color:           h.Color,
			Streak:          h.Streak,
			LastCompletedAt: h.LastCompletedAt,
			CompletedToday:  done[h.ID],
		})
	}
	return statuses, nil
}

// UpdateHabit renames or recolors an active habit
func (s *Service) UpdateHabit(ctx context.Context, ownerID, habitID string, upd HabitUpdate) (models.Habit, error) {
	const op = "tracker.UpdateHabit"

	if err := requireOwner(op, ownerID); err != nil {
		return models.Habit{}, err
	}
	if habitID == "" {
		return models.Habit{}, errors.E(errors.InvalidInput, op, "habitId is required")
	}
	name, err := validateName(op, upd.Name)
	if err != nil {
		return models.Habit{}, err
	}
	color, err := validateColor(op, upd.Color, false)
	if err != nil {
		return models.Habit{}, err
	}

	cctx, cancel := s.withTimeout(ctx)
	habit, err := s.store.GetHabit(cctx, ownerID, habitID)
	cancel()
	if stderrors.Is(err, storage.ErrNotFound) {
		return models.Habit{}, notFound(op)
	}
	if err != nil {
		return models.Habit{}, internal(op, ownerID, err, "habit", habitID)
	}

	habit.Name = name
	if color != "" {
		habit.Color = color
	}
	habit.UpdatedAt, _ = s.today()

	cctx, cancel = s.withTimeout(ctx)
	err = s.store.UpdateHabit(cctx, habit)
	cancel()
	if stderrors.Is(err, storage.ErrNotFound) {
		return models.Habit{}, notFound(op)
	}
	if err != nil {
		return models.Habit{}, internal(op, ownerID, err, "habit", habitID)
	}
	return habit, nil
}

// DeleteHabit soft-deletes a habit. Its logs and any achievements it helped
// unlock are kept.
func (s *Service) DeleteHabit(ctx context.Context, ownerID, habitID string) error {
	const op = "tracker.DeleteHabit"

	if err := requireOwner(op, ownerID); err != nil {
		return err
	}
	if habitID == "" {
		return errors.E(errors.InvalidInput, op, "habitId is required")
	}

	now, _ := s.today()

	cctx, cancel := s.withTimeout(ctx)
	err := s.store.DeactivateHabit(cctx, ownerID, habitID, now)
	cancel()
	if stderrors.Is(err, storage.ErrNotFound) {
		return notFound(op)
	}
	if err != nil {
		return internal(op, ownerID, err, "habit", habitID)
	}
	return nil
}
