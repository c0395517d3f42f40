package storage

import (
	"context"
	"errors"
	"time"

	"github.com/julianstephens/streakd/internal/models"
)

var (
	// ErrNotFound is returned when a row does not exist or is not owned by the caller
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint
	ErrDuplicate = errors.New("duplicate")
)

type Provider interface {
	// Lifecycle
	Init(ctx context.Context) error
	// Migrate applies pending migrations and returns how many ran
	Migrate(ctx context.Context, logFn func(string)) (int, error)
	Load(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error
	SchemaVersion(ctx context.Context) (current, latest int, err error)

	// Habits
	AddHabit(ctx context.Context, habit models.Habit) error
	GetHabit(ctx context.Context, ownerID, id string) (models.Habit, error)
	// ListHabits returns the owner's active habits, newest first.
	ListHabits(ctx context.Context, ownerID string) ([]models.Habit, error)
	// UpdateHabit saves name and color of an active habit.
	UpdateHabit(ctx context.Context, habit models.Habit) error
	// ApplyCompletion sets the streak and last completion instant and
	// increments the lifetime counter. It returns the new lifetime count.
	ApplyCompletion(ctx context.Context, ownerID, id string, streak int, completedAt time.Time) (int, error)
	DeactivateHabit(ctx context.Context, ownerID, id string, at time.Time) error
	CountHabits(ctx context.Context, ownerID string, activeOnly bool) (int, error)
	ListActiveOwners(ctx context.Context) ([]string, error)

	// Completion logs
	// AddCompletionLog returns ErrDuplicate if the habit already has a log
	// for log.Day.
	AddCompletionLog(ctx context.Context, log models.CompletionLog) error
	HasCompletion(ctx context.Context, habitID, day string) (bool, error)
	GetCompletionLogs(ctx context.Context, habitID, startDay, endDay string) ([]models.CompletionLog, error)
	CompletedHabitIDs(ctx context.Context, ownerID, day string) (map[string]bool, error)
	CountCompletions(ctx context.Context, ownerID string) (int, error)

	// Achievements
	HasAchievement(ctx context.Context, ownerID, name string) (bool, error)
	// AddAchievement inserts the unlock unless (owner, name) already exists.
	// It reports whether this call inserted the row.
	AddAchievement(ctx context.Context, unlock models.AchievementUnlock) (bool, error)
	ListAchievements(ctx context.Context, ownerID string) ([]models.AchievementUnlock, error)

	// Tokens
	GetTokenBalance(ctx context.Context, ownerID string) (models.TokenBalance, error)
	IncrementTokens(ctx context.Context, ownerID string, delta int, at time.Time) (int, error)

	// Stats and profile
	UpsertUserStats(ctx context.Context, ownerID string, delta models.StatsDelta, at time.Time) error
	GetUserStats(ctx context.Context, ownerID string) (models.UserStats, error)
	UpsertUser(ctx context.Context, user models.User) error

	// Integrity
	Audit(ctx context.Context) (AuditReport, error)
}

// LedgerMismatch is an owner whose token balance differs from the sum of
// interactive completions and achievement rewards.
type LedgerMismatch struct {
	OwnerID  string
	Balance  int
	Expected int
}

// CounterMismatch is a habit whose lifetime counter differs from its log rows.
type CounterMismatch struct {
	HabitID string
	Counter int
	Logs    int
}

// AuditReport summarises integrity checks run by the doctor command
type AuditReport struct {
	DuplicateLogs    int
	NegativeStreaks  int
	LedgerMismatches []LedgerMismatch
	CounterDrift     []CounterMismatch
}

// OK reports whether the audit found nothing wrong
func (r AuditReport) OK() bool {
	return r.DuplicateLogs == 0 && r.NegativeStreaks == 0 &&
		len(r.LedgerMismatches) == 0 && len(r.CounterDrift) == 0
}
