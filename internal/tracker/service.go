// Package tracker runs habit creation and completion: it computes streaks,
// unlocks achievements, grants tokens and publishes realtime events.
package tracker

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/streakd/internal/achievements"
	"github.com/julianstephens/streakd/internal/constants"
	"github.com/julianstephens/streakd/internal/errors"
	"github.com/julianstephens/streakd/internal/logger"
	"github.com/julianstephens/streakd/internal/metrics"
	"github.com/julianstephens/streakd/internal/models"
	"github.com/julianstephens/streakd/internal/storage"
	"github.com/julianstephens/streakd/internal/streak"
)

// Publisher delivers events to an owner's open realtime channels.
// Publish must not block.
type Publisher interface {
	Publish(ownerID string, ev models.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, models.Event) {}

// Option configures a Service
type Option func(*Service)

// WithClock replaces time.Now, used by tests to move between calendar days
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithStorageTimeout bounds each storage round trip
func WithStorageTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// Service is the completion orchestrator. It holds no per-owner state; all
// concurrency control is delegated to storage uniqueness constraints.
type Service struct {
	store   storage.Provider
	pub     Publisher
	loc     *time.Location
	now     func() time.Time
	timeout time.Duration
}

func New(store storage.Provider, pub Publisher, loc *time.Location, opts ...Option) *Service {
	if pub == nil {
		pub = nopPublisher{}
	}
	if loc == nil {
		loc = time.Local
	}
	s := &Service{
		store:   store,
		pub:     pub,
		loc:     loc,
		now:     time.Now,
		timeout: constants.DefaultStorageTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location is the canonical zone for day boundaries
func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) today() (time.Time, string) {
	now := s.now().In(s.loc)
	return now, streak.DayKey(now, s.loc)
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func requireOwner(op, ownerID string) error {
	if ownerID == "" {
		return errors.E(errors.Unauthenticated, op, "Unauthorized")
	}
	return nil
}

// internal logs err with context and classifies it as Internal
func internal(op, ownerID string, err error, keyvals ...any) error {
	kv := append([]any{"op", op, "owner", ownerID, "error", err}, keyvals...)
	logger.Error("Storage operation failed", kv...)
	return errors.Wrap(errors.Internal, op, err)
}

func notFound(op string) error {
	return errors.E(errors.NotFound, op, "Habit not found")
}

func newID() string {
	return uuid.New().String()
}

// grant check-then-inserts each crossed achievement and returns the ones this
// call actually inserted. A lost insert race is treated as already unlocked.
func (s *Service) grant(ctx context.Context, op, ownerID string, now time.Time, candidates []achievements.Achievement, metric map[achievements.Kind]int) ([]achievements.Achievement, error) {
	var granted []achievements.Achievement
	for _, a := range candidates {
		cctx, cancel := s.withTimeout(ctx)
		has, err := s.store.HasAchievement(cctx, ownerID, a.Name)
		cancel()
		if err != nil {
			return granted, internal(op, ownerID, err, "achievement", a.Name)
		}
		if has {
			continue
		}

		cctx, cancel = s.withTimeout(ctx)
		inserted, err := s.store.AddAchievement(cctx, models.AchievementUnlock{
			ID:          newID(),
			OwnerID:     ownerID,
			Name:        a.Name,
			Description: a.Description,
			Icon:        a.Icon,
			TokenReward: a.TokenReward,
			MetricKind:  string(a.Kind),
			MetricValue: metric[a.Kind],
			UnlockedAt:  now,
		})
		cancel()
		if err != nil && !stderrors.Is(err, storage.ErrDuplicate) {
			return granted, internal(op, ownerID, err, "achievement", a.Name)
		}
		if !inserted {
			metrics.RecordLostUnlockRace()
			logger.Debug("Achievement already unlocked by a concurrent request", "owner", ownerID, "achievement", a.Name)
			continue
		}

		metrics.RecordUnlock(string(a.Kind))
		logger.Info("Achievement unlocked", "owner", ownerID, "achievement", a.Name, "reward", a.TokenReward)
		granted = append(granted, a)
	}
	return granted, nil
}

func (s *Service) publishUnlocks(ownerID string, granted []achievements.Achievement) {
	for _, a := range granted {
		s.pub.Publish(ownerID, models.Event{Type: constants.EventAchievementUnlocked, Name: a.Name})
	}
}

func names(achs []achievements.Achievement) []string {
	out := make([]string, 0, len(achs))
	for _, a := range achs {
		out = append(out, a.Name)
	}
	return out
}
