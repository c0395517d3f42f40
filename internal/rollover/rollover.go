// Package rollover runs the server-owned daily auto-complete sweep.
package rollover

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/julianstephens/streakd/internal/logger"
	"github.com/julianstephens/streakd/internal/metrics"
)

// Sweeper is the part of the tracker a sweep needs
type Sweeper interface {
	ActiveOwners(ctx context.Context) ([]string, error)
	AutoComplete(ctx context.Context, ownerID string) (int, error)
}

// Result summarizes one sweep
type Result struct {
	Owners    int
	Completed int
	Failed    int
}

// Scheduler runs RunOnce on a cron schedule in the canonical zone
type Scheduler struct {
	sweeper Sweeper
	cron    *cron.Cron
	entry   cron.EntryID
}

// cronLogger routes cron's own messages (skipped ticks) to the app logger
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Warn("Rollover "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("Rollover "+msg, append(keysAndValues, "err", err)...)
}

// New parses schedule (standard five-field cron) and binds it to loc
func New(sweeper Sweeper, schedule string, loc *time.Location) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		sweeper: sweeper,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{})),
		),
	}
	id, err := s.cron.AddFunc(schedule, s.tick)
	if err != nil {
		return nil, fmt.Errorf("invalid rollover schedule %q: %w", schedule, err)
	}
	s.entry = id
	return s, nil
}

func (s *Scheduler) tick() {
	if _, err := s.RunOnce(context.Background()); err != nil {
		logger.Error("Rollover failed", "err", err)
	}
}

// Start begins scheduling in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info("Rollover scheduled", "next", s.Next())
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to
// expire
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next scheduled run, zero before Start
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// RunOnce auto-completes every owner with active habits. A failing owner is
// logged and skipped; only failing to list owners is an error.
func (s *Scheduler) RunOnce(ctx context.Context) (Result, error) {
	return Sweep(ctx, s.sweeper)
}

// Sweep is RunOnce without a Scheduler, used by the sweep command
func Sweep(ctx context.Context, sweeper Sweeper) (Result, error) {
	start := time.Now()
	defer func() { metrics.ObserveRollover(time.Since(start)) }()

	owners, err := sweeper.ActiveOwners(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{Owners: len(owners)}
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n, err := sweeper.AutoComplete(ctx, owner)
		if err != nil {
			res.Failed++
			metrics.RecordRolloverOwner(false)
			logger.Error("Rollover failed for owner", "owner", owner, "err", err)
			continue
		}
		res.Completed += n
		metrics.RecordRolloverOwner(true)
	}

	logger.Info("Rollover finished", "owners", res.Owners, "completed", res.Completed, "failed", res.Failed,
		"duration", time.Since(start))
	return res, nil
}
