package tracker

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/julianstephens/streakd/internal/constants"
	"github.com/julianstephens/streakd/internal/models"
	"github.com/julianstephens/streakd/internal/storage/sqlite"
)

// testClock is a settable wall clock safe for concurrent use
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{now: t}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// recorder collects published events
type recorder struct {
	mu     sync.Mutex
	events map[string][]models.Event
}

func newRecorder() *recorder {
	return &recorder{events: make(map[string][]models.Event)}
}

func (r *recorder) Publish(ownerID string, ev models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[ownerID] = append(r.events[ownerID], ev)
}

func (r *recorder) ofType(ownerID string, typ constants.EventType) []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Event
	for _, ev := range r.events[ownerID] {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

var day1 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func dayN(n int) time.Time {
	return day1.AddDate(0, 0, n-1)
}

type fixture struct {
	store *sqlite.Store
	svc   *Service
	clock *testClock
	pub   *recorder
}

func setup(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "streakd.db"))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	clock := newTestClock(day1)
	pub := newRecorder()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return &fixture{
		store: store,
		svc:   New(store, pub, time.UTC, opts...),
		clock: clock,
		pub:   pub,
	}
}

func (f *fixture) createHabit(t *testing.T, owner, name string) models.Habit {
	t.Helper()
	res, err := f.svc.CreateHabit(context.Background(), owner, name, "#22c55e")
	if err != nil {
		t.Fatalf("CreateHabit(%q) error = %v", name, err)
	}
	return res.Habit
}

func (f *fixture) complete(t *testing.T, owner, habitID string) CompletionResult {
	t.Helper()
	res, err := f.svc.CompleteHabit(context.Background(), owner, habitID)
	if err != nil {
		t.Fatalf("CompleteHabit() error = %v", err)
	}
	return res
}

func (f *fixture) balance(t *testing.T, owner string) int {
	t.Helper()
	b, err := f.svc.TokenBalance(context.Background(), owner)
	if err != nil {
		t.Fatalf("TokenBalance() error = %v", err)
	}
	return b
}
