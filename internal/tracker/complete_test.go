package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/julianstephens/streakd/internal/constants"
	"github.com/julianstephens/streakd/internal/errors"
	"github.com/julianstephens/streakd/internal/models"
	"github.com/julianstephens/streakd/internal/storage"
)

func TestCompleteHabitStreakScenario(t *testing.T) {
	f := setup(t)
	h := f.createHabit(t, "user_1", "Exercise")
	if h.Streak != 0 {
		t.Fatalf("new habit streak = %d", h.Streak)
	}

	res := f.complete(t, "user_1", h.ID)
	if res.NewStreak != 1 || res.TokensAwarded != 3 || res.TotalCompletions != 1 {
		t.Errorf("day 1: %+v", res)
	}
	if got := res.UnlockedNames(); len(got) != 1 || got[0] != "First Step" {
		t.Errorf("day 1 unlocked %v, want [First Step]", got)
	}

	f.clock.Set(dayN(2))
	res = f.complete(t, "user_1", h.ID)
	if res.NewStreak != 2 || res.TokensAwarded != 1 || len(res.Unlocked) != 0 {
		t.Errorf("day 2: %+v", res)
	}

	f.clock.Set(dayN(4))
	res = f.complete(t, "user_1", h.ID)
	if res.NewStreak != 1 || res.TokensAwarded != 1 {
		t.Errorf("day 4 after gap: %+v", res)
	}

	if got := f.balance(t, "user_1"); got != 5 {
		t.Errorf("balance = %d, want 5", got)
	}
}

func TestCompleteHabitTwiceSameDay(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	h := f.createHabit(t, "user_1", "Read")
	f.complete(t, "user_1", h.ID)

	f.clock.Set(day1.Add(14 * time.Hour))
	_, err := f.svc.CompleteHabit(ctx, "user_1", h.ID)
	if !errors.IsAlreadyCompleted(err) {
		t.Fatalf("second completion error = %v, want AlreadyCompleted", err)
	}
	if msg := errors.MessageOf(err); msg != "Habit already completed today" {
		t.Errorf("message = %q", msg)
	}

	if got := f.balance(t, "user_1"); got != 3 {
		t.Errorf("balance = %d, want 3", got)
	}
	n, _ := f.store.CountCompletions(ctx, "user_1")
	if n != 1 {
		t.Errorf("log rows = %d, want 1", n)
	}
	got, _ := f.store.GetHabit(ctx, "user_1", h.ID)
	if got.Streak != 1 || got.TotalCompletions != 1 {
		t.Errorf("habit changed by rejected completion: %+v", got)
	}
}

func TestCompleteHabitValidation(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	h := f.createHabit(t, "user_1", "Meditate")
	deleted := f.createHabit(t, "user_1", "Old")
	if err := f.svc.DeleteHabit(ctx, "user_1", deleted.ID); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		owner   string
		habitID string
		kind    errors.Kind
	}{
		{"no owner", "", h.ID, errors.Unauthenticated},
		{"no habit id", "user_1", "", errors.InvalidInput},
		{"unknown habit", "user_1", "does-not-exist", errors.NotFound},
		{"other owner's habit", "user_2", h.ID, errors.NotFound},
		{"deleted habit", "user_1", deleted.ID, errors.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CompleteHabit(ctx, tt.owner, tt.habitID)
			if errors.KindOf(err) != tt.kind {
				t.Errorf("error = %v, want kind %s", err, tt.kind)
			}
		})
	}

	if n, _ := f.store.CountCompletions(ctx, "user_1"); n != 0 {
		t.Errorf("rejected completions wrote %d logs", n)
	}
}

func TestConcurrentCompletionsSameHabit(t *testing.T) {
	f := setup(t)
	h := f.createHabit(t, "user_1", "Water")

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CompleteHabit(context.Background(), "user_1", h.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok, dup := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.IsAlreadyCompleted(err):
			dup++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || dup != workers-1 {
		t.Errorf("succeeded=%d rejected=%d", ok, dup)
	}
	if got := f.balance(t, "user_1"); got != 3 {
		t.Errorf("balance = %d, want 3", got)
	}
	got, _ := f.store.GetHabit(context.Background(), "user_1", h.ID)
	if got.Streak != 1 || got.TotalCompletions != 1 {
		t.Errorf("habit after race = %+v", got)
	}
}

func TestStreakAchievementsAcrossDays(t *testing.T) {
	f := setup(t)
	h := f.createHabit(t, "user_1", "Journal")

	unlocked := map[int][]string{}
	for day := 1; day <= 7; day++ {
		f.clock.Set(dayN(day))
		res := f.complete(t, "user_1", h.ID)
		if res.NewStreak != day {
			t.Fatalf("day %d streak = %d", day, res.NewStreak)
		}
		unlocked[day] = res.UnlockedNames()
	}

	if len(unlocked[3]) != 1 || unlocked[3][0] != "Consistency Starter" {
		t.Errorf("day 3 unlocked %v", unlocked[3])
	}
	if len(unlocked[7]) != 1 || unlocked[7][0] != "Weekly Warrior" {
		t.Errorf("day 7 unlocked %v", unlocked[7])
	}

	// 7 base tokens + First Step 2 + Consistency Starter 5 + Weekly Warrior 10
	if got := f.balance(t, "user_1"); got != 24 {
		t.Errorf("balance = %d, want 24", got)
	}
}

func TestTokenBalanceMatchesLedger(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	a := f.createHabit(t, "user_1", "A")
	b := f.createHabit(t, "user_1", "B")

	completions := 0
	for day := 1; day <= 12; day++ {
		f.clock.Set(dayN(day))
		f.complete(t, "user_1", a.ID)
		completions++
		if day%3 != 0 {
			f.complete(t, "user_1", b.ID)
			completions++
		}
	}

	unlocks, err := f.svc.ListAchievements(ctx, "user_1")
	if err != nil {
		t.Fatal(err)
	}
	rewards := 0
	for _, u := range unlocks {
		rewards += u.TokenReward
	}

	if got := f.balance(t, "user_1"); got != completions+rewards {
		t.Errorf("balance = %d, want %d completions + %d rewards", got, completions, rewards)
	}

	report, err := f.store.Audit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !report.OK() {
		t.Errorf("audit = %+v", report)
	}
}

func TestTotalCompletionAchievementWithDiversityReevaluation(t *testing.T) {
	f := setup(t)

	var habits []string
	for i := 0; i < 10; i++ {
		habits = append(habits, f.createHabit(t, "user_1", string(rune('A'+i))).ID)
	}
	// Habit Collector (5) and Variety Seeker (10) on creation
	if got := f.balance(t, "user_1"); got != 30 {
		t.Fatalf("balance after creation = %d, want 30", got)
	}

	var last CompletionResult
	for _, id := range habits {
		last = f.complete(t, "user_1", id)
	}

	if last.TotalCompletions != 10 {
		t.Errorf("total = %d, want 10", last.TotalCompletions)
	}
	if got := last.UnlockedNames(); len(got) != 1 || got[0] != "Getting Started" {
		t.Errorf("10th completion unlocked %v, want [Getting Started]", got)
	}

	// 30 + 10 base + First Step 2 + Getting Started 5; Variety Seeker is not paid twice
	if got := f.balance(t, "user_1"); got != 47 {
		t.Errorf("balance = %d, want 47", got)
	}
}

func TestCompleteHabitPublishesEvents(t *testing.T) {
	f := setup(t)
	h := f.createHabit(t, "user_1", "Walk")
	f.complete(t, "user_1", h.ID)

	completed := f.pub.ofType("user_1", constants.EventHabitCompleted)
	if len(completed) != 1 {
		t.Fatalf("habit_completed events = %d", len(completed))
	}
	ev := completed[0]
	if ev.HabitID != h.ID || ev.HabitName != "Walk" || ev.NewStreak != 1 || ev.NewTokenBalance != 3 {
		t.Errorf("event = %+v", ev)
	}
	if _, err := time.Parse(time.RFC3339Nano, ev.CompletedAt); err != nil {
		t.Errorf("completedAt %q: %v", ev.CompletedAt, err)
	}

	unlocked := f.pub.ofType("user_1", constants.EventAchievementUnlocked)
	if len(unlocked) != 1 || unlocked[0].Name != "First Step" {
		t.Errorf("achievement events = %+v", unlocked)
	}
	if other := f.pub.ofType("user_2", constants.EventHabitCompleted); len(other) != 0 {
		t.Error("events leaked to another owner")
	}
}

func TestDayBoundaryUsesCanonicalZone(t *testing.T) {
	store := setup(t).store
	plus10 := time.FixedZone("UTC+10", 10*60*60)
	clock := newTestClock(time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)) // 23:00 local
	svc := New(store, nil, plus10, WithClock(clock.Now))

	res, err := svc.CreateHabit(context.Background(), "user_1", "Sleep", "blue")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CompleteHabit(context.Background(), "user_1", res.Habit.ID); err != nil {
		t.Fatal(err)
	}

	clock.Set(time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)) // 01:00 next local day
	got, err := svc.CompleteHabit(context.Background(), "user_1", res.Habit.ID)
	if err != nil {
		t.Fatalf("completion after local midnight: %v", err)
	}
	if got.NewStreak != 2 {
		t.Errorf("streak = %d, want 2", got.NewStreak)
	}
}

// racingStore reports achievements as missing so the insert itself has to
// detect that another request already unlocked them
type racingStore struct {
	storage.Provider
}

func (racingStore) HasAchievement(context.Context, string, string) (bool, error) {
	return false, nil
}

func TestLostUnlockRaceIsNotRewarded(t *testing.T) {
	f := setup(t)
	h := f.createHabit(t, "user_1", "Stretch")
	f.complete(t, "user_1", h.ID)

	// a new habit's first completion crosses First Step again
	svc := New(racingStore{f.store}, f.pub, time.UTC, WithClock(f.clock.Now))
	other := f.createHabit(t, "user_1", "Yoga")

	res, err := svc.CompleteHabit(context.Background(), "user_1", other.ID)
	if err != nil {
		t.Fatalf("CompleteHabit() error = %v", err)
	}
	if res.TokensAwarded != 1 || len(res.Unlocked) != 0 {
		t.Errorf("lost race result = %+v, want base reward only", res)
	}
	if got := f.balance(t, "user_1"); got != 4 {
		t.Errorf("balance = %d, want 4", got)
	}
}

// slowStore blocks on CountCompletions until the context expires
type slowStore struct {
	storage.Provider
}

func (slowStore) CountCompletions(ctx context.Context, _ string) (int, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestStorageTimeoutIsInternal(t *testing.T) {
	f := setup(t)
	h := f.createHabit(t, "user_1", "Floss")

	svc := New(slowStore{f.store}, f.pub, time.UTC, WithClock(f.clock.Now), WithStorageTimeout(20*time.Millisecond))
	_, err := svc.CompleteHabit(context.Background(), "user_1", h.ID)
	if errors.KindOf(err) != errors.Internal {
		t.Fatalf("error = %v, want Internal", err)
	}
	if errors.MessageOf(err) != "Internal server error" {
		t.Errorf("internal message leaked: %q", errors.MessageOf(err))
	}
	if n := len(f.pub.ofType("user_1", constants.EventHabitCompleted)); n != 0 {
		t.Errorf("published %d events for a failed completion", n)
	}
}

func TestAutoCompleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	a := f.createHabit(t, "user_1", "A")
	f.createHabit(t, "user_1", "B")
	f.createHabit(t, "user_1", "C")
	f.complete(t, "user_1", a.ID)

	n, err := f.svc.AutoComplete(ctx, "user_1")
	if err != nil {
		t.Fatalf("AutoComplete() error = %v", err)
	}
	if n != 2 {
		t.Errorf("first sweep completed %d, want 2", n)
	}

	n, err = f.svc.AutoComplete(ctx, "user_1")
	if err != nil {
		t.Fatalf("AutoComplete() error = %v", err)
	}
	if n != 0 {
		t.Errorf("second sweep completed %d, want 0", n)
	}

	if got := f.balance(t, "user_1"); got != 3 {
		t.Errorf("auto-complete changed balance to %d", got)
	}
	if got := len(f.pub.ofType("user_1", constants.EventHabitCompleted)); got != 1 {
		t.Errorf("habit_completed events = %d, want 1", got)
	}

	logs, _ := f.store.GetCompletionLogs(ctx, a.ID, "2024-03-01", "2024-03-01")
	if len(logs) != 1 || logs[0].AutoCompleted {
		t.Errorf("interactive log = %+v", logs)
	}

	report, err := f.store.Audit(ctx)
	if err != nil || !report.OK() {
		t.Errorf("audit = %+v, %v", report, err)
	}
}

func TestAutoCompleteKeepsStreakAlive(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	h := f.createHabit(t, "user_1", "Guitar")
	f.complete(t, "user_1", h.ID)

	f.clock.Set(dayN(2))
	if n, err := f.svc.AutoComplete(ctx, "user_1"); err != nil || n != 1 {
		t.Fatalf("AutoComplete() = %d, %v", n, err)
	}
	got, _ := f.store.GetHabit(ctx, "user_1", h.ID)
	if got.Streak != 2 {
		t.Errorf("streak after auto-complete = %d, want 2", got.Streak)
	}

	f.clock.Set(dayN(3))
	res := f.complete(t, "user_1", h.ID)
	if res.NewStreak != 3 {
		t.Errorf("streak = %d, want 3", res.NewStreak)
	}
	if names := res.UnlockedNames(); len(names) != 1 || names[0] != "Consistency Starter" {
		t.Errorf("unlocked %v", names)
	}

	if _, err := f.svc.AutoComplete(ctx, ""); !errors.IsUnauthenticated(err) {
		t.Errorf("AutoComplete without owner error = %v", err)
	}
}

func TestActiveOwners(t *testing.T) {
	f := setup(t)
	f.createHabit(t, "user_b", "x")
	f.createHabit(t, "user_a", "y")

	owners, err := f.svc.ActiveOwners(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(owners) != 2 || owners[0] != "user_a" {
		t.Errorf("ActiveOwners() = %v", owners)
	}
}

// interleavingStore lands one extra completion log just before the wrapped
// insert, as a concurrent completion of another habit would
type interleavingStore struct {
	storage.Provider
	extra *models.CompletionLog
}

func (s *interleavingStore) AddCompletionLog(ctx context.Context, log models.CompletionLog) error {
	if s.extra != nil {
		extra := *s.extra
		s.extra = nil
		if err := s.Provider.AddCompletionLog(ctx, extra); err != nil {
			return err
		}
	}
	return s.Provider.AddCompletionLog(ctx, log)
}

func TestTotalThresholdCountsInterleavedCompletions(t *testing.T) {
	f := setup(t)

	var habits []models.Habit
	for i := 0; i < 10; i++ {
		habits = append(habits, f.createHabit(t, "user_1", string(rune('A'+i))))
	}
	for _, h := range habits[:8] {
		f.complete(t, "user_1", h.ID)
	}

	now := f.clock.Now()
	store := &interleavingStore{Provider: f.store, extra: &models.CompletionLog{
		ID:                     "interleaved",
		OwnerID:                "user_1",
		HabitID:                habits[8].ID,
		HabitName:              habits[8].Name,
		Day:                    now.UTC().Format(constants.DateFormat),
		CompletedAt:            now,
		StreakAtCompletion:     1,
		TotalCompletionsAtTime: 9,
	}}
	svc := New(store, f.pub, time.UTC, WithClock(f.clock.Now))

	res, err := svc.CompleteHabit(context.Background(), "user_1", habits[9].ID)
	if err != nil {
		t.Fatalf("CompleteHabit() error = %v", err)
	}
	if res.TotalCompletions != 10 {
		t.Errorf("total = %d, want 10", res.TotalCompletions)
	}
	found := false
	for _, name := range res.UnlockedNames() {
		if name == "Getting Started" {
			found = true
		}
	}
	if !found {
		t.Errorf("unlocked %v, want Getting Started", res.UnlockedNames())
	}
}
