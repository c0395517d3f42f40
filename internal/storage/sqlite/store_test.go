package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/julianstephens/streakd/internal/models"
	"github.com/julianstephens/streakd/internal/storage"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

var day1 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func testHabit(id, owner string, created time.Time) models.Habit {
	return models.Habit{
		ID:        id,
		OwnerID:   owner,
		Name:      "Read " + id,
		Color:     "#3b82f6",
		IsActive:  true,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func testLog(id string, h models.Habit, day string, auto bool) models.CompletionLog {
	return models.CompletionLog{
		ID:                     id,
		OwnerID:                h.OwnerID,
		HabitID:                h.ID,
		HabitName:              h.Name,
		HabitCategory:          h.Color,
		Day:                    day,
		CompletedAt:            day1,
		StreakAtCompletion:     1,
		TotalCompletionsAtTime: 1,
		AutoCompleted:          auto,
	}
}

func TestInitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "streakd.db")

	first := NewStore(path)
	if err := first.Init(ctx); err != nil {
		t.Fatalf("first Init() error = %v", err)
	}
	first.Close()

	second := NewStore(path)
	if err := second.Init(ctx); err != nil {
		t.Fatalf("second Init() error = %v", err)
	}
	defer second.Close()

	current, latest, err := second.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if current != latest || current == 0 {
		t.Errorf("schema version = %d/%d", current, latest)
	}
	if err := second.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestMigrateReportsAppliedCount(t *testing.T) {
	ctx := context.Background()
	store := NewStore(filepath.Join(t.TempDir(), "migrate.db"))
	defer store.Close()

	var msgs []string
	n, err := store.Migrate(ctx, func(msg string) { msgs = append(msgs, msg) })
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if n == 0 || len(msgs) == 0 {
		t.Errorf("first Migrate() applied %d, messages %v", n, msgs)
	}

	n, err = store.Migrate(ctx, func(string) {})
	if err != nil || n != 0 {
		t.Errorf("second Migrate() = %d, %v", n, err)
	}
}

func TestLoadRequiresExistingDatabase(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing.db"))
	if err := store.Load(context.Background()); err == nil {
		t.Error("Load() should fail when the database does not exist")
	}
}

func TestHabitLifecycle(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	older := testHabit("h1", "user_1", day1)
	newer := testHabit("h2", "user_1", day1.Add(time.Hour))
	other := testHabit("h3", "user_2", day1)
	for _, h := range []models.Habit{older, newer, other} {
		if err := store.AddHabit(ctx, h); err != nil {
			t.Fatalf("AddHabit(%s) error = %v", h.ID, err)
		}
	}

	habits, err := store.ListHabits(ctx, "user_1")
	if err != nil {
		t.Fatalf("ListHabits() error = %v", err)
	}
	if len(habits) != 2 || habits[0].ID != "h2" || habits[1].ID != "h1" {
		t.Fatalf("ListHabits() = %+v, want h2 then h1", habits)
	}

	if _, err := store.GetHabit(ctx, "user_2", "h1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetHabit(other owner) error = %v, want ErrNotFound", err)
	}

	older.Name = "Read more"
	older.UpdatedAt = day1.Add(2 * time.Hour)
	if err := store.UpdateHabit(ctx, older); err != nil {
		t.Fatalf("UpdateHabit() error = %v", err)
	}
	got, err := store.GetHabit(ctx, "user_1", "h1")
	if err != nil {
		t.Fatalf("GetHabit() error = %v", err)
	}
	if got.Name != "Read more" || !got.IsActive || got.LastCompletedAt != nil {
		t.Errorf("GetHabit() = %+v", got)
	}

	if err := store.DeactivateHabit(ctx, "user_1", "h1", day1.Add(3*time.Hour)); err != nil {
		t.Fatalf("DeactivateHabit() error = %v", err)
	}
	if err := store.DeactivateHabit(ctx, "user_1", "h1", day1.Add(3*time.Hour)); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second DeactivateHabit() error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetHabit(ctx, "user_1", "h1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetHabit(deleted) error = %v, want ErrNotFound", err)
	}

	active, _ := store.CountHabits(ctx, "user_1", true)
	all, _ := store.CountHabits(ctx, "user_1", false)
	if active != 1 || all != 2 {
		t.Errorf("CountHabits() active=%d all=%d, want 1 and 2", active, all)
	}

	owners, err := store.ListActiveOwners(ctx)
	if err != nil {
		t.Fatalf("ListActiveOwners() error = %v", err)
	}
	if len(owners) != 2 || owners[0] != "user_1" || owners[1] != "user_2" {
		t.Errorf("ListActiveOwners() = %v", owners)
	}
}

func TestApplyCompletion(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	h := testHabit("h1", "user_1", day1)
	if err := store.AddHabit(ctx, h); err != nil {
		t.Fatal(err)
	}

	total, err := store.ApplyCompletion(ctx, "user_1", "h1", 4, day1)
	if err != nil {
		t.Fatalf("ApplyCompletion() error = %v", err)
	}
	if total != 1 {
		t.Errorf("total = %d, want 1", total)
	}
	total, _ = store.ApplyCompletion(ctx, "user_1", "h1", 5, day1.Add(24*time.Hour))
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}

	got, _ := store.GetHabit(ctx, "user_1", "h1")
	if got.Streak != 5 || got.LastCompletedAt == nil || !got.LastCompletedAt.Equal(day1.Add(24*time.Hour)) {
		t.Errorf("habit after completion = %+v", got)
	}

	if _, err := store.ApplyCompletion(ctx, "user_2", "h1", 1, day1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("ApplyCompletion(other owner) error = %v, want ErrNotFound", err)
	}
}

func TestCompletionLogUniquePerDay(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	h := testHabit("h1", "user_1", day1)
	if err := store.AddHabit(ctx, h); err != nil {
		t.Fatal(err)
	}

	if err := store.AddCompletionLog(ctx, testLog("l1", h, "2024-03-01", false)); err != nil {
		t.Fatalf("AddCompletionLog() error = %v", err)
	}
	if err := store.AddCompletionLog(ctx, testLog("l2", h, "2024-03-01", true)); !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("same-day AddCompletionLog() error = %v, want ErrDuplicate", err)
	}
	if err := store.AddCompletionLog(ctx, testLog("l3", h, "2024-03-02", true)); err != nil {
		t.Fatalf("next-day AddCompletionLog() error = %v", err)
	}

	has, err := store.HasCompletion(ctx, "h1", "2024-03-01")
	if err != nil || !has {
		t.Errorf("HasCompletion() = %v, %v", has, err)
	}
	has, _ = store.HasCompletion(ctx, "h1", "2024-03-03")
	if has {
		t.Error("HasCompletion() should be false for a day without a log")
	}

	logs, err := store.GetCompletionLogs(ctx, "h1", "2024-03-01", "2024-03-31")
	if err != nil {
		t.Fatalf("GetCompletionLogs() error = %v", err)
	}
	if len(logs) != 2 || logs[0].Day != "2024-03-01" || !logs[1].AutoCompleted {
		t.Errorf("GetCompletionLogs() = %+v", logs)
	}

	done, _ := store.CompletedHabitIDs(ctx, "user_1", "2024-03-02")
	if !done["h1"] || len(done) != 1 {
		t.Errorf("CompletedHabitIDs() = %v", done)
	}

	n, _ := store.CountCompletions(ctx, "user_1")
	if n != 2 {
		t.Errorf("CountCompletions() = %d, want 2", n)
	}
}

func TestConcurrentCompletionLogInsert(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	h := testHabit("h1", "user_1", day1)
	if err := store.AddHabit(ctx, h); err != nil {
		t.Fatal(err)
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results <- store.AddCompletionLog(ctx, testLog(string(rune('a'+i)), h, "2024-03-01", false))
		}(i)
	}
	wg.Wait()
	close(results)

	inserted, duplicates := 0, 0
	for err := range results {
		switch {
		case err == nil:
			inserted++
		case errors.Is(err, storage.ErrDuplicate):
			duplicates++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if inserted != 1 || duplicates != workers-1 {
		t.Errorf("inserted=%d duplicates=%d", inserted, duplicates)
	}
}

func TestAchievementInsertOnce(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	unlock := models.AchievementUnlock{
		ID: "a1", OwnerID: "user_1", Name: "First Step", TokenReward: 2,
		MetricKind: "streak", MetricValue: 1, UnlockedAt: day1,
	}
	inserted, err := store.AddAchievement(ctx, unlock)
	if err != nil || !inserted {
		t.Fatalf("AddAchievement() = %v, %v", inserted, err)
	}

	unlock.ID = "a2"
	inserted, err = store.AddAchievement(ctx, unlock)
	if err != nil || inserted {
		t.Errorf("duplicate AddAchievement() = %v, %v, want false, nil", inserted, err)
	}

	has, _ := store.HasAchievement(ctx, "user_1", "First Step")
	if !has {
		t.Error("HasAchievement() = false")
	}
	has, _ = store.HasAchievement(ctx, "user_2", "First Step")
	if has {
		t.Error("achievements must be per owner")
	}

	later := models.AchievementUnlock{
		ID: "a3", OwnerID: "user_1", Name: "Getting Started", TokenReward: 5,
		MetricKind: "total_completions", MetricValue: 10, UnlockedAt: day1.Add(time.Hour),
	}
	if _, err := store.AddAchievement(ctx, later); err != nil {
		t.Fatal(err)
	}
	list, err := store.ListAchievements(ctx, "user_1")
	if err != nil {
		t.Fatalf("ListAchievements() error = %v", err)
	}
	if len(list) != 2 || list[0].Name != "Getting Started" {
		t.Errorf("ListAchievements() = %+v, want newest first", list)
	}
}

func TestTokensAndStats(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	if _, err := store.GetTokenBalance(ctx, "user_1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetTokenBalance() error = %v, want ErrNotFound", err)
	}

	balance, err := store.IncrementTokens(ctx, "user_1", 3, day1)
	if err != nil || balance != 3 {
		t.Fatalf("IncrementTokens() = %d, %v", balance, err)
	}
	balance, _ = store.IncrementTokens(ctx, "user_1", 1, day1.Add(time.Hour))
	if balance != 4 {
		t.Errorf("balance = %d, want 4", balance)
	}
	tb, err := store.GetTokenBalance(ctx, "user_1")
	if err != nil || tb.Balance != 4 || !tb.UpdatedAt.Equal(day1.Add(time.Hour)) {
		t.Errorf("GetTokenBalance() = %+v, %v", tb, err)
	}

	if err := store.UpsertUserStats(ctx, "user_1", models.StatsDelta{Completions: 1, TokensEarned: 3, LongestStreak: 5}, day1); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertUserStats(ctx, "user_1", models.StatsDelta{HabitsCreated: 1, Completions: 1, TokensEarned: 1, LongestStreak: 2}, day1); err != nil {
		t.Fatal(err)
	}
	st, err := store.GetUserStats(ctx, "user_1")
	if err != nil {
		t.Fatalf("GetUserStats() error = %v", err)
	}
	if st.TotalCompletions != 2 || st.TotalTokensEarned != 4 || st.TotalHabitsCreated != 1 || st.LongestStreak != 5 {
		t.Errorf("GetUserStats() = %+v", st)
	}
}

func TestUpsertUser(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	u := models.User{OwnerID: "user_1", Email: "a@example.com", CreatedAt: day1, UpdatedAt: day1}
	if err := store.UpsertUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	u.Email = "b@example.com"
	u.UpdatedAt = day1.Add(time.Hour)
	if err := store.UpsertUser(ctx, u); err != nil {
		t.Fatal(err)
	}

	var email, created string
	err := store.GetDB().QueryRow("SELECT email, created_at FROM users WHERE owner_id = ?", "user_1").Scan(&email, &created)
	if err != nil {
		t.Fatal(err)
	}
	if email != "b@example.com" || created != storage.FormatTime(day1) {
		t.Errorf("user row = %s %s", email, created)
	}
}

func TestAudit(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	h := testHabit("h1", "user_1", day1)
	if err := store.AddHabit(ctx, h); err != nil {
		t.Fatal(err)
	}

	if err := store.AddCompletionLog(ctx, testLog("l1", h, "2024-03-01", false)); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ApplyCompletion(ctx, "user_1", "h1", 1, day1); err != nil {
		t.Fatal(err)
	}
	if _, err := store.AddAchievement(ctx, models.AchievementUnlock{
		ID: "a1", OwnerID: "user_1", Name: "First Step", TokenReward: 2, MetricKind: "streak", MetricValue: 1, UnlockedAt: day1,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.IncrementTokens(ctx, "user_1", 3, day1); err != nil {
		t.Fatal(err)
	}

	report, err := store.Audit(ctx)
	if err != nil {
		t.Fatalf("Audit() error = %v", err)
	}
	if !report.OK() {
		t.Fatalf("consistent data reported as broken: %+v", report)
	}

	// a stray grant the ledger cannot explain
	if _, err := store.IncrementTokens(ctx, "user_1", 5, day1); err != nil {
		t.Fatal(err)
	}
	// an auto-completed log that never reached the habit counter
	if err := store.AddCompletionLog(ctx, testLog("l2", h, "2024-03-02", true)); err != nil {
		t.Fatal(err)
	}

	report, err = store.Audit(ctx)
	if err != nil {
		t.Fatalf("Audit() error = %v", err)
	}
	if len(report.LedgerMismatches) != 1 || report.LedgerMismatches[0].Expected != 3 || report.LedgerMismatches[0].Balance != 8 {
		t.Errorf("LedgerMismatches = %+v", report.LedgerMismatches)
	}
	if len(report.CounterDrift) != 1 || report.CounterDrift[0].Counter != 1 || report.CounterDrift[0].Logs != 2 {
		t.Errorf("CounterDrift = %+v", report.CounterDrift)
	}
}
