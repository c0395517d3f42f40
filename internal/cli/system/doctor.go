package system

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/streakd/internal/backup"
	"github.com/julianstephens/streakd/internal/cli"
	"github.com/julianstephens/streakd/internal/keyring"
	"github.com/julianstephens/streakd/internal/storage"
	"github.com/julianstephens/streakd/internal/streak"
)

type DoctorCmd struct {
	Timeout time.Duration `help:"Overall time limit for the checks." default:"30s"`
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	runCtx, cancel := context.WithTimeout(context.Background(), cmd.Timeout)
	defer cancel()

	fmt.Println("Running diagnostics...")
	fmt.Println()

	hasError := false
	dbReachable := false

	if err := checkDBReachable(runCtx, ctx); err != nil {
		fmt.Printf("❌ Database reachable: FAIL\n")
		fmt.Printf("   Error: %v\n", err)
		hasError = true
	} else {
		fmt.Printf("✓ Database reachable: OK\n")
		dbReachable = true
	}
	defer ctx.Store.Close()

	if dbReachable {
		if err := checkSchemaVersion(runCtx, ctx.Store); err != nil {
			fmt.Printf("❌ Schema version: FAIL\n")
			fmt.Printf("   Error: %v\n", err)
			hasError = true
		} else {
			fmt.Printf("✓ Schema version: OK\n")
		}
	} else {
		fmt.Printf("⊘ Schema version: SKIPPED (database not reachable)\n")
	}

	if err := checkClockTimezone(ctx); err != nil {
		fmt.Printf("❌ Clock/timezone: FAIL\n")
		fmt.Printf("   Error: %v\n", err)
		hasError = true
	} else {
		fmt.Printf("✓ Clock/timezone: OK\n")
	}

	if dbReachable {
		report, err := ctx.Store.Audit(runCtx)
		if err != nil {
			fmt.Printf("❌ Data audit: FAIL\n")
			fmt.Printf("   Error: %v\n", err)
			hasError = true
		} else if !printAudit(report) {
			hasError = true
		}
	} else {
		fmt.Printf("⊘ Data audit: SKIPPED (database not reachable)\n")
	}

	if !ctx.Config.IsPostgres() {
		checkBackups(ctx)
	}

	if ctx.Config.IsPostgres() {
		if keyring.IsAvailable() {
			fmt.Printf("✓ OS keyring: OK\n")
		} else {
			fmt.Printf("⚠ OS keyring: WARNING\n")
			fmt.Printf("   Keyring unavailable; supply the connection string via STREAKD_DATABASE\n")
		}
	}

	fmt.Println()
	if hasError {
		fmt.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}

	fmt.Println("All diagnostics passed!")
	return nil
}

// backupMaxAge is how old the newest snapshot may get before doctor warns
const backupMaxAge = 7 * 24 * time.Hour

// checkBackups only warns; a missing snapshot is not a failure
func checkBackups(ctx *cli.Context) {
	latest, ok, err := backup.NewManager(ctx.Config.Database).Latest()
	switch {
	case err != nil:
		fmt.Printf("⚠ Backups: WARNING\n")
		fmt.Printf("   Error: %v\n", err)
	case !ok:
		fmt.Printf("⚠ Backups: WARNING (none found, run 'streakd backup create')\n")
	case time.Since(latest.Taken) > backupMaxAge:
		fmt.Printf("⚠ Backups: WARNING (newest is from %s)\n", ctx.FormatTime(latest.Taken))
	default:
		fmt.Printf("✓ Backups: OK (newest %s)\n", ctx.FormatTime(latest.Taken))
	}
}

func checkDBReachable(runCtx context.Context, ctx *cli.Context) error {
	if err := ctx.LoadStore(runCtx); err != nil {
		return err
	}
	return ctx.Store.Ping(runCtx)
}

func checkSchemaVersion(runCtx context.Context, store storage.Provider) error {
	current, latest, err := store.SchemaVersion(runCtx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if current == 0 {
		return fmt.Errorf("no schema version recorded, run 'streakd migrate'")
	}
	if current < latest {
		return fmt.Errorf("schema version %d is behind %d, run 'streakd migrate'", current, latest)
	}
	if current > latest {
		return fmt.Errorf("schema version %d is newer than this binary supports (%d)", current, latest)
	}
	return nil
}

func checkClockTimezone(ctx *cli.Context) error {
	loc, err := ctx.Config.Location()
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", ctx.Config.Timezone, err)
	}
	now := time.Now()
	if now.Year() < 2020 {
		return fmt.Errorf("system clock looks wrong: %s", now.Format(time.RFC3339))
	}
	fmt.Printf("   Canonical zone %s, today is %s\n", loc, streak.DayKey(now, loc))
	return nil
}

// printAudit prints one line per audit check and reports whether all passed
func printAudit(r storage.AuditReport) bool {
	ok := true
	line := func(name string, n int, detail func()) {
		if n == 0 {
			fmt.Printf("✓ %s: OK\n", name)
			return
		}
		ok = false
		fmt.Printf("❌ %s: FAIL (%d)\n", name, n)
		if detail != nil {
			detail()
		}
	}

	line("Duplicate completion logs", r.DuplicateLogs, nil)
	line("Negative streaks", r.NegativeStreaks, nil)
	line("Token ledger", len(r.LedgerMismatches), func() {
		for _, m := range r.LedgerMismatches {
			fmt.Printf("   owner %s: balance %d, expected %d\n", m.OwnerID, m.Balance, m.Expected)
		}
	})
	line("Completion counters", len(r.CounterDrift), func() {
		for _, m := range r.CounterDrift {
			fmt.Printf("   habit %s: counter %d, logs %d\n", m.HabitID, m.Counter, m.Logs)
		}
	})
	return ok
}
