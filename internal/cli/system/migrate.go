package system

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/julianstephens/streakd/internal/backup"
	"github.com/julianstephens/streakd/internal/cli"
)

type MigrateCmd struct {
	NoBackup bool `help:"Skip the snapshot taken before migrating a SQLite database."`
}

func (c *MigrateCmd) Run(ctx *cli.Context) error {
	defer ctx.Store.Close()

	if !c.NoBackup {
		snapshotBeforeMigrate(ctx)
	}

	count, err := ctx.Store.Migrate(context.Background(), func(msg string) {
		fmt.Println(msg)
	})
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if count == 0 {
		fmt.Println("No migrations to apply. Database is up to date.")
	} else {
		fmt.Printf("\nSuccessfully applied %d migration(s).\n", count)
	}
	return nil
}

func snapshotBeforeMigrate(ctx *cli.Context) {
	if ctx.Config.IsPostgres() {
		return
	}
	if _, err := os.Stat(ctx.Config.Database); err != nil {
		return
	}
	snap, err := backup.NewManager(ctx.Config.Database).Create(context.Background())
	if err != nil {
		fmt.Printf("⚠️  Skipping pre-migration backup: %v\n", err)
		return
	}
	fmt.Printf("✓ Pre-migration backup: %s\n", filepath.Base(snap.Path))
}
