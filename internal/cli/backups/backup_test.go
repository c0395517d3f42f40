package backups

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/streakd/internal/backup"
	"github.com/julianstephens/streakd/internal/cli"
	"github.com/julianstephens/streakd/internal/config"
	"github.com/julianstephens/streakd/internal/storage/sqlite"
	"github.com/julianstephens/streakd/internal/tracker"
)

func setupTestContext(t *testing.T) *cli.Context {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "streakd.db")
	store := sqlite.NewStore(dbPath)
	if err := store.Init(t.Context()); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if _, err := tracker.New(store, nil, time.UTC).CreateHabit(t.Context(), "u1", "Read", "#000000"); err != nil {
		t.Fatalf("CreateHabit failed: %v", err)
	}
	store.Close()

	cfg := config.Default()
	cfg.Database = dbPath
	cfg.Timezone = "UTC"
	return &cli.Context{Config: cfg, Store: sqlite.NewStore(dbPath)}
}

func TestBackupCreateAndList(t *testing.T) {
	ctx := setupTestContext(t)

	if err := (&BackupCreateCmd{}).Run(ctx); err != nil {
		t.Fatalf("BackupCreateCmd.Run() error = %v", err)
	}
	if err := (&BackupListCmd{}).Run(ctx); err != nil {
		t.Fatalf("BackupListCmd.Run() error = %v", err)
	}

	snaps, err := backup.NewManager(ctx.Config.Database).List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(snaps) != 1 {
		t.Errorf("found %d snapshots, want 1", len(snaps))
	}
}

func TestBackupRestoreByFilename(t *testing.T) {
	ctx := setupTestContext(t)
	mgr := backup.NewManager(ctx.Config.Database)

	snap, err := mgr.Create(t.Context())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	cmd := &BackupRestoreCmd{BackupFile: filepath.Base(snap.Path), Yes: true}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("BackupRestoreCmd.Run() error = %v", err)
	}

	snaps, err := mgr.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(snaps) != 2 {
		t.Errorf("found %d snapshots after restore, want original plus pre-restore copy", len(snaps))
	}
}

func TestBackupRestoreCancelled(t *testing.T) {
	ctx := setupTestContext(t)
	mgr := backup.NewManager(ctx.Config.Database)
	snap, err := mgr.Create(t.Context())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	confirmInput = strings.NewReader("n\n")
	defer func() { confirmInput = os.Stdin }()

	if err := (&BackupRestoreCmd{BackupFile: snap.Path}).Run(ctx); err != nil {
		t.Fatalf("BackupRestoreCmd.Run() error = %v", err)
	}
	snaps, _ := mgr.List()
	if len(snaps) != 1 {
		t.Errorf("cancelled restore still touched snapshots: %d", len(snaps))
	}
}

func TestBackupRestoreMissingFile(t *testing.T) {
	ctx := setupTestContext(t)
	err := (&BackupRestoreCmd{BackupFile: "streakd-20000101-000000.db", Yes: true}).Run(ctx)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestBackupRejectsPostgres(t *testing.T) {
	cfg := config.Default()
	cfg.Database = "postgres://user@localhost/streakd"
	ctx := &cli.Context{Config: cfg}

	for name, run := range map[string]func(*cli.Context) error{
		"create":  (&BackupCreateCmd{}).Run,
		"list":    (&BackupListCmd{}).Run,
		"restore": (&BackupRestoreCmd{BackupFile: "x.db", Yes: true}).Run,
	} {
		if err := run(ctx); err != errPostgres {
			t.Errorf("%s error = %v, want errPostgres", name, err)
		}
	}
}
