// Package backup keeps rotating snapshots of the SQLite store next to the
// database file.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/streakd/internal/logger"

	_ "modernc.org/sqlite"
)

const (
	// MaxSnapshots is how many snapshots rotation keeps
	MaxSnapshots = 14
	// DirName is the snapshot directory, created beside the database
	DirName = "backups"

	filePrefix  = "streakd-"
	fileSuffix  = ".db"
	stampLayout = "20060102-150405"
)

// Snapshot describes one snapshot file
type Snapshot struct {
	Path  string
	Taken time.Time
	Size  int64
}

// Manager creates, lists and restores snapshots of one database file
type Manager struct {
	dbPath string
	dir    string
	keep   int
	now    func() time.Time
}

func NewManager(dbPath string) *Manager {
	return &Manager{
		dbPath: dbPath,
		dir:    filepath.Join(filepath.Dir(dbPath), DirName),
		keep:   MaxSnapshots,
		now:    time.Now,
	}
}

func (m *Manager) Dir() string {
	return m.dir
}

// Create snapshots the database and prunes the oldest snapshots beyond
// MaxSnapshots
func (m *Manager) Create(ctx context.Context) (Snapshot, error) {
	return m.create(ctx, true)
}

func (m *Manager) create(ctx context.Context, rotate bool) (Snapshot, error) {
	if _, err := os.Stat(m.dbPath); os.IsNotExist(err) {
		return Snapshot{}, fmt.Errorf("database does not exist: %s", m.dbPath)
	}
	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return Snapshot{}, fmt.Errorf("failed to create backup directory: %w", err)
	}

	taken := m.now().UTC().Truncate(time.Second)
	path, err := m.freeName(taken)
	if err != nil {
		return Snapshot{}, err
	}

	db, err := openDB(m.dbPath)
	if err != nil {
		return Snapshot{}, err
	}
	defer db.Close()

	if err := verifyStore(ctx, db); err != nil {
		return Snapshot{}, fmt.Errorf("source database is not usable: %w", err)
	}
	// VACUUM INTO writes a consistent copy even while the server holds the file open
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return Snapshot{}, fmt.Errorf("failed to snapshot database: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return Snapshot{}, err
	}
	logger.Info("Snapshot created", "path", path, "size", info.Size())

	if rotate {
		if err := m.rotate(); err != nil {
			logger.Warn("Failed to rotate old snapshots", "err", err)
		}
	}
	return Snapshot{Path: path, Taken: taken, Size: info.Size()}, nil
}

func (m *Manager) freeName(taken time.Time) (string, error) {
	base := filePrefix + taken.Format(stampLayout)
	path := filepath.Join(m.dir, base+fileSuffix)
	for n := 1; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		}
		if n > 100 {
			return "", fmt.Errorf("failed to generate unique snapshot filename")
		}
		path = filepath.Join(m.dir, fmt.Sprintf("%s-%d%s", base, n, fileSuffix))
	}
}

// parseName extracts the timestamp and collision counter from a snapshot name
func parseName(name string) (time.Time, int, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return time.Time{}, 0, false
	}
	rest := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	if len(rest) < len(stampLayout) {
		return time.Time{}, 0, false
	}
	taken, err := time.ParseInLocation(stampLayout, rest[:len(stampLayout)], time.UTC)
	if err != nil {
		return time.Time{}, 0, false
	}
	counter := 0
	if tail := rest[len(stampLayout):]; tail != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(tail, "-"))
		if err != nil || !strings.HasPrefix(tail, "-") || n < 1 {
			return time.Time{}, 0, false
		}
		counter = n
	}
	return taken, counter, true
}

// List returns the snapshots, newest first
func (m *Manager) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return []Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	type entry struct {
		Snapshot
		counter int
	}
	var found []entry
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		taken, counter, ok := parseName(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, entry{
			Snapshot: Snapshot{Path: filepath.Join(m.dir, e.Name()), Taken: taken, Size: info.Size()},
			counter:  counter,
		})
	}

	slices.SortFunc(found, func(a, b entry) int {
		if c := b.Taken.Compare(a.Taken); c != 0 {
			return c
		}
		return b.counter - a.counter
	})

	out := make([]Snapshot, len(found))
	for i, e := range found {
		out[i] = e.Snapshot
	}
	return out, nil
}

// Latest returns the newest snapshot; ok is false when there are none
func (m *Manager) Latest() (Snapshot, bool, error) {
	all, err := m.List()
	if err != nil || len(all) == 0 {
		return Snapshot{}, false, err
	}
	return all[0], true, nil
}

func (m *Manager) rotate() error {
	all, err := m.List()
	if err != nil {
		return err
	}
	for i := m.keep; i < len(all); i++ {
		if err := os.Remove(all[i].Path); err != nil {
			return fmt.Errorf("failed to remove old snapshot %s: %w", all[i].Path, err)
		}
	}
	return nil
}

// Restore replaces the database with a snapshot. The current database is
// snapshotted first and the returned Snapshot describes that copy (zero
// when there was no database). The store must be closed.
func (m *Manager) Restore(ctx context.Context, path string) (Snapshot, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Snapshot{}, fmt.Errorf("snapshot does not exist: %s", path)
	}
	if err := verifyFile(ctx, path); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot is corrupted or invalid: %w", err)
	}

	var previous Snapshot
	if _, err := os.Stat(m.dbPath); err == nil {
		previous, err = m.create(ctx, false)
		if err != nil {
			return Snapshot{}, fmt.Errorf("failed to snapshot current database before restore: %w", err)
		}
	}

	tmp := m.dbPath + ".restore.tmp"
	if err := copyFile(path, tmp); err != nil {
		os.Remove(tmp)
		return previous, fmt.Errorf("failed to copy snapshot: %w", err)
	}

	// WAL sidecars belong to the old file and would be replayed over the restored one
	for _, sidecar := range []string{m.dbPath + "-wal", m.dbPath + "-shm"} {
		if err := os.Remove(sidecar); err != nil && !os.IsNotExist(err) {
			os.Remove(tmp)
			return previous, fmt.Errorf("failed to remove %s: %w", filepath.Base(sidecar), err)
		}
	}

	if err := os.Rename(tmp, m.dbPath); err != nil {
		os.Remove(tmp)
		return previous, fmt.Errorf("failed to restore database: %w", err)
	}
	logger.Info("Database restored", "from", path, "previous", previous.Path)
	return previous, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func verifyFile(ctx context.Context, path string) error {
	db, err := openDB(path)
	if err != nil {
		return err
	}
	defer db.Close()
	return verifyStore(ctx, db)
}

// verifyStore checks that db is a migrated streakd database
func verifyStore(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "SELECT version FROM schema_version").Scan(&version); err != nil {
		return fmt.Errorf("no schema version: %w", err)
	}
	if version < 1 {
		return fmt.Errorf("schema version %d is not migrated", version)
	}
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM habits").Scan(&n); err != nil {
		return fmt.Errorf("habits table unreadable: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
