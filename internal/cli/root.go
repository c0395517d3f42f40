package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/streakd/internal/config"
	"github.com/julianstephens/streakd/internal/realtime"
	"github.com/julianstephens/streakd/internal/storage"
	"github.com/julianstephens/streakd/internal/tracker"
)

// Context is passed to every command's Run method
type Context struct {
	Config config.Config
	Store  storage.Provider
}

// LoadStore opens an already-initialized store
func (c *Context) LoadStore(ctx context.Context) error {
	if err := c.Store.Load(ctx); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}
	return nil
}

// Tracker builds the tracker service over the loaded store. pub may be nil.
func (c *Context) Tracker(pub tracker.Publisher) (*tracker.Service, error) {
	loc, err := c.Config.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Config.Timezone, err)
	}
	return tracker.New(c.Store, pub, loc, tracker.WithStorageTimeout(c.Config.StorageTimeout)), nil
}

// Hub builds the realtime hub from config
func (c *Context) Hub() *realtime.Hub {
	return realtime.NewHub(c.Config.SubscriberBuffer)
}

// FormatTime renders t in the canonical zone for command output
func (c *Context) FormatTime(t time.Time) string {
	if loc, err := c.Config.Location(); err == nil {
		t = t.In(loc)
	}
	return t.Format("2006-01-02 15:04:05 MST")
}
