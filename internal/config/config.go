// Package config loads server settings from defaults, an optional .env
// file and STREAKD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"

	"github.com/julianstephens/streakd/internal/constants"
	"github.com/julianstephens/streakd/internal/storage/postgres"
	"github.com/julianstephens/streakd/internal/streak"
)

// EnvPrefix is the prefix of every environment variable read by Load
const EnvPrefix = "STREAKD"

// Config holds the resolved server settings
type Config struct {
	ListenAddr string `envconfig:"LISTEN_ADDR"`
	// Database is a SQLite file path or a postgres:// connection string
	Database string `envconfig:"DATABASE"`
	Timezone string `envconfig:"TIMEZONE"`

	JWTSecret string `envconfig:"JWT_SECRET"`
	JWTIssuer string `envconfig:"JWT_ISSUER"`

	HeartbeatInterval time.Duration `envconfig:"HEARTBEAT_INTERVAL"`
	SubscriberBuffer  int           `envconfig:"SUBSCRIBER_BUFFER"`

	RolloverEnabled  bool   `envconfig:"ROLLOVER_ENABLED"`
	RolloverSchedule string `envconfig:"ROLLOVER_SCHEDULE"`

	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST"`

	StorageTimeout time.Duration `envconfig:"STORAGE_TIMEOUT"`

	LogDir    string `envconfig:"LOG_DIR"`
	LogFormat string `envconfig:"LOG_FORMAT"`
	Debug     bool   `envconfig:"DEBUG"`

	// SecretsFromKeyring is set when Database came from the OS keyring,
	// where embedded credentials are allowed
	SecretsFromKeyring bool `ignored:"true"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		ListenAddr:        ":8080",
		Database:          constants.DefaultConfigPath,
		Timezone:          "Local",
		HeartbeatInterval: constants.DefaultHeartbeatInterval,
		SubscriberBuffer:  constants.DefaultSubscriberBuffer,
		RolloverEnabled:   true,
		RolloverSchedule:  constants.DefaultRolloverSchedule,
		RateLimitRPS:      constants.DefaultRateLimitRPS,
		RateLimitBurst:    constants.DefaultRateLimitBurst,
		StorageTimeout:    constants.DefaultStorageTimeout,
		LogDir:            "~/.config/streakd/logs",
		LogFormat:         "text",
	}
}

// Load resolves settings: defaults, then envFiles (missing files are
// skipped, variables already set in the environment win), then STREAKD_*
// variables. With no envFiles, ./.env is tried.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("failed to read %s: %w", f, err)
		}
	}

	cfg := Default()
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid environment: %w", err)
	}
	cfg.Database = ExpandHome(cfg.Database)
	cfg.LogDir = ExpandHome(cfg.LogDir)
	return cfg, nil
}

// IsPostgres reports whether Database selects the Postgres store
func (c Config) IsPostgres() bool {
	return postgres.IsConnString(c.Database)
}

// Location loads the canonical day-boundary zone
func (c Config) Location() (*time.Location, error) {
	return streak.LoadLocation(c.Timezone)
}

// Validate checks the settings a server needs before it starts
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("%s_JWT_SECRET is required", EnvPrefix)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive")
	}
	if c.StorageTimeout <= 0 {
		return fmt.Errorf("storage timeout must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json", "logfmt":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.RolloverEnabled {
		if _, err := cron.ParseStandard(c.RolloverSchedule); err != nil {
			return fmt.Errorf("invalid rollover schedule %q: %w", c.RolloverSchedule, err)
		}
	}
	if c.IsPostgres() {
		if _, err := postgres.ValidateConnString(c.Database); err != nil {
			if !c.SecretsFromKeyring || !errors.Is(err, postgres.ErrEmbeddedCredentials) {
				return err
			}
		}
	}
	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
