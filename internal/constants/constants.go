package constants

import "time"

// EventType identifies a message pushed through the realtime hub
type EventType string

const (
	AppName            = "streakd"
	DefaultKeyringUser = "database-connection"
	DefaultConfigPath  = "~/.config/streakd/streakd.db"
	Version            = "v0.3.0"

	// DateFormat is the day key format used for completion logs (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// BaseCompletionReward is the number of tokens granted for every interactive completion
	BaseCompletionReward = 1

	// Realtime defaults
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultSubscriberBuffer  = 16

	// Rollover defaults: run shortly before midnight so the closing day gets its log row
	DefaultRolloverSchedule = "55 23 * * *"

	// Request handling defaults
	DefaultStorageTimeout = 5 * time.Second
	DefaultRateLimitRPS   = 10
	DefaultRateLimitBurst = 20

	// Validation limits
	MaxHabitNameLength  = 100
	MaxHabitColorLength = 32

	// Event types
	EventConnected           EventType = "connected"
	EventHabitCompleted      EventType = "habit_completed"
	EventTokenUpdate         EventType = "token_update"
	EventAchievementUnlocked EventType = "achievement_unlocked"
)
