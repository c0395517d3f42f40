package models

import "time"

// AchievementUnlock records that an owner earned a named achievement.
// (OwnerID, Name) is unique.
type AchievementUnlock struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	TokenReward int       `json:"token_reward"`
	MetricKind  string    `json:"metric_kind"`
	MetricValue int       `json:"metric_value"`
	UnlockedAt  time.Time `json:"unlocked_at"`
}

// TokenBalance is an owner's token currency
type TokenBalance struct {
	OwnerID   string    `json:"owner_id"`
	Balance   int       `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserStats holds aggregate counters for an owner
type UserStats struct {
	OwnerID            string     `json:"owner_id"`
	TotalHabitsCreated int        `json:"total_habits_created"`
	TotalCompletions   int        `json:"total_completions"`
	TotalTokensEarned  int        `json:"total_tokens_earned"`
	LongestStreak      int        `json:"longest_streak"`
	LastActivityAt     *time.Time `json:"last_activity_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// StatsDelta is applied to UserStats with an upsert. Counters are added,
// LongestStreak is merged with max.
type StatsDelta struct {
	HabitsCreated int
	Completions   int
	TokensEarned  int
	LongestStreak int
}

// User is the profile copied from the identity provider
type User struct {
	OwnerID   string    `json:"owner_id"`
	Email     string    `json:"email,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Username  string    `json:"username,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
