package models

import "time"

// Habit represents a practice an owner completes once per day
type Habit struct {
	ID               string     `json:"id"`
	OwnerID          string     `json:"owner_id"`
	Name             string     `json:"name"`
	Color            string     `json:"color"`
	Streak           int        `json:"streak"`
	TotalCompletions int        `json:"total_completions"`
	LastCompletedAt  *time.Time `json:"last_completed_at,omitempty"`
	IsActive         bool       `json:"is_active"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
}

// CompletionLog is the append-only record of a single completion
type CompletionLog struct {
	ID                     string    `json:"id"`
	OwnerID                string    `json:"owner_id"`
	HabitID                string    `json:"habit_id"`
	HabitName              string    `json:"habit_name"`
	HabitCategory          string    `json:"habit_category"`
	Day                    string    `json:"day"` // YYYY-MM-DD in the canonical zone
	CompletedAt            time.Time `json:"completed_at"`
	StreakAtCompletion     int       `json:"streak_at_completion"`
	TotalCompletionsAtTime int       `json:"total_completions_at_time"`
	AutoCompleted          bool      `json:"auto_completed"`
}

// HabitStatus is the list view of a habit for the current day
type HabitStatus struct {
	ID              string     `json:"_id"`
	Name            string     `json:"name"`
	Color           string     `json:"color"`
	Streak          int        `json:"streak"`
	LastCompletedAt *time.Time `json:"lastCompletedAt"`
	CompletedToday  bool       `json:"completedToday"`
}
