package models

import "github.com/julianstephens/streakd/internal/constants"

// Event is the JSON payload pushed to an owner's open realtime channels
type Event struct {
	Type            constants.EventType `json:"type"`
	HabitID         string              `json:"habitId,omitempty"`
	HabitName       string              `json:"habitName,omitempty"`
	NewTokenBalance int                 `json:"newTokenBalance,omitempty"`
	NewStreak       int                 `json:"newStreak,omitempty"`
	CompletedAt     string              `json:"completedAt,omitempty"`
	NewBalance      int                 `json:"newBalance,omitempty"`
	Name            string              `json:"name,omitempty"`
}
