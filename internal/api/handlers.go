package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/julianstephens/streakd/internal/tracker"
)

type createHabitRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type completeHabitRequest struct {
	HabitID string `json:"habitId"`
}

type updateHabitRequest struct {
	HabitID string `json:"habitId"`
	Name    string `json:"name"`
	Color   string `json:"color"`
}

type achievementView struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	TokenReward int       `json:"tokenReward"`
	UnlockedAt  time.Time `json:"unlockedAt"`
}

func nonNil(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}

func (s *Server) createHabit(c *gin.Context) {
	var req createHabitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Color) == "" {
		badRequest(c, "Name and color are required")
		return
	}

	res, err := s.tracker.CreateHabit(c.Request.Context(), ownerID(c), req.Name, req.Color)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":              true,
		"habitId":              res.Habit.ID,
		"achievementsUnlocked": nonNil(res.UnlockedNames()),
		"tokensAwarded":        res.TokensAwarded,
	})
}

func (s *Server) listHabits(c *gin.Context) {
	habits, err := s.tracker.ListHabits(c.Request.Context(), ownerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"habits": habits})
}

func (s *Server) completeHabit(c *gin.Context) {
	var req completeHabitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	res, err := s.tracker.CompleteHabit(c.Request.Context(), ownerID(c), req.HabitID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":              true,
		"newStreak":            res.NewStreak,
		"tokensAwarded":        res.TokensAwarded,
		"achievementsUnlocked": nonNil(res.UnlockedNames()),
		"totalCompletions":     res.TotalCompletions,
	})
}

func (s *Server) updateHabit(c *gin.Context) {
	var req updateHabitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if req.HabitID == "" || strings.TrimSpace(req.Name) == "" {
		badRequest(c, "habitId and name are required")
		return
	}

	habit, err := s.tracker.UpdateHabit(c.Request.Context(), ownerID(c), req.HabitID, tracker.HabitUpdate{
		Name:  req.Name,
		Color: req.Color,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "habit": habit})
}

func (s *Server) deleteHabit(c *gin.Context) {
	if err := s.tracker.DeleteHabit(c.Request.Context(), ownerID(c), c.Query("habitId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) autoComplete(c *gin.Context) {
	n, err := s.tracker.AutoComplete(c.Request.Context(), ownerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"completedCount": n,
		"message":        fmt.Sprintf("Auto-completed %d habits", n),
	})
}

func (s *Server) tokens(c *gin.Context) {
	balance, err := s.tracker.TokenBalance(c.Request.Context(), ownerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

func (s *Server) listAchievements(c *gin.Context) {
	unlocks, err := s.tracker.ListAchievements(c.Request.Context(), ownerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]achievementView, 0, len(unlocks))
	for _, u := range unlocks {
		out = append(out, achievementView{
			Name:        u.Name,
			Description: u.Description,
			Icon:        u.Icon,
			TokenReward: u.TokenReward,
			UnlockedAt:  u.UnlockedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"achievements": out})
}

func (s *Server) stats(c *gin.Context) {
	st, err := s.tracker.Stats(c.Request.Context(), ownerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) syncUser(c *gin.Context) {
	if err := s.tracker.SyncUser(c.Request.Context(), callerIdentity(c).User()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
