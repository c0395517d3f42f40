// Package api exposes the tracker over HTTP with gin and pushes realtime
// events over SSE and WebSocket.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/julianstephens/streakd/internal/achievements"
	"github.com/julianstephens/streakd/internal/constants"
	"github.com/julianstephens/streakd/internal/identity"
	"github.com/julianstephens/streakd/internal/logger"
	"github.com/julianstephens/streakd/internal/metrics"
	"github.com/julianstephens/streakd/internal/models"
	"github.com/julianstephens/streakd/internal/realtime"
	"github.com/julianstephens/streakd/internal/tracker"
)

// Tracker is the domain surface the handlers call
type Tracker interface {
	CreateHabit(ctx context.Context, ownerID, name, color string) (tracker.CreateResult, error)
	ListHabits(ctx context.Context, ownerID string) ([]models.HabitStatus, error)
	CompleteHabit(ctx context.Context, ownerID, habitID string) (tracker.CompletionResult, error)
	UpdateHabit(ctx context.Context, ownerID, habitID string, upd tracker.HabitUpdate) (models.Habit, error)
	DeleteHabit(ctx context.Context, ownerID, habitID string) error
	AutoComplete(ctx context.Context, ownerID string) (int, error)
	TokenBalance(ctx context.Context, ownerID string) (int, error)
	ListAchievements(ctx context.Context, ownerID string) ([]models.AchievementUnlock, error)
	Stats(ctx context.Context, ownerID string) (tracker.Stats, error)
	SyncUser(ctx context.Context, user models.User) error
	Ping(ctx context.Context) error
}

// Config holds the HTTP surface settings
type Config struct {
	ListenAddr        string
	HeartbeatInterval time.Duration
	RateLimitRPS      float64
	RateLimitBurst    int
}

// Server wires the router to the tracker, the hub and the token verifier
type Server struct {
	tracker   Tracker
	hub       *realtime.Hub
	verifier  *identity.Verifier
	limiter   *RateLimiter
	heartbeat time.Duration
	addr      string
	router    *gin.Engine
}

// New builds the router. Call Run to serve it or Handler to mount it.
func New(t Tracker, hub *realtime.Hub, verifier *identity.Verifier, cfg Config) *Server {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = constants.DefaultHeartbeatInterval
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = constants.DefaultRateLimitRPS
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = constants.DefaultRateLimitBurst
	}

	s := &Server{
		tracker:   t,
		hub:       hub,
		verifier:  verifier,
		limiter:   NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		heartbeat: cfg.HeartbeatInterval,
		addr:      cfg.ListenAddr,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), metrics.Middleware())

	router.GET("/healthz", s.health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	api.GET("/achievements/catalog", s.catalog)

	authed := api.Group("", s.authRequired(false), s.limiter.Middleware())
	{
		authed.POST("/habits/create", s.createHabit)
		authed.GET("/habits/list", s.listHabits)
		authed.POST("/habits/complete", s.completeHabit)
		authed.PUT("/habits/update", s.updateHabit)
		authed.DELETE("/habits/delete", s.deleteHabit)
		authed.POST("/habits/auto-complete", s.autoComplete)
		authed.GET("/tokens", s.tokens)
		authed.GET("/achievements", s.listAchievements)
		authed.GET("/stats", s.stats)
		authed.POST("/user/sync", s.syncUser)
	}

	// EventSource and browser WebSocket clients cannot set headers, so the
	// push channels also accept ?access_token=
	push := api.Group("/realtime", s.authRequired(true), s.limiter.Middleware())
	{
		push.GET("", s.streamEvents)
		push.GET("/ws", s.websocketEvents)
	}

	return router
}

// Handler returns the router as an http.Handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then closes open push channels and
// drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("HTTP server shutting down")
	s.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) health(c *gin.Context) {
	if err := s.tracker.Ping(c.Request.Context()); err != nil {
		logger.Warn("Health check failed", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": constants.Version})
}

func (s *Server) catalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"achievements": achievements.All()})
}
