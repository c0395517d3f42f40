package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/julianstephens/streakd/internal/identity"
	"github.com/julianstephens/streakd/internal/logger"
)

const (
	ownerKey    = "streakd.owner"
	identityKey = "streakd.identity"
)

func ownerID(c *gin.Context) string {
	return c.GetString(ownerKey)
}

func callerIdentity(c *gin.Context) identity.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(identity.Identity); ok {
			return id
		}
	}
	return identity.Identity{OwnerID: ownerID(c)}
}

// authRequired rejects requests without a valid bearer token before any
// handler runs
func (s *Server) authRequired(allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := identity.BearerToken(c.GetHeader("Authorization"))
		if raw == "" && allowQuery {
			raw = c.Query("access_token")
		}

		id, err := s.verifier.Verify(raw)
		if err != nil {
			logger.Debug("Rejected request", "path", c.Request.URL.Path, "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(ownerKey, id.OwnerID)
		c.Set(identityKey, id)
		c.Next()
	}
}

// requestLogger writes one line per request
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if path == "/healthz" || path == "/metrics" {
			return
		}
		logger.Info("Request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"owner", ownerID(c),
		)
	}
}

// RateLimiter keeps one token bucket per owner
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewRateLimiter allows rps requests per second per owner with the given burst
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.limiters[key]
	if !ok {
		// bound memory; buckets refill within a second anyway
		if len(rl.limiters) >= 10000 {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		l = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = l
	}
	return l
}

// Allow reports whether key may make another request now
func (rl *RateLimiter) Allow(key string) bool {
	return rl.limiter(key).Allow()
}

// Middleware returns 429 once the caller's bucket is empty. It must run
// after authRequired so the owner is known.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := ownerID(c)
		if key == "" {
			key = c.ClientIP()
		}
		if !rl.Allow(key) {
			logger.Warn("Rate limit exceeded", "key", key, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
