package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chess-arena/analytics-backend/configs"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter manages rate limiting per IP address, one golang.org/x/time/rate
// limiter per (ip, limit-class) pair.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
	}
}

// getLimiter returns or creates a rate limiter for an (ip, limitClass) pair.
func (rl *RateLimiter) getLimiter(key string, perHour int) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[key]
	if !exists {
		perSecondRate := rate.Limit(float64(perHour) / 3600.0)
		limiter = rate.NewLimiter(perSecondRate, 5)
		rl.limiters[key] = limiter
	}
	return limiter
}

// Allow checks if a request from ip should be allowed under the given
// per-hour limit, keyed separately by limitClass.
func (rl *RateLimiter) Allow(ip, limitClass string, perHour int) bool {
	limiter := rl.getLimiter(ip+"|"+limitClass, perHour)
	return limiter.Allow()
}

// cleanupOldLimiters bounds memory growth from one-off client IPs.
func (rl *RateLimiter) cleanupOldLimiters() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if len(rl.limiters) > 2000 {
		for key := range rl.limiters {
			delete(rl.limiters, key)
			if len(rl.limiters) <= 1000 {
				break
			}
		}
	}
}

// RateLimit returns a gin middleware that applies spec §5's per-endpoint
// request budgets, read from configs.RateLimitConfig.
func RateLimit(config configs.RateLimitConfig) gin.HandlerFunc {
	limiter := NewRateLimiter()

	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			limiter.cleanupOldLimiters()
		}
	}()

	return func(c *gin.Context) {
		ip := c.ClientIP()
		path := c.FullPath()

		limitClass, perHour := classify(path, config)

		if !limiter.Allow(ip, limitClass, perHour) {
			c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", perHour))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(time.Hour).Unix()))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"message":     fmt.Sprintf("too many %s requests, limit %d per hour", limitClass, perHour),
				"retry_after": 3600,
			})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", perHour))
		c.Header("X-RateLimit-Type", limitClass)
		c.Next()
	}
}

func classify(path string, config configs.RateLimitConfig) (string, int) {
	switch {
	case path == "/import/:source":
		return "import", config.ImportPerHour
	case path == "/users/:username/puzzles/generate":
		return "puzzle_generate", config.PuzzleGeneratePerHour
	case path == "/eval":
		return "eval", config.EvalLookupsPerHour
	case len(path) >= 7 && path[:7] == "/users/":
		return "stats", config.StatsLookupsPerHour
	default:
		return "general", config.StatsLookupsPerHour
	}
}
