package middleware

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "gufagu-backend/pkg/errors"
	"gufagu-backend/pkg/logger"
	"gufagu-backend/pkg/response"
)

// CounterStore is a shared fixed-window counter, normally Redis
type CounterStore interface {
	SafeIncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
	IsDegraded() bool
}

// InMemoryRateLimiter provides in-memory rate limiting as fallback when Redis is degraded
type InMemoryRateLimiter struct {
	mu     sync.Mutex
	limits map[string]*windowCount
}

type windowCount struct {
	count       int64
	windowStart time.Time
}

// NewInMemoryRateLimiter creates a new in-memory rate limiter
func NewInMemoryRateLimiter() *InMemoryRateLimiter {
	return &InMemoryRateLimiter{
		limits: make(map[string]*windowCount),
	}
}

// Incr counts one request for key in the window starting at its first request
func (im *InMemoryRateLimiter) Incr(key string, window time.Duration, now time.Time) int64 {
	im.mu.Lock()
	defer im.mu.Unlock()

	w, ok := im.limits[key]
	if !ok || now.Sub(w.windowStart) >= window {
		im.limits[key] = &windowCount{count: 1, windowStart: now}
		return 1
	}
	w.count++
	return w.count
}

// RateLimiter limits requests per user (or per client IP when anonymous).
// While the store is degraded the local fallback counts instead.
type RateLimiter struct {
	store    CounterStore
	fallback *InMemoryRateLimiter
	requests int
	window   time.Duration
	now      func() time.Time
}

// NewRateLimiter creates a new rate limiter allowing requests per window
func NewRateLimiter(store CounterStore, requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		store:    store,
		fallback: NewInMemoryRateLimiter(),
		requests: requests,
		window:   window,
		now:      time.Now,
	}
}

// Allow counts one request for identifier and reports whether it fits the limit
func (rl *RateLimiter) Allow(ctx context.Context, identifier string) (bool, int) {
	key := fmt.Sprintf("ratelimit:%s", identifier)

	var count int64
	if rl.store == nil || rl.store.IsDegraded() {
		count = rl.fallback.Incr(key, rl.window, rl.now())
	} else {
		n, err := rl.store.SafeIncrWindow(ctx, key, rl.window)
		if err != nil {
			logger.Warn("Redis rate limit check failed, using in-memory limiter",
				zap.String("identifier", identifier),
				zap.Error(err))
			n = rl.fallback.Incr(key, rl.window, rl.now())
		}
		count = n
	}

	remaining := max(rl.requests-int(count), 0)
	return count <= int64(rl.requests), remaining
}

// Middleware returns a Gin middleware for rate limiting
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := "ip:" + c.ClientIP()
		if userID, ok := GetUserID(c); ok {
			identifier = "user:" + userID.String()
		}

		allowed, remaining := rl.Allow(c.Request.Context(), identifier)

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			response.FromError(c, apperrors.RateLimitExceededError())
			c.Abort()
			return
		}

		c.Next()
	}
}
