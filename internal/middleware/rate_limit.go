package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/goatkit/deskpilot/internal/apierrors"
)

// DefaultRequestsPerMinute is the inbound API budget per client.
const DefaultRequestsPerMinute = 120

// RateLimiter implements a token bucket rate limiter. It guards the admin API
// itself; outbound helpdesk calls go through ratelimit.Limiter.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	idle    time.Duration
	now     func() time.Time
}

type bucket struct {
	tokens     float64
	limit      float64 // max tokens (requests per minute)
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewRateLimiter creates a limiter. now may be nil.
func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		idle:    10 * time.Minute,
		now:     now,
	}
}

// Allow checks if a request is allowed and consumes a token
func (rl *RateLimiter) Allow(key string, perMinute int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.evictIdle(now)

	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{
			tokens:     float64(perMinute),
			limit:      float64(perMinute),
			refillRate: float64(perMinute) / 60.0,
			lastRefill: now,
		}
		rl.buckets[key] = b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.limit {
		b.tokens = b.limit
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Remaining returns remaining tokens for a key
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if b, exists := rl.buckets[key]; exists {
		return int(b.tokens)
	}
	return 0
}

// evictIdle drops buckets untouched for rl.idle. Caller holds mu.
func (rl *RateLimiter) evictIdle(now time.Time) {
	cutoff := now.Add(-rl.idle)
	for key, b := range rl.buckets {
		if b.lastRefill.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// RateLimitByIP applies per-client-IP limiting. perMinute <= 0 uses
// DefaultRequestsPerMinute.
func RateLimitByIP(rl *RateLimiter, perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		perMinute = DefaultRequestsPerMinute
	}
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()

		if !rl.Allow(key, perMinute) {
			c.Header("X-RateLimit-Limit", strconv.Itoa(perMinute))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "60")
			apierrors.Error(c, apierrors.CodeRateLimited)
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(perMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining(key)))

		c.Next()
	}
}
