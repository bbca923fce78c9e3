// Package ratelimit bounds outbound helpdesk API calls to a fixed number per
// wall-clock minute.
//
// Buckets are aligned to the minute ("2024-01-17 10:32"), not a sliding window, so a
// burst straddling a minute boundary can briefly exceed the configured rate. Calls
// over the ceiling are rejected; nothing is queued.
package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/goatkit/deskpilot/internal/kvstore"
	"github.com/goatkit/deskpilot/internal/logging"
	"github.com/goatkit/deskpilot/internal/metrics"
)

const (
	// DefaultLimit is the per-minute ceiling used when none is configured.
	DefaultLimit = 45
	// KeyPrefix prefixes every bucket key in the store.
	KeyPrefix = "rate_limit_"

	bucketLayout = "2006-01-02 15:04"
	bucketTTL    = 60 * time.Second
)

// Limiter counts calls per minute bucket in a kvstore.Store.
type Limiter struct {
	store   kvstore.Store
	limit   int
	now     func() time.Time
	logger  hclog.Logger
	metrics *metrics.Collectors
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithLogger injects a logger.
func WithLogger(logger hclog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// WithMetrics injects prometheus collectors.
func WithMetrics(m *metrics.Collectors) Option {
	return func(l *Limiter) { l.metrics = m }
}

// New creates a limiter. A limit <= 0 uses DefaultLimit.
func New(store kvstore.Store, limit int, opts ...Option) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	l := &Limiter{store: store, limit: limit, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = logging.OrDiscard(l.logger)
	return l
}

// BucketKey returns the store key for the minute containing t.
func BucketKey(t time.Time) string {
	return KeyPrefix + t.UTC().Format(bucketLayout)
}

// Limit returns the configured ceiling.
func (l *Limiter) Limit() int { return l.limit }

func (l *Limiter) count(ctx context.Context) int {
	raw, err := l.store.Get(ctx, BucketKey(l.now()))
	if errors.Is(err, kvstore.ErrNotFound) {
		return 0
	}
	if err != nil {
		// Counters are advisory; a broken store must not stop every call.
		l.logger.Warn("rate limit counter unavailable", "error", err)
		return 0
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0
	}
	return n
}

// CanProceed reports whether the current bucket is below the ceiling.
func (l *Limiter) CanProceed(ctx context.Context) bool {
	return l.count(ctx) < l.limit
}

// Record counts one call in the current bucket.
func (l *Limiter) Record(ctx context.Context) error {
	n, err := l.store.IncrBy(ctx, BucketKey(l.now()), 1, bucketTTL)
	if err != nil {
		return err
	}
	l.observe(n)
	return nil
}

// Allow checks the ceiling and records the call when permitted.
func (l *Limiter) Allow(ctx context.Context) bool {
	if !l.CanProceed(ctx) {
		l.reject()
		return false
	}
	key := BucketKey(l.now())
	n, err := l.store.IncrBy(ctx, key, 1, bucketTTL)
	if err != nil {
		l.logger.Warn("rate limit record failed", "error", err)
		return true
	}
	if n > int64(l.limit) {
		// Another writer took the last slot between the check and the increment.
		// Give the slot back so the stored count stays at the ceiling.
		if n, err = l.store.IncrBy(ctx, key, -1, bucketTTL); err != nil {
			l.logger.Warn("rate limit rollback failed", "error", err)
		}
		l.observe(n)
		l.reject()
		return false
	}
	l.observe(n)
	return true
}

func (l *Limiter) observe(n int64) {
	if l.metrics != nil && n > 0 {
		l.metrics.RateWindowCount.Set(float64(n))
	}
}

func (l *Limiter) reject() {
	l.logger.Debug("rate limit reached", "limit", l.limit, "bucket", BucketKey(l.now()))
	if l.metrics != nil {
		l.metrics.RateLimited.Inc()
	}
}

// Remaining returns how many calls are left in the current bucket.
func (l *Limiter) Remaining(ctx context.Context) int {
	left := l.limit - l.count(ctx)
	if left < 0 {
		return 0
	}
	return left
}

// ResetIn returns the time until the current bucket rolls over.
func (l *Limiter) ResetIn() time.Duration {
	now := l.now()
	return now.Truncate(time.Minute).Add(time.Minute).Sub(now)
}

// ResetInSeconds is ResetIn rounded up to whole seconds.
func (l *Limiter) ResetInSeconds() int {
	d := l.ResetIn()
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

// Status is a point-in-time view of the limiter.
type Status struct {
	Bucket         string `json:"bucket"`
	Limit          int    `json:"limit"`
	Used           int    `json:"used"`
	Remaining      int    `json:"remaining"`
	ResetInSeconds int    `json:"reset_in_seconds"`
}

// Snapshot reports the current bucket state.
func (l *Limiter) Snapshot(ctx context.Context) Status {
	used := l.count(ctx)
	remaining := l.limit - used
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Bucket:         BucketKey(l.now()),
		Limit:          l.limit,
		Used:           used,
		Remaining:      remaining,
		ResetInSeconds: l.ResetInSeconds(),
	}
}
