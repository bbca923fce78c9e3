// Package metrics holds the prometheus collectors shared across deskpilot.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors groups every deskpilot metric.
type Collectors struct {
	APIRequests     *prometheus.CounterVec
	APIDuration     *prometheus.HistogramVec
	CacheLookups    *prometheus.CounterVec
	RateLimited     prometheus.Counter
	RateWindowCount prometheus.Gauge
	TokenRefreshes  *prometheus.CounterVec
	DraftsGenerated *prometheus.CounterVec
	DraftsSent      prometheus.Counter
	WatchPolls      *prometheus.CounterVec
}

var (
	defaultOnce sync.Once
	defaultInst *Collectors
)

// Default returns the process-wide collectors registered on the default registry.
func Default() *Collectors {
	defaultOnce.Do(func() {
		defaultInst = New(prometheus.DefaultRegisterer)
	})
	return defaultInst
}

// New registers a fresh set of collectors on reg. Tests pass a private registry.
func New(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		APIRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deskpilot",
			Subsystem: "desk",
			Name:      "requests_total",
			Help:      "Outbound helpdesk API calls, labeled by operation and outcome",
		}, []string{"op", "outcome"}),
		APIDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "deskpilot",
			Subsystem: "desk",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound helpdesk API calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deskpilot",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Response cache lookups, labeled by cache and result",
		}, []string{"cache", "result"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: "deskpilot",
			Subsystem: "ratelimit",
			Name:      "rejected_total",
			Help:      "Outbound calls rejected by the per-minute limiter",
		}),
		RateWindowCount: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "deskpilot",
			Subsystem: "ratelimit",
			Name:      "window_count",
			Help:      "Calls recorded in the current minute bucket",
		}),
		TokenRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deskpilot",
			Subsystem: "oauth",
			Name:      "refreshes_total",
			Help:      "OAuth token refresh attempts, labeled by outcome",
		}, []string{"outcome"}),
		DraftsGenerated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deskpilot",
			Subsystem: "drafts",
			Name:      "generated_total",
			Help:      "Drafts generated, labeled by provider",
		}, []string{"provider"}),
		DraftsSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: "deskpilot",
			Subsystem: "drafts",
			Name:      "sent_total",
			Help:      "Drafts sent as ticket replies",
		}),
		WatchPolls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deskpilot",
			Subsystem: "watch",
			Name:      "polls_total",
			Help:      "Watch-mode polls, labeled by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveAPICall records one outbound call and returns a func to stop its timer.
func (c *Collectors) ObserveAPICall(op string) func(outcome string) {
	if c == nil {
		return func(string) {}
	}
	timer := prometheus.NewTimer(c.APIDuration.WithLabelValues(op))
	return func(outcome string) {
		timer.ObserveDuration()
		c.APIRequests.WithLabelValues(op, outcome).Inc()
	}
}

// CacheResult records a cache hit or miss.
func (c *Collectors) CacheResult(cache string, hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.CacheLookups.WithLabelValues(cache, result).Inc()
}
