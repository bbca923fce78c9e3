package watch

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/robfig/cron/v3"

	"github.com/goatkit/deskpilot/internal/assist"
	"github.com/goatkit/deskpilot/internal/metrics"
)

// DefaultInterval is used when no interval is configured.
const DefaultInterval = time.Minute

// MinInterval is the shortest poll interval accepted.
const MinInterval = 10 * time.Second

type options struct {
	Logger    hclog.Logger
	Metrics   *metrics.Collectors
	Cron      *cron.Cron
	Interval  time.Duration
	Status    string
	Limit     int
	AutoDraft bool
	Draft     assist.Options
	Notify    func(Update)
	Location  *time.Location
}

// Option applies configuration to the watcher.
type Option func(*options)

func defaultOptions() options {
	return options{Interval: DefaultInterval, Status: "Open", Limit: 20, Location: time.UTC}
}

// WithLogger injects a custom logger.
func WithLogger(l hclog.Logger) Option {
	return func(o *options) {
		o.Logger = l
	}
}

func WithMetrics(m *metrics.Collectors) Option {
	return func(o *options) {
		o.Metrics = m
	}
}

// WithCron supplies a preconfigured cron scheduler instance.
func WithCron(c *cron.Cron) Option {
	return func(o *options) {
		o.Cron = c
	}
}

// WithInterval sets the poll interval. Values below MinInterval are raised.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		o.Interval = d
	}
}

// WithStatus restricts the poll to tickets in status. Empty means all.
func WithStatus(status string) Option {
	return func(o *options) {
		o.Status = status
	}
}

func WithLimit(n int) Option {
	return func(o *options) {
		o.Limit = n
	}
}

// WithAutoDraft generates a draft for every newly seen ticket.
func WithAutoDraft(enabled bool, opts assist.Options) Option {
	return func(o *options) {
		o.AutoDraft = enabled
		o.Draft = opts
	}
}

// WithNotify registers a callback invoked for every detected change.
func WithNotify(fn func(Update)) Option {
	return func(o *options) {
		o.Notify = fn
	}
}

// WithLocation sets the scheduler timezone location.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		o.Location = loc
	}
}
