// Package watch polls the helpdesk on a schedule and reports tickets that are
// new or changed since the previous poll, optionally drafting replies for the
// new ones.
package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/robfig/cron/v3"

	"github.com/goatkit/deskpilot/internal/assist"
	"github.com/goatkit/deskpilot/internal/desk"
	"github.com/goatkit/deskpilot/internal/drafts"
	"github.com/goatkit/deskpilot/internal/logging"
)

// Lister is the part of the desk client a poll needs.
type Lister interface {
	ListTickets(ctx context.Context, f desk.Filter) (*desk.TicketPage, error)
}

// Drafter generates drafts. *drafts.Service implements it.
type Drafter interface {
	Generate(ctx context.Context, ticketID string, opts assist.Options) (*drafts.Draft, error)
}

// Change says why a ticket was reported.
type Change string

const (
	ChangeNew     Change = "new"
	ChangeUpdated Change = "updated"
)

// Update is one reported ticket. Draft or DraftErr is set when auto-drafting ran.
type Update struct {
	Ticket   desk.Ticket
	Change   Change
	Draft    *drafts.Draft
	DraftErr error
}

// Watcher remembers the tickets it has seen between polls.
type Watcher struct {
	lister  Lister
	drafter Drafter
	opts    options
	logger  hclog.Logger

	mu     sync.Mutex
	seen   map[string]string
	primed bool
}

// New builds a Watcher. drafter may be nil when auto-drafting is off.
func New(l Lister, drafter Drafter, opts ...Option) *Watcher {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Interval < MinInterval {
		o.Interval = MinInterval
	}
	return &Watcher{
		lister:  l,
		drafter: drafter,
		opts:    o,
		logger:  logging.OrDiscard(o.Logger),
		seen:    make(map[string]string),
	}
}

// Interval returns the effective poll interval.
func (w *Watcher) Interval() time.Duration { return w.opts.Interval }

// Poll lists tickets once, bypassing the cache, and returns the ones that are
// new or whose modified time changed. The first poll only records a baseline.
func (w *Watcher) Poll(ctx context.Context) ([]Update, error) {
	page, err := w.lister.ListTickets(ctx, desk.Filter{
		Status: w.opts.Status,
		Limit:  w.opts.Limit,
		Force:  true,
	})
	if err != nil {
		w.count(outcomeOf(err))
		return nil, fmt.Errorf("watch: poll: %w", err)
	}

	w.mu.Lock()
	var updates []Update
	for _, t := range page.Tickets {
		prev, known := w.seen[t.ID]
		w.seen[t.ID] = t.ModifiedTime
		if !w.primed {
			continue
		}
		switch {
		case !known:
			updates = append(updates, Update{Ticket: t, Change: ChangeNew})
		case prev != t.ModifiedTime:
			updates = append(updates, Update{Ticket: t, Change: ChangeUpdated})
		}
	}
	baseline := !w.primed
	w.primed = true
	w.mu.Unlock()

	if baseline {
		w.logger.Info("watch baseline recorded", "tickets", len(page.Tickets))
	}

	for i := range updates {
		u := &updates[i]
		if u.Change == ChangeNew && w.opts.AutoDraft && w.drafter != nil {
			u.Draft, u.DraftErr = w.drafter.Generate(ctx, u.Ticket.ID, w.opts.Draft)
			if u.DraftErr != nil {
				w.logger.Warn("auto-draft failed", "ticket_id", u.Ticket.ID, "error", u.DraftErr)
			}
		}
		w.logger.Info("ticket changed", "ticket_id", u.Ticket.ID, "change", u.Change, "subject", u.Ticket.Subject)
		if w.opts.Notify != nil {
			w.opts.Notify(*u)
		}
	}

	w.count("ok")
	return updates, nil
}

func (w *Watcher) count(outcome string) {
	if w.opts.Metrics != nil {
		w.opts.Metrics.WatchPolls.WithLabelValues(outcome).Inc()
	}
}

func outcomeOf(err error) string {
	if errors.Is(err, desk.ErrRateLimited) {
		return "rate_limited"
	}
	return "error"
}

// Run polls immediately, then every interval until ctx is cancelled. Poll
// failures are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	c := w.opts.Cron
	if c == nil {
		c = cron.New(
			cron.WithLocation(w.opts.Location),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		)
	}

	poll := func() {
		if _, err := w.Poll(ctx); err != nil {
			w.logger.Warn("poll failed", "error", err)
		}
	}

	spec := "@every " + w.opts.Interval.String()
	if _, err := c.AddFunc(spec, poll); err != nil {
		return fmt.Errorf("watch: schedule %q: %w", spec, err)
	}

	w.logger.Info("watching tickets", "interval", w.opts.Interval, "status", w.opts.Status, "auto_draft", w.opts.AutoDraft)
	poll()
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	w.logger.Info("watch stopped")
	return nil
}
