// Package app assembles the deskpilot runtime from a loaded Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"

	"github.com/goatkit/deskpilot/internal/api"
	"github.com/goatkit/deskpilot/internal/assist"
	"github.com/goatkit/deskpilot/internal/config"
	"github.com/goatkit/deskpilot/internal/desk"
	"github.com/goatkit/deskpilot/internal/drafts"
	"github.com/goatkit/deskpilot/internal/events"
	"github.com/goatkit/deskpilot/internal/kvstore"
	"github.com/goatkit/deskpilot/internal/logging"
	"github.com/goatkit/deskpilot/internal/metrics"
	"github.com/goatkit/deskpilot/internal/oauth"
	"github.com/goatkit/deskpilot/internal/ratelimit"
	"github.com/goatkit/deskpilot/internal/watch"
)

// App holds every wired component. Close releases the store.
type App struct {
	Config  *config.Config
	Logger  hclog.Logger
	Store   kvstore.Store
	Tokens  *oauth.Store
	Limiter *ratelimit.Limiter
	Desk    *desk.Client
	Drafts  *drafts.Service
	Hub     events.Hub
	Metrics *metrics.Collectors

	detachAudit func()
}

// Options tweak construction.
type Options struct {
	// Debug forces debug logging regardless of config.
	Debug bool
	// LogOutput defaults to stderr.
	LogOutput io.Writer
	// Store overrides the configured key-value backend.
	Store kvstore.Store
	// Metrics overrides the default prometheus collectors.
	Metrics *metrics.Collectors
}

// New wires the components. A missing AI backend is not an error; drafting
// then fails with assist.ErrNoProviderConfigured.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	level := cfg.Log.Level
	if opts.Debug {
		level = "debug"
	}
	logger := logging.New(logging.Options{Level: level, JSON: cfg.Log.JSON, Output: opts.LogOutput})

	store := opts.Store
	if store == nil {
		var err error
		store, err = kvstore.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("app: open store: %w", err)
		}
	}

	m := opts.Metrics
	if m == nil {
		m = metrics.Default()
	}

	hub := events.NewMemoryHub()
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		Hub:     hub,
		Metrics: m,
	}
	a.detachAudit = events.AttachAuditLog(hub, logger.Named("audit"))

	tokenOpts := []oauth.Option{
		oauth.WithLogger(logger.Named("oauth")),
		oauth.WithHub(hub),
		oauth.WithMetrics(m),
	}
	if cfg.Desk.AccountsURL != "" {
		tokenOpts = append(tokenOpts, oauth.WithAccountsURL(cfg.Desk.AccountsURL))
	}
	a.Tokens = oauth.NewStore(oauth.Credentials{
		ClientID:     cfg.Desk.ClientID,
		ClientSecret: cfg.Desk.ClientSecret,
		OrgID:        cfg.Desk.OrgID,
		RedirectURI:  cfg.Desk.RedirectURI,
	}, store, tokenOpts...)
	if cfg.Desk.RefreshToken != "" {
		if err := a.Tokens.SeedRefreshToken(ctx, cfg.Desk.RefreshToken); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("app: seed refresh token: %w", err)
		}
	}

	a.Limiter = ratelimit.New(store, cfg.RateLimit.PerMinute,
		ratelimit.WithLogger(logger.Named("ratelimit")),
		ratelimit.WithMetrics(m),
	)

	deskOpts := []desk.Option{
		desk.WithLogger(logger.Named("desk")),
		desk.WithMetrics(m),
		desk.WithHub(hub),
	}
	if cfg.Desk.BaseURL != "" {
		deskOpts = append(deskOpts, desk.WithBaseURL(cfg.Desk.BaseURL))
	}
	if cfg.Cache.TicketTTL > 0 {
		deskOpts = append(deskOpts, desk.WithCacheTTL(cfg.Cache.TicketTTL))
	}
	a.Desk = desk.New(cfg.Desk.OrgID, a.Tokens, a.Limiter, store, deskOpts...)

	gen, err := cfg.Assist.Generator(logger.Named("assist"))
	if err != nil && !errors.Is(err, assist.ErrNoProviderConfigured) {
		_ = a.Close()
		return nil, fmt.Errorf("app: assist backend: %w", err)
	}
	a.Drafts = drafts.NewService(drafts.NewStore(store), a.Desk, gen,
		drafts.WithHub(hub),
		drafts.WithMetrics(m),
		drafts.WithLogger(logger.Named("drafts")),
	)

	return a, nil
}

// Server builds the admin API over the wired components.
func (a *App) Server() *api.Server {
	s := a.Config.Server
	return api.NewServer(a.Desk, a.Drafts,
		api.WithAuthorizer(a.Tokens),
		api.WithRateStatus(a.Limiter),
		api.WithTemplates(a.Config.Templates),
		api.WithLogger(a.Logger.Named("api")),
		api.WithAPIToken(s.APIToken),
		api.WithReadOnly(s.ReadOnly),
		api.WithRequestsPerMinute(s.RequestsPerMinute),
	)
}

// Watcher builds a poller from the watch config; extra options win.
func (a *App) Watcher(extra ...watch.Option) *watch.Watcher {
	w := a.Config.Watch
	opts := []watch.Option{
		watch.WithLogger(a.Logger.Named("watch")),
		watch.WithMetrics(a.Metrics),
		watch.WithStatus(w.Status),
		watch.WithLimit(w.Limit),
		watch.WithAutoDraft(w.AutoDraft, assist.Options{}),
	}
	if w.Interval > 0 {
		opts = append(opts, watch.WithInterval(w.Interval))
	}
	return watch.New(a.Desk, a.Drafts, append(opts, extra...)...)
}

// Close detaches the audit log and closes the store.
func (a *App) Close() error {
	if a.detachAudit != nil {
		a.detachAudit()
		a.detachAudit = nil
	}
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
