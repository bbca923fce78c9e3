// Package api serves the JSON admin API over gin. It exposes the same ticket,
// draft and OAuth operations as the CLI.
package api

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goatkit/deskpilot/internal/apierrors"
	"github.com/goatkit/deskpilot/internal/classify"
	"github.com/goatkit/deskpilot/internal/desk"
	"github.com/goatkit/deskpilot/internal/drafts"
	"github.com/goatkit/deskpilot/internal/logging"
	"github.com/goatkit/deskpilot/internal/middleware"
	"github.com/goatkit/deskpilot/internal/oauth"
	"github.com/goatkit/deskpilot/internal/ratelimit"
)

// Desk is the helpdesk surface the API needs. *desk.Client implements it.
type Desk interface {
	drafts.Desk
	ListTickets(ctx context.Context, f desk.Filter) (*desk.TicketPage, error)
	AddComment(ctx context.Context, id, content string, public bool) error
	UpdateStatus(ctx context.Context, id, status string) error
	TagTicket(ctx context.Context, id string, tags []string, mode desk.TagMode) error
	Search(ctx context.Context, query string, st desk.SearchType, opts desk.SearchOptions) (*desk.SearchResult, error)
	Stats(ctx context.Context, force bool) (*desk.Stats, error)
}

// Authorizer runs the OAuth consent flow. *oauth.Store implements it.
type Authorizer interface {
	NewState(ctx context.Context) (string, error)
	ConsumeState(ctx context.Context, state string) error
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) error
	Status(ctx context.Context) oauth.Status
}

// RateStatus reports outbound budget. *ratelimit.Limiter implements it.
type RateStatus interface {
	Snapshot(ctx context.Context) ratelimit.Status
}

// Server holds the handlers' dependencies.
type Server struct {
	desk       Desk
	drafts     *drafts.Service
	auth       Authorizer
	rate       RateStatus
	templates  []classify.Template
	logger     hclog.Logger
	apiToken   string
	readOnly   bool
	perMinute  int
	metrics    http.Handler
	engine     *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

func WithAuthorizer(a Authorizer) Option { return func(s *Server) { s.auth = a } }

func WithRateStatus(r RateStatus) Option { return func(s *Server) { s.rate = r } }

func WithTemplates(t []classify.Template) Option { return func(s *Server) { s.templates = t } }

func WithLogger(l hclog.Logger) Option { return func(s *Server) { s.logger = l } }

// WithAPIToken requires the bearer token on /api/v1.
func WithAPIToken(token string) Option { return func(s *Server) { s.apiToken = token } }

func WithReadOnly(ro bool) Option { return func(s *Server) { s.readOnly = ro } }

// WithRequestsPerMinute sets the per-client inbound budget.
func WithRequestsPerMinute(n int) Option { return func(s *Server) { s.perMinute = n } }

// WithMetricsHandler replaces the promhttp default handler on /metrics.
func WithMetricsHandler(h http.Handler) Option { return func(s *Server) { s.metrics = h } }

// NewServer builds the gin engine with every route registered.
func NewServer(d Desk, ds *drafts.Service, opts ...Option) *Server {
	s := &Server{desk: d, drafts: ds}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDiscard(s.logger)
	if s.metrics == nil {
		s.metrics = promhttp.Handler()
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(s.logger))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(s.metrics))

	limiter := middleware.NewRateLimiter(nil)

	// The consent redirect comes back from the accounts server without a bearer
	// token; the single-use state guards the callback instead.
	oa := r.Group("/api/v1/oauth")
	oa.Use(middleware.RateLimitByIP(limiter, s.perMinute))
	oa.GET("/authorize", s.handleAuthorize)
	oa.GET("/callback", s.handleCallback)

	v1 := r.Group("/api/v1")
	v1.Use(
		middleware.APITokenAuth(s.apiToken),
		middleware.RateLimitByIP(limiter, s.perMinute),
		middleware.ReadOnly(s.readOnly),
	)

	v1.GET("/tickets", s.handleListTickets)
	v1.GET("/tickets/:id", s.handleGetTicket)
	v1.GET("/tickets/:id/conversation", s.handleConversation)
	v1.GET("/tickets/:id/classification", s.handleClassification)
	v1.POST("/tickets/:id/reply", s.handleReply)
	v1.PATCH("/tickets/:id/status", s.handleUpdateStatus)
	v1.POST("/tickets/:id/tags", s.handleTags)
	v1.GET("/search", s.handleSearch)
	v1.GET("/stats", s.handleStats)

	v1.GET("/tickets/:id/draft", s.handleGetDraft)
	v1.PUT("/tickets/:id/draft", s.handlePutDraft)
	v1.DELETE("/tickets/:id/draft", s.handleDeleteDraft)
	v1.POST("/tickets/:id/draft/generate", s.handleGenerateDraft)
	v1.POST("/tickets/:id/draft/send", s.handleSendDraft)
	v1.GET("/drafts", s.handleListDrafts)

	v1.GET("/ratelimit", s.handleRateLimit)
	v1.GET("/errors", s.handleErrorCodes)

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("api shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

var ticketIDPattern = regexp.MustCompile(`^\d{1,24}$`)

// ticketID validates the :id path parameter.
func ticketID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if !ticketIDPattern.MatchString(id) {
		apierrors.ErrorWithMessage(c, apierrors.CodeInvalidID, "ticket id must be numeric")
		return "", false
	}
	return id, true
}

// fail logs err and writes the mapped error response.
func (s *Server) fail(c *gin.Context, op string, err error) {
	code := apierrors.CodeFor(err)
	if status := apierrors.Registry.HTTPStatus(code); status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "op", op, "code", code, "error", err)
	} else {
		s.logger.Debug("request rejected", "op", op, "code", code, "error", err)
	}
	apierrors.Error(c, code)
}

func invalid(c *gin.Context, msg string) {
	apierrors.ErrorWithMessage(c, apierrors.CodeValidationFailed, msg)
}
