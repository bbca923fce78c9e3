// Package desk is the helpdesk REST client. Every call acquires a token, takes a
// rate-limit slot and runs under a per-operation timeout; failures come back as
// *Error values whose kind matches one of the Err* sentinels.
package desk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/goatkit/deskpilot/internal/events"
	"github.com/goatkit/deskpilot/internal/kvstore"
	"github.com/goatkit/deskpilot/internal/logging"
	"github.com/goatkit/deskpilot/internal/metrics"
)

// DefaultBaseURL is the US data centre API root.
const DefaultBaseURL = "https://desk.zoho.com/api/v1"

// Per-operation timeouts.
const (
	TimeoutList  = 30 * time.Second
	TimeoutRead  = 20 * time.Second
	TimeoutWrite = 45 * time.Second
	TimeoutTest  = 10 * time.Second
)

// TokenProvider supplies access tokens. *oauth.Store implements it.
type TokenProvider interface {
	ValidToken(ctx context.Context) (string, error)
	Invalidate(ctx context.Context) error
}

// Limiter gates outbound calls. *ratelimit.Limiter implements it.
type Limiter interface {
	Allow(ctx context.Context) bool
}

// Client talks to the helpdesk API.
type Client struct {
	baseURL    string
	orgID      string
	tokens     TokenProvider
	limiter    Limiter
	cache      kvstore.Store
	httpClient *http.Client
	logger     hclog.Logger
	metrics    *metrics.Collectors
	hub        events.Hub
	listTTL    time.Duration
	statsTTL   time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithLogger injects a logger.
func WithLogger(l hclog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics injects prometheus collectors.
func WithMetrics(m *metrics.Collectors) Option {
	return func(c *Client) { c.metrics = m }
}

// WithHub sets the hub that receives ticket events.
func WithHub(h events.Hub) Option {
	return func(c *Client) { c.hub = h }
}

// WithCacheTTL overrides the list/search cache lifetime.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Client) { c.listTTL = d }
}

// New creates a client. cache may be nil to disable response caching.
func New(orgID string, tokens TokenProvider, limiter Limiter, cache kvstore.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		orgID:      orgID,
		tokens:     tokens,
		limiter:    limiter,
		cache:      cache,
		httpClient: &http.Client{},
		listTTL:    5 * time.Minute,
		statsTTL:   time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDiscard(c.logger)
	c.hub = events.OrGlobal(c.hub)
	return c
}

type call struct {
	op      string
	method  string
	path    string
	query   url.Values
	body    any
	timeout time.Duration
	out     any
	// ok decides which status codes count as success; nil means any 2xx.
	ok func(status int) bool
}

func (c *Client) do(ctx context.Context, cl call) (err error) {
	done := c.metrics.ObserveAPICall(cl.op)
	defer func() {
		outcome := "success"
		var de *Error
		if errors.As(err, &de) {
			outcome = outcomeLabel(de.Kind)
		}
		done(outcome)
	}()

	token, err := c.tokens.ValidToken(ctx)
	if err != nil {
		c.logger.Error("no usable access token", "op", cl.op, "error", err)
		return newError(ErrUnauthorized, cl.op, 0, "", err)
	}
	if c.limiter != nil && !c.limiter.Allow(ctx) {
		c.logger.Warn("rate limit reached, call skipped", "op", cl.op)
		return newError(ErrRateLimited, cl.op, 0, "", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, cl.timeout)
	defer cancel()

	fullURL := c.baseURL + cl.path
	if len(cl.query) > 0 {
		fullURL += "?" + cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		raw, err := json.Marshal(cl.body)
		if err != nil {
			return newError(ErrTransport, cl.op, 0, "", fmt.Errorf("marshal request body: %w", err))
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, fullURL, body)
	if err != nil {
		return newError(ErrTransport, cl.op, 0, "", err)
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)
	req.Header.Set("orgId", c.orgID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("desk request failed", "op", cl.op, "method", cl.method, "path", cl.path, "error", err)
		return newError(ErrTransport, cl.op, 0, "", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return newError(ErrTransport, cl.op, resp.StatusCode, "", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// The cached token is stale; drop it so the next call refreshes.
		if ierr := c.tokens.Invalidate(ctx); ierr != nil {
			c.logger.Warn("failed to invalidate access token", "error", ierr)
		}
		c.logger.Error("desk rejected access token", "op", cl.op)
		return newError(ErrUnauthorized, cl.op, resp.StatusCode, string(respBody), nil)
	}

	accept := cl.ok
	if accept == nil {
		accept = func(s int) bool { return s >= 200 && s < 300 }
	}
	if !accept(resp.StatusCode) {
		c.logger.Error("desk returned an error status", "op", cl.op, "status", resp.StatusCode)
		c.logger.Debug("desk error body", "op", cl.op, "body", string(respBody))
		return newError(ErrBadResponse, cl.op, resp.StatusCode, string(respBody), nil)
	}

	if cl.out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, cl.out); err != nil {
		c.logger.Error("desk response not decodable", "op", cl.op, "error", err)
		return newError(ErrDecode, cl.op, resp.StatusCode, string(respBody), err)
	}
	return nil
}

func outcomeLabel(kind error) string {
	switch kind {
	case ErrTransport:
		return "transport_error"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrRateLimited:
		return "rate_limited"
	case ErrBadResponse:
		return "bad_response"
	case ErrDecode:
		return "decode_error"
	}
	return "error"
}

func ticketPath(id string, suffix ...string) string {
	p := "/tickets/" + url.PathEscape(strings.TrimSpace(id))
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}

func (c *Client) publish(eventType, ticketID string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["ticket_id"] = ticketID
	c.hub.Publish(events.New(eventType, data))
}
