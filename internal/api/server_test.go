package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goatkit/deskpilot/internal/assist"
	"github.com/goatkit/deskpilot/internal/classify"
	"github.com/goatkit/deskpilot/internal/desk"
	"github.com/goatkit/deskpilot/internal/drafts"
	"github.com/goatkit/deskpilot/internal/events"
	"github.com/goatkit/deskpilot/internal/kvstore"
	"github.com/goatkit/deskpilot/internal/oauth"
	"github.com/goatkit/deskpilot/internal/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeDesk struct {
	tickets  map[string]desk.Ticket
	threads  []desk.Thread
	err      error
	replies  []string
	comments []string
	status   string
	tags     []string
	tagMode  desk.TagMode
	filter   desk.Filter
	search   string
	stype    desk.SearchType
}

func (f *fakeDesk) ListTickets(_ context.Context, fl desk.Filter) (*desk.TicketPage, error) {
	f.filter = fl
	if f.err != nil {
		return nil, f.err
	}
	page := &desk.TicketPage{Tickets: []desk.Ticket{}, From: fl.From, Limit: fl.Limit}
	for _, t := range f.tickets {
		page.Tickets = append(page.Tickets, t)
	}
	return page, nil
}

func (f *fakeDesk) GetTicket(_ context.Context, id string) (*desk.Ticket, error) {
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tickets[id]
	if !ok {
		return nil, &desk.Error{Kind: desk.ErrBadResponse, Op: "get_ticket", StatusCode: 404}
	}
	return &t, nil
}

func (f *fakeDesk) GetThreads(context.Context, string) ([]desk.Thread, error) { return f.threads, nil }
func (f *fakeDesk) GetConversations(context.Context, string) ([]desk.Conversation, error) {
	return nil, nil
}
func (f *fakeDesk) GetComments(context.Context, string) ([]desk.Comment, error) { return nil, nil }

func (f *fakeDesk) Reply(_ context.Context, _ string, content string, _ bool) error {
	if f.err != nil {
		return f.err
	}
	f.replies = append(f.replies, content)
	return nil
}

func (f *fakeDesk) AddComment(_ context.Context, _ string, content string, _ bool) error {
	f.comments = append(f.comments, content)
	return nil
}

func (f *fakeDesk) UpdateStatus(_ context.Context, _ string, status string) error {
	f.status = status
	return f.err
}

func (f *fakeDesk) TagTicket(_ context.Context, _ string, tags []string, mode desk.TagMode) error {
	f.tags, f.tagMode = tags, mode
	return f.err
}

func (f *fakeDesk) Search(_ context.Context, q string, st desk.SearchType, _ desk.SearchOptions) (*desk.SearchResult, error) {
	f.search, f.stype = q, st
	if f.err != nil {
		return nil, f.err
	}
	return &desk.SearchResult{Query: q, Type: st, Tickets: []desk.Ticket{}}, nil
}

func (f *fakeDesk) Stats(context.Context, bool) (*desk.Stats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return desk.Aggregate([]desk.Ticket{{Status: "Open"}, {Status: "Closed", StatusType: "Closed"}}), nil
}

type fakeGenerator struct{}

func (fakeGenerator) Name() string { return "fake" }
func (fakeGenerator) Generate(_ context.Context, req assist.Request) (*assist.Result, error) {
	return &assist.Result{Text: "Hello " + req.Ticket.CustomerName(), Provider: "fake"}, nil
}

// fakeAuth keeps the real state bookkeeping and fakes the token endpoint.
type fakeAuth struct {
	*oauth.Store
	exchanged string
	err       error
}

func (a *fakeAuth) AuthCodeURL(state string) string {
	return "https://accounts.example/oauth/v2/auth?state=" + state
}
func (a *fakeAuth) ExchangeCode(_ context.Context, code string) error {
	a.exchanged = code
	return a.err
}
func (a *fakeAuth) Status(context.Context) oauth.Status { return oauth.Status{HasRefreshToken: a.exchanged != ""} }

type harness struct {
	desk   *fakeDesk
	auth   *fakeAuth
	drafts *drafts.Service
	router http.Handler
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	kv := kvstore.NewMemoryStore(nil)
	h := &harness{
		desk: &fakeDesk{
			tickets: map[string]desk.Ticket{
				"101": {ID: "101", Subject: "Refund please", Status: "Open", Contact: &desk.Contact{FirstName: "Ana"}},
			},
			threads: []desk.Thread{{ID: "t1", Content: "I want my money back", CreatedTime: "2024-01-17T09:00:00.000Z", AuthorType: "END_USER"}},
		},
		auth: &fakeAuth{Store: oauth.NewStore(oauth.Credentials{}, kv)},
	}
	h.drafts = drafts.NewService(drafts.NewStore(kv), h.desk, fakeGenerator{}, drafts.WithHub(events.NewMemoryHub()))
	base := []Option{
		WithAuthorizer(h.auth),
		WithRateStatus(ratelimit.New(kv, 45)),
		WithTemplates([]classify.Template{{ID: "refund", Name: "Refund", Tags: []string{"refund"}, Content: "Refunded."}}),
	}
	h.router = NewServer(h.desk, h.drafts, append(base, opts...)...).Handler()
	return h
}

func (h *harness) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		buf = bytes.NewReader(raw)
	} else {
		buf = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w)
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, w.Body.String())
	return e["code"].(string)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = h.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestErrorCodes(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/api/v1/errors", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"desk:rate_limited"`)
	assert.Contains(t, w.Body.String(), `"namespaces"`)

	w = h.do(http.MethodGet, "/api/v1/errors?namespace=oauth", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"oauth:invalid_state"`)
	assert.NotContains(t, w.Body.String(), `"desk:`)

	w = h.do(http.MethodGet, "/api/v1/errors?namespace=nope", nil)
	assert.JSONEq(t, `{"codes":[]}`, w.Body.String())
}

func TestListTickets(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/api/v1/tickets?status=Open&limit=5&from=10&force=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, desk.Filter{Status: "Open", Limit: 5, From: 10, Force: true}, h.desk.filter)
	assert.Len(t, decode(t, w)["tickets"], 1)

	w = h.do(http.MethodGet, "/api/v1/tickets?limit=lots", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "core:validation_failed", errorCode(t, w))
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"rate limited", &desk.Error{Kind: desk.ErrRateLimited, Op: "list_tickets"}, http.StatusTooManyRequests, "desk:rate_limited"},
		{"unauthorized", &desk.Error{Kind: desk.ErrUnauthorized, Op: "list_tickets", StatusCode: 401}, http.StatusBadGateway, "desk:unauthorized"},
		{"transport", &desk.Error{Kind: desk.ErrTransport, Op: "list_tickets"}, http.StatusBadGateway, "desk:unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.desk.err = tt.err
			w := h.do(http.MethodGet, "/api/v1/tickets", nil)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestGetTicket(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/api/v1/tickets/101", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Refund please", decode(t, w)["subject"])

	w = h.do(http.MethodGet, "/api/v1/tickets/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(http.MethodGet, "/api/v1/tickets/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "core:invalid_id", errorCode(t, w))
}

func TestConversationAndClassification(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/api/v1/tickets/101/conversation", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "customer", msgs[0].(map[string]any)["author_type"])

	w = h.do(http.MethodGet, "/api/v1/tickets/101/classification", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	tags := body["classification"].(map[string]any)["tags"].([]any)
	assert.Contains(t, tags, "refund")
	assert.Len(t, body["suggestions"], 1)
}

func TestReply(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodPost, "/api/v1/tickets/101/reply", map[string]any{"content": "**Done**"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, h.desk.replies, 1)
	assert.Contains(t, h.desk.replies[0], "<strong>Done</strong>")

	w = h.do(http.MethodPost, "/api/v1/tickets/101/reply", map[string]any{"content": "note", "public": false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, h.desk.comments, 1)

	w = h.do(http.MethodPost, "/api/v1/tickets/101/reply", map[string]any{"content": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusAndTags(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodPatch, "/api/v1/tickets/101/status", map[string]any{"status": "Closed"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Closed", h.desk.status)

	w = h.do(http.MethodPost, "/api/v1/tickets/101/tags", map[string]any{"tags": []string{"VIP", "vip", " "}, "mode": "replace"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"VIP"}, h.desk.tags)
	assert.Equal(t, desk.TagReplace, h.desk.tagMode)

	w = h.do(http.MethodPost, "/api/v1/tickets/101/tags", map[string]any{"auto": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, h.desk.tags, "refund")
	assert.Equal(t, desk.TagAdd, h.desk.tagMode)

	w = h.do(http.MethodPost, "/api/v1/tickets/101/tags", map[string]any{"tags": []string{"x"}, "mode": "toggle"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchAndStats(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/api/v1/search?q=jane@example.com&type=email", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, desk.SearchEmail, h.desk.stype)

	w = h.do(http.MethodGet, "/api/v1/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodGet, "/api/v1/search?q=x&type=fuzzy", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["total"])
}

func TestDraftLifecycle(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/v1/tickets/101/draft", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "drafts:not_found", errorCode(t, w))

	w = h.do(http.MethodPost, "/api/v1/tickets/101/draft/generate", map[string]any{"tone": "friendly"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Hello Ana", decode(t, w)["content"])

	w = h.do(http.MethodPost, "/api/v1/tickets/101/draft/generate", map[string]any{"tone": "sarcastic"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPut, "/api/v1/tickets/101/draft", map[string]any{"content": "Hello Ana, edited"})
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodGet, "/api/v1/drafts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["count"])

	w = h.do(http.MethodPost, "/api/v1/tickets/101/draft/send", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "sent", decode(t, w)["status"])
	require.Len(t, h.desk.replies, 1)
	assert.Contains(t, h.desk.replies[0], "Hello Ana, edited")

	w = h.do(http.MethodPost, "/api/v1/tickets/101/draft/send", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	h.do(http.MethodPost, "/api/v1/tickets/101/draft/generate", nil)
	w = h.do(http.MethodDelete, "/api/v1/tickets/101/draft", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestDraftGenerateWithoutProvider(t *testing.T) {
	h := newHarness(t)
	noGen := drafts.NewService(drafts.NewStore(kvstore.NewMemoryStore(nil)), h.desk, nil)
	router := NewServer(h.desk, noGen).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets/101/draft/generate", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "assist:not_configured", errorCode(t, w))
}

func TestOAuthFlow(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/v1/oauth/authorize", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	redirectState := loc.Query().Get("state")
	assert.NotEmpty(t, redirectState)

	w = h.do(http.MethodGet, "/api/v1/oauth/authorize?format=json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Contains(t, body["url"], "accounts.example")
	state := body["state"].(string)
	assert.NotEqual(t, redirectState, state, "every authorize request gets its own state")

	w = h.do(http.MethodGet, "/api/v1/oauth/callback?code=abc&state=wrong", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "oauth:invalid_state", errorCode(t, w))

	w = h.do(http.MethodGet, "/api/v1/oauth/callback?code=abc&state=deskpilot", nil)
	assert.Equal(t, "oauth:invalid_state", errorCode(t, w), "no fixed state is accepted")
	assert.Empty(t, h.auth.exchanged)

	w = h.do(http.MethodGet, "/api/v1/oauth/callback?error=access_denied&state="+redirectState, nil)
	assert.Equal(t, "oauth:provider_rejected", errorCode(t, w))

	w = h.do(http.MethodGet, "/api/v1/oauth/callback?code=abc&state="+state, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "abc", h.auth.exchanged)

	w = h.do(http.MethodGet, "/api/v1/oauth/callback?code=def&state="+state, nil)
	assert.Equal(t, "oauth:invalid_state", errorCode(t, w), "a state is consumed by its callback")
	assert.Equal(t, "abc", h.auth.exchanged)

	w = h.do(http.MethodGet, "/api/v1/ratelimit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.EqualValues(t, 45, body["rate_limit"].(map[string]any)["limit"])
	assert.Equal(t, true, body["token"].(map[string]any)["has_refresh_token"])
}

func TestOAuthRoutesSkipAPIToken(t *testing.T) {
	h := newHarness(t, WithAPIToken("s3cret"))

	w := h.do(http.MethodGet, "/api/v1/oauth/authorize?format=json", nil)
	require.Equal(t, http.StatusOK, w.Code, "the browser reaches authorize without a bearer token")
	state := decode(t, w)["state"].(string)

	w = h.do(http.MethodGet, "/api/v1/oauth/callback?code=abc&state="+state, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "abc", h.auth.exchanged)

	w = h.do(http.MethodGet, "/api/v1/ratelimit", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "the rest of the API still needs the token")
}

func TestAuthAndReadOnly(t *testing.T) {
	h := newHarness(t, WithAPIToken("s3cret"), WithReadOnly(true))

	w := h.do(http.MethodGet, "/api/v1/tickets", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tickets", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w = httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodPatch, "/api/v1/tickets/101/status", strings.NewReader(`{"status":"Closed"}`))
	req.Header.Set("Authorization", "Bearer s3cret")
	w = httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, h.desk.status)

	w = h.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code, "health is outside the token check")
}
