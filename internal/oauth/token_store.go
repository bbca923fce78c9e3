// Package oauth holds the helpdesk OAuth token pair and refreshes the access token
// on demand.
package oauth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"

	"github.com/goatkit/deskpilot/internal/events"
	"github.com/goatkit/deskpilot/internal/kvstore"
	"github.com/goatkit/deskpilot/internal/logging"
	"github.com/goatkit/deskpilot/internal/metrics"
)

// Store keys.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyTokenExpires = "token_expires"
	// KeyRefreshSeed holds a fingerprint of the last configured refresh token.
	KeyRefreshSeed = "refresh_token_seed"
	// KeyStatePrefix prefixes pending authorization states.
	KeyStatePrefix = "oauth_state_"
)

const (
	// DefaultAccountsURL is the Zoho accounts server for the US data centre.
	DefaultAccountsURL = "https://accounts.zoho.com"
	// TokenType is the Authorization scheme the helpdesk expects.
	TokenType = "Zoho-oauthtoken"
	// MinValidity is the shortest remaining lifetime ValidToken hands out.
	MinValidity = 5 * time.Minute

	// StateTTL bounds how long a consent round trip may take.
	StateTTL = 10 * time.Minute

	accessTokenLifetime = 3600 * time.Second
	tokenTimeout        = 30 * time.Second
)

var (
	ErrMissingCredentials = errors.New("oauth: refresh token, client id or client secret missing")
	ErrProviderRejected   = errors.New("oauth: provider returned no access token")
	ErrRefreshFailed      = errors.New("oauth: token request failed")
	ErrInvalidState       = errors.New("oauth: authorization state unknown, expired or already used")
)

// DefaultScopes are requested during authorization.
var DefaultScopes = []string{"Desk.tickets.ALL", "Desk.basic.READ", "Desk.contacts.READ"}

// Credentials are the static client settings from configuration.
type Credentials struct {
	ClientID     string
	ClientSecret string
	OrgID        string
	RedirectURI  string
	Scopes       []string
}

// Store owns the token pair. The pair lives in a kvstore.Store so every process
// sharing the store sees the same tokens.
type Store struct {
	creds       Credentials
	accountsURL string
	kv          kvstore.Store
	httpClient  *http.Client
	now         func() time.Time
	logger      hclog.Logger
	hub         events.Hub
	metrics     *metrics.Collectors
}

// Option configures a Store.
type Option func(*Store)

// WithAccountsURL points the store at a different accounts server.
func WithAccountsURL(u string) Option {
	return func(s *Store) { s.accountsURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient replaces the HTTP client used for token requests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) { s.httpClient = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger injects a logger.
func WithLogger(l hclog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithHub sets the hub that receives token events.
func WithHub(h events.Hub) Option {
	return func(s *Store) { s.hub = h }
}

// WithMetrics injects prometheus collectors.
func WithMetrics(m *metrics.Collectors) Option {
	return func(s *Store) { s.metrics = m }
}

// NewStore creates a token store.
func NewStore(creds Credentials, kv kvstore.Store, opts ...Option) *Store {
	s := &Store{
		creds:       creds,
		accountsURL: DefaultAccountsURL,
		kv:          kv,
		httpClient:  &http.Client{Timeout: tokenTimeout},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDiscard(s.logger)
	s.hub = events.OrGlobal(s.hub)
	if len(s.creds.Scopes) == 0 {
		s.creds.Scopes = DefaultScopes
	}
	return s
}

// OrgID returns the configured organisation id.
func (s *Store) OrgID() string { return s.creds.OrgID }

func (s *Store) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.creds.ClientID,
		ClientSecret: s.creds.ClientSecret,
		RedirectURL:  s.creds.RedirectURI,
		// Zoho expects a comma separated scope list.
		Scopes: []string{strings.Join(s.creds.Scopes, ",")},
		Endpoint: oauth2.Endpoint{
			AuthURL:   s.accountsURL + "/oauth/v2/auth",
			TokenURL:  s.accountsURL + "/oauth/v2/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthCodeURL builds the authorization redirect for the one-time consent flow.
func (s *Store) AuthCodeURL(state string) string {
	return s.oauthConfig().AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

// ValidToken returns an access token valid for at least MinValidity, refreshing
// first when the cached token is missing or about to expire.
func (s *Store) ValidToken(ctx context.Context) (string, error) {
	access, expires := s.cached(ctx)
	if access != "" && expires.Sub(s.now()) >= MinValidity {
		return access, nil
	}
	return s.Refresh(ctx)
}

func (s *Store) cached(ctx context.Context) (string, time.Time) {
	access, err := kvstore.GetString(ctx, s.kv, KeyAccessToken)
	if err != nil {
		return "", time.Time{}
	}
	raw, err := kvstore.GetString(ctx, s.kv, KeyTokenExpires)
	if err != nil {
		return "", time.Time{}
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return "", time.Time{}
	}
	return access, time.Unix(secs, 0)
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	APIDomain    string `json:"api_domain"`
	TokenType    string `json:"token_type"`
	Error        string `json:"error"`
}

// Refresh exchanges the refresh token for a new access token. It makes exactly
// one attempt; a rejected response leaves the previous token in place.
func (s *Store) Refresh(ctx context.Context) (string, error) {
	refresh, _ := kvstore.GetString(ctx, s.kv, KeyRefreshToken)
	if refresh == "" || s.creds.ClientID == "" || s.creds.ClientSecret == "" {
		s.observeRefresh("missing_credentials")
		return "", ErrMissingCredentials
	}

	resp, err := s.postToken(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refresh},
		"client_id":     {s.creds.ClientID},
		"client_secret": {s.creds.ClientSecret},
	})
	if err != nil {
		s.observeRefresh("failure")
		s.logger.Error("token refresh failed", "error", err)
		return "", err
	}
	if resp.AccessToken == "" {
		s.observeRefresh("rejected")
		s.logger.Warn("token refresh rejected", "provider_error", resp.Error)
		if resp.Error != "" {
			return "", fmt.Errorf("%w: %s", ErrProviderRejected, resp.Error)
		}
		return "", ErrProviderRejected
	}

	expires := s.now().Add(accessTokenLifetime)
	if err := s.persist(ctx, resp.AccessToken, resp.RefreshToken, expires); err != nil {
		s.observeRefresh("failure")
		return "", err
	}
	s.observeRefresh("success")
	s.logger.Debug("access token refreshed", "expires_at", expires.UTC().Format(time.RFC3339))
	s.hub.Publish(events.New(events.TokenRefreshed, map[string]any{
		"expires_at": expires.UTC().Format(time.RFC3339),
	}))
	return resp.AccessToken, nil
}

// ExchangeCode trades a one-time authorization code for the initial token pair.
func (s *Store) ExchangeCode(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return errors.New("oauth: authorization code is required")
	}
	if s.creds.ClientID == "" || s.creds.ClientSecret == "" {
		return ErrMissingCredentials
	}

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {s.creds.ClientID},
		"client_secret": {s.creds.ClientSecret},
	}
	if s.creds.RedirectURI != "" {
		form.Set("redirect_uri", s.creds.RedirectURI)
	}

	resp, err := s.postToken(ctx, form)
	if err != nil {
		return err
	}
	if resp.AccessToken == "" {
		if resp.Error != "" {
			return fmt.Errorf("%w: %s", ErrProviderRejected, resp.Error)
		}
		return ErrProviderRejected
	}
	if resp.RefreshToken == "" {
		s.logger.Warn("authorization code exchange returned no refresh token; re-consent with access_type=offline")
	}

	expires := s.now().Add(accessTokenLifetime)
	if err := s.persist(ctx, resp.AccessToken, resp.RefreshToken, expires); err != nil {
		return err
	}
	s.hub.Publish(events.New(events.TokenExchanged, map[string]any{
		"expires_at":    expires.UTC().Format(time.RFC3339),
		"refresh_token": resp.RefreshToken != "",
	}))
	return nil
}

// SeedRefreshToken stores a refresh token supplied out of band (configuration).
// A stored token is kept while the configured value is unchanged, so a token
// rotated by ExchangeCode survives restarts. A new configured value replaces the
// stored token and drops the cached access token.
func (s *Store) SeedRefreshToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	sum := sha256.Sum256([]byte(token))
	fingerprint := hex.EncodeToString(sum[:])

	existing, _ := kvstore.GetString(ctx, s.kv, KeyRefreshToken)
	seeded, _ := kvstore.GetString(ctx, s.kv, KeyRefreshSeed)
	switch {
	case seeded == fingerprint:
		if existing != "" {
			return nil
		}
	case existing != "" && seeded == "":
		// First start with this store keeps whatever an exchange left behind.
		return s.kv.Set(ctx, KeyRefreshSeed, []byte(fingerprint), 0)
	}

	if err := s.kv.Set(ctx, KeyRefreshToken, []byte(token), 0); err != nil {
		return fmt.Errorf("oauth: store refresh token: %w", err)
	}
	if err := s.kv.Set(ctx, KeyRefreshSeed, []byte(fingerprint), 0); err != nil {
		return fmt.Errorf("oauth: store refresh seed: %w", err)
	}
	if existing != "" {
		s.logger.Info("configured refresh token changed; replacing stored token")
		return s.Invalidate(ctx)
	}
	return nil
}

// NewState issues a single-use authorization state valid for StateTTL.
func (s *Store) NewState(ctx context.Context) (string, error) {
	state := uuid.NewString()
	if err := s.kv.Set(ctx, KeyStatePrefix+state, []byte("1"), StateTTL); err != nil {
		return "", fmt.Errorf("oauth: store state: %w", err)
	}
	return state, nil
}

// ConsumeState accepts a state issued by NewState exactly once.
func (s *Store) ConsumeState(ctx context.Context, state string) error {
	state = strings.TrimSpace(state)
	if state == "" {
		return ErrInvalidState
	}
	key := KeyStatePrefix + state
	if _, err := s.kv.Get(ctx, key); err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return ErrInvalidState
		}
		return fmt.Errorf("oauth: load state: %w", err)
	}
	if err := s.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("oauth: consume state: %w", err)
	}
	return nil
}

// Invalidate drops the cached access token so the next call refreshes.
func (s *Store) Invalidate(ctx context.Context) error {
	if err := s.kv.Delete(ctx, KeyAccessToken); err != nil {
		return err
	}
	return s.kv.Delete(ctx, KeyTokenExpires)
}

// Token implements oauth2.TokenSource.
func (s *Store) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), tokenTimeout)
	defer cancel()
	access, err := s.ValidToken(ctx)
	if err != nil {
		return nil, err
	}
	_, expires := s.cached(ctx)
	refresh, _ := kvstore.GetString(ctx, s.kv, KeyRefreshToken)
	return &oauth2.Token{
		AccessToken:  access,
		TokenType:    TokenType,
		RefreshToken: refresh,
		Expiry:       expires,
	}, nil
}

// Status summarises what the store currently holds.
type Status struct {
	HasRefreshToken bool      `json:"has_refresh_token"`
	HasAccessToken  bool      `json:"has_access_token"`
	ExpiresAt       time.Time `json:"expires_at,omitempty"`
	ClientID        string    `json:"client_id"`
	OrgID           string    `json:"org_id"`
}

// Status reports token presence without exposing token values.
func (s *Store) Status(ctx context.Context) Status {
	refresh, _ := kvstore.GetString(ctx, s.kv, KeyRefreshToken)
	access, expires := s.cached(ctx)
	return Status{
		HasRefreshToken: refresh != "",
		HasAccessToken:  access != "",
		ExpiresAt:       expires,
		ClientID:        s.creds.ClientID,
		OrgID:           s.creds.OrgID,
	}
}

func (s *Store) persist(ctx context.Context, access, refresh string, expires time.Time) error {
	ttl := expires.Sub(s.now())
	if err := s.kv.Set(ctx, KeyAccessToken, []byte(access), ttl); err != nil {
		return fmt.Errorf("oauth: store access token: %w", err)
	}
	if err := s.kv.Set(ctx, KeyTokenExpires, []byte(strconv.FormatInt(expires.Unix(), 10)), ttl); err != nil {
		return fmt.Errorf("oauth: store token expiry: %w", err)
	}
	if refresh != "" {
		if err := s.kv.Set(ctx, KeyRefreshToken, []byte(refresh), 0); err != nil {
			return fmt.Errorf("oauth: store refresh token: %w", err)
		}
	}
	return nil
}

func (s *Store) postToken(ctx context.Context, form url.Values) (*tokenResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, tokenTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.oauthConfig().Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrRefreshFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrRefreshFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out tokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrRefreshFailed, err)
	}
	return &out, nil
}

func (s *Store) observeRefresh(outcome string) {
	if s.metrics != nil {
		s.metrics.TokenRefreshes.WithLabelValues(outcome).Inc()
	}
}
