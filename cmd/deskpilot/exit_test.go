package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/goatkit/deskpilot/internal/assist"
	"github.com/goatkit/deskpilot/internal/config"
	"github.com/goatkit/deskpilot/internal/desk"
	"github.com/goatkit/deskpilot/internal/drafts"
	"github.com/goatkit/deskpilot/internal/oauth"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"usage", usagef("bad flag"), exitUsage},
		{"config", &config.ConfigError{Problems: []string{"desk.org_id is required"}}, exitUsage},
		{"wrapped config", fmt.Errorf("load: %w", &config.ConfigError{}), exitUsage},
		{"unknown command", errors.New(`unknown command "frob" for "deskpilot"`), exitUsage},
		{"unknown flag", errors.New("unknown flag: --frob"), exitUsage},
		{"rate limited", &desk.Error{Kind: desk.ErrRateLimited, Op: "list_tickets"}, exitRateLimited},
		{"desk unauthorized", &desk.Error{Kind: desk.ErrUnauthorized, Op: "get_ticket", StatusCode: 401}, exitAuth},
		{"refresh failed inside desk error", &desk.Error{Kind: desk.ErrUnauthorized, Op: "list_tickets", Err: oauth.ErrRefreshFailed}, exitAuth},
		{"missing credentials", oauth.ErrMissingCredentials, exitAuth},
		{"provider rejected", fmt.Errorf("%w: invalid_code", oauth.ErrProviderRejected), exitAuth},
		{"transport", &desk.Error{Kind: desk.ErrTransport, Op: "search"}, exitBackend},
		{"bad response", &desk.Error{Kind: desk.ErrBadResponse, Op: "reply", StatusCode: 500}, exitBackend},
		{"decode", &desk.Error{Kind: desk.ErrDecode, Op: "get_threads"}, exitBackend},
		{"no provider", assist.ErrNoProviderConfigured, exitGeneration},
		{"provider down", fmt.Errorf("generate: %w", assist.ErrProviderUnavailable), exitGeneration},
		{"provider refused", assist.ErrProviderRejected, exitGeneration},
		{"draft missing", drafts.ErrNotFound, exitFailure},
		{"generic", errors.New("boom"), exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestErrorText(t *testing.T) {
	err := &desk.Error{Kind: desk.ErrBadResponse, Op: "reply", StatusCode: 422, Body: `{"errorCode":"INVALID_DATA"}`}

	assert.NotContains(t, errorText(err, false), "INVALID_DATA")
	assert.Contains(t, errorText(err, true), "INVALID_DATA")

	wrapped := fmt.Errorf("drafts: send 7: %w", err)
	assert.Contains(t, errorText(wrapped, true), "drafts: send 7")
	assert.Contains(t, errorText(wrapped, true), "INVALID_DATA")

	assert.Equal(t, "boom", errorText(errors.New("boom"), true))
}
