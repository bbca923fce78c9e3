// Package apierrors provides structured API error codes and responses.
// All codes are namespaced (e.g., "core:unauthorized", "desk:rate_limited").
package apierrors

import "net/http"

// Core error codes, registered at init.
const (
	CodeUnauthorized = "core:unauthorized"
	CodeForbidden    = "core:forbidden"
	CodeInvalidToken = "core:invalid_token"

	// Request errors
	CodeInvalidRequest   = "core:invalid_request"
	CodeValidationFailed = "core:validation_failed"
	CodeInvalidID        = "core:invalid_id"

	CodeNotFound = "core:not_found"

	// Inbound rate limiting on the admin API
	CodeRateLimited = "core:rate_limited"

	// Server errors
	CodeInternalError      = "core:internal_error"
	CodeServiceUnavailable = "core:service_unavailable"
)

// Helpdesk backend codes
const (
	CodeDeskUnauthorized = "desk:unauthorized"
	CodeDeskRateLimited  = "desk:rate_limited"
	CodeDeskUnavailable  = "desk:unavailable"
	CodeDeskBadResponse  = "desk:bad_response"
	CodeDeskDecodeFailed = "desk:decode_failed"
)

// OAuth codes
const (
	CodeOAuthMissingCredentials = "oauth:missing_credentials"
	CodeOAuthRejected           = "oauth:provider_rejected"
	CodeOAuthRefreshFailed      = "oauth:refresh_failed"
	CodeOAuthInvalidState       = "oauth:invalid_state"
)

// Draft generation and lifecycle codes
const (
	CodeAssistNotConfigured = "assist:not_configured"
	CodeAssistUnavailable   = "assist:unavailable"
	CodeAssistRejected      = "assist:rejected"
	CodeDraftNotFound       = "drafts:not_found"
	CodeDraftEmpty          = "drafts:empty"
)

// Catalog is a namespace's list of codes. Codes without a namespace prefix get
// the one they are registered under.
type Catalog []ErrorCode

// EnumerateErrors implements ErrorEnumerator.
func (c Catalog) EnumerateErrors() []ErrorCode { return c }

var coreErrors = Catalog{
	{Code: "unauthorized", Message: "Authentication required", HTTPStatus: http.StatusUnauthorized},
	{Code: "forbidden", Message: "Permission denied", HTTPStatus: http.StatusForbidden},
	{Code: "invalid_token", Message: "Invalid or malformed token", HTTPStatus: http.StatusUnauthorized},

	{Code: "invalid_request", Message: "Invalid request body", HTTPStatus: http.StatusBadRequest},
	{Code: "validation_failed", Message: "Request validation failed", HTTPStatus: http.StatusBadRequest},
	{Code: "invalid_id", Message: "Invalid ID format", HTTPStatus: http.StatusBadRequest},

	{Code: "not_found", Message: "Resource not found", HTTPStatus: http.StatusNotFound},

	{Code: "rate_limited", Message: "Too many requests", HTTPStatus: http.StatusTooManyRequests},

	{Code: "internal_error", Message: "Internal server error", HTTPStatus: http.StatusInternalServerError},
	{Code: "service_unavailable", Message: "Service temporarily unavailable", HTTPStatus: http.StatusServiceUnavailable},
}

var deskErrors = Catalog{
	{Code: "unauthorized", Message: "Helpdesk rejected the access token; re-authorize the connection", HTTPStatus: http.StatusBadGateway},
	{Code: "rate_limited", Message: "Helpdesk API rate limit reached; try again shortly", HTTPStatus: http.StatusTooManyRequests},
	{Code: "unavailable", Message: "Helpdesk API unreachable", HTTPStatus: http.StatusBadGateway},
	{Code: "bad_response", Message: "Helpdesk API returned an error", HTTPStatus: http.StatusBadGateway},
	{Code: "decode_failed", Message: "Helpdesk API returned malformed data", HTTPStatus: http.StatusBadGateway},
}

var oauthErrors = Catalog{
	{Code: "missing_credentials", Message: "OAuth client or refresh token not configured", HTTPStatus: http.StatusServiceUnavailable},
	{Code: "provider_rejected", Message: "Authorization server rejected the request", HTTPStatus: http.StatusBadGateway},
	{Code: "refresh_failed", Message: "Token refresh failed", HTTPStatus: http.StatusBadGateway},
	{Code: "invalid_state", Message: "OAuth state unknown, expired or already used", HTTPStatus: http.StatusBadRequest},
}

var assistErrors = Catalog{
	{Code: "not_configured", Message: "No AI provider configured", HTTPStatus: http.StatusServiceUnavailable},
	{Code: "unavailable", Message: "AI provider unavailable", HTTPStatus: http.StatusBadGateway},
	{Code: "rejected", Message: "AI provider rejected the request", HTTPStatus: http.StatusBadGateway},
}

var draftErrors = Catalog{
	{Code: "not_found", Message: "No draft for this ticket", HTTPStatus: http.StatusNotFound},
	{Code: "empty", Message: "Draft content is empty", HTTPStatus: http.StatusBadRequest},
}

func init() {
	Registry.RegisterNamespace("core", coreErrors)
	Registry.RegisterNamespace("desk", deskErrors)
	Registry.RegisterNamespace("oauth", oauthErrors)
	Registry.RegisterNamespace("assist", assistErrors)
	Registry.RegisterNamespace("drafts", draftErrors)
}
