package apierrors

import (
	"context"
	"errors"

	"github.com/goatkit/deskpilot/internal/assist"
	"github.com/goatkit/deskpilot/internal/desk"
	"github.com/goatkit/deskpilot/internal/drafts"
	"github.com/goatkit/deskpilot/internal/oauth"
)

var sentinelCodes = []struct {
	err  error
	code string
}{
	{oauth.ErrMissingCredentials, CodeOAuthMissingCredentials},
	{oauth.ErrProviderRejected, CodeOAuthRejected},
	{oauth.ErrRefreshFailed, CodeOAuthRefreshFailed},
	{oauth.ErrInvalidState, CodeOAuthInvalidState},
	{desk.ErrRateLimited, CodeDeskRateLimited},
	{desk.ErrUnauthorized, CodeDeskUnauthorized},
	{desk.ErrBadResponse, CodeDeskBadResponse},
	{desk.ErrDecode, CodeDeskDecodeFailed},
	{desk.ErrTransport, CodeDeskUnavailable},
	{assist.ErrNoProviderConfigured, CodeAssistNotConfigured},
	{assist.ErrProviderUnavailable, CodeAssistUnavailable},
	{assist.ErrProviderRejected, CodeAssistRejected},
	{drafts.ErrNotFound, CodeDraftNotFound},
	{drafts.ErrEmptyDraft, CodeDraftEmpty},
	{context.DeadlineExceeded, CodeServiceUnavailable},
}

// CodeFor maps an error from the domain packages onto a registered code.
// OAuth causes are checked before the desk kinds that wrap them.
// Unknown errors map to core:internal_error.
func CodeFor(err error) string {
	if err == nil {
		return ""
	}
	// A desk 404 means the ticket does not exist.
	var de *desk.Error
	if errors.As(err, &de) && de.StatusCode == 404 {
		return CodeNotFound
	}
	for _, sc := range sentinelCodes {
		if errors.Is(err, sc.err) {
			return sc.code
		}
	}
	return CodeInternalError
}
