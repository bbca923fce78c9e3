package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goatkit/deskpilot/internal/assist"
	"github.com/goatkit/deskpilot/internal/config"
	"github.com/goatkit/deskpilot/internal/desk"
	"github.com/goatkit/deskpilot/internal/oauth"
)

// Process exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitAuth        = 3
	exitBackend     = 4
	exitRateLimited = 5
	exitGeneration  = 6
)

// usageError marks bad flags or arguments.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// exitCode maps an error returned by a command onto the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var ue *usageError
	var ce *config.ConfigError
	switch {
	case errors.As(err, &ue), errors.As(err, &ce):
		return exitUsage
	case strings.HasPrefix(err.Error(), "unknown command"),
		strings.HasPrefix(err.Error(), "unknown flag"),
		strings.HasPrefix(err.Error(), "unknown shorthand flag"):
		return exitUsage
	case errors.Is(err, desk.ErrRateLimited):
		return exitRateLimited
	case errors.Is(err, oauth.ErrMissingCredentials),
		errors.Is(err, oauth.ErrProviderRejected),
		errors.Is(err, oauth.ErrRefreshFailed),
		errors.Is(err, desk.ErrUnauthorized):
		return exitAuth
	case errors.Is(err, desk.ErrTransport),
		errors.Is(err, desk.ErrBadResponse),
		errors.Is(err, desk.ErrDecode):
		return exitBackend
	case errors.Is(err, assist.ErrProviderUnavailable),
		errors.Is(err, assist.ErrProviderRejected),
		errors.Is(err, assist.ErrNoProviderConfigured):
		return exitGeneration
	}
	return exitFailure
}

// errorText is the message printed for err. Debug adds the backend detail.
func errorText(err error, debug bool) string {
	var de *desk.Error
	if debug && errors.As(err, &de) {
		if err == error(de) {
			return de.Detail()
		}
		return err.Error() + "\n" + de.Detail()
	}
	return err.Error()
}
