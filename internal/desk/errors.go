package desk

import (
	"errors"
	"fmt"
)

// Error kinds. Every *Error wraps exactly one of these.
var (
	ErrTransport    = errors.New("desk: transport failure")
	ErrUnauthorized = errors.New("desk: unauthorized")
	ErrRateLimited  = errors.New("desk: rate limit reached")
	ErrBadResponse  = errors.New("desk: unexpected response")
	ErrDecode       = errors.New("desk: malformed response")
)

// Error is the failure returned by every Client operation.
type Error struct {
	Kind       error
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Detail is the debug view: kind, status and the truncated response body.
func (e *Error) Detail() string {
	if e.Body == "" {
		return e.Error()
	}
	return e.Error() + "\n" + e.Body
}

func newError(kind error, op string, status int, body string, cause error) *Error {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}
	return &Error{Kind: kind, Op: op, StatusCode: status, Body: body, Err: cause}
}

const maxErrorBody = 2048
