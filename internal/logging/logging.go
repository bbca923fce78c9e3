// Package logging builds the structured logger shared by every deskpilot component.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Options controls logger construction.
type Options struct {
	Name   string
	Level  string
	JSON   bool
	Output io.Writer
}

// New returns an hclog logger. Unknown levels fall back to info.
func New(opts Options) hclog.Logger {
	name := opts.Name
	if name == "" {
		name = "deskpilot"
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      ParseLevel(opts.Level),
		Output:     out,
		JSONFormat: opts.JSON,
	})
}

// ParseLevel maps a config string onto an hclog level.
func ParseLevel(level string) hclog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return hclog.Trace
	case "debug":
		return hclog.Debug
	case "warn", "warning":
		return hclog.Warn
	case "error":
		return hclog.Error
	case "off", "none":
		return hclog.Off
	default:
		return hclog.Info
	}
}

// Discard is a logger that drops everything. Used as the nil-logger default.
func Discard() hclog.Logger {
	return hclog.NewNullLogger()
}

// OrDiscard returns l, or a null logger when l is nil.
func OrDiscard(l hclog.Logger) hclog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
