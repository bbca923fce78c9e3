// Package assist produces reply drafts for a ticket. A Generator takes the
// ticket and its unified conversation and returns draft text; the backends are
// a direct LLM call, a copy-paste prompt for a browser AI, and a managed relay.
package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goatkit/deskpilot/internal/conversation"
	"github.com/goatkit/deskpilot/internal/desk"
)

var (
	ErrProviderUnavailable  = errors.New("assist: provider unavailable")
	ErrProviderRejected     = errors.New("assist: provider rejected the request")
	ErrNoProviderConfigured = errors.New("assist: no provider configured")
)

// ResponseType is the kind of reply to draft.
type ResponseType string

const (
	ResponseReply      ResponseType = "reply"
	ResponseFollowUp   ResponseType = "follow_up"
	ResponseResolution ResponseType = "resolution"
	ResponseEscalation ResponseType = "escalation"
)

// Tone is the register of the draft.
type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneFriendly     Tone = "friendly"
	ToneEmpathetic   Tone = "empathetic"
	ToneConcise      Tone = "concise"
)

var responseTypes = []ResponseType{ResponseReply, ResponseFollowUp, ResponseResolution, ResponseEscalation}

var tones = []Tone{ToneProfessional, ToneFriendly, ToneEmpathetic, ToneConcise}

// ParseResponseType accepts the names above plus "follow-up"; empty means reply.
func ParseResponseType(s string) (ResponseType, error) {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	if s == "" {
		return ResponseReply, nil
	}
	for _, rt := range responseTypes {
		if string(rt) == s {
			return rt, nil
		}
	}
	return "", fmt.Errorf("assist: unknown response type %q", s)
}

// ParseTone accepts the tone names; empty means professional.
func ParseTone(s string) (Tone, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ToneProfessional, nil
	}
	for _, t := range tones {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("assist: unknown tone %q", s)
}

// Options shape the draft.
type Options struct {
	ResponseType ResponseType `json:"response_type"`
	Tone         Tone         `json:"tone"`
	// Instructions are free-form extra guidance from the agent.
	Instructions string `json:"instructions,omitempty"`
}

func (o Options) withDefaults() Options {
	if o.ResponseType == "" {
		o.ResponseType = ResponseReply
	}
	if o.Tone == "" {
		o.Tone = ToneProfessional
	}
	return o
}

// Request is everything a Generator sees.
type Request struct {
	Ticket   desk.Ticket
	Messages []conversation.Message
	Options  Options
}

// Usage is token accounting reported by the backend.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Result is a generated draft.
type Result struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Usage    Usage  `json:"usage"`
	// PromptOnly is true when Text is a prompt for the agent to paste into an
	// AI chat rather than a finished reply.
	PromptOnly bool `json:"prompt_only,omitempty"`
}

// Generator produces a draft for a ticket.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
	Name() string
}
