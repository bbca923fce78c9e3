// Package llm is a thin, provider-neutral chat completion interface with
// OpenAI, Anthropic and Gemini implementations.
package llm

import (
	"context"
	"fmt"
)

type Provider interface {
	SendMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
	GetName() string
	GetSupportedModels() []string
	ValidateConfig(config ProviderConfig) error
}

type MessageRequest struct {
	Messages     []Message
	SystemPrompt string
	MaxTokens    int
	Model        string
}

type MessageResponse struct {
	Content      string
	Usage        Usage
	FinishReason string
}

type ProviderConfig struct {
	Type    string // "anthropic", "openai", "gemini"
	APIKey  string
	BaseURL string // for proxies and self-hosted gateways
	Model   string
}

type Message struct {
	Role    string // "user", "assistant"
	Content string
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// APIError carries the HTTP status of a failed provider call. StatusCode is 0
// when the request never got a response.
type APIError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: HTTP %d: %v", e.Provider, e.StatusCode, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is on the provider side (no response,
// throttling or a 5xx) rather than a rejected request.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}
