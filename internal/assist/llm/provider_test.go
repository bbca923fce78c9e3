package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		typ  string
		name string
	}{
		{"openai", "openai"},
		{"anthropic", "anthropic"},
		{"Claude", "anthropic"},
		{"gemini", "gemini"},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			p, err := NewProvider(ProviderConfig{Type: tt.typ, APIKey: "k"})
			require.NoError(t, err)
			assert.Equal(t, tt.name, p.GetName())
			assert.NotEmpty(t, p.GetSupportedModels())
		})
	}

	_, err := NewProvider(ProviderConfig{Type: "ollama"})
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	oa := NewOpenAIProvider(ProviderConfig{})
	assert.Error(t, oa.ValidateConfig(ProviderConfig{}))
	assert.Error(t, oa.ValidateConfig(ProviderConfig{APIKey: "nope"}))
	assert.NoError(t, oa.ValidateConfig(ProviderConfig{APIKey: "sk-test"}))

	an := NewAnthropicProvider(ProviderConfig{})
	assert.Error(t, an.ValidateConfig(ProviderConfig{APIKey: "sk-test"}))
	assert.NoError(t, an.ValidateConfig(ProviderConfig{APIKey: "sk-ant-test"}))

	gm := NewGeminiProvider(ProviderConfig{})
	assert.NoError(t, gm.ValidateConfig(ProviderConfig{APIKey: "AIza"}))
}

func TestOpenAIProvider_SendMessage(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"Hello there"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(ProviderConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	resp, err := p.SendMessage(context.Background(), MessageRequest{
		SystemPrompt: "be brief",
		Messages:     []Message{{Role: "user", Content: "hi"}},
		MaxTokens:    100,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", resp.Content)
	assert.Equal(t, Usage{InputTokens: 12, OutputTokens: 3, TotalTokens: 15}, resp.Usage)
	assert.Equal(t, "stop", resp.FinishReason)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestOpenAIProvider_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(ProviderConfig{APIKey: "sk-bad", BaseURL: srv.URL + "/v1"})
	_, err := p.SendMessage(context.Background(), MessageRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.False(t, apiErr.Retryable())
}

func TestAnthropicProvider_SendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-sonnet-latest",
			"content":[{"type":"text","text":"Draft "},{"type":"text","text":"reply"}],
			"stop_reason":"end_turn","stop_sequence":null,
			"usage":{"input_tokens":20,"output_tokens":4}}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider(ProviderConfig{APIKey: "sk-ant-test", BaseURL: srv.URL})
	resp, err := p.SendMessage(context.Background(), MessageRequest{
		SystemPrompt: "be brief",
		Messages:     []Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "  "}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Draft reply", resp.Content)
	assert.Equal(t, 24, resp.Usage.TotalTokens)
	assert.Equal(t, "end_turn", resp.FinishReason)
}

func TestAPIError(t *testing.T) {
	cause := errors.New("boom")
	e := &APIError{Provider: "openai", StatusCode: 503, Err: cause}
	assert.ErrorIs(t, e, cause)
	assert.True(t, e.Retryable())
	assert.Equal(t, "openai: HTTP 503: boom", e.Error())
	assert.True(t, (&APIError{Provider: "x", Err: cause}).Retryable())
	assert.True(t, (&APIError{Provider: "x", StatusCode: 429, Err: cause}).Retryable())
}
