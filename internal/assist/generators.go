package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/goatkit/deskpilot/internal/assist/llm"
	"github.com/goatkit/deskpilot/internal/logging"
)

// LLMGenerator calls a chat completion provider directly.
type LLMGenerator struct {
	provider     llm.Provider
	prompt       *PromptBuilder
	systemPrompt string
	maxTokens    int
	logger       hclog.Logger
}

// NewLLMGenerator wraps provider. A nil prompt uses the default template.
func NewLLMGenerator(provider llm.Provider, prompt *PromptBuilder, maxTokens int, logger hclog.Logger) *LLMGenerator {
	if prompt == nil {
		prompt = MustDefaultPromptBuilder()
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &LLMGenerator{
		provider:     provider,
		prompt:       prompt,
		systemPrompt: DefaultSystemPrompt,
		maxTokens:    maxTokens,
		logger:       logging.OrDiscard(logger),
	}
}

func (g *LLMGenerator) Name() string { return g.provider.GetName() }

func (g *LLMGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	prompt, err := g.prompt.Build(req)
	if err != nil {
		return nil, err
	}

	resp, err := g.provider.SendMessage(ctx, llm.MessageRequest{
		SystemPrompt: g.systemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens:    g.maxTokens,
	})
	if err != nil {
		g.logger.Error("draft generation failed", "provider", g.Name(), "error", err)
		return nil, classifyProviderError(err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return nil, fmt.Errorf("%w: %s returned an empty completion (finish reason %q)", ErrProviderRejected, g.Name(), resp.FinishReason)
	}

	g.logger.Debug("draft generated", "provider", g.Name(), "input_tokens", resp.Usage.InputTokens, "output_tokens", resp.Usage.OutputTokens)
	return &Result{
		Text:     text,
		Provider: g.Name(),
		Usage:    Usage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens},
	}, nil
}

func classifyProviderError(err error) error {
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) && !apiErr.Retryable() {
		return fmt.Errorf("%w: %v", ErrProviderRejected, err)
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}

// BrowserGenerator returns the rendered prompt for the agent to paste into an
// AI chat of their choice. It never calls out.
type BrowserGenerator struct {
	prompt *PromptBuilder
}

func NewBrowserGenerator(prompt *PromptBuilder) *BrowserGenerator {
	if prompt == nil {
		prompt = MustDefaultPromptBuilder()
	}
	return &BrowserGenerator{prompt: prompt}
}

func (g *BrowserGenerator) Name() string { return "browser" }

func (g *BrowserGenerator) Generate(_ context.Context, req Request) (*Result, error) {
	prompt, err := g.prompt.Build(req)
	if err != nil {
		return nil, err
	}
	return &Result{Text: DefaultSystemPrompt + "\n\n" + prompt, Provider: g.Name(), PromptOnly: true}, nil
}

// RelayGenerator posts the prompt to a managed relay service that holds the
// provider keys on the customer's behalf.
type RelayGenerator struct {
	url        string
	licenseKey string
	prompt     *PromptBuilder
	httpClient *http.Client
	logger     hclog.Logger
}

// RelayTimeout bounds a relay call.
const RelayTimeout = 60 * time.Second

func NewRelayGenerator(url, licenseKey string, prompt *PromptBuilder, httpClient *http.Client, logger hclog.Logger) *RelayGenerator {
	if prompt == nil {
		prompt = MustDefaultPromptBuilder()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: RelayTimeout}
	}
	return &RelayGenerator{
		url:        url,
		licenseKey: licenseKey,
		prompt:     prompt,
		httpClient: httpClient,
		logger:     logging.OrDiscard(logger),
	}
}

func (g *RelayGenerator) Name() string { return "relay" }

type relayRequest struct {
	Prompt       string `json:"prompt"`
	LicenseKey   string `json:"license_key"`
	ResponseType string `json:"response_type"`
	Tone         string `json:"tone"`
}

type relayResponse struct {
	Text  string `json:"text"`
	Error string `json:"error"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (g *RelayGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	prompt, err := g.prompt.Build(req)
	if err != nil {
		return nil, err
	}
	opts := req.Options.withDefaults()
	body, err := json.Marshal(relayRequest{
		Prompt:       prompt,
		LicenseKey:   g.licenseKey,
		ResponseType: string(opts.ResponseType),
		Tone:         string(opts.Tone),
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, RelayTimeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		g.logger.Error("relay request failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read relay response: %v", ErrProviderUnavailable, err)
	}

	var out relayResponse
	decodeErr := json.Unmarshal(raw, &out)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: relay HTTP %d", ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		msg := out.Error
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return nil, fmt.Errorf("%w: relay HTTP %d: %s", ErrProviderRejected, resp.StatusCode, msg)
	case decodeErr != nil:
		return nil, fmt.Errorf("%w: malformed relay response: %v", ErrProviderUnavailable, decodeErr)
	case strings.TrimSpace(out.Text) == "":
		msg := out.Error
		if msg == "" {
			msg = "empty text"
		}
		return nil, fmt.Errorf("%w: relay: %s", ErrProviderRejected, msg)
	}

	return &Result{
		Text:     strings.TrimSpace(out.Text),
		Provider: g.Name(),
		Usage:    Usage{InputTokens: out.Usage.InputTokens, OutputTokens: out.Usage.OutputTokens},
	}, nil
}
