package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type AnthropicProvider struct {
	client anthropic.Client
	config ProviderConfig
}

func NewAnthropicProvider(config ProviderConfig) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(config.APIKey), option.WithMaxRetries(0)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		config: config,
	}
}

func (p *AnthropicProvider) SendMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	model := anthropic.ModelClaude3_5SonnetLatest
	if req.Model != "" {
		model = anthropic.Model(req.Model)
	} else if p.config.Model != "" {
		model = anthropic.Model(p.config.Model)
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     model,
		Messages:  convertToAnthropicMessages(req.Messages),
		MaxTokens: maxTokens,
	}
	if systemPrompt := strings.TrimSpace(req.SystemPrompt); systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		status := 0
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		return nil, &APIError{Provider: "anthropic", StatusCode: status, Err: fmt.Errorf("making Anthropic API call: %w", err)}
	}

	return convertFromAnthropicResponse(resp), nil
}

func (p *AnthropicProvider) GetName() string {
	return "anthropic"
}

func (p *AnthropicProvider) GetSupportedModels() []string {
	return []string{
		"claude-sonnet-4-20250514",
		"claude-3-7-sonnet-latest",
		"claude-3-5-sonnet-latest",
		"claude-3-5-haiku-latest",
	}
}

func (p *AnthropicProvider) ValidateConfig(config ProviderConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("API key is required for Anthropic provider")
	}
	if config.BaseURL == "" && !strings.HasPrefix(config.APIKey, "sk-ant-") {
		return fmt.Errorf("invalid Anthropic API key format - should start with 'sk-ant-'")
	}
	return nil
}

func convertToAnthropicMessages(messages []Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, msg := range messages {
		// Empty text blocks are rejected by the API.
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		switch msg.Role {
		case "user":
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(content)))
		case "assistant":
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(content)))
		}
	}
	return out
}

func convertFromAnthropicResponse(resp *anthropic.Message) *MessageResponse {
	var content strings.Builder
	for _, block := range resp.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			content.WriteString(b.Text)
		}
	}
	return &MessageResponse{
		Content: content.String(),
		Usage: Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
			TotalTokens:  int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
		FinishReason: string(resp.StopReason),
	}
}
