package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// GeminiBaseURL is Gemini's OpenAI-compatible endpoint.
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

type OpenAIProvider struct {
	client       *openai.Client
	config       ProviderConfig
	name         string
	defaultModel string
}

func NewOpenAIProvider(config ProviderConfig) *OpenAIProvider {
	return newOpenAICompatible(config, "openai", "gpt-4o-mini", "")
}

// NewGeminiProvider talks to Gemini through its OpenAI-compatible API.
func NewGeminiProvider(config ProviderConfig) *OpenAIProvider {
	return newOpenAICompatible(config, "gemini", "gemini-1.5-flash", GeminiBaseURL)
}

func newOpenAICompatible(config ProviderConfig, name, model, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	} else if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(cfg),
		config:       config,
		name:         name,
		defaultModel: model,
	}
}

func (p *OpenAIProvider) SendMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	openaiMessages := convertToOpenAIMessages(req.Messages)

	if req.SystemPrompt != "" {
		systemMsg := openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		}
		openaiMessages = append([]openai.ChatCompletionMessage{systemMsg}, openaiMessages...)
	}

	model := p.defaultModel
	if req.Model != "" {
		model = req.Model
	} else if p.config.Model != "" {
		model = p.config.Model
	}

	openaiReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: openaiMessages,
	}
	if req.MaxTokens > 0 {
		openaiReq.MaxTokens = req.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, openaiReq)
	if err != nil {
		return nil, &APIError{Provider: p.name, StatusCode: openAIStatus(err), Err: fmt.Errorf("making %s API call: %w", p.name, err)}
	}

	return convertFromOpenAIResponse(resp), nil
}

func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func (p *OpenAIProvider) GetName() string {
	return p.name
}

func (p *OpenAIProvider) GetSupportedModels() []string {
	if p.name == "gemini" {
		return []string{"gemini-1.5-flash", "gemini-1.5-pro", "gemini-2.0-flash"}
	}
	return []string{"gpt-4o-mini", "gpt-4o", "gpt-4.1", "gpt-4.1-mini"}
}

func (p *OpenAIProvider) ValidateConfig(config ProviderConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("API key is required for %s provider", p.name)
	}
	if p.name == "openai" && config.BaseURL == "" && !strings.HasPrefix(config.APIKey, "sk-") {
		return fmt.Errorf("invalid OpenAI API key format - should start with 'sk-'")
	}
	return nil
}

func convertToOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	var openaiMessages []openai.ChatCompletionMessage
	for _, msg := range messages {
		openaiMessages = append(openaiMessages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return openaiMessages
}

func convertFromOpenAIResponse(resp openai.ChatCompletionResponse) *MessageResponse {
	var content, finishReason string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		finishReason = string(resp.Choices[0].FinishReason)
	}
	return &MessageResponse{
		Content: content,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
		FinishReason: finishReason,
	}
}
