package llm

import (
	"fmt"
	"strings"
)

func NewProvider(config ProviderConfig) (Provider, error) {
	switch strings.ToLower(config.Type) {
	case "anthropic", "claude":
		return NewAnthropicProvider(config), nil
	case "openai", "chatgpt":
		return NewOpenAIProvider(config), nil
	case "gemini", "google":
		return NewGeminiProvider(config), nil
	}
	return nil, fmt.Errorf("unsupported provider: %s", config.Type)
}
