package assist

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/goatkit/deskpilot/internal/assist/llm"
)

// Config selects and configures a backend.
type Config struct {
	// Mode is "api", "browser" or "relay".
	Mode           string
	Provider       string
	APIKey         string
	Model          string
	BaseURL        string
	MaxTokens      int
	RelayURL       string
	LicenseKey     string
	PromptTemplate string
}

// New builds the Generator described by cfg.
func New(cfg Config, logger hclog.Logger) (Generator, error) {
	prompt, err := NewPromptBuilder(cfg.PromptTemplate)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", "none", "disabled":
		return nil, ErrNoProviderConfigured
	case "browser":
		return NewBrowserGenerator(prompt), nil
	case "relay", "managed":
		if cfg.RelayURL == "" || cfg.LicenseKey == "" {
			return nil, fmt.Errorf("%w: relay mode needs relay_url and license_key", ErrNoProviderConfigured)
		}
		return NewRelayGenerator(cfg.RelayURL, cfg.LicenseKey, prompt, nil, logger), nil
	case "api", "llm":
		if cfg.Provider == "" {
			return nil, fmt.Errorf("%w: api mode needs a provider", ErrNoProviderConfigured)
		}
		pcfg := llm.ProviderConfig{Type: cfg.Provider, APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model}
		provider, err := llm.NewProvider(pcfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoProviderConfigured, err)
		}
		if err := provider.ValidateConfig(pcfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoProviderConfigured, err)
		}
		return NewLLMGenerator(provider, prompt, cfg.MaxTokens, logger), nil
	}
	return nil, fmt.Errorf("%w: unknown mode %q", ErrNoProviderConfigured, cfg.Mode)
}
