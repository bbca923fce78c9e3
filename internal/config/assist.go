package config

import (
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/goatkit/deskpilot/internal/assist"
)

// AssistConfig selects the draft backend.
type AssistConfig struct {
	Mode           string `mapstructure:"mode"`
	Provider       string `mapstructure:"provider"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	BaseURL        string `mapstructure:"base_url"`
	MaxTokens      int    `mapstructure:"max_tokens"`
	RelayURL       string `mapstructure:"relay_url"`
	LicenseKey     string `mapstructure:"license_key"`
	PromptTemplate string `mapstructure:"prompt_template"`
}

// EffectiveMode normalizes the backend mode.
// Supported values: "none", "api", "browser", "relay".
// If Mode is empty the mode is inferred: an API key means "api", a license key
// means "relay", otherwise drafting is disabled.
func (c *AssistConfig) EffectiveMode() string {
	if c == nil {
		return "none"
	}
	mode := strings.ToLower(strings.TrimSpace(c.Mode))
	switch mode {
	case "", "auto":
		switch {
		case c.APIKey != "" && c.Provider != "":
			return "api"
		case c.LicenseKey != "" && c.RelayURL != "":
			return "relay"
		}
		return "none"
	case "api", "llm", "direct":
		return "api"
	case "relay", "managed":
		return "relay"
	case "browser", "copy", "clipboard":
		return "browser"
	case "none", "off", "disabled":
		return "none"
	default:
		return mode
	}
}

func (c *AssistConfig) problems() []string {
	var out []string
	switch c.EffectiveMode() {
	case "none", "browser":
	case "api":
		if c.Provider == "" {
			out = append(out, "assist.provider is required in api mode")
		}
		if c.APIKey == "" {
			out = append(out, "assist.api_key is required in api mode")
		}
	case "relay":
		if c.RelayURL == "" || c.LicenseKey == "" {
			out = append(out, "assist.relay_url and assist.license_key are required in relay mode")
		}
	default:
		out = append(out, "assist.mode must be none, api, browser or relay, got "+c.Mode)
	}
	if c.MaxTokens < 0 {
		out = append(out, "assist.max_tokens must not be negative")
	}
	if _, err := assist.NewPromptBuilder(c.PromptTemplate); err != nil {
		out = append(out, "assist.prompt_template: "+err.Error())
	}
	return out
}

// Generator builds the configured backend. Disabled drafting yields
// assist.ErrNoProviderConfigured.
func (c *AssistConfig) Generator(logger hclog.Logger) (assist.Generator, error) {
	return assist.New(assist.Config{
		Mode:           c.EffectiveMode(),
		Provider:       c.Provider,
		APIKey:         c.APIKey,
		Model:          c.Model,
		BaseURL:        c.BaseURL,
		MaxTokens:      c.MaxTokens,
		RelayURL:       c.RelayURL,
		LicenseKey:     c.LicenseKey,
		PromptTemplate: c.PromptTemplate,
	}, logger)
}
