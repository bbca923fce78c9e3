package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goatkit/deskpilot/internal/assist"
	"github.com/goatkit/deskpilot/internal/classify"
	"github.com/goatkit/deskpilot/internal/desk"
)

const sampleYAML = `
desk:
  org_id: "60001234"
  client_id: "1000.ABC"
  client_secret: "s3cret"
rate_limit:
  per_minute: 30
store:
  driver: memory
cache:
  ticket_ttl: 2m
assist:
  mode: api
  provider: openai
  api_key: sk-test
watch:
  interval: 45s
  auto_draft: true
templates:
  - id: refund
    name: Refund issued
    tags: [refund, billing]
    content: "We have refunded your order."
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(LoadOptions{EnvFiles: []string{}})
	require.NoError(t, err)

	assert.Equal(t, desk.DefaultBaseURL, cfg.Desk.BaseURL)
	assert.Equal(t, "https://accounts.zoho.com", cfg.Desk.AccountsURL)
	assert.Equal(t, 45, cfg.RateLimit.PerMinute)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TicketTTL)
	assert.Equal(t, time.Minute, cfg.Watch.Interval)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "none", cfg.Assist.EffectiveMode())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeFile(t, "deskpilot.yaml", sampleYAML)
	t.Setenv("DESKPILOT_RATE_LIMIT_PER_MINUTE", "20")
	t.Setenv("DESKPILOT_LOG_JSON", "true")

	cfg, err := Load(LoadOptions{File: path, EnvFiles: []string{}})
	require.NoError(t, err)

	assert.Equal(t, "60001234", cfg.Desk.OrgID)
	assert.Equal(t, 20, cfg.RateLimit.PerMinute, "env wins over file")
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TicketTTL)
	assert.Equal(t, 45*time.Second, cfg.Watch.Interval)
	assert.True(t, cfg.Watch.AutoDraft)
	require.Len(t, cfg.Templates, 1)
	assert.Equal(t, []string{"refund", "billing"}, cfg.Templates[0].Tags)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_DotEnv(t *testing.T) {
	const key = "DESKPILOT_DESK_REFRESH_TOKEN"
	t.Cleanup(func() { _ = os.Unsetenv(key) })
	envPath := writeFile(t, ".env", key+"=1000.refresh\n")
	path := writeFile(t, "deskpilot.yaml", sampleYAML)

	cfg, err := Load(LoadOptions{File: path, EnvFiles: []string{envPath, filepath.Join(t.TempDir(), "missing.env")}})
	require.NoError(t, err)
	assert.Equal(t, "1000.refresh", cfg.Desk.RefreshToken)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(LoadOptions{File: filepath.Join(t.TempDir(), "nope.yaml"), EnvFiles: []string{}})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	path := writeFile(t, "deskpilot.yaml", sampleYAML)
	base, err := Load(LoadOptions{File: path, EnvFiles: []string{}})
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"org id", func(c *Config) { c.Desk.OrgID = "" }, "desk.org_id"},
		{"client", func(c *Config) { c.Desk.ClientSecret = "" }, "desk.client_secret"},
		{"rate", func(c *Config) { c.RateLimit.PerMinute = 0 }, "rate_limit.per_minute"},
		{"driver", func(c *Config) { c.Store.Driver = "etcd" }, "store.driver"},
		{"dsn", func(c *Config) { c.Store.Driver, c.Store.DSN = "redis", "" }, "store.dsn"},
		{"interval", func(c *Config) { c.Watch.Interval = time.Second }, "watch.interval"},
		{"api key", func(c *Config) { c.Assist.APIKey = "" }, "assist.api_key"},
		{"relay", func(c *Config) { c.Assist.Mode = "relay" }, "assist.relay_url"},
		{"mode", func(c *Config) { c.Assist.Mode = "telepathy" }, "assist.mode"},
		{"prompt", func(c *Config) { c.Assist.PromptTemplate = "{% nonsense %}" }, "assist.prompt_template"},
		{"template", func(c *Config) { c.Templates[0].Content = "" }, "templates[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			cfg.Templates = append([]classify.Template(nil), base.Templates...)
			tt.mutate(&cfg)
			err := cfg.Validate()
			var ce *ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Contains(t, ce.Error(), tt.want)
		})
	}
}

func TestAssistConfig_EffectiveMode(t *testing.T) {
	tests := []struct {
		cfg  AssistConfig
		want string
	}{
		{AssistConfig{}, "none"},
		{AssistConfig{Provider: "openai", APIKey: "k"}, "api"},
		{AssistConfig{RelayURL: "https://r", LicenseKey: "l"}, "relay"},
		{AssistConfig{Mode: "Clipboard"}, "browser"},
		{AssistConfig{Mode: "managed"}, "relay"},
		{AssistConfig{Mode: "off", APIKey: "k", Provider: "openai"}, "none"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.cfg.EffectiveMode(), "%+v", tt.cfg)
	}
	var nilCfg *AssistConfig
	assert.Equal(t, "none", nilCfg.EffectiveMode())
}

func TestAssistConfig_Generator(t *testing.T) {
	_, err := (&AssistConfig{}).Generator(nil)
	assert.ErrorIs(t, err, assist.ErrNoProviderConfigured)

	g, err := (&AssistConfig{Mode: "browser"}).Generator(nil)
	require.NoError(t, err)
	assert.Equal(t, "browser", g.Name())
}
