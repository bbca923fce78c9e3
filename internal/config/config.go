// Package config loads deskpilot settings from a YAML file, a .env file and
// DESKPILOT_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/goatkit/deskpilot/internal/classify"
	"github.com/goatkit/deskpilot/internal/desk"
	"github.com/goatkit/deskpilot/internal/oauth"
	"github.com/goatkit/deskpilot/internal/ratelimit"
)

// EnvPrefix prefixes every environment override, e.g. DESKPILOT_DESK_ORG_ID.
const EnvPrefix = "DESKPILOT"

type Config struct {
	Desk      DeskConfig          `mapstructure:"desk"`
	RateLimit RateLimitConfig     `mapstructure:"rate_limit"`
	Store     StoreConfig         `mapstructure:"store"`
	Cache     CacheConfig         `mapstructure:"cache"`
	Assist    AssistConfig        `mapstructure:"assist"`
	Server    ServerConfig        `mapstructure:"server"`
	Watch     WatchConfig         `mapstructure:"watch"`
	Log       LogConfig           `mapstructure:"log"`
	Templates []classify.Template `mapstructure:"templates"`
}

// DeskConfig holds the helpdesk account and OAuth client.
type DeskConfig struct {
	OrgID        string `mapstructure:"org_id"`
	BaseURL      string `mapstructure:"base_url"`
	AccountsURL  string `mapstructure:"accounts_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
	// RefreshToken seeds the token store on first run.
	RefreshToken string `mapstructure:"refresh_token"`
}

type RateLimitConfig struct {
	PerMinute int `mapstructure:"per_minute"`
}

// StoreConfig selects the key-value backend: memory, sqlite or redis.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type CacheConfig struct {
	TicketTTL time.Duration `mapstructure:"ticket_ttl"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// APIToken, when set, is required as a bearer token on /api/v1. The OAuth
	// consent routes are exempt; they are guarded by single-use state.
	APIToken string `mapstructure:"api_token"`
	// ReadOnly rejects every mutating API request.
	ReadOnly          bool `mapstructure:"read_only"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
}

type WatchConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	Status    string        `mapstructure:"status"`
	Limit     int           `mapstructure:"limit"`
	AutoDraft bool          `mapstructure:"auto_draft"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// MinWatchInterval is the shortest accepted polling interval.
const MinWatchInterval = 10 * time.Second

func setDefaults(v *viper.Viper) {
	v.SetDefault("desk.org_id", "")
	v.SetDefault("desk.base_url", desk.DefaultBaseURL)
	v.SetDefault("desk.accounts_url", oauth.DefaultAccountsURL)
	v.SetDefault("desk.client_id", "")
	v.SetDefault("desk.client_secret", "")
	v.SetDefault("desk.redirect_uri", "")
	v.SetDefault("desk.refresh_token", "")

	v.SetDefault("rate_limit.per_minute", ratelimit.DefaultLimit)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "deskpilot.db")

	v.SetDefault("cache.ticket_ttl", 5*time.Minute)

	v.SetDefault("assist.mode", "")
	v.SetDefault("assist.provider", "")
	v.SetDefault("assist.api_key", "")
	v.SetDefault("assist.model", "")
	v.SetDefault("assist.base_url", "")
	v.SetDefault("assist.max_tokens", 1024)
	v.SetDefault("assist.relay_url", "")
	v.SetDefault("assist.license_key", "")
	v.SetDefault("assist.prompt_template", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.api_token", "")
	v.SetDefault("server.read_only", false)
	v.SetDefault("server.requests_per_minute", 120)

	v.SetDefault("watch.interval", time.Minute)
	v.SetDefault("watch.status", "Open")
	v.SetDefault("watch.limit", 20)
	v.SetDefault("watch.auto_draft", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

// LoadOptions tune where settings come from.
type LoadOptions struct {
	// File is an explicit config path. When empty, deskpilot.yaml is looked up
	// in the working directory and $HOME/.config/deskpilot; a missing file is fine.
	File string
	// EnvFiles are dotenv files loaded before reading the environment. Nil
	// means ".env"; missing files are skipped.
	EnvFiles []string
}

// Load reads the configuration. It does not validate it.
func Load(opts LoadOptions) (*Config, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", opts.File, err)
		}
	} else {
		v.SetConfigName("deskpilot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/deskpilot")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// ConfigError lists every problem Validate found.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks required settings and value ranges.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	if strings.TrimSpace(c.Desk.OrgID) == "" {
		add("desk.org_id is required")
	}
	if c.Desk.ClientID == "" || c.Desk.ClientSecret == "" {
		add("desk.client_id and desk.client_secret are required")
	}
	if c.RateLimit.PerMinute <= 0 {
		add("rate_limit.per_minute must be positive, got %d", c.RateLimit.PerMinute)
	}

	switch strings.ToLower(c.Store.Driver) {
	case "memory", "mem":
	case "sqlite", "sqlite3", "file", "redis", "valkey":
		if c.Store.DSN == "" {
			add("store.dsn is required for driver %q", c.Store.Driver)
		}
	default:
		add("store.driver must be memory, sqlite or redis, got %q", c.Store.Driver)
	}

	if c.Cache.TicketTTL < 0 {
		add("cache.ticket_ttl must not be negative")
	}
	if c.Watch.Interval < MinWatchInterval {
		add("watch.interval must be at least %s", MinWatchInterval)
	}
	if c.Watch.Limit <= 0 || c.Watch.Limit > desk.MaxListLimit {
		add("watch.limit must be between 1 and %d", desk.MaxListLimit)
	}

	problems = append(problems, c.Assist.problems()...)

	for i, t := range c.Templates {
		if t.ID == "" || strings.TrimSpace(t.Content) == "" {
			add("templates[%d] needs an id and content", i)
		}
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}
