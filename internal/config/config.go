package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "MATTI_"

// Config aggregates the service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	AI       AIConfig       `koanf:"ai"`
	Auth     AuthConfig     `koanf:"auth"`
	Chat     ChatConfig     `koanf:"chat"`
	Jobs     JobsConfig     `koanf:"jobs"`
	Log      LogConfig      `koanf:"log"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
	RateLimit       float64       `koanf:"rate_limit"`
	RateBurst       int           `koanf:"rate_burst"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig selects the SQL driver and connection string.
type DatabaseConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// AIConfig describes the LLM provider.
type AIConfig struct {
	// Provider is "ark" or "openai".
	Provider       string   `koanf:"provider"`
	APIKey         string   `koanf:"api_key"`
	AccessKey      string   `koanf:"access_key"`
	SecretKey      string   `koanf:"secret_key"`
	Model          string   `koanf:"model"`
	BaseURL        string   `koanf:"base_url"`
	Region         string   `koanf:"region"`
	TopP           *float64 `koanf:"top_p"`
	StreamResponse bool     `koanf:"stream"`
}

// AuthConfig describes session cookies.
type AuthConfig struct {
	CookieSecret string        `koanf:"cookie_secret"`
	AccessTTL    time.Duration `koanf:"access_ttl"`
	RefreshTTL   time.Duration `koanf:"refresh_ttl"`
	SecureCookie bool          `koanf:"secure_cookie"`
	OwnerOpenID  string        `koanf:"owner_open_id"`
}

// ChatConfig describes the assistant and conversation retention.
type ChatConfig struct {
	Assistant        string        `koanf:"assistant"`
	InstructionsFile string        `koanf:"instructions_file"`
	IdleTimeout      time.Duration `koanf:"idle_timeout"`
	MaxConversations int           `koanf:"max_conversations"`
	SummaryEvery     int           `koanf:"summary_every"`
}

// JobsConfig describes the background sweeps.
type JobsConfig struct {
	Enabled          bool          `koanf:"enabled"`
	FollowUpInterval time.Duration `koanf:"follow_up_interval"`
	ArchiveInterval  time.Duration `koanf:"archive_interval"`
	BatchSize        int           `koanf:"batch_size"`
}

// LogConfig describes the root logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaults() map[string]any {
	return map[string]any{
		"server.addr":             ":8080",
		"server.allowed_origins":  []string{"*"},
		"server.rate_limit":       5.0,
		"server.rate_burst":       20,
		"server.shutdown_timeout": "10s",
		"database.driver":         "sqlite",
		"database.dsn":            "file:matti.db",
		"ai.provider":             "ark",
		"ai.base_url":             "https://ark.cn-beijing.volces.com/api/v3",
		"ai.region":               "cn-beijing",
		"ai.stream":               true,
		"auth.access_ttl":         "15m",
		"auth.refresh_ttl":        "720h",
		"auth.secure_cookie":      true,
		"chat.assistant":          "matti",
		"chat.idle_timeout":       "30m",
		"chat.max_conversations":  10,
		"chat.summary_every":      10,
		"jobs.enabled":            true,
		"jobs.follow_up_interval": "15m",
		"jobs.archive_interval":   "5m",
		"jobs.batch_size":         100,
		"log.level":               "info",
		"log.format":              "json",
	}
}

// Load layers defaults, an optional TOML file and MATTI_ environment
// variables, in that order. path may be empty.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		addr, err := addrFromPort(port)
		if err != nil {
			return nil, err
		}
		cfg.Server.Addr = addr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps MATTI_SECTION_SOME_KEY to section.some_key.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	return section + "." + rest
}

// addrFromPort accepts "8080", ":8080" or "127.0.0.1:8080".
func addrFromPort(port string) (string, error) {
	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}
	if strings.Contains(port, ":") {
		return port, nil
	}
	return ":" + port, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "postgres", "postgresql", "pg", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	switch c.AI.Provider {
	case "ark", "openai":
	default:
		return fmt.Errorf("unsupported ai provider %q", c.AI.Provider)
	}
	if c.Chat.MaxConversations < 1 {
		return fmt.Errorf("chat.max_conversations must be positive, got %d", c.Chat.MaxConversations)
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return fmt.Errorf("auth token lifetimes must be positive")
	}
	return nil
}

// Enabled reports whether enough credentials are configured to call the model.
func (c AIConfig) Enabled() bool {
	if c.Model == "" {
		return false
	}
	if c.Provider == "openai" {
		return c.APIKey != ""
	}
	return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
}

// NewChatModel builds an Ark chat model from the configuration. Sampling
// parameters are passed per call so one model serves every profile.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ai.api_key + ai.model or an access/secret key pair")
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     c.Model,
		TopP:      topP,
	})
}
