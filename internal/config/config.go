// Package config loads portal-chat settings from an optional YAML file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/indexer"
)

// EnvPrefix is prepended to every environment variable, e.g. PORTAL_CHAT_SERVER_PORT
const EnvPrefix = "PORTAL_CHAT"

// Config represents the complete configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Indexer   IndexerConfig   `mapstructure:"indexer"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects the store. A postgres:// DSN opens PostgreSQL,
// anything else is a SQLite path.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// EmbeddingConfig contains embedding provider settings
type EmbeddingConfig struct {
	Provider  string        `mapstructure:"provider"` // openai, jina or local; empty detects from the api key
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	CacheSize int           `mapstructure:"cache_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"` // requests per second, 0 disables
	RateBurst int           `mapstructure:"rate_burst"`
}

// IndexerConfig contains embedding refresh settings
type IndexerConfig struct {
	Workers       int           `mapstructure:"workers"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	StartupMode   string        `mapstructure:"startup_mode"` // refresh run when the server starts
}

// ChatConfig contains completion settings
type ChatConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	AllowedModels []string      `mapstructure:"allowed_models"`
	CharLimit     int           `mapstructure:"char_limit"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// LogConfig contains logger settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// Load reads configuration. An explicit path must exist; without one,
// portal-chat.yaml is looked up in the working directory and ./configs and
// may be absent.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnvVars(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("portal-chat")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 7007)
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("database.dsn", "portal-chat.db")

	v.SetDefault("embedding.provider", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.cache_size", 10000)
	v.SetDefault("embedding.timeout", "30s")
	v.SetDefault("embedding.rate_limit", 0)
	v.SetDefault("embedding.rate_burst", 1)

	v.SetDefault("indexer.workers", 0)
	v.SetDefault("indexer.retry_interval", "120s")
	v.SetDefault("indexer.max_attempts", 0)
	v.SetDefault("indexer.startup_mode", "skip")

	v.SetDefault("chat.api_key", "")
	v.SetDefault("chat.base_url", "https://api.openai.com/v1")
	v.SetDefault("chat.allowed_models", []string{"gpt-3.5-turbo"})
	v.SetDefault("chat.char_limit", 4000)
	v.SetDefault("chat.timeout", "60s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// bindEnvVars maps PORTAL_CHAT_SECTION_KEY variables onto section.key, plus
// the provider's conventional variables
func bindEnvVars(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("embedding.api_key", EnvPrefix+"_EMBEDDING_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("chat.api_key", EnvPrefix+"_CHAT_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("database.dsn", EnvPrefix+"_DATABASE_DSN", "DATABASE_URL")
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Indexer.Workers < 0 {
		return fmt.Errorf("indexer workers cannot be negative: %d", c.Indexer.Workers)
	}
	if c.Indexer.RetryInterval <= 0 {
		return fmt.Errorf("indexer retry interval must be positive: %v", c.Indexer.RetryInterval)
	}
	if c.Indexer.MaxAttempts < 0 {
		return fmt.Errorf("indexer max attempts cannot be negative: %d", c.Indexer.MaxAttempts)
	}
	if _, err := indexer.ParseMode(c.Indexer.StartupMode); err != nil {
		return fmt.Errorf("indexer startup mode: %w", err)
	}
	if c.Chat.CharLimit <= 0 {
		return fmt.Errorf("chat char limit must be positive: %d", c.Chat.CharLimit)
	}
	if len(c.Chat.AllowedModels) == 0 {
		return errors.New("chat allowed models cannot be empty")
	}
	if c.Embedding.RateLimit < 0 {
		return fmt.Errorf("embedding rate limit cannot be negative: %v", c.Embedding.RateLimit)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// RetryPolicy converts the indexer settings
func (c IndexerConfig) RetryPolicy() indexer.RetryPolicy {
	return indexer.RetryPolicy{Interval: c.RetryInterval, MaxAttempts: c.MaxAttempts}
}
