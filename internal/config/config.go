// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// LLMProvider selects the generation backend: "openai" for any
	// OpenAI-compatible endpoint, or "anthropic".
	LLMProvider     string `env:"LLM_PROVIDER" envDefault:"openai"`
	ModelURL        string `env:"MODEL_URL" envDefault:"https://api.deepseek.com/v1"`
	ModelKey        string `env:"MODEL_KEY"`
	ModelName       string `env:"MODEL_NAME" envDefault:"deepseek-chat"`
	FastModelName   string `env:"FAST_MODEL_NAME"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`

	RedisURL string `env:"REDIS_URL" envDefault:"localhost:6379"`
	DataDir  string `env:"DATA_DIR" envDefault:"./data"`

	// DefaultStory is used when a session is created without naming one.
	DefaultStory string `env:"DEFAULT_STORY"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	// Side calls fall back to the primary model when no cheaper one is
	// configured.
	if cfg.FastModelName == "" {
		cfg.FastModelName = cfg.ModelName
	}
	return cfg, nil
}

// SlogLevel maps the configured log level string onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
