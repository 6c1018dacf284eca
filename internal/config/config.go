package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultModel       = "claude-sonnet-4-5-20250929"
	DefaultMaxTokens   = 2048
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 18890
	DefaultMongoURI    = "mongodb://localhost:27017"
	DefaultDatabase    = "pennywise"
	DefaultToolTimeout = 20
	DefaultToolWorkers = 16
	DefaultDigestSpec  = "0 0 8 * * *"  // daily 08:00
	DefaultRecurrSpec  = "0 30 0 1 * *" // first of month, 00:30
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Mongo    MongoConfig    `json:"mongo"`
	Provider ProviderConfig `json:"provider"`
	Tools    ToolsConfig    `json:"tools"`
	Market   MarketConfig   `json:"market"`
	Alerts   AlertsConfig   `json:"alerts"`
	Sched    SchedConfig    `json:"sched"`
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	// Tokens maps bearer tokens to tenant ids.
	Tokens map[string]string `json:"tokens,omitempty"`
}

type MongoConfig struct {
	URI      string `json:"uri"`
	Database string `json:"database"`
}

type ProviderConfig struct {
	Type      string `json:"type,omitempty"` // "anthropic" (default) or "openai"
	APIKey    string `json:"apiKey"`
	BaseURL   string `json:"baseUrl,omitempty"`
	Model     string `json:"model"`
	MaxTokens int    `json:"maxTokens"`
}

type ToolsConfig struct {
	// Command is the tool server argv. Empty means re-invoking the current
	// binary with the toolserver subcommand.
	Command        []string `json:"command,omitempty"`
	TimeoutSeconds int      `json:"timeoutSeconds"`
	MaxWorkers     int      `json:"maxWorkers"`
}

type MarketConfig struct {
	AlphaVantageKey string `json:"alphaVantageKey,omitempty"`
	NewsAPIKey      string `json:"newsApiKey,omitempty"`
}

type AlertsConfig struct {
	Enabled       bool   `json:"enabled"`
	TelegramToken string `json:"telegramToken,omitempty"`
	ChatID        int64  `json:"chatId,omitempty"`
}

type SchedConfig struct {
	Enabled       bool   `json:"enabled"`
	DigestCron    string `json:"digestCron,omitempty"`
	RecurringCron string `json:"recurringCron,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Mongo: MongoConfig{
			URI:      DefaultMongoURI,
			Database: DefaultDatabase,
		},
		Provider: ProviderConfig{
			Model:     DefaultModel,
			MaxTokens: DefaultMaxTokens,
		},
		Tools: ToolsConfig{
			TimeoutSeconds: DefaultToolTimeout,
			MaxWorkers:     DefaultToolWorkers,
		},
		Sched: SchedConfig{
			Enabled:       true,
			DigestCron:    DefaultDigestSpec,
			RecurringCron: DefaultRecurrSpec,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".pennywise")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	return LoadConfigFrom(ConfigPath())
}

func LoadConfigFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if key := os.Getenv("PENNYWISE_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
		if cfg.Provider.Type == "" {
			cfg.Provider.Type = "openai"
		}
	}
	if url := os.Getenv("PENNYWISE_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if uri := os.Getenv("PENNYWISE_MONGO_URI"); uri != "" {
		cfg.Mongo.URI = uri
	}
	if db := os.Getenv("PENNYWISE_MONGO_DB"); db != "" {
		cfg.Mongo.Database = db
	}
	if key := os.Getenv("PENNYWISE_ALPHAVANTAGE_KEY"); key != "" {
		cfg.Market.AlphaVantageKey = key
	}
	if key := os.Getenv("PENNYWISE_NEWSAPI_KEY"); key != "" {
		cfg.Market.NewsAPIKey = key
	}
	if token := os.Getenv("PENNYWISE_TELEGRAM_TOKEN"); token != "" {
		cfg.Alerts.TelegramToken = token
	}
	if port := os.Getenv("PENNYWISE_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = parsed
		}
	}
	if timeout := os.Getenv("PENNYWISE_TOOL_TIMEOUT"); timeout != "" {
		if parsed, err := strconv.Atoi(timeout); err == nil && parsed > 0 {
			cfg.Tools.TimeoutSeconds = parsed
		}
	}

	if cfg.Provider.Model == "" {
		cfg.Provider.Model = DefaultModel
	}
	if cfg.Provider.MaxTokens <= 0 {
		cfg.Provider.MaxTokens = DefaultMaxTokens
	}
	if cfg.Tools.TimeoutSeconds <= 0 {
		cfg.Tools.TimeoutSeconds = DefaultToolTimeout
	}
	if cfg.Tools.MaxWorkers <= 0 {
		cfg.Tools.MaxWorkers = DefaultToolWorkers
	}
	if cfg.Sched.DigestCron == "" {
		cfg.Sched.DigestCron = DefaultDigestSpec
	}
	if cfg.Sched.RecurringCron == "" {
		cfg.Sched.RecurringCron = DefaultRecurrSpec
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
