package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names recognized by the loader.
const (
	EnvConfigPath     = "CONFIG_PATH"
	EnvProviderAPIKey = "PROVIDER_API_KEY"
	EnvDBConnection   = "DB_CONNECTION"
)

// Reset period identifiers for usage limits.
const (
	ResetDaily   = "daily"
	ResetWeekly  = "weekly"
	ResetMonthly = "monthly"
)

// Provider type identifiers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Defaults applied when the config file omits values.
const (
	defaultPort              = 8318
	defaultProviderTimeout   = 30 * time.Second
	defaultMaxQuestions      = 50
	defaultMaxImageGens      = 10
	defaultRequestsPerMinute = 10
	defaultStorePath         = "usage.json"
	defaultEvictionMaxIdle   = 90 * 24 * time.Hour
	defaultEvictionSchedule  = "0 3 * * *"
	defaultRedisPrefix       = "flicker:rl"
)

// ErrUnknownProvider indicates the configured provider type is not supported.
var ErrUnknownProvider = errors.New("config: unknown provider type (supported: gemini, openai)")

// ErrUnknownResetPeriod indicates the configured reset period is not supported.
var ErrUnknownResetPeriod = errors.New("config: unknown reset period (supported: daily, weekly, monthly)")

// ProviderConfig holds upstream provider settings.
type ProviderConfig struct {
	Type       string        `yaml:"type"`        // Provider adapter type.
	APIKey     string        `yaml:"api-key"`     // Provider API key.
	BaseURL    string        `yaml:"base-url"`    // Optional base URL override.
	Model      string        `yaml:"model"`       // Text model name.
	ImageModel string        `yaml:"image-model"` // Image generation model name.
	Timeout    time.Duration `yaml:"timeout"`     // Per-call timeout.
}

// LimitsConfig holds per-identity usage quota settings.
type LimitsConfig struct {
	MaxQuestions        int    `yaml:"max-questions"`         // Questions per reset window.
	MaxImageGenerations int    `yaml:"max-image-generations"` // Image generations per reset window.
	ResetPeriod         string `yaml:"reset-period"`          // daily, weekly or monthly.
}

// RedisConfig holds the optional Redis rate limiter backend settings.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`  // Whether to use Redis.
	Addr     string `yaml:"addr"`     // Redis address.
	Password string `yaml:"password"` // Redis password.
	DB       int    `yaml:"db"`       // Redis database index.
	Prefix   string `yaml:"prefix"`   // Key prefix.
}

// RateLimitConfig holds burst rate limit settings.
type RateLimitConfig struct {
	RequestsPerMinute int         `yaml:"requests-per-minute"` // Sliding window ceiling.
	Redis             RedisConfig `yaml:"redis"`               // Optional Redis backend.
}

// StoreConfig holds ledger persistence settings.
type StoreConfig struct {
	Path string `yaml:"path"` // JSON snapshot file path.
	DSN  string `yaml:"dsn"`  // Non-empty switches to the database store.
}

// EvictionConfig holds stale identity eviction settings.
type EvictionConfig struct {
	MaxIdle  time.Duration `yaml:"max-idle"` // Drop records idle longer than this.
	Schedule string        `yaml:"schedule"` // Cron schedule for the sweep.
}

// FeaturesConfig toggles optional request paths.
type FeaturesConfig struct {
	ImageAnalysis   bool `yaml:"image-analysis"`   // Accept inbound images.
	ImageGeneration bool `yaml:"image-generation"` // Route generation requests to the image model.
}

// Config is the full application configuration.
type Config struct {
	Port         int             `yaml:"port"`
	Provider     ProviderConfig  `yaml:"provider"`
	Limits       LimitsConfig    `yaml:"limits"`
	RateLimit    RateLimitConfig `yaml:"rate-limit"`
	Store        StoreConfig     `yaml:"store"`
	Eviction     EvictionConfig  `yaml:"eviction"`
	Features     FeaturesConfig  `yaml:"features"`
	SystemPrompt string          `yaml:"system-prompt"`
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// Load reads the YAML config file and applies env overrides and defaults.
// A missing file yields a pure-defaults config so the relay can boot with
// nothing but PROVIDER_API_KEY set.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
			return nil, fmt.Errorf("config: parse %s: %w", configPath, errUnmarshal)
		}
	} else if !os.IsNotExist(errRead) {
		return nil, fmt.Errorf("config: read %s: %w", configPath, errRead)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if errValidate := validate(cfg); errValidate != nil {
		return nil, errValidate
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if key := strings.TrimSpace(os.Getenv(EnvProviderAPIKey)); key != "" {
		cfg.Provider.APIKey = key
	}
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		cfg.Store.DSN = dsn
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = defaultPort
	}
	if strings.TrimSpace(cfg.Provider.Type) == "" {
		cfg.Provider.Type = ProviderGemini
	}
	if strings.TrimSpace(cfg.Provider.Model) == "" {
		cfg.Provider.Model = "gemini-2.5-flash"
	}
	if strings.TrimSpace(cfg.Provider.ImageModel) == "" {
		cfg.Provider.ImageModel = "imagen-3.0-generate-002"
	}
	if cfg.Provider.Timeout <= 0 {
		cfg.Provider.Timeout = defaultProviderTimeout
	}
	if cfg.Limits.MaxQuestions <= 0 {
		cfg.Limits.MaxQuestions = defaultMaxQuestions
	}
	if cfg.Limits.MaxImageGenerations <= 0 {
		cfg.Limits.MaxImageGenerations = defaultMaxImageGens
	}
	if strings.TrimSpace(cfg.Limits.ResetPeriod) == "" {
		cfg.Limits.ResetPeriod = ResetDaily
	}
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = defaultRequestsPerMinute
	}
	if strings.TrimSpace(cfg.RateLimit.Redis.Prefix) == "" {
		cfg.RateLimit.Redis.Prefix = defaultRedisPrefix
	}
	if strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = defaultStorePath
	}
	if cfg.Eviction.MaxIdle <= 0 {
		cfg.Eviction.MaxIdle = defaultEvictionMaxIdle
	}
	if strings.TrimSpace(cfg.Eviction.Schedule) == "" {
		cfg.Eviction.Schedule = defaultEvictionSchedule
	}
	// YAML booleans cannot distinguish absent from false. Both features off
	// means the section was omitted, so turn everything on.
	if !cfg.Features.ImageAnalysis && !cfg.Features.ImageGeneration {
		cfg.Features.ImageAnalysis = true
		cfg.Features.ImageGeneration = true
	}
}

func validate(cfg *Config) error {
	switch cfg.Provider.Type {
	case ProviderGemini, ProviderOpenAI:
	default:
		return ErrUnknownProvider
	}
	switch cfg.Limits.ResetPeriod {
	case ResetDaily, ResetWeekly, ResetMonthly:
	default:
		return ErrUnknownResetPeriod
	}
	return nil
}
