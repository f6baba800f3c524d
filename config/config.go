package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Search    SearchConfig    `mapstructure:"search"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Retailers RetailersConfig `mapstructure:"retailers"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// FetchConfig holds outbound HTTP configuration
type FetchConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxBodyBytes     int64         `mapstructure:"max_body_bytes"`
	CloudflareBypass bool          `mapstructure:"cloudflare_bypass"`
	UserAgents       []string      `mapstructure:"user_agents"`
}

// SearchConfig holds fan-out and result limits
type SearchConfig struct {
	BroadBatchSize    int           `mapstructure:"broad_batch_size"`
	TargetedBatchSize int           `mapstructure:"targeted_batch_size"`
	BroadTimeout      time.Duration `mapstructure:"broad_timeout"`
	TargetedTimeout   time.Duration `mapstructure:"targeted_timeout"`
	DefaultLimit      int           `mapstructure:"default_limit"`
	MinLimit          int           `mapstructure:"min_limit"`
	MaxLimit          int           `mapstructure:"max_limit"`
}

// MatchingConfig holds filter configuration.
// CompetitorExclusions maps a brand to the brands hidden when it is queried.
type MatchingConfig struct {
	CompetitorExclusions map[string][]string `mapstructure:"competitor_exclusions"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
	Burst int `mapstructure:"burst"`
}

// RetailersConfig points at the optional YAML retailer overrides
type RetailersConfig struct {
	OverridesFile string `mapstructure:"overrides_file"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pricelens/")

	// PRICELENS_SERVER_PORT overrides server.port
	v.SetEnvPrefix("PRICELENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads ./.env into the process environment without
// overriding variables that are already set. A missing file is not an error.
func loadEnvFile() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.log_level", "")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Fetch defaults
	v.SetDefault("fetch.timeout", "12s")
	v.SetDefault("fetch.max_body_bytes", 4<<20)
	v.SetDefault("fetch.cloudflare_bypass", false)
	v.SetDefault("fetch.user_agents", []string{})

	// Search defaults
	v.SetDefault("search.broad_batch_size", 25)
	v.SetDefault("search.targeted_batch_size", 5)
	v.SetDefault("search.broad_timeout", "45s")
	v.SetDefault("search.targeted_timeout", "15s")
	v.SetDefault("search.default_limit", 20)
	v.SetDefault("search.min_limit", 5)
	v.SetDefault("search.max_limit", 50)

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 60)
	v.SetDefault("ratelimit.burst", 10)

	v.SetDefault("retailers.overrides_file", "")
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Server.Environment {
	case "development", "production", "test":
	default:
		return fmt.Errorf("environment must be 'development', 'production' or 'test', got: %s", config.Server.Environment)
	}

	if config.Server.LogLevel != "" {
		switch strings.ToLower(config.Server.LogLevel) {
		case "trace", "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("unknown log level: %s", config.Server.LogLevel)
		}
	}

	if config.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got: %s", config.Fetch.Timeout)
	}
	if config.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch max body bytes must be positive, got: %d", config.Fetch.MaxBodyBytes)
	}

	if config.Search.BroadBatchSize <= 0 || config.Search.TargetedBatchSize <= 0 {
		return fmt.Errorf("search batch sizes must be positive")
	}
	if config.Search.BroadTimeout <= 0 || config.Search.TargetedTimeout <= 0 {
		return fmt.Errorf("search timeouts must be positive")
	}
	if config.Search.MinLimit <= 0 || config.Search.MaxLimit < config.Search.MinLimit {
		return fmt.Errorf("search limits must satisfy 0 < min_limit <= max_limit, got: %d..%d", config.Search.MinLimit, config.Search.MaxLimit)
	}
	if config.Search.DefaultLimit < config.Search.MinLimit || config.Search.DefaultLimit > config.Search.MaxLimit {
		return fmt.Errorf("default limit %d is outside %d..%d", config.Search.DefaultLimit, config.Search.MinLimit, config.Search.MaxLimit)
	}

	if config.RateLimit.PerIP <= 0 {
		return fmt.Errorf("per-IP rate limit must be positive, got: %d", config.RateLimit.PerIP)
	}
	if config.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate limit burst must be positive, got: %d", config.RateLimit.Burst)
	}

	return nil
}

// IsDevelopment reports whether the server runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}
