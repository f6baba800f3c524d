package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate runs the test from an empty directory so no config.yaml or .env
// from the repository leaks into Load.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad(t *testing.T) {
	t.Run("loads with defaults when no env vars set", func(t *testing.T) {
		isolate(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "8080" {
			t.Errorf("Server.Port = %s, want 8080", cfg.Server.Port)
		}
		if cfg.Server.Environment != "development" {
			t.Errorf("Server.Environment = %s, want development", cfg.Server.Environment)
		}
		if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "*" {
			t.Errorf("Server.AllowedOrigins = %v, want [*]", cfg.Server.AllowedOrigins)
		}
		if cfg.Fetch.Timeout != 12*time.Second {
			t.Errorf("Fetch.Timeout = %v, want 12s", cfg.Fetch.Timeout)
		}
		if cfg.Fetch.MaxBodyBytes != 4<<20 {
			t.Errorf("Fetch.MaxBodyBytes = %d, want %d", cfg.Fetch.MaxBodyBytes, 4<<20)
		}
		if cfg.Search.BroadBatchSize != 25 || cfg.Search.TargetedBatchSize != 5 {
			t.Errorf("Search batch sizes = %d/%d, want 25/5", cfg.Search.BroadBatchSize, cfg.Search.TargetedBatchSize)
		}
		if cfg.Search.BroadTimeout != 45*time.Second || cfg.Search.TargetedTimeout != 15*time.Second {
			t.Errorf("Search timeouts = %v/%v, want 45s/15s", cfg.Search.BroadTimeout, cfg.Search.TargetedTimeout)
		}
		if cfg.Search.DefaultLimit != 20 || cfg.Search.MinLimit != 5 || cfg.Search.MaxLimit != 50 {
			t.Errorf("Search limits = %d (%d..%d), want 20 (5..50)", cfg.Search.DefaultLimit, cfg.Search.MinLimit, cfg.Search.MaxLimit)
		}
		if cfg.Matching.CompetitorExclusions != nil {
			t.Errorf("Matching.CompetitorExclusions = %v, want nil", cfg.Matching.CompetitorExclusions)
		}
		if cfg.RateLimit.PerIP != 60 || cfg.RateLimit.Burst != 10 {
			t.Errorf("RateLimit = %d/%d, want 60/10", cfg.RateLimit.PerIP, cfg.RateLimit.Burst)
		}
		if !cfg.IsDevelopment() {
			t.Error("IsDevelopment() = false, want true")
		}
	})

	t.Run("loads custom values from environment variables", func(t *testing.T) {
		isolate(t)
		t.Setenv("PRICELENS_SERVER_PORT", "9090")
		t.Setenv("PRICELENS_SERVER_ENVIRONMENT", "production")
		t.Setenv("PRICELENS_SERVER_ALLOWED_ORIGINS", "https://a.example,https://b.example")
		t.Setenv("PRICELENS_FETCH_TIMEOUT", "5s")
		t.Setenv("PRICELENS_FETCH_CLOUDFLARE_BYPASS", "true")
		t.Setenv("PRICELENS_SEARCH_TARGETED_BATCH_SIZE", "8")
		t.Setenv("PRICELENS_RATELIMIT_PER_IP", "200")
		t.Setenv("PRICELENS_RETAILERS_OVERRIDES_FILE", "/etc/pricelens/retailers.yaml")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "9090" {
			t.Errorf("Server.Port = %s, want 9090", cfg.Server.Port)
		}
		if cfg.Server.Environment != "production" {
			t.Errorf("Server.Environment = %s, want production", cfg.Server.Environment)
		}
		if len(cfg.Server.AllowedOrigins) != 2 {
			t.Errorf("Server.AllowedOrigins = %v, want 2 origins", cfg.Server.AllowedOrigins)
		}
		if cfg.Fetch.Timeout != 5*time.Second {
			t.Errorf("Fetch.Timeout = %v, want 5s", cfg.Fetch.Timeout)
		}
		if !cfg.Fetch.CloudflareBypass {
			t.Error("Fetch.CloudflareBypass = false, want true")
		}
		if cfg.Search.TargetedBatchSize != 8 {
			t.Errorf("Search.TargetedBatchSize = %d, want 8", cfg.Search.TargetedBatchSize)
		}
		if cfg.RateLimit.PerIP != 200 {
			t.Errorf("RateLimit.PerIP = %d, want 200", cfg.RateLimit.PerIP)
		}
		if cfg.Retailers.OverridesFile != "/etc/pricelens/retailers.yaml" {
			t.Errorf("Retailers.OverridesFile = %s", cfg.Retailers.OverridesFile)
		}
		if cfg.IsDevelopment() {
			t.Error("IsDevelopment() = true, want false")
		}
	})

	t.Run("reads config.yaml from the working directory", func(t *testing.T) {
		dir := isolate(t)
		yaml := `
server:
  port: "7070"
matching:
  competitor_exclusions:
    diana: [roa, carolina]
    colombina: [super]
`
		if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644); err != nil {
			t.Fatalf("Failed to write config.yaml: %v", err)
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "7070" {
			t.Errorf("Server.Port = %s, want 7070", cfg.Server.Port)
		}
		got := cfg.Matching.CompetitorExclusions
		if len(got) != 2 || len(got["diana"]) != 2 || got["colombina"][0] != "super" {
			t.Errorf("Matching.CompetitorExclusions = %v", got)
		}
	})

	t.Run("fails on a malformed config.yaml", func(t *testing.T) {
		dir := isolate(t)
		if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0644); err != nil {
			t.Fatalf("Failed to write config.yaml: %v", err)
		}

		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want error for malformed config file")
		}
	})

	t.Run("fails validation for unknown environment", func(t *testing.T) {
		isolate(t)
		t.Setenv("PRICELENS_SERVER_ENVIRONMENT", "staging")

		_, err := Load()
		if err == nil || !strings.Contains(err.Error(), "environment") {
			t.Errorf("Load() error = %v, want environment validation error", err)
		}
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("returns nil when .env file doesn't exist", func(t *testing.T) {
		isolate(t)

		if err := loadEnvFile(); err != nil {
			t.Errorf("loadEnvFile() error = %v, want nil when file doesn't exist", err)
		}
	})

	t.Run("loads variables from .env file", func(t *testing.T) {
		dir := isolate(t)
		envContent := `
# Comment line
PRICELENS_TEST_VAR_1=value1

PRICELENS_TEST_VAR_2=value2
`
		if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(envContent), 0644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}
		t.Cleanup(func() {
			os.Unsetenv("PRICELENS_TEST_VAR_1")
			os.Unsetenv("PRICELENS_TEST_VAR_2")
		})

		if err := loadEnvFile(); err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if os.Getenv("PRICELENS_TEST_VAR_1") != "value1" {
			t.Errorf("PRICELENS_TEST_VAR_1 = %s, want value1", os.Getenv("PRICELENS_TEST_VAR_1"))
		}
		if os.Getenv("PRICELENS_TEST_VAR_2") != "value2" {
			t.Errorf("PRICELENS_TEST_VAR_2 = %s, want value2", os.Getenv("PRICELENS_TEST_VAR_2"))
		}
	})

	t.Run("doesn't override existing environment variables", func(t *testing.T) {
		dir := isolate(t)
		if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PRICELENS_SERVER_PORT=1111\n"), 0644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}
		t.Setenv("PRICELENS_SERVER_PORT", "2222")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}
		if cfg.Server.Port != "2222" {
			t.Errorf("Server.Port = %s, want 2222", cfg.Server.Port)
		}
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Port: "8080", Environment: "development"},
			Fetch:  FetchConfig{Timeout: 10 * time.Second, MaxBodyBytes: 1 << 20},
			Search: SearchConfig{
				BroadBatchSize:    25,
				TargetedBatchSize: 5,
				BroadTimeout:      45 * time.Second,
				TargetedTimeout:   15 * time.Second,
				DefaultLimit:      20,
				MinLimit:          5,
				MaxLimit:          50,
			},
			RateLimit: RateLimitConfig{PerIP: 60, Burst: 10},
		}
	}

	t.Run("validates successfully with all required fields", func(t *testing.T) {
		if err := validate(valid()); err != nil {
			t.Errorf("validate() error = %v, want nil", err)
		}
	})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown log level", func(c *Config) { c.Server.LogLevel = "loud" }},
		{"zero fetch timeout", func(c *Config) { c.Fetch.Timeout = 0 }},
		{"zero body limit", func(c *Config) { c.Fetch.MaxBodyBytes = 0 }},
		{"zero batch size", func(c *Config) { c.Search.TargetedBatchSize = 0 }},
		{"negative timeout", func(c *Config) { c.Search.BroadTimeout = -time.Second }},
		{"inverted limits", func(c *Config) { c.Search.MinLimit, c.Search.MaxLimit = 50, 5 }},
		{"default outside limits", func(c *Config) { c.Search.DefaultLimit = 80 }},
		{"zero per-IP limit", func(c *Config) { c.RateLimit.PerIP = 0 }},
		{"zero burst", func(c *Config) { c.RateLimit.Burst = 0 }},
	}

	for _, tt := range tests {
		t.Run("fails for "+tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := validate(cfg); err == nil {
				t.Error("validate() error = nil, want error")
			}
		})
	}

	t.Run("accepts known log levels in any case", func(t *testing.T) {
		cfg := valid()
		cfg.Server.LogLevel = "DEBUG"
		if err := validate(cfg); err != nil {
			t.Errorf("validate() error = %v, want nil", err)
		}
	})
}
