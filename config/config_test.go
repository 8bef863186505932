package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

// TestLoadConfig tests that file values override defaults section by section
func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `[provider]
api_key = "test-weather-key"
lang = "en"
timeout_seconds = 4

[retry]
max_retries = 0

[cache]
backend = "memory"
ttl_minutes = 15

[search]
default_city = "Berlin"
refresh_minutes = 20

[tips]
hot_threshold = 28.0
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Provider.APIKey != "test-weather-key" {
		t.Errorf("Expected api_key 'test-weather-key', got '%s'", cfg.Provider.APIKey)
	}
	if cfg.Provider.Lang != "en" {
		t.Errorf("Expected lang 'en', got '%s'", cfg.Provider.Lang)
	}
	if cfg.Provider.Timeout() != 4*time.Second {
		t.Errorf("Expected timeout 4s, got %v", cfg.Provider.Timeout())
	}
	if cfg.Retry.MaxRetries != 0 {
		t.Errorf("Expected explicit max_retries 0 to survive defaults, got %d", cfg.Retry.MaxRetries)
	}
	if cfg.Cache.TTL() != 15*time.Minute {
		t.Errorf("Expected ttl 15m, got %v", cfg.Cache.TTL())
	}
	if cfg.Search.DefaultCity != "Berlin" || cfg.Search.RefreshMinutes != 20 {
		t.Errorf("Unexpected search section: %+v", cfg.Search)
	}
	if cfg.Tips.HotThreshold != 28 || cfg.Tips.ModerateThreshold != 15 {
		t.Errorf("Unexpected tip thresholds: %+v", cfg.Tips)
	}

	// Sections absent from the file keep defaults
	if cfg.Provider.Units != "metric" {
		t.Errorf("Expected default units 'metric', got '%s'", cfg.Provider.Units)
	}
	if cfg.Server.Address != ":3000" {
		t.Errorf("Expected default address ':3000', got '%s'", cfg.Server.Address)
	}
}

// TestLoadConfigErrors tests missing and malformed files
func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	var notFound *ConfigNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Expected ConfigNotFoundError, got %v", err)
	}

	_, err = LoadConfig(writeConfig(t, "[provider\napi_key = "))
	if err == nil || !strings.Contains(err.Error(), "failed to parse TOML") {
		t.Errorf("Expected parse error, got %v", err)
	}
}

// TestConfigDefaults tests that defaults are applied
func TestConfigDefaults(t *testing.T) {
	cfg := Default()

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"units", cfg.Provider.Units, "metric"},
		{"lang", cfg.Provider.Lang, "ru"},
		{"timeout", cfg.Provider.TimeoutSeconds, 10},
		{"max retries", cfg.Retry.MaxRetries, 2},
		{"base delay", cfg.Retry.BaseDelayMs, 500},
		{"max delay", cfg.Retry.MaxDelayMs, 4000},
		{"cache backend", cfg.Cache.Backend, "file"},
		{"cache ttl", cfg.Cache.TTLMinutes, 30},
		{"default city", cfg.Search.DefaultCity, "Москва"},
		{"debounce", cfg.Search.DebounceSeconds, 10},
		{"max tips", cfg.Tips.MaxTips, 5},
		{"log pattern", cfg.Logging.FilenamePattern, "gardencast-YYYYMMDD.log"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, tt.got)
			}
		})
	}

	if !strings.HasSuffix(cfg.Cache.FilePath, "gardencast-weather-cache.toml") {
		t.Errorf("Unexpected default cache path: %s", cfg.Cache.FilePath)
	}
}

// TestApplyEnv tests environment overrides
func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvAPIKey, "env-key")
	t.Setenv(EnvListen, "127.0.0.1:8080")

	cfg := Default()
	cfg.Provider.APIKey = "file-key"
	cfg.ApplyEnv()

	if cfg.Provider.APIKey != "env-key" {
		t.Errorf("Expected env API key, got '%s'", cfg.Provider.APIKey)
	}
	if cfg.Server.Address != "127.0.0.1:8080" {
		t.Errorf("Expected env listen address, got '%s'", cfg.Server.Address)
	}
}

// TestLoadDotEnv tests .env loading and the missing-file case
func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("GARDENCAST_TEST_DOTENV=from-file\n"), 0644); err != nil {
		t.Fatalf("Failed to write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("GARDENCAST_TEST_DOTENV") })

	if err := LoadDotEnv(envPath); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("GARDENCAST_TEST_DOTENV"); got != "from-file" {
		t.Errorf("Expected variable from .env, got '%s'", got)
	}

	if err := LoadDotEnv(filepath.Join(dir, "absent.env")); err != nil {
		t.Errorf("Expected missing .env to be ignored, got %v", err)
	}
}

// TestValidate tests per-field validation
func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Provider.APIKey = "key"
		cfg.Cache.Backend = "memory"
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing api key", func(c *Config) { c.Provider.APIKey = "" }, "provider.api_key"},
		{"relative base url", func(c *Config) { c.Provider.BaseURL = "data/2.5" }, "provider.base_url"},
		{"bad units", func(c *Config) { c.Provider.Units = "kelvin" }, "provider.units"},
		{"bad lang", func(c *Config) { c.Provider.Lang = "not a tag!" }, "provider.lang"},
		{"geocode limit", func(c *Config) { c.Provider.GeocodeLimit = 9 }, "provider.geocode_limit"},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -1 }, "retry.max_retries"},
		{"max below base", func(c *Config) { c.Retry.MaxDelayMs = 100 }, "retry.max_delay_ms"},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "redis" }, "cache.backend"},
		{"short default city", func(c *Config) { c.Search.DefaultCity = "M" }, "search.default_city"},
		{"inverted thresholds", func(c *Config) { c.Tips.HotThreshold = 10 }, "tips.hot_threshold"},
		{"inverted humidity", func(c *Config) { c.Tips.NormalHumidity = 80 }, "tips.high_humidity"},
		{"too many tips", func(c *Config) { c.Tips.MaxTips = 8 }, "tips.max_tips"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"log pattern with directory", func(c *Config) { c.Logging.FilenamePattern = "logs/gardencast.log" }, "logging.filename_pattern"},
		{"negative debounce", func(c *Config) { c.Search.DebounceSeconds = -1 }, "search.debounce_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			var multi *MultiValidationError
			if !errors.As(err, &multi) {
				t.Fatalf("Expected MultiValidationError, got %v", err)
			}

			found := false
			for _, ve := range multi.Errors {
				if ve.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("Expected error for field %s, got %v", tt.field, err)
			}
		})
	}
}

// TestDebounceZeroDisables tests that an explicit zero survives loading and validates
func TestDebounceZeroDisables(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `[provider]
api_key = "key"

[cache]
backend = "memory"

[search]
debounce_seconds = 0
`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Search.DebounceSeconds != 0 {
		t.Errorf("Expected debounce 0 to be kept, got %d", cfg.Search.DebounceSeconds)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected zero debounce to validate, got %v", err)
	}

	cfg.Search.DebounceSeconds = -5
	cfg.ApplyDefaults()
	if cfg.Search.DebounceSeconds != 10 {
		t.Errorf("Expected negative debounce to reset to 10, got %d", cfg.Search.DebounceSeconds)
	}
}

// TestFilenamePatternSuggestions tests that a rejected log pattern lists portable ones
func TestFilenamePatternSuggestions(t *testing.T) {
	cfg := Default()
	cfg.Provider.APIKey = "key"
	cfg.Cache.Backend = "memory"
	cfg.Logging.FilenamePattern = "logs/gardencast-YYYYMMDD.log"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "gardencast-YYYY-MM-DD.log") {
		t.Errorf("Expected portable patterns in error, got %v", err)
	}
}

// TestCacheFileValidation tests that the file backend requires a writable location
func TestCacheFileValidation(t *testing.T) {
	cfg := Default()
	cfg.Provider.APIKey = "key"
	cfg.Cache.FilePath = filepath.Join(t.TempDir(), "nested", "cache.toml")

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected writable cache path to validate, got %v", err)
	}
	if _, err := os.Stat(filepath.Dir(cfg.Cache.FilePath)); err != nil {
		t.Errorf("Expected cache directory to be created: %v", err)
	}
}

// TestGenerateSampleConfig tests that the sample loads and validates once a key is set
func TestGenerateSampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "gardencast.toml")
	if err := GenerateSampleConfig(path); err != nil {
		t.Fatalf("GenerateSampleConfig() error = %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load sample config: %v", err)
	}
	if cfg.Search.DefaultCity != "Москва" {
		t.Errorf("Expected sample default city 'Москва', got '%s'", cfg.Search.DefaultCity)
	}

	cfg.Cache.FilePath = filepath.Join(t.TempDir(), "cache.toml")
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected sample config to validate, got %v", err)
	}
}
