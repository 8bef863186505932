package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"

	"gardencast/internal/logger"
)

// Environment variables that override file settings
const (
	EnvAPIKey = "OPENWEATHER_API_KEY"
	EnvListen = "GARDENCAST_LISTEN"
)

// Provider contains weather provider connection settings
type Provider struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`        // Current weather and forecast endpoints
	GeoURL         string `toml:"geo_url"`         // Direct geocoding endpoint
	Units          string `toml:"units"`           // metric, imperial or standard
	Lang           string `toml:"lang"`            // BCP 47 tag, e.g. ru
	TimeoutSeconds int    `toml:"timeout_seconds"` // Per-request timeout
	GeocodeLimit   int    `toml:"geocode_limit"`   // Candidates requested from geocoding
}

// Timeout returns the per-request timeout
func (p Provider) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// Retry contains retry settings for transient provider failures
type Retry struct {
	MaxRetries  int `toml:"max_retries"`
	BaseDelayMs int `toml:"base_delay_ms"` // Base delay in milliseconds
	MaxDelayMs  int `toml:"max_delay_ms"`  // Max delay in milliseconds
}

// Breaker contains circuit breaker settings for the provider
type Breaker struct {
	MaxFailures     int `toml:"max_failures"`     // Consecutive transient failures before opening
	CooldownSeconds int `toml:"cooldown_seconds"` // Time spent open before a trial request
}

// Cache contains weather result caching configuration
type Cache struct {
	Backend              string `toml:"backend"`   // file or memory
	FilePath             string `toml:"file_path"` // Path to cache file (TOML format)
	TTLMinutes           int    `toml:"ttl_minutes"`
	PurgeIntervalMinutes int    `toml:"purge_interval_minutes"`
}

// TTL returns the freshness window for cached results
func (c Cache) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// Search contains dashboard search behaviour
type Search struct {
	DefaultCity     string `toml:"default_city"`
	DebounceSeconds int    `toml:"debounce_seconds"` // Repeat searches for the same city inside this window are ignored
	RefreshMinutes  int    `toml:"refresh_minutes"`  // Background refresh of the last city, 0 disables
}

// Tips contains tip table source and rule thresholds
type Tips struct {
	SourceURL         string  `toml:"source_url"` // Remote tip table, takes precedence over file_path
	FilePath          string  `toml:"file_path"`  // Local tip table (JSON or YAML)
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	HotThreshold      float64 `toml:"hot_threshold"`      // °C at or above which it is hot
	ModerateThreshold float64 `toml:"moderate_threshold"` // °C at or above which it is moderate
	HighHumidity      float64 `toml:"high_humidity"`      // % at or above which humidity is high
	NormalHumidity    float64 `toml:"normal_humidity"`    // % at or above which humidity is normal
	MaxTips           int     `toml:"max_tips"`
}

// Server contains proxy server settings
type Server struct {
	Address      string `toml:"address"`
	StaticDir    string `toml:"static_dir"`
	AllowOrigins string `toml:"allow_origins"`
}

// Logging contains logging configuration with rotation and cross-platform support
type Logging struct {
	Enabled         bool   `toml:"enabled"`          // Enable file logging
	Directory       string `toml:"directory"`        // Log directory (relative or absolute)
	FilenamePattern string `toml:"filename_pattern"` // Log filename with date patterns
	Level           string `toml:"level"`            // Log level: debug, info, warn, error
	MaxFiles        int    `toml:"max_files"`        // Number of log files to keep
	MaxSizeMB       int    `toml:"max_size_mb"`      // Rotate when file exceeds this size
	ConsoleOutput   bool   `toml:"console_output"`   // Also output to console
}

// Config represents the complete application configuration
type Config struct {
	Provider Provider `toml:"provider"`
	Retry    Retry    `toml:"retry"`
	Breaker  Breaker  `toml:"breaker"`
	Cache    Cache    `toml:"cache"`
	Search   Search   `toml:"search"`
	Tips     Tips     `toml:"tips"`
	Server   Server   `toml:"server"`
	Logging  Logging  `toml:"logging"`
}

// Default returns a configuration with every default applied, for runs without a config file
func Default() *Config {
	c := &Config{
		Retry:  Retry{MaxRetries: 2},
		Search: Search{DebounceSeconds: 10},
	}
	c.ApplyDefaults()
	return c
}

// LoadConfig reads and parses a TOML configuration file
func LoadConfig(configPath string) (*Config, error) {
	cleanPath := filepath.Clean(configPath)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ConfigNotFoundError{Path: cleanPath}
		}
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	// Decode over the defaults so keys that are absent keep them and explicit zeros survive
	config := Default()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse TOML configuration: %w", err)
	}

	config.ApplyDefaults()
	return config, nil
}

// LoadDotEnv loads variables from .env files into the process environment.
// Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// ApplyEnv overrides settings from the environment
func (c *Config) ApplyEnv() {
	if key := strings.TrimSpace(os.Getenv(EnvAPIKey)); key != "" {
		c.Provider.APIKey = key
	}
	if addr := strings.TrimSpace(os.Getenv(EnvListen)); addr != "" {
		c.Server.Address = addr
	}
}

// ApplyDefaults sets default values for optional configuration fields
func (c *Config) ApplyDefaults() {
	// Provider
	if strings.TrimSpace(c.Provider.BaseURL) == "" {
		c.Provider.BaseURL = "https://api.openweathermap.org/data/2.5"
	}
	if strings.TrimSpace(c.Provider.GeoURL) == "" {
		c.Provider.GeoURL = "https://api.openweathermap.org/geo/1.0"
	}
	if strings.TrimSpace(c.Provider.Units) == "" {
		c.Provider.Units = "metric"
	}
	if strings.TrimSpace(c.Provider.Lang) == "" {
		c.Provider.Lang = "ru"
	}
	if c.Provider.TimeoutSeconds <= 0 {
		c.Provider.TimeoutSeconds = 10
	}
	if c.Provider.GeocodeLimit <= 0 {
		c.Provider.GeocodeLimit = 1
	}

	// Retry; max_retries = 0 is a valid choice and is left alone
	if c.Retry.BaseDelayMs <= 0 {
		c.Retry.BaseDelayMs = 500
	}
	if c.Retry.MaxDelayMs <= 0 {
		c.Retry.MaxDelayMs = 4000
	}

	// Breaker
	if c.Breaker.MaxFailures <= 0 {
		c.Breaker.MaxFailures = 5
	}
	if c.Breaker.CooldownSeconds <= 0 {
		c.Breaker.CooldownSeconds = 30
	}

	// Cache
	if strings.TrimSpace(c.Cache.Backend) == "" {
		c.Cache.Backend = "file"
	}
	if strings.TrimSpace(c.Cache.FilePath) == "" {
		// Use system temp directory for cross-platform compatibility
		c.Cache.FilePath = filepath.Join(os.TempDir(), "gardencast-weather-cache.toml")
	}
	if c.Cache.TTLMinutes <= 0 {
		c.Cache.TTLMinutes = 30
	}
	if c.Cache.PurgeIntervalMinutes <= 0 {
		c.Cache.PurgeIntervalMinutes = 60
	}

	// Search
	if strings.TrimSpace(c.Search.DefaultCity) == "" {
		c.Search.DefaultCity = "Москва"
	}
	// Zero disables debouncing
	if c.Search.DebounceSeconds < 0 {
		c.Search.DebounceSeconds = 10
	}

	// Tips
	if c.Tips.TimeoutSeconds <= 0 {
		c.Tips.TimeoutSeconds = 5
	}
	if c.Tips.HotThreshold == 0 {
		c.Tips.HotThreshold = 25
	}
	if c.Tips.ModerateThreshold == 0 {
		c.Tips.ModerateThreshold = 15
	}
	if c.Tips.HighHumidity == 0 {
		c.Tips.HighHumidity = 70
	}
	if c.Tips.NormalHumidity == 0 {
		c.Tips.NormalHumidity = 40
	}
	if c.Tips.MaxTips <= 0 {
		c.Tips.MaxTips = 5
	}

	// Server
	if strings.TrimSpace(c.Server.Address) == "" {
		c.Server.Address = ":3000"
	}
	if strings.TrimSpace(c.Server.AllowOrigins) == "" {
		c.Server.AllowOrigins = "*"
	}

	// Logging
	if strings.TrimSpace(c.Logging.Directory) == "" {
		c.Logging.Directory = "logs"
	}
	if strings.TrimSpace(c.Logging.FilenamePattern) == "" {
		c.Logging.FilenamePattern = "gardencast-YYYYMMDD.log"
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxFiles <= 0 {
		c.Logging.MaxFiles = 7 // Keep 7 days of logs by default
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = 10
	}
}

// ConfigNotFoundError represents a missing configuration file
type ConfigNotFoundError struct {
	Path string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("configuration file not found: %s\n\nTo create a sample configuration file, run:\n  %s --generate-config", e.Path, filepath.Base(os.Args[0]))
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// MultiValidationError represents multiple validation errors
type MultiValidationError struct {
	Errors []ValidationError
}

func (e *MultiValidationError) Error() string {
	var messages []string
	for _, err := range e.Errors {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("configuration validation failed:\n  %s", strings.Join(messages, "\n  "))
}

// Validate checks the configuration for correctness and completeness
func (c *Config) Validate() error {
	var errors []ValidationError

	errors = append(errors, c.validateProvider()...)
	errors = append(errors, c.validateRetry()...)
	errors = append(errors, c.validateCache()...)
	errors = append(errors, c.validateSearch()...)
	errors = append(errors, c.validateTips()...)
	errors = append(errors, c.validateLogging()...)

	if strings.TrimSpace(c.Server.Address) == "" {
		errors = append(errors, ValidationError{Field: "server.address", Message: "listen address is required"})
	}

	if len(errors) > 0 {
		return &MultiValidationError{Errors: errors}
	}
	return nil
}

// validateProvider checks the provider credential and endpoints
func (c *Config) validateProvider() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Provider.APIKey) == "" {
		errors = append(errors, ValidationError{
			Field:   "provider.api_key",
			Message: fmt.Sprintf("OpenWeather API key is required (or set %s). Get one at https://openweathermap.org/api", EnvAPIKey),
		})
	}

	for field, raw := range map[string]string{"provider.base_url": c.Provider.BaseURL, "provider.geo_url": c.Provider.GeoURL} {
		if u, err := url.ParseRequestURI(raw); err != nil || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("must be an absolute URL, got '%s'", raw),
			})
		}
	}

	validUnits := []string{"metric", "imperial", "standard"}
	if !contains(validUnits, strings.ToLower(strings.TrimSpace(c.Provider.Units))) {
		errors = append(errors, ValidationError{
			Field:   "provider.units",
			Message: fmt.Sprintf("units must be one of: %s, got '%s'", strings.Join(validUnits, ", "), c.Provider.Units),
		})
	}

	if _, err := language.Parse(c.Provider.Lang); err != nil {
		errors = append(errors, ValidationError{
			Field:   "provider.lang",
			Message: fmt.Sprintf("lang must be a language tag such as 'ru' or 'en', got '%s'", c.Provider.Lang),
		})
	}

	if c.Provider.TimeoutSeconds < 1 || c.Provider.TimeoutSeconds > 120 {
		errors = append(errors, ValidationError{
			Field:   "provider.timeout_seconds",
			Message: fmt.Sprintf("timeout_seconds must be between 1 and 120, got %d", c.Provider.TimeoutSeconds),
		})
	}
	if c.Provider.GeocodeLimit < 1 || c.Provider.GeocodeLimit > 5 {
		errors = append(errors, ValidationError{
			Field:   "provider.geocode_limit",
			Message: fmt.Sprintf("geocode_limit must be between 1 and 5, got %d", c.Provider.GeocodeLimit),
		})
	}

	return errors
}

// validateRetry checks retry and breaker settings
func (c *Config) validateRetry() []ValidationError {
	var errors []ValidationError

	if c.Retry.MaxRetries < 0 || c.Retry.MaxRetries > 10 {
		errors = append(errors, ValidationError{
			Field:   "retry.max_retries",
			Message: fmt.Sprintf("max_retries must be between 0 and 10, got %d", c.Retry.MaxRetries),
		})
	}
	if c.Retry.MaxDelayMs < c.Retry.BaseDelayMs {
		errors = append(errors, ValidationError{
			Field:   "retry.max_delay_ms",
			Message: fmt.Sprintf("max_delay_ms (%d) must not be less than base_delay_ms (%d)", c.Retry.MaxDelayMs, c.Retry.BaseDelayMs),
		})
	}
	if c.Breaker.MaxFailures > 100 {
		errors = append(errors, ValidationError{
			Field:   "breaker.max_failures",
			Message: fmt.Sprintf("max_failures must be between 1 and 100, got %d", c.Breaker.MaxFailures),
		})
	}

	return errors
}

// validateCache checks cache configuration
func (c *Config) validateCache() []ValidationError {
	var errors []ValidationError

	switch c.Cache.Backend {
	case "memory":
	case "file":
		// Ensure the parent directory exists and is writable
		cacheDir := filepath.Dir(c.Cache.FilePath)
		if cacheDir != "." && cacheDir != "" {
			if err := os.MkdirAll(cacheDir, 0755); err != nil {
				errors = append(errors, ValidationError{
					Field:   "cache.file_path",
					Message: fmt.Sprintf("cannot create cache directory: %v", err),
				})
			}
		}

		testFile := c.Cache.FilePath + ".test"
		if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
			errors = append(errors, ValidationError{
				Field:   "cache.file_path",
				Message: fmt.Sprintf("cache file location is not writable: %v", err),
			})
		} else {
			os.Remove(testFile)
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "cache.backend",
			Message: fmt.Sprintf("backend must be 'file' or 'memory', got '%s'", c.Cache.Backend),
		})
	}

	if c.Cache.TTLMinutes > 24*60 {
		errors = append(errors, ValidationError{
			Field:   "cache.ttl_minutes",
			Message: fmt.Sprintf("ttl_minutes must be between 1 and 1440, got %d", c.Cache.TTLMinutes),
		})
	}

	return errors
}

// validateSearch checks dashboard search settings
func (c *Config) validateSearch() []ValidationError {
	var errors []ValidationError

	if len([]rune(strings.TrimSpace(c.Search.DefaultCity))) < 2 {
		errors = append(errors, ValidationError{
			Field:   "search.default_city",
			Message: "default_city must contain at least 2 characters",
		})
	}
	if c.Search.DebounceSeconds < 0 || c.Search.DebounceSeconds > 3600 {
		errors = append(errors, ValidationError{
			Field:   "search.debounce_seconds",
			Message: fmt.Sprintf("debounce_seconds must be between 0 and 3600, got %d", c.Search.DebounceSeconds),
		})
	}
	if c.Search.RefreshMinutes < 0 {
		errors = append(errors, ValidationError{
			Field:   "search.refresh_minutes",
			Message: fmt.Sprintf("refresh_minutes must not be negative, got %d", c.Search.RefreshMinutes),
		})
	}

	return errors
}

// validateTips checks tip thresholds and source
func (c *Config) validateTips() []ValidationError {
	var errors []ValidationError

	if c.Tips.SourceURL != "" {
		if u, err := url.ParseRequestURI(c.Tips.SourceURL); err != nil || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "tips.source_url",
				Message: fmt.Sprintf("source_url must be an absolute URL, got '%s'", c.Tips.SourceURL),
			})
		}
	}
	if c.Tips.HotThreshold <= c.Tips.ModerateThreshold {
		errors = append(errors, ValidationError{
			Field:   "tips.hot_threshold",
			Message: fmt.Sprintf("hot_threshold (%.1f) must be above moderate_threshold (%.1f)", c.Tips.HotThreshold, c.Tips.ModerateThreshold),
		})
	}
	if c.Tips.HighHumidity <= c.Tips.NormalHumidity {
		errors = append(errors, ValidationError{
			Field:   "tips.high_humidity",
			Message: fmt.Sprintf("high_humidity (%.0f) must be above normal_humidity (%.0f)", c.Tips.HighHumidity, c.Tips.NormalHumidity),
		})
	}
	if c.Tips.MaxTips > 5 {
		errors = append(errors, ValidationError{
			Field:   "tips.max_tips",
			Message: fmt.Sprintf("max_tips must be between 1 and 5, got %d", c.Tips.MaxTips),
		})
	}

	return errors
}

// validateLogging checks logging configuration
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	validLevels := []string{"debug", "info", "warn", "error"}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level != "" && !contains(validLevels, level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("level must be one of: %s, got '%s'", strings.Join(validLevels, ", "), c.Logging.Level),
		})
	}

	if c.Logging.MaxFiles < 0 || c.Logging.MaxFiles > 365 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_files",
			Message: fmt.Sprintf("max_files must be between 0 and 365, got %d", c.Logging.MaxFiles),
		})
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxSizeMB > 1000 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Message: fmt.Sprintf("max_size_mb must be between 0 and 1000, got %d", c.Logging.MaxSizeMB),
		})
	}

	if err := logger.ValidateFilenamePattern(c.Logging.FilenamePattern); err != nil {
		errors = append(errors, ValidationError{
			Field: "logging.filename_pattern",
			Message: fmt.Sprintf("%v (portable patterns: %s)", err,
				strings.Join(logger.SafeFilenamePatterns(), ", ")),
		})
	}
	if c.Logging.Enabled && strings.TrimSpace(c.Logging.Directory) == "" {
		errors = append(errors, ValidationError{
			Field:   "logging.directory",
			Message: "directory is required when logging is enabled",
		})
	}

	return errors
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// GenerateSampleConfig creates a sample configuration file at the specified path
func GenerateSampleConfig(configPath string) error {
	sampleConfig := `# Gardencast Configuration File
# Weather dashboard with gardening tips

[provider]
# Get your OpenWeather API key at: https://openweathermap.org/api
# The OPENWEATHER_API_KEY environment variable (or .env file) overrides this value
api_key = "your-openweather-api-key-here"
base_url = "https://api.openweathermap.org/data/2.5"
geo_url = "https://api.openweathermap.org/geo/1.0"

# Units: "metric", "imperial", or "standard"
units = "metric"
# Language for condition descriptions
lang = "ru"
timeout_seconds = 10
geocode_limit = 1

[retry]
# Transient failures (timeouts, network errors, HTTP 429/5xx) are retried
max_retries = 2
base_delay_ms = 500
max_delay_ms = 4000

[breaker]
# Stop calling the provider after this many consecutive transient failures
max_failures = 5
cooldown_seconds = 30

[cache]
backend = "file"                           # "file" or "memory"
file_path = ""                             # Leave empty for the system temp directory
ttl_minutes = 30                           # Results younger than this are served without a provider call
purge_interval_minutes = 60                # Expired entries are removed on this schedule

[search]
default_city = "Москва"                    # Used until a search succeeds
debounce_seconds = 10                      # Repeat searches for the same city are ignored inside this window, 0 disables
refresh_minutes = 0                        # Refresh the last city in the background (0 = off)

[tips]
source_url = ""                            # Remote farmer-tips.json, leave empty to skip
file_path = ""                             # Local tip table (JSON or YAML)
timeout_seconds = 5
hot_threshold = 25.0
moderate_threshold = 15.0
high_humidity = 70.0
normal_humidity = 40.0
max_tips = 5

[server]
address = ":3000"                          # GARDENCAST_LISTEN overrides this value
static_dir = ""                            # Serve a built frontend from this directory
allow_origins = "*"

[logging]
enabled = true                             # Enable file logging
directory = "logs"                         # Log directory (relative to working dir or absolute path)
filename_pattern = "gardencast-YYYYMMDD.log"  # YYYY=year, MM=month, DD=day, HH=hour
level = "info"                             # Log level: debug, info, warn, error
max_files = 7                              # Keep 7 days of logs (0 = unlimited)
max_size_mb = 10                           # Rotate when file exceeds 10MB (0 = unlimited)
console_output = true                      # Also output to console
`

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write sample config: %w", err)
	}

	return nil
}
