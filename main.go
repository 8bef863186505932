package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/text/language"

	"gardencast/api"
	"gardencast/cache"
	"gardencast/config"
	"gardencast/dashboard"
	"gardencast/forecast"
	"gardencast/internal/logger"
	"gardencast/internal/scheduler"
	"gardencast/server"
	"gardencast/tips"
	"gardencast/weather"
)

// app holds the wired components
type app struct {
	cfg       *config.Config
	cache     *cache.Cache
	weather   *weather.Service
	tips      *tips.Engine
	dashboard *dashboard.Dashboard
	language  language.Tag
}

func main() {
	// Define command-line flags
	configPath := flag.String("config", getDefaultConfigPath(), "Path to TOML configuration file")
	logLevel := flag.String("log-level", "", "Logging level (debug, info, warn, error), overrides the config file")
	generateConfig := flag.Bool("generate-config", false, "Generate a sample configuration file and exit")
	city := flag.String("city", "", "Fetch the weather for a city once, print it as JSON and exit")
	listen := flag.String("listen", "", "Server listen address, overrides the config file")
	flag.Parse()

	// Handle config generation
	if *generateConfig {
		if err := config.GenerateSampleConfig(*configPath); err != nil {
			logger.Fatal("Failed to generate sample config: %v", err)
		}
		logger.Info("Sample configuration file created at: %s", *configPath)
		logger.Info("Set %s or edit the file to add your API key", config.EnvAPIKey)
		return
	}

	if err := config.LoadDotEnv(); err != nil {
		logger.Warn("%v", err)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		var configNotFound *config.ConfigNotFoundError
		if !errors.As(err, &configNotFound) {
			logger.Fatal("Failed to load configuration: %v", err)
		}
		logger.Warn("%v, using defaults and environment", err)
		cfg = config.Default()
	}
	cfg.ApplyEnv()
	if *listen != "" {
		cfg.Server.Address = *listen
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	// Configure logging
	if err := logger.Initialize(logger.Config{
		Enabled:         cfg.Logging.Enabled,
		Directory:       cfg.Logging.Directory,
		FilenamePattern: cfg.Logging.FilenamePattern,
		Level:           cfg.Logging.Level,
		MaxFiles:        cfg.Logging.MaxFiles,
		MaxSizeMB:       cfg.Logging.MaxSizeMB,
		ConsoleOutput:   cfg.Logging.ConsoleOutput,
	}); err != nil {
		logger.Error("Failed to initialize file logging: %v", err)
	}
	defer logger.Get().Close()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Configuration validation failed: %v", err)
	}

	logger.Info("Gardencast - weather and gardening tips")
	logger.Debug("Configuration loaded from: %s", *configPath)

	a := newApp(cfg)

	if *city != "" {
		if err := a.printCity(*city); err != nil {
			logger.Fatal("%v", err)
		}
		return
	}

	a.serve()
}

func newApp(cfg *config.Config) *app {
	client := api.NewWeatherClient(api.ClientConfig{
		APIKey:       cfg.Provider.APIKey,
		BaseURL:      cfg.Provider.BaseURL,
		GeoURL:       cfg.Provider.GeoURL,
		Units:        cfg.Provider.Units,
		Lang:         cfg.Provider.Lang,
		Timeout:      cfg.Provider.Timeout(),
		GeocodeLimit: cfg.Provider.GeocodeLimit,
		Retry: api.RetryPolicy{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  time.Duration(cfg.Retry.BaseDelayMs) * time.Millisecond,
			MaxDelay:   time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond,
		},
		BreakerMaxFailures: uint32(cfg.Breaker.MaxFailures),
		BreakerCooldown:    time.Duration(cfg.Breaker.CooldownSeconds) * time.Second,
	})

	var store cache.Store = cache.NewMemoryStore()
	if cfg.Cache.Backend == "file" {
		store = cache.NewFileStore(cfg.Cache.FilePath)
		logger.Debug("Caching results in %s", cfg.Cache.FilePath)
	}
	results := cache.New(store, cfg.Cache.TTL(), cache.WithDefaultCity(cfg.Search.DefaultCity))

	service := weather.NewService(client, results)

	engine := tips.NewEngine(
		tips.SourceFor(cfg.Tips.SourceURL, cfg.Tips.FilePath, time.Duration(cfg.Tips.TimeoutSeconds)*time.Second),
		tips.WithThresholds(tips.Thresholds{
			Hot:            cfg.Tips.HotThreshold,
			Moderate:       cfg.Tips.ModerateThreshold,
			HighHumidity:   cfg.Tips.HighHumidity,
			NormalHumidity: cfg.Tips.NormalHumidity,
		}),
		tips.WithMaxTips(cfg.Tips.MaxTips),
	)

	lang, err := language.Parse(cfg.Provider.Lang)
	if err != nil {
		lang = language.Russian
	}

	return &app{
		cfg:       cfg,
		cache:     results,
		weather:   service,
		tips:      engine,
		dashboard: dashboard.New(service, results, dashboard.WithDebounce(time.Duration(cfg.Search.DebounceSeconds)*time.Second)),
		language:  lang,
	}
}

// printCity runs the pipeline once and writes the snapshot, its days and tips to stdout
func (a *app) printCity(city string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	snapshot, err := a.weather.FetchWeather(ctx, city)
	if err != nil {
		return err
	}

	days := forecast.GroupByDay(snapshot.ForecastSamples, forecast.Options{Language: a.language})
	out := struct {
		Snapshot *weather.Snapshot       `json:"snapshot"`
		Days     []forecast.DayAggregate `json:"days"`
		Tips     []string                `json:"tips"`
		Extreme  bool                    `json:"extreme"`
	}{
		Snapshot: snapshot,
		Days:     days,
		Tips: a.tips.Generate(ctx, tips.Metrics{
			Temperature: snapshot.Current.Temperature,
			Humidity:    snapshot.Current.Humidity,
		}),
		Extreme: tips.IsExtremeTemperature(snapshot.Current.Temperature),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// serve runs the proxy server and background jobs until SIGINT or SIGTERM
func (a *app) serve() {
	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	if view, err := a.dashboard.Bootstrap(bootCtx); err != nil {
		logger.Warn("Could not load %s at startup: %v", a.dashboard.LastCity(), err)
	} else {
		logger.Info("Loaded %s (stale: %t)", view.City, view.Stale)
	}
	cancelBoot()

	jobs := scheduler.New(a.cache, a.dashboard.Refresh, scheduler.Config{
		PurgeInterval:   time.Duration(a.cfg.Cache.PurgeIntervalMinutes) * time.Minute,
		RefreshInterval: time.Duration(a.cfg.Search.RefreshMinutes) * time.Minute,
	})
	if err := jobs.Start(); err != nil {
		logger.Fatal("Failed to start scheduler: %v", err)
	}
	defer jobs.Stop()

	srv := server.New(server.Config{
		Address:      a.cfg.Server.Address,
		StaticDir:    a.cfg.Server.StaticDir,
		AllowOrigins: a.cfg.Server.AllowOrigins,
		TipsFile:     a.cfg.Tips.FilePath,
		Language:     a.language,
	}, a.weather, a.dashboard, a.tips)

	go func() {
		if err := srv.Listen(); err != nil {
			logger.Error("Server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown: %v", err)
	}
}

// getDefaultConfigPath returns a cross-platform default config path
func getDefaultConfigPath() string {
	return filepath.Clean("config.toml")
}
