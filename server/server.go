// Package server exposes the weather pipeline over HTTP. It is the only
// holder of the provider credential; browsers talk to it, never to the provider.
package server

import (
	"context"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/text/language"

	"gardencast/dashboard"
	"gardencast/forecast"
	"gardencast/internal/logger"
	"gardencast/tips"
	"gardencast/weather"
)

// WeatherService runs the retrieval pipeline
type WeatherService interface {
	FetchWeather(ctx context.Context, query string) (*weather.Snapshot, error)
}

// DashboardService is the dashboard session
type DashboardService interface {
	Load(ctx context.Context, city string, force bool) (*dashboard.View, error)
	LastCity() string
}

// TipGenerator produces gardening tips
type TipGenerator interface {
	Generate(ctx context.Context, m tips.Metrics) []string
	GenerateForDay(ctx context.Context, day forecast.DayAggregate) []string
}

// Config holds HTTP settings
type Config struct {
	Address      string
	StaticDir    string
	AllowOrigins string
	// TipsFile is served at /farmer-tips.json; the embedded table is served when empty
	TipsFile string
	// Location decides forecast day boundaries
	Location *time.Location
	Language language.Tag
}

// Server is the HTTP front of the application
type Server struct {
	app       *fiber.App
	config    Config
	weather   WeatherService
	dashboard DashboardService
	tips      TipGenerator
}

// New builds the fiber app and registers every route
func New(config Config, weather WeatherService, dash DashboardService, tipGen TipGenerator) *Server {
	if config.Address == "" {
		config.Address = ":3000"
	}
	if config.AllowOrigins == "" {
		config.AllowOrigins = "*"
	}
	if config.Location == nil {
		config.Location = time.Local
	}

	s := &Server{
		config:    config,
		weather:   weather,
		dashboard: dash,
		tips:      tipGen,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "gardencast",
		DisableStartupMessage: true,
		// query values outlive the request as cache keys and dashboard state
		Immutable:             true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          errorHandler,
	})

	s.app.Use(recover.New())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: config.AllowOrigins,
		AllowMethods: "GET,OPTIONS",
	}))
	s.app.Use(requestLogger)

	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.app.Get("/farmer-tips.json", s.handleTipTable)

	api := s.app.Group("/api", noStore)
	api.Get("/weather", s.handleWeather)
	api.Get("/forecast", s.handleForecast)
	api.Get("/tips", s.handleTips)
	if s.dashboard != nil {
		api.Get("/dashboard", s.handleDashboard)
	}

	if s.config.StaticDir != "" {
		s.app.Static("/", s.config.StaticDir)
	}
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until Shutdown is called
func (s *Server) Listen() error {
	logger.Info("Listening on %s", s.config.Address)
	return s.app.Listen(s.config.Address)
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func noStore(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Next()
}

func requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = statusFor(err)
	}
	logger.LogWithFields(logger.DebugLevel, "HTTP request served", map[string]any{
		"method":   c.Method(),
		"path":     c.Path(),
		"status":   status,
		"duration": time.Since(start).String(),
	})
	return err
}

func (s *Server) tipDocument() ([]byte, error) {
	if s.config.TipsFile == "" {
		return tips.DefaultDocument(), nil
	}
	return os.ReadFile(s.config.TipsFile)
}
