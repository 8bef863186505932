package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"gardencast/internal/errorutil"
	"gardencast/internal/logger"
)

const (
	// OpenWeather API base URLs and endpoints
	DefaultBaseURL    = "https://api.openweathermap.org/data/2.5"
	DefaultGeoURL     = "https://api.openweathermap.org/geo/1.0"
	weatherEndpoint   = "/weather"
	forecastEndpoint  = "/forecast"
	directGeoEndpoint = "/direct"

	// Default timeout for API requests
	defaultTimeout = 10 * time.Second

	// User-Agent for API requests
	userAgent = "Gardencast/1.0"
)

// ClientConfig configures the OpenWeather client
type ClientConfig struct {
	APIKey       string
	BaseURL      string
	GeoURL       string
	Units        string // metric, imperial or standard
	Lang         string
	Timeout      time.Duration // Per request, applied to every attempt
	GeocodeLimit int
	Retry        RetryPolicy

	BreakerMaxFailures uint32        // Consecutive transient failures that open the breaker
	BreakerCooldown    time.Duration // Time the breaker stays open
}

// WeatherClient handles OpenWeather API interactions
type WeatherClient struct {
	client   *resty.Client
	breaker  *gobreaker.CircuitBreaker
	validate *validator.Validate

	apiKey       string
	baseURL      string
	geoURL       string
	units        string
	lang         string
	timeout      time.Duration
	geocodeLimit int
	retry        RetryPolicy
}

// NewWeatherClient creates a new OpenWeather API client with authentication
func NewWeatherClient(cfg ClientConfig) *WeatherClient {
	w := &WeatherClient{
		validate:     validator.New(),
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(orDefault(cfg.BaseURL, DefaultBaseURL), "/"),
		geoURL:       strings.TrimRight(orDefault(cfg.GeoURL, DefaultGeoURL), "/"),
		units:        orDefault(cfg.Units, "metric"),
		lang:         orDefault(cfg.Lang, "ru"),
		timeout:      cfg.Timeout,
		geocodeLimit: cfg.GeocodeLimit,
		retry:        cfg.Retry,
	}
	if w.timeout <= 0 {
		w.timeout = defaultTimeout
	}
	if w.geocodeLimit <= 0 {
		w.geocodeLimit = 1
	}

	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	w.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker %s changed from %s to %s", name, from, to)
		},
		IsSuccessful: isBreakerSuccess,
	})

	// Retries are owned by Retry so that every attempt gets its own timeout
	w.client = resty.New().
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)

	// Query parameters (and with them the appid) are kept out of the log
	w.client.OnBeforeRequest(func(c *resty.Client, req *resty.Request) error {
		headers := make(map[string]string)
		for key, values := range req.Header {
			if len(values) > 0 {
				headers[key] = values[0]
			}
		}
		logger.LogAPIRequest(req.Method, redactURL(req.URL), headers)
		return nil
	})

	w.client.OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
		logger.LogAPIResponse(resp.Request.Method, redactURL(resp.Request.URL), resp.StatusCode(), resp.Time(), len(resp.Body()))
		return nil
	})

	return w
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// BreakerState reports the circuit breaker state, e.g. "closed" or "open"
func (w *WeatherClient) BreakerState() string {
	return w.breaker.State().String()
}

// GeocodingResult is one candidate from the direct geocoding endpoint
type GeocodingResult struct {
	Name       string            `json:"name" validate:"required"`
	LocalNames map[string]string `json:"local_names,omitempty"`
	Lat        float64           `json:"lat" validate:"min=-90,max=90"`
	Lon        float64           `json:"lon" validate:"min=-180,max=180"`
	Country    string            `json:"country"`
	State      string            `json:"state,omitempty"`
}

// Coordinates represents latitude and longitude
type Coordinates struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lon float64 `json:"lon" validate:"min=-180,max=180"`
}

// WeatherCondition represents weather condition details
type WeatherCondition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`        // Group of weather parameters (Rain, Snow, Extreme etc.)
	Description string `json:"description"` // Localized condition description
	Icon        string `json:"icon" validate:"required"`
}

// MainWeatherData contains temperature and humidity information
type MainWeatherData struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	TempMin   float64 `json:"temp_min"`
	TempMax   float64 `json:"temp_max"`
	Pressure  float64 `json:"pressure"`
	Humidity  float64 `json:"humidity" validate:"min=0,max=100"`
}

// WindData contains wind speed and direction information
type WindData struct {
	Speed float64 `json:"speed" validate:"min=0"`
	Deg   float64 `json:"deg"`
	Gust  float64 `json:"gust"`
}

// CurrentWeatherResponse represents the OpenWeather current weather API response.
// Coord is optional so that a by-name lookup without coordinates can be told
// apart from a malformed payload.
type CurrentWeatherResponse struct {
	Coord      *Coordinates       `json:"coord"`
	Weather    []WeatherCondition `json:"weather" validate:"min=1,dive"`
	Main       MainWeatherData    `json:"main"`
	Visibility int                `json:"visibility"` // Visibility in meters
	Wind       WindData           `json:"wind"`
	Dt         int64              `json:"dt" validate:"required"` // Time of data calculation (Unix timestamp)
	Timezone   int                `json:"timezone"`               // Shift in seconds from UTC
	Name       string             `json:"name"`
}

// ForecastItem represents a single 3-hour forecast entry
type ForecastItem struct {
	Dt         int64              `json:"dt" validate:"required"`
	Main       MainWeatherData    `json:"main"`
	Weather    []WeatherCondition `json:"weather" validate:"min=1,dive"`
	Wind       WindData           `json:"wind"`
	Visibility int                `json:"visibility"`
	Pop        float64            `json:"pop" validate:"min=0,max=1"` // Probability of precipitation
	DtTxt      string             `json:"dt_txt"`
}

// CityInfo contains city information from the forecast response
type CityInfo struct {
	Name     string      `json:"name"`
	Coord    Coordinates `json:"coord"`
	Country  string      `json:"country"`
	Timezone int         `json:"timezone"`
}

// ForecastResponse represents the OpenWeather 5-day / 3-hour forecast response
type ForecastResponse struct {
	Cnt  int            `json:"cnt"`
	List []ForecastItem `json:"list" validate:"min=1,dive"`
	City CityInfo       `json:"city"`
}

// Geocode resolves a place name to candidate locations. An empty result is not an error.
func (w *WeatherClient) Geocode(ctx context.Context, query string) ([]GeocodingResult, error) {
	complete := logger.LogOperationStart("weather_api_geocode", map[string]any{
		"endpoint": "direct",
		"query":    query,
	})

	params := map[string]string{
		"q":     query,
		"limit": strconv.Itoa(w.geocodeLimit),
	}

	results, err := Retry(ctx, w.retry, func(ctx context.Context) ([]GeocodingResult, error) {
		body, err := w.request(ctx, "geocode", w.geoURL+directGeoEndpoint, params)
		if err != nil {
			return nil, err
		}

		var results []GeocodingResult
		if err := json.Unmarshal(body, &results); err != nil {
			return nil, invalidResponse("geocode", err)
		}
		for i := range results {
			if err := w.validate.Struct(&results[i]); err != nil {
				return nil, invalidResponse("geocode", err)
			}
		}
		return results, nil
	})

	complete(err)
	return results, err
}

// CurrentByName fetches current conditions for a place name
func (w *WeatherClient) CurrentByName(ctx context.Context, query string) (*CurrentWeatherResponse, error) {
	return w.current(ctx, "current_by_name", map[string]string{"q": query})
}

// CurrentByCoords fetches current conditions for coordinates
func (w *WeatherClient) CurrentByCoords(ctx context.Context, lat, lon float64) (*CurrentWeatherResponse, error) {
	return w.current(ctx, "current_by_coords", coordParams(lat, lon))
}

func (w *WeatherClient) current(ctx context.Context, operation string, params map[string]string) (*CurrentWeatherResponse, error) {
	complete := logger.LogOperationStart("weather_api_"+operation, map[string]any{
		"endpoint": "weather",
		"units":    w.units,
	})

	params["units"] = w.units
	params["lang"] = w.lang

	resp, err := Retry(ctx, w.retry, func(ctx context.Context) (*CurrentWeatherResponse, error) {
		body, err := w.request(ctx, operation, w.baseURL+weatherEndpoint, params)
		if err != nil {
			return nil, err
		}

		var current CurrentWeatherResponse
		if err := w.decode(operation, body, &current); err != nil {
			return nil, err
		}
		return &current, nil
	})

	complete(err)
	return resp, err
}

// Forecast fetches the 5-day / 3-hour forecast for coordinates
func (w *WeatherClient) Forecast(ctx context.Context, lat, lon float64) (*ForecastResponse, error) {
	complete := logger.LogOperationStart("weather_api_forecast", map[string]any{
		"endpoint":  "forecast",
		"latitude":  lat,
		"longitude": lon,
	})

	params := coordParams(lat, lon)
	params["units"] = w.units
	params["lang"] = w.lang

	resp, err := Retry(ctx, w.retry, func(ctx context.Context) (*ForecastResponse, error) {
		body, err := w.request(ctx, "forecast", w.baseURL+forecastEndpoint, params)
		if err != nil {
			return nil, err
		}

		var forecast ForecastResponse
		if err := w.decode("forecast", body, &forecast); err != nil {
			return nil, err
		}
		return &forecast, nil
	})

	complete(err)
	return resp, err
}

// decode unmarshals a JSON body and checks its shape
func (w *WeatherClient) decode(operation string, body []byte, dst interface{}) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return invalidResponse(operation, err)
	}
	if err := w.validate.Struct(dst); err != nil {
		return invalidResponse(operation, err)
	}
	return nil
}

func invalidResponse(operation string, err error) error {
	invalid := errorutil.NewInvalidResponse(operation, err)
	errorutil.LogInvalidResponse(logger.Get().Logger, invalid)
	return invalid
}

func coordParams(lat, lon float64) map[string]string {
	return map[string]string{
		"lat": fmt.Sprintf("%f", lat),
		"lon": fmt.Sprintf("%f", lon),
	}
}
