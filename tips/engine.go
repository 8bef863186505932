package tips

import (
	"context"
	"math"
	"time"

	"gardencast/forecast"
	"gardencast/internal/errorutil"
	"gardencast/internal/logger"
)

// MaxTips is the hard ceiling on the number of tips returned
const MaxTips = 5

// Plants suffer frost damage at or below freezingPoint and heat stress at or above heatStress (°C)
const (
	freezingPoint = 0.0
	heatStress    = 30.0
)

// Thresholds are the band boundaries. Each is inclusive of the upper band.
type Thresholds struct {
	Hot            float64
	Moderate       float64
	HighHumidity   float64
	NormalHumidity float64
}

// DefaultThresholds returns 25/15 °C and 70/40 %
func DefaultThresholds() Thresholds {
	return Thresholds{Hot: 25, Moderate: 15, HighHumidity: 70, NormalHumidity: 40}
}

// Metrics are the conditions tips are chosen for. An empty Season means
// the season of the current date.
type Metrics struct {
	Temperature float64
	Humidity    float64
	Season      Season
}

// Select applies the rule table to m: temperature, humidity and season tips
// in that order, exact duplicates removed, at most limit entries.
func Select(table *Table, th Thresholds, m Metrics, limit int) []string {
	var candidates []string

	switch {
	case m.Temperature >= th.Hot:
		candidates = append(candidates, table.Temperature.Hot.Tips...)
	case m.Temperature >= th.Moderate:
		candidates = append(candidates, table.Temperature.Moderate.Tips...)
	default:
		candidates = append(candidates, table.Temperature.Cold.Tips...)
	}

	switch {
	case m.Humidity >= th.HighHumidity:
		candidates = append(candidates, table.Humidity.High.Tips...)
	case m.Humidity >= th.NormalHumidity:
		candidates = append(candidates, table.Humidity.Normal.Tips...)
	default:
		candidates = append(candidates, table.Humidity.Low.Tips...)
	}

	candidates = append(candidates, table.Season(m.Season)...)

	if limit <= 0 || limit > MaxTips {
		limit = MaxTips
	}

	seen := make(map[string]struct{}, len(candidates))
	result := make([]string, 0, limit)
	for _, tip := range candidates {
		if len(result) == limit {
			break
		}
		if _, dup := seen[tip]; dup {
			continue
		}
		seen[tip] = struct{}{}
		result = append(result, tip)
	}
	return result
}

// IsExtremeTemperature reports whether t is dangerous for most plants
func IsExtremeTemperature(t float64) bool {
	return t <= freezingPoint || t >= heatStress
}

// Engine loads the rule table and generates tips. It never fails: a table
// that cannot be loaded is replaced by the embedded default.
type Engine struct {
	source     Source
	thresholds Thresholds
	maxTips    int
	now        func() time.Time
}

// Option customizes an Engine
type Option func(*Engine)

// WithThresholds replaces the band boundaries
func WithThresholds(th Thresholds) Option {
	return func(e *Engine) { e.thresholds = th }
}

// WithMaxTips lowers the number of tips returned
func WithMaxTips(n int) Option {
	return func(e *Engine) {
		if n > 0 && n <= MaxTips {
			e.maxTips = n
		}
	}
}

// WithClock replaces the clock used to pick the current season
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine over source. A nil source means the embedded table.
func NewEngine(source Source, opts ...Option) *Engine {
	if source == nil {
		source = EmbeddedSource{}
	}
	e := &Engine{
		source:     source,
		thresholds: DefaultThresholds(),
		maxTips:    MaxTips,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Table loads the rule table, falling back to the embedded default
func (e *Engine) Table(ctx context.Context) *Table {
	table, err := e.source.Load(ctx)
	if err != nil || table == nil {
		errorutil.LogWarning(logger.Get().Logger, "load tip table", err)
		return DefaultTable()
	}
	return table
}

// Generate returns at most five tips for m
func (e *Engine) Generate(ctx context.Context, m Metrics) []string {
	if m.Season == "" {
		m.Season = SeasonFor(e.now().Month())
	}
	return Select(e.Table(ctx), e.thresholds, m, e.maxTips)
}

// GenerateForDay returns tips for a forecast day using its rounded average
// temperature and humidity and the season of its date.
func (e *Engine) GenerateForDay(ctx context.Context, day forecast.DayAggregate) []string {
	m := DayMetrics(day)
	if day.Date.IsZero() {
		m.Season = ""
	}
	return e.Generate(ctx, m)
}

// DayMetrics derives tip metrics from a forecast day
func DayMetrics(day forecast.DayAggregate) Metrics {
	return Metrics{
		Temperature: math.Round(day.AverageTemp()),
		Humidity:    math.Round(day.AverageHumidity()),
		Season:      SeasonFor(day.Date.Month()),
	}
}
