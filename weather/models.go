package weather

import (
	"errors"
	"time"

	"gardencast/internal/errorutil"
)

// ResolvedLocation is a place query turned into coordinates
type ResolvedLocation struct {
	Latitude    float64 `json:"latitude" toml:"latitude"`
	Longitude   float64 `json:"longitude" toml:"longitude"`
	DisplayName string  `json:"displayName" toml:"display_name"`
}

// Current holds observed conditions at the resolved location
type Current struct {
	Temperature      float64   `json:"temperature" toml:"temperature"`
	FeelsLike        float64   `json:"feelsLike" toml:"feels_like"`
	TempMax          float64   `json:"tempMax" toml:"temp_max"`
	TempMin          float64   `json:"tempMin" toml:"temp_min"`
	Humidity         float64   `json:"humidity" toml:"humidity"`
	WindSpeed        float64   `json:"windSpeed" toml:"wind_speed"`
	VisibilityMeters int       `json:"visibilityMeters" toml:"visibility_meters"`
	ConditionCode    string    `json:"conditionCode" toml:"condition_code"` // Provider icon code, e.g. "01d"
	ConditionText    string    `json:"conditionText" toml:"condition_text"`
	LocationName     string    `json:"locationName" toml:"location_name"`
	ObservedAt       time.Time `json:"observedAt" toml:"observed_at"`
}

// ForecastSample is one 3-hour forecast step
type ForecastSample struct {
	Timestamp           time.Time `json:"timestamp" toml:"timestamp"`
	Temperature         float64   `json:"temperature" toml:"temperature"`
	FeelsLike           float64   `json:"feelsLike" toml:"feels_like"`
	Humidity            float64   `json:"humidity" toml:"humidity"`
	WindSpeed           float64   `json:"windSpeed" toml:"wind_speed"`
	VisibilityMeters    int       `json:"visibilityMeters" toml:"visibility_meters"`
	ConditionCode       string    `json:"conditionCode" toml:"condition_code"`
	ConditionText       string    `json:"conditionText" toml:"condition_text"`
	PrecipitationChance float64   `json:"precipitationChance" toml:"precipitation_chance"` // 0..1
}

// Snapshot is the merged current and forecast result for one location at one point in time
type Snapshot struct {
	Location        ResolvedLocation `json:"location" toml:"location"`
	Current         Current          `json:"current" toml:"current"`
	ForecastSamples []ForecastSample `json:"forecastSamples" toml:"forecast_samples"`
	FetchedAt       time.Time        `json:"fetchedAt" toml:"fetched_at"`
}

// ErrIncompleteSnapshot is wrapped by Validate when a snapshot has no forecast samples
var ErrIncompleteSnapshot = errors.New("snapshot has no forecast samples")

// Validate enforces that a snapshot is complete. Incomplete snapshots are never cached or returned.
func (s *Snapshot) Validate() error {
	if s == nil || len(s.ForecastSamples) == 0 {
		return errorutil.NewInvalidResponse("merge", ErrIncompleteSnapshot)
	}
	return nil
}

// Clone returns a deep copy so cached values cannot be mutated through a caller's reference
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.ForecastSamples != nil {
		out.ForecastSamples = make([]ForecastSample, len(s.ForecastSamples))
		copy(out.ForecastSamples, s.ForecastSamples)
	}
	return out
}

// CacheEntry is one stored snapshot. There is at most one entry per key.
type CacheEntry struct {
	Key      string    `json:"key" toml:"key"`
	Snapshot Snapshot  `json:"snapshot" toml:"snapshot"`
	StoredAt time.Time `json:"storedAt" toml:"stored_at"`
}

// Age reports how old the entry is at now
func (e CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}
