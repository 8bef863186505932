package weather

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"gardencast/api"
	"gardencast/internal/errorutil"
)

// MinQueryLength is the minimum number of characters in a trimmed place query
const MinQueryLength = 2

var queryValidator = validator.New()

// NormalizeQuery trims a place query and rejects it when it is too short.
// Length is counted in characters, so "Ош" is accepted.
func NormalizeQuery(query string) (string, error) {
	trimmed := strings.TrimSpace(query)
	if err := queryValidator.Var(trimmed, "min="+strconv.Itoa(MinQueryLength)); err != nil {
		return "", &errorutil.QueryError{
			Query:  query,
			Reason: "Enter at least 2 characters.",
		}
	}
	return trimmed, nil
}

// CacheKey returns the key a normalized query is cached under
func CacheKey(normalized string) string {
	return normalized
}

func firstCondition(conditions []api.WeatherCondition) (code, text string) {
	if len(conditions) == 0 {
		return "", ""
	}
	return conditions[0].Icon, conditions[0].Description
}

// NewCurrent converts a provider response into Current
func NewCurrent(resp *api.CurrentWeatherResponse, locationName string) Current {
	code, text := firstCondition(resp.Weather)
	if locationName == "" {
		locationName = resp.Name
	}

	return Current{
		Temperature:      resp.Main.Temp,
		FeelsLike:        resp.Main.FeelsLike,
		TempMax:          resp.Main.TempMax,
		TempMin:          resp.Main.TempMin,
		Humidity:         resp.Main.Humidity,
		WindSpeed:        resp.Wind.Speed,
		VisibilityMeters: resp.Visibility,
		ConditionCode:    code,
		ConditionText:    text,
		LocationName:     locationName,
		ObservedAt:       time.Unix(resp.Dt, 0).UTC(),
	}
}

// NewForecastSamples converts provider forecast items into chronologically ordered samples
func NewForecastSamples(resp *api.ForecastResponse) []ForecastSample {
	samples := make([]ForecastSample, 0, len(resp.List))
	for _, item := range resp.List {
		code, text := firstCondition(item.Weather)
		samples = append(samples, ForecastSample{
			Timestamp:           time.Unix(item.Dt, 0).UTC(),
			Temperature:         item.Main.Temp,
			FeelsLike:           item.Main.FeelsLike,
			Humidity:            item.Main.Humidity,
			WindSpeed:           item.Wind.Speed,
			VisibilityMeters:    item.Visibility,
			ConditionCode:       code,
			ConditionText:       text,
			PrecipitationChance: item.Pop,
		})
	}

	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
	return samples
}
