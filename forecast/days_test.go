package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"gardencast/weather"
)

// samplesFrom returns n 3-hourly samples starting at start
func samplesFrom(start time.Time, n int) []weather.ForecastSample {
	samples := make([]weather.ForecastSample, n)
	for i := range samples {
		samples[i] = weather.ForecastSample{
			Timestamp:        start.Add(time.Duration(i) * 3 * time.Hour),
			Temperature:      float64(10 + i%8),
			FeelsLike:        float64(9 + i%8),
			Humidity:         float64(50 + i%8),
			WindSpeed:        3,
			VisibilityMeters: 10000,
			ConditionCode:    "02d",
			ConditionText:    "малооблачно",
		}
	}
	return samples
}

func TestGroupByDayFiveDays(t *testing.T) {
	// Saturday 2024-06-15 00:00 UTC, 40 samples cover exactly five days
	start := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	days := GroupByDay(samplesFrom(start, 40), Options{Location: time.UTC})

	require.Len(t, days, 5)
	wantKeys := []string{"2024-06-15", "2024-06-16", "2024-06-17", "2024-06-18", "2024-06-19"}
	for i, day := range days {
		assert.Equal(t, wantKeys[i], day.DateKey)
		assert.Len(t, day.Samples, 8)
		assert.Len(t, day.Temps, 8)
		assert.Equal(t, 10.0, day.MinTemp())
		assert.Equal(t, 17.0, day.MaxTemp())
		assert.InDelta(t, 13.5, day.AverageTemp(), 1e-9)
		assert.InDelta(t, 53.5, day.AverageHumidity(), 1e-9)
	}

	assert.Equal(t, "Суббота", days[0].DisplayDayName)
	assert.Equal(t, "Сб", days[0].ShortDayName)
	assert.Equal(t, "Воскресенье", days[1].DisplayDayName)
	assert.Equal(t, "Вс", days[1].ShortDayName)
}

func TestGroupByDayUsesLocalCalendarDate(t *testing.T) {
	moscow := time.FixedZone("MSK", 3*60*60)
	// 21:00 UTC on the 15th is already the 16th in Moscow
	start := time.Date(2024, 6, 15, 18, 0, 0, 0, time.UTC)
	days := GroupByDay(samplesFrom(start, 3), Options{Location: moscow})

	require.Len(t, days, 2)
	assert.Equal(t, "2024-06-15", days[0].DateKey)
	assert.Len(t, days[0].Samples, 1)
	assert.Equal(t, "2024-06-16", days[1].DateKey)
	assert.Len(t, days[1].Samples, 2)
	assert.Equal(t, moscow, days[1].Date.Location())
}

func TestGroupByDayOrdersUnsortedInput(t *testing.T) {
	start := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	samples := samplesFrom(start, 16)
	reversed := make([]weather.ForecastSample, len(samples))
	for i, s := range samples {
		reversed[len(samples)-1-i] = s
	}

	days := GroupByDay(reversed, Options{Location: time.UTC})

	require.Len(t, days, 2)
	assert.Equal(t, "2024-06-15", days[0].DateKey)
	for _, day := range days {
		for i := 1; i < len(day.Samples); i++ {
			assert.True(t, day.Samples[i-1].Timestamp.Before(day.Samples[i].Timestamp))
		}
	}
	assert.True(t, reversed[0].Timestamp.After(reversed[1].Timestamp), "input is not modified")
}

func TestGroupByDayEmpty(t *testing.T) {
	days := GroupByDay(nil, Options{})
	assert.NotNil(t, days)
	assert.Empty(t, days)
}

func TestGroupByDayEnglishNames(t *testing.T) {
	start := time.Date(2024, 6, 17, 6, 0, 0, 0, time.UTC)
	days := GroupByDay(samplesFrom(start, 1), Options{Location: time.UTC, Language: language.MustParse("en-GB")})

	require.Len(t, days, 1)
	assert.Equal(t, "Monday", days[0].DisplayDayName)
	assert.Equal(t, "Mon", days[0].ShortDayName)
}

func TestDominantCondition(t *testing.T) {
	tests := []struct {
		name  string
		codes []string
		want  string
	}{
		{"empty defaults to clear", nil, "01d"},
		{"most frequent", []string{"10d", "01d", "10d"}, "10d"},
		{"tie goes to first seen", []string{"04d", "01d", "01d", "04d"}, "04d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			day := DayAggregate{ConditionCodes: tt.codes}
			assert.Equal(t, tt.want, day.DominantCondition())
		})
	}

	assert.Equal(t, "ясно", DayAggregate{}.DominantDescription())
	assert.Equal(t, "дождь", DayAggregate{Descriptions: []string{"дождь", "ясно", "дождь"}}.DominantDescription())
}

func TestEmptyDayAccessors(t *testing.T) {
	var day DayAggregate
	assert.Zero(t, day.MinTemp())
	assert.Zero(t, day.MaxTemp())
	assert.Zero(t, day.AverageTemp())
	assert.Zero(t, day.AverageHumidity())
}
