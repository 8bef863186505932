// Package forecast groups 3-hour forecast samples into calendar days.
package forecast

import (
	"sort"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"gardencast/weather"
)

const (
	// DefaultCondition is reported for a day without condition codes
	DefaultCondition = "01d"
	// DefaultDescription is reported for a day without condition descriptions
	DefaultDescription = "ясно"

	dateKeyLayout = "2006-01-02"
)

// Options controls how samples are bucketed and labelled
type Options struct {
	// Location decides which calendar date a sample falls on. Defaults to time.Local.
	Location *time.Location
	// Language selects weekday names. Russian unless English is requested.
	Language language.Tag
}

// DayAggregate is every sample of one calendar day plus the per-field series
type DayAggregate struct {
	DateKey        string                   `json:"date"`
	Date           time.Time                `json:"-"`
	DisplayDayName string                   `json:"day"`
	ShortDayName   string                   `json:"shortDay"`
	Temps          []float64                `json:"temps"`
	Humidity       []float64                `json:"humidity"`
	WindSpeed      []float64                `json:"windSpeed"`
	Visibility     []float64                `json:"visibility"`
	FeelsLike      []float64                `json:"feelsLike"`
	ConditionCodes []string                 `json:"weather"`
	Descriptions   []string                 `json:"descriptions"`
	Samples        []weather.ForecastSample `json:"hourlyData"`
}

var (
	russianDays      = [7]string{"воскресенье", "понедельник", "вторник", "среда", "четверг", "пятница", "суббота"}
	russianShortDays = [7]string{"вс", "пн", "вт", "ср", "чт", "пт", "сб"}
	englishDays      = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}
	englishShortDays = [7]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}
)

// GroupByDay buckets samples by local calendar date. Buckets are ordered
// chronologically and samples within a bucket keep their timestamp order.
// The input slice is not modified. Empty input yields an empty, non-nil slice.
func GroupByDay(samples []weather.ForecastSample, opts Options) []DayAggregate {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	long, short, caser := dayNames(opts.Language)

	ordered := make([]weather.ForecastSample, len(samples))
	copy(ordered, samples)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	days := make([]DayAggregate, 0, 6)
	for _, s := range ordered {
		local := s.Timestamp.In(loc)
		key := local.Format(dateKeyLayout)

		if len(days) == 0 || days[len(days)-1].DateKey != key {
			weekday := local.Weekday()
			days = append(days, DayAggregate{
				DateKey:        key,
				Date:           time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc),
				DisplayDayName: caser.String(long[weekday]),
				ShortDayName:   caser.String(short[weekday]),
			})
		}

		day := &days[len(days)-1]
		day.Temps = append(day.Temps, s.Temperature)
		day.Humidity = append(day.Humidity, s.Humidity)
		day.WindSpeed = append(day.WindSpeed, s.WindSpeed)
		day.Visibility = append(day.Visibility, float64(s.VisibilityMeters))
		day.FeelsLike = append(day.FeelsLike, s.FeelsLike)
		if s.ConditionCode != "" {
			day.ConditionCodes = append(day.ConditionCodes, s.ConditionCode)
		}
		if s.ConditionText != "" {
			day.Descriptions = append(day.Descriptions, s.ConditionText)
		}
		day.Samples = append(day.Samples, s)
	}

	return days
}

func dayNames(tag language.Tag) (long, short [7]string, caser cases.Caser) {
	base, _ := tag.Base()
	if base.String() == "en" {
		return englishDays, englishShortDays, cases.Title(language.English)
	}
	return russianDays, russianShortDays, cases.Title(language.Russian)
}

// MinTemp returns the lowest temperature of the day
func (d DayAggregate) MinTemp() float64 {
	if len(d.Temps) == 0 {
		return 0
	}
	m := d.Temps[0]
	for _, t := range d.Temps[1:] {
		m = min(m, t)
	}
	return m
}

// MaxTemp returns the highest temperature of the day
func (d DayAggregate) MaxTemp() float64 {
	if len(d.Temps) == 0 {
		return 0
	}
	m := d.Temps[0]
	for _, t := range d.Temps[1:] {
		m = max(m, t)
	}
	return m
}

// AverageTemp returns the mean temperature of the day
func (d DayAggregate) AverageTemp() float64 {
	return mean(d.Temps)
}

// AverageHumidity returns the mean relative humidity of the day
func (d DayAggregate) AverageHumidity() float64 {
	return mean(d.Humidity)
}

// DominantCondition returns the most frequent condition code. Ties go to the
// code seen first.
func (d DayAggregate) DominantCondition() string {
	return mostFrequent(d.ConditionCodes, DefaultCondition)
}

// DominantDescription returns the most frequent condition description
func (d DayAggregate) DominantDescription() string {
	return mostFrequent(d.Descriptions, DefaultDescription)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func mostFrequent(values []string, fallback string) string {
	counts := make(map[string]int, len(values))
	order := make([]string, 0, len(values))
	for _, v := range values {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}

	best, bestCount := fallback, 0
	for _, v := range order {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}
