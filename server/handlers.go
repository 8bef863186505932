package server

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"gardencast/forecast"
	"gardencast/tips"
	"gardencast/weather"
)

var validate = validator.New()

// weatherResponse mirrors the shape browsers already consume
type weatherResponse struct {
	Weather   weather.Current          `json:"weather"`
	Forecast  []weather.ForecastSample `json:"forecast"`
	Location  weather.ResolvedLocation `json:"location"`
	FetchedAt time.Time                `json:"fetchedAt"`
}

type dayResponse struct {
	Date            string                   `json:"date"`
	Day             string                   `json:"day"`
	ShortDay        string                   `json:"shortDay"`
	MinTemp         float64                  `json:"minTemp"`
	MaxTemp         float64                  `json:"maxTemp"`
	AverageTemp     float64                  `json:"avgTemp"`
	AverageHumidity float64                  `json:"avgHumidity"`
	Condition       string                   `json:"condition"`
	Description     string                   `json:"description"`
	Extreme         bool                     `json:"extreme"`
	Samples         []weather.ForecastSample `json:"hourly"`
}

type tipsQuery struct {
	City string `query:"city"`
	Date string `query:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (s *Server) handleWeather(c *fiber.Ctx) error {
	snapshot, err := s.weather.FetchWeather(c.UserContext(), c.Query("city"))
	if err != nil {
		return err
	}

	return c.JSON(weatherResponse{
		Weather:   snapshot.Current,
		Forecast:  snapshot.ForecastSamples,
		Location:  snapshot.Location,
		FetchedAt: snapshot.FetchedAt,
	})
}

func (s *Server) handleForecast(c *fiber.Ctx) error {
	snapshot, err := s.weather.FetchWeather(c.UserContext(), c.Query("city"))
	if err != nil {
		return err
	}

	days := s.groupDays(snapshot)
	out := make([]dayResponse, 0, len(days))
	for i, day := range days {
		name := day.DisplayDayName
		if i == 0 {
			name = s.todayLabel()
		}
		avg := day.AverageTemp()
		out = append(out, dayResponse{
			Date:            day.DateKey,
			Day:             name,
			ShortDay:        day.ShortDayName,
			MinTemp:         day.MinTemp(),
			MaxTemp:         day.MaxTemp(),
			AverageTemp:     avg,
			AverageHumidity: day.AverageHumidity(),
			Condition:       day.DominantCondition(),
			Description:     day.DominantDescription(),
			Extreme:         tips.IsExtremeTemperature(avg),
			Samples:         day.Samples,
		})
	}

	return c.JSON(fiber.Map{
		"city": snapshot.Location.DisplayName,
		"days": out,
	})
}

func (s *Server) handleTips(c *fiber.Ctx) error {
	var q tipsQuery
	if err := c.QueryParser(&q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "date must be formatted as YYYY-MM-DD")
	}

	snapshot, err := s.weather.FetchWeather(c.UserContext(), q.City)
	if err != nil {
		return err
	}

	if q.Date == "" {
		current := snapshot.Current
		return c.JSON(fiber.Map{
			"tips": s.tips.Generate(c.UserContext(), tips.Metrics{
				Temperature: current.Temperature,
				Humidity:    current.Humidity,
			}),
			"extreme": tips.IsExtremeTemperature(current.Temperature),
		})
	}

	for _, day := range s.groupDays(snapshot) {
		if day.DateKey == q.Date {
			return c.JSON(fiber.Map{
				"date":    day.DateKey,
				"tips":    s.tips.GenerateForDay(c.UserContext(), day),
				"extreme": tips.IsExtremeTemperature(day.AverageTemp()),
			})
		}
	}
	return fiber.NewError(fiber.StatusNotFound, "No forecast for "+q.Date+".")
}

func (s *Server) handleDashboard(c *fiber.Ctx) error {
	city := c.Query("city")
	if city == "" {
		city = s.dashboard.LastCity()
	}

	view, err := s.dashboard.Load(c.UserContext(), city, c.QueryBool("force"))
	if err != nil {
		return err
	}
	return c.JSON(view)
}

func (s *Server) handleTipTable(c *fiber.Ctx) error {
	data, err := s.tipDocument()
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "Tip table unavailable.")
	}
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Type("json", "utf-8")
	return c.Send(data)
}

func (s *Server) groupDays(snapshot *weather.Snapshot) []forecast.DayAggregate {
	return forecast.GroupByDay(snapshot.ForecastSamples, forecast.Options{
		Location: s.config.Location,
		Language: s.config.Language,
	})
}

func (s *Server) todayLabel() string {
	base, _ := s.config.Language.Base()
	if base.String() == "en" {
		return "Today"
	}
	return "Сегодня"
}
