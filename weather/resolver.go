package weather

import (
	"context"
	"errors"
	"net/http"

	"gardencast/api"
	"gardencast/internal/errorutil"
	"gardencast/internal/logger"
)

// Provider is the subset of the OpenWeather client the pipeline depends on
type Provider interface {
	Geocode(ctx context.Context, query string) ([]api.GeocodingResult, error)
	CurrentByName(ctx context.Context, query string) (*api.CurrentWeatherResponse, error)
	CurrentByCoords(ctx context.Context, lat, lon float64) (*api.CurrentWeatherResponse, error)
	Forecast(ctx context.Context, lat, lon float64) (*api.ForecastResponse, error)
}

// Resolver turns a place query into coordinates and a display name
type Resolver struct {
	provider Provider
}

// NewResolver creates a resolver backed by provider
func NewResolver(provider Provider) *Resolver {
	return &Resolver{provider: provider}
}

// Resolve geocodes query, taking the first candidate. When geocoding finds
// nothing it falls back to a current-conditions lookup by name and uses its
// coordinates. It fails with NotFoundError only when neither path yields any.
func (r *Resolver) Resolve(ctx context.Context, query string) (ResolvedLocation, error) {
	results, err := r.provider.Geocode(ctx, query)
	if err != nil {
		return ResolvedLocation{}, err
	}

	if len(results) > 0 {
		first := results[0]
		return ResolvedLocation{
			Latitude:    first.Lat,
			Longitude:   first.Lon,
			DisplayName: displayName(first.Name, query),
		}, nil
	}

	logger.Debug("Geocoding returned no match for %q, trying lookup by name", query)

	current, err := r.provider.CurrentByName(ctx, query)
	if err != nil {
		var httpErr *errorutil.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return ResolvedLocation{}, &errorutil.NotFoundError{Query: query}
		}
		return ResolvedLocation{}, err
	}

	if current.Coord == nil {
		return ResolvedLocation{}, &errorutil.NotFoundError{Query: query}
	}

	return ResolvedLocation{
		Latitude:    current.Coord.Lat,
		Longitude:   current.Coord.Lon,
		DisplayName: displayName(current.Name, query),
	}, nil
}

func displayName(name, query string) string {
	if name != "" {
		return name
	}
	return query
}
