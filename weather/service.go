package weather

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"gardencast/api"
	"gardencast/internal/errorutil"
	"gardencast/internal/logger"
)

// ResultCache is the TTL cache consulted before any provider call
type ResultCache interface {
	Get(key string) (CacheEntry, bool)
	Put(key string, snapshot Snapshot)
}

// Service runs the retrieval pipeline: normalize, cache check, resolve,
// parallel fetch, merge, validate, cache write.
type Service struct {
	provider Provider
	resolver *Resolver
	cache    ResultCache
	now      func() time.Time
}

// Option customizes a Service
type Option func(*Service)

// WithClock replaces the clock used to stamp snapshots
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a pipeline over provider. cache may be nil.
func NewService(provider Provider, cache ResultCache, opts ...Option) *Service {
	s := &Service{
		provider: provider,
		resolver: NewResolver(provider),
		cache:    cache,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchWeather returns a complete snapshot for query, or an error. It never
// returns partial or placeholder data. Within the cache TTL repeated calls are
// served from the cache without provider calls.
func (s *Service) FetchWeather(ctx context.Context, query string) (*Snapshot, error) {
	normalized, err := NormalizeQuery(query)
	if err != nil {
		return nil, err
	}
	key := CacheKey(normalized)

	complete := logger.LogOperationStart("fetch_weather", map[string]any{
		"query": normalized,
	})

	if s.cache != nil {
		if entry, ok := s.cache.Get(key); ok {
			logger.Debug("Serving %q from cache (stored %s)", key, entry.StoredAt.Format(time.RFC3339))
			snapshot := entry.Snapshot.Clone()
			complete(nil)
			return &snapshot, nil
		}
	}

	location, err := s.resolver.Resolve(ctx, normalized)
	if err != nil {
		complete(err)
		return nil, err
	}

	current, forecast, err := s.fetchParallel(ctx, location)
	if err != nil {
		complete(err)
		return nil, err
	}

	snapshot := Snapshot{
		Location:        location,
		Current:         NewCurrent(current, location.DisplayName),
		ForecastSamples: NewForecastSamples(forecast),
		FetchedAt:       s.now().UTC().Truncate(time.Second),
	}
	if err := snapshot.Validate(); err != nil {
		complete(err)
		return nil, err
	}

	if s.cache != nil {
		s.cache.Put(key, snapshot.Clone())
	}

	complete(nil)
	return &snapshot, nil
}

// fetchParallel joins the current and forecast calls. The first failure
// cancels the sibling and is returned; nothing partial survives.
func (s *Service) fetchParallel(ctx context.Context, location ResolvedLocation) (*api.CurrentWeatherResponse, *api.ForecastResponse, error) {
	var (
		current  *api.CurrentWeatherResponse
		forecast *api.ForecastResponse
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = s.provider.CurrentByCoords(gctx, location.Latitude, location.Longitude)
		return err
	})
	g.Go(func() error {
		var err error
		forecast, err = s.provider.Forecast(gctx, location.Latitude, location.Longitude)
		return err
	})

	if err := g.Wait(); err != nil {
		attrs := append(errorutil.PlaceContext(location.DisplayName), errorutil.LocationContext(location.Latitude, location.Longitude)...)
		errorutil.LogWarning(logger.Get().Logger, "fetch_parallel", err, attrs...)
		return nil, nil, err
	}
	return current, forecast, nil
}
