package dashboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gardencast/cache"
	"gardencast/internal/errorutil"
	"gardencast/weather"
)

type fetchFunc func(ctx context.Context, query string) (*weather.Snapshot, error)

type fakeFetcher struct {
	mu      sync.Mutex
	queries []string
	fn      fetchFunc
}

func (f *fakeFetcher) FetchWeather(ctx context.Context, query string) (*weather.Snapshot, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	fn := f.fn
	f.mu.Unlock()
	return fn(ctx, query)
}

func (f *fakeFetcher) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func snapshotFor(city string, temp float64) *weather.Snapshot {
	ts := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	return &weather.Snapshot{
		Location:        weather.ResolvedLocation{DisplayName: city},
		Current:         weather.Current{Temperature: temp, LocationName: city},
		ForecastSamples: []weather.ForecastSample{{Timestamp: ts, Temperature: temp}},
		FetchedAt:       ts,
	}
}

func succeeding() *fakeFetcher {
	return &fakeFetcher{fn: func(ctx context.Context, query string) (*weather.Snapshot, error) {
		return snapshotFor(query, 18), nil
	}}
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)}
}

func TestLoadInstallsViewAndRemembersCity(t *testing.T) {
	history := cache.New(cache.NewMemoryStore(), time.Hour)
	db := New(succeeding(), history)
	assert.Nil(t, db.Current())

	view, err := db.Load(context.Background(), "  Казань ", false)
	require.NoError(t, err)

	assert.Equal(t, "Казань", view.City)
	assert.False(t, view.Stale)
	assert.NotEmpty(t, view.SearchID)
	assert.Equal(t, "Казань", history.LastCity())
	assert.Equal(t, view, db.Current())
}

func TestLoadDebouncesRepeatedSearch(t *testing.T) {
	fetcher := succeeding()
	clk := newClock()
	db := New(fetcher, nil, WithClock(clk.Now))

	first, err := db.Load(context.Background(), "Москва", false)
	require.NoError(t, err)

	clk.Advance(5 * time.Second)
	again, err := db.Load(context.Background(), "Москва", false)
	assert.ErrorIs(t, err, ErrDebounced)
	assert.Equal(t, first, again, "the current view is returned")
	assert.Len(t, fetcher.Queries(), 1)

	_, err = db.Load(context.Background(), "Сочи", false)
	require.NoError(t, err, "a different city is never debounced")

	_, err = db.Load(context.Background(), "Сочи", true)
	require.NoError(t, err, "force bypasses the debounce")

	clk.Advance(10 * time.Second)
	_, err = db.Load(context.Background(), "Сочи", false)
	require.NoError(t, err)

	assert.Equal(t, []string{"Москва", "Сочи", "Сочи", "Сочи"}, fetcher.Queries())
}

func TestLoadLastSearchWins(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	fetcher := &fakeFetcher{fn: func(ctx context.Context, query string) (*weather.Snapshot, error) {
		if query == "Москва" {
			close(started)
			<-release
		}
		return snapshotFor(query, 18), nil
	}}
	db := New(fetcher, nil)

	type result struct {
		view *View
		err  error
	}
	slow := make(chan result, 1)
	go func() {
		v, err := db.Load(context.Background(), "Москва", false)
		slow <- result{v, err}
	}()

	<-started
	fast, err := db.Load(context.Background(), "Сочи", false)
	require.NoError(t, err)
	close(release)

	r := <-slow
	assert.Nil(t, r.view)
	assert.ErrorIs(t, r.err, ErrSuperseded)

	current := db.Current()
	require.NotNil(t, current)
	assert.Equal(t, "Сочи", current.City)
	assert.Equal(t, fast.SearchID, current.SearchID)
}

func TestLoadFallsBackToStaleEntry(t *testing.T) {
	clk := newClock()
	history := cache.New(cache.NewMemoryStore(), 30*time.Minute, cache.WithClock(clk.Now))
	history.Put("Москва", *snapshotFor("Moscow", 12))
	clk.Advance(time.Hour)
	history.Put("Сочи", *snapshotFor("Sochi", 27))
	clk.Advance(2 * time.Hour)

	fetcher := &fakeFetcher{fn: func(ctx context.Context, query string) (*weather.Snapshot, error) {
		return nil, &errorutil.TimeoutError{Operation: "forecast", Timeout: 10 * time.Second}
	}}
	db := New(fetcher, history, WithClock(clk.Now))

	view, err := db.Load(context.Background(), "Москва", false)
	require.NoError(t, err)
	assert.True(t, view.Stale)
	assert.Equal(t, "Москва", view.City, "the searched city's own entry is preferred")
	assert.Equal(t, 12.0, view.Snapshot.Current.Temperature)
	assert.Equal(t, errorutil.UserMessage(&errorutil.TimeoutError{}), view.Notice)

	view, err = db.Load(context.Background(), "Казань", false)
	require.NoError(t, err)
	assert.True(t, view.Stale)
	assert.Equal(t, "Сочи", view.City, "otherwise the newest entry of any city")
	assert.Equal(t, view, db.Current())

	assert.Equal(t, cache.DefaultCity, history.LastCity(), "failed searches do not move the last city")
}

func TestLoadWithoutFallbackReturnsError(t *testing.T) {
	notFound := &errorutil.NotFoundError{Query: "Atlantis"}
	fetcher := &fakeFetcher{fn: func(ctx context.Context, query string) (*weather.Snapshot, error) {
		return nil, notFound
	}}
	db := New(fetcher, cache.New(cache.NewMemoryStore(), time.Hour))

	view, err := db.Load(context.Background(), "Atlantis", false)
	assert.Nil(t, view)
	assert.Same(t, notFound, err)
	assert.Nil(t, db.Current())
}

func TestLoadRejectsShortQuery(t *testing.T) {
	fetcher := succeeding()
	db := New(fetcher, nil)

	_, err := db.Load(context.Background(), " М ", true)
	var queryErr *errorutil.QueryError
	assert.ErrorAs(t, err, &queryErr)
	assert.Empty(t, fetcher.Queries())
}

func TestBootstrap(t *testing.T) {
	fetcher := succeeding()
	history := cache.New(cache.NewMemoryStore(), time.Hour)
	db := New(fetcher, history)

	view, err := db.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Москва", view.City)

	history.SetLastCity("Казань")
	view, err = db.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Казань", view.City)

	assert.Equal(t, "Москва", New(fetcher, nil).LastCity())
}

func TestRefreshLeavesInFlightSearchAlone(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	fetcher := &fakeFetcher{fn: func(ctx context.Context, query string) (*weather.Snapshot, error) {
		if query == "Сочи" {
			close(started)
			<-release
		}
		return snapshotFor(query, 18), nil
	}}
	history := cache.New(cache.NewMemoryStore(), time.Hour)
	history.SetLastCity("Казань")
	db := New(fetcher, history)

	type result struct {
		view *View
		err  error
	}
	search := make(chan result, 1)
	go func() {
		v, err := db.Load(context.Background(), "Сочи", false)
		search <- result{v, err}
	}()

	<-started
	require.NoError(t, db.Refresh(context.Background()))
	assert.Nil(t, db.Current(), "a refresh does not install a view")
	close(release)

	r := <-search
	require.NoError(t, r.err)
	assert.Equal(t, "Сочи", r.view.City)
	assert.Equal(t, "Сочи", db.Current().City)
	assert.Equal(t, []string{"Сочи", "Казань"}, fetcher.Queries())
}
