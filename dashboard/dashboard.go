// Package dashboard keeps the state of one weather dashboard: the view on
// screen, the last searched city and the rules for accepting new searches.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"gardencast/internal/errorutil"
	"gardencast/internal/logger"
	"gardencast/weather"
)

// DefaultDebounce is the window in which a repeated search is ignored
const DefaultDebounce = 10 * time.Second

const defaultCity = "Москва"

var (
	// ErrDebounced is returned with the current view when a search repeats
	// the previous one inside the debounce window
	ErrDebounced = errors.New("search repeated too soon")
	// ErrSuperseded is returned when a newer search started before this one finished
	ErrSuperseded = errors.New("search superseded by a newer one")
)

// Fetcher runs the retrieval pipeline
type Fetcher interface {
	FetchWeather(ctx context.Context, query string) (*weather.Snapshot, error)
}

// History is the slice of the result cache the dashboard reads and updates
type History interface {
	Latest(key string) (weather.CacheEntry, bool)
	MostRecent() (weather.CacheEntry, bool)
	LastCity() string
	SetLastCity(city string)
}

// View is what the dashboard currently shows
type View struct {
	SearchID string            `json:"searchId"`
	City     string            `json:"city"`
	Snapshot *weather.Snapshot `json:"snapshot"`
	Stale    bool              `json:"stale"`
	Notice   string            `json:"notice,omitempty"`
	LoadedAt time.Time         `json:"loadedAt"`
}

func (v *View) clone() *View {
	if v == nil {
		return nil
	}
	out := *v
	if v.Snapshot != nil {
		snap := v.Snapshot.Clone()
		out.Snapshot = &snap
	}
	return &out
}

type attempt struct {
	city string
	at   time.Time
}

// Dashboard is safe for concurrent use
type Dashboard struct {
	fetcher  Fetcher
	history  History
	debounce time.Duration
	now      func() time.Time

	mu       sync.Mutex
	view     *View
	last     *attempt
	latestID string
}

// Option customizes a Dashboard
type Option func(*Dashboard)

// WithDebounce replaces the debounce window. Zero disables debouncing.
func WithDebounce(d time.Duration) Option {
	return func(db *Dashboard) {
		if d >= 0 {
			db.debounce = d
		}
	}
}

// WithClock replaces the clock
func WithClock(now func() time.Time) Option {
	return func(db *Dashboard) { db.now = now }
}

// New creates a dashboard. history may be nil, which disables the stale
// fallback and last-city memory.
func New(fetcher Fetcher, history History, opts ...Option) *Dashboard {
	db := &Dashboard{
		fetcher:  fetcher,
		history:  history,
		debounce: DefaultDebounce,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Load searches for city and installs the result.
//
// Unless force is set, repeating the previous city inside the debounce window
// returns the current view with ErrDebounced. A search that finishes after a
// newer one started is discarded with ErrSuperseded. When the pipeline fails
// the most relevant cached snapshot is shown instead, marked stale.
func (d *Dashboard) Load(ctx context.Context, city string, force bool) (*View, error) {
	normalized, err := weather.NormalizeQuery(city)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	now := d.now()
	if !force && d.last != nil && d.last.city == normalized && now.Sub(d.last.at) < d.debounce {
		view := d.view.clone()
		d.mu.Unlock()
		logger.Debug("Search for %q debounced", normalized)
		return view, ErrDebounced
	}
	id := uuid.NewString()
	d.latestID = id
	d.last = &attempt{city: normalized, at: now}
	d.mu.Unlock()

	snapshot, fetchErr := d.fetcher.FetchWeather(ctx, normalized)

	d.mu.Lock()
	defer d.mu.Unlock()

	if id != d.latestID {
		logger.Debug("Discarding result of superseded search %s for %q", id, normalized)
		return nil, ErrSuperseded
	}

	if fetchErr == nil {
		d.view = &View{
			SearchID: id,
			City:     normalized,
			Snapshot: snapshot,
			LoadedAt: d.now(),
		}
		if d.history != nil {
			d.history.SetLastCity(normalized)
		}
		return d.view.clone(), nil
	}

	var queryErr *errorutil.QueryError
	if errors.As(fetchErr, &queryErr) {
		return nil, fetchErr
	}

	entry, ok := d.staleEntry(normalized)
	if !ok {
		errorutil.LogWarning(logger.Get().Logger, "dashboard load", fetchErr, errorutil.PlaceContext(normalized)...)
		return nil, fetchErr
	}

	logger.Warn("Showing cached weather for %q after failed search for %q: %v", entry.Key, normalized, fetchErr)
	snap := entry.Snapshot.Clone()
	d.view = &View{
		SearchID: id,
		City:     entry.Key,
		Snapshot: &snap,
		Stale:    true,
		Notice:   errorutil.UserMessage(fetchErr),
		LoadedAt: d.now(),
	}
	return d.view.clone(), nil
}

// staleEntry prefers the entry for the searched city and otherwise falls back
// to the newest entry of any city, both regardless of age
func (d *Dashboard) staleEntry(key string) (weather.CacheEntry, bool) {
	if d.history == nil {
		return weather.CacheEntry{}, false
	}
	if entry, ok := d.history.Latest(key); ok {
		return entry, true
	}
	return d.history.MostRecent()
}

// Bootstrap loads the last city a search succeeded for
func (d *Dashboard) Bootstrap(ctx context.Context) (*View, error) {
	return d.Load(ctx, d.LastCity(), true)
}

// Refresh fetches the last city in the background to keep its cache entry
// warm. It leaves the installed view and any in-flight search alone.
func (d *Dashboard) Refresh(ctx context.Context) error {
	_, err := d.fetcher.FetchWeather(ctx, d.LastCity())
	return err
}

// LastCity returns the city Bootstrap would load
func (d *Dashboard) LastCity() string {
	if d.history == nil {
		return defaultCity
	}
	return d.history.LastCity()
}

// Current returns the installed view, or nil before the first load
func (d *Dashboard) Current() *View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view.clone()
}
