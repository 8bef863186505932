// Package cache is the local result cache: snapshots keyed by normalized
// place query with a freshness window, plus the last-known-good city.
// Storage failures are logged and absorbed; the cache never returns an error.
package cache

import (
	"errors"
	"sync"
	"time"

	"gardencast/internal/errorutil"
	"gardencast/internal/logger"
	"gardencast/weather"
)

const (
	// DefaultTTL is the freshness window applied when none is configured
	DefaultTTL = 30 * time.Minute
	// DefaultCity is reported by LastCity until a search succeeds
	DefaultCity = "Москва"
)

// Cache is safe for concurrent use
type Cache struct {
	mu          sync.Mutex
	store       Store
	ttl         time.Duration
	defaultCity string
	now         func() time.Time
}

// Option customizes a Cache
type Option func(*Cache)

// WithClock replaces the clock used for freshness checks
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithDefaultCity replaces the city reported before any search succeeds
func WithDefaultCity(city string) Option {
	return func(c *Cache) {
		if city != "" {
			c.defaultCity = city
		}
	}
}

// New creates a cache over store. A non-positive ttl means DefaultTTL.
func New(store Store, ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		store:       store,
		ttl:         ttl,
		defaultCity: DefaultCity,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the freshness window
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the entry stored under key when it is younger than the TTL
func (c *Cache) Get(key string) (weather.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.load()
	if !ok {
		return weather.CacheEntry{}, false
	}

	i := doc.find(key)
	if i < 0 {
		return weather.CacheEntry{}, false
	}

	entry := doc.Entries[i]
	if c.expired(entry) {
		logger.Debug("Cache entry %q expired (age %s)", key, entry.Age(c.now()).Round(time.Second))
		return weather.CacheEntry{}, false
	}
	return entry, true
}

// Put stores snapshot under key, replacing any previous entry
func (c *Cache) Put(key string, snapshot weather.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.load()
	if !ok {
		return
	}

	entry := weather.CacheEntry{
		Key:      key,
		Snapshot: snapshot.Clone(),
		StoredAt: c.now().UTC().Truncate(time.Second),
	}
	if i := doc.find(key); i >= 0 {
		doc.Entries[i] = entry
	} else {
		doc.Entries = append(doc.Entries, entry)
	}

	c.save(doc)
}

// Latest returns the entry stored under key regardless of its age
func (c *Cache) Latest(key string) (weather.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.load()
	if !ok {
		return weather.CacheEntry{}, false
	}
	if i := doc.find(key); i >= 0 {
		return doc.Entries[i], true
	}
	return weather.CacheEntry{}, false
}

// MostRecent returns the newest entry of any key regardless of its age
func (c *Cache) MostRecent() (weather.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.load()
	if !ok || len(doc.Entries) == 0 {
		return weather.CacheEntry{}, false
	}

	newest := doc.Entries[0]
	for _, e := range doc.Entries[1:] {
		if e.StoredAt.After(newest.StoredAt) {
			newest = e
		}
	}
	return newest, true
}

// LastCity returns the last city a search succeeded for, or the default city
func (c *Cache) LastCity() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.load()
	if !ok || doc.LastCity == "" {
		return c.defaultCity
	}
	return doc.LastCity
}

// SetLastCity records city as the last-known-good city
func (c *Cache) SetLastCity(city string) {
	if city == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.load()
	if !ok {
		return
	}
	doc.LastCity = city
	doc.LastCityAt = c.now().UTC().Truncate(time.Second)
	c.save(doc)
}

// Purge removes expired entries and reports how many were removed
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.load()
	if !ok {
		return 0
	}

	kept := doc.Entries[:0]
	for _, e := range doc.Entries {
		if !c.expired(e) {
			kept = append(kept, e)
		}
	}
	removed := len(doc.Entries) - len(kept)
	if removed == 0 {
		return 0
	}

	doc.Entries = kept
	if !c.save(doc) {
		return 0
	}
	logger.Info("Purged %d expired cache entries", removed)
	return removed
}

func (c *Cache) expired(e weather.CacheEntry) bool {
	return e.Age(c.now()) > c.ttl
}

func (c *Cache) load() (Document, bool) {
	doc, err := c.store.Load()
	if err != nil {
		c.absorb(err)
		return Document{}, false
	}
	return doc, true
}

func (c *Cache) save(doc Document) bool {
	if err := c.store.Save(doc); err != nil {
		c.absorb(err)
		return false
	}
	return true
}

func (c *Cache) absorb(err error) {
	var storageErr *errorutil.StorageError
	if errors.As(err, &storageErr) {
		errorutil.LogStorageError(logger.Get().Logger, storageErr)
		return
	}
	errorutil.LogWarning(logger.Get().Logger, "cache", err)
}
