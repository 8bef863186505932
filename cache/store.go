package cache

import (
	"sync"
	"time"

	"gardencast/weather"
)

// SchemaVersion is the version stamped on every persisted document
const SchemaVersion = 1

// Document is everything the cache persists
type Document struct {
	SchemaVersion int                  `toml:"schema_version"`
	LastCity      string               `toml:"last_city"`
	LastCityAt    time.Time            `toml:"last_city_at"`
	Entries       []weather.CacheEntry `toml:"entries"`
}

func (d Document) clone() Document {
	out := d
	out.Entries = make([]weather.CacheEntry, len(d.Entries))
	for i, e := range d.Entries {
		out.Entries[i] = weather.CacheEntry{Key: e.Key, Snapshot: e.Snapshot.Clone(), StoredAt: e.StoredAt}
	}
	return out
}

func (d *Document) find(key string) int {
	for i := range d.Entries {
		if d.Entries[i].Key == key {
			return i
		}
	}
	return -1
}

// Store persists the cache document. Implementations return
// *errorutil.StorageError for failures of the backing medium.
type Store interface {
	Load() (Document, error)
	Save(doc Document) error
}

// MemoryStore keeps the document in process memory
type MemoryStore struct {
	mu  sync.Mutex
	doc Document
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{doc: Document{SchemaVersion: SchemaVersion}}
}

func (m *MemoryStore) Load() (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.clone(), nil
}

func (m *MemoryStore) Save(doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = doc.clone()
	m.doc.SchemaVersion = SchemaVersion
	return nil
}
