package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"gardencast/internal/errorutil"
	"gardencast/internal/logger"
)

// FileStore persists the cache document as a single TOML file
type FileStore struct {
	mu       sync.Mutex
	filePath string
}

// NewFileStore creates a store backed by filePath. The file is created on first save.
func NewFileStore(filePath string) *FileStore {
	return &FileStore{filePath: filePath}
}

// Path returns the backing file path
func (s *FileStore) Path() string {
	return s.filePath
}

// Load reads the document. A missing, corrupt or foreign-schema file reads as
// empty; only failures of the file system itself are returned.
func (s *FileStore) Load() (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	empty := Document{SchemaVersion: SchemaVersion}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return empty, nil
		}
		return empty, errorutil.NewStorageError("read", s.filePath, err)
	}

	var doc Document
	if err := toml.Unmarshal(data, &doc); err != nil {
		errorutil.LogWarning(logger.Get().Logger, "cache load", fmt.Errorf("ignoring corrupt cache file: %w", err), errorutil.FileContext(s.filePath)...)
		return empty, nil
	}

	if doc.SchemaVersion != SchemaVersion {
		errorutil.LogWarning(logger.Get().Logger, "cache load", fmt.Errorf("ignoring cache file with schema version %d", doc.SchemaVersion), errorutil.FileContext(s.filePath)...)
		return empty, nil
	}

	logger.Debug("Cache loaded: entries=%d, last_city=%q", len(doc.Entries), doc.LastCity)
	return doc, nil
}

// Save writes the document to a temporary file and renames it over the
// target, so readers never observe a partial write.
func (s *FileStore) Save(doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc.SchemaVersion = SchemaVersion

	data, err := toml.Marshal(doc)
	if err != nil {
		return errorutil.NewStorageError("marshal", s.filePath, fmt.Errorf("failed to marshal cache document: %w", err))
	}

	if dir := filepath.Dir(s.filePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errorutil.NewStorageError("mkdir", s.filePath, err)
		}
	}

	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return errorutil.NewStorageError("write", tempFile, err)
	}

	if err := os.Rename(tempFile, s.filePath); err != nil {
		os.Remove(tempFile)
		return errorutil.NewStorageError("rename", s.filePath, err)
	}

	return nil
}

// Delete removes the backing file
func (s *FileStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errorutil.NewStorageError("delete", s.filePath, err)
	}
	logger.Debug("Cache file deleted: %s", s.filePath)
	return nil
}
