package errorutil

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
)

// ErrStorageUnavailable is matched by every StorageError
var ErrStorageUnavailable = errors.New("storage unavailable")

// StorageError represents a cache persistence failure with additional context.
// It is never fatal: the cache layer absorbs it and behaves as if empty.
type StorageError struct {
	Operation  string // The operation that failed (e.g., "read", "write", "rename")
	Path       string // The backing file path, empty for non-file stores
	Underlying error
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("storage %s failed: %v", e.Operation, e.Underlying)
	}
	return fmt.Sprintf("storage %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

func (e *StorageError) Unwrap() error {
	return e.Underlying
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

// NewStorageError creates a new StorageError
func NewStorageError(operation, path string, err error) *StorageError {
	return &StorageError{
		Operation:  operation,
		Path:       path,
		Underlying: err,
	}
}

// LogStorageError logs a storage error with appropriate structured context
func LogStorageError(logger *slog.Logger, storageErr *StorageError) {
	if logger == nil || storageErr == nil {
		return
	}

	attrs := []any{
		slog.String("operation", storageErr.Operation),
		slog.String("error", storageErr.Underlying.Error()),
		slog.String("error_type", storageErrorType(storageErr.Underlying)),
	}

	if storageErr.Path != "" {
		attrs = append(attrs,
			slog.String("file_path", storageErr.Path),
			slog.String("directory", filepath.Dir(storageErr.Path)))
	}

	logger.Warn("Cache storage unavailable", attrs...)
}

// storageErrorType returns a human-readable error type classification
func storageErrorType(err error) string {
	if err == nil {
		return "unknown"
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "file_not_found"
	case errors.Is(err, fs.ErrPermission):
		return "permission_denied"
	case errors.Is(err, syscall.ENOSPC):
		return "no_space_left"
	case errors.Is(err, syscall.EROFS):
		return "read_only_filesystem"
	case errors.Is(err, syscall.EMFILE), errors.Is(err, syscall.ENFILE):
		return "too_many_open_files"
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return fmt.Sprintf("path_error_%s", pathErr.Op)
	}

	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return fmt.Sprintf("link_error_%s", linkErr.Op)
	}

	return "generic_storage_error"
}
