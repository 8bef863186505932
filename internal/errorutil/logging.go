package errorutil

import (
	"fmt"
	"log/slog"
	"time"
)

// LogWarning logs a non-fatal error as warning without wrapping.
// Used for recoverable errors that should be logged but don't stop processing.
func LogWarning(logger *slog.Logger, operation string, err error, attrs ...slog.Attr) {
	if logger == nil || err == nil {
		return
	}

	logger.Warn("Non-fatal error in "+operation, toAny(withError(err, attrs))...)
}

// ExecuteWithLogging wraps a function call with operation logging
func ExecuteWithLogging(logger *slog.Logger, operation string, fn func() error, attrs ...slog.Attr) error {
	if logger == nil {
		return fn()
	}

	start := time.Now()
	logger.Debug("Starting "+operation, toAny(attrs)...)

	err := fn()
	done := append(append([]slog.Attr{}, attrs...), slog.Duration("duration", time.Since(start)))

	if err != nil {
		logger.Error("Failed "+operation, toAny(withError(err, done))...)
		return fmt.Errorf("%s: %w", operation, err)
	}

	logger.Debug("Completed "+operation, toAny(done)...)
	return nil
}

// PlaceContext creates context attributes for place query operations
func PlaceContext(query string) []slog.Attr {
	if query == "" {
		return nil
	}
	return []slog.Attr{slog.String("query", query)}
}

// LocationContext creates context attributes for coordinate based operations
func LocationContext(latitude, longitude float64) []slog.Attr {
	return []slog.Attr{
		slog.Float64("latitude", latitude),
		slog.Float64("longitude", longitude),
	}
}

// FileContext creates context attributes for file operations
func FileContext(filePath string) []slog.Attr {
	if filePath == "" {
		return nil
	}
	return []slog.Attr{slog.String("file_path", filePath)}
}

func withError(err error, attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(attrs)+1)
	out = append(out, slog.String("error", err.Error()))
	return append(out, attrs...)
}

func toAny(attrs []slog.Attr) []any {
	out := make([]any, len(attrs))
	for i, attr := range attrs {
		out[i] = attr
	}
	return out
}
