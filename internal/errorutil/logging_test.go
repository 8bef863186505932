package errorutil

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

// TestLogWarning tests the LogWarning functionality
func TestLogWarning(t *testing.T) {
	var logOutput strings.Builder
	logger := slog.New(slog.NewTextHandler(&logOutput, nil))

	LogWarning(logger, "cache read", errors.New("disk full"), PlaceContext("Москва")...)

	logStr := logOutput.String()
	if !strings.Contains(logStr, "level=WARN") {
		t.Error("Expected WARN level in log output")
	}
	if !strings.Contains(logStr, "Non-fatal error in cache read") {
		t.Errorf("Log doesn't contain expected message: %s", logStr)
	}
	if !strings.Contains(logStr, "query=Москва") {
		t.Errorf("Log doesn't contain query attribute: %s", logStr)
	}
}

// TestExecuteWithLogging tests the ExecuteWithLogging functionality
func TestExecuteWithLogging(t *testing.T) {
	t.Run("successful execution", func(t *testing.T) {
		var logOutput strings.Builder
		logger := slog.New(slog.NewTextHandler(&logOutput, &slog.HandlerOptions{Level: slog.LevelDebug}))

		called := false
		err := ExecuteWithLogging(logger, "purge", func() error {
			called = true
			return nil
		})

		if err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
		if !called {
			t.Error("Function was not called")
		}
		if !strings.Contains(logOutput.String(), "Completed purge") {
			t.Error("Log doesn't contain completion message")
		}
	})

	t.Run("failed execution", func(t *testing.T) {
		var logOutput strings.Builder
		logger := slog.New(slog.NewTextHandler(&logOutput, &slog.HandlerOptions{Level: slog.LevelDebug}))

		testErr := errors.New("function failed")
		err := ExecuteWithLogging(logger, "purge", func() error {
			return testErr
		})

		if !errors.Is(err, testErr) {
			t.Errorf("Expected wrapped %v, got %v", testErr, err)
		}
		if !strings.Contains(logOutput.String(), "Failed purge") {
			t.Error("Log doesn't contain failure message")
		}
	})
}

// TestContextHelpers tests the attribute helper functions
func TestContextHelpers(t *testing.T) {
	if attrs := PlaceContext(""); attrs != nil {
		t.Errorf("Expected nil attrs for empty query, got %v", attrs)
	}
	if attrs := FileContext(""); attrs != nil {
		t.Errorf("Expected nil attrs for empty path, got %v", attrs)
	}

	attrs := LocationContext(55.75, 37.62)
	if len(attrs) != 2 {
		t.Fatalf("Expected 2 attrs, got %d", len(attrs))
	}
	if attrs[0].Key != "latitude" || attrs[0].Value.Float64() != 55.75 {
		t.Errorf("Unexpected latitude attr: %v", attrs[0])
	}
	if attrs[1].Key != "longitude" || attrs[1].Value.Float64() != 37.62 {
		t.Errorf("Unexpected longitude attr: %v", attrs[1])
	}
}

// TestNilLoggerHandling ensures helpers are safe without a logger
func TestNilLoggerHandling(t *testing.T) {
	testErr := errors.New("test error")

	LogWarning(nil, "op", testErr)
	LogNetworkError(nil, "op", testErr)
	LogStorageError(nil, NewStorageError("read", "", testErr))

	called := false
	if err := ExecuteWithLogging(nil, "op", func() error { called = true; return nil }); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if !called {
		t.Error("Function was not called with nil logger")
	}
}

func BenchmarkLogWarning(b *testing.B) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := errors.New("benchmark error")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		LogWarning(logger, "benchmark", err, slog.String("key", "value"))
	}
}
