package errorutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"timeout", &TimeoutError{Operation: "forecast", Timeout: time.Second}, true},
		{"network", NewNetworkError("geocode", "/direct", errors.New("connection refused")), true},
		{"circuit open", NewNetworkError("geocode", "/direct", fmt.Errorf("%w: open", ErrCircuitOpen)), false},
		{"http 429", &HTTPError{StatusCode: 429}, true},
		{"http 503", &HTTPError{StatusCode: 503}, true},
		{"http 404", &HTTPError{StatusCode: 404}, false},
		{"http 401", &HTTPError{StatusCode: 401}, false},
		{"not found", &NotFoundError{Query: "Atlantis"}, false},
		{"invalid response", NewInvalidResponse("forecast", errors.New("bad json")), false},
		{"query", &QueryError{Query: "a", Reason: "too short"}, false},
		{"wrapped timeout", fmt.Errorf("outer: %w", &TimeoutError{}), true},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.expected {
				t.Errorf("IsTransient(%v) = %v, expected %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err      error
		expected Kind
	}{
		{&QueryError{Query: "a"}, KindInvalidQuery},
		{&NotFoundError{Query: "Atlantis"}, KindNotFound},
		{fmt.Errorf("resolve: %w", &NotFoundError{Query: "x"}), KindNotFound},
		{&TimeoutError{}, KindTimeout},
		{&HTTPError{StatusCode: 500}, KindHTTP},
		{NewNetworkError("op", "url", errors.New("reset")), KindNetwork},
		{NewInvalidResponse("op", errors.New("eof")), KindInvalidResponse},
		{NewStorageError("write", "/tmp/x", os.ErrPermission), KindStorage},
		{errors.New("other"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.expected.String(), func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.expected {
				t.Errorf("KindOf(%v) = %v, expected %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestUserMessageDistinguishesNotFoundFromUnavailable(t *testing.T) {
	notFound := UserMessage(&NotFoundError{Query: "Atlantis"})
	unavailable := UserMessage(&TimeoutError{})

	if notFound == unavailable {
		t.Fatal("Expected different messages for not found and timeout")
	}
	if !strings.Contains(strings.ToLower(notFound), "not found") {
		t.Errorf("Expected not found message, got %q", notFound)
	}
	if !strings.Contains(strings.ToLower(unavailable), "try again") {
		t.Errorf("Expected retry suggestion, got %q", unavailable)
	}

	reason := UserMessage(&QueryError{Query: "a", Reason: "Enter at least 2 characters."})
	if reason != "Enter at least 2 characters." {
		t.Errorf("Expected query reason, got %q", reason)
	}
}

func TestClassifyTransport(t *testing.T) {
	t.Run("deadline becomes timeout", func(t *testing.T) {
		err := ClassifyTransport(context.Background(), "forecast", "/forecast", 5*time.Second, context.DeadlineExceeded)
		var timeoutErr *TimeoutError
		if !errors.As(err, &timeoutErr) {
			t.Fatalf("Expected TimeoutError, got %T", err)
		}
		if timeoutErr.Timeout != 5*time.Second {
			t.Errorf("Expected timeout 5s, got %v", timeoutErr.Timeout)
		}
	})

	t.Run("dns failure becomes network error", func(t *testing.T) {
		dnsErr := &net.DNSError{Err: "no such host", Name: "api.example"}
		err := ClassifyTransport(context.Background(), "geocode", "/direct", time.Second, dnsErr)
		var netErr *NetworkError
		if !errors.As(err, &netErr) {
			t.Fatalf("Expected NetworkError, got %T", err)
		}
		if !errors.Is(err, dnsErr) {
			t.Error("Expected NetworkError to unwrap to DNS error")
		}
	})

	t.Run("caller cancellation passes through", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := ClassifyTransport(ctx, "geocode", "/direct", time.Second, errors.New("request canceled"))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	})
}

func TestNewInvalidResponseFlattensValidatorErrors(t *testing.T) {
	type payload struct {
		Name string   `validate:"required"`
		List []string `validate:"min=1"`
	}

	err := validator.New().Struct(payload{})
	if err == nil {
		t.Fatal("Expected validation error")
	}

	invalid := NewInvalidResponse("forecast", err)
	if len(invalid.Fields) != 2 {
		t.Fatalf("Expected 2 field errors, got %d", len(invalid.Fields))
	}
	if invalid.Fields[0].Rule != "required" {
		t.Errorf("Expected first rule 'required', got %q", invalid.Fields[0].Rule)
	}
	if !strings.Contains(invalid.Error(), "payload.List") {
		t.Errorf("Expected error to name the failing field, got %q", invalid.Error())
	}
}

func TestStorageErrorIsUnavailable(t *testing.T) {
	var logOutput strings.Builder
	logger := slog.New(slog.NewTextHandler(&logOutput, nil))

	err := NewStorageError("write", "/ro/cache.toml", os.ErrPermission)
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Error("Expected StorageError to match ErrStorageUnavailable")
	}
	if !errors.Is(err, os.ErrPermission) {
		t.Error("Expected StorageError to unwrap to underlying error")
	}

	LogStorageError(logger, err)
	if !strings.Contains(logOutput.String(), "error_type=permission_denied") {
		t.Errorf("Expected permission classification in log, got %s", logOutput.String())
	}
}
