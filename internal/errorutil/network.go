package errorutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// ErrCircuitOpen marks calls rejected by an open provider circuit breaker
var ErrCircuitOpen = errors.New("provider circuit open")

// TimeoutError reports a provider call that exceeded its time bound
type TimeoutError struct {
	Operation  string        // The operation that timed out (e.g., "geocode")
	URL        string        // The endpoint being accessed, without credentials
	Timeout    time.Duration // The bound that was exceeded
	Underlying error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s for %s", e.Operation, e.Timeout, e.URL)
}

func (e *TimeoutError) Unwrap() error {
	return e.Underlying
}

// HTTPError reports a non-2xx provider response
type HTTPError struct {
	Operation  string
	URL        string
	StatusCode int
	Message    string // Provider supplied message, when present
	Body       string // Response body text, truncated
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s failed for %s: HTTP %d: %s", e.Operation, e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s failed for %s: HTTP %d", e.Operation, e.URL, e.StatusCode)
}

// Retryable reports whether the status suggests the provider may recover
func (e *HTTPError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// NetworkError represents a transport-level failure (DNS, refused or reset connections)
type NetworkError struct {
	Operation  string
	URL        string
	Underlying error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Operation, e.URL, e.Underlying)
}

func (e *NetworkError) Unwrap() error {
	return e.Underlying
}

// NewNetworkError creates a new NetworkError with proper context
func NewNetworkError(operation, url string, err error) *NetworkError {
	return &NetworkError{
		Operation:  operation,
		URL:        url,
		Underlying: err,
	}
}

// ClassifyTransport converts an error returned by the HTTP client into the
// taxonomy. parent is the caller's context; its own cancellation is passed
// through untouched so the caller can tell it apart from a provider timeout.
func ClassifyTransport(parent context.Context, operation, url string, timeout time.Duration, err error) error {
	if err == nil {
		return nil
	}
	if parent != nil && parent.Err() != nil {
		return parent.Err()
	}
	if isTimeoutError(err) {
		return &TimeoutError{
			Operation:  operation,
			URL:        url,
			Timeout:    timeout,
			Underlying: err,
		}
	}
	return NewNetworkError(operation, url, err)
}

// IsTransient reports whether retrying the failed call might succeed
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return !errors.Is(err, ErrCircuitOpen)
	}

	return false
}

// LogNetworkError logs a provider failure at a level matching its retryability
func LogNetworkError(logger *slog.Logger, operation string, err error) {
	if logger == nil || err == nil {
		return
	}

	attrs := []any{
		slog.String("operation", operation),
		slog.String("error", err.Error()),
		slog.String("kind", KindOf(err).String()),
		slog.Bool("retryable", IsTransient(err)),
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		attrs = append(attrs, slog.Int("status_code", httpErr.StatusCode))
	}

	level := slog.LevelError
	if IsTransient(err) {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "Provider call failed", attrs...)
}

// isTimeoutError checks if an error is a timeout error
func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Some clients only surface the timeout in the message
	return strings.Contains(strings.ToLower(err.Error()), "timeout exceeded")
}
