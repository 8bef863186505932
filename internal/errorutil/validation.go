package errorutil

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
)

// QueryError reports a place query that is deterministically invalid.
// It is never retried.
type QueryError struct {
	Query  string
	Reason string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("invalid place query %q: %s", e.Query, e.Reason)
}

// FieldError describes a single field that failed shape validation
type FieldError struct {
	Field string // Namespaced field, e.g. "ForecastResponse.List"
	Rule  string // The validation tag that failed
}

// InvalidResponseError reports a provider payload that could not be decoded
// or failed shape validation
type InvalidResponseError struct {
	Operation  string
	Fields     []FieldError
	Underlying error
}

func (e *InvalidResponseError) Error() string {
	if len(e.Fields) > 0 {
		parts := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			parts[i] = fmt.Sprintf("%s (%s)", f.Field, f.Rule)
		}
		return fmt.Sprintf("%s returned an invalid response: %s", e.Operation, strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s returned an invalid response: %v", e.Operation, e.Underlying)
}

func (e *InvalidResponseError) Unwrap() error {
	return e.Underlying
}

// NewInvalidResponse wraps a decode or validation failure. Field errors from
// go-playground/validator are flattened into Fields.
func NewInvalidResponse(operation string, err error) *InvalidResponseError {
	invalid := &InvalidResponseError{
		Operation:  operation,
		Underlying: err,
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			invalid.Fields = append(invalid.Fields, FieldError{
				Field: fe.Namespace(),
				Rule:  fe.Tag(),
			})
		}
	}

	return invalid
}

// LogInvalidResponse logs each failing field with structured context
func LogInvalidResponse(logger *slog.Logger, invalid *InvalidResponseError) {
	if logger == nil || invalid == nil {
		return
	}

	if len(invalid.Fields) == 0 {
		logger.Warn("Invalid provider response",
			slog.String("operation", invalid.Operation),
			slog.String("error", invalid.Underlying.Error()))
		return
	}

	for _, f := range invalid.Fields {
		logger.Warn("Invalid provider response",
			slog.String("operation", invalid.Operation),
			slog.String("field", f.Field),
			slog.String("rule", f.Rule))
	}
}
