package api

import (
	"context"
	"time"

	"gardencast/internal/errorutil"
	"gardencast/internal/logger"
)

// RetryPolicy bounds how often and how patiently transient failures are retried
type RetryPolicy struct {
	MaxRetries int           // Retries after the first attempt
	BaseDelay  time.Duration // Wait before the first retry
	MaxDelay   time.Duration // Ceiling for any single wait
}

// DefaultRetryPolicy returns the policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   4 * time.Second,
	}
}

// Delay returns the wait before retry number attempt+1: BaseDelay doubled
// attempt times and capped at MaxDelay. The sequence never decreases.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}

	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			break
		}
		delay *= 2
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Retry invokes op until it succeeds, fails with a non-transient error, or
// MaxRetries retries are spent. The last error is returned unchanged.
// Cancelling ctx while waiting returns ctx.Err().
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	retries := max(policy.MaxRetries, 0)

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !errorutil.IsTransient(err) || attempt == retries {
			break
		}

		delay := policy.Delay(attempt)
		logger.Debug("Transient failure (attempt %d/%d), retrying in %v: %v", attempt+1, retries+1, delay, err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, lastErr
}
