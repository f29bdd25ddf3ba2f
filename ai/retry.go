package ai

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seo-optimizer/siteanalyzer/progress"
)

// RetryPolicy is an exponential backoff schedule.
type RetryPolicy struct {
	MaxRetries  int
	BaseBackoff time.Duration
}

// DefaultRetryPolicy retries three times after 1s, 2s and 4s.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, BaseBackoff: time.Second}

// WithRetry calls fn until it succeeds, the retries are used up, the error
// is not retryable or ctx is done. It waits BaseBackoff*2^attempt between
// calls.
func WithRetry[T any](ctx context.Context, policy RetryPolicy, log logrus.FieldLogger, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, progress.Check(ctx)
		}
		if !retryable(err) {
			return zero, err
		}

		if attempt < policy.MaxRetries {
			wait := policy.BaseBackoff * (1 << uint(attempt))
			if log != nil {
				log.WithFields(logrus.Fields{
					"attempt":    attempt + 1,
					"maxRetries": policy.MaxRetries,
					"backoffMs":  wait.Milliseconds(),
				}).WithError(err).Warn("Retrying ai call")
			}
			if err := progress.Sleep(ctx, wait); err != nil {
				return zero, err
			}
		}
	}
	return zero, lastErr
}

func retryable(err error) bool {
	if errors.Is(err, ErrNotConfigured) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}
