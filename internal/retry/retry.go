// Package retry implements the solver's generic exponential-backoff
// helper for transient I/O calls. internal/settlement keeps its own
// variant that stops early on a reverted transaction.
package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Options configures WithRetry. MaxRetries == 0 disables retries entirely
// (fn runs once; its error, if any, is returned wrapped immediately).
type Options struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// WithRetry runs fn, retrying up to opts.MaxRetries times on error with a
// base*2^attempt exponential backoff between attempts. It logs a warning
// with the attempt number and delay before each retry. The returned error
// wraps the one fn returned on its last attempt; if ctx is cancelled
// while waiting between attempts, it wraps ctx.Err() instead.
func WithRetry(ctx context.Context, logger *zap.Logger, opts Options, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == opts.MaxRetries {
			break
		}

		delay := opts.BaseDelay * time.Duration(1<<uint(attempt))
		if logger != nil {
			logger.Warn("retrying after error",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry: context cancelled after attempt %d: %w", attempt, ctx.Err())
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("retry: exhausted %d retries: %w", opts.MaxRetries, lastErr)
}
