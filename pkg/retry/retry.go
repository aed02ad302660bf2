package retry

import (
	"context"
	"time"

	"github.com/mbelkin/auth-service/internal/logging"
)

const (
	defaultMaxAttempts = 3
	defaultWait        = time.Second
)

type Options struct {
	MaxAttempts int
	Wait        time.Duration
}

// Do runs fn with bounded attempts and a fixed backoff. Only use it for
// idempotent operations; a retried non-idempotent write needs an
// idempotency key, which this helper does not provide.
func Do(ctx context.Context, name string, opts Options, fn func(context.Context) error) error {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	wait := opts.Wait
	if wait <= 0 {
		wait = defaultWait
	}

	l := logging.FromContext(ctx).With("retry", name)

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		l.Warn("attempt failed", "attempt", attempt, "error", err)

		if attempt == maxAttempts {
			break
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return err
}
