package watch

import (
	"context"
	"time"
)

// withRetry runs fn up to maxRetries+1 times. The wait before each retry
// starts at baseDelay and doubles.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	var err error
	for attempt, delay := 0, baseDelay; ; attempt, delay = attempt+1, delay*2 {
		if err = fn(ctx); err == nil || attempt >= maxRetries || ctx.Err() != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
