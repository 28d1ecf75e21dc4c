package resilience

import (
	"context"
	"time"
)

// RetryWithBackoff executes operation up to maxAttempts times. After a
// failure it waits initialDelay before the next attempt and doubles the
// delay each round. The final error is returned untouched so callers
// can classify it with errors.Is. Waits observe ctx; cancellation
// returns ctx.Err() without another attempt.
func RetryWithBackoff(ctx context.Context, operation func() error, maxAttempts int, initialDelay time.Duration) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	delay := initialDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = operation(); err == nil {
			return nil
		}

		if attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}

	return err
}
