package engine

import (
	"context"
	"fmt"
	"time"
)

// maxTransferAttempts is the total number of attempts per failed transfer.
const maxTransferAttempts = 3

// backoffDelay returns the exponential backoff delay for a 0-indexed
// attempt: 1s, 2s, 4s.
func backoffDelay(attempt int) time.Duration {
	return time.Second << attempt
}

// withRetry runs op up to maxTransferAttempts times, sleeping the backoff
// delay after each failure. The sleep observes ctx, so Stop aborts pending
// retries promptly while letting the in-flight attempt finish.
func (e *Engine) withRetry(ctx context.Context, desc string, op func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < maxTransferAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s aborted: %w", desc, err)
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		e.logger.Printf("%s attempt %d/%d failed: %v", desc, attempt+1, maxTransferAttempts, lastErr)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s aborted: %w", desc, ctx.Err())
		case <-e.clock.After(backoffDelay(attempt)):
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", desc, maxTransferAttempts, lastErr)
}
