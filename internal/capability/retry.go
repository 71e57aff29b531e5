package capability

import (
	"context"
	"fmt"
	"time"
)

// Policy is a bounded retry with exponential backoff. The base delay doubles
// on every failed attempt. The same type drives both the generation client's
// per-call retries and the workflow engine's coarser per-phase retries, so
// the two scopes stay separately configurable.
type Policy struct {
	MaxAttempts int           // total attempts, minimum 1
	BaseDelay   time.Duration // delay before the second attempt
}

// Do runs op until it succeeds, attempts are exhausted, or ctx is done.
// After exhaustion the returned error embeds the last underlying failure.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.BaseDelay * time.Duration(1<<(attempt-1))):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := op(ctx); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
