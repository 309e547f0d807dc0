package engine

import (
	"context"
	"time"
)

// nextDelay advances the backoff sequence: the first failed attempt
// waits the base delay, each subsequent one multiplies by the backoff
// factor. A factor at or below zero means constant delay.
func nextDelay(current time.Duration, factor float64) time.Duration {
	if factor <= 0 {
		return current
	}
	return time.Duration(float64(current) * factor)
}

// waitForRetry sleeps for the backoff delay or returns early when the
// context is cancelled.
func waitForRetry(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
