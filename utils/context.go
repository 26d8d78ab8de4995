package utils

import (
	"context"
	"time"
)

const (
	// ShortTimeout is for quick operations (health probes, cache lookups)
	ShortTimeout = 2 * time.Second

	// DefaultTimeout is for outbound calls that have no configured deadline
	DefaultTimeout = 10 * time.Second
)

// WithShortTimeout creates a context with short timeout for quick operations
func WithShortTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, ShortTimeout)
}

// WithCustomTimeout creates a context with custom timeout duration.
// A non-positive duration leaves the parent deadline in place.
func WithCustomTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, duration)
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
