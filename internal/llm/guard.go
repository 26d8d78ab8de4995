package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"docs-answer-bot/internal/logger"
	"docs-answer-bot/internal/telemetry"
)

// guard throttles outbound model calls and stops calling a provider that keeps failing.
type guard struct {
	name    string
	breaker *gobreaker.TwoStepCircuitBreaker
	limiter *rate.Limiter
}

func newGuard(name string, requestsPerMinute int, metrics *telemetry.Metrics) *guard {
	breaker := gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			metrics.RecordCircuitBreakerState(name, to.String())
		},
	})

	limit := rate.Inf
	burst := 1
	if requestsPerMinute > 0 {
		limit = rate.Limit(float64(requestsPerMinute) / 60.0)
		burst = max(1, requestsPerMinute/10)
	}

	return &guard{
		name:    name,
		breaker: breaker,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// acquire blocks until the rate limiter admits one request and the breaker
// allows it. The returned func must be called with the outcome.
func (g *guard) acquire(ctx context.Context) (func(error), error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s rate limiter: %w", g.name, err)
	}

	done, err := g.breaker.Allow()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", g.name, ErrUnavailable, err)
	}

	// caller cancellations say nothing about provider health
	return func(callErr error) {
		done(callErr == nil || errors.Is(callErr, context.Canceled))
	}, nil
}

// do runs fn under the guard.
func (g *guard) do(ctx context.Context, fn func() error) error {
	release, err := g.acquire(ctx)
	if err != nil {
		return err
	}
	err = fn()
	release(err)
	return err
}

// call is do for completions.
func (g *guard) call(ctx context.Context, fn func() (string, error)) (string, error) {
	var out string
	err := g.do(ctx, func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}
