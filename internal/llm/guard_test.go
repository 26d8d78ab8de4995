package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_OpensAfterRepeatedFailures(t *testing.T) {
	g := newGuard("test", 0, nil)
	boom := errors.New("provider exploded")

	for i := 0; i < 5; i++ {
		_, err := g.call(context.Background(), func() (string, error) { return "", boom })
		require.ErrorIs(t, err, boom)
	}

	calls := 0
	_, err := g.call(context.Background(), func() (string, error) {
		calls++
		return "ok", nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Zero(t, calls)
}

func TestGuard_CancellationDoesNotTrip(t *testing.T) {
	g := newGuard("test", 0, nil)

	for i := 0; i < 10; i++ {
		_, err := g.call(context.Background(), func() (string, error) { return "", context.Canceled })
		require.ErrorIs(t, err, context.Canceled)
	}

	out, err := g.call(context.Background(), func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestGuard_RateLimiterHonoursContext(t *testing.T) {
	g := newGuard("test", 1, nil)

	_, err := g.call(context.Background(), func() (string, error) { return "first", nil })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.call(ctx, func() (string, error) { return "second", nil })
	require.Error(t, err)
}
