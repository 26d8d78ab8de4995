package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestMonitor_ProbeRecordsOutcome(t *testing.T) {
	var fail atomic.Bool
	m := NewMonitor(pingerFunc(func(ctx context.Context) error {
		if fail.Load() {
			return errors.New("connection refused")
		}
		return nil
	}), time.Hour, time.Second)

	assert.Equal(t, StatusUnknown, m.Last().Status)

	m.Probe()
	assert.Equal(t, StatusHealthy, m.Last().Status)
	assert.False(t, m.Last().CheckedAt.IsZero())

	fail.Store(true)
	m.Probe()
	snap := m.Last()
	assert.Equal(t, StatusUnhealthy, snap.Status)
	assert.Equal(t, "connection refused", snap.Error)
}

func TestMonitor_StartRunsImmediately(t *testing.T) {
	probed := make(chan struct{}, 1)
	m := NewMonitor(pingerFunc(func(ctx context.Context) error {
		select {
		case probed <- struct{}{}:
		default:
		}
		return nil
	}), time.Hour, time.Second)

	require.NoError(t, m.Start())
	defer m.Stop()

	select {
	case <-probed:
	case <-time.After(5 * time.Second):
		t.Fatal("probe did not run on start")
	}
}

func TestMonitor_NilIsUnknown(t *testing.T) {
	var m *Monitor
	assert.Equal(t, StatusUnknown, m.Last().Status)
}
