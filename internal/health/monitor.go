// Package health periodically probes the dependencies the answer pipeline
// cannot work without and keeps the last result for the health endpoint.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"docs-answer-bot/internal/logger"
)

const (
	StatusUnknown   = "unknown"
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"

	probeTag = "search-probe"
)

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Snapshot is the result of the most recent probe.
type Snapshot struct {
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at,omitempty"`
}

// Monitor runs the search backend probe on a schedule
type Monitor struct {
	target    Pinger
	interval  time.Duration
	timeout   time.Duration
	scheduler *gocron.Scheduler

	mu   sync.RWMutex
	last Snapshot
}

func NewMonitor(target Pinger, interval, timeout time.Duration) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &Monitor{
		target:    target,
		interval:  interval,
		timeout:   timeout,
		scheduler: s,
		last:      Snapshot{Status: StatusUnknown},
	}
}

// Start schedules the probe and runs it once immediately
func (m *Monitor) Start() error {
	if _, err := m.scheduler.Every(m.interval).Tag(probeTag).Do(m.Probe); err != nil {
		return err
	}
	m.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler
func (m *Monitor) Stop() {
	m.scheduler.Stop()
}

// Probe pings the target and records the outcome.
func (m *Monitor) Probe() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	snap := Snapshot{Status: StatusHealthy, CheckedAt: time.Now().UTC()}
	if err := m.target.Ping(ctx); err != nil {
		snap.Status = StatusUnhealthy
		snap.Error = err.Error()
	}

	m.mu.Lock()
	previous := m.last.Status
	m.last = snap
	m.mu.Unlock()

	if snap.Status != previous {
		if snap.Status == StatusHealthy {
			logger.Info("Search backend reachable")
		} else {
			logger.Warn("Search backend unreachable", "error", snap.Error)
		}
	}
}

// Last returns the most recent probe result.
func (m *Monitor) Last() Snapshot {
	if m == nil {
		return Snapshot{Status: StatusUnknown}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}
