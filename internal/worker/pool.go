// Package worker runs answer jobs on a fixed set of goroutines.
package worker

import (
	"context"
	"errors"
	"sync"

	"docs-answer-bot/internal/logger"
	"docs-answer-bot/models"
)

var (
	ErrQueueFull = errors.New("worker queue is full")
	ErrStopped   = errors.New("worker pool is stopped")
)

// Handler processes one job. It must honour ctx cancellation.
type Handler func(ctx context.Context, job models.AnswerJob)

// Pool is a bounded worker pool fed by a buffered channel.
type Pool struct {
	handler     Handler
	workerCount int
	jobs        chan models.AnswerJob

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func NewPool(handler Handler, workerCount, queueSize int) *Pool {
	if workerCount <= 0 {
		workerCount = 4
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		handler:     handler,
		workerCount: workerCount,
		jobs:        make(chan models.AnswerJob, queueSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the workers
func (p *Pool) Start() {
	logger.Info("Starting answer worker pool", "workers", p.workerCount, "queue_size", cap(p.jobs))
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Dispatch queues job without blocking. It fails with ErrQueueFull when
// every worker is busy and the buffer is full.
func (p *Pool) Dispatch(ctx context.Context, job models.AnswerJob) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}

	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop cancels in-flight jobs and waits for the workers to exit or ctx to end.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Answer worker pool stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		if p.ctx.Err() != nil {
			logger.Warn("Dropping queued job on shutdown", "worker", id, "request_id", job.RequestID)
			continue
		}
		p.run(id, job)
	}
}

func (p *Pool) run(id int, job models.AnswerJob) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Answer job panicked", "worker", id, "request_id", job.RequestID, "panic", r)
		}
	}()
	p.handler(p.ctx, job)
}
