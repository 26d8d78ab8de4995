package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"docs-answer-bot/internal/logger"
	"docs-answer-bot/models"
)

const (
	TaskAnswerMessage = "answer:message"

	QueueDefault = "default"
)

// Task creators
func NewAnswerTask(job models.AnswerJob, timeout time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}

	opts := []asynq.Option{
		// a failed answer already produced an error reply; retrying would post twice
		asynq.MaxRetry(0),
		asynq.Queue(QueueDefault),
	}
	if timeout > 0 {
		opts = append(opts, asynq.Timeout(timeout))
	}
	if id := taskID(job); id != "" {
		opts = append(opts, asynq.TaskID(id))
	}

	return asynq.NewTask(TaskAnswerMessage, payload, opts...), nil
}

// taskID keys tasks by platform event so a redelivered event is rejected
// by the queue. Request IDs can come from client headers and are not used.
func taskID(job models.AnswerJob) string {
	if job.EventID == "" {
		return ""
	}
	return "event:" + job.EventID
}

// Enqueuer is the part of *asynq.Client the dispatcher uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher hands answer jobs to the Redis backed queue served by cmd/worker.
type Dispatcher struct {
	client  Enqueuer
	timeout time.Duration
}

func NewDispatcher(client Enqueuer, taskTimeout time.Duration) *Dispatcher {
	return &Dispatcher{client: client, timeout: taskTimeout}
}

func (d *Dispatcher) Dispatch(ctx context.Context, job models.AnswerJob) error {
	task, err := NewAnswerTask(job, d.timeout)
	if err != nil {
		return fmt.Errorf("build answer task: %w", err)
	}

	info, err := d.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue answer task: %w", err)
	}
	logger.Debug("Answer task enqueued", "task_id", info.ID, "queue", info.Queue, "request_id", job.RequestID)
	return nil
}

// Task handlers
type TaskProcessor struct {
	handle func(ctx context.Context, job models.AnswerJob)
}

func NewTaskProcessor(handle func(ctx context.Context, job models.AnswerJob)) *TaskProcessor {
	return &TaskProcessor{handle: handle}
}

func (p *TaskProcessor) ProcessAnswer(ctx context.Context, t *asynq.Task) error {
	var job models.AnswerJob
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	logger.Info("Processing answer task", "request_id", job.RequestID, "channel", job.Event.Channel)
	p.handle(ctx, job)
	return nil
}

// NewServeMux registers every task handler.
func NewServeMux(p *TaskProcessor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskAnswerMessage, p.ProcessAnswer)
	return mux
}
