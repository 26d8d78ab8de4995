package main

import (
	"context"
	"os"

	"github.com/hibiken/asynq"

	"docs-answer-bot/internal/app"
	"docs-answer-bot/internal/config"
	"docs-answer-bot/internal/logger"
	"docs-answer-bot/internal/queue"
	"docs-answer-bot/internal/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger.InitLogger(cfg)

	ctx := context.Background()
	if cfg.OTelEnabled {
		shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.ServiceName+"-worker", cfg.OTelEndpoint)
		if err != nil {
			logger.Warn("Tracing disabled", "error", err)
		} else {
			defer shutdownTracer()
		}
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
	}

	components, err := app.Build(ctx, cfg, metrics)
	if err != nil {
		logger.Error("Failed to build answer pipeline", "error", err)
		os.Exit(1)
	}
	defer components.Close()

	// Redis options for Asynq
	redisOpt, err := cfg.AsynqRedisOpt()
	if err != nil {
		logger.Error("Invalid Redis configuration", "error", err)
		os.Exit(1)
	}

	// Create Asynq server
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.WorkerCount,
			Queues: map[string]int{
				queue.QueueDefault: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(components.Handler.Handle)

	logger.Info("Starting answer worker", "concurrency", cfg.WorkerCount, "redis", redisOpt.Addr)

	// Run blocks until SIGTERM or SIGINT
	if err := server.Run(queue.NewServeMux(processor)); err != nil {
		logger.Error("Worker stopped", "error", err)
		os.Exit(1)
	}
}
