package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"docs-answer-bot/internal/app"
	"docs-answer-bot/internal/config"
	"docs-answer-bot/internal/health"
	"docs-answer-bot/internal/logger"
	"docs-answer-bot/internal/queue"
	"docs-answer-bot/internal/slack"
	"docs-answer-bot/internal/telemetry"
	"docs-answer-bot/internal/worker"
	"docs-answer-bot/middleware"
	"docs-answer-bot/routes"
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
		shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.ServiceName, cfg.OTelEndpoint)
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

	// Redis backs the rate limiter and, when selected, the task queue
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = config.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, rate limiting disabled", "error", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	dispatcher, stopDispatcher, err := newDispatcher(cfg, components)
	if err != nil {
		logger.Error("Failed to start dispatcher", "error", err)
		os.Exit(1)
	}

	monitor := health.NewMonitor(components.Retriever, cfg.HealthProbeInterval, cfg.SearchTimeout)
	if err := monitor.Start(); err != nil {
		logger.Warn("Search health probe disabled", "error", err)
	}
	defer monitor.Stop()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddlewareWithOrigins(cfg.CORSOrigins))
	if cfg.OTelEnabled {
		router.Use(middleware.TracingMiddleware(), middleware.EnrichTrace())
	}
	router.Use(middleware.MetricsMiddleware(metrics))

	eventDeps := routes.EventDeps{
		Verifier:   slack.NewVerifier(cfg.SlackSigningSecret),
		Dispatcher: dispatcher,
		Metrics:    metrics,
	}
	if rdb != nil {
		eventDeps.RateLimit = middleware.RateLimitMiddleware(rdb, cfg.RateLimitReqs, time.Duration(cfg.RateLimitWindow)*time.Second)
	}

	routes.SetupHealthRoutes(router, monitor)
	routes.SetupEventRoutes(router, eventDeps)
	if cfg.AskAPIEnabled {
		routes.SetupAskRoutes(router, routes.AskDeps{
			Service:         components.Orchestrator,
			AnswerLog:       components.AnswerLog,
			PipelineTimeout: cfg.PipelineTimeout,
		})
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port, "llm", cfg.LLMProvider, "queue_backend", cfg.QueueBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	if err := stopDispatcher(shutdownCtx); err != nil {
		logger.Warn("Dispatcher did not stop cleanly", "error", err)
	}

	logger.Info("Server exited")
}

// newDispatcher picks the in-process worker pool or the Redis task queue.
func newDispatcher(cfg *config.Config, components *app.Components) (routes.Dispatcher, func(context.Context) error, error) {
	if cfg.QueueBackend == config.QueueBackendRedis {
		redisOpt, err := cfg.AsynqRedisOpt()
		if err != nil {
			return nil, nil, err
		}
		client := asynq.NewClient(redisOpt)
		logger.Info("Dispatching answers to task queue", "redis", redisOpt.Addr)
		stop := func(context.Context) error { return client.Close() }
		return queue.NewDispatcher(client, cfg.PipelineTimeout), stop, nil
	}

	pool := worker.NewPool(components.Handler.Handle, cfg.WorkerCount, cfg.QueueSize)
	pool.Start()
	return pool, pool.Stop, nil
}
