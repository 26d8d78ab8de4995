// Package app assembles the answer pipeline from configuration. Both the
// HTTP server and the queue worker build their dependencies here.
package app

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"docs-answer-bot/internal/answer"
	"docs-answer-bot/internal/config"
	"docs-answer-bot/internal/llm"
	"docs-answer-bot/internal/logger"
	"docs-answer-bot/internal/search"
	"docs-answer-bot/internal/slack"
	"docs-answer-bot/internal/telemetry"
	"docs-answer-bot/models"
	"docs-answer-bot/services"
)

// Components is the wired answer pipeline.
type Components struct {
	Model        llm.Model
	Retriever    *search.Retriever
	Orchestrator *answer.Orchestrator
	Handler      *services.MessageHandler
	AnswerLog    *models.AnswerLogger

	mongo *mongo.Client
}

func Build(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (*Components, error) {
	model, err := llm.NewModel(ctx, cfg, metrics)
	if err != nil {
		return nil, fmt.Errorf("init LLM: %w", err)
	}

	backend, err := search.NewElastic(search.ElasticConfig{
		Address:  cfg.ElasticAddress(),
		Username: cfg.ElasticUser,
		Password: cfg.ElasticPassword,
		Index:    cfg.ElasticIndex,
	})
	if err != nil {
		_ = model.Close()
		return nil, fmt.Errorf("init search backend: %w", err)
	}
	retriever := search.NewRetriever(backend, model, cfg.VectorWeight, metrics)

	orchestrator := answer.NewOrchestrator(model, retriever, answer.Options{
		RetrievalK:    cfg.RetrievalK,
		StreamK:       cfg.StreamK,
		MaxTokenLimit: cfg.MaxTokenLimit,
		ChunkDelay:    cfg.ChunkDelay,
		LLMTimeout:    cfg.LLMTimeout,
		SearchTimeout: cfg.SearchTimeout,
	}, metrics)

	c := &Components{
		Model:        model,
		Retriever:    retriever,
		Orchestrator: orchestrator,
	}

	if cfg.MongoURI != "" {
		client, err := config.ConnectMongoDB(cfg)
		if err != nil {
			// the answer log is optional; keep serving without it
			logger.Warn("Answer log disabled, MongoDB unavailable", "error", err)
		} else {
			c.mongo = client
			c.AnswerLog = models.NewAnswerLogger(client.Database(cfg.DBName).Collection(config.AnswerLogCollection))
			logger.Info("Answer log enabled", "database", cfg.DBName)
		}
	}

	replier := slack.NewClient(cfg.SlackBotToken, cfg.SlackAPIURL)
	c.Handler = services.NewMessageHandler(orchestrator, replier, c.AnswerLog, cfg.PipelineTimeout)

	logger.Info("Answer pipeline ready",
		"llm", model.Provider(),
		"elastic", cfg.ElasticAddress(),
		"index", cfg.ElasticIndex,
		"vector_weight", cfg.VectorWeight,
	)
	return c, nil
}

// Close releases provider and database connections.
func (c *Components) Close() {
	if err := c.Model.Close(); err != nil {
		logger.Warn("Failed to close LLM client", "error", err)
	}
	if c.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongo.Disconnect(ctx); err != nil {
			logger.Warn("Failed to disconnect MongoDB", "error", err)
		}
	}
}
