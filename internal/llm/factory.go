package llm

import (
	"context"
	"fmt"

	"docs-answer-bot/internal/config"
	"docs-answer-bot/internal/telemetry"
)

// NewModel builds the adapter named by cfg.LLMProvider.
func NewModel(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (Model, error) {
	switch cfg.LLMProvider {
	case config.ProviderChatGPT:
		model, err := NewChatGPT(ChatGPTConfig{
			APIKey:            cfg.ChatGPTAPIKey,
			BaseURL:           cfg.ChatGPTBaseURL,
			Model:             cfg.ChatGPTModel,
			EmbeddingModel:    cfg.ChatGPTEmbeddingModel,
			Temperature:       cfg.LLMTemperature,
			RequestsPerMinute: cfg.LLMRequestsPerMinute,
		}, metrics)
		if err != nil {
			return nil, err
		}
		return model, nil
	case config.ProviderGemini:
		model, err := NewGemini(ctx, GeminiConfig{
			APIKey:            cfg.GeminiAPIKey,
			Model:             cfg.GeminiModel,
			EmbeddingModel:    cfg.GeminiEmbeddingModel,
			Temperature:       cfg.LLMTemperature,
			RequestsPerMinute: cfg.LLMRequestsPerMinute,
		}, metrics)
		if err != nil {
			return nil, err
		}
		return model, nil
	default:
		return nil, fmt.Errorf("unsupported LLM type: %s", cfg.LLMProvider)
	}
}
