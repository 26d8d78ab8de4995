package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"docs-answer-bot/internal/telemetry"
)

const ProviderGemini = "GEMINI"

// GeminiConfig configures the Google Generative AI adapter.
type GeminiConfig struct {
	APIKey            string
	Model             string
	EmbeddingModel    string
	Temperature       float64
	RequestsPerMinute int
	ClientOptions     []option.ClientOption
}

// Gemini wraps the genai SDK client.
type Gemini struct {
	client         *genai.Client
	model          string
	embeddingModel string
	temperature    float32
	guard          *guard
}

var _ Model = (*Gemini)(nil)

func NewGemini(ctx context.Context, cfg GeminiConfig, metrics *telemetry.Metrics) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-004"
	}

	opts := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, cfg.ClientOptions...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &Gemini{
		client:         client,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		temperature:    float32(cfg.Temperature),
		guard:          newGuard("Gemini", cfg.RequestsPerMinute, metrics),
	}, nil
}

func (g *Gemini) Provider() string { return ProviderGemini }

func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *Gemini) generativeModel() *genai.GenerativeModel {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(g.temperature)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(DefaultSystemPrompt)},
	}
	return model
}

func (g *Gemini) SendRequest(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("llm").Start(ctx, "gemini.generate_content")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", g.model),
		attribute.Int("llm.prompt_chars", len(prompt)),
	)

	reply, err := g.guard.call(ctx, func() (string, error) {
		resp, err := g.generativeModel().GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", err
		}
		if resp.UsageMetadata != nil {
			span.SetAttributes(attribute.Int("llm.total_tokens", int(resp.UsageMetadata.TotalTokenCount)))
		}
		text := strings.TrimSpace(responseText(resp))
		if text == "" {
			return "", ErrEmptyResponse
		}
		return text, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("gemini: %w", err)
	}
	return reply, nil
}

func (g *Gemini) SendRequestStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, span := otel.Tracer("llm").Start(ctx, "gemini.generate_content_stream")
		defer span.End()
		span.SetAttributes(attribute.String("llm.model", g.model))

		release, err := g.guard.acquire(ctx)
		if err != nil {
			yield("", fmt.Errorf("gemini: %w", err))
			return
		}

		it := g.generativeModel().GenerateContentStream(ctx, genai.Text(prompt))
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				release(nil)
				return
			}
			if err != nil {
				release(err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				yield("", fmt.Errorf("gemini: %w", err))
				return
			}
			if text := responseText(resp); text != "" {
				if !yield(text, nil) {
					release(nil)
					return
				}
			}
		}
	}
}

func (g *Gemini) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, span := otel.Tracer("llm").Start(ctx, "gemini.embed_content")
	defer span.End()

	var vector []float32
	err := g.guard.do(ctx, func() error {
		resp, err := g.client.EmbeddingModel(g.embeddingModel).EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return err
		}
		if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return errors.New("no embedding returned")
		}
		vector = resp.Embedding.Values
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("gemini embeddings: %w", err)
	}
	span.SetAttributes(attribute.Int("llm.embedding_dims", len(vector)))
	return vector, nil
}

// responseText concatenates the text parts of every candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return sb.String()
}
