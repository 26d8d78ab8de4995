package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"docs-answer-bot/internal/telemetry"
)

const ProviderChatGPT = "CHATGPT"

// ChatGPTConfig configures the OpenAI chat completions adapter.
type ChatGPTConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	EmbeddingModel    string
	Temperature       float64
	RequestsPerMinute int
	HTTPClient        *http.Client
}

// ChatGPT talks to the OpenAI REST API.
type ChatGPT struct {
	apiKey         string
	baseURL        string
	model          string
	embeddingModel string
	temperature    float64
	client         *http.Client
	guard          *guard
}

var _ Model = (*ChatGPT)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *apiError `json:"error,omitempty"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

func NewChatGPT(cfg ChatGPTConfig, metrics *telemetry.Metrics) (*ChatGPT, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("chatgpt: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-ada-002"
	}
	if cfg.HTTPClient == nil {
		// deadlines come from the caller's context; streams can run long
		cfg.HTTPClient = &http.Client{}
	}

	return &ChatGPT{
		apiKey:         cfg.APIKey,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		temperature:    cfg.Temperature,
		client:         cfg.HTTPClient,
		guard:          newGuard("ChatGPT", cfg.RequestsPerMinute, metrics),
	}, nil
}

func (c *ChatGPT) Provider() string { return ProviderChatGPT }

func (c *ChatGPT) Close() error { return nil }

func (c *ChatGPT) SendRequest(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("llm").Start(ctx, "chatgpt.send_request")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", c.model),
		attribute.Int("llm.prompt_chars", len(prompt)),
	)

	reply, err := c.guard.call(ctx, func() (string, error) {
		resp, err := c.post(ctx, "/chat/completions", c.newChatRequest(prompt, false))
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("read response: %w", err)
		}

		var chatResp chatResponse
		if err := json.Unmarshal(body, &chatResp); err != nil {
			return "", fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
		}
		if chatResp.Error != nil {
			return "", fmt.Errorf("openai error: %s", chatResp.Error.Message)
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("openai error (status %d): %s", resp.StatusCode, string(body))
		}
		if len(chatResp.Choices) == 0 {
			return "", ErrEmptyResponse
		}
		span.SetAttributes(attribute.Int("llm.total_tokens", chatResp.Usage.TotalTokens))
		return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("chatgpt: %w", err)
	}
	return reply, nil
}

func (c *ChatGPT) SendRequestStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, span := otel.Tracer("llm").Start(ctx, "chatgpt.send_request_stream")
		defer span.End()
		span.SetAttributes(attribute.String("llm.model", c.model))

		release, err := c.guard.acquire(ctx)
		if err != nil {
			yield("", fmt.Errorf("chatgpt: %w", err))
			return
		}
		err = c.stream(ctx, prompt, yield)
		if errors.Is(err, errStopped) {
			release(nil)
			return
		}
		release(err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield("", fmt.Errorf("chatgpt: %w", err))
		}
	}
}

// errStopped marks a stream abandoned by its consumer.
var errStopped = errors.New("stream stopped by consumer")

func (c *ChatGPT) stream(ctx context.Context, prompt string, yield func(string, error) bool) error {
	resp, err := c.post(ctx, "/chat/completions", c.newChatRequest(prompt, true))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("openai error (status %d): %s", resp.StatusCode, string(raw))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return nil
		}

		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Skip malformed JSON chunks
			continue
		}
		if chunk.Error != nil {
			return fmt.Errorf("openai error: %s", chunk.Error.Message)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if text := chunk.Choices[0].Delta.Content; text != "" {
			if !yield(text, nil) {
				return errStopped
			}
		}
		if chunk.Choices[0].FinishReason != "" {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}

func (c *ChatGPT) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, span := otel.Tracer("llm").Start(ctx, "chatgpt.embed_query")
	defer span.End()

	var vector []float32
	err := c.guard.do(ctx, func() error {
		var err error
		vector, err = c.embed(ctx, text)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("chatgpt embeddings: %w", err)
	}
	span.SetAttributes(attribute.Int("llm.embedding_dims", len(vector)))
	return vector, nil
}

func (c *ChatGPT) embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.post(ctx, "/embeddings", embeddingRequest{Model: c.embeddingModel, Input: []string{text}})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if embResp.Error != nil {
		return nil, fmt.Errorf("openai error: %s", embResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	if len(embResp.Data) == 0 || len(embResp.Data[0].Embedding) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return embResp.Data[0].Embedding, nil
}

func (c *ChatGPT) newChatRequest(prompt string, stream bool) chatRequest {
	return chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
		Stream:      stream,
	}
}

func (c *ChatGPT) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	return resp, nil
}
