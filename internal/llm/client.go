// Package llm provides the model capabilities the answer pipeline depends on:
// text completion, streaming completion and query embedding. One adapter
// exists per hosted provider and is selected once at startup by NewModel.
package llm

import (
	"context"
	"errors"
	"io"
	"iter"
)

// DefaultSystemPrompt is sent to providers that accept a system instruction.
const DefaultSystemPrompt = "You are a helpful assistant."

var (
	// ErrEmptyResponse is returned when the provider answered without any text.
	ErrEmptyResponse = errors.New("empty response from model")
	// ErrUnavailable is returned while the provider circuit breaker is open.
	ErrUnavailable = errors.New("model provider temporarily unavailable")
)

// Client sends prompts to a hosted model.
type Client interface {
	// SendRequest returns the complete, whitespace-trimmed reply.
	SendRequest(ctx context.Context, prompt string) (string, error)
	// SendRequestStream yields reply fragments as they arrive. The sequence is
	// finite and can be ranged over once; a non-nil error ends it.
	SendRequestStream(ctx context.Context, prompt string) iter.Seq2[string, error]
	// Provider names the backing service, e.g. "CHATGPT".
	Provider() string
}

// Embedder turns a search query into the vector stored in the search index.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Model bundles the capabilities a provider adapter offers.
type Model interface {
	Client
	Embedder
	io.Closer
}
