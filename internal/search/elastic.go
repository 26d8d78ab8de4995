package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"

	"docs-answer-bot/models"
)

// Hit is one raw document returned by a backend query.
type Hit struct {
	ID     string
	Score  float64
	Source Source
}

// Source is the stored body of an indexed document.
type Source struct {
	Text     string                  `json:"text"`
	Metadata models.DocumentMetadata `json:"metadata"`
}

// Backend runs the two halves of a hybrid query against the document index.
type Backend interface {
	VectorSearch(ctx context.Context, vector []float32, k int) ([]Hit, error)
	LexicalSearch(ctx context.Context, query string, k int) ([]Hit, error)
	Ping(ctx context.Context) error
}

type ElasticConfig struct {
	Address  string
	Username string
	Password string
	Index    string
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Elastic is a Backend on top of an Elasticsearch index.
type Elastic struct {
	client *elasticsearch.Client
	index  string
}

var _ Backend = (*Elastic)(nil)

func NewElastic(cfg ElasticConfig) (*Elastic, error) {
	if cfg.Index == "" {
		cfg.Index = "aitrics"
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Address},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	return &Elastic{client: client, index: cfg.Index}, nil
}

func (e *Elastic) VectorSearch(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	return e.search(ctx, vectorQuery(vector, k))
}

func (e *Elastic) LexicalSearch(ctx context.Context, query string, k int) ([]Hit, error) {
	return e.search(ctx, lexicalQuery(query, k))
}

func (e *Elastic) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping elasticsearch: %s", res.Status())
	}
	return nil
}

// EnsureIndex creates the index with a dense_vector mapping of the given
// width unless it already exists. It reports whether it created it.
func (e *Elastic) EnsureIndex(ctx context.Context, dims int) (bool, error) {
	if dims <= 0 {
		return false, fmt.Errorf("vector dims must be positive, got %d", dims)
	}

	res, err := e.client.Indices.Exists([]string{e.index}, e.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", e.index, err)
	}
	res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return false, nil
	case http.StatusNotFound:
	default:
		return false, fmt.Errorf("check index %s: %s", e.index, res.Status())
	}

	payload, err := json.Marshal(indexMapping(dims))
	if err != nil {
		return false, fmt.Errorf("marshal mapping: %w", err)
	}
	res, err = e.client.Indices.Create(e.index,
		e.client.Indices.Create.WithContext(ctx),
		e.client.Indices.Create.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return false, fmt.Errorf("create index %s: %w", e.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return false, fmt.Errorf("create index %s: status %d: %s", e.index, res.StatusCode, string(raw))
	}
	return true, nil
}

// Count returns the number of documents in the index.
func (e *Elastic) Count(ctx context.Context) (int64, error) {
	res, err := e.client.Count(
		e.client.Count.WithContext(ctx),
		e.client.Count.WithIndex(e.index),
	)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", e.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, fmt.Errorf("count %s: %s", e.index, res.Status())
	}

	var parsed struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	return parsed.Count, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string  `json:"_id"`
			Score  float64 `json:"_score"`
			Source Source  `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (e *Elastic) search(ctx context.Context, body map[string]any) ([]Hit, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.index),
		e.client.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", e.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search %s: status %d: %s", e.index, res.StatusCode, string(raw))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, Hit{ID: h.ID, Score: h.Score, Source: h.Source})
	}
	return hits, nil
}
