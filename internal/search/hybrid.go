// Package search retrieves documents by fusing vector and lexical queries
// against the document index.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"docs-answer-bot/internal/llm"
	"docs-answer-bot/internal/logger"
	"docs-answer-bot/internal/telemetry"
	"docs-answer-bot/models"
)

const DefaultVectorWeight = 0.5

var ErrEmptyEmbedding = errors.New("empty query embedding")

// Retriever runs hybrid search: one embedding-based query and one keyword
// query, merged by weighted score.
type Retriever struct {
	backend      Backend
	embedder     llm.Embedder
	vectorWeight float64
	metrics      *telemetry.Metrics
}

func NewRetriever(backend Backend, embedder llm.Embedder, vectorWeight float64, metrics *telemetry.Metrics) *Retriever {
	if vectorWeight < 0 || vectorWeight > 1 {
		logger.Warn("Vector weight out of range, using default", "vector_weight", vectorWeight)
		vectorWeight = DefaultVectorWeight
	}
	return &Retriever{
		backend:      backend,
		embedder:     embedder,
		vectorWeight: vectorWeight,
		metrics:      metrics,
	}
}

// Search returns at most k documents ordered by fused relevance, with
// duplicates of the same (title, created) pair removed.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]models.RetrievedDocument, error) {
	ctx, span := otel.Tracer("search").Start(ctx, "search.hybrid")
	defer span.End()
	span.SetAttributes(attribute.Int("search.k", k), attribute.Float64("search.vector_weight", r.vectorWeight))

	start := time.Now()
	docs, err := r.search(ctx, query, k)
	r.metrics.RecordRetrieval(time.Since(start).Seconds(), err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("Hybrid search failed", "error", err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("search.results", len(docs)))
	return docs, nil
}

func (r *Retriever) search(ctx context.Context, query string, k int) ([]models.RetrievedDocument, error) {
	if k <= 0 {
		return nil, nil
	}

	var vectorHits, lexicalHits []Hit
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		vector, err := r.embedder.EmbedQuery(gctx, query)
		if err != nil {
			return fmt.Errorf("embed query: %w", err)
		}
		if len(vector) == 0 {
			return ErrEmptyEmbedding
		}
		hits, err := r.backend.VectorSearch(gctx, vector, k)
		if err != nil {
			return fmt.Errorf("vector search: %w", err)
		}
		vectorHits = hits
		return nil
	})

	g.Go(func() error {
		hits, err := r.backend.LexicalSearch(gctx, query, k)
		if err != nil {
			return fmt.Errorf("lexical search: %w", err)
		}
		lexicalHits = hits
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Fuse(vectorHits, lexicalHits, r.vectorWeight, k), nil
}

// Ping checks that the backend answers.
func (r *Retriever) Ping(ctx context.Context) error {
	return r.backend.Ping(ctx)
}

type candidate struct {
	hit   Hit
	score float64
}

// Fuse combines two ranked hit lists into one. A document's relevance is
// vector·w + lexical·(1−w); a list it is missing from contributes zero.
// Ties keep first-seen order, vector hits first.
func Fuse(vectorHits, lexicalHits []Hit, vectorWeight float64, k int) []models.RetrievedDocument {
	byID := make(map[string]*candidate, len(vectorHits)+len(lexicalHits))
	var ordered []*candidate

	add := func(hit Hit, score float64) {
		if c, ok := byID[hit.ID]; ok {
			c.score += score
			return
		}
		c := &candidate{hit: hit, score: score}
		byID[hit.ID] = c
		ordered = append(ordered, c)
	}

	for _, hit := range vectorHits {
		add(hit, hit.Score*vectorWeight)
	}
	for _, hit := range lexicalHits {
		add(hit, hit.Score*(1-vectorWeight))
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].score > ordered[j].score
	})
	if len(ordered) > k {
		ordered = ordered[:k]
	}

	seen := make(map[[2]string]struct{}, len(ordered))
	docs := make([]models.RetrievedDocument, 0, len(ordered))
	for _, c := range ordered {
		doc := models.RetrievedDocument{
			ID:             c.hit.ID,
			Content:        c.hit.Source.Text,
			Metadata:       c.hit.Source.Metadata,
			Score:          c.hit.Score,
			RelevanceScore: c.score,
		}
		key := doc.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		docs = append(docs, doc)
	}
	return docs
}
