package search

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docs-answer-bot/models"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return f.vector, f.err
}

type fakeBackend struct {
	mu         sync.Mutex
	vector     []Hit
	lexical    []Hit
	vectorErr  error
	lexicalErr error
	gotK       []int
	gotQuery   string
}

func (f *fakeBackend) VectorSearch(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotK = append(f.gotK, k)
	return f.vector, f.vectorErr
}

func (f *fakeBackend) LexicalSearch(ctx context.Context, query string, k int) ([]Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotK = append(f.gotK, k)
	f.gotQuery = query
	return f.lexical, f.lexicalErr
}

func (f *fakeBackend) Ping(ctx context.Context) error { return nil }

func hit(id string, score float64, title, created string) Hit {
	return Hit{
		ID:    id,
		Score: score,
		Source: Source{
			Text:     "body of " + id,
			Metadata: models.DocumentMetadata{Title: title, Created: created},
		},
	}
}

func TestFuse_DocumentInBothListsBeatsSingleSource(t *testing.T) {
	vector := []Hit{hit("both", 1.0, "A", "1"), hit("vec-only", 1.0, "B", "1")}
	lexical := []Hit{hit("both", 1.0, "A", "1"), hit("lex-only", 1.0, "C", "1")}

	docs := Fuse(vector, lexical, 0.5, 10)

	require.Len(t, docs, 3)
	assert.Equal(t, "both", docs[0].ID)
	assert.InDelta(t, 1.0, docs[0].RelevanceScore, 1e-9)
	assert.InDelta(t, 0.5, docs[1].RelevanceScore, 1e-9)
	assert.Equal(t, "vec-only", docs[1].ID, "ties keep vector results first")
	assert.Equal(t, "lex-only", docs[2].ID)
}

func TestFuse_WeightedScores(t *testing.T) {
	vector := []Hit{hit("a", 1.8, "A", "")}
	lexical := []Hit{hit("a", 10, "A", ""), hit("b", 12, "B", "")}

	docs := Fuse(vector, lexical, 0.3, 10)

	require.Len(t, docs, 2)
	assert.Equal(t, "b", docs[0].ID)
	assert.InDelta(t, 12*0.7, docs[0].RelevanceScore, 1e-9)
	assert.InDelta(t, 1.8*0.3+10*0.7, docs[1].RelevanceScore, 1e-9)
	assert.Equal(t, 1.8, docs[1].Score, "raw score comes from the first hit seen")
}

func TestFuse_TruncatesToKBeforeDedup(t *testing.T) {
	vector := []Hit{
		hit("1", 5, "Same", "2024-01-01"),
		hit("2", 4, "Same", "2024-01-01"),
		hit("3", 3, "Other", "2024-01-01"),
		hit("4", 2, "Fourth", ""),
	}

	docs := Fuse(vector, nil, 1, 3)

	require.Len(t, docs, 2)
	assert.Equal(t, "1", docs[0].ID, "first occurrence of a duplicate wins")
	assert.Equal(t, "3", docs[1].ID)
}

func TestFuse_SameTitleDifferentCreatedAreDistinct(t *testing.T) {
	docs := Fuse([]Hit{hit("1", 2, "T", "2023"), hit("2", 1, "T", "2024")}, nil, 0.5, 10)
	assert.Len(t, docs, 2)
}

func TestFuse_Empty(t *testing.T) {
	assert.Empty(t, Fuse(nil, nil, 0.5, 10))
}

func TestRetriever_Search(t *testing.T) {
	backend := &fakeBackend{
		vector:  []Hit{hit("a", 1.9, "A", "x")},
		lexical: []Hit{hit("b", 4.0, "B", "y"), hit("a", 2.0, "A", "x")},
	}
	r := NewRetriever(backend, fakeEmbedder{vector: []float32{0.1, 0.2}}, 0.5, nil)

	docs, err := r.Search(context.Background(), "사이버 보안", 5)

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "b", docs[0].ID)
	assert.Equal(t, "a", docs[1].ID)
	assert.Equal(t, "사이버 보안", backend.gotQuery)
	assert.Equal(t, []int{5, 5}, backend.gotK)
}

func TestRetriever_SearchErrors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name     string
		backend  *fakeBackend
		embedder fakeEmbedder
		wantErr  error
	}{
		{"embedding fails", &fakeBackend{}, fakeEmbedder{err: boom}, boom},
		{"empty embedding", &fakeBackend{}, fakeEmbedder{}, ErrEmptyEmbedding},
		{"vector query fails", &fakeBackend{vectorErr: boom}, fakeEmbedder{vector: []float32{1}}, boom},
		{"lexical query fails", &fakeBackend{lexicalErr: boom}, fakeEmbedder{vector: []float32{1}}, boom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRetriever(tt.backend, tt.embedder, 0.5, nil)
			docs, err := r.Search(context.Background(), "q", 10)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, docs)
		})
	}
}

func TestNewRetriever_ClampsWeight(t *testing.T) {
	r := NewRetriever(&fakeBackend{}, fakeEmbedder{}, 1.5, nil)
	assert.Equal(t, DefaultVectorWeight, r.vectorWeight)
}
