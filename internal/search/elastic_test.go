package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeElastic(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, body map[string]any)) *Elastic {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		handler(w, r, body)
	}))
	t.Cleanup(server.Close)

	es, err := NewElastic(ElasticConfig{Address: server.URL, Index: "docs"})
	require.NoError(t, err)
	return es
}

const searchBody = `{"hits":{"hits":[
	{"_id":"d1","_score":1.7,"_source":{"text":"사내 보안 정책","metadata":{"title":"보안","created":"2024-02-01","url":"https://wiki/1"}}},
	{"_id":"d2","_score":1.2,"_source":{"text":"VPN 가이드","metadata":{"title":"VPN"}}}
]}}`

func TestElastic_VectorSearch(t *testing.T) {
	es := newFakeElastic(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		assert.Equal(t, "/docs/_search", r.URL.Path)
		assert.EqualValues(t, 3, body["size"])
		script := body["query"].(map[string]any)["script_score"].(map[string]any)["script"].(map[string]any)
		assert.Equal(t, cosineScript, script["source"])
		assert.Len(t, script["params"].(map[string]any)["query_vector"], 2)
		_, _ = w.Write([]byte(searchBody))
	})

	hits, err := es.VectorSearch(context.Background(), []float32{0.5, 0.25}, 3)

	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "d1", hits[0].ID)
	assert.Equal(t, 1.7, hits[0].Score)
	assert.Equal(t, "사내 보안 정책", hits[0].Source.Text)
	assert.Equal(t, "https://wiki/1", hits[0].Source.Metadata.URL)
}

func TestElastic_LexicalSearch(t *testing.T) {
	es := newFakeElastic(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		mm := body["query"].(map[string]any)["multi_match"].(map[string]any)
		assert.Equal(t, "보안 정책", mm["query"])
		assert.Equal(t, "best_fields", mm["type"])
		assert.Equal(t, []any{"text", "metadata.title^3"}, mm["fields"])
		_, _ = w.Write([]byte(searchBody))
	})

	hits, err := es.LexicalSearch(context.Background(), "보안 정책", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestElastic_SearchErrorStatus(t *testing.T) {
	es := newFakeElastic(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception"},"status":404}`))
	})

	_, err := es.LexicalSearch(context.Background(), "q", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index_not_found_exception")
}

func TestElastic_Ping(t *testing.T) {
	es := newFakeElastic(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusOK)
	})
	assert.NoError(t, es.Ping(context.Background()))
}

func TestElastic_EnsureIndex_Creates(t *testing.T) {
	var created map[string]any
	es := newFakeElastic(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			assert.Equal(t, "/docs", r.URL.Path)
			created = body
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})

	ok, err := es.EnsureIndex(context.Background(), 768)
	require.NoError(t, err)
	assert.True(t, ok)

	props := created["mappings"].(map[string]any)["properties"].(map[string]any)
	vector := props["vector"].(map[string]any)
	assert.Equal(t, "dense_vector", vector["type"])
	assert.EqualValues(t, 768, vector["dims"])
}

func TestElastic_EnsureIndex_Exists(t *testing.T) {
	es := newFakeElastic(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusOK)
	})

	ok, err := es.EnsureIndex(context.Background(), 768)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = es.EnsureIndex(context.Background(), 0)
	assert.Error(t, err)
}

func TestElastic_Count(t *testing.T) {
	es := newFakeElastic(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		assert.Equal(t, "/docs/_count", r.URL.Path)
		_, _ = w.Write([]byte(`{"count":42}`))
	})

	n, err := es.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 42, n)
}

func TestElastic_SearchLooseMetadataTypes(t *testing.T) {
	es := newFakeElastic(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		_, _ = w.Write([]byte(`{"hits":{"hits":[
			{"_id":"d1","_score":2.0,"_source":{"text":"epoch","metadata":{"title":"A","created":1700000000,"updated":null,"section":["x","y"]}}},
			{"_id":"d2","_score":1.0,"_source":{"text":"no metadata","metadata":null}}
		]}}`))
	})

	hits, err := es.LexicalSearch(context.Background(), "q", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	meta := hits[0].Source.Metadata
	assert.Equal(t, "A", meta.Title)
	assert.Equal(t, "1700000000", meta.Created)
	assert.Empty(t, meta.Updated)
	assert.Equal(t, `["x","y"]`, meta.Section)
	assert.Empty(t, hits[1].Source.Metadata.Title)
}
