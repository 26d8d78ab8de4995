package search

// cosineScript shifts cosine similarity into [0, 2] since script_score rejects negative scores.
const cosineScript = "cosineSimilarity(params.query_vector, 'vector') + 1.0"

func vectorQuery(vector []float32, k int) map[string]any {
	return map[string]any{
		"size":    k,
		"_source": []string{"text", "metadata"},
		"query": map[string]any{
			"script_score": map[string]any{
				"query": map[string]any{"match_all": map[string]any{}},
				"script": map[string]any{
					"source": cosineScript,
					"params": map[string]any{"query_vector": vector},
				},
			},
		},
	}
}

func lexicalQuery(text string, k int) map[string]any {
	return map[string]any{
		"size":    k,
		"_source": []string{"text", "metadata"},
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  text,
				"fields": []string{"text", "metadata.title^3"},
				"type":   "best_fields",
			},
		},
	}
}

// indexMapping matches the fields the queries above read.
func indexMapping(dims int) map[string]any {
	return map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"text":   map[string]any{"type": "text"},
				"vector": map[string]any{"type": "dense_vector", "dims": dims},
				"metadata": map[string]any{
					"properties": map[string]any{
						"title": map[string]any{"type": "text"},
						"url":   map[string]any{"type": "keyword"},
					},
				},
			},
		},
	}
}
