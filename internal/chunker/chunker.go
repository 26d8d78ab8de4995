// Package chunker groups retrieved documents into batches that fit a single
// model request.
package chunker

import (
	"strings"

	"docs-answer-bot/models"
)

// WordCount approximates token usage by counting whitespace separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Split packs docs greedily, in order, into chunks whose combined word count
// stays within maxTokens. A document larger than the budget on its own still
// gets a chunk of its own.
func Split(docs []models.RetrievedDocument, maxTokens int) []models.DocumentChunk {
	var chunks []models.DocumentChunk
	var current models.DocumentChunk
	currentTokens := 0

	for _, doc := range docs {
		tokens := WordCount(doc.Content)

		if currentTokens+tokens > maxTokens && len(current) > 0 {
			chunks = append(chunks, current)
			current = nil
			currentTokens = 0
		}

		current = append(current, doc)
		currentTokens += tokens
	}

	if len(current) > 0 {
		chunks = append(chunks, current)
	}

	return chunks
}
