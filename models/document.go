package models

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// DocumentMetadata mirrors the nested "metadata" object stored alongside
// every indexed document.
type DocumentMetadata struct {
	Title   string `json:"title"`
	Created string `json:"created"`
	Updated string `json:"updated"`
	Creator string `json:"creator"`
	Source  string `json:"source"`
	Section string `json:"section"`
	URL     string `json:"url"`
}

// UnmarshalJSON accepts any JSON scalar per field. Indexes written by
// different ingesters store dates as epoch numbers as often as strings.
func (m *DocumentMetadata) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = DocumentMetadata{}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	*m = DocumentMetadata{
		Title:   metadataValue(raw["title"]),
		Created: metadataValue(raw["created"]),
		Updated: metadataValue(raw["updated"]),
		Creator: metadataValue(raw["creator"]),
		Source:  metadataValue(raw["source"]),
		Section: metadataValue(raw["section"]),
		URL:     metadataValue(raw["url"]),
	}
	return nil
}

func metadataValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}

// RetrievedDocument is a single search hit after hybrid score fusion.
type RetrievedDocument struct {
	ID       string           `json:"id"`
	Content  string           `json:"content"`
	Metadata DocumentMetadata `json:"metadata"`

	// Score is the raw score reported by the backend query that produced the hit.
	Score float64 `json:"score"`
	// RelevanceScore is the weighted vector/lexical score used for ranking.
	RelevanceScore float64 `json:"final_score"`
}

// DedupKey identifies logically identical documents indexed more than once.
func (d RetrievedDocument) DedupKey() [2]string {
	return [2]string{d.Metadata.Title, d.Metadata.Created}
}

// DocumentChunk is a group of documents that fits one model request.
type DocumentChunk []RetrievedDocument
