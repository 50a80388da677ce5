// Package models defines core data structures for chunks, search hits, and answers.
package models

// Chunk is a bounded span of one page's text, the unit of embedding and retrieval.
// Immutable after creation.
type Chunk struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	DocID      string `json:"doc_id"`
	Page       int    `json:"page"`
	ChunkIndex int    `json:"chunk_index"`
}

// EmbeddedChunk is a chunk with its embedding vector attached.
// The vector length must equal the configured collection dimensionality.
type EmbeddedChunk struct {
	Chunk
	Vector []float32 `json:"-"`
}

// SearchResult is one nearest-neighbor hit from the vector store,
// with the chunk payload flattened in. Ephemeral, never persisted.
type SearchResult struct {
	ID         string  `json:"id"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
	DocID      string  `json:"doc_id"`
	Page       int     `json:"page"`
	ChunkIndex int     `json:"chunk_index"`
}

// Source identifies a document page that contributed to an answer.
type Source struct {
	DocID     string  `json:"doc_id"`
	Page      int     `json:"page"`
	Relevance float64 `json:"relevanceScore"`
}

// Answer is the generated response to a query.
type Answer struct {
	Text       string   `json:"text"`
	Sources    []Source `json:"sources"`
	Confidence float64  `json:"confidence"`
}
