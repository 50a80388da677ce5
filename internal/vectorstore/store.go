// Package vectorstore persists embedded chunks and serves similarity search.
package vectorstore

import (
	"context"

	"github.com/docsage/docsage/internal/models"
)

// CollectionInfo describes the state of the backing collection.
type CollectionInfo struct {
	Name       string `json:"name"`
	Points     int64  `json:"points"`
	Dimensions int    `json:"dimensions"`
	Status     string `json:"status"`
}

// Store is a vector database holding embedded chunks.
type Store interface {
	// EnsureCollection creates the collection if missing. An existing
	// collection with different dimensions is left alone; implementations
	// log a warning rather than fail.
	EnsureCollection(ctx context.Context, dims int) error
	// Upsert writes embedded chunks, replacing any points with the same IDs.
	Upsert(ctx context.Context, chunks []models.EmbeddedChunk) error
	// Search returns the topK most similar chunks, optionally restricted to
	// one document, ordered by descending score.
	Search(ctx context.Context, vector []float32, topK int, docID string) ([]models.SearchResult, error)
	// DeleteByDoc removes every chunk belonging to a document.
	DeleteByDoc(ctx context.Context, docID string) error
	// CountByDoc returns how many chunks a document has stored.
	CountByDoc(ctx context.Context, docID string) (int64, error)
	// Info reports collection statistics.
	Info(ctx context.Context) (CollectionInfo, error)
	// Healthy reports whether the backend is reachable.
	Healthy(ctx context.Context) bool
}
