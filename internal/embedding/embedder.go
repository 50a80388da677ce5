// Package embedding converts text to fixed-dimension vectors via a remote API.
package embedding

import (
	"context"

	"github.com/docsage/docsage/internal/models"
)

// Embedder produces vector embeddings for chunks and query text.
type Embedder interface {
	// EmbedChunks embeds every chunk, or fails as a whole: either all chunks
	// come back with a vector or none do.
	EmbedChunks(ctx context.Context, chunks []models.Chunk) ([]models.EmbeddedChunk, error)
	// EmbedQuery embeds a single query string. Empty or whitespace-only text
	// is rejected without a remote call.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimensions returns the vector dimensionality this embedder produces.
	Dimensions() int
}
