package embedding

import (
	"context"
	"math"
	"strings"

	"github.com/docsage/docsage/internal/apperr"
	"github.com/docsage/docsage/internal/models"
	"github.com/docsage/docsage/pkg/utils"
)

// MockEmbedder produces deterministic pseudo-embeddings for tests. The same
// text always maps to the same vector, and similar texts land near each other
// because the hash is seeded per word.
type MockEmbedder struct {
	dims int
	// FailWith, when set, is returned from every call.
	FailWith error
}

// NewMockEmbedder creates a mock embedder with the given dimensionality.
func NewMockEmbedder(dims int) *MockEmbedder {
	if dims <= 0 {
		dims = 8
	}
	return &MockEmbedder{dims: dims}
}

func (m *MockEmbedder) Dimensions() int { return m.dims }

func (m *MockEmbedder) EmbedChunks(_ context.Context, chunks []models.Chunk) ([]models.EmbeddedChunk, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	out := make([]models.EmbeddedChunk, len(chunks))
	for i, ch := range chunks {
		out[i] = models.EmbeddedChunk{Chunk: ch, Vector: m.vectorFor(ch.Text)}
	}
	return out, nil
}

func (m *MockEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperr.New(apperr.InvalidInput, "INVALID_INPUT", "cannot embed empty text")
	}
	return m.vectorFor(text), nil
}

func (m *MockEmbedder) vectorFor(text string) []float32 {
	vec := make([]float64, m.dims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		var h uint32 = 2166136261
		for _, c := range word {
			h ^= uint32(c)
			h *= 16777619
		}
		for d := 0; d < m.dims; d++ {
			vec[d] += math.Sin(float64(h) + float64(d))
		}
	}
	out := make([]float32, m.dims)
	allZero := true
	for d, v := range vec {
		out[d] = float32(v)
		if v != 0 {
			allZero = false
		}
	}
	if allZero {
		out[0] = 1
		return out
	}
	utils.NormalizeL2(out)
	return out
}
