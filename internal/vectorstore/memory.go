package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/docsage/docsage/internal/models"
)

// Memory is an in-process Store used in tests and when no Qdrant instance is
// configured. Searches use cosine similarity over a flat scan.
type Memory struct {
	mu     sync.RWMutex
	dims   int
	points map[string]models.EmbeddedChunk
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{points: make(map[string]models.EmbeddedChunk)}
}

func (m *Memory) EnsureCollection(_ context.Context, dims int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dims == 0 {
		m.dims = dims
	}
	return nil
}

func (m *Memory) Upsert(_ context.Context, chunks []models.EmbeddedChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ec := range chunks {
		if err := validatePoint(ec, m.dims); err != nil {
			return err
		}
	}
	for _, ec := range chunks {
		m.points[ec.ID] = ec
	}
	return nil
}

func (m *Memory) Search(_ context.Context, vector []float32, topK int, docID string) ([]models.SearchResult, error) {
	if err := validateSearch(vector, topK); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]models.SearchResult, 0, len(m.points))
	for _, ec := range m.points {
		if docID != "" && ec.DocID != docID {
			continue
		}
		results = append(results, models.SearchResult{
			ID:         ec.ID,
			Score:      cosineSimilarity(vector, ec.Vector),
			Text:       ec.Text,
			DocID:      ec.DocID,
			Page:       ec.Page,
			ChunkIndex: ec.ChunkIndex,
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *Memory) DeleteByDoc(_ context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ec := range m.points {
		if ec.DocID == docID {
			delete(m.points, id)
		}
	}
	return nil
}

func (m *Memory) CountByDoc(_ context.Context, docID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, ec := range m.points {
		if ec.DocID == docID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Info(_ context.Context) (CollectionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return CollectionInfo{
		Name:       "memory",
		Points:     int64(len(m.points)),
		Dimensions: m.dims,
		Status:     "green",
	}, nil
}

func (m *Memory) Healthy(_ context.Context) bool { return true }

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
