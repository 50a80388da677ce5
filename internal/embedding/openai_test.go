package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/docsage/docsage/internal/apperr"
	"github.com/docsage/docsage/internal/models"
)

type embeddingsRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

func fakeEmbeddingsServer(t *testing.T, dims int, failFirst *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failFirst != nil && atomic.AddInt32(failFirst, -1) >= 0 {
			http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusInternalServerError)
			return
		}
		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			vec := make([]float32, dims)
			vec[0] = 1
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": vec}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	}))
}

func newTestEmbedder(t *testing.T, baseURL string, dims int) *OpenAIEmbedder {
	t.Helper()
	e, err := NewOpenAIEmbedder(OpenAIConfig{
		BaseURL:     baseURL + "/v1",
		APIKey:      "test-key",
		Dimensions:  dims,
		BatchSize:   2,
		MaxRetries:  3,
		BatchDelay:  time.Millisecond,
		BaseBackoff: time.Millisecond,
	}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestEmbedChunks_AllChunksGetVectors(t *testing.T) {
	srv := fakeEmbeddingsServer(t, 4, nil)
	defer srv.Close()
	e := newTestEmbedder(t, srv.URL, 4)

	chunks := []models.Chunk{
		{ID: "doc:1:0", Text: "first"},
		{ID: "doc:1:1", Text: "second"},
		{ID: "doc:2:0", Text: "third"},
	}
	got, err := e.EmbedChunks(context.Background(), chunks)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 embedded chunks, got %d", len(got))
	}
	for i, ec := range got {
		if ec.ID != chunks[i].ID {
			t.Errorf("chunk %d: id %q, want %q", i, ec.ID, chunks[i].ID)
		}
		if len(ec.Vector) != 4 {
			t.Errorf("chunk %d: vector length %d", i, len(ec.Vector))
		}
	}
}

func TestEmbedChunks_RetriesServerErrors(t *testing.T) {
	var failures int32 = 2
	srv := fakeEmbeddingsServer(t, 4, &failures)
	defer srv.Close()
	e := newTestEmbedder(t, srv.URL, 4)

	_, err := e.EmbedChunks(context.Background(), []models.Chunk{{ID: "d:1:0", Text: "x"}})
	if err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
}

func TestEmbedChunks_GivesUpAfterMaxRetries(t *testing.T) {
	var failures int32 = 100
	srv := fakeEmbeddingsServer(t, 4, &failures)
	defer srv.Close()
	e := newTestEmbedder(t, srv.URL, 4)

	_, err := e.EmbedChunks(context.Background(), []models.Chunk{{ID: "d:1:0", Text: "x"}})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if apperr.CodeOf(err) != "EMBEDDING_ERROR" {
		t.Errorf("code: %s", apperr.CodeOf(err))
	}
}

func TestEmbedQuery_RejectsEmptyText(t *testing.T) {
	srv := fakeEmbeddingsServer(t, 4, nil)
	defer srv.Close()
	e := newTestEmbedder(t, srv.URL, 4)

	for _, q := range []string{"", "   ", "\n\t"} {
		if _, err := e.EmbedQuery(context.Background(), q); err == nil {
			t.Errorf("query %q: expected error", q)
		} else if !apperr.IsKind(err, apperr.InvalidInput) {
			t.Errorf("query %q: kind not InvalidInput: %v", q, err)
		}
	}
}

func TestEmbedQuery_ReturnsVector(t *testing.T) {
	srv := fakeEmbeddingsServer(t, 6, nil)
	defer srv.Close()
	e := newTestEmbedder(t, srv.URL, 6)

	vec, err := e.EmbedQuery(context.Background(), "what is the refund policy")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 6 {
		t.Errorf("vector length %d, want 6", len(vec))
	}
}

func TestEmbedChunks_RejectsMismatchedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Always one embedding regardless of input size.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": []float32{1, 0}},
			},
		})
	}))
	defer srv.Close()
	e := newTestEmbedder(t, srv.URL, 2)

	_, err := e.EmbedChunks(context.Background(), []models.Chunk{
		{ID: "d:1:0", Text: "a"}, {ID: "d:1:1", Text: "b"},
	})
	if err == nil {
		t.Fatal("expected error for mismatched embedding count")
	}
}

func TestNewOpenAIEmbedder_RequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAIEmbedder(OpenAIConfig{}, zap.NewNop()); err == nil {
		t.Error("expected error without API key")
	}
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder(8)
	a, err := m.EmbedQuery(context.Background(), "refund policy")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := m.EmbedQuery(context.Background(), "refund policy")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d", i)
		}
	}
}
