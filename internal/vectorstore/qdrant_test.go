package vectorstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/docsage/docsage/internal/apperr"
	"github.com/docsage/docsage/internal/models"
)

// fakeQdrant implements enough of the Qdrant REST API to exercise the client.
type fakeQdrant struct {
	mu          sync.Mutex
	collections map[string]int
	points      map[string]map[string]any
	apiKeys     []string
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{
		collections: make(map[string]int),
		points:      make(map[string]map[string]any),
	}
}

func (f *fakeQdrant) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/collections/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))

		rest := strings.TrimPrefix(r.URL.Path, "/collections/")
		parts := strings.SplitN(rest, "/", 3)
		name := parts[0]

		switch {
		case len(parts) == 1 && r.Method == http.MethodGet:
			size, ok := f.collections[name]
			if !ok {
				http.Error(w, `{"status":{"error":"not found"}}`, http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"result": map[string]any{
					"status":       "green",
					"points_count": len(f.points),
					"config": map[string]any{
						"params": map[string]any{"vectors": map[string]any{"size": size}},
					},
				},
				"status": "ok",
			})
		case len(parts) == 1 && r.Method == http.MethodPut:
			var body struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.collections[name] = body.Vectors.Size
			_ = json.NewEncoder(w).Encode(map[string]any{"result": true, "status": "ok"})
		case len(parts) >= 2 && parts[1] == "points" && r.Method == http.MethodPut:
			var body struct {
				Points []map[string]any `json:"points"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			for _, p := range body.Points {
				f.points[p["id"].(string)] = p
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"status": "completed"}})
		case strings.HasSuffix(r.URL.Path, "/points/search"):
			var out []map[string]any
			for _, p := range f.points {
				out = append(out, map[string]any{"score": 0.9, "payload": p["payload"]})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"result": out})
		case strings.HasSuffix(r.URL.Path, "/points/delete"):
			var body struct {
				Filter struct {
					Must []struct {
						Match struct {
							Value string `json:"value"`
						} `json:"match"`
					} `json:"must"`
				} `json:"filter"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			doc := body.Filter.Must[0].Match.Value
			for id, p := range f.points {
				payload := p["payload"].(map[string]any)
				if payload["doc_id"] == doc {
					delete(f.points, id)
				}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"status": "completed"}})
		case strings.HasSuffix(r.URL.Path, "/points/count"):
			var body struct {
				Filter struct {
					Must []struct {
						Match struct {
							Value string `json:"value"`
						} `json:"match"`
					} `json:"must"`
				} `json:"filter"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			doc := body.Filter.Must[0].Match.Value
			n := 0
			for _, p := range f.points {
				payload := p["payload"].(map[string]any)
				if payload["doc_id"] == doc {
					n++
				}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"count": n}})
		default:
			http.Error(w, "unhandled", http.StatusNotImplemented)
		}
	})
	return mux
}

func testChunk(id, doc string, vec []float32) models.EmbeddedChunk {
	return models.EmbeddedChunk{
		Chunk:  models.Chunk{ID: id, Text: "text for " + id, DocID: doc, Page: 1},
		Vector: vec,
	}
}

func TestQdrant_EnsureCollectionCreatesWhenMissing(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	q := NewQdrant(QdrantConfig{URL: srv.URL, Collection: "docs", APIKey: "secret"}, zap.NewNop())
	if err := q.EnsureCollection(context.Background(), 4); err != nil {
		t.Fatal(err)
	}
	if fake.collections["docs"] != 4 {
		t.Errorf("collection size: %d", fake.collections["docs"])
	}
	for _, k := range fake.apiKeys {
		if k != "secret" {
			t.Errorf("api-key header missing: %q", k)
		}
	}
	// Second call is a no-op.
	if err := q.EnsureCollection(context.Background(), 4); err != nil {
		t.Fatal(err)
	}
}

func TestQdrant_UpsertSearchDeleteCount(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()
	ctx := context.Background()

	q := NewQdrant(QdrantConfig{URL: srv.URL, Collection: "docs"}, zap.NewNop())
	if err := q.EnsureCollection(ctx, 3); err != nil {
		t.Fatal(err)
	}
	chunks := []models.EmbeddedChunk{
		testChunk("a:1:0", "a", []float32{1, 0, 0}),
		testChunk("a:1:1", "a", []float32{0, 1, 0}),
		testChunk("b:1:0", "b", []float32{0, 0, 1}),
	}
	if err := q.Upsert(ctx, chunks); err != nil {
		t.Fatal(err)
	}
	n, err := q.CountByDoc(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("count for a: %d", n)
	}

	results, err := q.Search(ctx, []float32{1, 0, 0}, 10, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Errorf("results: %d", len(results))
	}
	for _, r := range results {
		if r.ID == "" || r.DocID == "" || r.Text == "" {
			t.Errorf("payload fields not restored: %+v", r)
		}
	}

	if err := q.DeleteByDoc(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	n, _ = q.CountByDoc(ctx, "a")
	if n != 0 {
		t.Errorf("count after delete: %d", n)
	}
	n, _ = q.CountByDoc(ctx, "b")
	if n != 1 {
		t.Errorf("other doc affected: %d", n)
	}
}

func TestQdrant_UpsertRejectsBadPointsBeforeWriting(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()
	ctx := context.Background()

	q := NewQdrant(QdrantConfig{URL: srv.URL, Collection: "docs"}, zap.NewNop())
	if err := q.EnsureCollection(ctx, 3); err != nil {
		t.Fatal(err)
	}
	chunks := []models.EmbeddedChunk{
		testChunk("a:1:0", "a", []float32{1, 0, 0}),
		testChunk("a:1:1", "a", []float32{1, 0}), // wrong dimensions
	}
	err := q.Upsert(ctx, chunks)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !apperr.IsKind(err, apperr.InvalidPoint) {
		t.Errorf("kind: %v", err)
	}
	if len(fake.points) != 0 {
		t.Errorf("points written despite validation failure: %d", len(fake.points))
	}
}

func TestQdrant_Healthy(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake.handler())
	q := NewQdrant(QdrantConfig{URL: srv.URL}, zap.NewNop())
	if !q.Healthy(context.Background()) {
		t.Error("expected healthy")
	}
	srv.Close()
	if q.Healthy(context.Background()) {
		t.Error("expected unhealthy after shutdown")
	}
}

func TestPointID_DeterministicUUID(t *testing.T) {
	a := pointID("doc:1:0")
	b := pointID("doc:1:0")
	c := pointID("doc:1:1")
	if a != b {
		t.Error("same chunk id produced different point ids")
	}
	if a == c {
		t.Error("different chunk ids collided")
	}
	if len(a) != 36 {
		t.Errorf("not a uuid: %q", a)
	}
}
