package vectorstore

import (
	"context"
	"testing"

	"github.com/docsage/docsage/internal/apperr"
	"github.com/docsage/docsage/internal/models"
)

func TestMemory_SearchOrdersByScore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.EnsureCollection(ctx, 2); err != nil {
		t.Fatal(err)
	}
	err := m.Upsert(ctx, []models.EmbeddedChunk{
		testChunk("a:1:0", "a", []float32{1, 0}),
		testChunk("a:1:1", "a", []float32{0, 1}),
		testChunk("a:2:0", "a", []float32{0.7, 0.7}),
	})
	if err != nil {
		t.Fatal(err)
	}
	results, err := m.Search(ctx, []float32{1, 0}, 3, "")
	if err != nil {
		t.Fatal(err)
	}
	if results[0].ID != "a:1:0" {
		t.Errorf("best match: %s", results[0].ID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Error("results not sorted by descending score")
		}
	}
}

func TestMemory_SearchFiltersByDoc(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.EnsureCollection(ctx, 2)
	_ = m.Upsert(ctx, []models.EmbeddedChunk{
		testChunk("a:1:0", "a", []float32{1, 0}),
		testChunk("b:1:0", "b", []float32{1, 0}),
	})
	results, err := m.Search(ctx, []float32{1, 0}, 10, "b")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].DocID != "b" {
		t.Errorf("results: %+v", results)
	}
}

func TestMemory_SearchValidatesInput(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if _, err := m.Search(ctx, nil, 5, ""); err == nil {
		t.Error("expected error for empty vector")
	}
	if _, err := m.Search(ctx, []float32{1}, 0, ""); err == nil {
		t.Error("expected error for topK=0")
	}
	if _, err := m.Search(ctx, []float32{1}, 101, ""); !apperr.IsKind(err, apperr.InvalidInput) {
		t.Errorf("topK=101: %v", err)
	}
}

func TestMemory_DeleteByDoc(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.EnsureCollection(ctx, 2)
	_ = m.Upsert(ctx, []models.EmbeddedChunk{
		testChunk("a:1:0", "a", []float32{1, 0}),
		testChunk("b:1:0", "b", []float32{0, 1}),
	})
	if err := m.DeleteByDoc(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	n, _ := m.CountByDoc(ctx, "a")
	if n != 0 {
		t.Errorf("count: %d", n)
	}
	info, _ := m.Info(ctx)
	if info.Points != 1 {
		t.Errorf("points: %d", info.Points)
	}
}

func TestMemory_UpsertReplacesSameID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.EnsureCollection(ctx, 2)
	_ = m.Upsert(ctx, []models.EmbeddedChunk{testChunk("a:1:0", "a", []float32{1, 0})})
	_ = m.Upsert(ctx, []models.EmbeddedChunk{testChunk("a:1:0", "a", []float32{0, 1})})
	n, _ := m.CountByDoc(ctx, "a")
	if n != 1 {
		t.Errorf("count: %d", n)
	}
}

func TestValidatePoint(t *testing.T) {
	good := testChunk("a:1:0", "a", []float32{1, 0})
	if err := validatePoint(good, 2); err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name string
		ec   models.EmbeddedChunk
	}{
		{"empty id", models.EmbeddedChunk{Chunk: models.Chunk{Text: "x", DocID: "a"}, Vector: []float32{1, 0}}},
		{"empty text", models.EmbeddedChunk{Chunk: models.Chunk{ID: "a:1:0", DocID: "a"}, Vector: []float32{1, 0}}},
		{"empty doc", models.EmbeddedChunk{Chunk: models.Chunk{ID: "a:1:0", Text: "x"}, Vector: []float32{1, 0}}},
		{"no vector", models.EmbeddedChunk{Chunk: models.Chunk{ID: "a:1:0", Text: "x", DocID: "a"}}},
		{"wrong dims", testChunk("a:1:0", "a", []float32{1})},
	}
	for _, tc := range cases {
		err := validatePoint(tc.ec, 2)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if apperr.CodeOf(err) != "INVALID_POINT" {
			t.Errorf("%s: code %s", tc.name, apperr.CodeOf(err))
		}
	}
}
