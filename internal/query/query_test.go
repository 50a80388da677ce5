package query

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/docsage/docsage/internal/answer"
	"github.com/docsage/docsage/internal/apperr"
	"github.com/docsage/docsage/internal/embedding"
	"github.com/docsage/docsage/internal/models"
	"github.com/docsage/docsage/internal/vectorstore"
)

// recordingLLM counts completions and returns a fixed reply.
type recordingLLM struct {
	calls int
}

func (r *recordingLLM) Complete(_ context.Context, _ string) (string, error) {
	r.calls++
	return "The answer from the documents.", nil
}

// recordingStore tracks whether Search was invoked.
type recordingStore struct {
	vectorstore.Store
	searches int
}

func (r *recordingStore) Search(ctx context.Context, vector []float32, topK int, docID string) ([]models.SearchResult, error) {
	r.searches++
	return r.Store.Search(ctx, vector, topK, docID)
}

func newTestQuerier(t *testing.T, store vectorstore.Store, llm answer.LLM) *Querier {
	t.Helper()
	gen := answer.NewGenerator(llm, answer.DefaultConfig(), zap.NewNop())
	return New(embedding.NewMockEmbedder(8), store, gen, 5, zap.NewNop())
}

func seedStore(t *testing.T, store vectorstore.Store, texts ...string) {
	t.Helper()
	ctx := context.Background()
	if err := store.EnsureCollection(ctx, 8); err != nil {
		t.Fatal(err)
	}
	emb := embedding.NewMockEmbedder(8)
	chunks := make([]models.Chunk, len(texts))
	for i, txt := range texts {
		chunks[i] = models.Chunk{ID: "doc:1:" + string(rune('0'+i)), Text: txt, DocID: "doc", Page: 1, ChunkIndex: i}
	}
	embedded, err := emb.EmbedChunks(ctx, chunks)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Upsert(ctx, embedded); err != nil {
		t.Fatal(err)
	}
}

func TestQuery_Validation(t *testing.T) {
	q := newTestQuerier(t, vectorstore.NewMemory(), &recordingLLM{})
	ctx := context.Background()

	cases := []struct {
		name string
		req  Request
		code string
	}{
		{"empty question", Request{Question: ""}, "INVALID_QUESTION"},
		{"blank question", Request{Question: "   "}, "INVALID_QUESTION"},
		{"too long", Request{Question: strings.Repeat("q", 1001)}, "QUESTION_TOO_LONG"},
		{"topK too high", Request{Question: "x", TopK: 51}, "INVALID_TOP_K"},
		{"topK negative", Request{Question: "x", TopK: -1}, "INVALID_TOP_K"},
		{"min score high", Request{Question: "x", MinScore: 1.5}, "INVALID_MIN_SCORE"},
		{"min score negative", Request{Question: "x", MinScore: -0.1}, "INVALID_MIN_SCORE"},
	}
	for _, tc := range cases {
		_, err := q.Query(ctx, tc.req)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if apperr.CodeOf(err) != tc.code {
			t.Errorf("%s: code %s, want %s", tc.name, apperr.CodeOf(err), tc.code)
		}
	}
}

func TestQuery_ConversationalSkipsSearch(t *testing.T) {
	store := &recordingStore{Store: vectorstore.NewMemory()}
	_ = store.EnsureCollection(context.Background(), 8)
	llm := &recordingLLM{}
	q := newTestQuerier(t, store, llm)

	res, err := q.Query(context.Background(), Request{Question: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Answer.Confidence != 1.0 {
		t.Errorf("confidence: %v", res.Answer.Confidence)
	}
	if len(res.Answer.Sources) != 0 {
		t.Errorf("sources: %+v", res.Answer.Sources)
	}
	if store.searches != 0 {
		t.Error("vector search performed for conversational input")
	}
	if llm.calls != 0 {
		t.Error("model called for conversational input")
	}
}

func TestQuery_EmptyStoreReturnsZeroConfidence(t *testing.T) {
	store := vectorstore.NewMemory()
	_ = store.EnsureCollection(context.Background(), 8)
	llm := &recordingLLM{}
	q := newTestQuerier(t, store, llm)

	res, err := q.Query(context.Background(), Request{Question: "what is the refund policy?"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Answer.Confidence != 0 || len(res.Answer.Sources) != 0 {
		t.Errorf("answer: %+v", res.Answer)
	}
	if res.TotalResults != 0 {
		t.Errorf("total results: %d", res.TotalResults)
	}
	if llm.calls != 0 {
		t.Error("model called with no hits")
	}
}

func TestQuery_MinScoreFiltersBeforeGeneration(t *testing.T) {
	store := vectorstore.NewMemory()
	seedStore(t, store,
		"refund policy details and returns",
		"shipping information for orders",
		"unrelated legal boilerplate text")
	llm := &recordingLLM{}
	q := newTestQuerier(t, store, llm)

	// A min_score of 1.0 is valid and drops everything except an exact match.
	res, err := q.Query(context.Background(), Request{Question: "completely different topic", MinScore: 0.999})
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalResults != 0 {
		t.Errorf("total results: %d", res.TotalResults)
	}
	if llm.calls != 0 {
		t.Error("model called after filter removed every hit")
	}
}

func TestQuery_AnswersFromHits(t *testing.T) {
	store := vectorstore.NewMemory()
	seedStore(t, store, "refund policy details and returns")
	llm := &recordingLLM{}
	q := newTestQuerier(t, store, llm)

	res, err := q.Query(context.Background(), Request{Question: "refund policy details and returns"})
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalResults != 1 {
		t.Errorf("total results: %d", res.TotalResults)
	}
	if llm.calls != 1 {
		t.Errorf("model calls: %d", llm.calls)
	}
	if res.Answer.Text == "" {
		t.Error("empty answer text")
	}
}

func TestQuery_DefaultTopK(t *testing.T) {
	q := New(embedding.NewMockEmbedder(8), vectorstore.NewMemory(), nil, 0, zap.NewNop())
	if q.defaultTopK != DefaultTopK {
		t.Errorf("default topK: %d", q.defaultTopK)
	}
}
