// Package query orchestrates question answering: validate, embed, search,
// filter, generate.
package query

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/docsage/docsage/internal/answer"
	"github.com/docsage/docsage/internal/apperr"
	"github.com/docsage/docsage/internal/embedding"
	"github.com/docsage/docsage/internal/models"
	"github.com/docsage/docsage/internal/vectorstore"
	"github.com/docsage/docsage/pkg/utils"
)

const (
	maxQuestionLen = 1000
	minTopK        = 1
	maxTopK        = 50
	DefaultTopK    = 5
)

const noResultsText = "I could not find any relevant information in the ingested documents for that question."

// Request is one query.
type Request struct {
	Question string
	TopK     int     // 0 means the configured default
	DocID    string  // optional filter
	MinScore float64 // hits below this score are dropped before generation
}

// Result is a completed query.
type Result struct {
	Answer       models.Answer
	TotalResults int
	Elapsed      time.Duration
}

// Querier runs the query pipeline.
type Querier struct {
	embedder    embedding.Embedder
	store       vectorstore.Store
	generator   *answer.Generator
	defaultTopK int
	logger      *zap.Logger
}

// New creates a Querier.
func New(embedder embedding.Embedder, store vectorstore.Store, generator *answer.Generator,
	defaultTopK int, logger *zap.Logger) *Querier {
	if defaultTopK < minTopK || defaultTopK > maxTopK {
		defaultTopK = DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Querier{
		embedder:    embedder,
		store:       store,
		generator:   generator,
		defaultTopK: defaultTopK,
		logger:      logger,
	}
}

// Query validates the request and runs embed → search → filter → generate.
// Conversational inputs are answered before any embedding or search happens.
func (q *Querier) Query(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, apperr.New(apperr.InvalidInput, "INVALID_QUESTION", "question is required")
	}
	if len(req.Question) > maxQuestionLen {
		return nil, apperr.Newf(apperr.InvalidInput, "QUESTION_TOO_LONG",
			"question exceeds %d characters", maxQuestionLen)
	}
	topK := req.TopK
	if topK == 0 {
		topK = q.defaultTopK
	}
	if topK < minTopK || topK > maxTopK {
		return nil, apperr.Newf(apperr.InvalidInput, "INVALID_TOP_K",
			"top_k must be between %d and %d, got %d", minTopK, maxTopK, req.TopK)
	}
	if req.MinScore < 0 || req.MinScore > 1 {
		return nil, apperr.Newf(apperr.InvalidInput, "INVALID_MIN_SCORE",
			"min_score must be between 0 and 1, got %v", req.MinScore)
	}

	if ans := answer.Conversational(question); ans != nil {
		return &Result{Answer: *ans, TotalResults: 0, Elapsed: time.Since(start)}, nil
	}

	vector, err := q.embedder.EmbedQuery(ctx, question)
	if err != nil {
		if apperr.IsKind(err, apperr.EmbeddingError) || apperr.IsKind(err, apperr.InvalidInput) {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.EmbeddingError, "EMBEDDING_ERROR", "question embedding failed", err)
	}

	hits, err := q.store.Search(ctx, vector, topK, req.DocID)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageError, "QUERY_ERROR", "vector search failed", err)
	}

	if req.MinScore > 0 {
		filtered := hits[:0]
		for _, h := range hits {
			if h.Score >= req.MinScore {
				filtered = append(filtered, h)
			}
		}
		hits = filtered
	}

	if len(hits) == 0 {
		q.logger.Debug("no hits above threshold", zap.String("question", utils.Truncate(question, 80)))
		return &Result{
			Answer:       models.Answer{Text: noResultsText, Sources: []models.Source{}, Confidence: 0},
			TotalResults: 0,
			Elapsed:      time.Since(start),
		}, nil
	}

	ans, err := q.generator.Generate(ctx, question, hits)
	if err != nil {
		if apperr.IsKind(err, apperr.GenerationError) {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.GenerationError, "QUERY_ERROR", "answer generation failed", err)
	}

	return &Result{
		Answer:       ans,
		TotalResults: len(hits),
		Elapsed:      time.Since(start),
	}, nil
}
