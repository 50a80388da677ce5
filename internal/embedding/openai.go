package embedding

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/docsage/docsage/internal/apperr"
	"github.com/docsage/docsage/internal/models"
	"github.com/docsage/docsage/internal/retry"
)

// Defaults for the OpenAI-compatible embedding client.
const (
	DefaultModel       = "text-embedding-3-small"
	DefaultDimensions  = 1536
	DefaultBatchSize   = 10
	DefaultMaxRetries  = 3
	DefaultBatchDelay  = 200 * time.Millisecond
	DefaultBaseBackoff = 500 * time.Millisecond
	DefaultTimeout     = 30 * time.Second
)

// OpenAIConfig configures the embedding client.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Dimensions  int
	BatchSize   int
	MaxRetries  int
	BatchDelay  time.Duration
	BaseBackoff time.Duration
	Timeout     time.Duration
}

// OpenAIEmbedder embeds text through an OpenAI-compatible embeddings endpoint.
// Inputs are batched to respect remote limits, with a fixed delay between
// batches and exponential-backoff retries on transient failures.
type OpenAIEmbedder struct {
	client      *openai.Client
	model       string
	dims        int
	batchSize   int
	maxRetries  int
	batchDelay  time.Duration
	baseBackoff time.Duration
	logger      *zap.Logger
}

// NewOpenAIEmbedder creates an embedding client. The API key is required.
func NewOpenAIEmbedder(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("embedding API key is not set")
	}
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cc.HTTPClient = &http.Client{Timeout: timeout}

	e := &OpenAIEmbedder{
		client:      openai.NewClientWithConfig(cc),
		model:       cfg.Model,
		dims:        cfg.Dimensions,
		batchSize:   cfg.BatchSize,
		maxRetries:  cfg.MaxRetries,
		batchDelay:  cfg.BatchDelay,
		baseBackoff: cfg.BaseBackoff,
		logger:      logger,
	}
	if e.model == "" {
		e.model = DefaultModel
	}
	if e.dims <= 0 {
		e.dims = DefaultDimensions
	}
	if e.batchSize <= 0 {
		e.batchSize = DefaultBatchSize
	}
	if e.maxRetries <= 0 {
		e.maxRetries = DefaultMaxRetries
	}
	if e.batchDelay <= 0 {
		e.batchDelay = DefaultBatchDelay
	}
	if e.baseBackoff <= 0 {
		e.baseBackoff = DefaultBaseBackoff
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e, nil
}

// Dimensions returns the configured vector dimensionality.
func (e *OpenAIEmbedder) Dimensions() int { return e.dims }

// EmbedChunks embeds all chunks in fixed-size batches. Any batch failure
// aborts the whole call so no partial embedding result ever reaches a caller.
func (e *OpenAIEmbedder) EmbedChunks(ctx context.Context, chunks []models.Chunk) ([]models.EmbeddedChunk, error) {
	out := make([]models.EmbeddedChunk, 0, len(chunks))
	for start := 0; start < len(chunks); start += e.batchSize {
		end := start + e.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if start > 0 {
			// Fixed pacing between batches to stay under remote rate limits.
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.batchDelay):
			}
		}
		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Text
		}
		vectors, err := e.embedBatch(ctx, texts)
		if err != nil {
			return nil, apperr.Wrap(apperr.EmbeddingError, "EMBEDDING_ERROR",
				"embedding failed for chunks "+batch[0].ID+" onward", err)
		}
		if err := validateBatch(vectors, len(batch)); err != nil {
			return nil, apperr.Wrap(apperr.EmbeddingError, "EMBEDDING_ERROR",
				"embedding service returned invalid vectors", err)
		}
		for i, ch := range batch {
			out = append(out, models.EmbeddedChunk{Chunk: ch, Vector: vectors[i]})
		}
		e.logger.Debug("embedded batch",
			zap.Int("from", start), zap.Int("to", end-1), zap.Int("dims", len(vectors[0])))
	}
	return out, nil
}

// EmbedQuery embeds a single query string.
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.New(apperr.InvalidInput, "INVALID_INPUT", "cannot embed empty text")
	}
	vectors, err := e.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, apperr.Wrap(apperr.EmbeddingError, "EMBEDDING_ERROR", "query embedding failed", err)
	}
	if err := validateBatch(vectors, 1); err != nil {
		return nil, apperr.Wrap(apperr.EmbeddingError, "EMBEDDING_ERROR",
			"embedding service returned an invalid vector", err)
	}
	return vectors[0], nil
}

// embedBatch calls the remote embeddings endpoint for one batch, with retries.
func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	policy := retry.Policy{
		MaxAttempts: e.maxRetries,
		Backoff:     retry.Exponential(e.baseBackoff),
		Retryable:   retryableEmbeddingError,
	}
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(e.model),
			Input: texts,
		})
		if err != nil {
			return err
		}
		if len(resp.Data) != len(texts) {
			return errors.New("embedding count does not match input count")
		}
		vectors = make([][]float32, len(texts))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(texts) {
				return errors.New("embedding index out of range")
			}
			vectors[d.Index] = d.Embedding
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// validateBatch checks that every input got a non-empty vector, that all
// vectors in the batch share one dimensionality, and that values are finite.
func validateBatch(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return errors.New("missing embeddings in response")
	}
	dims := 0
	for i, v := range vectors {
		if len(v) == 0 {
			return errors.New("empty embedding at index " + strconv.Itoa(i))
		}
		if dims == 0 {
			dims = len(v)
		} else if len(v) != dims {
			return errors.New("inconsistent embedding dimensions in batch")
		}
		for _, x := range v {
			f := float64(x)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return errors.New("non-finite embedding value at index " + strconv.Itoa(i))
			}
		}
	}
	return nil
}

// retryableEmbeddingError retries throttling (except quota exhaustion),
// server-side failures, and network errors. Client errors such as bad
// authentication propagate immediately.
func retryableEmbeddingError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			if code, ok := apiErr.Code.(string); ok && code == "insufficient_quota" {
				return false
			}
			return true
		}
		return apiErr.HTTPStatusCode >= 500
	}
	return true
}
