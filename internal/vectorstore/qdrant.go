package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docsage/docsage/internal/apperr"
	"github.com/docsage/docsage/internal/models"
)

const (
	defaultQdrantTimeout = 30 * time.Second
	upsertBatchSize      = 100
)

// QdrantConfig configures the Qdrant REST client.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Qdrant talks to a Qdrant instance over its REST API.
type Qdrant struct {
	baseURL    string
	apiKey     string
	collection string
	dims       int
	client     *http.Client
	logger     *zap.Logger
}

// NewQdrant creates a Qdrant-backed store.
func NewQdrant(cfg QdrantConfig, logger *zap.Logger) *Qdrant {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultQdrantTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "documents"
	}
	return &Qdrant{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type qdrantCollectionResult struct {
	Result struct {
		Status       string `json:"status"`
		PointsCount  int64  `json:"points_count"`
		Config       struct {
			Params struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
	Status string `json:"status"`
}

// EnsureCollection creates the collection with cosine distance if it does not
// exist. A dimension mismatch on an existing collection is logged, not fatal:
// re-creating it would silently drop every stored document.
func (q *Qdrant) EnsureCollection(ctx context.Context, dims int) error {
	q.dims = dims

	var info qdrantCollectionResult
	status, err := q.doJSON(ctx, http.MethodGet, "/collections/"+q.collection, nil, &info)
	if err != nil {
		return apperr.Wrap(apperr.StorageError, "STORAGE_ERROR", "check collection", err)
	}
	if status == http.StatusOK {
		existing := info.Result.Config.Params.Vectors.Size
		if existing != 0 && existing != dims {
			q.logger.Warn("collection dimension mismatch",
				zap.String("collection", q.collection),
				zap.Int("existing", existing), zap.Int("configured", dims))
		}
		return nil
	}
	if status != http.StatusNotFound {
		return apperr.Newf(apperr.StorageError, "STORAGE_ERROR", "check collection: unexpected status %d", status)
	}

	body := map[string]any{
		"vectors": map[string]any{"size": dims, "distance": "Cosine"},
	}
	status, err = q.doJSON(ctx, http.MethodPut, "/collections/"+q.collection, body, nil)
	if err != nil {
		return apperr.Wrap(apperr.StorageError, "STORAGE_ERROR", "create collection", err)
	}
	if status != http.StatusOK {
		return apperr.Newf(apperr.StorageError, "STORAGE_ERROR", "create collection: status %d", status)
	}
	q.logger.Info("created collection", zap.String("collection", q.collection), zap.Int("dims", dims))
	return nil
}

// pointID maps a chunk ID onto a stable UUID, since Qdrant only accepts
// unsigned integers or UUIDs as point IDs. SHA1-based v5 UUIDs keep the
// mapping deterministic so re-ingestion overwrites rather than duplicates.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

// Upsert writes chunks in batches. Validation runs over the entire input
// before the first write so a bad point cannot leave a half-written batch.
func (q *Qdrant) Upsert(ctx context.Context, chunks []models.EmbeddedChunk) error {
	for _, ec := range chunks {
		if err := validatePoint(ec, q.dims); err != nil {
			return err
		}
	}
	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		points := make([]map[string]any, 0, end-start)
		for _, ec := range chunks[start:end] {
			points = append(points, map[string]any{
				"id":     pointID(ec.ID),
				"vector": ec.Vector,
				"payload": map[string]any{
					"id":          ec.ID,
					"text":        ec.Text,
					"doc_id":      ec.DocID,
					"page":        ec.Page,
					"chunk_index": ec.ChunkIndex,
				},
			})
		}
		status, err := q.doJSON(ctx, http.MethodPut,
			"/collections/"+q.collection+"/points?wait=true",
			map[string]any{"points": points}, nil)
		if err != nil {
			return apperr.Wrap(apperr.StorageError, "STORAGE_ERROR",
				"upsert "+batchRange(start, end-1), err)
		}
		if status != http.StatusOK {
			return apperr.Newf(apperr.StorageError, "STORAGE_ERROR",
				"upsert %s: status %d", batchRange(start, end-1), status)
		}
	}
	return nil
}

type qdrantSearchResponse struct {
	Result []struct {
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

// Search runs similarity search, optionally filtered to one document.
func (q *Qdrant) Search(ctx context.Context, vector []float32, topK int, docID string) ([]models.SearchResult, error) {
	if err := validateSearch(vector, topK); err != nil {
		return nil, err
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if docID != "" {
		body["filter"] = map[string]any{
			"must": []map[string]any{
				{"key": "doc_id", "match": map[string]any{"value": docID}},
			},
		}
	}
	var resp qdrantSearchResponse
	status, err := q.doJSON(ctx, http.MethodPost,
		"/collections/"+q.collection+"/points/search", body, &resp)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageError, "STORAGE_ERROR", "search", err)
	}
	if status != http.StatusOK {
		return nil, apperr.Newf(apperr.StorageError, "STORAGE_ERROR", "search: status %d", status)
	}

	results := make([]models.SearchResult, 0, len(resp.Result))
	for _, hit := range resp.Result {
		results = append(results, models.SearchResult{
			ID:         payloadString(hit.Payload, "id"),
			Score:      hit.Score,
			Text:       payloadString(hit.Payload, "text"),
			DocID:      payloadString(hit.Payload, "doc_id"),
			Page:       payloadInt(hit.Payload, "page"),
			ChunkIndex: payloadInt(hit.Payload, "chunk_index"),
		})
	}
	return results, nil
}

// DeleteByDoc removes all points whose payload doc_id matches.
func (q *Qdrant) DeleteByDoc(ctx context.Context, docID string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "doc_id", "match": map[string]any{"value": docID}},
			},
		},
	}
	status, err := q.doJSON(ctx, http.MethodPost,
		"/collections/"+q.collection+"/points/delete?wait=true", body, nil)
	if err != nil {
		return apperr.Wrap(apperr.StorageError, "STORAGE_ERROR", "delete document "+docID, err)
	}
	if status != http.StatusOK {
		return apperr.Newf(apperr.StorageError, "STORAGE_ERROR", "delete document %s: status %d", docID, status)
	}
	return nil
}

type qdrantCountResponse struct {
	Result struct {
		Count int64 `json:"count"`
	} `json:"result"`
}

// CountByDoc returns the exact number of points stored for a document.
func (q *Qdrant) CountByDoc(ctx context.Context, docID string) (int64, error) {
	body := map[string]any{
		"exact": true,
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "doc_id", "match": map[string]any{"value": docID}},
			},
		},
	}
	var resp qdrantCountResponse
	status, err := q.doJSON(ctx, http.MethodPost,
		"/collections/"+q.collection+"/points/count", body, &resp)
	if err != nil {
		return 0, apperr.Wrap(apperr.StorageError, "STORAGE_ERROR", "count document "+docID, err)
	}
	if status != http.StatusOK {
		return 0, apperr.Newf(apperr.StorageError, "STORAGE_ERROR", "count document %s: status %d", docID, status)
	}
	return resp.Result.Count, nil
}

// Info reports collection statistics.
func (q *Qdrant) Info(ctx context.Context) (CollectionInfo, error) {
	var resp qdrantCollectionResult
	status, err := q.doJSON(ctx, http.MethodGet, "/collections/"+q.collection, nil, &resp)
	if err != nil {
		return CollectionInfo{}, apperr.Wrap(apperr.StorageError, "STORAGE_ERROR", "collection info", err)
	}
	if status != http.StatusOK {
		return CollectionInfo{}, apperr.Newf(apperr.StorageError, "STORAGE_ERROR", "collection info: status %d", status)
	}
	return CollectionInfo{
		Name:       q.collection,
		Points:     resp.Result.PointsCount,
		Dimensions: resp.Result.Config.Params.Vectors.Size,
		Status:     resp.Result.Status,
	}, nil
}

// Healthy reports whether the Qdrant instance answers its health endpoint.
func (q *Qdrant) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// doJSON sends a JSON request and decodes the response into out when non-nil.
// It returns the HTTP status so callers can distinguish 404 from failure.
func (q *Qdrant) doJSON(ctx context.Context, method, path string, body, out any) (int, error) {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, rdr)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}

func payloadString(p map[string]any, key string) string {
	if s, ok := p[key].(string); ok {
		return s
	}
	return ""
}

func payloadInt(p map[string]any, key string) int {
	if f, ok := p[key].(float64); ok {
		return int(f)
	}
	return 0
}
