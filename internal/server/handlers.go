package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/docsage/docsage/internal/apperr"
	"github.com/docsage/docsage/internal/ingest"
	"github.com/docsage/docsage/internal/models"
	"github.com/docsage/docsage/internal/query"
	"github.com/docsage/docsage/internal/registry"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"message": "docsage document question-answering API",
		"version": Version,
		"status":  "running",
		"endpoints": map[string]string{
			"POST /ingest":                "ingest a base64-encoded PDF",
			"POST /query":                 "ask a question over ingested documents",
			"GET /query/stats":            "collection statistics",
			"GET /documents":              "list ingested documents",
			"DELETE /documents/{doc_id}":  "remove a document",
			"GET /health":                 "service health",
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	storeHealthy := s.store.Healthy(r.Context())
	status := "healthy"
	code := http.StatusOK
	vectorStatus := "up"
	if !storeHealthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
		vectorStatus = "down"
	}
	s.respondJSON(w, code, map[string]any{
		"status": status,
		"services": map[string]string{
			"api":         "up",
			"vectorstore": vectorStatus,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req models.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, apperr.New(apperr.InvalidInput, "INVALID_REQUEST", "request body is not valid JSON"))
		return
	}
	res, err := s.ingestor.Ingest(r.Context(), ingest.Request{
		DocID:        req.DocID,
		PDFBase64:    req.PDFBase64,
		Overwrite:    req.Overwrite,
		ChunkSize:    req.ChunkSize,
		ChunkOverlap: req.ChunkOverlap,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.IngestResponse{
		Success:          true,
		Message:          "document ingested",
		DocID:            res.DocID,
		TotalChunks:      res.TotalChunks,
		TotalPages:       res.TotalPages,
		ProcessingTimeMs: res.Elapsed.Milliseconds(),
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, apperr.New(apperr.InvalidInput, "INVALID_REQUEST", "request body is not valid JSON"))
		return
	}
	res, err := s.querier.Query(r.Context(), query.Request{
		Question: req.Question,
		TopK:     req.TopK,
		DocID:    req.DocID,
		MinScore: req.MinScore,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.QueryResponse{
		Success:      true,
		Answer:       res.Answer,
		QueryTimeMs:  res.Elapsed.Milliseconds(),
		TotalResults: res.TotalResults,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.Info(r.Context())
	if err != nil {
		s.respondError(w, apperr.Wrap(apperr.StorageError, "STATS_ERROR", "collection stats unavailable", err))
		return
	}
	stats := map[string]any{
		"collection": info.Name,
		"points":     info.Points,
		"dimensions": info.Dimensions,
		"status":     info.Status,
	}
	if s.catalog != nil {
		if docs, err := s.catalog.Count(r.Context()); err == nil {
			stats["documents"] = docs
		}
		if chunks, err := s.catalog.CountChunks(r.Context()); err == nil {
			stats["chunks"] = chunks
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"collection_stats": stats,
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs := []registry.Document{}
	if s.catalog != nil {
		listed, err := s.catalog.List(r.Context())
		if err != nil {
			s.respondError(w, apperr.Wrap(apperr.StorageError, "STATS_ERROR", "document listing unavailable", err))
			return
		}
		if listed != nil {
			docs = listed
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"documents": docs,
		"total":     len(docs),
	})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "doc_id")
	if err := s.ingestor.Delete(r.Context(), docID); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "document deleted",
		"doc_id":  docID,
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	status := apperr.HTTPStatus(err)
	if status >= 500 {
		s.logger.Error("request failed", zap.String("code", code), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.String("code", code), zap.Error(err))
	}
	s.respondJSON(w, status, map[string]any{
		"success": false,
		"error":   err.Error(),
		"code":    code,
	})
}
