// Package ingest orchestrates the document ingestion pipeline: validate,
// extract, chunk, embed, commit.
package ingest

import (
	"context"
	"encoding/base64"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/docsage/docsage/internal/apperr"
	"github.com/docsage/docsage/internal/chunker"
	"github.com/docsage/docsage/internal/embedding"
	"github.com/docsage/docsage/internal/extract"
	"github.com/docsage/docsage/internal/models"
	"github.com/docsage/docsage/internal/registry"
	"github.com/docsage/docsage/internal/vectorstore"
)

const (
	maxDocIDLen        = 200
	DefaultMaxPDFBytes = 50 << 20
)

var base64Alphabet = regexp.MustCompile(`^[A-Za-z0-9+/=\r\n]+$`)

// PageExtractor turns raw file bytes into per-page text.
type PageExtractor interface {
	PDFPages(content []byte) ([]extract.Page, error)
	Pages(content []byte, ext string) ([]extract.Page, error)
}

// Options configures an Ingestor.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	MaxPDFBytes  int64
}

// Request is one ingestion job.
type Request struct {
	DocID        string
	PDFBase64    string
	Overwrite    bool
	ChunkSize    int // 0 means the configured default
	ChunkOverlap int // 0 means the configured default
	// Source metadata, set for watched files so re-ingestion can be skipped
	// when the file has not changed.
	Source      string
	SourceMtime int64
	SourceSize  int64
}

// Result reports a successful ingestion.
type Result struct {
	DocID       string
	TotalChunks int
	TotalPages  int
	Elapsed     time.Duration
}

// Ingestor runs the ingestion pipeline. Embedding happens before any write,
// so a failed ingestion never leaves partial data in the vector store.
type Ingestor struct {
	embedder  embedding.Embedder
	store     vectorstore.Store
	extractor PageExtractor
	catalog   *registry.Catalog // optional
	opts      Options
	logger    *zap.Logger

	// Concurrent ingestions of the same document would race on
	// delete-then-upsert; serialize them per doc_id.
	docLocks sync.Map
}

// New creates an Ingestor. catalog may be nil when no registry is configured.
func New(embedder embedding.Embedder, store vectorstore.Store, extractor PageExtractor,
	catalog *registry.Catalog, opts Options, logger *zap.Logger) *Ingestor {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = chunker.DefaultChunkSize
	}
	if opts.ChunkOverlap <= 0 {
		opts.ChunkOverlap = chunker.DefaultOverlap
	}
	if opts.MaxPDFBytes <= 0 {
		opts.MaxPDFBytes = DefaultMaxPDFBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		embedder:  embedder,
		store:     store,
		extractor: extractor,
		catalog:   catalog,
		opts:      opts,
		logger:    logger,
	}
}

// Ingest runs the full pipeline for a base64-encoded PDF.
func (in *Ingestor) Ingest(ctx context.Context, req Request) (*Result, error) {
	if err := validateDocID(req.DocID); err != nil {
		return nil, err
	}
	if req.PDFBase64 == "" {
		return nil, apperr.New(apperr.InvalidInput, "INVALID_PDF_DATA", "pdf_base64 is required")
	}
	if !base64Alphabet.MatchString(req.PDFBase64) {
		return nil, apperr.New(apperr.InvalidInput, "INVALID_BASE64", "pdf_base64 contains invalid characters")
	}
	// MIME tools wrap base64 at 76 columns; StdEncoding rejects the breaks.
	payload := strings.NewReplacer("\r", "", "\n", "").Replace(req.PDFBase64)
	if payload == "" {
		return nil, apperr.New(apperr.InvalidInput, "INVALID_PDF_DATA", "pdf_base64 is required")
	}
	// Cheap size check before decoding 50MB+ payloads into memory.
	if int64(len(payload))/4*3 > in.opts.MaxPDFBytes {
		return nil, apperr.Newf(apperr.FileTooLarge, "FILE_TOO_LARGE",
			"decoded PDF would exceed %d bytes", in.opts.MaxPDFBytes)
	}
	content, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, "DECODE_ERROR", "pdf_base64 is not valid base64", err)
	}
	if int64(len(content)) > in.opts.MaxPDFBytes {
		return nil, apperr.Newf(apperr.FileTooLarge, "FILE_TOO_LARGE",
			"decoded PDF is %d bytes, limit is %d", len(content), in.opts.MaxPDFBytes)
	}

	return in.run(ctx, req, func() ([]extract.Page, error) {
		return in.extractor.PDFPages(content)
	})
}

// IngestContent ingests already-decoded file bytes, dispatching extraction by
// file extension. Used by the watcher and the CLI.
func (in *Ingestor) IngestContent(ctx context.Context, req Request, content []byte, ext string) (*Result, error) {
	if err := validateDocID(req.DocID); err != nil {
		return nil, err
	}
	if int64(len(content)) > in.opts.MaxPDFBytes {
		return nil, apperr.Newf(apperr.FileTooLarge, "FILE_TOO_LARGE",
			"file is %d bytes, limit is %d", len(content), in.opts.MaxPDFBytes)
	}
	return in.run(ctx, req, func() ([]extract.Page, error) {
		return in.extractor.Pages(content, ext)
	})
}

// run drives extract → chunk → embed → commit under the per-document lock.
func (in *Ingestor) run(ctx context.Context, req Request, extractPages func() ([]extract.Page, error)) (*Result, error) {
	start := time.Now()

	unlock := in.lockDoc(req.DocID)
	defer unlock()

	existing, err := in.store.CountByDoc(ctx, req.DocID)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageError, "STORAGE_ERROR", "check existing document", err)
	}
	if existing > 0 && !req.Overwrite {
		return nil, apperr.Newf(apperr.DocumentExists, "DOCUMENT_EXISTS",
			"document %q already has %d chunks; set overwrite to replace it", req.DocID, existing)
	}

	pages, err := extractPages()
	if err != nil {
		return nil, apperr.Wrap(apperr.ExtractionError, "INGESTION_ERROR", "text extraction failed", err)
	}

	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = in.opts.ChunkSize
	}
	overlap := req.ChunkOverlap
	if overlap <= 0 {
		overlap = in.opts.ChunkOverlap
	}

	var chunks []models.Chunk
	totalPages := 0
	for _, page := range pages {
		pageChunks, err := chunker.Chunk(page.Text, chunker.Options{
			DocID:     req.DocID,
			Page:      page.Number,
			ChunkSize: chunkSize,
			Overlap:   overlap,
		})
		if err != nil {
			return nil, err
		}
		if len(pageChunks) == 0 {
			continue
		}
		totalPages++
		chunks = append(chunks, pageChunks...)
	}
	if totalPages == 0 {
		return nil, apperr.New(apperr.InvalidInput, "EMPTY_PDF", "document contains no extractable text")
	}
	if len(chunks) == 0 {
		return nil, apperr.New(apperr.InvalidInput, "NO_CHUNKS", "document produced no chunks")
	}

	// Embed everything before touching storage. A failure here leaves the
	// previous version of the document fully intact.
	embedded, err := in.embedder.EmbedChunks(ctx, chunks)
	if err != nil {
		if apperr.CodeOf(err) != "INTERNAL_ERROR" {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.EmbeddingError, "EMBEDDING_ERROR", "embedding failed", err)
	}

	if existing > 0 {
		if err := in.store.DeleteByDoc(ctx, req.DocID); err != nil {
			return nil, apperr.Wrap(apperr.StorageError, "STORAGE_ERROR", "delete previous version", err)
		}
	}
	if err := in.store.Upsert(ctx, embedded); err != nil {
		// Best effort: remove whatever the partial upsert wrote. The
		// original error is what the caller sees either way.
		if cleanupErr := in.store.DeleteByDoc(ctx, req.DocID); cleanupErr != nil {
			in.logger.Error("cleanup after failed upsert also failed",
				zap.String("doc_id", req.DocID), zap.Error(cleanupErr))
		}
		if apperr.IsKind(err, apperr.InvalidPoint) {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.StorageError, "STORAGE_ERROR", "vector upsert failed", err)
	}

	if in.catalog != nil {
		record := registry.Document{
			DocID:       req.DocID,
			Source:      req.Source,
			Pages:       totalPages,
			Chunks:      len(chunks),
			SourceMtime: req.SourceMtime,
			SourceSize:  req.SourceSize,
		}
		if err := in.catalog.Record(ctx, record); err != nil {
			in.logger.Warn("registry update failed", zap.String("doc_id", req.DocID), zap.Error(err))
		}
	}

	elapsed := time.Since(start)
	in.logger.Info("document ingested",
		zap.String("doc_id", req.DocID),
		zap.Int("pages", totalPages),
		zap.Int("chunks", len(chunks)),
		zap.Duration("elapsed", elapsed))

	return &Result{
		DocID:       req.DocID,
		TotalChunks: len(chunks),
		TotalPages:  totalPages,
		Elapsed:     elapsed,
	}, nil
}

// Delete removes a document from the vector store and registry. Deleting an
// unknown document is not an error.
func (in *Ingestor) Delete(ctx context.Context, docID string) error {
	if err := validateDocID(docID); err != nil {
		return err
	}
	unlock := in.lockDoc(docID)
	defer unlock()

	if err := in.store.DeleteByDoc(ctx, docID); err != nil {
		return apperr.Wrap(apperr.StorageError, "STORAGE_ERROR", "delete document", err)
	}
	if in.catalog != nil {
		if err := in.catalog.Delete(ctx, docID); err != nil {
			in.logger.Warn("registry delete failed", zap.String("doc_id", docID), zap.Error(err))
		}
	}
	return nil
}

// Unchanged reports whether a watched file can skip re-ingestion because the
// registry has it with the same mtime and size.
func (in *Ingestor) Unchanged(ctx context.Context, docID string, mtime, size int64) bool {
	if in.catalog == nil {
		return false
	}
	doc, err := in.catalog.Get(ctx, docID)
	if err != nil || doc == nil {
		return false
	}
	return doc.SourceMtime == mtime && doc.SourceSize == size && mtime != 0
}

func (in *Ingestor) lockDoc(docID string) func() {
	v, _ := in.docLocks.LoadOrStore(docID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func validateDocID(docID string) error {
	if docID == "" {
		return apperr.New(apperr.InvalidInput, "INVALID_DOC_ID", "doc_id is required")
	}
	if len(docID) > maxDocIDLen {
		return apperr.Newf(apperr.InvalidInput, "INVALID_DOC_ID",
			"doc_id exceeds %d characters", maxDocIDLen)
	}
	return nil
}
