// Package registry tracks ingested documents in SQLite. The vector store
// holds the chunks; the registry holds per-document bookkeeping used for
// stats, listings, and skipping unchanged watched files.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Document is one registry row.
type Document struct {
	DocID       string    `json:"doc_id"`
	Source      string    `json:"source,omitempty"`
	Pages       int       `json:"pages"`
	Chunks      int       `json:"chunks"`
	SourceMtime int64     `json:"-"`
	SourceSize  int64     `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Catalog is a SQLite-backed document registry.
type Catalog struct {
	db *sql.DB
}

// Open opens or creates the registry database at dbPath and initializes the
// schema. Parent directories are created if they do not exist.
func Open(dbPath string) (*Catalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create registry directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open registry database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize registry schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		doc_id TEXT PRIMARY KEY,
		source TEXT NOT NULL DEFAULT '',
		pages INTEGER NOT NULL DEFAULT 0,
		chunks INTEGER NOT NULL DEFAULT 0,
		source_mtime INTEGER NOT NULL DEFAULT 0,
		source_size INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source);
	`
	_, err := db.Exec(schema)
	return err
}

// Record inserts or updates a document's bookkeeping row.
func (c *Catalog) Record(ctx context.Context, doc Document) error {
	now := time.Now().UTC()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO documents (doc_id, source, pages, chunks, source_mtime, source_size, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(doc_id) DO UPDATE SET
			source = excluded.source,
			pages = excluded.pages,
			chunks = excluded.chunks,
			source_mtime = excluded.source_mtime,
			source_size = excluded.source_size,
			updated_at = excluded.updated_at`,
		doc.DocID, doc.Source, doc.Pages, doc.Chunks, doc.SourceMtime, doc.SourceSize, now, now,
	)
	if err != nil {
		return fmt.Errorf("record document %s: %w", doc.DocID, err)
	}
	return nil
}

// Get returns a document's row, or (nil, nil) when it is not registered.
func (c *Catalog) Get(ctx context.Context, docID string) (*Document, error) {
	var doc Document
	err := c.db.QueryRowContext(ctx,
		`SELECT doc_id, source, pages, chunks, source_mtime, source_size, created_at, updated_at
		 FROM documents WHERE doc_id = ?`, docID,
	).Scan(&doc.DocID, &doc.Source, &doc.Pages, &doc.Chunks,
		&doc.SourceMtime, &doc.SourceSize, &doc.CreatedAt, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", docID, err)
	}
	return &doc, nil
}

// Delete removes a document's row. Deleting an unregistered document is a no-op.
func (c *Catalog) Delete(ctx context.Context, docID string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("delete document %s: %w", docID, err)
	}
	return nil
}

// Count returns the number of registered documents.
func (c *Catalog) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// CountChunks returns the total chunk count across all documents.
func (c *Catalog) CountChunks(ctx context.Context) (int64, error) {
	var n int64
	if err := c.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(chunks), 0) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// List returns all registered documents ordered by doc_id.
func (c *Catalog) List(ctx context.Context) ([]Document, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT doc_id, source, pages, chunks, source_mtime, source_size, created_at, updated_at
		 FROM documents ORDER BY doc_id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.DocID, &doc.Source, &doc.Pages, &doc.Chunks,
			&doc.SourceMtime, &doc.SourceSize, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}
