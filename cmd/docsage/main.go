// Package main is the docsage CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/docsage/docsage/internal/answer"
	"github.com/docsage/docsage/internal/config"
	"github.com/docsage/docsage/internal/embedding"
	"github.com/docsage/docsage/internal/extract"
	"github.com/docsage/docsage/internal/fileid"
	"github.com/docsage/docsage/internal/ingest"
	"github.com/docsage/docsage/internal/query"
	"github.com/docsage/docsage/internal/registry"
	"github.com/docsage/docsage/internal/server"
	"github.com/docsage/docsage/internal/vectorstore"
	"github.com/docsage/docsage/internal/watcher"
	"github.com/docsage/docsage/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/docsage/config.yaml"

func main() {
	// A .env next to the binary is a development convenience; missing is fine.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "ask":
		runAsk()
	case "delete":
		runDelete()
	case "stats":
		runStats()
	case "version", "--version", "-v":
		fmt.Printf("docsage version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`docsage - document question answering over a vector store

Usage: docsage <command> [flags]

Commands:
  server    start the HTTP API server
  ingest    ingest a file through a running server
  ask       ask a question through a running server
  delete    remove a document through a running server
  stats     show collection statistics
  version   print version
  help      show this help
`)
}

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory wins, so running from the project dir picks up the
// project's config.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// components holds everything the server wires together.
type components struct {
	Store    vectorstore.Store
	Catalog  *registry.Catalog
	Ingestor *ingest.Ingestor
	Querier  *query.Querier
}

func (c *components) Close() {
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	embedder, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     cfg.Embedding.APIKey(),
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		BatchSize:  cfg.Embedding.BatchSize,
		MaxRetries: cfg.Embedding.MaxRetries,
		BatchDelay: time.Duration(cfg.Embedding.BatchDelayMs) * time.Millisecond,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSecs) * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("embedding client: %w", err)
	}

	llm, err := answer.NewOpenAILLM(answer.OpenAIConfig{
		BaseURL:     cfg.Generation.BaseURL,
		APIKey:      cfg.Generation.APIKey(cfg.Embedding.APIKeyEnv),
		Model:       cfg.Generation.Model,
		Temperature: cfg.Generation.Temperature,
		MaxRetries:  cfg.Generation.MaxRetries,
		Timeout:     time.Duration(cfg.Generation.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("generation client: %w", err)
	}

	var store vectorstore.Store
	if cfg.VectorStore.URL != "" {
		store = vectorstore.NewQdrant(vectorstore.QdrantConfig{
			URL:        cfg.VectorStore.URL,
			APIKey:     cfg.VectorStore.APIKey(),
			Collection: cfg.VectorStore.Collection,
			Timeout:    time.Duration(cfg.VectorStore.TimeoutSecs) * time.Second,
		}, logger)
	} else {
		logger.Warn("no vector store URL configured, using in-memory store")
		store = vectorstore.NewMemory()
	}
	if err := store.EnsureCollection(ctx, cfg.Embedding.Dimensions); err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}

	catalog, err := registry.Open(cfg.Registry.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	ingestor := ingest.New(embedder, store, extract.NewExtractor(), catalog, ingest.Options{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
		MaxPDFBytes:  int64(cfg.Ingest.MaxPDFMB) << 20,
	}, logger)

	generator := answer.NewGenerator(llm, answer.DefaultConfig(), logger)
	querier := query.New(embedder, store, generator, cfg.Query.DefaultTopK, logger)

	return &components{
		Store:    store,
		Catalog:  catalog,
		Ingestor: ingestor,
		Querier:  querier,
	}, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedPath),
		zap.Bool("debug", debugMode))

	ctx := context.Background()
	comps, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	watchCtx, watchCancel := context.WithCancel(ctx)
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if len(cfg.Watch.Directories) > 0 {
		watchSvc = watcher.New(watcher.Config{
			Roots:      cfg.Watch.Directories,
			Extensions: cfg.Watch.Extensions,
			Recursive:  cfg.Watch.RecursiveOrDefault(),
		},
			func(path string) { ingestWatchedFile(watchCtx, comps.Ingestor, path, logger) },
			func(path string) {
				if err := comps.Ingestor.Delete(watchCtx, fileid.DocID(path)); err != nil {
					logger.Warn("watch delete failed", zap.String("path", path), zap.Error(err))
				}
			},
			logger)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		go watchSvc.SyncExistingFiles()
	}

	srv := server.New(comps.Ingestor, comps.Querier, comps.Store, comps.Catalog, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchSvc.Stop()
	}
	watchCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

// ingestWatchedFile ingests one file picked up by the watcher, skipping files
// the registry already has at the same mtime and size.
func ingestWatchedFile(ctx context.Context, ingestor *ingest.Ingestor, path string, logger *zap.Logger) {
	info, err := os.Stat(path)
	if err != nil {
		logger.Warn("watched file unreadable", zap.String("path", path), zap.Error(err))
		return
	}
	docID := fileid.DocID(path)
	if ingestor.Unchanged(ctx, docID, info.ModTime().Unix(), info.Size()) {
		return
	}
	content, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("watched file unreadable", zap.String("path", path), zap.Error(err))
		return
	}
	req := ingest.Request{
		DocID:       docID,
		Overwrite:   true,
		Source:      path,
		SourceMtime: info.ModTime().Unix(),
		SourceSize:  info.Size(),
	}
	if _, err := ingestor.IngestContent(ctx, req, content, filepath.Ext(path)); err != nil {
		logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
	}
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	docID := fs.String("doc-id", "", "document ID (default: derived from file name)")
	overwrite := fs.Bool("overwrite", false, "replace an existing document with the same ID")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: docsage ingest [flags] <file.pdf>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", path, err)
		os.Exit(1)
	}
	id := *docID
	if id == "" {
		id = docIDFromFilename(path)
	}

	body := map[string]any{
		"doc_id":     id,
		"pdf_base64": base64.StdEncoding.EncodeToString(content),
		"overwrite":  *overwrite,
	}
	var resp map[string]any
	if err := postJSON(*serverURL+"/ingest", body, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Ingested %q: %v chunks over %v pages\n", id, resp["total_chunks"], resp["total_pages"])
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	topK := fs.Int("top-k", 0, "number of chunks to retrieve (0 = server default)")
	docID := fs.String("doc-id", "", "restrict search to one document")
	minScore := fs.Float64("min-score", 0, "minimum relevance score")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: docsage ask [flags] <question>")
		os.Exit(1)
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))

	body := map[string]any{"question": question}
	if *topK > 0 {
		body["top_k"] = *topK
	}
	if *docID != "" {
		body["doc_id"] = *docID
	}
	if *minScore > 0 {
		body["min_score"] = *minScore
	}
	var resp struct {
		Answer struct {
			Text       string  `json:"text"`
			Confidence float64 `json:"confidence"`
			Sources    []struct {
				DocID     string  `json:"doc_id"`
				Page      int     `json:"page"`
				Relevance float64 `json:"relevanceScore"`
			} `json:"sources"`
		} `json:"answer"`
		TotalResults int `json:"total_results"`
	}
	if err := postJSON(*serverURL+"/query", body, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(resp.Answer.Text)
	if len(resp.Answer.Sources) > 0 {
		fmt.Printf("\nSources (confidence %.2f):\n", resp.Answer.Confidence)
		for _, src := range resp.Answer.Sources {
			fmt.Printf("  %s p.%d (%.0f%%)\n", src.DocID, src.Page, src.Relevance*100)
		}
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: docsage delete [flags] <doc-id>")
		os.Exit(1)
	}
	docID := fs.Arg(0)
	req, err := http.NewRequest(http.MethodDelete, *serverURL+"/documents/"+docID, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
		os.Exit(1)
	}
	if err := doRequest(req, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted %q\n", docID)
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	var resp map[string]any
	req, err := http.NewRequest(http.MethodGet, *serverURL+"/query/stats", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
		os.Exit(1)
	}
	if err := doRequest(req, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
		os.Exit(1)
	}
	out, _ := json.MarshalIndent(resp["collection_stats"], "", "  ")
	fmt.Println(string(out))
}

// docIDFromFilename derives a readable document ID from a file's base name.
func docIDFromFilename(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '-'
		}
	}, base)
	if len(base) > 200 {
		base = base[:200]
	}
	if base == "" {
		base = "document"
	}
	return base
}

func postJSON(url string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return doRequest(req, out)
}

func doRequest(req *http.Request, out any) error {
	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (%s)", apiErr.Error, apiErr.Code)
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}
