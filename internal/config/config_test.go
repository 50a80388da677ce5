package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "debug: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug not parsed")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port default: %d", cfg.Server.Port)
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("dimensions default: %d", cfg.Embedding.Dimensions)
	}
	if cfg.Ingest.ChunkSize != 800 || cfg.Ingest.ChunkOverlap != 100 {
		t.Errorf("chunk defaults: %d/%d", cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	}
	if cfg.VectorStore.Collection != "documents" {
		t.Errorf("collection default: %q", cfg.VectorStore.Collection)
	}
	if cfg.Query.DefaultTopK != 5 {
		t.Errorf("top_k default: %d", cfg.Query.DefaultTopK)
	}
}

func TestLoad_ExplicitValuesWin(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 9090
embedding:
  model: custom-model
  dimensions: 768
vector_store:
  url: http://qdrant:6333
  collection: docs
ingest:
  chunk_size: 400
  chunk_overlap: 40
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9090 {
		t.Errorf("server: %+v", cfg.Server)
	}
	if cfg.Embedding.Model != "custom-model" || cfg.Embedding.Dimensions != 768 {
		t.Errorf("embedding: %+v", cfg.Embedding)
	}
	if cfg.VectorStore.URL != "http://qdrant:6333" || cfg.VectorStore.Collection != "docs" {
		t.Errorf("vector store: %+v", cfg.VectorStore)
	}
	if cfg.Ingest.ChunkSize != 400 || cfg.Ingest.ChunkOverlap != 40 {
		t.Errorf("ingest: %+v", cfg.Ingest)
	}
}

func TestLoad_ExpandsRelativePaths(t *testing.T) {
	path := writeConfig(t, `
registry:
  database_path: ./data/registry.db
watch:
  directories:
    - ./inbox
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Dir(path)
	if cfg.Registry.DatabasePath != filepath.Join(dir, "data/registry.db") {
		t.Errorf("database path: %q", cfg.Registry.DatabasePath)
	}
	if cfg.Watch.Directories[0] != filepath.Join(dir, "inbox") {
		t.Errorf("watch dir: %q", cfg.Watch.Directories[0])
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port: %d", cfg.Server.Port)
	}
}

func TestAPIKey_FromEnv(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "secret123")
	e := EmbeddingConfig{APIKeyEnv: "TEST_EMBED_KEY"}
	if e.APIKey() != "secret123" {
		t.Errorf("key: %q", e.APIKey())
	}

	t.Setenv("TEST_FALLBACK_KEY", "fallback456")
	g := GenerationConfig{APIKeyEnv: "UNSET_VAR_XYZ"}
	if g.APIKey("TEST_FALLBACK_KEY") != "fallback456" {
		t.Error("fallback key not used")
	}
}

func TestRecursiveOrDefault(t *testing.T) {
	var w WatchConfig
	if !w.RecursiveOrDefault() {
		t.Error("unset should default to true")
	}
	f := false
	w.Recursive = &f
	if w.RecursiveOrDefault() {
		t.Error("explicit false ignored")
	}
}

func TestWatchDefaults(t *testing.T) {
	path := writeConfig(t, "watch:\n  directories:\n    - /tmp/inbox\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Watch.Extensions) == 0 {
		t.Error("extension defaults not applied")
	}
	if cfg.Watch.Recursive == nil || !*cfg.Watch.Recursive {
		t.Error("recursive default not applied")
	}
}
