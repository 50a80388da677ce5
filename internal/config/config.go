// Package config provides configuration loading for the docsage server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool              `yaml:"debug"`
	Server      ServerConfig      `yaml:"server"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Generation  GenerationConfig  `yaml:"generation"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Query       QueryConfig       `yaml:"query"`
	Registry    RegistryConfig    `yaml:"registry"`
	Watch       WatchConfig       `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// EmbeddingConfig holds settings for the remote embedding API. The API key is
// read from the environment variable named by APIKeyEnv, never from the file.
type EmbeddingConfig struct {
	BaseURL      string `yaml:"base_url"`
	APIKeyEnv    string `yaml:"api_key_env"`
	Model        string `yaml:"model"`
	Dimensions   int    `yaml:"dimensions"`
	BatchSize    int    `yaml:"batch_size"`
	BatchDelayMs int    `yaml:"batch_delay_ms"`
	MaxRetries   int    `yaml:"max_retries"`
	TimeoutSecs  int    `yaml:"timeout_secs"`
}

// APIKey resolves the embedding API key from the environment.
func (e *EmbeddingConfig) APIKey() string {
	return os.Getenv(e.APIKeyEnv)
}

// GenerationConfig holds settings for the remote generation API.
type GenerationConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxRetries  int     `yaml:"max_retries"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// APIKey resolves the generation API key from the environment. Falls back to
// the embedding key so one provider needs only one variable.
func (g *GenerationConfig) APIKey(fallbackEnv string) string {
	if key := os.Getenv(g.APIKeyEnv); key != "" {
		return key
	}
	return os.Getenv(fallbackEnv)
}

// VectorStoreConfig holds Qdrant connection settings. An empty URL selects
// the in-memory store (testing and local development only — nothing survives
// a restart).
type VectorStoreConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// APIKey resolves the vector store API key from the environment.
func (v *VectorStoreConfig) APIKey() string {
	return os.Getenv(v.APIKeyEnv)
}

// IngestConfig holds ingestion pipeline settings.
type IngestConfig struct {
	MaxPDFMB     int `yaml:"max_pdf_mb"`
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// QueryConfig holds query pipeline settings.
type QueryConfig struct {
	DefaultTopK int `yaml:"default_top_k"`
}

// RegistryConfig holds the document registry settings.
type RegistryConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies
// defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Registry.DatabasePath = expandPath(cfg.Registry.DatabasePath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}
	return &cfg, nil
}

// LoadOrDefault loads path when it exists, otherwise returns a default config.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		var cfg Config
		ApplyDefaults(&cfg)
		return &cfg, nil
	}
	return Load(path)
}

// expandPath converts a path to absolute. Paths starting with "./" are
// relative to configDir; other relative paths are relative to the home
// directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
