package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 10
	}
	if cfg.Embedding.BatchDelayMs == 0 {
		cfg.Embedding.BatchDelayMs = 200
	}
	if cfg.Embedding.MaxRetries == 0 {
		cfg.Embedding.MaxRetries = 3
	}
	if cfg.Embedding.TimeoutSecs == 0 {
		cfg.Embedding.TimeoutSecs = 30
	}
	if cfg.Generation.APIKeyEnv == "" {
		cfg.Generation.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gpt-4o-mini"
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = 0.1
	}
	if cfg.Generation.MaxRetries == 0 {
		cfg.Generation.MaxRetries = 3
	}
	if cfg.Generation.TimeoutSecs == 0 {
		cfg.Generation.TimeoutSecs = 60
	}
	if cfg.VectorStore.APIKeyEnv == "" {
		cfg.VectorStore.APIKeyEnv = "QDRANT_API_KEY"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "documents"
	}
	if cfg.VectorStore.TimeoutSecs == 0 {
		cfg.VectorStore.TimeoutSecs = 30
	}
	if cfg.Ingest.MaxPDFMB == 0 {
		cfg.Ingest.MaxPDFMB = 50
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 800
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 100
	}
	if cfg.Query.DefaultTopK == 0 {
		cfg.Query.DefaultTopK = 5
	}
	if cfg.Registry.DatabasePath == "" {
		cfg.Registry.DatabasePath = "./data/registry.db"
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".pdf", ".txt", ".md", ".rst", ".docx", ".xlsx"}
	}
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
