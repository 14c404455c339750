package config

// ModelPreset describes the models to use for a provider.
type ModelPreset struct {
	Model          string
	EmbeddingModel string
}

var modelPresets = map[ProviderType]ModelPreset{
	ProviderOpenAI: {Model: "gpt-3.5-turbo", EmbeddingModel: "text-embedding-ada-002"},
	ProviderOllama: {Model: "llama3", EmbeddingModel: "nomic-embed-text"},
}

// DefaultExcludes are glob patterns excluded from ingestion by default.
var DefaultExcludes = []string{
	".git/**",
	"node_modules/**",
	"**/~$*",
	"**/.DS_Store",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    ProviderOpenAI,
			Model:       "gpt-3.5-turbo",
			Temperature: 0,
		},
		Embedding: EmbeddingConfig{
			Provider:  ProviderOpenAI,
			Model:     "text-embedding-ada-002",
			BatchSize: 100,
		},
		VectorStore: VectorStoreConfig{
			Type:      StoreChromem,
			IndexName: "casechat",
			Namespace: "pdf-test",
			Dir:       ".casechat",
			QdrantURL: "http://localhost:6333",
		},
		Ingest: IngestConfig{
			CorpusDir:    "docs",
			Include:      []string{"**"},
			Exclude:      DefaultExcludes,
			MaxFileSize:  50 << 20,
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		Chat: ChatConfig{
			TopK:     2,
			Language: "中文",
		},
		Server: ServerConfig{
			Port: 3000,
		},
		DBPath: ".casechat/casechat.db",
	}
}

// GetPreset returns the model preset for the given provider.
// Returns the OpenAI preset if the provider is unknown.
func GetPreset(provider ProviderType) ModelPreset {
	if p, ok := modelPresets[provider]; ok {
		return p
	}
	return modelPresets[ProviderOpenAI]
}
