package config

// ProviderType identifies an LLM or embedding provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// StoreType identifies a vector store backend.
type StoreType string

const (
	StoreChromem StoreType = "chromem"
	StoreQdrant  StoreType = "qdrant"
)

// Config is the top-level casechat configuration, corresponding to .casechat.yml.
type Config struct {
	LLM         LLMConfig         `yaml:"llm" koanf:"llm"`
	Embedding   EmbeddingConfig   `yaml:"embedding" koanf:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vector_store" koanf:"vector_store"`
	Ingest      IngestConfig      `yaml:"ingest" koanf:"ingest"`
	Chat        ChatConfig        `yaml:"chat" koanf:"chat"`
	Server      ServerConfig      `yaml:"server" koanf:"server"`
	DBPath      string            `yaml:"db_path" koanf:"db_path"`
}

// LLMConfig selects the generation model.
type LLMConfig struct {
	Provider    ProviderType `yaml:"provider" koanf:"provider"`
	Model       string       `yaml:"model" koanf:"model"`
	BaseURL     string       `yaml:"base_url" koanf:"base_url"`
	Temperature float32      `yaml:"temperature" koanf:"temperature"`
}

// EmbeddingConfig selects the embedding model.
type EmbeddingConfig struct {
	Provider  ProviderType `yaml:"provider" koanf:"provider"`
	Model     string       `yaml:"model" koanf:"model"`
	BaseURL   string       `yaml:"base_url" koanf:"base_url"`
	BatchSize int          `yaml:"batch_size" koanf:"batch_size"`
}

// VectorStoreConfig locates the vector index.
type VectorStoreConfig struct {
	Type      StoreType `yaml:"type" koanf:"type"`
	IndexName string    `yaml:"index_name" koanf:"index_name"`
	Namespace string    `yaml:"namespace" koanf:"namespace"`
	Dir       string    `yaml:"dir" koanf:"dir"`
	QdrantURL string    `yaml:"qdrant_url" koanf:"qdrant_url"`
}

// IngestConfig controls corpus enumeration and chunking.
type IngestConfig struct {
	CorpusDir    string   `yaml:"corpus_dir" koanf:"corpus_dir"`
	Include      []string `yaml:"include" koanf:"include"`
	Exclude      []string `yaml:"exclude" koanf:"exclude"`
	MaxFileSize  int64    `yaml:"max_file_size" koanf:"max_file_size"`
	ChunkSize    int      `yaml:"chunk_size" koanf:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap" koanf:"chunk_overlap"`
}

// ChatConfig tunes the retrieval chain.
type ChatConfig struct {
	TopK     int    `yaml:"top_k" koanf:"top_k"`
	Language string `yaml:"language" koanf:"language"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int  `yaml:"port" koanf:"port"`
	AllowAllOrigins bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}
