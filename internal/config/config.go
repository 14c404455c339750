package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "CASECHAT_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (CASECHAT_*). Nested keys are separated
// by a double underscore: CASECHAT_LLM__MODEL -> llm.model.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validProviders = map[ProviderType]bool{
	ProviderOpenAI: true,
	ProviderOllama: true,
}

var validStores = map[StoreType]bool{
	StoreChromem: true,
	StoreQdrant:  true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if !validProviders[c.LLM.Provider] {
		return fmt.Errorf("invalid llm.provider %q: must be one of openai, ollama", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}

	if !validProviders[c.Embedding.Provider] {
		return fmt.Errorf("invalid embedding.provider %q: must be one of openai, ollama", c.Embedding.Provider)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding.batch_size must be positive")
	}

	if !validStores[c.VectorStore.Type] {
		return fmt.Errorf("invalid vector_store.type %q: must be one of chromem, qdrant", c.VectorStore.Type)
	}
	if c.VectorStore.IndexName == "" {
		return fmt.Errorf("vector_store.index_name is required")
	}
	if c.VectorStore.Namespace == "" {
		return fmt.Errorf("vector_store.namespace is required")
	}

	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be positive")
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be in [0, chunk_size)")
	}

	if c.Chat.TopK <= 0 {
		return fmt.Errorf("chat.top_k must be positive")
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range")
	}

	return nil
}

// RequireCredentials checks that every API key the configured services
// need is present in the environment.
func (c *Config) RequireCredentials() error {
	for _, p := range []ProviderType{c.LLM.Provider, c.Embedding.Provider} {
		if v := APIKeyEnvVar(p); v != "" && os.Getenv(v) == "" {
			return fmt.Errorf("%s is not set", v)
		}
	}
	if c.VectorStore.Type == StoreQdrant && os.Getenv(QdrantAPIKeyEnvVar) == "" {
		return fmt.Errorf("%s is not set", QdrantAPIKeyEnvVar)
	}
	return nil
}

// QdrantAPIKeyEnvVar holds the Qdrant API key.
const QdrantAPIKeyEnvVar = "QDRANT_API_KEY"

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}
