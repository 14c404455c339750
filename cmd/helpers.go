package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/casechat/casechat/internal/chat"
	"github.com/casechat/casechat/internal/config"
	"github.com/casechat/casechat/internal/db"
	"github.com/casechat/casechat/internal/embeddings"
	"github.com/casechat/casechat/internal/ledger"
	"github.com/casechat/casechat/internal/llm"
	"github.com/casechat/casechat/internal/vectordb"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `casechat init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// loadConfigWithCredentials is loadConfig plus the API-key check required
// before any command that calls a model or the index.
func loadConfigWithCredentials() (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireCredentials(); err != nil {
		return nil, fmt.Errorf("missing credentials: %w", err)
	}
	return cfg, nil
}

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	model := cfg.Embedding.Model
	if model == "" {
		model = config.GetPreset(cfg.Embedding.Provider).EmbeddingModel
	}
	return embeddings.NewEmbedder(string(cfg.Embedding.Provider), model, cfg.Embedding.BaseURL, cfg.Embedding.BatchSize)
}

// createLLMProviderFromConfig creates an LLM provider based on config settings.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	model := cfg.LLM.Model
	if model == "" {
		model = config.GetPreset(cfg.LLM.Provider).Model
	}
	return llm.NewProvider(string(cfg.LLM.Provider), model, cfg.LLM.BaseURL)
}

// openStoreFromConfig opens the configured vector store backend.
func openStoreFromConfig(cfg *config.Config, embedder embeddings.Embedder) (vectordb.VectorStore, error) {
	switch cfg.VectorStore.Type {
	case config.StoreQdrant:
		return vectordb.NewQdrantStore(vectordb.QdrantConfig{
			URL:        cfg.VectorStore.QdrantURL,
			APIKey:     os.Getenv(config.QdrantAPIKeyEnvVar),
			Collection: cfg.VectorStore.IndexName,
		}), nil
	default:
		dir := filepath.Join(cfg.VectorStore.Dir, "vectordb")
		store, err := vectordb.NewChromemStore(dir, cfg.VectorStore.IndexName, embedder)
		if err != nil {
			return nil, fmt.Errorf("opening vector store in %s: %w", dir, err)
		}
		return store, nil
	}
}

// openLedger opens the ingestion ledger database. The caller closes it.
func openLedger(cfg *config.Config) (*ledger.Store, *db.DB, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return ledger.NewStore(database), database, nil
}

// createChainFromConfig wires the retrieval chain and returns it with the
// store it queries.
func createChainFromConfig(cfg *config.Config) (*chat.Chain, vectordb.VectorStore, error) {
	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating embedder: %w", err)
	}
	store, err := openStoreFromConfig(cfg, embedder)
	if err != nil {
		return nil, nil, err
	}
	provider, err := createLLMProviderFromConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating LLM provider: %w", err)
	}

	chain := chat.NewChain(provider, embedder, store, chat.Options{
		Namespace:   cfg.VectorStore.Namespace,
		K:           cfg.Chat.TopK,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Language:    cfg.Chat.Language,
	})
	return chain, store, nil
}
