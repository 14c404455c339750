package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// DefaultPath is the config file the CLI reads when --config is not given.
const DefaultPath = ".casechat.yml"

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .casechat.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to casechat! Let's configure your document chat.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{"openai", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	provider := ProviderType(providerStr)
	preset := GetPreset(provider)
	cfg.LLM.Provider = provider
	cfg.LLM.Model = preset.Model
	cfg.Embedding.Provider = provider
	cfg.Embedding.Model = preset.EmbeddingModel

	// 2. Vector store.
	storePrompt := promptui.Select{
		Label: "Select vector store",
		Items: []string{"chromem", "qdrant"},
	}
	_, storeStr, err := storePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("vector store selection: %w", err)
	}
	cfg.VectorStore.Type = StoreType(storeStr)
	if cfg.VectorStore.Type == StoreQdrant {
		urlPrompt := promptui.Prompt{
			Label:   "Qdrant URL",
			Default: cfg.VectorStore.QdrantURL,
		}
		if cfg.VectorStore.QdrantURL, err = urlPrompt.Run(); err != nil {
			return nil, fmt.Errorf("qdrant url: %w", err)
		}
	}

	// 3. Index name and namespace.
	indexPrompt := promptui.Prompt{
		Label:    "Index name",
		Default:  cfg.VectorStore.IndexName,
		Validate: nonEmpty,
	}
	if cfg.VectorStore.IndexName, err = indexPrompt.Run(); err != nil {
		return nil, fmt.Errorf("index name: %w", err)
	}
	nsPrompt := promptui.Prompt{
		Label:    "Namespace",
		Default:  cfg.VectorStore.Namespace,
		Validate: nonEmpty,
	}
	if cfg.VectorStore.Namespace, err = nsPrompt.Run(); err != nil {
		return nil, fmt.Errorf("namespace: %w", err)
	}

	// 4. Corpus directory.
	corpusPrompt := promptui.Prompt{
		Label:   "Directory containing PDF/DOCX files",
		Default: cfg.Ingest.CorpusDir,
	}
	if cfg.Ingest.CorpusDir, err = corpusPrompt.Run(); err != nil {
		return nil, fmt.Errorf("corpus dir: %w", err)
	}

	// 5. Extra exclude patterns.
	excludePrompt := promptui.Prompt{
		Label:   "Extra exclude patterns (comma-separated, leave blank for defaults)",
		Default: "",
	}
	excludeStr, err := excludePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("exclude patterns: %w", err)
	}
	if excludeStr != "" {
		cfg.Ingest.Exclude = append(cfg.Ingest.Exclude, splitAndTrim(excludeStr)...)
	}

	// 6. Top-K.
	topKPrompt := promptui.Prompt{
		Label:   "Source documents per answer",
		Default: strconv.Itoa(cfg.Chat.TopK),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return fmt.Errorf("must be a positive integer")
			}
			return nil
		},
	}
	topK, err := topKPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("top k: %w", err)
	}
	cfg.Chat.TopK, _ = strconv.Atoi(topK)

	if v := APIKeyEnvVar(provider); v != "" && os.Getenv(v) == "" {
		fmt.Printf("\nNote: Set %s in your environment (or .env) before running casechat ingest.\n", v)
	}
	if cfg.VectorStore.Type == StoreQdrant && os.Getenv(QdrantAPIKeyEnvVar) == "" {
		fmt.Printf("Note: Set %s in your environment (or .env).\n", QdrantAPIKeyEnvVar)
	}

	if err := cfg.Save(DefaultPath); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", DefaultPath)
	return cfg, nil
}

func nonEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("value is required")
	}
	return nil
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if token := strings.TrimSpace(part); token != "" {
			result = append(result, token)
		}
	}
	return result
}
