package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.LLM.Provider != ProviderOpenAI {
		t.Errorf("expected default provider %q, got %q", ProviderOpenAI, cfg.LLM.Provider)
	}
	if cfg.LLM.Temperature != 0 {
		t.Errorf("expected default temperature 0, got %f", cfg.LLM.Temperature)
	}
	if cfg.VectorStore.Namespace != "pdf-test" {
		t.Errorf("expected default namespace %q, got %q", "pdf-test", cfg.VectorStore.Namespace)
	}
	if cfg.Ingest.CorpusDir != "docs" {
		t.Errorf("expected default corpus_dir %q, got %q", "docs", cfg.Ingest.CorpusDir)
	}
	if cfg.Ingest.ChunkSize != 1000 || cfg.Ingest.ChunkOverlap != 200 {
		t.Errorf("expected chunking 1000/200, got %d/%d", cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	}
	if cfg.Chat.TopK != 2 {
		t.Errorf("expected default top_k 2, got %d", cfg.Chat.TopK)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.casechat.yml")

	original := DefaultConfig()
	original.LLM.Model = "gpt-4o"
	original.VectorStore.Type = StoreQdrant
	original.VectorStore.Namespace = "contracts"
	original.Ingest.Include = []string{"**/*.pdf", "**/*.docx"}
	original.Chat.TopK = 4

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.LLM.Model != original.LLM.Model {
		t.Errorf("model: got %q, want %q", loaded.LLM.Model, original.LLM.Model)
	}
	if loaded.VectorStore.Type != StoreQdrant {
		t.Errorf("vector_store.type: got %q, want %q", loaded.VectorStore.Type, StoreQdrant)
	}
	if loaded.VectorStore.Namespace != "contracts" {
		t.Errorf("namespace: got %q, want %q", loaded.VectorStore.Namespace, "contracts")
	}
	if loaded.Chat.TopK != 4 {
		t.Errorf("top_k: got %d, want 4", loaded.Chat.TopK)
	}
	if len(loaded.Ingest.Include) != 2 {
		t.Fatalf("include length: got %d, want 2", len(loaded.Ingest.Include))
	}
	for i, v := range loaded.Ingest.Include {
		if v != original.Ingest.Include[i] {
			t.Errorf("include[%d]: got %q, want %q", i, v, original.Ingest.Include[i])
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent.yml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.LLM.Provider != ProviderOpenAI {
		t.Errorf("expected default provider, got %q", cfg.LLM.Provider)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yml")
	if err := DefaultConfig().Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv("CASECHAT_LLM__MODEL", "gpt-4o-mini")
	t.Setenv("CASECHAT_VECTOR_STORE__NAMESPACE", "leases")
	t.Setenv("CASECHAT_DB_PATH", "/tmp/x.db")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.LLM.Model != "gpt-4o-mini" {
		t.Errorf("env override failed: got %q", loaded.LLM.Model)
	}
	if loaded.VectorStore.Namespace != "leases" {
		t.Errorf("nested env override failed: got %q", loaded.VectorStore.Namespace)
	}
	if loaded.DBPath != "/tmp/x.db" {
		t.Errorf("top-level env override failed: got %q", loaded.DBPath)
	}
}

func TestValidateValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got: %v", err)
	}
}

func TestValidateInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad provider", func(c *Config) { c.LLM.Provider = "invalid" }},
		{"empty model", func(c *Config) { c.LLM.Model = "" }},
		{"bad temperature", func(c *Config) { c.LLM.Temperature = 3 }},
		{"bad embedding provider", func(c *Config) { c.Embedding.Provider = "x" }},
		{"zero batch", func(c *Config) { c.Embedding.BatchSize = 0 }},
		{"bad store", func(c *Config) { c.VectorStore.Type = "pinecone" }},
		{"empty index", func(c *Config) { c.VectorStore.IndexName = "" }},
		{"empty namespace", func(c *Config) { c.VectorStore.Namespace = "" }},
		{"zero chunk size", func(c *Config) { c.Ingest.ChunkSize = 0 }},
		{"overlap too large", func(c *Config) { c.Ingest.ChunkOverlap = c.Ingest.ChunkSize }},
		{"zero top k", func(c *Config) { c.Chat.TopK = 0 }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestRequireCredentials(t *testing.T) {
	cfg := DefaultConfig()

	t.Setenv("OPENAI_API_KEY", "")
	if err := cfg.RequireCredentials(); err == nil {
		t.Error("expected error when OPENAI_API_KEY is missing")
	}

	t.Setenv("OPENAI_API_KEY", "sk-test")
	if err := cfg.RequireCredentials(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.VectorStore.Type = StoreQdrant
	t.Setenv("QDRANT_API_KEY", "")
	if err := cfg.RequireCredentials(); err == nil {
		t.Error("expected error when QDRANT_API_KEY is missing")
	}

	cfg.LLM.Provider = ProviderOllama
	cfg.Embedding.Provider = ProviderOllama
	cfg.VectorStore.Type = StoreChromem
	t.Setenv("OPENAI_API_KEY", "")
	if err := cfg.RequireCredentials(); err != nil {
		t.Errorf("ollama + chromem needs no keys, got: %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	if p := GetPreset(ProviderOllama); p.Model != "llama3" {
		t.Errorf("expected llama3, got %q", p.Model)
	}
	if p := GetPreset("unknown"); p.Model != "gpt-3.5-turbo" {
		t.Errorf("expected fallback to gpt-3.5-turbo, got %q", p.Model)
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	tests := []struct {
		provider ProviderType
		want     string
	}{
		{ProviderOpenAI, "OPENAI_API_KEY"},
		{ProviderOllama, ""},
	}
	for _, tt := range tests {
		if got := APIKeyEnvVar(tt.provider); got != tt.want {
			t.Errorf("APIKeyEnvVar(%q) = %q, want %q", tt.provider, got, tt.want)
		}
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"**/*.pdf", []string{"**/*.pdf"}},
		{"", nil},
		{"  ,  , ", nil},
	}
	for _, tt := range tests {
		got := splitAndTrim(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("splitAndTrim(%q) len = %d, want %d", tt.input, len(got), len(tt.want))
			continue
		}
		for i, v := range got {
			if v != tt.want[i] {
				t.Errorf("splitAndTrim(%q)[%d] = %q, want %q", tt.input, i, v, tt.want[i])
			}
		}
	}
}
