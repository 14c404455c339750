package llm

import (
	"fmt"
	"os"
)

// DefaultOllamaHost is used when neither a base URL nor OLLAMA_HOST is set.
const DefaultOllamaHost = "http://localhost:11434"

// NewProvider creates a new LLM provider based on the given provider type and model.
// Supported provider types: "openai", "ollama". baseURL is optional.
func NewProvider(providerType, model, baseURL string) (Provider, error) {
	switch providerType {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		return NewOpenAIProvider(apiKey, model, baseURL), nil

	case "ollama":
		return NewOllamaProvider(OllamaHost(baseURL), model), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}

// OllamaHost resolves the Ollama endpoint from an explicit URL, then
// OLLAMA_HOST, then the local default.
func OllamaHost(baseURL string) string {
	if baseURL != "" {
		return baseURL
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		return host
	}
	return DefaultOllamaHost
}
