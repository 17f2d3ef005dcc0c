package embedder

import "fmt"

// Config selects and configures an embedding provider.
type Config struct {
	Provider   string // "ollama", "openai", "hash"
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
}

// New builds the Embedder matching cfg.Provider. An empty provider
// string selects ollama.
func New(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		}), nil
	case "ollama", "":
		return NewOllamaEmbedder(OllamaConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		}), nil
	case "hash":
		return NewHashEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("embedder: unsupported provider %q", cfg.Provider)
	}
}
