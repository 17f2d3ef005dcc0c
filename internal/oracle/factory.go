package oracle

import "fmt"

// Config selects and configures an LLM oracle provider.
type Config struct {
	Provider string // "ollama", "openai", "anthropic", "openrouter", "" (none)
	APIKey   string
	Model    string
	BaseURL  string
}

// New builds the Oracle matching cfg.Provider. An empty or "none"
// provider returns NullOracle: the oracle is off unless configured.
func New(cfg Config) (Oracle, error) {
	switch cfg.Provider {
	case "", "none":
		return NullOracle{}, nil
	case "ollama":
		return NewOllamaOracle(OllamaConfig{BaseURL: cfg.BaseURL, Model: cfg.Model}), nil
	case "openai":
		return NewOpenAIOracle(OpenAIConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL}), nil
	case "anthropic":
		return NewAnthropicOracle(AnthropicConfig{APIKey: cfg.APIKey, Model: cfg.Model}), nil
	case "openrouter":
		return NewOpenRouterOracle(cfg.APIKey, cfg.Model, 0, 0), nil
	default:
		return nil, fmt.Errorf("oracle: unsupported provider %q", cfg.Provider)
	}
}
