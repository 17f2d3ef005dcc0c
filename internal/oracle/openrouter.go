package oracle

import "golang.org/x/time/rate"

// NewOpenRouterOracle builds an oracle against OpenRouter's OpenAI-
// compatible chat completions endpoint. OpenRouter is API-compatible with
// OpenAI's chat completions surface, so this reuses OpenAIOracle with the
// base URL pinned rather than maintaining a second client.
func NewOpenRouterOracle(apiKey, model string, rateLimit rate.Limit, burst int) *OpenAIOracle {
	return NewOpenAIOracle(OpenAIConfig{
		APIKey:    apiKey,
		Model:     model,
		BaseURL:   "https://openrouter.ai/api/v1",
		RateLimit: rateLimit,
		Burst:     burst,
	})
}
