package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"github.com/kestrelmem/noetic/internal/resilience"
)

// OpenAIConfig configures an OpenAIOracle. BaseURL lets this client target
// any OpenAI-compatible chat completions endpoint (OpenRouter, vLLM,
// LocalAI).
type OpenAIConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	RateLimit rate.Limit
	Burst     int
}

// OpenAIOracle calls the chat completions endpoint via the official SDK.
type OpenAIOracle struct {
	client  openai.Client
	model   string
	breaker *resilience.CircuitBreaker
	limiter *rate.Limiter
}

// NewOpenAIOracle builds an oracle against OpenAI's (or a compatible)
// chat completions endpoint.
func NewOpenAIOracle(cfg OpenAIConfig) *OpenAIOracle {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 2
	}
	if cfg.Burst == 0 {
		cfg.Burst = 4
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIOracle{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		breaker: resilience.New("oracle-openai"),
		limiter: rate.NewLimiter(cfg.RateLimit, cfg.Burst),
	}
}

func (o *OpenAIOracle) Complete(ctx context.Context, prompt string) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("oracle: rate limiter: %w", err)
	}

	result, err := o.breaker.Execute(ctx, func() (interface{}, error) {
		return o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:    o.model,
			Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		})
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return "", fmt.Errorf("oracle: openai circuit open: %w", err)
		}
		return "", fmt.Errorf("oracle: openai request: %w", err)
	}

	resp := result.(*openai.ChatCompletion)
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("oracle: openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAIOracle) IsAvailable(ctx context.Context) bool {
	return o.breaker.State() != "open"
}

func (o *OpenAIOracle) Model() string { return o.model }

var _ Oracle = (*OpenAIOracle)(nil)
