package oracle

import (
	"context"
	"errors"
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"

	"github.com/kestrelmem/noetic/internal/resilience"
)

// AnthropicConfig configures an AnthropicOracle.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int64
	RateLimit rate.Limit
	Burst     int
}

// AnthropicOracle calls the Anthropic Messages API via the official SDK.
type AnthropicOracle struct {
	sdk       anthropic.Client
	model     string
	maxTokens int64
	breaker   *resilience.CircuitBreaker
	limiter   *rate.Limiter
}

// NewAnthropicOracle builds an oracle against the Anthropic Messages API,
// defaulting to the latest Haiku model for low-cost enrichment calls.
func NewAnthropicOracle(cfg AnthropicConfig) *AnthropicOracle {
	if cfg.Model == "" {
		cfg.Model = "claude-haiku-4-5-20251001"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 2
	}
	if cfg.Burst == 0 {
		cfg.Burst = 4
	}
	return &AnthropicOracle{
		sdk:       anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		breaker:   resilience.New("oracle-anthropic"),
		limiter:   rate.NewLimiter(cfg.RateLimit, cfg.Burst),
	}
}

func (a *AnthropicOracle) Complete(ctx context.Context, prompt string) (string, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("oracle: rate limiter: %w", err)
	}

	result, err := a.breaker.Execute(ctx, func() (interface{}, error) {
		return a.sdk.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(a.model),
			MaxTokens: a.maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return "", fmt.Errorf("oracle: anthropic circuit open: %w", err)
		}
		return "", fmt.Errorf("oracle: anthropic request: %w", err)
	}

	resp := result.(*anthropic.Message)
	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("oracle: anthropic returned no text content")
}

func (a *AnthropicOracle) IsAvailable(ctx context.Context) bool {
	return a.breaker.State() != "open"
}

func (a *AnthropicOracle) Model() string { return a.model }

var _ Oracle = (*AnthropicOracle)(nil)
