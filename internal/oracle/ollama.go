package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/kestrelmem/noetic/internal/resilience"
)

// OllamaConfig configures an OllamaOracle.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	// RateLimit caps sustained requests per second; Burst allows short
	// bursts above that rate. Both default to values generous enough for
	// interactive use but that still protect a local Ollama instance from
	// a runaway dream cycle.
	RateLimit rate.Limit
	Burst     int
}

// OllamaOracle calls a local Ollama server's /api/generate endpoint.
type OllamaOracle struct {
	baseURL string
	model   string
	client  *http.Client
	breaker *resilience.CircuitBreaker
	limiter *rate.Limiter
	timeout time.Duration
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaOracle builds an oracle against a local Ollama instance.
func NewOllamaOracle(cfg OllamaConfig) *OllamaOracle {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "qwen2.5:7b"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 2
	}
	if cfg.Burst == 0 {
		cfg.Burst = 4
	}
	return &OllamaOracle{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: resilience.New("oracle-ollama"),
		limiter: rate.NewLimiter(cfg.RateLimit, cfg.Burst),
		timeout: cfg.Timeout,
	}
}

func (o *OllamaOracle) Complete(ctx context.Context, prompt string) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("oracle: rate limiter: %w", err)
	}

	result, err := o.breaker.Execute(ctx, func() (interface{}, error) {
		return o.complete(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return "", fmt.Errorf("oracle: ollama circuit open: %w", err)
		}
		return "", err
	}
	return result.(string), nil
}

func (o *OllamaOracle) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	body, err := json.Marshal(ollamaGenerateRequest{Model: o.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", fmt.Errorf("oracle: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("oracle: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("oracle: ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("oracle: ollama returned status %d: %s", resp.StatusCode, string(b))
	}

	var out ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("oracle: decode response: %w", err)
	}
	return out.Response, nil
}

func (o *OllamaOracle) IsAvailable(ctx context.Context) bool {
	return o.breaker.State() != "open"
}

func (o *OllamaOracle) Model() string { return o.model }

var _ Oracle = (*OllamaOracle)(nil)
