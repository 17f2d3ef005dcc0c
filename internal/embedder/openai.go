package embedder

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/kestrelmem/noetic/internal/resilience"
)

// OpenAIConfig configures an OpenAIEmbedder. BaseURL lets the same client
// target OpenAI-compatible endpoints (vLLM, LocalAI, etc.).
type OpenAIConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
}

// OpenAIEmbedder calls the OpenAI (or OpenAI-compatible) embeddings API via
// the official SDK client.
type OpenAIEmbedder struct {
	client  openai.Client
	model   string
	dims    int
	breaker *resilience.CircuitBreaker
}

// NewOpenAIEmbedder builds an embedder against OpenAI's embeddings
// endpoint, defaulting to text-embedding-3-small.
func NewOpenAIEmbedder(cfg OpenAIConfig) *OpenAIEmbedder {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 1536
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIEmbedder{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		dims:    cfg.Dimensions,
		breaker: resilience.New("embedder-openai"),
	}
}

func (o *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (o *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	result, err := o.breaker.Execute(ctx, func() (interface{}, error) {
		return o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Model: o.model,
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		})
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, fmt.Errorf("embedder: openai circuit open: %w", err)
		}
		return nil, fmt.Errorf("embedder: openai embeddings request: %w", err)
	}

	resp := result.(*openai.CreateEmbeddingResponse)
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedder: openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float64, len(resp.Data))
	for _, d := range resp.Data {
		vec := make([]float64, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = f
		}
		out[d.Index] = vec
	}
	return out, nil
}

func (o *OpenAIEmbedder) Dimensions() int { return o.dims }
func (o *OpenAIEmbedder) Model() string   { return o.model }

var _ Embedder = (*OpenAIEmbedder)(nil)
