// Package oracle defines the optional LLM Oracle (component J):
// a narrow text-completion interface consulted by the dream and
// graph-enrichment engines for summarization and typed-link inference. An
// Oracle is never required for correctness -- every caller must degrade to
// its non-LLM fallback when IsAvailable reports false.
package oracle

import "context"

// Oracle is a single-turn text completion provider.
type Oracle interface {
	// Complete returns the model's completion for prompt.
	Complete(ctx context.Context, prompt string) (string, error)

	// IsAvailable reports whether the oracle is currently configured and
	// not tripped by its circuit breaker. Callers must check this before
	// relying on Complete for anything beyond best-effort enrichment.
	IsAvailable(ctx context.Context) bool

	// Model returns the configured model identifier, for attribution.
	Model() string
}
