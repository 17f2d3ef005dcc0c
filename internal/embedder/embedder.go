// Package embedder produces vector embeddings for memory content
// (component A). Every provider wraps its HTTP calls in the shared circuit
// breaker from internal/resilience.
package embedder

import "context"

// Embedder converts text into a fixed-dimension vector suitable for
// nearest-neighbor search in the vector store.
type Embedder interface {
	// Embed returns the embedding for a single piece of text.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch embeds multiple texts, returning one vector per input in
	// the same order. Implementations that lack a native batch endpoint
	// may fall back to sequential Embed calls.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions returns the length of vectors this embedder produces.
	Dimensions() int

	// Model returns the configured model identifier, for logging and
	// for tagging stored vectors with their originating model.
	Model() string
}
