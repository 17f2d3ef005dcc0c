package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// HashEmbedder derives a stable unit vector from a seeded hash of the
// input text. It is never random, so retrieval tests that depend on
// embedding similarity stay deterministic across runs the way the
// detect_trigger regex tests stay deterministic across runs.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder returns a hash-based embedder with the given vector
// dimensionality.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 32
	}
	return &HashEmbedder{dims: dims}
}

func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, h.dims)
	seed := []byte(text)
	for i := 0; i < h.dims; i++ {
		sum := sha256.Sum256(append(seed, byte(i), byte(i>>8)))
		bits := binary.BigEndian.Uint64(sum[:8])
		// map to [-1, 1]
		vec[i] = float64(bits)/float64(^uint64(0))*2 - 1
	}
	normalize(vec)
	return vec, nil
}

func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (h *HashEmbedder) Dimensions() int { return h.dims }
func (h *HashEmbedder) Model() string   { return "hash-test-embedder" }

func normalize(v []float64) {
	var mag float64
	for _, x := range v {
		mag += x * x
	}
	mag = math.Sqrt(mag)
	if mag == 0 {
		return
	}
	for i := range v {
		v[i] /= mag
	}
}

var _ Embedder = (*HashEmbedder)(nil)
