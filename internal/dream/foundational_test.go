package dream

import (
	"testing"

	"github.com/kestrelmem/noetic/pkg/types"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `
## identity
- I am a senior backend engineer
- I value clear commit messages

## goals
- Ship the migration by end of quarter

## not_a_real_category
- this should be ignored
`

func TestParseFoundationalDocument(t *testing.T) {
	items := ParseFoundationalDocument(sampleDoc)
	require.Len(t, items, 3)
	require.Equal(t, "identity", items[0].Category)
	require.Equal(t, "I am a senior backend engineer", items[0].Content)
	require.Equal(t, "goals", items[2].Category)
}

func TestFoundationalItemToMemory(t *testing.T) {
	item := FoundationalItem{Category: "values", Content: "be terse"}
	m := item.ToMemory()
	require.Equal(t, types.TypeFoundational, m.Type)
	require.Equal(t, types.LayerFoundational, m.Layer)
	require.Equal(t, 5, m.Importance)
	require.Equal(t, 1.0, m.Confidence)
}

func TestIsDuplicateDetectsNearDuplicateEmbedding(t *testing.T) {
	existing := []EmbeddedMemory{
		{Memory: &types.Memory{ID: "a"}, Embedding: []float64{1, 0, 0}},
	}
	require.True(t, IsDuplicate([]float64{0.999, 0.01, 0}, existing))
	require.False(t, IsDuplicate([]float64{0, 1, 0}, existing))
}
