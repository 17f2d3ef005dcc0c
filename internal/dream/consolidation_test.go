package dream

import (
	"context"
	"testing"
	"time"

	"github.com/kestrelmem/noetic/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestFindCandidatesClustersViaEmbedding(t *testing.T) {
	items := []EmbeddedMemory{
		{Memory: &types.Memory{ID: "a", Content: "the team prefers dark mode themes.", Importance: 3, Timestamp: time.Now()}, Embedding: []float64{1, 0, 0}},
		{Memory: &types.Memory{ID: "b", Content: "dark mode themes are preferred by the team.", Importance: 4, Timestamp: time.Now()}, Embedding: []float64{0.99, 0.01, 0}},
		{Memory: &types.Memory{ID: "c", Content: "unrelated lunch notes.", Importance: 1, Timestamp: time.Now()}, Embedding: []float64{0, 0, 1}},
	}

	candidates := FindCandidates(items, DefaultConsolidationConfig())
	require.Len(t, candidates, 1)
	require.Len(t, candidates[0].Members, 2)
	require.Equal(t, "b", candidates[0].Primary.ID) // higher importance wins
}

func TestFindCandidatesFallsBackToJaccardWithoutEmbeddings(t *testing.T) {
	items := []EmbeddedMemory{
		{Memory: &types.Memory{ID: "a", Content: "deploy process uses github actions workflow", Importance: 2, Timestamp: time.Now()}},
		{Memory: &types.Memory{ID: "b", Content: "deploy process uses github actions workflow file", Importance: 2, Timestamp: time.Now()}},
	}
	candidates := FindCandidates(items, ConsolidationConfig{CosineThreshold: 0.6, JaccardOverlap: 0.7, NoveltyDedup: 0.7})
	require.Len(t, candidates, 1)
}

func TestCandidateMaxImportanceAndUnionTags(t *testing.T) {
	c := Candidate{Members: []*types.Memory{
		{ID: "a", Importance: 2, Tags: []string{"x", "y"}},
		{ID: "b", Importance: 5, Tags: []string{"y", "z"}},
	}}
	require.Equal(t, 5, c.MaxImportance())
	require.ElementsMatch(t, []string{"x", "y", "z"}, c.UnionTags())
}

func TestCandidateNonPrimaryMembers(t *testing.T) {
	primary := &types.Memory{ID: "p"}
	other := &types.Memory{ID: "o"}
	c := Candidate{Primary: primary, Members: []*types.Memory{primary, other}}
	nonPrimary := c.NonPrimaryMembers()
	require.Len(t, nonPrimary, 1)
	require.Equal(t, "o", nonPrimary[0].ID)
}

func TestRefineWithOracleNoOracleReturnsUnchanged(t *testing.T) {
	c := Candidate{MergedContent: "original"}
	refined, keep := RefineWithOracle(context.Background(), nil, c)
	require.True(t, keep)
	require.Equal(t, "original", refined.MergedContent)
}
