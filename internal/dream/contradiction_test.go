package dream

import (
	"context"
	"testing"
	"time"

	"github.com/kestrelmem/noetic/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestDetectTemporalConflict(t *testing.T) {
	older := &types.Memory{
		ID: "old", Type: types.TypeDecision, Project: "p1", Tags: []string{"stack"},
		Content: "we use MySQL for the main database", Timestamp: time.Now().Add(-48 * time.Hour),
	}
	newer := &types.Memory{
		ID: "new", Type: types.TypeDecision, Project: "p1", Tags: []string{"stack"},
		Content: "we switched from MySQL to Postgres", Timestamp: time.Now(),
	}

	contradictions := DetectContradictions([]*types.Memory{older, newer})
	require.Len(t, contradictions, 1)
	require.Equal(t, ConflictTemporal, contradictions[0].Kind)
	require.Equal(t, "new", contradictions[0].A.ID)
	require.Equal(t, "old", contradictions[0].B.ID)
}

func TestDetectDirectConflict(t *testing.T) {
	a := &types.Memory{ID: "a", Content: "always use tabs for indentation"}
	b := &types.Memory{ID: "b", Content: "never use tabs for indentation"}

	contradictions := DetectContradictions([]*types.Memory{a, b})
	require.Len(t, contradictions, 1)
	require.Equal(t, ConflictDirect, contradictions[0].Kind)
}

func TestDetectContradictionsSkipsBothFoundational(t *testing.T) {
	a := &types.Memory{ID: "a", Layer: types.LayerFoundational, Content: "always use tabs"}
	b := &types.Memory{ID: "b", Layer: types.LayerFoundational, Content: "never use tabs"}
	require.Empty(t, DetectContradictions([]*types.Memory{a, b}))
}

func TestResolveWithoutOracleTemporalAutoResolves(t *testing.T) {
	c := Contradiction{
		A: &types.Memory{ID: "new"}, B: &types.Memory{ID: "old"},
		Kind: ConflictTemporal, Confidence: 0.7,
	}
	res, err := Resolve(context.Background(), nil, c)
	require.NoError(t, err)
	require.Equal(t, ActionSupersedeB, res.Action)
}

func TestResolveWithoutOracleDirectIsReportOnly(t *testing.T) {
	c := Contradiction{
		A: &types.Memory{ID: "a"}, B: &types.Memory{ID: "b"},
		Kind: ConflictDirect, Confidence: 0.85,
	}
	res, err := Resolve(context.Background(), nil, c)
	require.NoError(t, err)
	require.Equal(t, ActionReportOnly, res.Action)
}
