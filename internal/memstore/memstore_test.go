package memstore

import (
	"context"
	"testing"

	"github.com/kestrelmem/noetic/internal/embedder"
	"github.com/kestrelmem/noetic/internal/memerr"
	"github.com/kestrelmem/noetic/internal/vectorstore/memvs"
	"github.com/kestrelmem/noetic/pkg/types"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	vs := memvs.New()
	require.NoError(t, vs.GetOrCreateCollection(context.Background(), "claude_memories", nil))
	return New(vs, embedder.NewHashEmbedder(8), nil)
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Save(ctx, &types.Memory{Content: "the user likes tabs over spaces", Type: types.TypePreference}, NewSaveOptions())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	m, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, m)
	require.Equal(t, "the user likes tabs over spaces", m.Content)
	require.Equal(t, 1, m.AccessCount)

	m2, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 2, m2.AccessCount)
}

func TestSaveRejectsEmptyContent(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Save(context.Background(), &types.Memory{}, NewSaveOptions())
	var verr *memerr.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestBidirectionalLinkOnSave(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	firstID, err := s.Save(ctx, &types.Memory{Content: "memory one"}, NewSaveOptions())
	require.NoError(t, err)

	_, err = s.Save(ctx, &types.Memory{Content: "memory two", RelatedMemories: []string{firstID}}, NewSaveOptions())
	require.NoError(t, err)

	first, err := s.GetRaw(ctx, firstID)
	require.NoError(t, err)
	require.NotEmpty(t, first.RelatedMemories)
}

func TestSupersede(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	oldID, err := s.Save(ctx, &types.Memory{Content: "old decision"}, NewSaveOptions())
	require.NoError(t, err)
	newID, err := s.Save(ctx, &types.Memory{Content: "new decision"}, NewSaveOptions())
	require.NoError(t, err)

	require.NoError(t, s.Supersede(ctx, oldID, newID))

	oldM, err := s.GetRaw(ctx, oldID)
	require.NoError(t, err)
	newM, err := s.GetRaw(ctx, newID)
	require.NoError(t, err)

	require.Equal(t, newID, oldM.SupersededBy)
	require.Equal(t, oldID, newM.Supersedes)
	require.NotNil(t, oldM.ValidUntil)
}

func TestUpdateNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.Update(context.Background(), "mem_missing", func(m *types.Memory) {})
	var nferr *memerr.NotFoundError
	require.ErrorAs(t, err, &nferr)
}

func TestAddLinkIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	aID, err := s.Save(ctx, &types.Memory{Content: "a"}, NewSaveOptions())
	require.NoError(t, err)
	bID, err := s.Save(ctx, &types.Memory{Content: "b"}, NewSaveOptions())
	require.NoError(t, err)

	link := types.RichLink{TargetID: bID, Type: types.LinkRelated}
	require.NoError(t, s.AddLink(ctx, aID, link))
	require.NoError(t, s.AddLink(ctx, aID, link))

	a, err := s.GetRaw(ctx, aID)
	require.NoError(t, err)
	require.Len(t, a.Links, 1)
}

func TestRemoveLink(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	aID, err := s.Save(ctx, &types.Memory{Content: "a"}, NewSaveOptions())
	require.NoError(t, err)
	bID, err := s.Save(ctx, &types.Memory{Content: "b"}, NewSaveOptions())
	require.NoError(t, err)

	require.NoError(t, s.AddLink(ctx, aID, types.RichLink{TargetID: bID, Type: types.LinkRelated}))

	removed, err := s.RemoveLink(ctx, aID, bID, nil)
	require.NoError(t, err)
	require.True(t, removed)

	removedAgain, err := s.RemoveLink(ctx, aID, bID, nil)
	require.NoError(t, err)
	require.False(t, removedAgain)
}

func TestListSortByImportance(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Save(ctx, &types.Memory{Content: "low", Importance: 1}, NewSaveOptions())
	require.NoError(t, err)
	_, err = s.Save(ctx, &types.Memory{Content: "high", Importance: 5}, NewSaveOptions())
	require.NoError(t, err)

	list, err := s.List(ctx, ListOptions{SortBy: SortImportance})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "high", list[0].Content)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Save(ctx, &types.Memory{Content: "a", Type: types.TypeDecision, Project: "p1"}, NewSaveOptions())
	require.NoError(t, err)
	_, err = s.Save(ctx, &types.Memory{Content: "b", Type: types.TypeContext, Project: "p1"}, NewSaveOptions())
	require.NoError(t, err)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, st.Total)
	require.Equal(t, 1, st.ByType[types.TypeDecision])
	require.Equal(t, 2, st.ByProject["p1"])
	require.Equal(t, 2, st.RecentCount)
}

func TestSaveAppliesFieldDefaults(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Save(ctx, &types.Memory{Content: "bare observation"}, NewSaveOptions())
	require.NoError(t, err)

	m, err := s.GetRaw(ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.TypeContext, m.Type)
	require.Equal(t, 3, m.Importance)
	require.Equal(t, 1.0, m.Confidence)
	require.Equal(t, types.LayerLongTerm, m.Layer)
	require.Equal(t, types.ScopePersonal, m.Scope)
	require.Equal(t, types.SourceHuman, m.Source)
}

func TestSaveForcesFoundationalLayer(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Save(ctx, &types.Memory{Content: "core value", Type: types.TypeFoundational}, NewSaveOptions())
	require.NoError(t, err)

	m, err := s.GetRaw(ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.LayerFoundational, m.Layer)
	require.True(t, m.IsFoundational())
}

func TestSaveRejectsOutOfRangeImportance(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Save(ctx, &types.Memory{Content: "x", Importance: 9}, NewSaveOptions())
	var verr *memerr.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "importance", verr.Field)
}
