package memvs

import (
	"context"
	"testing"

	"github.com/kestrelmem/noetic/internal/vectorstore"
	"github.com/stretchr/testify/require"
)

func TestAddGetQueryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.GetOrCreateCollection(ctx, "c", nil))

	err := s.Add(ctx, "c", vectorstore.AddRequest{
		IDs:        []string{"a", "b"},
		Embeddings: [][]float64{{1, 0}, {0, 1}},
		Documents:  []string{"doc-a", "doc-b"},
		Metadatas:  []map[string]interface{}{{"type": "decision"}, {"type": "context"}},
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, "c", vectorstore.GetRequest{IDs: []string{"a"}})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, got.IDs)
	require.Equal(t, "doc-a", got.Documents[0])

	res, err := s.Query(ctx, "c", vectorstore.QueryRequest{QueryEmbedding: []float64{1, 0}, NResults: 1})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, res.IDs)
	require.InDelta(t, 0.0, res.Distances[0], 1e-9)
}

func TestGetWhereFilter(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.GetOrCreateCollection(ctx, "c", nil))
	require.NoError(t, s.Add(ctx, "c", vectorstore.AddRequest{
		IDs:       []string{"a", "b"},
		Documents: []string{"x", "y"},
		Metadatas: []map[string]interface{}{{"importance": 4.0}, {"importance": 2.0}},
	}))

	res, err := s.Get(ctx, "c", vectorstore.GetRequest{Where: vectorstore.Where{"importance": map[string]interface{}{"$gte": 3.0}}})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, res.IDs)
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.GetOrCreateCollection(ctx, "c", nil))
	require.NoError(t, s.Add(ctx, "c", vectorstore.AddRequest{IDs: []string{"a"}, Documents: []string{"x"}}))

	require.NoError(t, s.Update(ctx, "c", vectorstore.UpdateRequest{IDs: []string{"a"}, Documents: []string{"y"}}))
	got, err := s.Get(ctx, "c", vectorstore.GetRequest{IDs: []string{"a"}})
	require.NoError(t, err)
	require.Equal(t, "y", got.Documents[0])

	require.NoError(t, s.Delete(ctx, "c", []string{"a"}))
	got, err = s.Get(ctx, "c", vectorstore.GetRequest{})
	require.NoError(t, err)
	require.Empty(t, got.IDs)
}

func TestUnknownCollectionErrors(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.Get(ctx, "missing", vectorstore.GetRequest{})
	require.Error(t, err)
}
