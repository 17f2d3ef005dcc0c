package sqlitevs

import (
	"context"
	"testing"

	"github.com/kestrelmem/noetic/internal/vectorstore"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSqlitevsAddGetQueryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.GetOrCreateCollection(ctx, "memories", nil))

	require.NoError(t, s.Add(ctx, "memories", vectorstore.AddRequest{
		IDs:        []string{"a", "b"},
		Embeddings: [][]float64{{1, 0}, {0, 1}},
		Documents:  []string{"doc-a", "doc-b"},
		Metadatas:  []map[string]interface{}{{"importance": 4.0}, {"importance": 1.0}},
	}))

	res, err := s.Query(ctx, "memories", vectorstore.QueryRequest{QueryEmbedding: []float64{1, 0}, NResults: 1})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, res.IDs)
	require.InDelta(t, 0.0, res.Distances[0], 1e-9)

	got, err := s.Get(ctx, "memories", vectorstore.GetRequest{Where: vectorstore.Where{"importance": map[string]interface{}{"$gte": 2.0}}})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, got.IDs)
}

func TestSqlitevsUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.GetOrCreateCollection(ctx, "memories", nil))
	require.NoError(t, s.Add(ctx, "memories", vectorstore.AddRequest{IDs: []string{"a"}, Documents: []string{"x"}}))

	require.NoError(t, s.Update(ctx, "memories", vectorstore.UpdateRequest{IDs: []string{"a"}, Documents: []string{"y"}}))
	got, err := s.Get(ctx, "memories", vectorstore.GetRequest{IDs: []string{"a"}})
	require.NoError(t, err)
	require.Equal(t, "y", got.Documents[0])

	require.NoError(t, s.Delete(ctx, "memories", []string{"a"}))
	got, err = s.Get(ctx, "memories", vectorstore.GetRequest{})
	require.NoError(t, err)
	require.Empty(t, got.IDs)
}

func TestSqlitevsPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + t.TempDir() + "/vs.db"

	s1, err := Open(dsn)
	require.NoError(t, err)
	require.NoError(t, s1.GetOrCreateCollection(ctx, "memories", nil))
	require.NoError(t, s1.Add(ctx, "memories", vectorstore.AddRequest{IDs: []string{"a"}, Documents: []string{"x"}}))
	require.NoError(t, s1.Close())

	s2, err := Open(dsn)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.Get(ctx, "memories", vectorstore.GetRequest{IDs: []string{"a"}})
	require.NoError(t, err)
	require.Equal(t, "x", got.Documents[0])
}
