package retrieval

import (
	"context"
	"testing"

	"github.com/kestrelmem/noetic/internal/embedder"
	"github.com/kestrelmem/noetic/internal/memstore"
	"github.com/kestrelmem/noetic/internal/vectorstore/memvs"
	"github.com/kestrelmem/noetic/pkg/types"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *memstore.Store) {
	t.Helper()
	vs := memvs.New()
	require.NoError(t, vs.GetOrCreateCollection(context.Background(), "claude_memories", nil))
	embed := embedder.NewHashEmbedder(8)
	store := memstore.New(vs, embed, nil)
	return New(vs, embed), store
}

func TestSearchReturnsSemanticMatches(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)

	_, err := store.Save(ctx, &types.Memory{Content: "the user prefers dark mode in the editor"}, memstore.NewSaveOptions())
	require.NoError(t, err)
	_, err = store.Save(ctx, &types.Memory{Content: "unrelated note about lunch plans"}, memstore.NewSaveOptions())
	require.NoError(t, err)

	results, err := e.Search(ctx, "editor color theme preference", DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, results)
}

func TestSearchFiltersByTags(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)

	_, err := store.Save(ctx, &types.Memory{Content: "memory with tag", Tags: []string{"alpha"}}, memstore.NewSaveOptions())
	require.NoError(t, err)
	_, err = store.Save(ctx, &types.Memory{Content: "memory without tag"}, memstore.NewSaveOptions())
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Tags = []string{"alpha"}
	results, err := e.Search(ctx, "memory", opts)
	require.NoError(t, err)
	for _, r := range results {
		require.Contains(t, r.Memory.Tags, "alpha")
	}
}

func TestSearchHybridScoring(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)

	_, err := store.Save(ctx, &types.Memory{Content: "database migration rollback procedure"}, memstore.NewSaveOptions())
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.UseHybrid = true
	results, err := e.Search(ctx, "database migration", opts)
	require.NoError(t, err)
	require.NotEmpty(t, results)
}

func TestSearchExpandGraphIncludesNeighbors(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)

	aID, err := store.Save(ctx, &types.Memory{Content: "root decision about caching layer"}, memstore.NewSaveOptions())
	require.NoError(t, err)
	bID, err := store.Save(ctx, &types.Memory{Content: "totally unrelated note about weather"}, memstore.NewSaveOptions())
	require.NoError(t, err)

	require.NoError(t, store.AddLink(ctx, aID, types.RichLink{TargetID: bID, Type: types.LinkRelated}))

	opts := DefaultOptions()
	opts.Limit = 1
	opts.ExpandGraph = true
	opts.GraphExpansionLimit = 2
	// The hash embedder does not rank by meaning, so the query repeats the
	// root's content to make the root the single top result.
	results, err := e.Search(ctx, "root decision about caching layer", opts)
	require.NoError(t, err)

	var sawExpansion bool
	for _, r := range results {
		if r.GraphExpansion {
			sawExpansion = true
		}
	}
	require.True(t, sawExpansion)
}

func TestTokenizeDropsStopwords(t *testing.T) {
	toks := tokenize("The quick brown fox and the lazy dog")
	require.NotContains(t, toks, "the")
	require.NotContains(t, toks, "and")
	require.Contains(t, toks, "quick")
}

func TestBM25ScoresExactMatchHigherThanNoMatch(t *testing.T) {
	corpus := newBM25Corpus([]string{"the database migration failed last night", "completely different unrelated content"})
	q := tokenize("database migration")

	scoreMatch := corpus.score(q, tokenize("the database migration failed last night"))
	scoreNoMatch := corpus.score(q, tokenize("completely different unrelated content"))
	require.Greater(t, scoreMatch, scoreNoMatch)
}
