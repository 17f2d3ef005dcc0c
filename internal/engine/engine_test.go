package engine

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/kestrelmem/noetic/internal/config"
	"github.com/kestrelmem/noetic/internal/embedder"
	"github.com/kestrelmem/noetic/internal/memerr"
	"github.com/kestrelmem/noetic/internal/retrieval"
	"github.com/kestrelmem/noetic/internal/session"
	"github.com/kestrelmem/noetic/internal/trigger"
	"github.com/kestrelmem/noetic/internal/trustpolicy"
	"github.com/kestrelmem/noetic/internal/vectorstore/memvs"
	"github.com/kestrelmem/noetic/pkg/types"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, cfg *config.Config, policy *trustpolicy.Engine) *Engine {
	t.Helper()
	if cfg == nil {
		cfg = config.Defaults()
	}
	e, err := New(Options{
		Config:   cfg,
		Store:    memvs.New(),
		Embedder: embedder.NewHashEmbedder(16),
		Policy:   policy,
		Logger:   log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	return e
}

func TestNewRequiresEmbedder(t *testing.T) {
	_, err := New(Options{Store: memvs.New()})
	var verr *memerr.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestIngestSaveTriggerCreatesMemory(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil, nil)

	res, err := e.Ingest(ctx, "Remember that we use Postgres for storage now.")
	require.NoError(t, err)
	require.NotNil(t, res.Trigger)
	require.Equal(t, trigger.CategorySave, res.Trigger.Category)
	require.Len(t, res.SavedIDs, 1)

	m, err := e.Get(ctx, res.SavedIDs[0])
	require.NoError(t, err)
	require.Equal(t, "Remember that we use Postgres for storage now.", m.Content)
	require.Contains(t, m.Tags, "postgres")
	require.NotEmpty(t, m.SessionID)
}

func TestIngestRecallTriggerDoesNotSave(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil, nil)

	res, err := e.Ingest(ctx, "What did we decide about the deployment strategy?")
	require.NoError(t, err)
	require.NotNil(t, res.Trigger)
	require.Equal(t, trigger.CategoryRecall, res.Trigger.Category)
	require.Empty(t, res.SavedIDs)
}

func TestIngestPlainTextSavesNothing(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil, nil)

	res, err := e.Ingest(ctx, "The weather was nice at the offsite.")
	require.NoError(t, err)
	require.Nil(t, res.Trigger)
	require.Empty(t, res.SavedIDs)
}

func TestSearchFindsRememberedMemory(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil, nil)

	id, err := e.Remember(ctx, &types.Memory{
		Content: "We decided to use PostgreSQL", Type: types.TypeDecision,
		Tags: []string{"database"}, Importance: 4,
	})
	require.NoError(t, err)

	results, err := e.Search(ctx, "We decided to use PostgreSQL", retrieval.Options{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, id, results[0].Memory.ID)
}

func TestForgetRefusesFoundational(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil, nil)

	id, err := e.Remember(ctx, &types.Memory{Content: "core value", Type: types.TypeFoundational})
	require.NoError(t, err)

	err = e.Forget(ctx, id)
	var cerr *memerr.ConflictError
	require.ErrorAs(t, err, &cerr)

	m, err := e.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, m)
}

func TestForgetGatedByPolicy(t *testing.T) {
	ctx := context.Background()

	// Default policy: delete_memory defaults to deny with no history.
	e := newTestEngine(t, nil, nil)
	id, err := e.Remember(ctx, &types.Memory{Content: "a disposable note"})
	require.NoError(t, err)

	err = e.Forget(ctx, id)
	var cerr *memerr.ConflictError
	require.ErrorAs(t, err, &cerr)

	// With earned trust the same delete auto-applies.
	trusted := trustpolicy.New(trustpolicy.DefaultActionConfigs(), map[string]types.TrustScore{
		"delete_memory": {Action: "delete_memory", Score: 0.96},
	})
	e2 := newTestEngine(t, nil, trusted)
	id2, err := e2.Remember(ctx, &types.Memory{Content: "a disposable note"})
	require.NoError(t, err)
	require.NoError(t, e2.Forget(ctx, id2))

	m, err := e2.Get(ctx, id2)
	require.NoError(t, err)
	require.Nil(t, m)
}

func TestForgetMissingMemory(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil, nil)

	err := e.Forget(ctx, "mem_0_zzzzzz")
	var nferr *memerr.NotFoundError
	require.ErrorAs(t, err, &nferr)
}

func TestEndSessionWritesRecordAndResetsSession(t *testing.T) {
	ctx := context.Background()
	cfg := config.Defaults()
	cfg.CurrentProject = "backend"
	e := newTestEngine(t, cfg, nil)

	first := e.Sessions().CurrentSessionID()
	require.NoError(t, e.EndSession(ctx, "worked on retrieval"))

	vs, err := e.vs()
	require.NoError(t, err)
	recorder := session.NewRecorder(vs, 16)
	records, err := recorder.ListSessions(ctx, "backend")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, first, records[0].ID)
	require.NotNil(t, records[0].EndedAt)

	require.NotEqual(t, first, e.Sessions().CurrentSessionID())
}
