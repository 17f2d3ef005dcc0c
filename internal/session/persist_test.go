package session

import (
	"context"
	"testing"
	"time"

	"github.com/kestrelmem/noetic/internal/vectorstore/memvs"
	"github.com/stretchr/testify/require"
)

func TestSaveSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder(memvs.New(), 8)

	started := time.Now().Add(-time.Hour).Truncate(time.Second)
	ended := time.Now().Truncate(time.Second)
	rec := SessionRecord{
		ID: "sess_1", Project: "backend", StartedAt: started, EndedAt: &ended,
		MemoryCount: 3, Summary: "worked on the retrieval pipeline",
	}
	require.NoError(t, r.SaveSession(ctx, rec))

	// Saving again with updated fields must upsert, not duplicate.
	rec.MemoryCount = 5
	require.NoError(t, r.SaveSession(ctx, rec))

	sessions, err := r.ListSessions(ctx, "backend")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "sess_1", sessions[0].ID)
	require.Equal(t, 5, sessions[0].MemoryCount)
	require.Equal(t, "worked on the retrieval pipeline", sessions[0].Summary)
	require.NotNil(t, sessions[0].EndedAt)
}

func TestListSessionsFiltersByProject(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder(memvs.New(), 8)

	require.NoError(t, r.SaveSession(ctx, SessionRecord{ID: "sess_a", Project: "alpha", StartedAt: time.Now()}))
	require.NoError(t, r.SaveSession(ctx, SessionRecord{ID: "sess_b", Project: "beta", StartedAt: time.Now()}))

	sessions, err := r.ListSessions(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "sess_a", sessions[0].ID)
}

func TestProjectContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder(memvs.New(), 8)

	missing, err := r.GetProjectContext(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)

	pc := ProjectContext{Name: "backend", Description: "payments service rewrite", UpdatedAt: time.Now().Truncate(time.Second)}
	require.NoError(t, r.SaveProjectContext(ctx, pc))

	pc.Description = "payments service rewrite, phase two"
	require.NoError(t, r.SaveProjectContext(ctx, pc))

	got, err := r.GetProjectContext(ctx, "backend")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "payments service rewrite, phase two", got.Description)
}
