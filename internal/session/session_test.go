package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/kestrelmem/noetic/internal/session"
	"github.com/kestrelmem/noetic/internal/shadow"
	"github.com/kestrelmem/noetic/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentSessionID_LazilyCreatedAndStable(t *testing.T) {
	m := session.NewManager(shadow.DefaultConfig(), nil)
	id1 := m.CurrentSessionID()
	assert.NotEmpty(t, id1)
	id2 := m.CurrentSessionID()
	assert.Equal(t, id1, id2, "repeated calls must return the same lazily-created id")
}

func TestSetCurrentSessionID_Overrides(t *testing.T) {
	m := session.NewManager(shadow.DefaultConfig(), nil)
	m.SetCurrentSessionID("custom-session")
	assert.Equal(t, "custom-session", m.CurrentSessionID())
}

func TestStartAndGetReview(t *testing.T) {
	m := session.NewManager(shadow.DefaultConfig(), nil)
	proposals := []*types.Proposal{{ID: "prop_1", Action: "add_link"}}

	id := m.StartReview(session.ReviewContradiction, proposals)
	require.NotEmpty(t, id)

	r := m.GetReview(id)
	require.NotNil(t, r)
	assert.Equal(t, session.ReviewContradiction, r.Kind)
	assert.Len(t, r.Proposals, 1)
}

func TestGetReview_MissingReturnsNil(t *testing.T) {
	m := session.NewManager(shadow.DefaultConfig(), nil)
	assert.Nil(t, m.GetReview("nonexistent"))
}

func TestEndReview_RemovesSession(t *testing.T) {
	m := session.NewManager(shadow.DefaultConfig(), nil)
	id := m.StartReview(session.ReviewConsolidation, nil)
	m.EndReview(id)
	assert.Nil(t, m.GetReview(id))
}

func TestRunJanitor_StopsOnContextCancel(t *testing.T) {
	m := session.NewManager(shadow.DefaultConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	stop := m.RunJanitor(ctx)
	cancel()

	done := make(chan struct{})
	go func() { stop(); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop within 2s of context cancellation")
	}
}
