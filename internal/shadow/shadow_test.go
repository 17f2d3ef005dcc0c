package shadow_test

import (
	"testing"
	"time"

	"github.com/kestrelmem/noetic/internal/shadow"
	"github.com/kestrelmem/noetic/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_CrossesTokenThreshold(t *testing.T) {
	l := shadow.New(shadow.Config{TokenThreshold: 100, IdleTimeout: time.Hour, SurfaceThreshold: 0.6}, nil)

	crossed := l.Record("sess1", "auth", types.ShadowActivity{Kind: "read", Target: "auth.go", Tokens: 40})
	assert.False(t, crossed)

	crossed = l.Record("sess1", "auth", types.ShadowActivity{Kind: "edit", Target: "auth.go", Tokens: 70})
	assert.True(t, crossed)
}

func TestResolve_ReturnsAndRemovesShadow(t *testing.T) {
	l := shadow.New(shadow.Config{TokenThreshold: 500, IdleTimeout: 30 * time.Minute, SurfaceThreshold: 0.6}, nil)
	l.Record("sess1", "auth", types.ShadowActivity{Kind: "read", Target: "a.go", Tokens: 10})

	s := l.Resolve("sess1", "auth")
	require.NotNil(t, s)
	assert.Equal(t, "auth", s.Topic)

	assert.Nil(t, l.Resolve("sess1", "auth"), "a second resolve on the same key finds nothing")
}

func TestSweep_EvictsOnlyIdleShadows(t *testing.T) {
	l := shadow.New(shadow.Config{TokenThreshold: 500, IdleTimeout: 0, SurfaceThreshold: 0.6}, nil)
	l.Record("sess1", "auth", types.ShadowActivity{Kind: "read", Target: "a.go", Tokens: 10})

	idle := l.Sweep()
	require.Len(t, idle, 1, "a zero idle-timeout makes every shadow immediately idle")
	assert.Equal(t, "auth", idle[0].Topic)
	assert.Nil(t, l.Resolve("sess1", "auth"), "Sweep must remove swept shadows from the log")
}

func TestShouldPromote_BelowSurfaceThresholdDrops(t *testing.T) {
	l := shadow.New(shadow.Config{TokenThreshold: 100, IdleTimeout: time.Hour, SurfaceThreshold: 0.6}, nil)
	l.Record("sess1", "auth", types.ShadowActivity{Kind: "read", Target: "a.go", Tokens: 10})
	s := l.Resolve("sess1", "auth")
	require.NotNil(t, s)
	assert.False(t, l.ShouldPromote(s), "10/100 tokens is below the 0.6 surface threshold")
}

func TestShouldPromote_AboveSurfaceThresholdPromotes(t *testing.T) {
	l := shadow.New(shadow.Config{TokenThreshold: 100, IdleTimeout: time.Hour, SurfaceThreshold: 0.6}, nil)
	l.Record("sess1", "auth", types.ShadowActivity{Kind: "read", Target: "a.go", Tokens: 70})
	s := l.Resolve("sess1", "auth")
	require.NotNil(t, s)
	assert.True(t, l.ShouldPromote(s))
}

func TestPromote_BuildsShadowMemory(t *testing.T) {
	s := &types.Shadow{
		SessionID: "sess1",
		Topic:     "auth",
		Activities: []types.ShadowActivity{
			{Kind: "read", Target: "auth.go"},
			{Kind: "edit", Target: "auth.go"},
		},
	}
	m := shadow.Promote(s)
	assert.Equal(t, types.TypeShadow, m.Type)
	assert.Equal(t, types.LayerShortTerm, m.Layer)
	assert.Equal(t, "sess1", m.SessionID)
	assert.Contains(t, m.Content, "read: auth.go")
	assert.Contains(t, m.Content, "edit: auth.go")
}

func TestDeduplicate_FiltersRepeatActivities(t *testing.T) {
	l := shadow.New(shadow.Config{Deduplicate: true, TokenThreshold: 500, IdleTimeout: time.Hour}, nil)
	l.Record("sess1", "auth", types.ShadowActivity{Kind: "read", Target: "a.go", Tokens: 5})

	existing := &types.Shadow{Activities: []types.ShadowActivity{{Kind: "read", Target: "a.go"}}}
	incoming := []types.ShadowActivity{
		{Kind: "read", Target: "a.go"},  // duplicate, dropped
		{Kind: "edit", Target: "b.go"},  // new, kept
	}

	out := l.Deduplicate(existing, incoming)
	require.Len(t, out, 1)
	assert.Equal(t, "b.go", out[0].Target)
}

func TestDeduplicate_DisabledPassesThrough(t *testing.T) {
	l := shadow.New(shadow.Config{Deduplicate: false}, nil)
	existing := &types.Shadow{Activities: []types.ShadowActivity{{Kind: "read", Target: "a.go"}}}
	incoming := []types.ShadowActivity{{Kind: "read", Target: "a.go"}}

	out := l.Deduplicate(existing, incoming)
	assert.Len(t, out, 1, "deduplication disabled must pass every activity through")
}
