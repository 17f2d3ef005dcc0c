package trustpolicy

import (
	"testing"
	"time"

	"github.com/kestrelmem/noetic/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecideUnknownActionDefaultsToReview(t *testing.T) {
	e := New(DefaultActionConfigs(), nil)
	assert.Equal(t, DecisionReview, e.Decide("reticulate_splines", DecisionContext{}))
}

func TestDecideHonorsExplicitOverride(t *testing.T) {
	e := New([]ActionConfig{
		{Action: "add_link", Risk: RiskLow, Reversible: true, DefaultDecision: DecisionAuto, MinTrustForAuto: 0.6, Override: DecisionDeny},
	}, map[string]types.TrustScore{
		"add_link": {Action: "add_link", Score: 0.99},
	})
	// Override wins even with a trust score that would clear the threshold.
	assert.Equal(t, DecisionDeny, e.Decide("add_link", DecisionContext{}))
}

func TestDecideAutoWhenTrustClearsThreshold(t *testing.T) {
	e := New(DefaultActionConfigs(), map[string]types.TrustScore{
		"supersede": {Action: "supersede", Score: 0.8},
	})
	assert.Equal(t, DecisionAuto, e.Decide("supersede", DecisionContext{TargetImportance: 3}))
}

func TestDecideFallsToDefaultBelowThreshold(t *testing.T) {
	e := New(DefaultActionConfigs(), nil)
	assert.Equal(t, DecisionReview, e.Decide("supersede", DecisionContext{}))
	assert.Equal(t, DecisionDeny, e.Decide("delete_memory", DecisionContext{}))
}

func TestDecideEscalatesOnMaxImportanceTarget(t *testing.T) {
	e := New(DefaultActionConfigs(), map[string]types.TrustScore{
		"supersede": {Action: "supersede", Score: 0.9},
	})
	assert.Equal(t, DecisionReview, e.Decide("supersede", DecisionContext{TargetImportance: 5}))
}

func TestDecideEscalatesOnFoundationalTargetForModifyingActions(t *testing.T) {
	scores := map[string]types.TrustScore{
		"update_memory": {Action: "update_memory", Score: 0.9},
		"add_link":      {Action: "add_link", Score: 0.9},
	}
	e := New(DefaultActionConfigs(), scores)

	ctx := DecisionContext{TargetType: types.TypeFoundational}
	assert.Equal(t, DecisionReview, e.Decide("update_memory", ctx))
	// Non-modifying actions are not escalated by a foundational target.
	assert.Equal(t, DecisionAuto, e.Decide("add_link", ctx))
}

func TestDecideEscalatesIrreversibleBelowHighTrust(t *testing.T) {
	e := New(DefaultActionConfigs(), map[string]types.TrustScore{
		"merge_consolidate": {Action: "merge_consolidate", Score: 0.85},
	})
	// merge_consolidate is irreversible; a trust of 0.85 is below both its
	// 0.9 auto threshold and the 0.9 irreversibility bar, so it goes to review.
	assert.Equal(t, DecisionReview, e.Decide("merge_consolidate", DecisionContext{}))

	e2 := New(DefaultActionConfigs(), map[string]types.TrustScore{
		"merge_consolidate": {Action: "merge_consolidate", Score: 0.95},
	})
	assert.Equal(t, DecisionAuto, e2.Decide("merge_consolidate", DecisionContext{}))
}

func TestRecordOutcomeApprovalsIncreaseScore(t *testing.T) {
	e := New(DefaultActionConfigs(), nil)

	prev := e.Score("supersede").Score
	for i := 0; i < 10; i++ {
		e.RecordOutcome("supersede", OutcomeApproved)
		cur := e.Score("supersede").Score
		require.GreaterOrEqual(t, cur, prev)
		require.LessOrEqual(t, cur, 1.0)
		prev = cur
	}
	assert.InDelta(t, 1.0, prev, 1e-9)
}

func TestRecordOutcomeRejectionsDecreaseScore(t *testing.T) {
	e := New(DefaultActionConfigs(), nil)

	prev := e.Score("supersede").Score
	for i := 0; i < 10; i++ {
		e.RecordOutcome("supersede", OutcomeRejected)
		cur := e.Score("supersede").Score
		require.LessOrEqual(t, cur, prev)
		require.GreaterOrEqual(t, cur, 0.0)
		prev = cur
	}
	assert.InDelta(t, 0.0, prev, 1e-9)
}

func TestRecordOutcomeAutoDoesNotMoveScoreTowardPrior(t *testing.T) {
	e := New(DefaultActionConfigs(), nil)
	for i := 0; i < 10; i++ {
		e.RecordOutcome("add_link", OutcomeApproved)
	}
	before := e.Score("add_link").Score

	e.RecordOutcome("add_link", OutcomeAuto)
	after := e.Score("add_link")
	assert.InDelta(t, before, after.Score, 1e-9)
	assert.Equal(t, 1, after.AutoApproved)
	assert.Equal(t, 11, after.Total)
}

func TestExpireProposals(t *testing.T) {
	e := New(DefaultActionConfigs(), nil)
	now := time.Now()
	e.now = func() time.Time { return now }

	stale := &types.Proposal{ID: "p1", Status: types.ProposalPending, Timestamp: now.Add(-8 * 24 * time.Hour)}
	fresh := &types.Proposal{ID: "p2", Status: types.ProposalPending, Timestamp: now.Add(-time.Hour)}
	done := &types.Proposal{ID: "p3", Status: types.ProposalApproved, Timestamp: now.Add(-30 * 24 * time.Hour)}

	expired := e.ExpireProposals([]*types.Proposal{stale, fresh, done})
	require.Len(t, expired, 1)
	assert.Equal(t, "p1", expired[0].ID)
	assert.Equal(t, types.ProposalExpired, stale.Status)
	assert.Equal(t, types.ProposalPending, fresh.Status)
	assert.Equal(t, types.ProposalApproved, done.Status)
}

func TestSaveAndLoadScoresRoundTrip(t *testing.T) {
	e := New(DefaultActionConfigs(), nil)
	e.RecordOutcome("supersede", OutcomeApproved)
	e.RecordOutcome("supersede", OutcomeRejected)
	e.RecordOutcome("add_link", OutcomeAuto)

	path := t.TempDir() + "/trust_scores.yaml"
	require.NoError(t, e.SaveScores(path))

	loaded, err := LoadScores(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	restored := New(DefaultActionConfigs(), loaded)
	assert.Equal(t, e.Score("supersede").Score, restored.Score("supersede").Score)
	assert.Equal(t, 1, restored.Score("supersede").Approved)
	assert.Equal(t, 1, restored.Score("supersede").Rejected)
	assert.Equal(t, 1, restored.Score("add_link").AutoApproved)
}

func TestLoadScoresMissingFileIsFreshStore(t *testing.T) {
	loaded, err := LoadScores(t.TempDir() + "/does_not_exist.yaml")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
