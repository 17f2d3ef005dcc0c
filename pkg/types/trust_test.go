package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrustScoreRecomputeUsesPriorWhenNoHistory(t *testing.T) {
	ts := TrustScore{}
	assert.InDelta(t, 0.3, ts.Recompute(), 1e-9)
}

func TestTrustScoreRecomputeConvergesToApprovalRatio(t *testing.T) {
	ts := TrustScore{Approved: 9, Rejected: 1, Total: 10}
	// confidence = min(1, 10/10) = 1 -> score = approval ratio only
	assert.InDelta(t, 0.9, ts.Recompute(), 1e-9)
}

func TestTrustScoreRecomputeBlendsPartialConfidence(t *testing.T) {
	ts := TrustScore{Approved: 5, Rejected: 0, Total: 5}
	// confidence = 0.5, approvalRatio = 1.0
	// score = 0.3*0.5 + 1.0*0.5 = 0.65
	assert.InDelta(t, 0.65, ts.Recompute(), 1e-9)
}

func TestProposalExpired(t *testing.T) {
	p := Proposal{Status: ProposalPending}
	assert.False(t, p.Expired(p.Timestamp))
}
