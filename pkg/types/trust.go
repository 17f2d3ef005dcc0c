package types

import "time"

// TrustScore tracks the learned approval history for a single gated
// action.
type TrustScore struct {
	Action       string    `json:"action"`
	Approved     int       `json:"approved"`
	Rejected     int       `json:"rejected"`
	AutoApproved int       `json:"auto_approved"`
	Total        int       `json:"total"`
	Score        float64   `json:"score"`
	LastUpdated  time.Time `json:"last_updated"`
}

// priorWeight is the weight given to the 0.3 prior in the trust score blend
//, decreasing as more human reviews accumulate.
const priorWeight = 0.3

// Confidence returns how much observed history should be trusted over the
// prior, scaled by the human review count (min(1, (approved+rejected)/10)).
// Auto-approvals carry no human signal and do not move confidence.
func (t TrustScore) Confidence() float64 {
	c := float64(t.Approved+t.Rejected) / 10.0
	if c > 1 {
		c = 1
	}
	return c
}

// ApprovalRatio returns approved / max(1, approved+rejected).
func (t TrustScore) ApprovalRatio() float64 {
	denom := t.Approved + t.Rejected
	if denom < 1 {
		denom = 1
	}
	return float64(t.Approved) / float64(denom)
}

// Recompute returns the blended trust score: a weighted mix of the prior
// (0.3) and the observed approval ratio, weighted by Confidence.
func (t TrustScore) Recompute() float64 {
	conf := t.Confidence()
	return priorWeight*(1-conf) + t.ApprovalRatio()*conf
}
