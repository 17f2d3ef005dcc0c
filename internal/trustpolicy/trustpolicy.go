// Package trustpolicy implements the Trust Policy Engine (component I):
// a learned, per-action trust score gating autonomous
// mutations, with explicit risk metadata and context-driven escalation.
package trustpolicy

import (
	"time"

	"github.com/kestrelmem/noetic/pkg/types"
)

// Risk is the closed set of risk tiers an action may carry.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Decision is the closed set of outcomes decide() may return.
type Decision string

const (
	DecisionAuto   Decision = "auto"
	DecisionReview Decision = "review"
	DecisionDeny   Decision = "deny"
)

// ActionConfig is the static risk metadata for one gated action.
type ActionConfig struct {
	Action           string   `yaml:"action"`
	Risk             Risk     `yaml:"risk"`
	Reversible       bool     `yaml:"reversible"`
	DefaultDecision  Decision `yaml:"default_decision"`
	MinTrustForAuto  float64  `yaml:"min_trust_for_auto"`
	Override         Decision `yaml:"override,omitempty"`
}

// Names of the modifying actions that escalate when targeting a
// foundational memory.
var modifyingActions = map[string]bool{
	"update_memory":  true,
	"delete_memory":  true,
	"supersede":      true,
}

// DefaultActionConfigs are the built-in risk profiles for the mutation
// surface the graph-enrichment/dream engines can autonomously perform.
func DefaultActionConfigs() []ActionConfig {
	return []ActionConfig{
		{Action: "add_link", Risk: RiskLow, Reversible: true, DefaultDecision: DecisionAuto, MinTrustForAuto: 0.6},
		{Action: "update_memory", Risk: RiskMedium, Reversible: true, DefaultDecision: DecisionReview, MinTrustForAuto: 0.75},
		{Action: "supersede", Risk: RiskMedium, Reversible: true, DefaultDecision: DecisionReview, MinTrustForAuto: 0.75},
		{Action: "delete_memory", Risk: RiskHigh, Reversible: false, DefaultDecision: DecisionDeny, MinTrustForAuto: 0.95},
		{Action: "merge_consolidate", Risk: RiskHigh, Reversible: false, DefaultDecision: DecisionReview, MinTrustForAuto: 0.9},
	}
}

// DecisionContext carries the target-specific facts the escalation rules
// inspect.
type DecisionContext struct {
	TargetImportance int
	TargetType       types.MemoryType
}

// Engine holds the per-action config and learned trust scores.
type Engine struct {
	configs map[string]ActionConfig
	scores  map[string]types.TrustScore
	now     func() time.Time
}

// New builds an Engine seeded with configs (use DefaultActionConfigs for
// the built-in profile) and an initial score snapshot (nil for a fresh
// store).
func New(configs []ActionConfig, scores map[string]types.TrustScore) *Engine {
	cfgMap := make(map[string]ActionConfig, len(configs))
	for _, c := range configs {
		cfgMap[c.Action] = c
	}
	if scores == nil {
		scores = map[string]types.TrustScore{}
	}
	return &Engine{configs: cfgMap, scores: scores, now: time.Now}
}

// Score returns the current trust score for action. An action with no
// recorded outcomes reports the 0.3 prior with zero counts.
func (e *Engine) Score(action string) types.TrustScore {
	score, ok := e.scores[action]
	if !ok {
		score = types.TrustScore{Action: action}
		score.Score = score.Recompute()
	}
	return score
}

// Scores returns a copy of every recorded trust score, for persistence.
func (e *Engine) Scores() map[string]types.TrustScore {
	out := make(map[string]types.TrustScore, len(e.scores))
	for k, v := range e.scores {
		out[k] = v
	}
	return out
}

// Decide resolves action to auto, review, or deny: explicit override
// first, then the trust threshold, then context escalation, then the
// action's default.
func (e *Engine) Decide(action string, ctx DecisionContext) Decision {
	cfg, known := e.configs[action]
	if !known {
		return DecisionReview
	}

	// Step 1: explicit override.
	if cfg.Override != "" {
		return cfg.Override
	}

	score := e.scores[action]
	escalates := e.escalates(cfg, ctx)

	// Step 2: trust threshold clears and no escalation.
	if score.Score >= cfg.MinTrustForAuto && !escalates {
		return DecisionAuto
	}

	// Step 3 is folded into escalates(); if it forced escalation the
	// auto path above was already skipped, so fall through to default.

	// Step 4: default decision.
	return cfg.DefaultDecision
}

func (e *Engine) escalates(cfg ActionConfig, ctx DecisionContext) bool {
	if ctx.TargetImportance == 5 {
		return true
	}
	if ctx.TargetType == types.TypeFoundational && modifyingActions[cfg.Action] {
		return true
	}
	if !cfg.Reversible && e.scores[cfg.Action].Score < 0.9 {
		return true
	}
	return false
}

// Outcome is the closed set of recordable results for record_outcome.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
	OutcomeAuto     Outcome = "auto"
)

// RecordOutcome updates action's counters and recomputes its score:
// score = 0.3*(1-confidence) + approval_ratio*confidence, where
// confidence = min(1, total_human_reviews/10).
func (e *Engine) RecordOutcome(action string, outcome Outcome) {
	score := e.scores[action]
	score.Action = action
	switch outcome {
	case OutcomeApproved:
		score.Approved++
	case OutcomeRejected:
		score.Rejected++
	case OutcomeAuto:
		score.AutoApproved++
	}
	score.Total = score.Approved + score.Rejected + score.AutoApproved
	score.Score = score.Recompute()
	score.LastUpdated = e.now()
	e.scores[action] = score
}

// ExpireProposals marks every pending proposal older than
// types.ProposalExpiry as expired, returning the ones it changed.
func (e *Engine) ExpireProposals(proposals []*types.Proposal) []*types.Proposal {
	now := e.now()
	var expired []*types.Proposal
	for _, p := range proposals {
		if p.Expired(now) {
			p.Status = types.ProposalExpired
			expired = append(expired, p)
		}
	}
	return expired
}
