package dream

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/kestrelmem/noetic/internal/codec"
	"github.com/kestrelmem/noetic/internal/embedder"
	"github.com/kestrelmem/noetic/internal/graphenrich"
	"github.com/kestrelmem/noetic/internal/idgen"
	"github.com/kestrelmem/noetic/internal/memstore"
	"github.com/kestrelmem/noetic/internal/oracle"
	"github.com/kestrelmem/noetic/internal/trustpolicy"
	"github.com/kestrelmem/noetic/internal/vectorstore"
	"github.com/kestrelmem/noetic/pkg/types"
)

// Operation names one maintenance pass a cycle can run.
type Operation string

const (
	OpContradictions Operation = "contradiction"
	OpConsolidation  Operation = "consolidate"
	OpDecay          Operation = "decay"
	OpEnrich         Operation = "enrich"
)

// OpStatus reflects how one operation of a cycle finished.
type OpStatus string

const (
	OpCompleted OpStatus = "completed"
	OpFailed    OpStatus = "failed"
	OpSkipped   OpStatus = "skipped"
)

// Walker types, one per operation; proposals carry them so a reviewer can
// see which maintenance role asked for the mutation.
const (
	walkerReconciler   = "reconciler"
	walkerConsolidator = "consolidator"
	walkerPruner       = "pruner"
	walkerLinker       = "linker"
)

// CycleConfig selects and tunes the operations of one dream cycle.
type CycleConfig struct {
	Operations    []Operation
	DryRun        bool
	Project       string // restrict the snapshot to one project; empty means all
	Consolidation ConsolidationConfig
	Decay         DecayConfig
	Enrich        graphenrich.Config
}

// DefaultCycleConfig runs every operation with the standard defaults, live.
func DefaultCycleConfig() CycleConfig {
	return CycleConfig{
		Operations:    []Operation{OpContradictions, OpConsolidation, OpDecay, OpEnrich},
		Consolidation: DefaultConsolidationConfig(),
		Decay:         DefaultDecayConfig(),
		Enrich:        graphenrich.DefaultConfig(),
	}
}

// Report is the structured summary a cycle returns: counts of changes, ids
// created, contradictions found, and the proposals routed to review.
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool

	ContradictionsFound    int
	ContradictionsResolved int
	Consolidations         int
	DecayedCount           int
	LinksAdded             int
	CreatedIDs             []string
	Proposals              []*types.Proposal

	Status map[Operation]OpStatus
	Errors map[Operation]string
}

// Cycle coordinates one offline maintenance pass: it snapshots the memory
// population, runs the selected operations, and routes the resulting
// mutations back through the memory store, gated by the trust policy
// engine. A single operation failing is logged and recorded in the report;
// it never aborts the remaining operations.
type Cycle struct {
	store  *memstore.Store
	vs     vectorstore.Store
	embed  embedder.Embedder
	oracle oracle.Oracle
	policy *trustpolicy.Engine
	logger *log.Logger
	clock  func() time.Time
}

// NewCycle builds a Cycle. oracle may be nil (heuristic fallbacks apply
// throughout) and logger may be nil (defaults to log.Default()).
func NewCycle(store *memstore.Store, vs vectorstore.Store, embed embedder.Embedder, o oracle.Oracle, policy *trustpolicy.Engine, logger *log.Logger) *Cycle {
	if logger == nil {
		logger = log.Default()
	}
	return &Cycle{
		store:  store,
		vs:     vs,
		embed:  embed,
		oracle: o,
		policy: policy,
		logger: logger,
		clock:  time.Now,
	}
}

// snapshot is the input every operation works from: the decoded memories
// and their stored embeddings, index-aligned.
type snapshot struct {
	memories   []*types.Memory
	embeddings [][]float64
}

func (c *Cycle) loadSnapshot(ctx context.Context, project string) (snapshot, error) {
	where := vectorstore.Where{}
	if project != "" {
		where["project"] = project
	}
	res, err := c.vs.Get(ctx, vectorstore.CollectionMemories, vectorstore.GetRequest{Where: where})
	if err != nil {
		return snapshot{}, fmt.Errorf("dream: load snapshot: %w", err)
	}

	snap := snapshot{
		memories:   make([]*types.Memory, 0, len(res.IDs)),
		embeddings: make([][]float64, 0, len(res.IDs)),
	}
	for i, id := range res.IDs {
		m, parseErrs := codec.Decode(id, res.Documents[i], res.Metadatas[i])
		for _, pe := range parseErrs {
			c.logger.Printf("dream: parsing error in snapshot: id=%s field=%s err=%v", id, pe.Field, pe.Err)
		}
		snap.memories = append(snap.memories, m)
		if i < len(res.Embeddings) {
			snap.embeddings = append(snap.embeddings, res.Embeddings[i])
		} else {
			snap.embeddings = append(snap.embeddings, nil)
		}
	}
	return snap, nil
}

// Run executes the configured operations over a fresh snapshot. Each
// operation's outcome is tracked independently; the returned error is
// non-nil only when the snapshot itself cannot be loaded.
func (c *Cycle) Run(ctx context.Context, cfg CycleConfig) (*Report, error) {
	report := &Report{
		StartedAt: c.clock(),
		DryRun:    cfg.DryRun,
		Status:    map[Operation]OpStatus{},
		Errors:    map[Operation]string{},
	}

	snap, err := c.loadSnapshot(ctx, cfg.Project)
	if err != nil {
		return nil, err
	}
	c.logger.Printf("dream: cycle starting: memories=%d operations=%d dry_run=%v", len(snap.memories), len(cfg.Operations), cfg.DryRun)

	for _, op := range cfg.Operations {
		var opErr error
		switch op {
		case OpContradictions:
			opErr = c.runContradictions(ctx, snap, cfg, report)
		case OpConsolidation:
			opErr = c.runConsolidation(ctx, snap, cfg, report)
		case OpDecay:
			opErr = c.runDecay(ctx, snap, cfg, report)
		case OpEnrich:
			opErr = c.runEnrich(ctx, snap, cfg, report)
		default:
			report.Status[op] = OpSkipped
			report.Errors[op] = fmt.Sprintf("unknown operation %q", op)
			continue
		}
		if opErr != nil {
			c.logger.Printf("dream: operation %s failed: %v", op, opErr)
			report.Status[op] = OpFailed
			report.Errors[op] = opErr.Error()
			continue
		}
		report.Status[op] = OpCompleted
	}

	report.FinishedAt = c.clock()
	c.logger.Printf("dream: cycle finished: contradictions=%d consolidations=%d decayed=%d links=%d proposals=%d",
		report.ContradictionsFound, report.Consolidations, report.DecayedCount, report.LinksAdded, len(report.Proposals))
	return report, nil
}

func (c *Cycle) runContradictions(ctx context.Context, snap snapshot, cfg CycleConfig, report *Report) error {
	found := DetectContradictions(snap.memories)
	report.ContradictionsFound = len(found)

	for _, contradiction := range found {
		res, err := Resolve(ctx, c.oracle, contradiction)
		if err != nil {
			c.logger.Printf("dream: contradiction resolution failed: a=%s b=%s err=%v", contradiction.A.ID, contradiction.B.ID, err)
			continue
		}

		switch res.Action {
		case ActionSupersedeB:
			// A (newer/winning side) supersedes B.
			if c.applySupersede(ctx, cfg, report, contradiction.B, contradiction.A.ID, res.Reasoning) {
				report.ContradictionsResolved++
			}
		case ActionSupersedeA:
			if c.applySupersede(ctx, cfg, report, contradiction.A, contradiction.B.ID, res.Reasoning) {
				report.ContradictionsResolved++
			}
		case ActionMerge:
			if c.applyConflictMerge(ctx, cfg, report, contradiction, res) {
				report.ContradictionsResolved++
			}
		case ActionKeepBoth, ActionReportOnly:
			// Reported in the counts; no mutation.
		}
	}
	return nil
}

// applySupersede routes one supersession through the trust policy and the
// memory store. Returns whether the mutation was (or in dry-run, would
// have been) applied.
func (c *Cycle) applySupersede(ctx context.Context, cfg CycleConfig, report *Report, loser *types.Memory, winnerID, reason string) bool {
	decision := c.policy.Decide("supersede", trustpolicy.DecisionContext{
		TargetImportance: loser.Importance,
		TargetType:       loser.Type,
	})
	switch decision {
	case trustpolicy.DecisionAuto:
		if cfg.DryRun {
			return true
		}
		if err := c.store.Supersede(ctx, loser.ID, winnerID); err != nil {
			c.logger.Printf("dream: supersede failed: old=%s new=%s err=%v", loser.ID, winnerID, err)
			return false
		}
		c.policy.RecordOutcome("supersede", trustpolicy.OutcomeAuto)
		return true
	case trustpolicy.DecisionReview:
		report.Proposals = append(report.Proposals, c.newProposal("supersede", walkerReconciler,
			[]string{loser.ID, winnerID},
			fmt.Sprintf("supersede %s with %s", loser.ID, winnerID), reason))
		return false
	default:
		c.logger.Printf("dream: supersede denied by policy: old=%s new=%s", loser.ID, winnerID)
		return false
	}
}

func (c *Cycle) applyConflictMerge(ctx context.Context, cfg CycleConfig, report *Report, contradiction Contradiction, res Resolution) bool {
	a, b := contradiction.A, contradiction.B
	decision := c.policy.Decide("merge_consolidate", trustpolicy.DecisionContext{
		TargetImportance: maxInt(a.Importance, b.Importance),
		TargetType:       a.Type,
	})
	if decision == trustpolicy.DecisionDeny {
		return false
	}
	if decision == trustpolicy.DecisionReview {
		report.Proposals = append(report.Proposals, c.newProposal("merge_consolidate", walkerReconciler,
			[]string{a.ID, b.ID},
			fmt.Sprintf("merge conflicting memories %s and %s", a.ID, b.ID), res.Reasoning))
		return false
	}
	if cfg.DryRun {
		return true
	}

	merged := &types.Memory{
		Content:    res.MergedContent,
		Type:       a.Type,
		Tags:       unionTags(a.Tags, b.Tags),
		Importance: maxInt(a.Importance, b.Importance),
		Project:    a.Project,
		Layer:      types.LayerLongTerm,
		Scope:      a.Scope,
		Source:     types.SourceLLMConsolidated,
		Confidence: res.Confidence,
	}
	id, err := c.store.Save(ctx, merged, memstore.SaveOptions{})
	if err != nil {
		c.logger.Printf("dream: conflict merge save failed: a=%s b=%s err=%v", a.ID, b.ID, err)
		return false
	}
	report.CreatedIDs = append(report.CreatedIDs, id)

	for _, loser := range []*types.Memory{a, b} {
		if err := c.store.Supersede(ctx, loser.ID, id); err != nil {
			c.logger.Printf("dream: conflict merge supersede failed: old=%s new=%s err=%v", loser.ID, id, err)
		}
	}
	c.policy.RecordOutcome("merge_consolidate", trustpolicy.OutcomeAuto)
	return true
}

func (c *Cycle) runConsolidation(ctx context.Context, snap snapshot, cfg CycleConfig, report *Report) error {
	items := make([]EmbeddedMemory, 0, len(snap.memories))
	for i, m := range snap.memories {
		if m.IsSuperseded() {
			continue
		}
		items = append(items, EmbeddedMemory{Memory: m, Embedding: snap.embeddings[i]})
	}

	for _, candidate := range FindCandidates(items, cfg.Consolidation) {
		candidate, accepted := RefineWithOracle(ctx, c.oracle, candidate)
		if !accepted {
			c.logger.Printf("dream: oracle declined consolidation of %d memories (primary=%s)", len(candidate.Members), candidate.Primary.ID)
			continue
		}

		targetIDs := make([]string, len(candidate.Members))
		for i, m := range candidate.Members {
			targetIDs[i] = m.ID
		}
		decision := c.policy.Decide("merge_consolidate", trustpolicy.DecisionContext{
			TargetImportance: candidate.MaxImportance(),
			TargetType:       candidate.Primary.Type,
		})
		if decision == trustpolicy.DecisionDeny {
			continue
		}
		if decision == trustpolicy.DecisionReview {
			report.Proposals = append(report.Proposals, c.newProposal("merge_consolidate", walkerConsolidator,
				targetIDs,
				fmt.Sprintf("consolidate %d similar memories into one", len(candidate.Members)),
				candidate.MergeRationale))
			continue
		}

		if cfg.DryRun {
			report.Consolidations++
			continue
		}

		source := types.SourceConsolidated
		if c.oracle != nil && c.oracle.IsAvailable(ctx) {
			source = types.SourceLLMConsolidated
		}
		merged := &types.Memory{
			Content:    candidate.MergedContent,
			Type:       candidate.Primary.Type,
			Tags:       candidate.UnionTags(),
			Importance: candidate.MaxImportance(),
			Project:    candidate.Primary.Project,
			Layer:      types.LayerLongTerm,
			Scope:      candidate.Primary.Scope,
			Source:     source,
			Confidence: candidate.Primary.Confidence,
		}
		id, err := c.store.Save(ctx, merged, memstore.SaveOptions{})
		if err != nil {
			c.logger.Printf("dream: consolidation save failed: primary=%s err=%v", candidate.Primary.ID, err)
			continue
		}
		report.CreatedIDs = append(report.CreatedIDs, id)

		for _, m := range candidate.NonPrimaryMembers() {
			if err := c.store.Supersede(ctx, m.ID, id); err != nil {
				c.logger.Printf("dream: consolidation supersede failed: old=%s new=%s err=%v", m.ID, id, err)
			}
		}
		c.policy.RecordOutcome("merge_consolidate", trustpolicy.OutcomeAuto)
		report.Consolidations++
	}
	return nil
}

func (c *Cycle) runDecay(ctx context.Context, snap snapshot, cfg CycleConfig, report *Report) error {
	now := c.clock()
	for _, m := range snap.memories {
		decayCfg := cfg.Decay
		if m.Type == types.TypeShadow {
			decayCfg = ShadowDecayConfig()
		}
		res := Apply(m, now, decayCfg)
		if !res.ShouldWrite {
			continue
		}
		report.DecayedCount++
		if cfg.DryRun {
			continue
		}
		// Importance is persisted in its integer domain; the one-decimal
		// decay value lives only in the result.
		rounded := int(math.Round(res.NewImportance))
		if rounded < 1 {
			rounded = 1
		}
		if err := c.store.Update(ctx, m.ID, func(mem *types.Memory) {
			mem.Importance = rounded
		}); err != nil {
			c.logger.Printf("dream: decay write-back failed: id=%s err=%v", m.ID, err)
		}
	}
	return nil
}

func (c *Cycle) runEnrich(ctx context.Context, snap snapshot, cfg CycleConfig, report *Report) error {
	inputs := make([]graphenrich.Input, 0, len(snap.memories))
	for i, m := range snap.memories {
		if snap.embeddings[i] == nil || m.IsSuperseded() {
			continue
		}
		inputs = append(inputs, graphenrich.Input{Memory: m, Embedding: snap.embeddings[i]})
	}
	result := graphenrich.Run(inputs, cfg.Enrich)

	for _, proposed := range result.ProposedLinks {
		decision := c.policy.Decide("add_link", trustpolicy.DecisionContext{})
		switch decision {
		case trustpolicy.DecisionAuto:
			if cfg.DryRun {
				report.LinksAdded++
				continue
			}
			if err := c.store.AddLink(ctx, proposed.SourceID, proposed.Link); err != nil {
				c.logger.Printf("dream: add_link failed: source=%s target=%s err=%v", proposed.SourceID, proposed.Link.TargetID, err)
				continue
			}
			c.policy.RecordOutcome("add_link", trustpolicy.OutcomeAuto)
			report.LinksAdded++
		case trustpolicy.DecisionReview:
			report.Proposals = append(report.Proposals, c.newProposal("add_link", walkerLinker,
				[]string{proposed.SourceID, proposed.Link.TargetID},
				fmt.Sprintf("link %s -> %s (%s)", proposed.SourceID, proposed.Link.TargetID, proposed.Link.Type),
				proposed.Link.Reason))
		}
	}
	return nil
}

// IngestFoundational parses a structured foundational document, skips
// items that near-duplicate existing memories, and saves
// the rest. Returns the created ids.
func (c *Cycle) IngestFoundational(ctx context.Context, doc string) ([]string, error) {
	items := ParseFoundationalDocument(doc)
	if len(items) == 0 {
		return nil, nil
	}

	snap, err := c.loadSnapshot(ctx, "")
	if err != nil {
		return nil, err
	}
	existing := make([]EmbeddedMemory, len(snap.memories))
	for i := range snap.memories {
		existing[i] = EmbeddedMemory{Memory: snap.memories[i], Embedding: snap.embeddings[i]}
	}

	var created []string
	for _, item := range items {
		vec, err := c.embed.Embed(ctx, item.Content)
		if err != nil {
			return created, fmt.Errorf("dream: embed foundational item: %w", err)
		}
		if IsDuplicate(vec, existing) {
			c.logger.Printf("dream: foundational item skipped as duplicate: category=%s", item.Category)
			continue
		}
		id, err := c.store.Save(ctx, item.ToMemory(), memstore.SaveOptions{})
		if err != nil {
			return created, fmt.Errorf("dream: save foundational item: %w", err)
		}
		created = append(created, id)
	}
	return created, nil
}

func (c *Cycle) newProposal(action, walkerType string, targetIDs []string, description, reason string) *types.Proposal {
	return &types.Proposal{
		ID:          idgen.New("prop"),
		Action:      action,
		Timestamp:   c.clock(),
		Status:      types.ProposalPending,
		WalkerID:    idgen.New(walkerType),
		WalkerType:  walkerType,
		TargetIDs:   targetIDs,
		Description: description,
		Reason:      reason,
	}
}

func unionTags(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range append(append([]string{}, a...), b...) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
