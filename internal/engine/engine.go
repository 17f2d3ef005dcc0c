// Package engine wires the memory core together behind one facade: the
// ingest loop (trigger classification -> codec -> store), the retrieval
// loop, and the out-of-band dream loop, sharing one lazily-established
// vector-store handle, one session manager, and one trust-policy engine
// per process.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/kestrelmem/noetic/internal/config"
	"github.com/kestrelmem/noetic/internal/dream"
	"github.com/kestrelmem/noetic/internal/embedder"
	"github.com/kestrelmem/noetic/internal/memerr"
	"github.com/kestrelmem/noetic/internal/memstore"
	"github.com/kestrelmem/noetic/internal/oracle"
	"github.com/kestrelmem/noetic/internal/retrieval"
	"github.com/kestrelmem/noetic/internal/session"
	"github.com/kestrelmem/noetic/internal/shadow"
	"github.com/kestrelmem/noetic/internal/trigger"
	"github.com/kestrelmem/noetic/internal/trustpolicy"
	"github.com/kestrelmem/noetic/internal/vectorstore"
	"github.com/kestrelmem/noetic/internal/vectorstore/httpvs"
	"github.com/kestrelmem/noetic/pkg/types"
)

// Options configures a new Engine. Embedder is required; everything else
// has a sensible default: a nil Store dials the configured Chroma-like
// endpoint on first use, a nil Oracle means heuristic-only dream cycles,
// and a nil Policy starts from the built-in action profiles with no
// learned history.
type Options struct {
	Config   *config.Config
	Store    vectorstore.Store
	Embedder embedder.Embedder
	Oracle   oracle.Oracle
	Policy   *trustpolicy.Engine
	Logger   *log.Logger
}

// Engine is the process-wide facade over the memory core.
type Engine struct {
	cfg    *config.Config
	embed  embedder.Embedder
	oracle oracle.Oracle
	policy *trustpolicy.Engine
	logger *log.Logger

	sessions *session.Manager

	// The store handle is established lazily on first use;
	// on failure the latch stays clear so the next call retries.
	latch vectorstore.InitLatch[vectorstore.Store]
	dial  func() (vectorstore.Store, error)
}

// New builds an Engine from opts.
func New(opts Options) (*Engine, error) {
	if opts.Embedder == nil {
		return nil, &memerr.ValidationError{Field: "embedder", Msg: "an embedder is required"}
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Defaults()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	policy := opts.Policy
	if policy == nil {
		policy = trustpolicy.New(trustpolicy.DefaultActionConfigs(), nil)
	}

	shadowCfg := shadow.Config{
		TokenThreshold:   cfg.ShadowTokenThreshold,
		IdleTimeout:      time.Duration(cfg.ShadowTimeThresholdMin) * time.Minute,
		SurfaceThreshold: cfg.ShadowSurfaceThreshold,
		Deduplicate:      cfg.ShadowDeduplicate,
	}

	e := &Engine{
		cfg:      cfg,
		embed:    opts.Embedder,
		oracle:   opts.Oracle,
		policy:   policy,
		logger:   logger,
		sessions: session.NewManager(shadowCfg, logger),
	}

	if opts.Store != nil {
		injected := opts.Store
		e.dial = func() (vectorstore.Store, error) { return injected, nil }
	} else {
		e.dial = func() (vectorstore.Store, error) {
			return httpvs.New(httpvs.Config{
				BaseURL: fmt.Sprintf("http://%s:%d", cfg.ChromaHost, cfg.ChromaPort),
			}), nil
		}
	}
	return e, nil
}

// Sessions exposes the session manager, e.g. for driving review walks or
// starting the janitor.
func (e *Engine) Sessions() *session.Manager { return e.sessions }

// Policy exposes the trust-policy engine for recording review outcomes.
func (e *Engine) Policy() *trustpolicy.Engine { return e.policy }

func (e *Engine) vs() (vectorstore.Store, error) {
	return e.latch.Get(e.dial)
}

func (e *Engine) memStore() (*memstore.Store, error) {
	vs, err := e.vs()
	if err != nil {
		return nil, err
	}
	return memstore.New(vs, e.embed, e.logger), nil
}

// IngestResult summarizes what one Ingest call did.
type IngestResult struct {
	Trigger  *trigger.Match
	Signal   trigger.SemanticSignal
	SavedIDs []string
}

// Ingest runs the ingest loop over one piece of conversational
// text: classify intent, save what the triggers ask to save, and feed the
// shadow log. Recall/synthesize/align intents are classified but not
// acted on here -- the caller owns retrieval and review flows.
func (e *Engine) Ingest(ctx context.Context, text string) (*IngestResult, error) {
	store, err := e.memStore()
	if err != nil {
		return nil, err
	}

	result := &IngestResult{Signal: trigger.DetectSemanticSignal(text)}

	if m, ok := trigger.DetectTrigger(text); ok {
		result.Trigger = &m
		if m.Category == trigger.CategorySave {
			id, err := store.Save(ctx, e.memoryFromText(text, m.Type), memstore.NewSaveOptions())
			if err != nil {
				return result, err
			}
			result.SavedIDs = append(result.SavedIDs, id)
		}
	} else {
		for _, point := range trigger.ExtractMemorablePoints(text) {
			if point.Type == nil {
				continue
			}
			id, err := store.Save(ctx, e.memoryFromText(point.Text, *point.Type), memstore.NewSaveOptions())
			if err != nil {
				return result, err
			}
			result.SavedIDs = append(result.SavedIDs, id)
		}
	}

	if e.cfg.ShadowEnabled {
		e.recordShadowActivity(ctx, store, text)
	}
	return result, nil
}

func (e *Engine) memoryFromText(text string, memType types.MemoryType) *types.Memory {
	if memType == "" {
		memType = trigger.DetectMemoryType(text)
	}
	return &types.Memory{
		Content:    text,
		Type:       memType,
		Tags:       trigger.DetectTags(text),
		Importance: trigger.EstimateImportance(text),
		Project:    e.cfg.CurrentProject,
		SessionID:  e.sessions.CurrentSessionID(),
		Source:     types.SourceHuman,
	}
}

func (e *Engine) recordShadowActivity(ctx context.Context, store *memstore.Store, text string) {
	topic := "general"
	if tags := trigger.DetectTags(text); len(tags) > 0 {
		topic = tags[0]
	}
	sessionID := e.sessions.CurrentSessionID()
	shadows := e.sessions.Shadows()

	crossed := shadows.Record(sessionID, topic, types.ShadowActivity{
		Kind:   "ingest",
		Target: truncate(text, 120),
		Tokens: len(strings.Fields(text)),
	})
	if !crossed {
		return
	}

	s := shadows.Resolve(sessionID, topic)
	if !shadows.ShouldPromote(s) {
		return
	}
	if _, err := store.Save(ctx, shadow.Promote(s), memstore.NewSaveOptions()); err != nil {
		e.logger.Printf("engine: shadow promotion save failed: session=%s topic=%s err=%v", sessionID, topic, err)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// Search runs the retrieval loop. Zero-valued options pick up the
// configured project and decay half-life.
func (e *Engine) Search(ctx context.Context, query string, opts retrieval.Options) ([]retrieval.Scored, error) {
	vs, err := e.vs()
	if err != nil {
		return nil, err
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if opts.Project == "" {
		opts.Project = e.cfg.CurrentProject
	}
	if opts.DecayHalfLifeDays <= 0 {
		opts.DecayHalfLifeDays = e.cfg.DecayHalfLifeDays
	}
	if !e.cfg.EnableMemoryDecay {
		opts.IncludeDecayed = true
	}
	return retrieval.New(vs, e.embed).Search(ctx, query, opts)
}

// Remember saves a fully-specified memory, bypassing trigger
// classification. Caller-facing equivalent of the store's save.
func (e *Engine) Remember(ctx context.Context, m *types.Memory) (string, error) {
	store, err := e.memStore()
	if err != nil {
		return "", err
	}
	if m.SessionID == "" {
		m.SessionID = e.sessions.CurrentSessionID()
	}
	if m.Project == "" {
		m.Project = e.cfg.CurrentProject
	}
	return store.Save(ctx, m, memstore.NewSaveOptions())
}

// Get returns a memory by id, with the access-count side effect.
func (e *Engine) Get(ctx context.Context, id string) (*types.Memory, error) {
	store, err := e.memStore()
	if err != nil {
		return nil, err
	}
	return store.Get(ctx, id)
}

// Forget hard-deletes a memory, gated by the trust policy: foundational
// targets and any policy decision other than auto (review or deny) are
// refused here, not in the store primitive.
func (e *Engine) Forget(ctx context.Context, id string) error {
	store, err := e.memStore()
	if err != nil {
		return err
	}
	m, err := store.GetRaw(ctx, id)
	if err != nil {
		return err
	}
	if m == nil {
		return &memerr.NotFoundError{Resource: "memory", ID: id}
	}
	if m.IsFoundational() {
		return &memerr.ConflictError{Kind: memerr.ConflictConstraint, Msg: "foundational memories cannot be deleted"}
	}
	decision := e.policy.Decide("delete_memory", trustpolicy.DecisionContext{
		TargetImportance: m.Importance,
		TargetType:       m.Type,
	})
	if decision != trustpolicy.DecisionAuto {
		return &memerr.ConflictError{Kind: memerr.ConflictConstraint,
			Msg: fmt.Sprintf("delete_memory requires %s for %s", decision, id)}
	}
	return store.Delete(ctx, id)
}

// Dream runs one maintenance cycle. The oracle is consulted only when
// dream_use_llm is enabled in config.
func (e *Engine) Dream(ctx context.Context, cycleCfg dream.CycleConfig) (*dream.Report, error) {
	cycle, err := e.dreamCycle()
	if err != nil {
		return nil, err
	}
	return cycle.Run(ctx, cycleCfg)
}

// IngestFoundational feeds a structured foundational document through the
// dream engine's foundational ingest.
func (e *Engine) IngestFoundational(ctx context.Context, doc string) ([]string, error) {
	cycle, err := e.dreamCycle()
	if err != nil {
		return nil, err
	}
	return cycle.IngestFoundational(ctx, doc)
}

func (e *Engine) dreamCycle() (*dream.Cycle, error) {
	vs, err := e.vs()
	if err != nil {
		return nil, err
	}
	store, err := e.memStore()
	if err != nil {
		return nil, err
	}
	var o oracle.Oracle
	if e.cfg.DreamUseLLM {
		o = e.oracle
	}
	return dream.NewCycle(store, vs, e.embed, o, e.policy, e.logger), nil
}

// EndSession closes out the current session: every live shadow of the
// session, idle or not, is promoted or dropped, a durable session record
// is written, and a fresh session id
// will be minted on the next use.
func (e *Engine) EndSession(ctx context.Context, summary string) error {
	store, err := e.memStore()
	if err != nil {
		return err
	}
	vs, err := e.vs()
	if err != nil {
		return err
	}

	sessionID := e.sessions.CurrentSessionID()
	startedAt := e.sessions.CurrentSessionStartedAt()
	shadows := e.sessions.Shadows()

	saved := 0
	for _, s := range shadows.Drain(sessionID) {
		if !shadows.ShouldPromote(s) {
			continue
		}
		if _, err := store.Save(ctx, shadow.Promote(s), memstore.NewSaveOptions()); err != nil {
			e.logger.Printf("engine: end-session shadow promotion failed: topic=%s err=%v", s.Topic, err)
			continue
		}
		saved++
	}

	now := time.Now()
	recorder := session.NewRecorder(vs, e.embed.Dimensions())
	err = recorder.SaveSession(ctx, session.SessionRecord{
		ID:          sessionID,
		Project:     e.cfg.CurrentProject,
		StartedAt:   startedAt,
		EndedAt:     &now,
		MemoryCount: saved,
		Summary:     summary,
	})
	if err != nil {
		return err
	}

	e.sessions.SetCurrentSessionID("")
	return nil
}
