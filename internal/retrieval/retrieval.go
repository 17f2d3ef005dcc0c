// Package retrieval implements the Retrieval Engine (component E): a
// read-only hybrid search combining vector similarity, BM25, and
// graph-link proximity, with optional decay/access-boost reweighting and
// graph-neighbor expansion.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kestrelmem/noetic/internal/codec"
	"github.com/kestrelmem/noetic/internal/embedder"
	"github.com/kestrelmem/noetic/internal/vectorstore"
	"github.com/kestrelmem/noetic/pkg/types"
)

// HybridConfig weights the three hybrid-search signals.
type HybridConfig struct {
	WeightSemantic   float64
	WeightBM25       float64
	WeightGraph      float64
	GraphMaxDistance int
}

// DefaultHybridConfig returns the defaults: 0.6/0.3/0.1, max distance 2.
func DefaultHybridConfig() HybridConfig {
	return HybridConfig{WeightSemantic: 0.6, WeightBM25: 0.3, WeightGraph: 0.1, GraphMaxDistance: 2}
}

// Options configures Search.
type Options struct {
	Limit                int
	Types                []types.MemoryType
	Tags                 []string
	Project              string
	MinImportance        int
	IncludeDecayed       bool
	UseHybrid            bool
	HybridConfig         HybridConfig
	ExpandGraph          bool
	GraphExpansionLimit  int
	DecayHalfLifeDays    float64
}

// DefaultOptions returns the defaults.
func DefaultOptions() Options {
	return Options{
		Limit:               10,
		HybridConfig:        DefaultHybridConfig(),
		GraphExpansionLimit: 3,
		DecayHalfLifeDays:   30,
	}
}

// Scored pairs a decoded memory with its final ranking score.
type Scored struct {
	Memory          *types.Memory
	Score           float64
	GraphExpansion  bool
}

// Engine runs Search against a vector store and embedder.
type Engine struct {
	vs    vectorstore.Store
	embed embedder.Embedder
	now   func() time.Time
}

// New builds a retrieval Engine.
func New(vs vectorstore.Store, embed embedder.Embedder) *Engine {
	return &Engine{vs: vs, embed: embed, now: time.Now}
}

// Search executes the full retrieval pipeline: vector candidates,
// tag filtering, decay reweighting, hybrid rescoring, and expansion.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]Scored, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	queryVec, err := e.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}

	where := vectorstore.Where{}
	var andClauses []vectorstore.Where
	if opts.Project != "" {
		andClauses = append(andClauses, vectorstore.Where{"project": opts.Project})
	}
	if len(opts.Types) == 1 {
		andClauses = append(andClauses, vectorstore.Where{"type": string(opts.Types[0])})
	} else if len(opts.Types) > 1 {
		vals := make([]interface{}, len(opts.Types))
		for i, t := range opts.Types {
			vals[i] = string(t)
		}
		andClauses = append(andClauses, vectorstore.Where{"type": map[string]interface{}{"$in": vals}})
	}
	if opts.MinImportance > 0 {
		andClauses = append(andClauses, vectorstore.Where{"importance": map[string]interface{}{"$gte": float64(opts.MinImportance)}})
	}
	if len(andClauses) == 1 {
		where = andClauses[0]
	} else if len(andClauses) > 1 {
		clauses := make([]interface{}, len(andClauses))
		for i, c := range andClauses {
			clauses[i] = c
		}
		where = vectorstore.Where{"$and": clauses}
	}

	res, err := e.vs.Query(ctx, vectorstore.CollectionMemories, vectorstore.QueryRequest{
		QueryEmbedding: queryVec,
		NResults:       opts.Limit * 2,
		Where:          where,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval: query store: %w", err)
	}

	candidates := make([]Scored, 0, len(res.IDs))
	for i, id := range res.IDs {
		m, _ := codec.Decode(id, res.Documents[i], res.Metadatas[i])
		if !tagsMatch(m.Tags, opts.Tags) {
			continue
		}
		similarity := 1 - res.Distances[i]
		candidates = append(candidates, Scored{Memory: m, Score: similarity})
	}

	if !opts.IncludeDecayed {
		halfLife := opts.DecayHalfLifeDays
		if halfLife <= 0 {
			halfLife = 30
		}
		for i := range candidates {
			applyDecay(&candidates[i], e.now(), halfLife)
		}
	}

	if opts.UseHybrid {
		if err := e.applyHybrid(ctx, query, candidates, opts); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Memory.IngestionTime.After(candidates[j].Memory.IngestionTime)
	})

	if len(candidates) > opts.Limit {
		candidates = candidates[:opts.Limit]
	}

	if opts.ExpandGraph {
		expansion, err := e.expandGraph(ctx, candidates, opts)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, expansion...)
	}

	return candidates, nil
}

func tagsMatch(memoryTags, requestedTags []string) bool {
	if len(requestedTags) == 0 {
		return true
	}
	want := map[string]bool{}
	for _, t := range requestedTags {
		want[t] = true
	}
	for _, t := range memoryTags {
		if want[t] {
			return true
		}
	}
	return false
}

func applyDecay(s *Scored, now time.Time, halfLifeDays float64) {
	ageDays := now.Sub(s.Memory.Timestamp).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	decay := math.Pow(0.5, ageDays/halfLifeDays)
	boost := 1 + (float64(s.Memory.Importance)-3)*0.1
	accessBoost := math.Min(float64(s.Memory.AccessCount)*0.02, 0.2)
	s.Score = s.Score*decay*boost + accessBoost
}

func (e *Engine) applyHybrid(ctx context.Context, query string, candidates []Scored, opts Options) error {
	cfg := opts.HybridConfig
	if cfg.WeightSemantic == 0 && cfg.WeightBM25 == 0 && cfg.WeightGraph == 0 {
		cfg = DefaultHybridConfig()
	}

	corpusDocs, err := e.loadGraphContext(ctx, opts.Project)
	if err != nil {
		return err
	}
	corpus := newBM25Corpus(corpusDocs)
	queryTokens := tokenize(query)

	maxDist := cfg.GraphMaxDistance
	if maxDist <= 0 {
		maxDist = 2
	}

	for i := range candidates {
		semantic := candidates[i].Score
		bm25 := corpus.score(queryTokens, tokenize(candidates[i].Memory.Content))
		graph := graphBoost(candidates[i].Memory, candidates, maxDist)
		candidates[i].Score = cfg.WeightSemantic*semantic + cfg.WeightBM25*bm25 + cfg.WeightGraph*graph
	}
	return nil
}

func (e *Engine) loadGraphContext(ctx context.Context, project string) ([]string, error) {
	where := vectorstore.Where{}
	if project != "" {
		where["project"] = project
	}
	res, err := e.vs.Get(ctx, vectorstore.CollectionMemories, vectorstore.GetRequest{Where: where})
	if err != nil {
		return nil, fmt.Errorf("retrieval: load graph context: %w", err)
	}

	type withTime struct {
		doc string
		ts  time.Time
	}
	items := make([]withTime, 0, len(res.IDs))
	for i, doc := range res.Documents {
		m, _ := codec.Decode(res.IDs[i], doc, res.Metadatas[i])
		items = append(items, withTime{doc: doc, ts: m.Timestamp})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ts.After(items[j].ts) })
	if len(items) > 500 {
		items = items[:500]
	}
	docs := make([]string, len(items))
	for i, it := range items {
		docs[i] = it.doc
	}
	return docs, nil
}

// graphBoost finds the shortest link-distance from m to any other
// candidate (within maxDist hops) and returns 1/distance, or 0 if none is
// reachable.
func graphBoost(m *types.Memory, candidates []Scored, maxDist int) float64 {
	candidateIDs := map[string]bool{}
	for _, c := range candidates {
		if c.Memory.ID != m.ID {
			candidateIDs[c.Memory.ID] = true
		}
	}
	if len(candidateIDs) == 0 {
		return 0
	}

	byID := map[string]*types.Memory{m.ID: m}
	for _, c := range candidates {
		byID[c.Memory.ID] = c.Memory
	}

	type frontierNode struct {
		id   string
		dist int
	}
	visited := map[string]bool{m.ID: true}
	queue := []frontierNode{{id: m.ID, dist: 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.dist >= maxDist {
			continue
		}
		node := byID[cur.id]
		if node == nil {
			continue
		}
		for _, l := range node.Links {
			if visited[l.TargetID] {
				continue
			}
			visited[l.TargetID] = true
			if candidateIDs[l.TargetID] {
				return 1.0 / float64(cur.dist+1)
			}
			queue = append(queue, frontierNode{id: l.TargetID, dist: cur.dist + 1})
		}
	}
	return 0
}

func (e *Engine) expandGraph(ctx context.Context, ranked []Scored, opts Options) ([]Scored, error) {
	limit := opts.GraphExpansionLimit
	if limit <= 0 {
		limit = 3
	}

	topN := ranked
	if len(topN) > opts.Limit {
		topN = topN[:opts.Limit]
	}

	existing := map[string]bool{}
	for _, s := range ranked {
		existing[s.Memory.ID] = true
	}

	var neighborIDs []string
	for _, s := range topN {
		for _, l := range s.Memory.Links {
			if existing[l.TargetID] {
				continue
			}
			existing[l.TargetID] = true
			neighborIDs = append(neighborIDs, l.TargetID)
			if len(neighborIDs) >= limit {
				break
			}
		}
		if len(neighborIDs) >= limit {
			break
		}
	}
	if len(neighborIDs) == 0 {
		return nil, nil
	}

	res, err := e.vs.Get(ctx, vectorstore.CollectionMemories, vectorstore.GetRequest{IDs: neighborIDs})
	if err != nil {
		return nil, fmt.Errorf("retrieval: fetch graph neighbors: %w", err)
	}

	out := make([]Scored, 0, len(res.IDs))
	for i, id := range res.IDs {
		m, _ := codec.Decode(id, res.Documents[i], res.Metadatas[i])
		out = append(out, Scored{Memory: m, Score: 0.1, GraphExpansion: true})
	}
	return out, nil
}
