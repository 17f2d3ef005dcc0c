// Package graphenrich implements the Graph Enrichment Engine (component F):
// k-NN neighbor discovery, Union-Find clustering, centrality
// scoring, highway identification, and typed link inference. It never
// mutates the memory graph; callers decide whether to persist proposed
// links via the memory store's AddLink.
package graphenrich

import (
	"regexp"
	"sort"
	"strings"

	"github.com/kestrelmem/noetic/internal/vectorstore"
	"github.com/kestrelmem/noetic/pkg/types"
)

// Config tunes every threshold in the enrichment pipeline.
type Config struct {
	TopK              int
	MinSimilarity     float64
	ClusterThreshold  float64
	CrossClusterBonus float64
	HighwayCount      int
	LinkBudget        int
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		TopK:              5,
		MinSimilarity:     0.5,
		ClusterThreshold:  0.7,
		CrossClusterBonus: 0.5,
		HighwayCount:      0, // 0 means "derive from memory count", see Run.
		LinkBudget:        5,
	}
}

// Edge is a retained k-NN neighbor relationship between two memories.
type Edge struct {
	A, B       string
	Similarity float64
}

// ProposedLink is a typed edge the enrichment engine recommends be added
// via the memory store's AddLink. It is never written automatically.
type ProposedLink struct {
	SourceID string
	Link     types.RichLink
}

// Result is the full output of Run: cluster assignment, the highway set,
// and the proposed links for every retained edge.
type Result struct {
	ClusterOf    map[string]int
	Highways     []string
	Centrality   map[string]float64
	ProposedLinks []ProposedLink
}

// Input pairs a memory with its embedding, as loaded by the caller from
// the vector store.
type Input struct {
	Memory    *types.Memory
	Embedding []float64
}

// Run executes the full enrichment pipeline over the given snapshot of
// memories and their embeddings.
func Run(inputs []Input, cfg Config) Result {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.MinSimilarity == 0 {
		cfg.MinSimilarity = 0.5
	}
	if cfg.ClusterThreshold == 0 {
		cfg.ClusterThreshold = 0.7
	}
	if cfg.CrossClusterBonus == 0 {
		cfg.CrossClusterBonus = 0.5
	}
	if cfg.LinkBudget <= 0 {
		cfg.LinkBudget = 5
	}
	highwayCount := cfg.HighwayCount
	if highwayCount <= 0 {
		highwayCount = minInt(10, maxInt(1, len(inputs)/20))
	}

	edges := knn(inputs, cfg.TopK, cfg.MinSimilarity)
	uf := newUnionFind()
	for _, in := range inputs {
		uf.add(in.Memory.ID)
	}
	for _, e := range edges {
		if e.Similarity >= cfg.ClusterThreshold {
			uf.union(e.A, e.B)
		}
	}
	clusterOf := map[string]int{}
	clusterIDs := map[string]int{}
	for _, in := range inputs {
		root := uf.find(in.Memory.ID)
		id, ok := clusterIDs[root]
		if !ok {
			id = len(clusterIDs)
			clusterIDs[root] = id
		}
		clusterOf[in.Memory.ID] = id
	}

	centrality := map[string]float64{}
	for _, e := range edges {
		centrality[e.A] += e.Similarity
		centrality[e.B] += e.Similarity
		if clusterOf[e.A] != clusterOf[e.B] {
			centrality[e.A] += cfg.CrossClusterBonus
			centrality[e.B] += cfg.CrossClusterBonus
		}
	}

	highways := topNByCentrality(inputs, centrality, highwayCount)

	byID := map[string]*types.Memory{}
	for _, in := range inputs {
		byID[in.Memory.ID] = in.Memory
	}
	links := inferLinks(edges, byID, cfg.LinkBudget)

	return Result{
		ClusterOf:     clusterOf,
		Highways:      highways,
		Centrality:    centrality,
		ProposedLinks: links,
	}
}

func knn(inputs []Input, topK int, minSimilarity float64) []Edge {
	type scored struct {
		id  string
		sim float64
	}

	var edges []Edge
	seen := map[[2]string]bool{}
	for i, a := range inputs {
		var candidates []scored
		for j, b := range inputs {
			if i == j {
				continue
			}
			sim := vectorstore.CosineSimilarity(a.Embedding, b.Embedding)
			if sim >= minSimilarity {
				candidates = append(candidates, scored{id: b.Memory.ID, sim: sim})
			}
		}
		sort.Slice(candidates, func(x, y int) bool { return candidates[x].sim > candidates[y].sim })
		if len(candidates) > topK {
			candidates = candidates[:topK]
		}
		for _, c := range candidates {
			key := edgeKey(a.Memory.ID, c.id)
			if seen[key] {
				continue
			}
			seen[key] = true
			edges = append(edges, Edge{A: a.Memory.ID, B: c.id, Similarity: c.sim})
		}
	}
	return edges
}

func edgeKey(a, b string) [2]string {
	if a < b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

func topNByCentrality(inputs []Input, centrality map[string]float64, n int) []string {
	ids := make([]string, len(inputs))
	for i, in := range inputs {
		ids[i] = in.Memory.ID
	}
	sort.Slice(ids, func(i, j int) bool { return centrality[ids[i]] > centrality[ids[j]] })
	if len(ids) > n {
		ids = ids[:n]
	}
	return ids
}

var replacementPhrasing = regexp.MustCompile(`(?i)\b(replaced|updated|superseded|deprecated)\b`)
var exampleReference = regexp.MustCompile(`(?i)\b(for example|e\.g\.)\b`)

// inferLinks applies the first-match-wins selection table to every
// retained edge, in both directions, then enforces the
// per-memory link budget by keeping the strongest proposed edges.
func inferLinks(edges []Edge, byID map[string]*types.Memory, budget int) []ProposedLink {
	var proposals []ProposedLink
	for _, e := range edges {
		a, b := byID[e.A], byID[e.B]
		if a == nil || b == nil {
			continue
		}
		proposals = append(proposals, proposeOneDirection(a, b, e.Similarity))
		proposals = append(proposals, proposeOneDirection(b, a, e.Similarity))
	}

	bySource := map[string][]ProposedLink{}
	for _, p := range proposals {
		bySource[p.SourceID] = append(bySource[p.SourceID], p)
	}

	var out []ProposedLink
	for _, links := range bySource {
		sort.Slice(links, func(i, j int) bool { return links[i].Link.Strength > links[j].Link.Strength })
		if len(links) > budget {
			links = links[:budget]
		}
		out = append(out, links...)
	}
	return out
}

func proposeOneDirection(a, b *types.Memory, similarity float64) ProposedLink {
	linkType := classifyLink(a, b)
	bonus := linkType.TypeBonus()
	strength := similarity * bonus
	if strength > 1 {
		strength = 1
	}
	return ProposedLink{
		SourceID: a.ID,
		Link: types.RichLink{
			TargetID: b.ID,
			Type:     linkType,
			Strength: strength,
			Reason:   "graph-enrichment",
		},
	}
}

// classifyLink evaluates the ordered selection rules from A's
// perspective, first match wins.
func classifyLink(a, b *types.Memory) types.LinkType {
	aFoundational, bFoundational := a.IsFoundational(), b.IsFoundational()

	switch {
	case bFoundational && !aFoundational:
		return types.LinkDependsOn
	case aFoundational && !bFoundational:
		return types.LinkSupports
	case a.Type == types.TypeDecision && b.Type == types.TypeContext:
		return types.LinkDependsOn
	case a.Type == types.TypeContext && b.Type == types.TypeDecision:
		return types.LinkSupports
	case a.Type == types.TypeLearning && b.Type == types.TypeDecision:
		return types.LinkCausedBy
	case a.Type == types.TypeTodo && b.Type == types.TypeDecision:
		return types.LinkDependsOn
	case a.Timestamp.After(b.Timestamp) && replacementPhrasing.MatchString(a.Content):
		return types.LinkSupersedes
	case a.Type == b.Type && len(a.Content) > int(float64(len(b.Content))*1.3):
		return types.LinkExtends
	case exampleReference.MatchString(a.Content) && strings.Contains(strings.ToLower(a.Content), strings.ToLower(firstWords(b.Content, 3))):
		return types.LinkExampleOf
	default:
		return types.LinkRelated
	}
}

func firstWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
