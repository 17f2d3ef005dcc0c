package dream

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kestrelmem/noetic/internal/oracle"
	"github.com/kestrelmem/noetic/internal/vectorstore"
	"github.com/kestrelmem/noetic/pkg/types"
)

// ConsolidationConfig tunes clustering thresholds.
type ConsolidationConfig struct {
	CosineThreshold float64
	JaccardOverlap  float64 // novelty cutoff: sentences below this overlap with the primary are kept
	NoveltyDedup    float64 // Jaccard cutoff above which a novel sentence is treated as a duplicate addition
}

// DefaultConsolidationConfig returns the defaults.
func DefaultConsolidationConfig() ConsolidationConfig {
	return ConsolidationConfig{CosineThreshold: 0.85, JaccardOverlap: 0.7, NoveltyDedup: 0.7}
}

// EmbeddedMemory pairs a memory with its embedding, or leaves Embedding
// nil to signal the Jaccard text-similarity fallback should be used.
type EmbeddedMemory struct {
	Memory    *types.Memory
	Embedding []float64
}

// Candidate is a proposed consolidation of two or more memories into one.
type Candidate struct {
	Members       []*types.Memory
	Primary       *types.Memory
	MergedContent string
	MergeRationale string
}

// FindCandidates clusters memories (visited in input order) whose pairwise
// similarity meets the threshold, using cosine similarity when embeddings
// are present and falling back to word-set Jaccard otherwise.
func FindCandidates(items []EmbeddedMemory, cfg ConsolidationConfig) []Candidate {
	visited := make([]bool, len(items))
	var candidates []Candidate

	for i := range items {
		if visited[i] {
			continue
		}
		cluster := []int{i}
		visited[i] = true
		for j := i + 1; j < len(items); j++ {
			if visited[j] {
				continue
			}
			if similar(items[i], items[j], cfg) {
				cluster = append(cluster, j)
				visited[j] = true
			}
		}
		if len(cluster) < 2 {
			continue
		}

		members := make([]*types.Memory, len(cluster))
		for k, idx := range cluster {
			members[k] = items[idx].Memory
		}
		candidates = append(candidates, buildCandidate(members, cfg))
	}
	return candidates
}

func similar(a, b EmbeddedMemory, cfg ConsolidationConfig) bool {
	if a.Embedding != nil && b.Embedding != nil {
		return vectorstore.CosineSimilarity(a.Embedding, b.Embedding) >= cfg.CosineThreshold
	}
	return jaccard(wordSet(a.Memory.Content), wordSet(b.Memory.Content)) >= cfg.CosineThreshold
}

func buildCandidate(members []*types.Memory, cfg ConsolidationConfig) Candidate {
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].Importance != members[j].Importance {
			return members[i].Importance > members[j].Importance
		}
		if len(members[i].Content) != len(members[j].Content) {
			return len(members[i].Content) > len(members[j].Content)
		}
		return members[i].Timestamp.After(members[j].Timestamp)
	})

	primary := members[0]
	primaryWords := wordSet(primary.Content)

	var additions []string
	var rationale []string
	for _, m := range members[1:] {
		for _, sentence := range splitSentences(m.Content) {
			sentWords := wordSet(sentence)
			overlap := jaccard(sentWords, primaryWords)
			if overlap >= cfg.JaccardOverlap {
				continue // not novel enough
			}
			if isDuplicateAddition(sentence, additions, cfg.NoveltyDedup) {
				continue
			}
			additions = append(additions, sentence)
		}
		rationale = append(rationale, fmt.Sprintf("merged %s", m.ID))
	}

	merged := primary.Content
	if len(additions) > 0 {
		merged = fmt.Sprintf("%s [%s]", primary.Content, strings.Join(additions, "; "))
	}

	return Candidate{
		Members:        members,
		Primary:        primary,
		MergedContent:  merged,
		MergeRationale: strings.Join(rationale, "; "),
	}
}

func isDuplicateAddition(sentence string, existing []string, dedupThreshold float64) bool {
	sw := wordSet(sentence)
	for _, e := range existing {
		if jaccard(sw, wordSet(e)) > dedupThreshold {
			return true
		}
	}
	return false
}

func splitSentences(text string) []string {
	var out []string
	var buf strings.Builder
	for _, r := range text {
		buf.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			s := strings.TrimSpace(buf.String())
			if s != "" {
				out = append(out, s)
			}
			buf.Reset()
		}
	}
	if rest := strings.TrimSpace(buf.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}

func wordSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if len(w) > 2 {
			set[w] = true
		}
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	var intersection int
	for w := range a {
		if b[w] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

type oracleConsolidationResponse struct {
	Decline       bool   `json:"decline"`
	MergedContent string `json:"merged_content"`
	Reasoning     string `json:"reasoning"`
}

// RefineWithOracle lets an available oracle override or decline a
// candidate's merged content. On decline, or any
// oracle/parse failure, the candidate is returned unchanged.
func RefineWithOracle(ctx context.Context, o oracle.Oracle, c Candidate) (Candidate, bool) {
	if o == nil || !o.IsAvailable(ctx) {
		return c, true
	}

	contents := make([]string, len(c.Members))
	for i, m := range c.Members {
		contents[i] = m.Content
	}
	prompt := fmt.Sprintf(
		"These memories may be consolidated:\n%s\nProposed merge: %s\n"+
			"Respond with JSON: {\"decline\": bool, \"merged_content\": string, \"reasoning\": string}",
		strings.Join(contents, "\n"), c.MergedContent)

	raw, err := o.Complete(ctx, prompt)
	if err != nil {
		return c, true
	}
	var parsed oracleConsolidationResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return c, true
	}
	if parsed.Decline {
		return c, false
	}
	if parsed.MergedContent != "" {
		c.MergedContent = parsed.MergedContent
	}
	if parsed.Reasoning != "" {
		c.MergeRationale = parsed.Reasoning
	}
	return c, true
}

// MaxImportance returns the maximum Importance across a candidate's
// members.
func (c Candidate) MaxImportance() int {
	max := 0
	for _, m := range c.Members {
		if m.Importance > max {
			max = m.Importance
		}
	}
	return max
}

// UnionTags returns the de-duplicated union of tags across all members.
func (c Candidate) UnionTags() []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range c.Members {
		for _, t := range m.Tags {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

// NonPrimaryMembers returns every member except the selected primary --
// the ones that must be superseded into the newly created merged memory.
func (c Candidate) NonPrimaryMembers() []*types.Memory {
	var out []*types.Memory
	for _, m := range c.Members {
		if m.ID != c.Primary.ID {
			out = append(out, m)
		}
	}
	return out
}
