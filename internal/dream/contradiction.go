// Package dream implements the Dream/Maintenance Engine (component G):
// contradiction detection, consolidation, importance decay,
// and foundational-document ingest. Every operation here is idempotent
// with respect to the snapshot it is given and safe to run in dry-run
// mode -- the detection, consolidation, decay and parsing functions do not
// write to the memory store; Cycle applies their returned decisions through
// the memory store.
package dream

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kestrelmem/noetic/internal/oracle"
	"github.com/kestrelmem/noetic/pkg/types"
)

// ConflictKind distinguishes the two contradiction-detection rules:
// temporal (change-phrase recency) and direct (negation pairs).
type ConflictKind string

const (
	ConflictTemporal ConflictKind = "temporal"
	ConflictDirect    ConflictKind = "direct"
)

// Contradiction is a detected pair of conflicting memories, with the
// "superseder" (newer, or otherwise winning side) identified as A.
type Contradiction struct {
	A, B       *types.Memory
	Kind       ConflictKind
	Confidence float64
}

var changePhrases = regexp.MustCompile(`(?i)\b(switched|changed|migrated)\s+from\b|no longer using|now use|instead of`)

// negationPair is one registered opposite-meaning regex pair used by the
// direct-conflict rule. Both regexes must capture the same
// subject for a match to count.
type negationPair struct {
	positive *regexp.Regexp
	negative *regexp.Regexp
}

var negationPairs = []negationPair{
	{
		positive: regexp.MustCompile(`(?i)\buse[sd]?\s+(\w[\w\s]{0,30}?)\b`),
		negative: regexp.MustCompile(`(?i)\bdon'?t\s+use\s+(\w[\w\s]{0,30}?)\b`),
	},
	{
		positive: regexp.MustCompile(`(?i)\balways\s+(\w[\w\s]{0,30}?)\b`),
		negative: regexp.MustCompile(`(?i)\bnever\s+(\w[\w\s]{0,30}?)\b`),
	},
	{
		positive: regexp.MustCompile(`(?i)\b(\w[\w\s]{0,30}?)\s+is\s+good\b`),
		negative: regexp.MustCompile(`(?i)\b(\w[\w\s]{0,30}?)\s+is\s+bad\b`),
	},
}

const (
	temporalConfidence = 0.7
	directConfidence   = 0.85
	minConfidence      = 0.6
)

var temporalEligibleTypes = map[types.MemoryType]bool{
	types.TypeDecision:   true,
	types.TypePattern:    true,
	types.TypePreference: true,
}

// DetectContradictions scans every unordered pair of memories and returns
// the contradictions that survive the minimum-confidence cutoff.
func DetectContradictions(memories []*types.Memory) []Contradiction {
	var out []Contradiction
	for i := 0; i < len(memories); i++ {
		for j := i + 1; j < len(memories); j++ {
			a, b := memories[i], memories[j]
			if a.IsFoundational() && b.IsFoundational() {
				continue
			}
			if c, ok := detectTemporalConflict(a, b); ok {
				out = append(out, c)
				continue
			}
			if c, ok := detectDirectConflict(a, b); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

func detectTemporalConflict(a, b *types.Memory) (Contradiction, bool) {
	if !temporalEligibleTypes[a.Type] || !temporalEligibleTypes[b.Type] {
		return Contradiction{}, false
	}
	if a.Type != b.Type {
		return Contradiction{}, false
	}
	if a.Project == "" || a.Project != b.Project {
		return Contradiction{}, false
	}
	if !shareTag(a.Tags, b.Tags) {
		return Contradiction{}, false
	}
	if !changePhrases.MatchString(a.Content) && !changePhrases.MatchString(b.Content) {
		return Contradiction{}, false
	}
	if temporalConfidence < minConfidence {
		return Contradiction{}, false
	}

	newer, older := a, b
	if older.Timestamp.After(newer.Timestamp) {
		newer, older = older, newer
	}
	return Contradiction{A: newer, B: older, Kind: ConflictTemporal, Confidence: temporalConfidence}, true
}

func detectDirectConflict(a, b *types.Memory) (Contradiction, bool) {
	for _, pair := range negationPairs {
		if subj, ok := matchesOpposite(pair, a.Content, b.Content); ok {
			_ = subj
			if directConfidence < minConfidence {
				return Contradiction{}, false
			}
			return Contradiction{A: a, B: b, Kind: ConflictDirect, Confidence: directConfidence}, true
		}
		if subj, ok := matchesOpposite(pair, b.Content, a.Content); ok {
			_ = subj
			return Contradiction{A: b, B: a, Kind: ConflictDirect, Confidence: directConfidence}, true
		}
	}
	return Contradiction{}, false
}

func matchesOpposite(pair negationPair, positiveText, negativeText string) (string, bool) {
	pm := pair.positive.FindStringSubmatch(positiveText)
	nm := pair.negative.FindStringSubmatch(negativeText)
	if pm == nil || nm == nil {
		return "", false
	}
	subjA := strings.TrimSpace(strings.ToLower(pm[len(pm)-1]))
	subjB := strings.TrimSpace(strings.ToLower(nm[len(nm)-1]))
	if subjA == "" || subjA != subjB {
		return "", false
	}
	return subjA, true
}

func shareTag(a, b []string) bool {
	set := map[string]bool{}
	for _, t := range a {
		set[t] = true
	}
	for _, t := range b {
		if set[t] {
			return true
		}
	}
	return false
}

// ResolutionAction is the oracle's (or fallback's) verdict on a
// contradiction.
type ResolutionAction string

const (
	ActionSupersedeA ResolutionAction = "supersede_a"
	ActionSupersedeB ResolutionAction = "supersede_b"
	ActionKeepBoth   ResolutionAction = "keep_both"
	ActionMerge      ResolutionAction = "merge"
	ActionReportOnly ResolutionAction = "report_only"
)

// Resolution is the decision produced for one Contradiction.
type Resolution struct {
	Action        ResolutionAction
	MergedContent string
	Reasoning     string
	Confidence    float64
}

type oracleConflictResponse struct {
	IsRealConflict bool    `json:"is_real_conflict"`
	Resolution     string  `json:"resolution"`
	MergedContent  string  `json:"merged_content"`
	Reasoning      string  `json:"reasoning"`
	Confidence     float64 `json:"confidence"`
}

// Resolve decides what to do about c. With an available oracle, the
// oracle's structured judgment is used verbatim; without one, temporal
// conflicts auto-resolve via recency and direct conflicts are reported
// only.
func Resolve(ctx context.Context, o oracle.Oracle, c Contradiction) (Resolution, error) {
	if o != nil && o.IsAvailable(ctx) {
		res, err := resolveViaOracle(ctx, o, c)
		if err == nil {
			return res, nil
		}
		// fall through to the non-LLM fallback on a malformed oracle reply
	}

	if c.Kind == ConflictTemporal {
		return Resolution{
			Action:     ActionSupersedeB,
			Reasoning:  "temporal conflict auto-resolved by recency",
			Confidence: c.Confidence,
		}, nil
	}
	return Resolution{Action: ActionReportOnly, Reasoning: "direct conflict requires human review", Confidence: c.Confidence}, nil
}

func resolveViaOracle(ctx context.Context, o oracle.Oracle, c Contradiction) (Resolution, error) {
	prompt := fmt.Sprintf(
		"Two memories may conflict.\nMemory A: %s\nMemory B: %s\n"+
			"Respond with JSON: {\"is_real_conflict\": bool, \"resolution\": one of "+
			"\"supersede_a\"|\"supersede_b\"|\"keep_both\"|\"merge\", \"merged_content\": string, "+
			"\"reasoning\": string, \"confidence\": number}",
		c.A.Content, c.B.Content)

	raw, err := o.Complete(ctx, prompt)
	if err != nil {
		return Resolution{}, fmt.Errorf("dream: oracle conflict resolution: %w", err)
	}

	var parsed oracleConflictResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return Resolution{}, fmt.Errorf("dream: parse oracle conflict response: %w", err)
	}
	if !parsed.IsRealConflict {
		return Resolution{Action: ActionKeepBoth, Reasoning: parsed.Reasoning, Confidence: parsed.Confidence}, nil
	}

	action := ResolutionAction(parsed.Resolution)
	switch action {
	case ActionSupersedeA, ActionSupersedeB, ActionKeepBoth, ActionMerge:
	default:
		return Resolution{}, fmt.Errorf("dream: oracle returned unrecognized resolution %q", parsed.Resolution)
	}

	return Resolution{
		Action:        action,
		MergedContent: parsed.MergedContent,
		Reasoning:     parsed.Reasoning,
		Confidence:    parsed.Confidence,
	}, nil
}
