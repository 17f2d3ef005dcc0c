// Package trigger implements the Trigger Detector (component H):
// regex-classified intent detection over conversational text. Each
// category is a fixed, ordered list of case-insensitive patterns; a
// category classification returns the first pattern that matches.
// An Aho-Corasick automaton prefilters the fixed-string stems of every
// pattern so texts with no candidate phrase at all skip the full regex
// sweep entirely.
package trigger

import (
	"regexp"
	"strings"

	"github.com/coregx/ahocorasick"
	"github.com/kestrelmem/noetic/pkg/types"
)

// Category names the four trigger classes, prioritized in this order by
// detect_trigger.
type Category string

const (
	CategorySynthesize Category = "synthesize"
	CategoryAlign      Category = "align"
	CategoryRecall     Category = "recall"
	CategorySave       Category = "save"
)

var categoryPriority = []Category{CategorySynthesize, CategoryAlign, CategoryRecall, CategorySave}

// rule pairs a compiled pattern with the memory type and confidence it
// implies when matched.
type rule struct {
	pattern    *regexp.Regexp
	memType    types.MemoryType
	confidence float64
	stem       string // a literal substring guaranteed present when pattern matches, for the AC prefilter
}

// Match is a single detected trigger.
type Match struct {
	Category   Category
	Type       types.MemoryType
	Confidence float64
	Text       string
}

var rulesByCategory = map[Category][]rule{
	CategorySynthesize: {
		{pattern: regexp.MustCompile(`(?i)\bpull (this|it all|everything) together\b`), memType: types.TypeSummary, confidence: 0.85, stem: "pull"},
		{pattern: regexp.MustCompile(`(?i)\bsynthesiz(e|ing) (what|everything) we`), memType: types.TypeSummary, confidence: 0.8, stem: "synthesiz"},
		{pattern: regexp.MustCompile(`(?i)\bsynthesize (and|the|everything|what)\b`), memType: types.TypeSummary, confidence: 0.8, stem: "synthesiz"},
		{pattern: regexp.MustCompile(`(?i)\bsum up (what|everything)\b`), memType: types.TypeSummary, confidence: 0.8, stem: "sum up"},
	},
	CategoryAlign: {
		{pattern: regexp.MustCompile(`(?i)\bare we (on the same page|aligned)\b`), memType: types.TypeContext, confidence: 0.85, stem: "are we"},
		{pattern: regexp.MustCompile(`(?i)\blet'?s make sure we agree\b`), memType: types.TypeContext, confidence: 0.8, stem: "make sure we agree"},
	},
	CategoryRecall: {
		{pattern: regexp.MustCompile(`(?i)\bwhat did (we|i) (decide|say) about\b`), memType: types.TypeDecision, confidence: 0.8, stem: "what did"},
		{pattern: regexp.MustCompile(`(?i)\bdo you remember\b`), memType: types.TypeContext, confidence: 0.75, stem: "remember"},
		{pattern: regexp.MustCompile(`(?i)\bwhat was the (reasoning|rationale) for\b`), memType: types.TypeDecision, confidence: 0.7, stem: "what was the"},
	},
	CategorySave: {
		{pattern: regexp.MustCompile(`(?i)\bremember that\b`), memType: types.TypeContext, confidence: 0.85, stem: "remember that"},
		{pattern: regexp.MustCompile(`(?i)\b(please )?note that\b`), memType: types.TypeContext, confidence: 0.75, stem: "note that"},
		{pattern: regexp.MustCompile(`(?i)\bfrom now on\b`), memType: types.TypePreference, confidence: 0.75, stem: "from now on"},
		{pattern: regexp.MustCompile(`(?i)\balways (use|do|prefer)\b`), memType: types.TypePreference, confidence: 0.7, stem: "always"},
	},
}

var automaton *ahocorasick.Automaton

func init() {
	seen := map[string]bool{}
	var stems []string
	for _, rules := range rulesByCategory {
		for _, r := range rules {
			stem := strings.ToLower(r.stem)
			if seen[stem] {
				continue
			}
			seen[stem] = true
			stems = append(stems, stem)
		}
	}
	a, err := ahocorasick.NewBuilder().
		AddStrings(stems).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		// The stem list is a compile-time constant; a build failure here
		// means a bug in this file, not a runtime condition.
		panic("trigger: failed to build prefilter automaton: " + err.Error())
	}
	automaton = a
}

func hasAnyStem(text string) bool {
	return len(automaton.FindAllOverlapping([]byte(strings.ToLower(text)))) > 0
}

func classify(text string, category Category) (Match, bool) {
	for _, r := range rulesByCategory[category] {
		if r.pattern.MatchString(text) {
			return Match{Category: category, Type: r.memType, Confidence: r.confidence, Text: text}, true
		}
	}
	return Match{}, false
}

// thresholds enforced by detect_trigger on top of per-rule confidence:
// synthesize (>=0.8) > align (>=0.8) > recall (>=0.7) > save (>=0.7).
var categoryThreshold = map[Category]float64{
	CategorySynthesize: 0.8,
	CategoryAlign:      0.8,
	CategoryRecall:     0.7,
	CategorySave:       0.7,
}

// DetectTrigger returns at most one match: the highest-priority category
// (synthesize > align > recall > save) whose best rule both matches and
// clears that category's confidence threshold.
func DetectTrigger(text string) (Match, bool) {
	if !hasAnyStem(text) {
		return Match{}, false
	}
	for _, cat := range categoryPriority {
		if m, ok := classify(text, cat); ok && m.Confidence >= categoryThreshold[cat] {
			return m, true
		}
	}
	return Match{}, false
}
