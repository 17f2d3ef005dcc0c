package trigger

import (
	"regexp"
	"strings"
)

// InsightKind classifies the phrasing that surfaced an assistant insight.
type InsightKind string

const (
	InsightRecommendation InsightKind = "recommendation"
	InsightDiscovery      InsightKind = "discovery"
	InsightPattern        InsightKind = "pattern"
	InsightSolution       InsightKind = "solution"
)

// Insight is one extracted assistant-authored observation worth saving.
type Insight struct {
	Kind    InsightKind
	Content string
}

type insightRule struct {
	pattern *regexp.Regexp
	kind    InsightKind
}

var insightRules = []insightRule{
	{pattern: regexp.MustCompile(`(?i)\bI (recommend|suggest|would suggest)\b.*`), kind: InsightRecommendation},
	{pattern: regexp.MustCompile(`(?i)\bit (would be|'?s) (better|best) to\b.*`), kind: InsightRecommendation},
	{pattern: regexp.MustCompile(`(?i)\bI (discovered|found|noticed) that\b.*`), kind: InsightDiscovery},
	{pattern: regexp.MustCompile(`(?i)\bit turns out\b.*`), kind: InsightDiscovery},
	{pattern: regexp.MustCompile(`(?i)\bI('m| am) noticing a pattern\b.*`), kind: InsightPattern},
	{pattern: regexp.MustCompile(`(?i)\bthis (seems|appears) to be a recurring\b.*`), kind: InsightPattern},
	{pattern: regexp.MustCompile(`(?i)\bthe (fix|solution|resolution) (was|is) to\b.*`), kind: InsightSolution},
	{pattern: regexp.MustCompile(`(?i)\bto resolve this,?\s*.*`), kind: InsightSolution},
}

// DetectClaudeInsights scans a passage sentence by sentence for any of the
// assistant-authored insight phrasings, deduplicating near-identical
// matches by Jaccard overlap on their extracted content.
func DetectClaudeInsights(text string) []Insight {
	var insights []Insight
	for _, sentence := range splitSentences(text) {
		for _, r := range insightRules {
			if loc := r.pattern.FindStringIndex(sentence); loc != nil {
				content := strings.TrimSpace(sentence[loc[0]:])
				if !isDuplicateInsight(content, insights) {
					insights = append(insights, Insight{Kind: r.kind, Content: content})
				}
				break // first matching rule per sentence
			}
		}
	}
	return insights
}

func isDuplicateInsight(content string, existing []Insight) bool {
	words := wordSet(content)
	for _, e := range existing {
		if jaccard(words, wordSet(e.Content)) > 0.7 {
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
