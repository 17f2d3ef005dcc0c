package trigger

import "regexp"

// Signal is the closed set of semantic-urgency classifications.
type Signal string

const (
	SignalCritical Signal = "critical"
	SignalImportant Signal = "important"
	SignalNotable  Signal = "notable"
	SignalRoutine  Signal = "routine"
)

// SemanticSignal is the result of detect_semantic_signal: a classification,
// the reason it was chosen, and the importance boost it implies.
type SemanticSignal struct {
	Signal Signal
	Reason string
	Boost  float64
}

type semanticRule struct {
	pattern *regexp.Regexp
	signal  Signal
	reason  string
	boost   float64
}

// semanticRules is evaluated in order; the first match wins.
var semanticRules = []semanticRule{
	{pattern: regexp.MustCompile(`(?i)\b(critical|urgent|emergency|production (down|outage))\b`), signal: SignalCritical, reason: "critical/urgent language", boost: 2},
	{pattern: regexp.MustCompile(`(?i)\b(important|must|required|breaking change)\b`), signal: SignalImportant, reason: "important/required language", boost: 1},
	{pattern: regexp.MustCompile(`(?i)\b(worth noting|keep in mind|fyi)\b`), signal: SignalNotable, reason: "notable aside", boost: 0.5},
}

// DetectSemanticSignal classifies text's urgency via the ordered rule
// list, defaulting to routine/no-boost when nothing matches.
func DetectSemanticSignal(text string) SemanticSignal {
	for _, r := range semanticRules {
		if r.pattern.MatchString(text) {
			return SemanticSignal{Signal: r.signal, Reason: r.reason, Boost: r.boost}
		}
	}
	return SemanticSignal{Signal: SignalRoutine, Reason: "no urgency markers found", Boost: 0}
}
