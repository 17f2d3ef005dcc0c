package trigger

import (
	"regexp"
	"strings"

	"github.com/kestrelmem/noetic/pkg/types"
)

// typeRule maps a content pattern to the memory type it implies. The list
// is ordered; detection returns the first match.
type typeRule struct {
	pattern *regexp.Regexp
	memType types.MemoryType
}

var typeRules = []typeRule{
	{regexp.MustCompile(`(?i)\b(we )?(decided|chose|going with|settled on|switched to)\b`), types.TypeDecision},
	{regexp.MustCompile(`(?i)\b(learned|turns out|realized|discovered|til)\b`), types.TypeLearning},
	{regexp.MustCompile(`(?i)\b(prefer|from now on|always (use|do)|never (use|do)|i like)\b`), types.TypePreference},
	{regexp.MustCompile(`(?i)\b(todo|need to|remember to|don'?t forget to|still have to)\b`), types.TypeTodo},
	{regexp.MustCompile(`(?i)\b(every time|whenever|tends to|keeps (happening|failing)|pattern)\b`), types.TypePattern},
	{regexp.MustCompile(`(?i)(https?://|\bsee the docs\b|\bdocumentation\b)`), types.TypeReference},
	{regexp.MustCompile(`(?i)\b(in summary|to summarize|overall|recap)\b`), types.TypeSummary},
}

// DetectMemoryType classifies text into a memory type via the ordered rule
// list, defaulting to context.
func DetectMemoryType(text string) types.MemoryType {
	for _, r := range typeRules {
		if r.pattern.MatchString(text) {
			return r.memType
		}
	}
	return types.TypeContext
}

var hedgingPattern = regexp.MustCompile(`(?i)\b(maybe|might|not sure|possibly|i think|i guess)\b`)

// EstimateImportance scores text on the 1-5 importance scale: the default
// 3, raised by urgency markers (via DetectSemanticSignal) and lowered by
// hedging language.
func EstimateImportance(text string) int {
	importance := 3

	switch DetectSemanticSignal(text).Signal {
	case SignalCritical:
		importance += 2
	case SignalImportant:
		importance++
	}

	if hedgingPattern.MatchString(text) {
		importance--
	}

	if importance < 1 {
		importance = 1
	}
	if importance > 5 {
		importance = 5
	}
	return importance
}

// tagVocabulary is the closed set of topic words promoted into tags when
// present in content. Checked as whole lowercase words.
var tagVocabulary = []string{
	"database", "postgres", "mysql", "mongodb", "redis", "sqlite",
	"api", "http", "grpc", "auth", "security", "testing", "deploy",
	"docker", "kubernetes", "config", "performance", "frontend",
	"backend", "logging", "migration", "cache", "queue",
}

var hashtagPattern = regexp.MustCompile(`#([a-zA-Z][a-zA-Z0-9_-]{1,30})`)

const maxTags = 20

// DetectTags extracts a deduplicated lowercase tag list from text: any
// vocabulary word present as a whole word, plus explicit #hashtags.
func DetectTags(text string) []string {
	words := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		words[strings.Trim(w, ".,!?;:\"'()")] = true
	}

	seen := map[string]bool{}
	var tags []string
	add := func(tag string) {
		if tag == "" || seen[tag] || len(tags) >= maxTags {
			return
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	for _, v := range tagVocabulary {
		if words[v] {
			add(v)
		}
	}
	for _, m := range hashtagPattern.FindAllStringSubmatch(text, -1) {
		add(strings.ToLower(m[1]))
	}
	return tags
}
