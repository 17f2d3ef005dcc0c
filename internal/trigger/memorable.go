package trigger

import (
	"strings"

	"github.com/kestrelmem/noetic/pkg/types"
)

// Point is one candidate sentence worth saving as a memory, classified by
// detect_save_trigger. Type is nil when no save-trigger rule matched.
type Point struct {
	Text       string
	Type       *types.MemoryType
	Confidence float64
}

// DetectSaveTrigger classifies a single sentence against the "save"
// category's ordered rule list, independent of detect_trigger's
// cross-category priority and threshold gating.
func DetectSaveTrigger(sentence string) (Match, bool) {
	return classify(sentence, CategorySave)
}

// ExtractMemorablePoints splits text into sentences, keeps those longer
// than 20 characters, classifies each via DetectSaveTrigger, and
// deduplicates by content Jaccard > 0.8.
func ExtractMemorablePoints(text string) []Point {
	var points []Point
	for _, sentence := range splitSentences(text) {
		trimmed := strings.TrimSpace(sentence)
		if len(trimmed) <= 20 {
			continue
		}
		if isDuplicatePoint(trimmed, points) {
			continue
		}
		point := Point{Text: trimmed}
		if m, ok := DetectSaveTrigger(trimmed); ok {
			t := m.Type
			point.Type = &t
			point.Confidence = m.Confidence
		}
		points = append(points, point)
	}
	return points
}

func isDuplicatePoint(content string, existing []Point) bool {
	words := wordSet(content)
	for _, e := range existing {
		if jaccard(words, wordSet(e.Text)) > 0.8 {
			return true
		}
	}
	return false
}
