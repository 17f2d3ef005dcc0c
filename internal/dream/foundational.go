package dream

import (
	"strings"

	"github.com/kestrelmem/noetic/internal/vectorstore"
	"github.com/kestrelmem/noetic/pkg/types"
)

// FoundationalCategories is the closed set of section headers a
// foundational ingest document may use.
var FoundationalCategories = map[string]bool{
	"identity":    true,
	"goals":       true,
	"values":      true,
	"constraints": true,
	"style":       true,
}

// FoundationalItem is one bullet parsed out of a foundational document.
type FoundationalItem struct {
	Category string
	Content  string
}

// ParseFoundationalDocument reads a structured document of
// "## category\n- item\n- item" sections and returns one item per bullet
// under a recognized category header. Unrecognized headers and non-bullet
// lines are ignored.
func ParseFoundationalDocument(doc string) []FoundationalItem {
	var items []FoundationalItem
	var currentCategory string
	for _, rawLine := range strings.Split(doc, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}
		if header, ok := parseHeader(line); ok {
			currentCategory = ""
			if FoundationalCategories[strings.ToLower(header)] {
				currentCategory = strings.ToLower(header)
			}
			continue
		}
		if currentCategory == "" {
			continue
		}
		if bullet, ok := parseBullet(line); ok {
			items = append(items, FoundationalItem{Category: currentCategory, Content: bullet})
		}
	}
	return items
}

func parseHeader(line string) (string, bool) {
	trimmed := strings.TrimLeft(line, "#")
	if len(trimmed) == len(line) {
		return "", false
	}
	return strings.TrimSpace(trimmed), true
}

func parseBullet(line string) (string, bool) {
	for _, marker := range []string{"- ", "* ", "+ "} {
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(strings.TrimPrefix(line, marker)), true
		}
	}
	return "", false
}

// ToMemory builds the memory this item should become: importance=5,
// confidence=1, layer=foundational.
func (item FoundationalItem) ToMemory() *types.Memory {
	return &types.Memory{
		Content:    item.Content,
		Type:       types.TypeFoundational,
		Tags:       []string{item.Category},
		Importance: 5,
		Confidence: 1.0,
		Layer:      types.LayerFoundational,
		Scope:      types.ScopePersonal,
		Source:     types.SourceHuman,
	}
}

const foundationalDedupThreshold = 0.9

// IsDuplicate reports whether candidate is a near-duplicate (cosine
// similarity >= 0.9) of any existing embedded memory.
func IsDuplicate(candidateEmbedding []float64, existing []EmbeddedMemory) bool {
	for _, e := range existing {
		if e.Embedding == nil {
			continue
		}
		if vectorstore.CosineSimilarity(candidateEmbedding, e.Embedding) >= foundationalDedupThreshold {
			return true
		}
	}
	return false
}
