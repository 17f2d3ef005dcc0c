// Package codec converts between the rich types.Memory record and the
// flat {string -> scalar|string} metadata map the vector store accepts
// (component C). Encoding is lossless for every field; decoding
// tolerates corrupt JSON blocks by dropping the offending block and
// recording a memerr.ParsingError rather than failing the whole record.
package codec

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/kestrelmem/noetic/internal/memerr"
	"github.com/kestrelmem/noetic/pkg/types"
)

// Stable metadata keys written by Encode and read by Decode.
const (
	keyType          = "type"
	keyTags          = "tags"
	keyTimestamp     = "timestamp"
	keyIngestionTime = "ingestion_time"
	keyImportance    = "importance"
	keyAccessCount   = "access_count"
	keyLastAccessed  = "last_accessed"
	keyProject       = "project"
	keySessionID     = "session_id"
	keyLayer         = "layer"
	keyScope         = "scope"
	keySource        = "source"
	keyConfidence    = "confidence"
	keyValidFrom     = "valid_from"
	keyValidUntil    = "valid_until"
	keySupersedes    = "supersedes"
	keySupersededBy  = "superseded_by"
	keyRelatedMems   = "related_memories"
	keyLinksJSON     = "links_json"
	keyEmotionalJSON = "emotional_context_json"
	keyNarrativeJSON = "narrative_context_json"
	keyMultiAgentJSON = "multi_agent_context_json"
	keySocialJSON    = "social_context_json"
	keyMetadataJSON  = "metadata_json"
)

// Encode returns the document (bare content) and flat metadata map for m.
// Lists join with commas; structured blocks serialize as JSON strings
// under their *_json key.
func Encode(m *types.Memory) (document string, metadata map[string]interface{}) {
	metadata = map[string]interface{}{
		keyType:       string(m.Type),
		keyTimestamp:  m.Timestamp.Format(time.RFC3339Nano),
		keyImportance: m.Importance,
		keyAccessCount: m.AccessCount,
		keyLayer:      string(m.Layer),
		keyScope:      string(m.Scope),
		keySource:     string(m.Source),
		keyConfidence: m.Confidence,
		keyValidFrom:  m.ValidFrom.Format(time.RFC3339Nano),
	}

	if !m.IngestionTime.IsZero() {
		metadata[keyIngestionTime] = m.IngestionTime.Format(time.RFC3339Nano)
	}
	if len(m.Tags) > 0 {
		metadata[keyTags] = strings.Join(m.Tags, ",")
	}
	if m.LastAccessed != nil {
		metadata[keyLastAccessed] = m.LastAccessed.Format(time.RFC3339Nano)
	}
	if m.Project != "" {
		metadata[keyProject] = m.Project
	}
	if m.SessionID != "" {
		metadata[keySessionID] = m.SessionID
	}
	if m.ValidUntil != nil {
		metadata[keyValidUntil] = m.ValidUntil.Format(time.RFC3339Nano)
	}
	if m.Supersedes != "" {
		metadata[keySupersedes] = m.Supersedes
	}
	if m.SupersededBy != "" {
		metadata[keySupersededBy] = m.SupersededBy
	}
	if len(m.RelatedMemories) > 0 {
		metadata[keyRelatedMems] = strings.Join(m.RelatedMemories, ",")
	}

	marshalBlock(metadata, keyLinksJSON, m.Links)
	marshalBlock(metadata, keyEmotionalJSON, m.EmotionalContext)
	marshalBlock(metadata, keyNarrativeJSON, m.NarrativeContext)
	marshalBlock(metadata, keyMultiAgentJSON, m.MultiAgentContext)
	marshalBlock(metadata, keySocialJSON, m.SocialContext)
	marshalBlock(metadata, keyMetadataJSON, m.Metadata)

	return m.Content, metadata
}

func marshalBlock(metadata map[string]interface{}, key string, v interface{}) {
	if isEmptyBlock(v) {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	metadata[key] = string(b)
}

func isEmptyBlock(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case []types.RichLink:
		return len(x) == 0
	case map[string]interface{}:
		return len(x) == 0
	}
	return false
}

// Decode reconstructs a types.Memory from its id, document, and metadata.
// Missing fields take their documented defaults. Corrupt JSON blocks are
// dropped and reported via the returned parsing-error slice; decoding
// never fails outright because of a bad block.
func Decode(id, document string, metadata map[string]interface{}) (*types.Memory, []*memerr.ParsingError) {
	var parseErrs []*memerr.ParsingError

	m := &types.Memory{
		ID:      id,
		Content: document,
		Type:    types.DefaultType,
		Importance: types.DefaultImportance,
		Confidence: types.DefaultConfidence,
		Layer:      types.DefaultLayer,
		Scope:      types.DefaultScope,
		Source:     types.DefaultSource,
	}

	if v, ok := stringField(metadata, keyType); ok && types.MemoryType(v).Valid() {
		m.Type = types.MemoryType(v)
	}
	if v, ok := stringField(metadata, keyTags); ok && v != "" {
		m.Tags = strings.Split(v, ",")
	}
	if t, ok := timeField(metadata, keyTimestamp); ok {
		m.Timestamp = t
	}
	if t, ok := timeField(metadata, keyIngestionTime); ok {
		m.IngestionTime = t
	}
	if n, ok := intField(metadata, keyImportance); ok {
		m.Importance = n
	}
	if n, ok := intField(metadata, keyAccessCount); ok {
		m.AccessCount = n
	}
	if t, ok := timeField(metadata, keyLastAccessed); ok {
		m.LastAccessed = &t
	}
	if v, ok := stringField(metadata, keyProject); ok {
		m.Project = v
	}
	if v, ok := stringField(metadata, keySessionID); ok {
		m.SessionID = v
	}
	if v, ok := stringField(metadata, keyLayer); ok && types.Layer(v).Valid() {
		m.Layer = types.Layer(v)
	}
	if v, ok := stringField(metadata, keyScope); ok && types.Scope(v).Valid() {
		m.Scope = types.Scope(v)
	}
	if v, ok := stringField(metadata, keySource); ok {
		m.Source = types.Source(v)
	}
	if f, ok := floatField(metadata, keyConfidence); ok {
		m.Confidence = f
	}
	if t, ok := timeField(metadata, keyValidFrom); ok {
		m.ValidFrom = t
	} else {
		m.ValidFrom = m.Timestamp
	}
	if t, ok := timeField(metadata, keyValidUntil); ok {
		m.ValidUntil = &t
	}
	if v, ok := stringField(metadata, keySupersedes); ok {
		m.Supersedes = v
	}
	if v, ok := stringField(metadata, keySupersededBy); ok {
		m.SupersededBy = v
	}
	if v, ok := stringField(metadata, keyRelatedMems); ok && v != "" {
		m.RelatedMemories = strings.Split(v, ",")
	}

	m.Links = decodeLinks(metadata, &parseErrs)
	m.EmotionalContext = decodeBlock(metadata, keyEmotionalJSON, &parseErrs)
	m.NarrativeContext = decodeBlock(metadata, keyNarrativeJSON, &parseErrs)
	m.MultiAgentContext = decodeBlock(metadata, keyMultiAgentJSON, &parseErrs)
	m.SocialContext = decodeBlock(metadata, keySocialJSON, &parseErrs)
	m.Metadata = decodeBlock(metadata, keyMetadataJSON, &parseErrs)

	return m, parseErrs
}

func decodeLinks(metadata map[string]interface{}, parseErrs *[]*memerr.ParsingError) []types.RichLink {
	raw, ok := stringField(metadata, keyLinksJSON)
	if !ok || raw == "" {
		return nil
	}
	var links []types.RichLink
	if err := json.Unmarshal([]byte(raw), &links); err != nil {
		*parseErrs = append(*parseErrs, &memerr.ParsingError{Field: keyLinksJSON, Raw: raw, Err: err})
		return nil
	}
	return links
}

func decodeBlock(metadata map[string]interface{}, key string, parseErrs *[]*memerr.ParsingError) map[string]interface{} {
	raw, ok := stringField(metadata, key)
	if !ok || raw == "" {
		return nil
	}
	var block map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &block); err != nil {
		*parseErrs = append(*parseErrs, &memerr.ParsingError{Field: key, Raw: raw, Err: err})
		return nil
	}
	return block
}

func stringField(metadata map[string]interface{}, key string) (string, bool) {
	v, ok := metadata[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func intField(metadata map[string]interface{}, key string) (int, bool) {
	v, ok := metadata[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}

func floatField(metadata map[string]interface{}, key string) (float64, bool) {
	v, ok := metadata[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func timeField(metadata map[string]interface{}, key string) (time.Time, bool) {
	v, ok := stringField(metadata, key)
	if !ok || v == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
