// Package memstore implements the Memory Store (component D):
// save/get/update/supersede/delete/list/add_link/remove_link/stats over
// the vector store (component B) and embedder (component A), with
// best-effort bidirectional linking and exponential-backoff retries on
// every vector-store call.
package memstore

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/kestrelmem/noetic/internal/codec"
	"github.com/kestrelmem/noetic/internal/embedder"
	"github.com/kestrelmem/noetic/internal/idgen"
	"github.com/kestrelmem/noetic/internal/memerr"
	"github.com/kestrelmem/noetic/internal/vectorstore"
	"github.com/kestrelmem/noetic/pkg/types"
)

// SaveOptions configures Save.
type SaveOptions struct {
	BidirectionalLink bool // default true; set explicitly via NewSaveOptions
}

// NewSaveOptions returns the default: bidirectional linking on.
func NewSaveOptions() SaveOptions { return SaveOptions{BidirectionalLink: true} }

// SortBy selects List's ordering.
type SortBy string

const (
	SortRecent    SortBy = "recent"
	SortImportance SortBy = "importance"
	SortAccessed  SortBy = "accessed"
)

// ListOptions filters and orders List.
type ListOptions struct {
	Limit   int
	Project string
	Type    types.MemoryType
	SortBy  SortBy
}

// Stats summarizes the memory population.
type Stats struct {
	Total       int
	ByType      map[types.MemoryType]int
	ByProject   map[string]int
	RecentCount int
}

// Store is the component-D Memory Store.
type Store struct {
	vs       vectorstore.Store
	embed    embedder.Embedder
	retry    memerr.RetryConfig
	logger   *log.Logger
	clock    func() time.Time
}

// New builds a Store over vs and embed. logger may be nil, in which case
// log.Default() is used.
func New(vs vectorstore.Store, embed embedder.Embedder, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{
		vs:     vs,
		embed:  embed,
		retry:  memerr.DefaultRetryConfig(),
		logger: logger,
		clock:  time.Now,
	}
}

func (s *Store) now() time.Time { return s.clock() }

// Save embeds and writes a new memory, returning its generated id.
func (s *Store) Save(ctx context.Context, m *types.Memory, opts SaveOptions) (string, error) {
	if m.Content == "" {
		return "", &memerr.ValidationError{Field: "content", Msg: "content must not be empty"}
	}
	if err := normalize(m); err != nil {
		return "", err
	}

	id := idgen.New("mem")
	m.ID = id
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now()
	}
	if m.IngestionTime.IsZero() {
		m.IngestionTime = s.now()
	}
	if m.ValidFrom.IsZero() {
		m.ValidFrom = m.Timestamp
	}

	vec, err := s.embed.Embed(ctx, m.Content)
	if err != nil {
		return "", fmt.Errorf("memstore: embed on save: %w", err)
	}

	if err := s.writeRecord(ctx, m, vec, true); err != nil {
		return "", err
	}

	if opts.BidirectionalLink {
		s.linkBackBestEffort(ctx, m)
	}

	return id, nil
}

// normalize applies the documented field defaults and rejects values
// outside their closed domains.
func normalize(m *types.Memory) error {
	if m.Type == "" {
		m.Type = types.DefaultType
	}
	if !m.Type.Valid() {
		return &memerr.ValidationError{Field: "type", Msg: fmt.Sprintf("unknown memory type %q", m.Type)}
	}
	if m.Importance == 0 {
		m.Importance = types.DefaultImportance
	}
	if m.Importance < 1 || m.Importance > 5 {
		return &memerr.ValidationError{Field: "importance", Msg: fmt.Sprintf("importance %d outside [1, 5]", m.Importance)}
	}
	if m.Confidence == 0 {
		m.Confidence = types.DefaultConfidence
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return &memerr.ValidationError{Field: "confidence", Msg: fmt.Sprintf("confidence %v outside [0, 1]", m.Confidence)}
	}
	if m.Layer == "" {
		m.Layer = types.DefaultLayer
	}
	if m.Type == types.TypeFoundational {
		m.Layer = types.LayerFoundational
	}
	if m.Scope == "" {
		m.Scope = types.DefaultScope
	}
	if m.Source == "" {
		m.Source = types.DefaultSource
	}
	return nil
}

func (s *Store) linkBackBestEffort(ctx context.Context, m *types.Memory) {
	for _, targetID := range m.RelatedMemories {
		target, err := s.GetRaw(ctx, targetID)
		if err != nil || target == nil {
			if err != nil {
				s.logger.Printf("memstore: bidirectional link fetch failed: target=%s err=%v", targetID, err)
			}
			continue
		}
		if contains(target.RelatedMemories, m.ID) {
			continue
		}
		target.RelatedMemories = append(target.RelatedMemories, m.ID)
		if err := s.writeRecord(ctx, target, nil, false); err != nil {
			s.logger.Printf("memstore: bidirectional link write-back failed: target=%s err=%v", targetID, err)
		}
	}
}

func contains(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}

func (s *Store) writeRecord(ctx context.Context, m *types.Memory, vec []float64, insert bool) error {
	doc, meta := codec.Encode(m)
	return memerr.Retry(ctx, s.retry, func(ctx context.Context) error {
		if err := s.vs.GetOrCreateCollection(ctx, vectorstore.CollectionMemories, nil); err != nil {
			return memerr.NewDatabaseError("get_or_create_collection", err)
		}
		if insert {
			err := s.vs.Add(ctx, vectorstore.CollectionMemories, vectorstore.AddRequest{
				IDs: []string{m.ID}, Embeddings: [][]float64{vec}, Documents: []string{doc}, Metadatas: []map[string]interface{}{meta},
			})
			if err != nil {
				return memerr.NewDatabaseError("add", err)
			}
			return nil
		}
		upd := vectorstore.UpdateRequest{IDs: []string{m.ID}, Documents: []string{doc}, Metadatas: []map[string]interface{}{meta}}
		if vec != nil {
			upd.Embeddings = [][]float64{vec}
		}
		if err := s.vs.Update(ctx, vectorstore.CollectionMemories, upd); err != nil {
			return memerr.NewDatabaseError("update", err)
		}
		return nil
	})
}

func (s *Store) fetchOne(ctx context.Context, id string) (*types.Memory, map[string]interface{}, error) {
	var res vectorstore.Result
	err := memerr.Retry(ctx, s.retry, func(ctx context.Context) error {
		if err := s.vs.GetOrCreateCollection(ctx, vectorstore.CollectionMemories, nil); err != nil {
			return memerr.NewDatabaseError("get_or_create_collection", err)
		}
		var err error
		res, err = s.vs.Get(ctx, vectorstore.CollectionMemories, vectorstore.GetRequest{IDs: []string{id}})
		if err != nil {
			return memerr.NewDatabaseError("get", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if len(res.IDs) == 0 {
		return nil, nil, nil
	}
	m, parseErrs := codec.Decode(res.IDs[0], res.Documents[0], res.Metadatas[0])
	for _, pe := range parseErrs {
		s.logger.Printf("memstore: parsing error decoding memory: id=%s field=%s err=%v", id, pe.Field, pe.Err)
	}
	return m, res.Metadatas[0], nil
}

// GetRaw returns the decoded memory without the access-count side effect,
// for internal callers that must not perturb retrieval statistics.
func (s *Store) GetRaw(ctx context.Context, id string) (*types.Memory, error) {
	m, _, err := s.fetchOne(ctx, id)
	return m, err
}

// Get returns the memory, incrementing its access count and updating
// last_accessed as a best-effort write-back. Returns (nil, nil) on miss.
func (s *Store) Get(ctx context.Context, id string) (*types.Memory, error) {
	m, _, err := s.fetchOne(ctx, id)
	if err != nil || m == nil {
		return m, err
	}

	m.AccessCount++
	now := s.now()
	m.LastAccessed = &now

	if err := s.writeRecord(ctx, m, nil, false); err != nil {
		s.logger.Printf("memstore: access-count write-back failed: id=%s err=%v", id, err)
	}
	return m, nil
}

// Update applies a partial mutation function to the stored memory,
// re-embedding only if content changed, and preserving timestamp,
// ingestion_time, and access_count.
func (s *Store) Update(ctx context.Context, id string, apply func(m *types.Memory)) error {
	m, err := s.GetRaw(ctx, id)
	if err != nil {
		return err
	}
	if m == nil {
		return &memerr.NotFoundError{Resource: "memory", ID: id}
	}

	originalContent := m.Content
	apply(m)
	m.ID = id

	var vec []float64
	if m.Content != originalContent {
		vec, err = s.embed.Embed(ctx, m.Content)
		if err != nil {
			return fmt.Errorf("memstore: re-embed on update: %w", err)
		}
	}

	return s.writeRecord(ctx, m, vec, false)
}

// Supersede marks oldID as superseded by newID and newID as superseding
// oldID. Both sides are written; a partial failure is surfaced so callers
// can retry.
func (s *Store) Supersede(ctx context.Context, oldID, newID string) error {
	now := s.now()

	oldErr := s.Update(ctx, oldID, func(m *types.Memory) {
		m.SupersededBy = newID
		m.ValidUntil = &now
	})
	if oldErr != nil {
		return fmt.Errorf("memstore: supersede old side %q: %w", oldID, oldErr)
	}

	newErr := s.Update(ctx, newID, func(m *types.Memory) {
		m.Supersedes = oldID
		m.ValidFrom = now
	})
	if newErr != nil {
		return fmt.Errorf("memstore: supersede new side %q (old side already updated, retry to converge): %w", newID, newErr)
	}
	return nil
}

// Delete hard-deletes id. The policy engine, not this primitive, is
// responsible for refusing to delete foundational memories.
func (s *Store) Delete(ctx context.Context, id string) error {
	return memerr.Retry(ctx, s.retry, func(ctx context.Context) error {
		if err := s.vs.Delete(ctx, vectorstore.CollectionMemories, []string{id}); err != nil {
			return memerr.NewDatabaseError("delete", err)
		}
		return nil
	})
}

// List returns decoded memories matching opts, without updating access
// counts.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*types.Memory, error) {
	where := vectorstore.Where{}
	if opts.Project != "" {
		where["project"] = opts.Project
	}
	if opts.Type != "" {
		where["type"] = string(opts.Type)
	}

	var res vectorstore.Result
	err := memerr.Retry(ctx, s.retry, func(ctx context.Context) error {
		var err error
		res, err = s.vs.Get(ctx, vectorstore.CollectionMemories, vectorstore.GetRequest{Where: where})
		if err != nil {
			return memerr.NewDatabaseError("get", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]*types.Memory, 0, len(res.IDs))
	for i, id := range res.IDs {
		m, parseErrs := codec.Decode(id, res.Documents[i], res.Metadatas[i])
		for _, pe := range parseErrs {
			s.logger.Printf("memstore: parsing error decoding memory: id=%s field=%s err=%v", id, pe.Field, pe.Err)
		}
		out = append(out, m)
	}

	sortMemories(out, opts.SortBy)

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func sortMemories(ms []*types.Memory, by SortBy) {
	switch by {
	case SortImportance:
		sort.SliceStable(ms, func(i, j int) bool { return ms[i].Importance > ms[j].Importance })
	case SortAccessed:
		sort.SliceStable(ms, func(i, j int) bool { return ms[i].AccessCount > ms[j].AccessCount })
	default:
		sort.SliceStable(ms, func(i, j int) bool { return ms[i].Timestamp.After(ms[j].Timestamp) })
	}
}

// AddLink appends link to source's link set, idempotent on
// (target_id, type), and mirrors the target id into related_memories.
func (s *Store) AddLink(ctx context.Context, sourceID string, link types.RichLink) error {
	return s.Update(ctx, sourceID, func(m *types.Memory) {
		for _, existing := range m.Links {
			if existing.TargetID == link.TargetID && existing.Type == link.Type {
				return
			}
		}
		if link.CreatedAt.IsZero() {
			link.CreatedAt = s.now()
		}
		m.Links = append(m.Links, link)
		if !contains(m.RelatedMemories, link.TargetID) {
			m.RelatedMemories = append(m.RelatedMemories, link.TargetID)
		}
	})
}

// RemoveLink removes links from sourceID matching targetID and,
// optionally, linkType. Returns whether anything was removed.
func (s *Store) RemoveLink(ctx context.Context, sourceID, targetID string, linkType *types.LinkType) (bool, error) {
	removed := false
	err := s.Update(ctx, sourceID, func(m *types.Memory) {
		kept := m.Links[:0:0]
		for _, l := range m.Links {
			if l.TargetID == targetID && (linkType == nil || l.Type == *linkType) {
				removed = true
				continue
			}
			kept = append(kept, l)
		}
		m.Links = kept
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// Stats returns aggregate counts over every memory.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	all, err := s.List(ctx, ListOptions{})
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{ByType: map[types.MemoryType]int{}, ByProject: map[string]int{}}
	cutoff := s.now().AddDate(0, 0, -7)
	for _, m := range all {
		stats.Total++
		stats.ByType[m.Type]++
		if m.Project != "" {
			stats.ByProject[m.Project]++
		}
		if m.Timestamp.After(cutoff) {
			stats.RecentCount++
		}
	}
	return stats, nil
}
