// Package memvs is a dependency-free, in-memory implementation of the
// vectorstore.Store contract, backing unit tests across the memory core.
package memvs

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kestrelmem/noetic/internal/vectorstore"
)

type collection struct {
	metadata map[string]interface{}
	records  map[string]vectorstore.Record
	order    []string // insertion order, for deterministic iteration
}

// Store is an in-memory vectorstore.Store. The zero value is not usable;
// call New.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) GetOrCreateCollection(ctx context.Context, name string, metadata map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		s.collections[name] = &collection{metadata: metadata, records: make(map[string]vectorstore.Record)}
	}
	return nil
}

func (s *Store) collectionOrErr(name string) (*collection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("memvs: collection %q does not exist", name)
	}
	return c, nil
}

func (s *Store) Add(ctx context.Context, collectionName string, req vectorstore.AddRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.collectionOrErr(collectionName)
	if err != nil {
		return err
	}
	for i, id := range req.IDs {
		rec := vectorstore.Record{ID: id}
		if i < len(req.Documents) {
			rec.Document = req.Documents[i]
		}
		if i < len(req.Metadatas) {
			rec.Metadata = cloneMeta(req.Metadatas[i])
		}
		if i < len(req.Embeddings) {
			rec.Vector = append([]float64(nil), req.Embeddings[i]...)
		}
		if _, exists := c.records[id]; !exists {
			c.order = append(c.order, id)
		}
		c.records[id] = rec
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collectionName string, req vectorstore.GetRequest) (vectorstore.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collectionOrErr(collectionName)
	if err != nil {
		return vectorstore.Result{}, err
	}

	var out vectorstore.Result
	ids := req.IDs
	if len(ids) == 0 {
		ids = c.order
	}
	for _, id := range ids {
		rec, ok := c.records[id]
		if !ok {
			continue
		}
		if len(req.Where) > 0 && !vectorstore.MatchWhere(rec.Metadata, req.Where) {
			continue
		}
		appendRecord(&out, rec, -1)
	}
	return out, nil
}

func (s *Store) Query(ctx context.Context, collectionName string, req vectorstore.QueryRequest) (vectorstore.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collectionOrErr(collectionName)
	if err != nil {
		return vectorstore.Result{}, err
	}

	type scored struct {
		rec  vectorstore.Record
		dist float64
	}
	var candidates []scored
	for _, id := range c.order {
		rec, ok := c.records[id]
		if !ok {
			continue
		}
		if len(req.Where) > 0 && !vectorstore.MatchWhere(rec.Metadata, req.Where) {
			continue
		}
		dist := vectorstore.CosineDistance(req.QueryEmbedding, rec.Vector)
		candidates = append(candidates, scored{rec: rec, dist: dist})
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	n := req.NResults
	if n <= 0 || n > len(candidates) {
		n = len(candidates)
	}

	var out vectorstore.Result
	for _, cand := range candidates[:n] {
		appendRecord(&out, cand.rec, cand.dist)
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, collectionName string, req vectorstore.UpdateRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.collectionOrErr(collectionName)
	if err != nil {
		return err
	}
	for i, id := range req.IDs {
		rec, ok := c.records[id]
		if !ok {
			return fmt.Errorf("memvs: record %q does not exist", id)
		}
		if i < len(req.Documents) && req.Documents[i] != "" {
			rec.Document = req.Documents[i]
		}
		if i < len(req.Metadatas) && req.Metadatas[i] != nil {
			rec.Metadata = cloneMeta(req.Metadatas[i])
		}
		if i < len(req.Embeddings) && req.Embeddings[i] != nil {
			rec.Vector = append([]float64(nil), req.Embeddings[i]...)
		}
		c.records[id] = rec
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collectionName string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.collectionOrErr(collectionName)
	if err != nil {
		return err
	}
	toDelete := make(map[string]bool, len(ids))
	for _, id := range ids {
		delete(c.records, id)
		toDelete[id] = true
	}
	filtered := c.order[:0:0]
	for _, id := range c.order {
		if !toDelete[id] {
			filtered = append(filtered, id)
		}
	}
	c.order = filtered
	return nil
}

func (s *Store) Close() error { return nil }

func cloneMeta(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	cp := make(map[string]interface{}, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func appendRecord(out *vectorstore.Result, rec vectorstore.Record, dist float64) {
	out.IDs = append(out.IDs, rec.ID)
	out.Documents = append(out.Documents, rec.Document)
	out.Metadatas = append(out.Metadatas, cloneMeta(rec.Metadata))
	out.Embeddings = append(out.Embeddings, append([]float64(nil), rec.Vector...))
	if dist >= 0 {
		out.Distances = append(out.Distances, dist)
	}
}
