package session

import (
	"context"
	"fmt"
	"time"

	"github.com/kestrelmem/noetic/internal/vectorstore"
)

// SessionRecord is the durable trace of one interactive session, stored in
// the claude_sessions collection under a placeholder zero-vector: session
// records are looked up by id and metadata, never by similarity.
type SessionRecord struct {
	ID          string
	Project     string
	StartedAt   time.Time
	EndedAt     *time.Time
	MemoryCount int
	Summary     string
}

// ProjectContext is the durable description of one project, stored in the
// claude_projects collection under a placeholder zero-vector.
type ProjectContext struct {
	Name        string
	Description string
	UpdatedAt   time.Time
}

// Recorder persists session records and project contexts. Placeholder
// vectors share the dimensionality of the memory embeddings so the store
// keeps a single consistent vector width per deployment.
type Recorder struct {
	vs   vectorstore.Store
	dims int
}

// NewRecorder builds a Recorder writing placeholder vectors of the given
// dimensionality.
func NewRecorder(vs vectorstore.Store, dims int) *Recorder {
	return &Recorder{vs: vs, dims: dims}
}

func (r *Recorder) placeholder() []float64 {
	return make([]float64, r.dims)
}

// SaveSession upserts rec into the claude_sessions collection.
func (r *Recorder) SaveSession(ctx context.Context, rec SessionRecord) error {
	if err := r.vs.GetOrCreateCollection(ctx, vectorstore.CollectionSessions, nil); err != nil {
		return fmt.Errorf("session: ensure sessions collection: %w", err)
	}

	meta := map[string]interface{}{
		"project":      rec.Project,
		"started_at":   rec.StartedAt.UTC().Format(time.RFC3339),
		"memory_count": rec.MemoryCount,
	}
	if rec.EndedAt != nil {
		meta["ended_at"] = rec.EndedAt.UTC().Format(time.RFC3339)
	}

	existing, err := r.vs.Get(ctx, vectorstore.CollectionSessions, vectorstore.GetRequest{IDs: []string{rec.ID}})
	if err != nil {
		return fmt.Errorf("session: look up session record: %w", err)
	}
	if len(existing.IDs) > 0 {
		err = r.vs.Update(ctx, vectorstore.CollectionSessions, vectorstore.UpdateRequest{
			IDs: []string{rec.ID}, Documents: []string{rec.Summary}, Metadatas: []map[string]interface{}{meta},
		})
	} else {
		err = r.vs.Add(ctx, vectorstore.CollectionSessions, vectorstore.AddRequest{
			IDs:        []string{rec.ID},
			Embeddings: [][]float64{r.placeholder()},
			Documents:  []string{rec.Summary},
			Metadatas:  []map[string]interface{}{meta},
		})
	}
	if err != nil {
		return fmt.Errorf("session: write session record: %w", err)
	}
	return nil
}

// ListSessions returns every persisted session record, optionally filtered
// by project.
func (r *Recorder) ListSessions(ctx context.Context, project string) ([]SessionRecord, error) {
	if err := r.vs.GetOrCreateCollection(ctx, vectorstore.CollectionSessions, nil); err != nil {
		return nil, fmt.Errorf("session: ensure sessions collection: %w", err)
	}
	where := vectorstore.Where{}
	if project != "" {
		where["project"] = project
	}
	res, err := r.vs.Get(ctx, vectorstore.CollectionSessions, vectorstore.GetRequest{Where: where})
	if err != nil {
		return nil, fmt.Errorf("session: list session records: %w", err)
	}

	out := make([]SessionRecord, 0, len(res.IDs))
	for i, id := range res.IDs {
		rec := SessionRecord{ID: id, Summary: res.Documents[i]}
		meta := res.Metadatas[i]
		if v, ok := meta["project"].(string); ok {
			rec.Project = v
		}
		if v, ok := meta["started_at"].(string); ok {
			if ts, err := time.Parse(time.RFC3339, v); err == nil {
				rec.StartedAt = ts
			}
		}
		if v, ok := meta["ended_at"].(string); ok {
			if ts, err := time.Parse(time.RFC3339, v); err == nil {
				rec.EndedAt = &ts
			}
		}
		switch v := meta["memory_count"].(type) {
		case int:
			rec.MemoryCount = v
		case float64:
			rec.MemoryCount = int(v)
		}
		out = append(out, rec)
	}
	return out, nil
}

// SaveProjectContext upserts pc into the claude_projects collection, keyed
// by project name.
func (r *Recorder) SaveProjectContext(ctx context.Context, pc ProjectContext) error {
	if err := r.vs.GetOrCreateCollection(ctx, vectorstore.CollectionProjects, nil); err != nil {
		return fmt.Errorf("session: ensure projects collection: %w", err)
	}

	meta := map[string]interface{}{
		"name":       pc.Name,
		"updated_at": pc.UpdatedAt.UTC().Format(time.RFC3339),
	}

	existing, err := r.vs.Get(ctx, vectorstore.CollectionProjects, vectorstore.GetRequest{IDs: []string{pc.Name}})
	if err != nil {
		return fmt.Errorf("session: look up project context: %w", err)
	}
	if len(existing.IDs) > 0 {
		err = r.vs.Update(ctx, vectorstore.CollectionProjects, vectorstore.UpdateRequest{
			IDs: []string{pc.Name}, Documents: []string{pc.Description}, Metadatas: []map[string]interface{}{meta},
		})
	} else {
		err = r.vs.Add(ctx, vectorstore.CollectionProjects, vectorstore.AddRequest{
			IDs:        []string{pc.Name},
			Embeddings: [][]float64{r.placeholder()},
			Documents:  []string{pc.Description},
			Metadatas:  []map[string]interface{}{meta},
		})
	}
	if err != nil {
		return fmt.Errorf("session: write project context: %w", err)
	}
	return nil
}

// GetProjectContext returns the stored context for a project, or nil if
// none has been written.
func (r *Recorder) GetProjectContext(ctx context.Context, name string) (*ProjectContext, error) {
	if err := r.vs.GetOrCreateCollection(ctx, vectorstore.CollectionProjects, nil); err != nil {
		return nil, fmt.Errorf("session: ensure projects collection: %w", err)
	}
	res, err := r.vs.Get(ctx, vectorstore.CollectionProjects, vectorstore.GetRequest{IDs: []string{name}})
	if err != nil {
		return nil, fmt.Errorf("session: get project context: %w", err)
	}
	if len(res.IDs) == 0 {
		return nil, nil
	}

	pc := &ProjectContext{Name: name, Description: res.Documents[0]}
	if v, ok := res.Metadatas[0]["updated_at"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			pc.UpdatedAt = ts
		}
	}
	return pc, nil
}
