// Package sqlitevs is a pure-Go, embedded implementation of
// vectorstore.Store backed by modernc.org/sqlite (no cgo). It stores each
// collection's records as rows in a shared table and performs k-NN by an
// in-process cosine scan over the collection's vectors, matching the
// contract without depending on a native vector index
// extension.
package sqlitevs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/kestrelmem/noetic/internal/vectorstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS vs_records (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	document   TEXT NOT NULL DEFAULT '',
	metadata   TEXT NOT NULL DEFAULT '{}',
	embedding  TEXT NOT NULL DEFAULT '[]',
	seq        INTEGER,
	PRIMARY KEY (collection, id)
);
CREATE TABLE IF NOT EXISTS vs_collections (
	name     TEXT PRIMARY KEY,
	metadata TEXT NOT NULL DEFAULT '{}'
);
`

// Store is a pure-Go SQLite-backed vectorstore.Store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a sqlitevs database at dsn, enabling WAL mode so
// readers are not blocked by the single writer.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitevs: open: %w", err)
	}

	// SQLite supports one concurrent writer; serialize writes through a
	// single connection and rely on WAL for concurrent reads.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitevs: enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitevs: busy_timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitevs: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) GetOrCreateCollection(ctx context.Context, name string, metadata map[string]interface{}) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("sqlitevs: marshal collection metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vs_collections (name, metadata) VALUES (?, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, string(metaJSON))
	if err != nil {
		return fmt.Errorf("sqlitevs: get-or-create collection %q: %w", name, err)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, collection string, req vectorstore.AddRequest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitevs: begin add: %w", err)
	}
	defer tx.Rollback()

	for i, id := range req.IDs {
		doc := ""
		if i < len(req.Documents) {
			doc = req.Documents[i]
		}
		var metaJSON, embJSON []byte
		if i < len(req.Metadatas) {
			metaJSON, err = json.Marshal(req.Metadatas[i])
			if err != nil {
				return fmt.Errorf("sqlitevs: marshal metadata for %q: %w", id, err)
			}
		} else {
			metaJSON = []byte("{}")
		}
		if i < len(req.Embeddings) {
			embJSON, err = json.Marshal(req.Embeddings[i])
			if err != nil {
				return fmt.Errorf("sqlitevs: marshal embedding for %q: %w", id, err)
			}
		} else {
			embJSON = []byte("[]")
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO vs_records (collection, id, document, metadata, embedding, seq)
			VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM vs_records WHERE collection = ?))
			ON CONFLICT(collection, id) DO UPDATE SET
				document = excluded.document,
				metadata = excluded.metadata,
				embedding = excluded.embedding
		`, collection, id, doc, string(metaJSON), string(embJSON), collection); err != nil {
			return fmt.Errorf("sqlitevs: insert %q: %w", id, err)
		}
	}

	return tx.Commit()
}

type row struct {
	id   string
	doc  string
	meta map[string]interface{}
	vec  []float64
}

func (s *Store) scanCollection(ctx context.Context, collection string, ids []string) ([]row, error) {
	var rows *sql.Rows
	var err error
	if len(ids) > 0 {
		query := `SELECT id, document, metadata, embedding FROM vs_records WHERE collection = ? AND id IN (` + placeholders(len(ids)) + `) ORDER BY seq`
		args := make([]interface{}, 0, len(ids)+1)
		args = append(args, collection)
		for _, id := range ids {
			args = append(args, id)
		}
		rows, err = s.db.QueryContext(ctx, query, args...)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT id, document, metadata, embedding FROM vs_records WHERE collection = ? ORDER BY seq`, collection)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitevs: scan collection %q: %w", collection, err)
	}
	defer rows.Close()

	var out []row
	for rows.Next() {
		var r row
		var metaJSON, embJSON string
		if err := rows.Scan(&r.id, &r.doc, &metaJSON, &embJSON); err != nil {
			return nil, fmt.Errorf("sqlitevs: scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &r.meta); err != nil {
			r.meta = map[string]interface{}{}
		}
		if err := json.Unmarshal([]byte(embJSON), &r.vec); err != nil {
			r.vec = nil
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ","
		}
		s += "?"
	}
	return s
}

func (s *Store) Get(ctx context.Context, collection string, req vectorstore.GetRequest) (vectorstore.Result, error) {
	rows, err := s.scanCollection(ctx, collection, req.IDs)
	if err != nil {
		return vectorstore.Result{}, err
	}
	var out vectorstore.Result
	for _, r := range rows {
		if len(req.Where) > 0 && !vectorstore.MatchWhere(r.meta, req.Where) {
			continue
		}
		out.IDs = append(out.IDs, r.id)
		out.Documents = append(out.Documents, r.doc)
		out.Metadatas = append(out.Metadatas, r.meta)
		out.Embeddings = append(out.Embeddings, r.vec)
	}
	return out, nil
}

func (s *Store) Query(ctx context.Context, collection string, req vectorstore.QueryRequest) (vectorstore.Result, error) {
	rows, err := s.scanCollection(ctx, collection, nil)
	if err != nil {
		return vectorstore.Result{}, err
	}

	type scored struct {
		r    row
		dist float64
	}
	var candidates []scored
	for _, r := range rows {
		if len(req.Where) > 0 && !vectorstore.MatchWhere(r.meta, req.Where) {
			continue
		}
		candidates = append(candidates, scored{r: r, dist: vectorstore.CosineDistance(req.QueryEmbedding, r.vec)})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	n := req.NResults
	if n <= 0 || n > len(candidates) {
		n = len(candidates)
	}

	var out vectorstore.Result
	for _, c := range candidates[:n] {
		out.IDs = append(out.IDs, c.r.id)
		out.Documents = append(out.Documents, c.r.doc)
		out.Metadatas = append(out.Metadatas, c.r.meta)
		out.Embeddings = append(out.Embeddings, c.r.vec)
		out.Distances = append(out.Distances, c.dist)
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, collection string, req vectorstore.UpdateRequest) error {
	for i, id := range req.IDs {
		sets := []string{}
		args := []interface{}{}
		if i < len(req.Documents) && req.Documents[i] != "" {
			sets = append(sets, "document = ?")
			args = append(args, req.Documents[i])
		}
		if i < len(req.Metadatas) && req.Metadatas[i] != nil {
			metaJSON, err := json.Marshal(req.Metadatas[i])
			if err != nil {
				return fmt.Errorf("sqlitevs: marshal metadata for update %q: %w", id, err)
			}
			sets = append(sets, "metadata = ?")
			args = append(args, string(metaJSON))
		}
		if i < len(req.Embeddings) && req.Embeddings[i] != nil {
			embJSON, err := json.Marshal(req.Embeddings[i])
			if err != nil {
				return fmt.Errorf("sqlitevs: marshal embedding for update %q: %w", id, err)
			}
			sets = append(sets, "embedding = ?")
			args = append(args, string(embJSON))
		}
		if len(sets) == 0 {
			continue
		}
		query := "UPDATE vs_records SET "
		for j, set := range sets {
			if j > 0 {
				query += ", "
			}
			query += set
		}
		query += " WHERE collection = ? AND id = ?"
		args = append(args, collection, id)
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("sqlitevs: update %q: %w", id, err)
		}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection string, ids []string) error {
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM vs_records WHERE collection = ? AND id = ?`, collection, id); err != nil {
			return fmt.Errorf("sqlitevs: delete %q: %w", id, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
