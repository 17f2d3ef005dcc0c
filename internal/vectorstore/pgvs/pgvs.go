// Package pgvs implements vectorstore.Store on top of PostgreSQL with the
// pgvector extension, through database/sql and lib/pq. Collections map to
// distinct rows partitioned by a collection column in a single shared
// table; nearest-neighbor search delegates to pgvector's <=> cosine distance
// operator instead of the in-process scan the other backends use.
package pgvs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kestrelmem/noetic/internal/vectorstore"
)

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS vs_records (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	document   TEXT NOT NULL DEFAULT '',
	metadata   JSONB NOT NULL DEFAULT '{}',
	embedding  vector,
	seq        BIGSERIAL,
	PRIMARY KEY (collection, id)
);

CREATE TABLE IF NOT EXISTS vs_collections (
	name     TEXT PRIMARY KEY,
	metadata JSONB NOT NULL DEFAULT '{}'
);
`

// Store is a Postgres/pgvector-backed vectorstore.Store.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres at dsn and ensures the pgvector schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("pgvs: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pgvs: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("pgvs: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) GetOrCreateCollection(ctx context.Context, name string, metadata map[string]interface{}) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("pgvs: marshal collection metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vs_collections (name, metadata) VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
	`, name, metaJSON)
	if err != nil {
		return fmt.Errorf("pgvs: get-or-create collection %q: %w", name, err)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, collection string, req vectorstore.AddRequest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgvs: begin add: %w", err)
	}
	defer tx.Rollback()

	for i, id := range req.IDs {
		doc := ""
		if i < len(req.Documents) {
			doc = req.Documents[i]
		}
		var metaJSON []byte
		if i < len(req.Metadatas) {
			metaJSON, err = json.Marshal(req.Metadatas[i])
			if err != nil {
				return fmt.Errorf("pgvs: marshal metadata for %q: %w", id, err)
			}
		} else {
			metaJSON = []byte("{}")
		}

		var vec interface{}
		if i < len(req.Embeddings) && req.Embeddings[i] != nil {
			vec = pgvector.NewVector(toFloat32(req.Embeddings[i]))
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO vs_records (collection, id, document, metadata, embedding)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (collection, id) DO UPDATE SET
				document = excluded.document,
				metadata = excluded.metadata,
				embedding = excluded.embedding
		`, collection, id, doc, metaJSON, vec); err != nil {
			return fmt.Errorf("pgvs: insert %q: %w", id, err)
		}
	}

	return tx.Commit()
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

func toFloat64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func (s *Store) Get(ctx context.Context, collection string, req vectorstore.GetRequest) (vectorstore.Result, error) {
	var rows *sql.Rows
	var err error
	if len(req.IDs) > 0 {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, document, metadata, embedding FROM vs_records
			WHERE collection = $1 AND id = ANY($2) ORDER BY seq
		`, collection, pqStringArray(req.IDs))
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, document, metadata, embedding FROM vs_records
			WHERE collection = $1 ORDER BY seq
		`, collection)
	}
	if err != nil {
		return vectorstore.Result{}, fmt.Errorf("pgvs: get from %q: %w", collection, err)
	}
	defer rows.Close()

	var out vectorstore.Result
	for rows.Next() {
		id, doc, meta, vec, err := scanRow(rows)
		if err != nil {
			return vectorstore.Result{}, err
		}
		if len(req.Where) > 0 && !vectorstore.MatchWhere(meta, req.Where) {
			continue
		}
		out.IDs = append(out.IDs, id)
		out.Documents = append(out.Documents, doc)
		out.Metadatas = append(out.Metadatas, meta)
		out.Embeddings = append(out.Embeddings, vec)
	}
	return out, rows.Err()
}

func scanRow(rows *sql.Rows) (id, doc string, meta map[string]interface{}, vec []float64, err error) {
	var metaJSON []byte
	var rawVec pgvector.Vector
	if err = rows.Scan(&id, &doc, &metaJSON, &rawVec); err != nil {
		err = fmt.Errorf("pgvs: scan row: %w", err)
		return
	}
	if err2 := json.Unmarshal(metaJSON, &meta); err2 != nil {
		meta = map[string]interface{}{}
	}
	vec = toFloat64(rawVec.Slice())
	return id, doc, meta, vec, nil
}

func pqStringArray(ids []string) interface{} {
	return "{" + join(ids) + "}"
}

func join(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += `"` + id + `"`
	}
	return out
}

// Query performs nearest-neighbor search using pgvector's cosine-distance
// operator (<=>), ordering by distance ascending the same as the other
// backends' definition of "nearest".
func (s *Store) Query(ctx context.Context, collection string, req vectorstore.QueryRequest) (vectorstore.Result, error) {
	qvec := pgvector.NewVector(toFloat32(req.QueryEmbedding))

	n := req.NResults
	if n <= 0 {
		n = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document, metadata, embedding, embedding <=> $2 AS distance
		FROM vs_records
		WHERE collection = $1
		ORDER BY distance ASC
		LIMIT $3
	`, collection, qvec, n)
	if err != nil {
		return vectorstore.Result{}, fmt.Errorf("pgvs: query %q: %w", collection, err)
	}
	defer rows.Close()

	var out vectorstore.Result
	for rows.Next() {
		var id, doc string
		var metaJSON []byte
		var rawVec pgvector.Vector
		var dist float64
		if err := rows.Scan(&id, &doc, &metaJSON, &rawVec, &dist); err != nil {
			return vectorstore.Result{}, fmt.Errorf("pgvs: scan query row: %w", err)
		}
		var meta map[string]interface{}
		if err := json.Unmarshal(metaJSON, &meta); err != nil {
			meta = map[string]interface{}{}
		}
		if len(req.Where) > 0 && !vectorstore.MatchWhere(meta, req.Where) {
			continue
		}
		out.IDs = append(out.IDs, id)
		out.Documents = append(out.Documents, doc)
		out.Metadatas = append(out.Metadatas, meta)
		out.Embeddings = append(out.Embeddings, toFloat64(rawVec.Slice()))
		out.Distances = append(out.Distances, dist)
	}
	return out, rows.Err()
}

func (s *Store) Update(ctx context.Context, collection string, req vectorstore.UpdateRequest) error {
	for i, id := range req.IDs {
		sets := []string{}
		args := []interface{}{}
		argn := 1
		if i < len(req.Documents) && req.Documents[i] != "" {
			argn++
			sets = append(sets, fmt.Sprintf("document = $%d", argn))
			args = append(args, req.Documents[i])
		}
		if i < len(req.Metadatas) && req.Metadatas[i] != nil {
			metaJSON, err := json.Marshal(req.Metadatas[i])
			if err != nil {
				return fmt.Errorf("pgvs: marshal metadata for update %q: %w", id, err)
			}
			argn++
			sets = append(sets, fmt.Sprintf("metadata = $%d", argn))
			args = append(args, metaJSON)
		}
		if i < len(req.Embeddings) && req.Embeddings[i] != nil {
			argn++
			sets = append(sets, fmt.Sprintf("embedding = $%d", argn))
			args = append(args, pgvector.NewVector(toFloat32(req.Embeddings[i])))
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
		query += fmt.Sprintf(" WHERE collection = $1 AND id = $%d", argn+1)
		fullArgs := append([]interface{}{collection}, args...)
		fullArgs = append(fullArgs, id)
		if _, err := s.db.ExecContext(ctx, query, fullArgs...); err != nil {
			return fmt.Errorf("pgvs: update %q: %w", id, err)
		}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection string, ids []string) error {
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM vs_records WHERE collection = $1 AND id = $2`, collection, id); err != nil {
			return fmt.Errorf("pgvs: delete %q: %w", id, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
