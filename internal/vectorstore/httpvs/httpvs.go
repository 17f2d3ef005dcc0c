// Package httpvs implements vectorstore.Store against an external,
// Chroma-like HTTP collection API, with sqlitevs/pgvs/memvs serving as the
// embedded/testing alternatives. Every call is wrapped in the shared
// circuit breaker so a flaky external vector database degrades the same
// way a flaky LLM oracle does.
package httpvs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kestrelmem/noetic/internal/resilience"
	"github.com/kestrelmem/noetic/internal/vectorstore"
)

// Config configures a Store against a Chroma-like REST endpoint.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Store talks to an external vector database over HTTP.
type Store struct {
	baseURL string
	client  *http.Client
	breaker *resilience.CircuitBreaker
}

// New builds an httpvs.Store pointed at baseURL.
func New(cfg Config) *Store {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Store{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: resilience.New("vectorstore-http"),
	}
}

func (s *Store) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	_, err := s.breaker.Execute(ctx, func() (interface{}, error) {
		return nil, s.doOnce(ctx, method, path, body, out)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return fmt.Errorf("httpvs: circuit open for %s %s: %w", method, path, err)
	}
	return err
}

func (s *Store) doOnce(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("httpvs: marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("httpvs: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("httpvs: request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("httpvs: %s %s returned status %d: %s", method, path, resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("httpvs: decode response for %s %s: %w", method, path, err)
	}
	return nil
}

func (s *Store) GetOrCreateCollection(ctx context.Context, name string, metadata map[string]interface{}) error {
	return s.do(ctx, http.MethodPost, "/collections", map[string]interface{}{
		"name":          name,
		"metadata":      metadata,
		"get_or_create": true,
	}, nil)
}

func (s *Store) Add(ctx context.Context, collection string, req vectorstore.AddRequest) error {
	return s.do(ctx, http.MethodPost, "/collections/"+collection+"/add", req, nil)
}

func (s *Store) Get(ctx context.Context, collection string, req vectorstore.GetRequest) (vectorstore.Result, error) {
	var out vectorstore.Result
	err := s.do(ctx, http.MethodPost, "/collections/"+collection+"/get", req, &out)
	return out, err
}

func (s *Store) Query(ctx context.Context, collection string, req vectorstore.QueryRequest) (vectorstore.Result, error) {
	var out vectorstore.Result
	err := s.do(ctx, http.MethodPost, "/collections/"+collection+"/query", req, &out)
	return out, err
}

func (s *Store) Update(ctx context.Context, collection string, req vectorstore.UpdateRequest) error {
	return s.do(ctx, http.MethodPost, "/collections/"+collection+"/update", req, nil)
}

func (s *Store) Delete(ctx context.Context, collection string, ids []string) error {
	return s.do(ctx, http.MethodPost, "/collections/"+collection+"/delete", map[string]interface{}{"ids": ids}, nil)
}

func (s *Store) Close() error { return nil }

var _ vectorstore.Store = (*Store)(nil)
