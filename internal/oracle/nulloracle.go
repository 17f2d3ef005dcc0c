package oracle

import (
	"context"
	"errors"
)

// ErrNoOracle is returned by NullOracle.Complete.
var ErrNoOracle = errors.New("oracle: no LLM oracle configured")

// NullOracle is the default Oracle: always unavailable, never
// completes. Every enrichment path must function correctly with NullOracle
// installed.
type NullOracle struct{}

func (NullOracle) Complete(ctx context.Context, prompt string) (string, error) {
	return "", ErrNoOracle
}

func (NullOracle) IsAvailable(ctx context.Context) bool { return false }

func (NullOracle) Model() string { return "" }

var _ Oracle = NullOracle{}
