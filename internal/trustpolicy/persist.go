package trustpolicy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"github.com/kestrelmem/noetic/pkg/types"
)

// persistedState is the on-disk shape for trust scores: a flat YAML file
// kept next to the rest of this module's config.
type persistedState struct {
	Scores map[string]types.TrustScore `yaml:"scores"`
}

// LoadScores reads a previously persisted trust-score snapshot. A missing
// file is not an error -- it means a fresh trust store.
func LoadScores(path string) (map[string]types.TrustScore, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]types.TrustScore{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("trustpolicy: read %s: %w", path, err)
	}

	var state persistedState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("trustpolicy: parse %s: %w", path, err)
	}
	if state.Scores == nil {
		state.Scores = map[string]types.TrustScore{}
	}
	return state.Scores, nil
}

// SaveScores writes the engine's current trust scores to path, overwriting
// any existing file.
func (e *Engine) SaveScores(path string) error {
	data, err := yaml.Marshal(persistedState{Scores: e.Scores()})
	if err != nil {
		return fmt.Errorf("trustpolicy: marshal scores: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("trustpolicy: write %s: %w", path, err)
	}
	return nil
}
