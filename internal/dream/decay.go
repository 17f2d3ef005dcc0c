package dream

import (
	"math"
	"time"

	"github.com/kestrelmem/noetic/pkg/types"
)

// DecayConfig tunes the importance-decay formula.
type DecayConfig struct {
	HalfLifeDays    float64
	AccessBoostDays float64
	MinImportance   float64
}

// DefaultDecayConfig returns the defaults for a normal (non-shadow)
// memory.
func DefaultDecayConfig() DecayConfig {
	return DecayConfig{HalfLifeDays: 30, AccessBoostDays: 7, MinImportance: 1}
}

// ShadowDecayConfig returns the halved-half-life, narrower-boost-window
// variant used for promoted shadow memories.
func ShadowDecayConfig() DecayConfig {
	return DecayConfig{HalfLifeDays: 15, AccessBoostDays: 5, MinImportance: 1}
}

var exemptTypes = map[types.MemoryType]bool{
	types.TypeFoundational:  true,
	types.TypeContradiction: true,
}

// DecayResult is the outcome of applying the decay formula to one memory.
type DecayResult struct {
	MemoryID      string
	OldImportance float64
	NewImportance float64
	ShouldWrite   bool
}

// Apply computes the new importance for m as of now:
//
//	effective_days = min(days_since_creation, days_since_last_access + access_boost_days)
//	decayed        = importance * 0.5^(effective_days / half_life_days)
//	boost          = min(access_count * 0.1, 1.0)
//	new            = clamp(decayed + boost, min_importance, 5.0)
//
// Foundational and contradiction memories are exempt and always return
// ShouldWrite=false. The result is only flagged for write-back when the
// change exceeds 0.1, and is rounded to one decimal place.
func Apply(m *types.Memory, now time.Time, cfg DecayConfig) DecayResult {
	old := float64(m.Importance)
	if exemptTypes[m.Type] {
		return DecayResult{MemoryID: m.ID, OldImportance: old, NewImportance: old, ShouldWrite: false}
	}

	daysSinceCreation := now.Sub(m.Timestamp).Hours() / 24
	lastAccessed := m.Timestamp
	if m.LastAccessed != nil {
		lastAccessed = *m.LastAccessed
	}
	daysSinceAccess := now.Sub(lastAccessed).Hours() / 24

	effectiveDays := math.Min(daysSinceCreation, daysSinceAccess+cfg.AccessBoostDays)
	if effectiveDays < 0 {
		effectiveDays = 0
	}

	decayed := old * math.Pow(0.5, effectiveDays/cfg.HalfLifeDays)
	boost := math.Min(float64(m.AccessCount)*0.1, 1.0)
	newImportance := clamp(decayed+boost, cfg.MinImportance, 5.0)
	newImportance = roundToOneDecimal(newImportance)

	return DecayResult{
		MemoryID:      m.ID,
		OldImportance: old,
		NewImportance: newImportance,
		ShouldWrite:   math.Abs(newImportance-old) > 0.1,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func roundToOneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}
