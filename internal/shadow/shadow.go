// Package shadow implements the working-memory shadow log:
// a short-lived, per-(session_id, topic) aggregation of activity that
// crosses a token-budget or idle-timeout threshold and is either promoted
// into a full memory or dropped.
package shadow

import (
	"log"
	"time"

	"github.com/kestrelmem/noetic/pkg/types"
)

// Config tunes when a shadow crosses its promotion/drop thresholds,
// mirroring the shadow_token_threshold, shadow_time_threshold_min,
// shadow_surface_threshold, and shadow_deduplicate config keys.
type Config struct {
	TokenThreshold    int
	IdleTimeout       time.Duration
	SurfaceThreshold  float64
	Deduplicate       bool
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		TokenThreshold:   500,
		IdleTimeout:      30 * time.Minute,
		SurfaceThreshold: 0.6,
		Deduplicate:      true,
	}
}

// Log owns every live shadow for one process, keyed by (session_id,
// topic). It is not safe for concurrent use without external
// synchronization -- the caller (internal/session) is responsible for
// serializing access.
type Log struct {
	cfg     Config
	shadows map[key]*types.Shadow
	logger  *log.Logger
	clock   func() time.Time
}

type key struct {
	sessionID string
	topic     string
}

// New builds an empty shadow log. logger may be nil, in which case
// log.Default() is used.
func New(cfg Config, logger *log.Logger) *Log {
	if logger == nil {
		logger = log.Default()
	}
	return &Log{cfg: cfg, shadows: map[key]*types.Shadow{}, logger: logger, clock: time.Now}
}

// Record appends activity to the shadow for (sessionID, topic), creating
// it if absent, and reports whether the shadow has now crossed a
// threshold and must be resolved via Resolve.
func (l *Log) Record(sessionID, topic string, activity types.ShadowActivity) (crossed bool) {
	k := key{sessionID, topic}
	s, ok := l.shadows[k]
	now := l.clock()
	if !ok {
		s = &types.Shadow{SessionID: sessionID, Topic: topic, CreatedAt: now}
		l.shadows[k] = s
	}
	if activity.Timestamp.IsZero() {
		activity.Timestamp = now
	}
	s.Activities = append(s.Activities, activity)
	s.TokenCount += activity.Tokens
	s.UpdatedAt = now

	return s.TokenCount >= l.cfg.TokenThreshold
}

// Sweep scans every live shadow for idle-timeout crossings (no activity
// recorded within cfg.IdleTimeout) and returns the ones ready to resolve,
// removing them from the log. Call this periodically from the session
// janitor.
func (l *Log) Sweep() []*types.Shadow {
	now := l.clock()
	var idle []*types.Shadow
	for k, s := range l.shadows {
		if now.Sub(s.UpdatedAt) >= l.cfg.IdleTimeout {
			idle = append(idle, s)
			delete(l.shadows, k)
		}
	}
	return idle
}

// Drain removes and returns every live shadow belonging to sessionID,
// regardless of idleness. Used when a session ends and all of its working
// memory must be promoted or dropped at once.
func (l *Log) Drain(sessionID string) []*types.Shadow {
	var out []*types.Shadow
	for k, s := range l.shadows {
		if k.sessionID == sessionID {
			out = append(out, s)
			delete(l.shadows, k)
		}
	}
	return out
}

// Resolve removes the shadow for (sessionID, topic) and returns it so the
// caller can decide to promote or drop it. Returns nil if none exists.
func (l *Log) Resolve(sessionID, topic string) *types.Shadow {
	k := key{sessionID, topic}
	s := l.shadows[k]
	delete(l.shadows, k)
	return s
}

// ShouldPromote reports whether s carries enough signal to become a full
// memory rather than being silently dropped: crossing the token-budget or
// idle-timeout only *triggers* resolution, but a shadow with
// too little content (below SurfaceThreshold of its token budget) is
// dropped rather than promoted to avoid flooding the graph with noise.
func (l *Log) ShouldPromote(s *types.Shadow) bool {
	if s == nil || len(s.Activities) == 0 {
		return false
	}
	fill := float64(s.TokenCount) / float64(l.cfg.TokenThreshold)
	return fill >= l.cfg.SurfaceThreshold
}

// Promote renders s into a Memory ready for Store.Save: type=shadow,
// layer=short_term, the topic as its only tag, the session in SessionID,
// content built by joining "kind: target" for each activity in order.
func Promote(s *types.Shadow) *types.Memory {
	return &types.Memory{
		Content:    summarize(s),
		Type:       types.TypeShadow,
		Tags:       []string{s.Topic},
		Importance: types.DefaultImportance,
		SessionID:  s.SessionID,
		Layer:      types.LayerShortTerm,
		Scope:      types.ScopePersonal,
		Source:     types.SourceClaude,
		Confidence: types.DefaultConfidence,
		Timestamp:  s.UpdatedAt,
	}
}

func summarize(s *types.Shadow) string {
	out := ""
	for i, a := range s.Activities {
		if i > 0 {
			out += "; "
		}
		out += a.Kind + ": " + a.Target
	}
	return out
}

// Deduplicate filters out activities from incoming that are exact repeats
// (same kind+target) of any activity already recorded for the shadow,
// honoring the shadow_deduplicate config flag.
func (l *Log) Deduplicate(s *types.Shadow, incoming []types.ShadowActivity) []types.ShadowActivity {
	if !l.cfg.Deduplicate || s == nil {
		return incoming
	}
	seen := make(map[string]bool, len(s.Activities))
	for _, a := range s.Activities {
		seen[a.Kind+"\x00"+a.Target] = true
	}
	out := make([]types.ShadowActivity, 0, len(incoming))
	for _, a := range incoming {
		dk := a.Kind + "\x00" + a.Target
		if seen[dk] {
			continue
		}
		seen[dk] = true
		out = append(out, a)
	}
	return out
}
