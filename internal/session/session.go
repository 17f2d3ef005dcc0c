// Package session owns the single-worker, process-wide session state:
// a lazily-created current_session_id, a map of
// review sessions (interactive contradiction/consolidation walks) keyed
// by session id with an idle timeout, and a periodic janitor that evicts
// stale entries. It also hosts the per-session shadow-activity log
// (internal/shadow).
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/kestrelmem/noetic/internal/idgen"
	"github.com/kestrelmem/noetic/internal/shadow"
	"github.com/kestrelmem/noetic/pkg/types"
)

// ReviewKind is the closed set of interactive walk types a review session
// can host.
type ReviewKind string

const (
	ReviewContradiction ReviewKind = "contradiction"
	ReviewConsolidation ReviewKind = "consolidation"
)

// ReviewSession is one interactive contradiction/consolidation walk,
// keyed by session id. It carries whatever pending proposals the walk is
// stepping through; the caller drives the actual decision logic via
// internal/trustpolicy.
type ReviewSession struct {
	ID         string
	Kind       ReviewKind
	Proposals  []*types.Proposal
	Cursor     int
	CreatedAt  time.Time
	LastTouch  time.Time
}

// IdleTimeout is how long a review session may sit untouched before the
// janitor evicts it.
const IdleTimeout = time.Hour

// JanitorInterval is how often the janitor sweeps for stale review
// sessions and idle shadows.
const JanitorInterval = 10 * time.Minute

// Manager owns every piece of mutable process-wide session state. All of
// its methods assume single-worker access; callers introducing
// real parallelism must serialize through Manager's own mutex, which
// exists only to make concurrent Go runtimes safe, not to provide
// multi-worker throughput.
type Manager struct {
	mu             sync.Mutex
	currentID      string
	currentStarted time.Time
	reviews        map[string]*ReviewSession
	shadows        *shadow.Log
	logger         *log.Logger
	clock          func() time.Time
}

// NewManager builds a Manager with an empty review-session map and a
// shadow log configured per cfg. logger may be nil (defaults to
// log.Default()).
func NewManager(cfg shadow.Config, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		reviews: map[string]*ReviewSession{},
		shadows: shadow.New(cfg, logger),
		logger:  logger,
		clock:   time.Now,
	}
}

// CurrentSessionID returns the process's current session id, lazily
// minting one on first call.
func (m *Manager) CurrentSessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentID == "" {
		m.currentID = idgen.New("sess")
		m.currentStarted = m.clock()
	}
	return m.currentID
}

// CurrentSessionStartedAt returns when the current session id was minted
// or last overridden; zero if no session has started yet.
func (m *Manager) CurrentSessionStartedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentStarted
}

// SetCurrentSessionID overrides the current session id.
func (m *Manager) SetCurrentSessionID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentID = id
	m.currentStarted = m.clock()
}

// Shadows exposes the shadow log for direct recording; callers must hold
// no other lock across this call since shadow.Log is not itself
// concurrency-safe.
func (m *Manager) Shadows() *shadow.Log {
	return m.shadows
}

// StartReview creates a new review session for the given walk kind over
// proposals, returning its id.
func (m *Manager) StartReview(kind ReviewKind, proposals []*types.Proposal) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock()
	id := idgen.New("sess")
	m.reviews[id] = &ReviewSession{
		ID: id, Kind: kind, Proposals: proposals,
		CreatedAt: now, LastTouch: now,
	}
	return id
}

// GetReview returns the review session for id, touching its last-access
// time, or nil if absent/expired.
func (m *Manager) GetReview(id string) *ReviewSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[id]
	if !ok {
		return nil
	}
	r.LastTouch = m.clock()
	return r
}

// EndReview explicitly removes a review session, e.g. once the walk
// completes.
func (m *Manager) EndReview(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reviews, id)
}

// sweepReviews evicts review sessions idle for longer than IdleTimeout.
func (m *Manager) sweepReviews() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock()
	for id, r := range m.reviews {
		if now.Sub(r.LastTouch) >= IdleTimeout {
			delete(m.reviews, id)
		}
	}
}

// RunJanitor starts a background goroutine that sweeps stale review
// sessions and idle shadows every JanitorInterval until ctx is canceled.
// The returned function blocks until the goroutine has exited, for clean
// shutdown in tests.
func (m *Manager) RunJanitor(ctx context.Context) (stop func()) {
	done := make(chan struct{})
	ticker := time.NewTicker(JanitorInterval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweepReviews()
				idle := m.shadows.Sweep()
				for _, s := range idle {
					if m.shadows.ShouldPromote(s) {
						m.logger.Printf("session: shadow ready to promote: session=%s topic=%s", s.SessionID, s.Topic)
					}
				}
			}
		}
	}()
	return func() { <-done }
}
