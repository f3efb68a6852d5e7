package compose

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long an idle session survives before the sweeper
// reclaims it.
const DefaultSessionTTL = 30 * time.Minute

// Registry holds live compose sessions keyed by uuid. Sessions expire after
// ttl of inactivity; expiry is enforced lazily on Get and periodically by
// Run.
type Registry struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[uuid.UUID]*Session
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Registry{
		ttl:      ttl,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create registers a fresh session in its initial state.
func (g *Registry) Create() *Session {
	s := newSession(uuid.New(), time.Now())
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[s.ID] = s
	return s
}

// Get returns the session or ErrSessionNotFound. An expired session is
// removed on access and reported as missing.
func (g *Registry) Get(id uuid.UUID) (*Session, error) {
	g.mu.Lock()
	s, ok := g.sessions[id]
	g.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.idleSince(time.Now()) > g.ttl {
		g.Delete(id)
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete discards a session. Unknown ids are ignored.
func (g *Registry) Delete(id uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sessions, id)
}

// Len reports the number of live sessions.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

// Run sweeps expired sessions every interval until ctx is done. Meant to be
// started once from main.
func (g *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			g.sweep(now)
		}
	}
}

func (g *Registry) sweep(now time.Time) {
	g.mu.Lock()
	stale := make([]uuid.UUID, 0)
	sessions := make(map[uuid.UUID]*Session, len(g.sessions))
	for id, s := range g.sessions {
		sessions[id] = s
	}
	g.mu.Unlock()

	// Idle checks take each session's own lock, so they happen outside the
	// registry lock.
	for id, s := range sessions {
		if s.idleSince(now) > g.ttl {
			stale = append(stale, id)
		}
	}

	g.mu.Lock()
	for _, id := range stale {
		delete(g.sessions, id)
	}
	g.mu.Unlock()
}
