package billing

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stacksos/patron-billing/internal/domain/ledger"
)

// ErrSessionNotFound indicates an unknown or already-evicted session id
var ErrSessionNotFound = errors.New("billing session not found")

type registryEntry struct {
	session  *Session
	lastUsed time.Time
}

// Registry tracks the live billing sessions of this instance, one per staff
// patron view. Sessions are independent of each other and hold no shared
// state; conflict resolution across sessions is the external ledger's
// responsibility, so there is nothing to coordinate beyond the map itself.
type Registry struct {
	gateway ledger.LedgerGateway
	logger  *slog.Logger
	idleTTL time.Duration

	mu       sync.RWMutex
	sessions map[string]*registryEntry
	done     chan struct{}
	closed   sync.Once
}

// NewRegistry creates a session registry and starts its idle-eviction
// janitor. Sessions untouched for longer than idleTTL are discarded; their
// state is derived entirely from the external ledger, so eviction loses
// nothing but selection flags.
func NewRegistry(logger *slog.Logger, gateway ledger.LedgerGateway, idleTTL, sweepInterval time.Duration) *Registry {
	r := &Registry{
		gateway:  gateway,
		logger:   logger,
		idleTTL:  idleTTL,
		sessions: make(map[string]*registryEntry),
		done:     make(chan struct{}),
	}
	go r.janitor(sweepInterval)
	return r
}

// Create registers a new empty session and returns its id.
func (r *Registry) Create() (string, *Session) {
	id := uuid.New().String()
	session := NewSession(r.logger.With("billing_session", id), r.gateway)

	r.mu.Lock()
	r.sessions[id] = &registryEntry{session: session, lastUsed: time.Now()}
	r.mu.Unlock()

	return id, session
}

// Get returns the session with the given id and refreshes its idle timer.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	entry.lastUsed = time.Now()
	return entry.session, nil
}

// Delete discards a session. Deleting an unknown id is not an error.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close stops the janitor and drops all sessions.
func (r *Registry) Close() {
	r.closed.Do(func() {
		close(r.done)
		r.mu.Lock()
		r.sessions = make(map[string]*registryEntry)
		r.mu.Unlock()
	})
}

func (r *Registry) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case now := <-ticker.C:
			r.evictIdle(now)
		}
	}
}

func (r *Registry) evictIdle(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, entry := range r.sessions {
		if now.Sub(entry.lastUsed) < r.idleTTL {
			continue
		}
		// Never evict mid-mutation; the next sweep will catch it.
		if entry.session.State() == StateMutating {
			continue
		}
		delete(r.sessions, id)
		r.logger.Info("Evicted idle billing session", "billing_session", id)
	}
}
