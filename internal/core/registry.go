package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hearth-chat/gateway/internal/domain"
)

// connState is the per-connection record. Owned exclusively by the
// registry and looked up by id, never captured in long-lived callbacks.
type connState struct {
	userID domain.UserID
	conn   Conn
}

// Registry maps authenticated identities to live connections. It is an
// explicit instance injected into every component so tests can run
// several independent registries side by side.
type Registry struct {
	mu     sync.RWMutex
	conns  map[ConnID]*connState
	byUser map[domain.UserID]map[ConnID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[ConnID]*connState),
		byUser: make(map[domain.UserID]map[ConnID]struct{}),
	}
}

// Register binds an authenticated identity to a connection. The binding
// is immutable for the connection's lifetime.
func (r *Registry) Register(id ConnID, userID domain.UserID, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = &connState{userID: userID, conn: conn}
	set, ok := r.byUser[userID]
	if !ok {
		set = make(map[ConnID]struct{})
		r.byUser[userID] = set
	}
	set[id] = struct{}{}
	log.Info().Str("module", "core.registry").Str("conn", string(id)).Str("user", string(userID)).Msg("connection registered")
}

// Unregister removes the connection and reports whether it existed.
// Room cleanup and presence re-evaluation are the caller's part of the
// cascade; the registry only owns the identity binding.
func (r *Registry) Unregister(id ConnID) (domain.UserID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.conns[id]
	if !ok {
		return "", false
	}
	delete(r.conns, id)
	if set, ok := r.byUser[st.userID]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(r.byUser, st.userID)
		}
	}
	log.Info().Str("module", "core.registry").Str("conn", string(id)).Str("user", string(st.userID)).Msg("connection unregistered")
	return st.userID, true
}

// Lookup resolves the user id bound at handshake.
func (r *Registry) Lookup(id ConnID) (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.conns[id]
	if !ok {
		return "", false
	}
	return st.userID, true
}

// Conn returns the live transport for a connection id.
func (r *Registry) Conn(id ConnID) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	return st.conn, true
}

// ConnectionsFor lists every live connection of a user, e.g. multiple
// tabs of the same account.
func (r *Registry) ConnectionsFor(userID domain.UserID) []ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.byUser[userID]
	if !ok {
		return nil
	}
	out := make([]ConnID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Snapshot copies the current connection id set, for global fan-out.
func (r *Registry) Snapshot() []ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ConnID, 0, len(r.conns))
	for id := range r.conns {
		out = append(out, id)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
