package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hearth-chat/gateway/internal/domain"
)

// Presence is a reference-counted state machine per user id. A user
// flips ONLINE on their first live connection and OFFLINE on their
// last disconnect; connections in between are no-ops.
type Presence struct {
	mu     sync.Mutex
	counts map[domain.UserID]int
}

func NewPresence() *Presence {
	return &Presence{counts: make(map[domain.UserID]int)}
}

// OnConnect records a connection and reports whether the user just
// came online.
func (p *Presence) OnConnect(userID domain.UserID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[userID]++
	first := p.counts[userID] == 1
	if first {
		log.Info().Str("module", "core.presence").Str("user", string(userID)).Msg("user online")
	}
	return first
}

// OnDisconnect records a disconnect and reports whether the user just
// went offline. Supports multiple tabs per user.
func (p *Presence) OnDisconnect(userID domain.UserID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.counts[userID]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(p.counts, userID)
		log.Info().Str("module", "core.presence").Str("user", string(userID)).Msg("user offline")
		return true
	}
	p.counts[userID] = n - 1
	return false
}

func (p *Presence) Online(userID domain.UserID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[userID] > 0
}
