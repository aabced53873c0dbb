package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hearth-chat/gateway/internal/core"
	"github.com/hearth-chat/gateway/internal/domain"
)

// Bridge relays frames to other gateway instances. An empty room key
// means global fan-out.
type Bridge interface {
	Publish(room string, frame []byte) error
	Available() bool
}

// Fanout is the single delivery path for outbound events: local room
// or global broadcast, best-effort unicast, and optional cross-instance
// publication. It also applies the backpressure policy to slow members.
type Fanout struct {
	registry *core.Registry
	router   *core.Router
	policy   Policy

	mu     sync.RWMutex
	bridge Bridge
}

func NewFanout(registry *core.Registry, router *core.Router, policy Policy) *Fanout {
	return &Fanout{registry: registry, router: router, policy: policy}
}

// SetBridge attaches a cross-instance bridge. Safe to call after the
// gateway is already serving.
func (f *Fanout) SetBridge(b Bridge) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bridge = b
}

// Room broadcasts to every current member of a room except the
// excluded connections, then publishes for other instances. Voice
// rooms stay instance-local: signal relay can only reach connections
// this instance can unicast to, so announcing remote voice peers would
// advertise members nobody here can negotiate with.
func (f *Fanout) Room(key domain.RoomKey, frame []byte, exclude ...core.ConnID) {
	res := f.router.Broadcast(key, frame, exclude...)
	f.applyPolicy(key, res.Slow)
	if key.IsVoice() {
		return
	}
	f.publish(string(key), frame)
}

// Global delivers to every registered connection on this instance and
// publishes for the rest of the fleet.
func (f *Fanout) Global(frame []byte) {
	f.globalLocal(frame)
	f.publish("", frame)
}

// Unicast delivers to exactly one local connection. The returned
// delivery error is for the caller to log; it is never sent to anyone.
func (f *Fanout) Unicast(id core.ConnID, frame []byte) error {
	return f.router.Unicast(id, frame)
}

// DeliverLocal feeds a frame received from another instance into local
// fan-out only, so it is not re-published in a loop.
func (f *Fanout) DeliverLocal(room string, frame []byte) {
	if room == "" {
		f.globalLocal(frame)
		return
	}
	res := f.router.Broadcast(domain.RoomKey(room), frame)
	f.applyPolicy(domain.RoomKey(room), res.Slow)
}

func (f *Fanout) globalLocal(frame []byte) {
	var slow []core.ConnID
	for _, id := range f.registry.Snapshot() {
		conn, ok := f.registry.Conn(id)
		if !ok {
			continue
		}
		if err := conn.TrySend(frame); err != nil {
			slow = append(slow, id)
		}
	}
	f.applyPolicy("", slow)
}

func (f *Fanout) applyPolicy(room domain.RoomKey, slow []core.ConnID) {
	for _, id := range slow {
		switch f.policy.OnBackpressure(room, id) {
		case KickMember:
			if conn, ok := f.registry.Conn(id); ok {
				log.Warn().Str("module", "app.fanout").Str("conn", string(id)).Str("room", string(room)).Msg("kicking slow member")
				conn.Close()
			}
		case DropFrame, NoAction:
		}
	}
}

func (f *Fanout) publish(room string, frame []byte) {
	f.mu.RLock()
	b := f.bridge
	f.mu.RUnlock()
	if b == nil || !b.Available() {
		return
	}
	if err := b.Publish(room, frame); err != nil {
		log.Error().Err(err).Str("module", "app.fanout").Msg("bridge publish failed")
	}
}
