package core

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hearth-chat/gateway/internal/domain"
)

// ConnSource resolves live connections for delivery. Satisfied by the
// Registry; tests substitute their own.
type ConnSource interface {
	Conn(ConnID) (Conn, bool)
}

// DeliveryResult reports fan-out stats so the caller can apply a
// backpressure policy to slow members.
type DeliveryResult struct {
	Sent int
	Slow []ConnID
}

// Router owns the room membership sets. Rooms are pure membership with
// no buffering: a connection that is not a member at broadcast time
// never receives the event.
type Router struct {
	mu     sync.RWMutex
	rooms  map[domain.RoomKey]map[ConnID]struct{}
	byConn map[ConnID]map[domain.RoomKey]struct{}
	source ConnSource
}

func NewRouter(source ConnSource) *Router {
	return &Router{
		rooms:  make(map[domain.RoomKey]map[ConnID]struct{}),
		byConn: make(map[ConnID]map[domain.RoomKey]struct{}),
		source: source,
	}
}

// Join adds a membership and returns the member list as it was before
// the join. Idempotent; a re-join still reports the other members.
func (r *Router) Join(key domain.RoomKey, id ConnID) []ConnID {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[key]
	if !ok {
		members = make(map[ConnID]struct{})
		r.rooms[key] = members
	}
	existing := make([]ConnID, 0, len(members))
	for m := range members {
		if m != id {
			existing = append(existing, m)
		}
	}
	members[id] = struct{}{}

	joined, ok := r.byConn[id]
	if !ok {
		joined = make(map[domain.RoomKey]struct{})
		r.byConn[id] = joined
	}
	joined[key] = struct{}{}

	log.Debug().Str("module", "core.router").Str("room", string(key)).Str("conn", string(id)).Int("members", len(members)).Msg("joined room")
	return existing
}

// Leave removes a membership. Idempotent. An emptied room is pruned;
// rooms have no identity beyond their member set.
func (r *Router) Leave(key domain.RoomKey, id ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(key, id)
}

func (r *Router) leaveLocked(key domain.RoomKey, id ConnID) {
	if members, ok := r.rooms[key]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(r.rooms, key)
			log.Debug().Str("module", "core.router").Str("room", string(key)).Msg("room pruned")
		}
	}
	if joined, ok := r.byConn[id]; ok {
		delete(joined, key)
		if len(joined) == 0 {
			delete(r.byConn, id)
		}
	}
}

// LeaveAll removes the connection from every room it belongs to and
// returns those room keys, so the caller can announce the withdrawal.
func (r *Router) LeaveAll(id ConnID) []domain.RoomKey {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined, ok := r.byConn[id]
	if !ok {
		return nil
	}
	keys := make([]domain.RoomKey, 0, len(joined))
	for key := range joined {
		keys = append(keys, key)
	}
	for _, key := range keys {
		r.leaveLocked(key, id)
	}
	return keys
}

// Members returns a snapshot of the room's member set.
func (r *Router) Members(key domain.RoomKey) []ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members, ok := r.rooms[key]
	if !ok {
		return nil
	}
	out := make([]ConnID, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

func (r *Router) IsMember(key domain.RoomKey, id ConnID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members, ok := r.rooms[key]
	if !ok {
		return false
	}
	_, ok = members[id]
	return ok
}

// SharesRoom reports whether two connections are members of a common
// room with the given kind filter.
func (r *Router) SharesRoom(a, b ConnID, voice bool) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	joined, ok := r.byConn[a]
	if !ok {
		return false
	}
	for key := range joined {
		if key.IsVoice() != voice {
			continue
		}
		if _, ok := r.rooms[key][b]; ok {
			return true
		}
	}
	return false
}

// Broadcast delivers a frame to every current member except the
// excluded connections. The member set is snapshotted before iteration
// so a concurrent leave cannot invalidate it mid-delivery. Memberships
// whose connection no longer resolves are pruned lazily here.
func (r *Router) Broadcast(key domain.RoomKey, frame Frame, exclude ...ConnID) DeliveryResult {
	skip := make(map[ConnID]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	members := r.Members(key)
	res := DeliveryResult{}
	for _, id := range members {
		if _, ok := skip[id]; ok {
			continue
		}
		conn, ok := r.source.Conn(id)
		if !ok {
			// Dead membership left behind by a partial cleanup.
			r.Leave(key, id)
			log.Warn().Str("module", "core.router").Str("room", string(key)).Str("conn", string(id)).Msg("pruned unreachable member")
			continue
		}
		if err := conn.TrySend(frame); err != nil {
			res.Slow = append(res.Slow, id)
			continue
		}
		res.Sent++
	}
	log.Debug().Str("module", "core.router").Str("room", string(key)).Int("sent", res.Sent).Int("slow", len(res.Slow)).Msg("broadcast")
	return res
}

// Unicast delivers a frame to exactly one connection. Failure is
// returned for the caller to log; signaling is best-effort and the
// peer may have already disconnected.
func (r *Router) Unicast(id ConnID, frame Frame) error {
	conn, ok := r.source.Conn(id)
	if !ok {
		return fmt.Errorf("%w: connection %s gone", domain.ErrDelivery, id)
	}
	if err := conn.TrySend(frame); err != nil {
		return fmt.Errorf("%w: connection %s: %v", domain.ErrDelivery, id, err)
	}
	return nil
}
