package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearth-chat/gateway/internal/domain"
)

func newTestRouter(t *testing.T) (*Router, *Registry) {
	t.Helper()
	reg := NewRegistry()
	return NewRouter(reg), reg
}

func register(t *testing.T, reg *Registry, id ConnID, user domain.UserID) *memConn {
	t.Helper()
	conn := &memConn{}
	reg.Register(id, user, conn)
	return conn
}

func TestJoinReturnsPreJoinMembers(t *testing.T) {
	r, reg := newTestRouter(t)
	register(t, reg, "c1", "alice")
	register(t, reg, "c2", "bob")

	existing := r.Join("voice:lobby", "c1")
	assert.Empty(t, existing)

	existing = r.Join("voice:lobby", "c2")
	assert.ElementsMatch(t, []ConnID{"c1"}, existing)
}

func TestJoinIsIdempotent(t *testing.T) {
	r, reg := newTestRouter(t)
	register(t, reg, "c1", "alice")

	r.Join("channel:general", "c1")
	existing := r.Join("channel:general", "c1")

	assert.Empty(t, existing, "re-join must not report the joiner itself")
	assert.ElementsMatch(t, []ConnID{"c1"}, r.Members("channel:general"))
}

func TestLeavePrunesEmptyRoom(t *testing.T) {
	r, reg := newTestRouter(t)
	register(t, reg, "c1", "alice")

	r.Join("channel:general", "c1")
	r.Leave("channel:general", "c1")

	assert.Empty(t, r.Members("channel:general"))
	assert.False(t, r.IsMember("channel:general", "c1"))

	// Leaving twice is fine.
	r.Leave("channel:general", "c1")
}

func TestBroadcastDeliversToMembersOnly(t *testing.T) {
	r, reg := newTestRouter(t)
	c1 := register(t, reg, "c1", "alice")
	c2 := register(t, reg, "c2", "bob")
	c3 := register(t, reg, "c3", "carol")

	r.Join("channel:general", "c1")
	r.Join("channel:general", "c2")

	res := r.Broadcast("channel:general", Frame("hello"))
	assert.Equal(t, 2, res.Sent)
	assert.Len(t, c1.sent(), 1)
	assert.Len(t, c2.sent(), 1)
	assert.Empty(t, c3.sent(), "non-member must never receive the event")
}

func TestBroadcastExcludesSender(t *testing.T) {
	r, reg := newTestRouter(t)
	c1 := register(t, reg, "c1", "alice")
	c2 := register(t, reg, "c2", "bob")

	r.Join("channel:general", "c1")
	r.Join("channel:general", "c2")

	res := r.Broadcast("channel:general", Frame("typing"), "c1")
	assert.Equal(t, 1, res.Sent)
	assert.Empty(t, c1.sent())
	assert.Len(t, c2.sent(), 1)
}

func TestBroadcastPrunesUnreachableMembers(t *testing.T) {
	r, reg := newTestRouter(t)
	register(t, reg, "c1", "alice")
	c2 := register(t, reg, "c2", "bob")

	r.Join("channel:general", "c1")
	r.Join("channel:general", "c2")

	// Simulate a partial cleanup: the connection vanished but its
	// membership survived.
	reg.Unregister("c1")

	res := r.Broadcast("channel:general", Frame("x"))
	assert.Equal(t, 1, res.Sent)
	assert.Len(t, c2.sent(), 1)
	assert.False(t, r.IsMember("channel:general", "c1"), "dead membership must be pruned lazily")
}

func TestBroadcastReportsSlowMembers(t *testing.T) {
	r, reg := newTestRouter(t)
	slow := &memConn{full: true}
	reg.Register("c1", "alice", slow)
	c2 := register(t, reg, "c2", "bob")

	r.Join("channel:general", "c1")
	r.Join("channel:general", "c2")

	res := r.Broadcast("channel:general", Frame("x"))
	assert.Equal(t, 1, res.Sent)
	assert.ElementsMatch(t, []ConnID{"c1"}, res.Slow)
	assert.Len(t, c2.sent(), 1)
	assert.True(t, r.IsMember("channel:general", "c1"), "slow members stay; policy decides their fate")
}

func TestUnicast(t *testing.T) {
	r, reg := newTestRouter(t)
	c1 := register(t, reg, "c1", "alice")

	require.NoError(t, r.Unicast("c1", Frame("direct")))
	assert.Len(t, c1.sent(), 1)

	err := r.Unicast("ghost", Frame("direct"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDelivery)
}

func TestUnicastBackpressure(t *testing.T) {
	r, reg := newTestRouter(t)
	reg.Register("c1", "alice", &memConn{full: true})

	err := r.Unicast("c1", Frame("direct"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDelivery)
}

func TestLeaveAll(t *testing.T) {
	r, reg := newTestRouter(t)
	register(t, reg, "c1", "alice")
	c2 := register(t, reg, "c2", "bob")

	r.Join("channel:general", "c1")
	r.Join("channel:random", "c1")
	r.Join("voice:lobby", "c1")
	r.Join("voice:lobby", "c2")

	keys := r.LeaveAll("c1")
	assert.ElementsMatch(t, []domain.RoomKey{"channel:general", "channel:random", "voice:lobby"}, keys)

	// Subsequent broadcasts never reach the departed connection.
	r.Broadcast("channel:general", Frame("x"))
	r.Broadcast("voice:lobby", Frame("y"))
	assert.Len(t, c2.sent(), 1)

	assert.Empty(t, r.LeaveAll("c1"))
}

func TestSharesRoom(t *testing.T) {
	r, reg := newTestRouter(t)
	register(t, reg, "c1", "alice")
	register(t, reg, "c2", "bob")
	register(t, reg, "c3", "carol")

	r.Join("voice:lobby", "c1")
	r.Join("voice:lobby", "c2")
	r.Join("channel:general", "c1")
	r.Join("channel:general", "c3")

	assert.True(t, r.SharesRoom("c1", "c2", true))
	assert.False(t, r.SharesRoom("c1", "c3", true), "a shared channel room does not count for voice")
	assert.False(t, r.SharesRoom("c2", "c3", true))
}

func TestConcurrentJoinLeaveBroadcast(t *testing.T) {
	r, reg := newTestRouter(t)
	for _, id := range []ConnID{"c1", "c2", "c3", "c4"} {
		register(t, reg, id, domain.UserID(id))
		r.Join("channel:busy", id)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			r.Leave("channel:busy", "c4")
			r.Join("channel:busy", "c4")
		}
	}()
	for i := 0; i < 200; i++ {
		r.Broadcast("channel:busy", Frame("x"))
	}
	<-done
}
