package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", "alice", &memConn{})

	uid, ok := r.Lookup("c1")
	require.True(t, ok)
	assert.Equal(t, "alice", string(uid))

	_, ok = r.Lookup("ghost")
	assert.False(t, ok)
}

func TestRegistryMultipleConnectionsPerUser(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", "alice", &memConn{})
	r.Register("c2", "alice", &memConn{})
	r.Register("c3", "bob", &memConn{})

	conns := r.ConnectionsFor("alice")
	assert.ElementsMatch(t, []ConnID{"c1", "c2"}, conns)
	assert.Equal(t, 3, r.Len())
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", "alice", &memConn{})
	r.Register("c2", "alice", &memConn{})

	uid, ok := r.Unregister("c1")
	require.True(t, ok)
	assert.Equal(t, "alice", string(uid))
	assert.ElementsMatch(t, []ConnID{"c2"}, r.ConnectionsFor("alice"))

	uid, ok = r.Unregister("c2")
	require.True(t, ok)
	assert.Equal(t, "alice", string(uid))
	assert.Empty(t, r.ConnectionsFor("alice"))

	_, ok = r.Unregister("c2")
	assert.False(t, ok)
}

func TestRegistrySnapshot(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", "alice", &memConn{})
	r.Register("c2", "bob", &memConn{})

	assert.ElementsMatch(t, []ConnID{"c1", "c2"}, r.Snapshot())
}

func TestRegistryConnResolution(t *testing.T) {
	r := NewRegistry()
	conn := &memConn{}
	r.Register("c1", "alice", conn)

	got, ok := r.Conn("c1")
	require.True(t, ok)
	assert.Same(t, conn, got.(*memConn))

	r.Unregister("c1")
	_, ok = r.Conn("c1")
	assert.False(t, ok)
}
