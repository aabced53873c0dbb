package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresenceFirstConnectionFlipsOnline(t *testing.T) {
	p := NewPresence()

	assert.True(t, p.OnConnect("alice"), "first connection flips ONLINE")
	assert.False(t, p.OnConnect("alice"), "second tab is a no-op")
	assert.True(t, p.Online("alice"))
}

func TestPresenceLastDisconnectFlipsOffline(t *testing.T) {
	p := NewPresence()
	p.OnConnect("alice")
	p.OnConnect("alice")

	assert.False(t, p.OnDisconnect("alice"), "one tab remains, still ONLINE")
	assert.True(t, p.Online("alice"))

	assert.True(t, p.OnDisconnect("alice"), "last disconnect flips OFFLINE")
	assert.False(t, p.Online("alice"))
}

func TestPresenceDisconnectUnknownUser(t *testing.T) {
	p := NewPresence()
	assert.False(t, p.OnDisconnect("ghost"))
}
