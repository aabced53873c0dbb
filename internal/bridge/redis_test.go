package bridge

import (
	"encoding/json"
	"os"
	"sync"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearth-chat/gateway/internal/config"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

type recordingTarget struct {
	mu     sync.Mutex
	rooms  []string
	frames [][]byte
}

func (r *recordingTarget) DeliverLocal(room string, frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms = append(r.rooms, room)
	r.frames = append(r.frames, frame)
}

func (r *recordingTarget) delivered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]string, len(r.rooms))
	copy(cp, r.rooms)
	return cp
}

func newTestBridge(target Target) *Redis {
	return NewRedis(config.RedisConfig{Addr: "localhost:0", Prefix: "test:"}, target)
}

func TestBridgeEnvelopeRoundTrip(t *testing.T) {
	env := envelope{InstanceID: "node-a", Room: "channel:general", Frame: []byte(`{"type":"x"}`)}
	data, err := json.Marshal(env)
	require.NoError(t, err)

	var got envelope
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, env, got)
}

func TestBridgeInstanceIDsAreUnique(t *testing.T) {
	a := newTestBridge(&recordingTarget{})
	b := newTestBridge(&recordingTarget{})
	assert.NotEqual(t, a.instanceID, b.instanceID)
	assert.NotEmpty(t, a.instanceID)
}

func TestBridgeUnavailableBeforeStart(t *testing.T) {
	b := newTestBridge(&recordingTarget{})
	assert.False(t, b.Available())
}

func TestBridgeChannelName(t *testing.T) {
	b := newTestBridge(&recordingTarget{})
	assert.Equal(t, "test:fanout", b.channel())
}

func TestBridgeSkipsOwnPublications(t *testing.T) {
	target := &recordingTarget{}
	b := newTestBridge(target)

	own, err := json.Marshal(envelope{InstanceID: b.instanceID, Room: "channel:general", Frame: []byte("x")})
	require.NoError(t, err)
	b.handle(&goredis.Message{Payload: string(own)})
	assert.Empty(t, target.delivered(), "own frames must not loop back")

	remote, err := json.Marshal(envelope{InstanceID: "other-node", Room: "channel:general", Frame: []byte("x")})
	require.NoError(t, err)
	b.handle(&goredis.Message{Payload: string(remote)})
	assert.Equal(t, []string{"channel:general"}, target.delivered())
}

func TestBridgeIgnoresBadEnvelope(t *testing.T) {
	target := &recordingTarget{}
	b := newTestBridge(target)

	b.handle(&goredis.Message{Payload: "not json"})
	assert.Empty(t, target.delivered())
}

func TestBridgeGlobalFrameHasEmptyRoom(t *testing.T) {
	target := &recordingTarget{}
	b := newTestBridge(target)

	remote, err := json.Marshal(envelope{InstanceID: "other-node", Frame: []byte("x")})
	require.NoError(t, err)
	b.handle(&goredis.Message{Payload: string(remote)})
	assert.Equal(t, []string{""}, target.delivered())
}
