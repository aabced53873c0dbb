// Package bridge relays outbound frames between gateway instances so a
// room's members can be spread across several processes.
package bridge

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/hearth-chat/gateway/internal/config"
)

// Target receives frames published by other instances. Implemented by
// the gateway's fan-out.
type Target interface {
	DeliverLocal(room string, frame []byte)
}

// envelope wraps a frame with the originating instance id so a node
// can skip its own publications.
type envelope struct {
	InstanceID string `json:"instance_id"`
	Room       string `json:"room,omitempty"`
	Frame      []byte `json:"frame"`
}

// Redis is a pub/sub bridge over a single fan-out channel.
type Redis struct {
	client     *redis.Client
	prefix     string
	instanceID string
	target     Target

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	active bool
}

func NewRedis(cfg config.RedisConfig, target Target) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithCancel(context.Background())
	return &Redis{
		client:     client,
		prefix:     cfg.Prefix,
		instanceID: uuid.NewString(),
		target:     target,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start subscribes to the fan-out channel and begins relaying.
func (b *Redis) Start() error {
	if err := b.client.Ping(b.ctx).Err(); err != nil {
		return err
	}

	sub := b.client.Subscribe(b.ctx, b.channel())
	if _, err := sub.Receive(b.ctx); err != nil {
		return err
	}

	b.mu.Lock()
	b.active = true
	b.mu.Unlock()

	b.wg.Add(1)
	go b.listen(sub)

	log.Info().Str("module", "bridge.redis").Str("instance", b.instanceID).Str("channel", b.channel()).Msg("bridge started")
	return nil
}

// Publish forwards a frame to the other instances. An empty room means
// global fan-out on the receiving side.
func (b *Redis) Publish(room string, frame []byte) error {
	data, err := json.Marshal(envelope{
		InstanceID: b.instanceID,
		Room:       room,
		Frame:      frame,
	})
	if err != nil {
		return err
	}
	return b.client.Publish(b.ctx, b.channel(), data).Err()
}

// Available reports whether the bridge is connected.
func (b *Redis) Available() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active
}

// Stop unsubscribes and closes the client.
func (b *Redis) Stop() error {
	b.mu.Lock()
	b.active = false
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
	return b.client.Close()
}

func (b *Redis) channel() string {
	return b.prefix + "fanout"
}

func (b *Redis) listen(sub *redis.PubSub) {
	defer b.wg.Done()
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.handle(msg)
		case <-b.ctx.Done():
			return
		}
	}
}

func (b *Redis) handle(msg *redis.Message) {
	var env envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		log.Error().Err(err).Str("module", "bridge.redis").Msg("bad bridge envelope")
		return
	}
	if env.InstanceID == b.instanceID {
		return
	}
	log.Debug().Str("module", "bridge.redis").Str("from", env.InstanceID).Str("room", env.Room).Msg("relaying remote frame")
	b.target.DeliverLocal(env.Room, env.Frame)
}
