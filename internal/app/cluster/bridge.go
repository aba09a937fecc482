/*
Package cluster lets several sockchat processes share one chat room through Redis: a pub/sub
bridge relays locally originated frames to the other instances, and a shared counter keeps
the presence count global.
*/
package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"sockchat/internal/pkg/logx"
)

// DefaultPrefix namespaces every key and channel the cluster package touches.
const DefaultPrefix = "sockchat:"

// ErrBridgeNotStarted is returned by Publish before Start.
var ErrBridgeNotStarted = errors.New("cluster: bridge not started")

// BroadcastTarget receives frames published by other instances.
type BroadcastTarget interface {
	DeliverRemote(frame []byte)
}

// envelope wraps a frame with the originating instance ID so that a node can skip its own
// published frames.
type envelope struct {
	InstanceID string          `json:"instance_id"`
	Frame      json.RawMessage `json:"frame"`
}

// RedisBridge relays frames between instances via Redis pub/sub.
type RedisBridge struct {
	client     redis.UniversalClient
	channel    string
	instanceID string
	target     BroadcastTarget
	logger     zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	active bool
}

// NewRedisBridge creates a bridge on the shared client. The client is not closed by Stop.
func NewRedisBridge(client redis.UniversalClient, prefix string, target BroadcastTarget) *RedisBridge {
	return &RedisBridge{
		client:     client,
		channel:    prefix + "broadcast",
		instanceID: uuid.NewString(),
		target:     target,
		logger:     logx.Component("redis-bridge"),
	}
}

// InstanceID identifies this process on the channel.
func (b *RedisBridge) InstanceID() string {
	return b.instanceID
}

// Start subscribes to the broadcast channel and begins relaying frames to the target.
func (b *RedisBridge) Start(ctx context.Context) error {
	listenCtx, cancel := context.WithCancel(context.Background())

	sub := b.client.Subscribe(listenCtx, b.channel)

	// Wait for subscription confirmation.
	if _, err := sub.Receive(ctx); err != nil {
		cancel()
		_ = sub.Close()
		return err
	}

	b.mu.Lock()
	b.active = true
	b.cancel = cancel
	b.mu.Unlock()

	b.wg.Add(1)
	go b.listen(listenCtx, sub)

	b.logger.Info().
		Str("instance_id", b.instanceID).
		Str("channel", b.channel).
		Msg("redis bridge started")
	return nil
}

// Publish sends frame to every other instance.
func (b *RedisBridge) Publish(ctx context.Context, frame []byte) error {
	if !b.Available() {
		return ErrBridgeNotStarted
	}

	data, err := json.Marshal(envelope{InstanceID: b.instanceID, Frame: frame})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

// Stop unsubscribes and waits for the listener to exit.
func (b *RedisBridge) Stop() {
	b.mu.Lock()
	b.active = false
	cancel := b.cancel
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	b.wg.Wait()
}

// Available reports whether the bridge is subscribed.
func (b *RedisBridge) Available() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active
}

// listen reads messages from the subscription and forwards them to the local target.
func (b *RedisBridge) listen(ctx context.Context, sub *redis.PubSub) {
	defer b.wg.Done()
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.handleRedisMessage(msg)
		case <-ctx.Done():
			return
		}
	}
}

// handleRedisMessage decodes an envelope and forwards frames from other instances.
func (b *RedisBridge) handleRedisMessage(msg *redis.Message) {
	var env envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		b.logger.Error().Err(err).Msg("failed to decode redis message")
		return
	}

	if env.InstanceID == b.instanceID {
		return
	}

	b.logger.Debug().Str("from_instance", env.InstanceID).Msg("relaying frame from redis")
	b.target.DeliverRemote(env.Frame)
}
