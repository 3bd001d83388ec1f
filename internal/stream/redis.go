package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tasdeeq.app/internal/ids"
	"tasdeeq.app/internal/kyc"
	"tasdeeq.app/internal/obs"
)

const defaultChannel = "tasdeeq:kyc:events"

type envelope struct {
	Node  string    `json:"node"`
	Event kyc.Event `json:"event"`
}

// RedisBridge relays committed events between replicas so every hub refreshes.
type RedisBridge struct {
	client  redis.UniversalClient
	hub     *Hub
	channel string
	node    string
	logger  *zap.Logger
}

// NewRedisBridge wires hub to channel. An empty channel selects the default.
func NewRedisBridge(client redis.UniversalClient, hub *Hub, channel string) *RedisBridge {
	if channel == "" {
		channel = defaultChannel
	}
	return &RedisBridge{
		client:  client,
		hub:     hub,
		channel: channel,
		node:    ids.New(),
		logger:  obs.Logger().Named("stream.redis"),
	}
}

// Node identifies this replica on the channel.
func (b *RedisBridge) Node() string { return b.node }

// Observe publishes evt for the other replicas.
func (b *RedisBridge) Observe(ctx context.Context, evt kyc.Event) error {
	payload, err := json.Marshal(envelope{Node: b.node, Event: evt})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Run subscribes to the channel and refreshes the local hub for events
// published by other replicas. It blocks until ctx ends.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn("discarding malformed event", zap.Error(err))
				continue
			}
			if env.Node == b.node {
				continue
			}
			b.hub.Refresh(ctx, env.Event)
		}
	}
}
