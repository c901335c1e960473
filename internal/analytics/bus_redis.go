package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultEventChannel is the Redis channel analytics events travel on.
const DefaultEventChannel = "analytics.events"

// RedisBus publishes events through Redis Pub/Sub so subscribers on every
// instance are notified. Received messages are fanned out to a local registry.
type RedisBus struct {
	client  *redis.Client
	channel string
	local   *LocalBus
	logger  *slog.Logger
}

// NewRedisBus wires a bus on the given channel. Call Listen to start receiving.
func NewRedisBus(client *redis.Client, channel string, logger *slog.Logger) *RedisBus {
	if logger == nil {
		logger = slog.Default()
	}
	if channel == "" {
		channel = DefaultEventChannel
	}
	return &RedisBus{client: client, channel: channel, local: NewLocalBus(logger), logger: logger}
}

// Publish encodes the event and sends it to the channel.
func (b *RedisBus) Publish(ctx context.Context, evt Event) error {
	if b == nil || b.client == nil {
		return errors.New("analytics: redis bus not configured")
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("analytics: encode event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, raw).Err(); err != nil {
		return fmt.Errorf("analytics: publish event: %w", err)
	}
	return nil
}

// Subscribe registers a handler for events received by Listen.
func (b *RedisBus) Subscribe(h Handler) func() {
	return b.local.Subscribe(h)
}

// Listen subscribes to the channel and dispatches messages until ctx ends.
// It returns once the subscription is confirmed.
func (b *RedisBus) Listen(ctx context.Context) error {
	if b == nil || b.client == nil {
		return nil
	}
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("analytics: subscribe %s: %w", b.channel, err)
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var evt Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					b.logger.Warn("drop malformed analytics event",
						slog.String("channel", msg.Channel),
						slog.Any("error", err),
					)
					continue
				}
				_ = b.local.Publish(ctx, evt)
			}
		}
	}()
	return nil
}

var _ Bus = (*RedisBus)(nil)
