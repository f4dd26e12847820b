package redis

import (
	"context"

	"github.com/schoolhub/marksflow/internal/infrastructure/messaging"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT BUS CLIENT ADAPTER
// ══════════════════════════════════════════════════════════════════════════════

// BusClient adapts the go-redis client to the messaging.RedisClient
// interface the Redis event bus consumes.
type BusClient struct {
	cache *Cache
}

// NewBusClient wraps a Cache for use by the event bus.
func NewBusClient(cache *Cache) *BusClient {
	return &BusClient{cache: cache}
}

// Publish sends a message to a channel.
func (b *BusClient) Publish(ctx context.Context, channel string, message interface{}) error {
	return b.cache.Publish(ctx, channel, message)
}

// Subscribe subscribes to channels and pumps received messages into the
// returned channel. The pump stops when ctx is cancelled.
func (b *BusClient) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.RedisMessage, error) {
	pubsub := b.cache.Subscribe(ctx, channels...)

	// Confirm the subscription before handing the channel out.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan messaging.RedisMessage)
	go func() {
		defer close(out)
		defer pubsub.Close()

		in := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- messaging.RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close closes the underlying connection.
func (b *BusClient) Close() error {
	return b.cache.Close()
}
