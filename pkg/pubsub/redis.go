package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher implements Publisher with Redis PUBLISH on a shared client.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher builds a Publisher on client. The caller keeps
// ownership of the client.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish publishes an event to the specified channel.
func (r *RedisPublisher) Publish(ctx context.Context, channel string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := r.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.Type, channel, err)
	}
	return nil
}

// Ensure interface is satisfied at compile time.
var _ Publisher = (*RedisPublisher)(nil)
