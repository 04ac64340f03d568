package notify

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Redis publishes to pub/sub channels named by Channel, so subscribers can
// PSUBSCRIBE "stacksx:*:block.canonical" across lineages.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Publish(ctx context.Context, msg Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, Channel(msg.Lineage, msg.Topic), data).Err()
}

// Close is a no-op: the client is owned by the caller.
func (r *Redis) Close() error { return nil }
