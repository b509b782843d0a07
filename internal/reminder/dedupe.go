package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper guards against enqueueing the same reminder window twice. Claims
// are advisory: the conditional sent-flag update in the store is the final
// word, the deduper just keeps duplicate jobs off the queue across scheduler
// ticks and replicas.
type Deduper interface {
	// ClaimWindow returns true if this caller is the first to claim the key.
	ClaimWindow(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisDeduper claims windows with SET NX so concurrent scheduler replicas
// agree on a single winner per window.
type RedisDeduper struct {
	client *redis.Client
	prefix string
}

// NewRedisDeduper creates a deduper around an established redis client.
func NewRedisDeduper(client *redis.Client) *RedisDeduper {
	return &RedisDeduper{client: client, prefix: "reminder:window:"}
}

func (d *RedisDeduper) ClaimWindow(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	claimed, err := d.client.SetNX(ctx, d.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reminder: claim window: %w", err)
	}
	return claimed, nil
}

// NoopDeduper claims every window. Used when redis is not configured; the
// queue backend and sent-flag checks still prevent duplicate sends.
type NoopDeduper struct{}

func (NoopDeduper) ClaimWindow(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}
