package inflight

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Slot shared by every process pointing at the same Redis.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects to redisURL and verifies the connection.
func NewRedis(redisURL string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisWithClient(client, ttl), nil
}

// NewRedisWithClient builds a slot from an existing client.
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: "reorder:", ttl: ttl}
}

func (r *Redis) key(tree string) string {
	return r.prefix + tree
}

// Acquire implements Slot.
func (r *Redis) Acquire(ctx context.Context, tree, token string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(tree), token, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire reorder slot: %w", err)
	}
	if ok {
		return true, nil
	}

	// Re-entrant for the current owner.
	owner, err := r.client.Get(ctx, r.key(tree)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read reorder slot: %w", err)
	}
	return owner == token, nil
}

// Release implements Slot.
func (r *Redis) Release(ctx context.Context, tree, token string) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.key(tree)}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release reorder slot: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
