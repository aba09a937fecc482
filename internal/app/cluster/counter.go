package cluster

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// addScript increments the counter and clamps it at zero, so a crashed instance that never
// gave back its share cannot push the count negative.
var addScript = redis.NewScript(`
local n = redis.call('INCRBY', KEYS[1], ARGV[1])
if n < 0 then
  redis.call('SET', KEYS[1], 0)
  return 0
end
return n
`)

// RedisCounter is a presence counter shared by every instance.
type RedisCounter struct {
	client redis.UniversalClient
	key    string
}

// NewRedisCounter returns a counter stored under prefix+"presence".
func NewRedisCounter(client redis.UniversalClient, prefix string) *RedisCounter {
	return &RedisCounter{client: client, key: prefix + "presence"}
}

// Add applies delta atomically and returns the new count.
func (c *RedisCounter) Add(ctx context.Context, delta int64) (int64, error) {
	n, err := addScript.Run(ctx, c.client, []string{c.key}, delta).Int64()
	if err != nil {
		return 0, fmt.Errorf("cluster: presence counter: %w", err)
	}
	return n, nil
}

// Value reads the current count.
func (c *RedisCounter) Value(ctx context.Context) (int64, error) {
	n, err := c.client.Get(ctx, c.key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cluster: presence counter: %w", err)
	}
	return n, nil
}
