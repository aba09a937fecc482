package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix namespaces session hashes.
const RedisKeyPrefix = "sess:"

// touchScript moves the expiry only if the hash still exists, so a concurrent Destroy or
// natural expiry cannot be resurrected as a partial record.
var touchScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'expires_at', ARGV[1])
redis.call('PEXPIREAT', KEYS[1], ARGV[1])
return 1
`)

// RedisStore keeps each session as a hash whose key expires with the session.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore returns a Store backed by client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(id string) string {
	return RedisKeyPrefix + id
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (Record, error) {
	fields, err := s.client.HGetAll(ctx, redisKey(id)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("session: redis hgetall: %w", err)
	}
	if len(fields) == 0 {
		return Record{}, ErrNotFound
	}

	created, err1 := strconv.ParseInt(fields["created_at"], 10, 64)
	expires, err2 := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err := errors.Join(err1, err2); err != nil {
		return Record{}, fmt.Errorf("session: corrupt record %q: %w", id, err)
	}

	rec := Record{
		ID:        id,
		Username:  fields["username"],
		CreatedAt: time.UnixMilli(created),
		ExpiresAt: time.UnixMilli(expires),
	}
	if rec.IsExpired(time.Now()) {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, rec Record) error {
	key := redisKey(rec.ID)

	if rec.IsExpired(time.Now()) {
		return s.Destroy(ctx, rec.ID)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"username", rec.Username,
			"created_at", rec.CreatedAt.UnixMilli(),
			"expires_at", rec.ExpiresAt.UnixMilli(),
		)
		pipe.PExpireAt(ctx, key, rec.ExpiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("session: redis set: %w", err)
	}
	return nil
}

// Touch implements Store.
func (s *RedisStore) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	ok, err := touchScript.Run(ctx, s.client, []string{redisKey(id)}, expiresAt.UnixMilli()).Int()
	if err != nil {
		return fmt.Errorf("session: redis touch: %w", err)
	}
	if ok == 0 {
		return ErrNotFound
	}
	return nil
}

// Destroy implements Store.
func (s *RedisStore) Destroy(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKey(id)).Err(); err != nil {
		return fmt.Errorf("session: redis del: %w", err)
	}
	return nil
}
