package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
-- KEYS[1] = counter key
-- ARGV[1] = window_ms (int)
--
-- Returns {count, ttl_ms}.
local current = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if current == 1 or ttl < 0 then
  -- Ensure TTL exists even if key already existed without TTL
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisStore shares windows across instances. Redis key TTLs evict expired
// windows, so Sweep has nothing to do.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisStore uses "ratelimit:" when prefix is empty.
func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(k string) string { return s.prefix + k }

func (s *RedisStore) Get(ctx context.Context, key string, now time.Time) (Record, bool, error) {
	pipe := s.rdb.Pipeline()
	countCmd := pipe.Get(ctx, s.key(key))
	ttlCmd := pipe.PTTL(ctx, s.key(key))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Record{}, false, err
	}

	count, err := countCmd.Int()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	ttl := ttlCmd.Val()
	if ttl <= 0 {
		return Record{}, false, nil
	}
	return Record{Count: count, ResetAt: now.Add(ttl)}, true, nil
}

func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration, now time.Time) (Record, error) {
	if window <= 0 {
		return Record{}, fmt.Errorf("window must be > 0")
	}
	res, err := fixedWindowScript.Run(ctx, s.rdb, []string{s.key(key)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Record{}, err
	}
	if len(res) != 2 {
		return Record{}, fmt.Errorf("unexpected script reply %v", res)
	}
	return Record{
		Count:   int(res[0]),
		ResetAt: now.Add(time.Duration(res[1]) * time.Millisecond),
	}, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.key(key)).Err()
}

func (s *RedisStore) Sweep(context.Context, time.Time) (int, error) { return 0, nil }
