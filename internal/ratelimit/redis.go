package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// hitScript increments a bucket atomically. Buckets are hashes with fields
// count, reset and last (unix milliseconds). A bucket whose reset time has
// passed is recreated before counting, and the key expires at its reset time
// so Redis does the sweeping.
//
// KEYS[1] bucket key; ARGV[1] now (ms); ARGV[2] window (ms)
// Returns {count, reset}.
var hitScript = redis.NewScript(`
local reset = tonumber(redis.call('HGET', KEYS[1], 'reset'))
local now = tonumber(ARGV[1])
if not reset or reset <= now then
  redis.call('DEL', KEYS[1])
  reset = now + tonumber(ARGV[2])
  redis.call('HSET', KEYS[1], 'reset', reset)
  redis.call('PEXPIREAT', KEYS[1], reset)
end
local count = redis.call('HINCRBY', KEYS[1], 'count', 1)
redis.call('HSET', KEYS[1], 'last', now)
return {count, reset}
`)

// RedisStore keeps buckets in Redis so several API instances share counts.
type RedisStore struct {
	client *redis.Client
	prefix string
	window time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a store whose keys are prefix + bucket key.
func NewRedisStore(client *redis.Client, prefix string, window time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		window: window,
	}
}

func (s *RedisStore) Peek(ctx context.Context, key string, now time.Time) (Bucket, error) {
	fields, err := s.client.HGetAll(ctx, s.prefix+key).Result()
	if err != nil {
		return Bucket{}, fmt.Errorf("redis: reading bucket: %w", err)
	}

	fresh := Bucket{ResetAt: now.Add(s.window)}
	if len(fields) == 0 {
		return fresh, nil
	}

	resetMs, err := strconv.ParseInt(fields["reset"], 10, 64)
	if err != nil {
		return fresh, nil
	}
	reset := time.UnixMilli(resetMs)
	if !reset.After(now) {
		return fresh, nil
	}

	b := Bucket{ResetAt: reset}
	if v, err := strconv.Atoi(fields["count"]); err == nil {
		b.Count = v
	}
	if v, err := strconv.ParseInt(fields["last"], 10, 64); err == nil && v > 0 {
		b.LastAt = time.UnixMilli(v)
	}
	return b, nil
}

func (s *RedisStore) Hit(ctx context.Context, key string, now time.Time) (Bucket, error) {
	res, err := hitScript.Run(ctx, s.client, []string{s.prefix + key}, now.UnixMilli(), s.window.Milliseconds()).Slice()
	if err != nil {
		return Bucket{}, fmt.Errorf("redis: counting bucket: %w", err)
	}
	if len(res) != 2 {
		return Bucket{}, errors.New("redis: unexpected script reply")
	}
	count, ok1 := res[0].(int64)
	reset, ok2 := res[1].(int64)
	if !ok1 || !ok2 {
		return Bucket{}, errors.New("redis: unexpected script reply types")
	}
	return Bucket{
		Count:   int(count),
		ResetAt: time.UnixMilli(reset),
		LastAt:  time.UnixMilli(now.UnixMilli()),
	}, nil
}

// Sweep is a no-op: keys expire on their own at their reset time.
func (s *RedisStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}
