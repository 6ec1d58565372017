package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a Redis client. All keys are namespaced
// under a configurable prefix so several deployments can share one instance.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new [RedisStore] instance.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

// redisKey returns the namespaced Redis key.
func (r *RedisStore) redisKey(key string) string {
	return fmt.Sprintf("%s:%s", r.prefix, key)
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, r.redisKey(key)).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.redisKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisStore) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.redisKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis setex: %w", err)
	}
	return nil
}

func (r *RedisStore) GetDel(ctx context.Context, key string) (string, error) {
	val, err := r.client.GetDel(ctx, r.redisKey(key)).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis getdel: %w", err)
	}
	return val, nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *RedisStore) Scan(ctx context.Context, prefix, cursor string, count int64) ([]string, string, error) {
	var cur uint64
	if cursor != "" {
		parsed, err := strconv.ParseUint(cursor, 10, 64)
		if err != nil {
			return nil, "", fmt.Errorf("redis scan: bad cursor %q", cursor)
		}
		cur = parsed
	}

	match := r.redisKey(prefix) + "*"
	keys, next, err := r.client.Scan(ctx, cur, match, count).Result()
	if err != nil {
		return nil, "", fmt.Errorf("redis scan: %w", err)
	}

	// Strip the namespace so callers see the same keys they wrote.
	stripped := make([]string, 0, len(keys))
	for _, k := range keys {
		stripped = append(stripped, strings.TrimPrefix(k, r.prefix+":"))
	}

	nextCursor := ""
	if next != 0 {
		nextCursor = strconv.FormatUint(next, 10)
	}
	return stripped, nextCursor, nil
}

func (r *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Incr(ctx, r.redisKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}
	return n, nil
}

func (r *RedisStore) Decr(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Decr(ctx, r.redisKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis decr: %w", err)
	}
	return n, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
