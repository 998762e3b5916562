package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "courierfee:"
	tagKeyPrefix     = "cache:tag:"
)

// RedisStore is a Store backed by Redis. Each tag is a Redis set holding the
// keys written under it.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an existing client. Keys are namespaced by prefix; an
// empty prefix uses "courierfee:".
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set implements Store. Each tag set expires with its most recently written key.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	if ttl <= 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.prefix+key, value, ttl)
	for _, tag := range tags {
		tagKey := s.tagKey(tag)
		pipe.SAdd(ctx, tagKey, key)
		pipe.Expire(ctx, tagKey, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// InvalidateByTag implements Store.
func (s *RedisStore) InvalidateByTag(ctx context.Context, tag string) (int, error) {
	tagKey := s.tagKey(tag)

	keys, err := s.client.SMembers(ctx, tagKey).Result()
	if err != nil {
		return 0, err
	}

	pipe := s.client.TxPipeline()
	var del *redis.IntCmd
	if len(keys) > 0 {
		full := make([]string, len(keys))
		for i, k := range keys {
			full[i] = s.prefix + k
		}
		del = pipe.Del(ctx, full...)
	}
	pipe.Del(ctx, tagKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	if del == nil {
		return 0, nil
	}
	return int(del.Val()), nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) tagKey(tag string) string {
	return s.prefix + tagKeyPrefix + tag
}
