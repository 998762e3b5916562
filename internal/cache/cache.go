// Package cache provides a tag-aware key/value cache with a generic
// get-or-compute helper. Backends are in-process memory and Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrMiss is returned by Store.Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is a byte-oriented cache backend.
type Store interface {
	// Get returns the value for key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for ttl and associates it with tags.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error

	// InvalidateByTag removes every entry associated with tag and returns how
	// many were removed.
	InvalidateByTag(ctx context.Context, tag string) (int, error)
}

// Entry describes where a computed value is cached.
type Entry struct {
	Key  string
	TTL  time.Duration
	Tags []string
}

// GetOrCompute returns the cached value for e.Key, or calls compute and caches
// its result. Concurrent callers may compute the same key more than once.
//
// Store failures are treated as misses and never fail the call. When compute
// returns an error its value is returned alongside the error and nothing is
// stored.
func GetOrCompute[T any](ctx context.Context, store Store, e Entry, compute func(context.Context) (T, error)) (T, error) {
	if raw, err := store.Get(ctx, e.Key); err == nil {
		var cached T
		if json.Unmarshal(raw, &cached) == nil {
			return cached, nil
		}
	}

	value, err := compute(ctx)
	if err != nil {
		return value, err
	}

	if raw, err := json.Marshal(value); err == nil {
		_ = store.Set(ctx, e.Key, raw, e.TTL, e.Tags...)
	}

	return value, nil
}
