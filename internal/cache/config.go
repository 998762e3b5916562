package cache

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Backend names accepted by CACHE_BACKEND.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds cache configuration.
type Config struct {
	Backend   string
	RedisAddr string
	RedisDB   int
	KeyPrefix string
	TTL       time.Duration
}

// DefaultConfig returns the in-memory configuration with a five minute TTL.
func DefaultConfig() Config {
	return Config{
		Backend: BackendMemory,
		TTL:     5 * time.Minute,
	}
}

// ConfigFromEnv creates a Config from environment variables.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		cfg.Backend = v
	}
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.KeyPrefix = os.Getenv("CACHE_KEY_PREFIX")
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.TTL = d
		}
	}

	return cfg
}

// Open builds the configured store wrapped in metrics. The returned close
// function releases backend connections.
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (*Instrumented, func() error, error) {
	var (
		store   Store
		closeFn = func() error { return nil }
	)

	switch cfg.Backend {
	case "", BackendMemory:
		store = NewMemoryStore(clockwork.NewRealClock())
		cfg.Backend = BackendMemory
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return nil, nil, fmt.Errorf("cache: REDIS_ADDR is required for the redis backend")
		}
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("cache: ping redis: %w", err)
		}
		rs := NewRedisStore(client, cfg.KeyPrefix)
		store, closeFn = rs, rs.Close
	default:
		return nil, nil, fmt.Errorf("cache: unknown backend %q", cfg.Backend)
	}

	instrumented, err := NewInstrumented(store, cfg.Backend, logger)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return instrumented, closeFn, nil
}
