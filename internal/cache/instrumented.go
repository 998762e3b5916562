package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/courierfee/courierfee/internal/cache"

// Instrumented wraps a Store, counting hits, misses, errors and tag
// invalidations. Backend errors are logged at warn level.
type Instrumented struct {
	next    Store
	backend string
	logger  zerolog.Logger

	hits          metric.Int64Counter
	misses        metric.Int64Counter
	failures      metric.Int64Counter
	invalidations metric.Int64Counter
}

// NewInstrumented wraps next. backend labels every measurement.
func NewInstrumented(next Store, backend string, logger zerolog.Logger) (*Instrumented, error) {
	meter := otel.Meter(meterName)

	hits, err := meter.Int64Counter(
		"cache.hits",
		metric.WithDescription("Number of cache lookups that found a value"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	misses, err := meter.Int64Counter(
		"cache.misses",
		metric.WithDescription("Number of cache lookups that found nothing"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"cache.errors",
		metric.WithDescription("Number of failed cache backend operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	invalidations, err := meter.Int64Counter(
		"cache.invalidated_entries",
		metric.WithDescription("Number of entries removed by tag invalidation"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	return &Instrumented{
		next:          next,
		backend:       backend,
		logger:        logger.With().Str("component", "cache").Str("backend", backend).Logger(),
		hits:          hits,
		misses:        misses,
		failures:      failures,
		invalidations: invalidations,
	}, nil
}

// Get implements Store.
func (c *Instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.next.Get(ctx, key)
	switch {
	case err == nil:
		c.hits.Add(ctx, 1, c.attrs())
	case errors.Is(err, ErrMiss):
		c.misses.Add(ctx, 1, c.attrs())
	default:
		c.fail(ctx, "get", key, err)
	}
	return val, err
}

// Set implements Store.
func (c *Instrumented) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	err := c.next.Set(ctx, key, value, ttl, tags...)
	if err != nil {
		c.fail(ctx, "set", key, err)
	}
	return err
}

// InvalidateByTag implements Store.
func (c *Instrumented) InvalidateByTag(ctx context.Context, tag string) (int, error) {
	n, err := c.next.InvalidateByTag(ctx, tag)
	if err != nil {
		c.fail(ctx, "invalidate", tag, err)
		return n, err
	}

	c.invalidations.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("cache.backend", c.backend),
		attribute.String("cache.tag", tag),
	))
	c.logger.Debug().Str("tag", tag).Int("removed", n).Msg("cache tag invalidated")
	return n, nil
}

// Ping delegates to the wrapped store when it supports health checks.
func (c *Instrumented) Ping(ctx context.Context) error {
	if p, ok := c.next.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (c *Instrumented) fail(ctx context.Context, op, key string, err error) {
	c.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.backend", c.backend),
		attribute.String("cache.operation", op),
	))
	c.logger.Warn().Err(err).Str("operation", op).Str("key", key).Msg("cache backend error")
}

func (c *Instrumented) attrs() metric.AddOption {
	return metric.WithAttributes(attribute.String("cache.backend", c.backend))
}
