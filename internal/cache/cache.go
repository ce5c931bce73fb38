// Package cache provides a TTL response cache with get-or-compute semantics.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/MacJediWizard/licenseclient/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Backend stores encoded cache entries. Implementations must be safe for concurrent use
// and must treat expired entries as missing.
type Backend interface {
	// Get returns the stored value and whether a live entry was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value until ttl elapses.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes the entry if present.
	Delete(ctx context.Context, key string) error
}

// Key builds a cache key from a namespace, an operation name and its parameters.
func Key(namespace, operation string, params ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	b.WriteByte('-')
	b.WriteString(operation)
	for _, p := range params {
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}

// Cache is a typed view over a Backend. Values are stored as JSON. Concurrent misses
// for the same key share a single compute call.
type Cache[T any] struct {
	name    string
	backend Backend
	group   singleflight.Group
	logger  zerolog.Logger
	metrics *metrics.ClientMetrics
}

// New creates a cache named for logs and metrics.
func New[T any](name string, backend Backend, logger zerolog.Logger, m *metrics.ClientMetrics) *Cache[T] {
	return &Cache[T]{
		name:    name,
		backend: backend,
		logger:  logger.With().Str("component", "cache").Str("cache", name).Logger(),
		metrics: m,
	}
}

// Get returns the cached value for key. Backend failures are logged and reported as a miss.
func (c *Cache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T

	data, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		return zero, false
	}
	if !ok {
		return zero, false
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		_ = c.backend.Delete(ctx, key)
		return zero, false
	}
	return value, true
}

// Set stores value under key for ttl. A non-positive ttl stores nothing.
func (c *Cache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := c.backend.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("store cache entry: %w", err)
	}
	return nil
}

// GetOrCompute returns the cached value for key or calls fn to produce it. Only one fn
// runs per key at a time; concurrent callers wait for its result. Errors from fn are
// returned to every waiter and never cached. fn runs detached from the caller's
// cancellation so one waiter giving up does not fail the others.
func (c *Cache[T]) GetOrCompute(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if value, ok := c.Get(ctx, key); ok {
		c.metrics.RecordCacheLookup(c.name, true)
		return value, nil
	}
	c.metrics.RecordCacheLookup(c.name, false)

	ch := c.group.DoChan(key, func() (any, error) {
		computeCtx := context.WithoutCancel(ctx)

		// Another flight may have filled the entry between our miss and now.
		if value, ok := c.Get(computeCtx, key); ok {
			return value, nil
		}

		value, err := fn(computeCtx)
		if err != nil {
			return value, err
		}
		if err := c.Set(computeCtx, key, value, ttl); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
		return value, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Delete removes the entry for key.
func (c *Cache[T]) Delete(ctx context.Context, key string) error {
	return c.backend.Delete(ctx, key)
}
