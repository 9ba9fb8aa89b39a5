package sessioncache

import (
	"context"
	"encoding/json"
	"time"
)

// RedisForeignHostCache shares foreign-hostname entries across gateway
// instances the way RedisHubStore shares spoke registrations across
// pods: an in-process Cache is kept as a hot local view, while reads
// that miss locally fall through to the shared Redis copy. A nil
// client degrades to the plain in-process Cache with no cross-instance
// sharing.
type RedisForeignHostCache[T any] struct {
	local  *Cache[T]
	client RedisClient
	prefix string
	ttl    time.Duration
}

func NewRedisForeignHostCache[T any](client RedisClient, prefix string, ttl time.Duration) *RedisForeignHostCache[T] {
	if prefix == "" {
		prefix = "sandstorm:gateway:foreignhost:"
	}
	return &RedisForeignHostCache[T]{local: New[T](), client: client, prefix: prefix, ttl: ttl}
}

// Get consults the local cache first, then Redis if configured.
func (c *RedisForeignHostCache[T]) Get(ctx context.Context, hostname string) (T, bool) {
	if e, ok := c.local.Get(hostname); ok {
		return e.Value, true
	}
	var zero T
	if c.client == nil {
		return zero, false
	}
	data, err := c.client.Get(ctx, c.prefix+hostname)
	if err != nil || data == nil {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, false
	}
	c.local.Set(hostname, v, c.ttl)
	return v, true
}

// Set writes to both the local cache and, if configured, Redis so
// other gateway instances observe the same router reply.
func (c *RedisForeignHostCache[T]) Set(ctx context.Context, hostname string, value T) {
	c.local.Set(hostname, value, c.ttl)
	if c.client == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.prefix+hostname, data, c.ttl)
}

// NeedsRefresh delegates to the local cache's TTL/2 tracking; refresh
// in-flight state is intentionally per-instance, not shared, so two
// gateways may both refresh the same hostname rather than coordinate
// over Redis.
func (c *RedisForeignHostCache[T]) NeedsRefresh(hostname string) bool {
	return c.local.NeedsRefresh(hostname)
}

func (c *RedisForeignHostCache[T]) FinishRefresh(hostname string, newTTL time.Duration) {
	c.local.FinishRefresh(hostname, newTTL)
}

// Purge drops stale local entries; Redis entries expire via their own
// TTL set at Set time.
func (c *RedisForeignHostCache[T]) Purge(idleFor time.Duration) int {
	return c.local.Purge(idleFor)
}
