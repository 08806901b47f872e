package refdata

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"fanai-server/internal/infra"
)

const staleSuffix = "#stale"

// Cache is a time-bounded read-through cache for small reference datasets.
// Duplicate loads under a concurrent miss are acceptable: the datasets are
// tiny JSON documents and reloading them is cheap and idempotent, so no
// single-flight machinery sits here.
//
// Every successful load is kept twice: once under the caller's TTL and once
// without expiry. The second copy is the stale fallback handed out when a
// later reload fails.
type Cache struct {
	c      *gocache.Cache
	logger infra.Logger
}

// NewCache builds an empty Cache.
func NewCache(logger infra.Logger) *Cache {
	return &Cache{
		c:      gocache.New(gocache.NoExpiration, 10*time.Minute),
		logger: logger,
	}
}

// GetOrLoad returns the fresh cached value for key, or invokes loader and
// caches its result for ttl. When the loader fails it degrades in order:
// previous value if one was ever loaded, zero value otherwise. Callers must
// treat a zero result as "temporarily unavailable", not as authoritative
// emptiness.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, loader func(context.Context) (T, error)) T {
	if v, ok := c.c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed
		}
	}

	v, err := loader(ctx)
	if err == nil {
		c.c.Set(key, v, ttl)
		c.c.Set(key+staleSuffix, v, gocache.NoExpiration)
		return v
	}

	if prev, ok := c.c.Get(key + staleSuffix); ok {
		if typed, ok := prev.(T); ok {
			c.logger.Warn().Err(err).Str("key", key).Msg("refdata: loader failed, serving stale value")
			return typed
		}
	}

	c.logger.Warn().Err(err).Str("key", key).Msg("refdata: loader failed with no cached value")
	var zero T
	return zero
}

// Invalidate drops both the fresh and stale copies for key. Admin writes to
// a dataset call this so the next read observes the new revision.
func (c *Cache) Invalidate(key string) {
	c.c.Delete(key)
	c.c.Delete(key + staleSuffix)
}

// Flush drops every cached entry.
func (c *Cache) Flush() {
	c.c.Flush()
}

// Keys lists the currently cached dataset keys, stale copies excluded.
func (c *Cache) Keys() []string {
	var keys []string
	for k := range c.c.Items() {
		if len(k) > len(staleSuffix) && k[len(k)-len(staleSuffix):] == staleSuffix {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}
