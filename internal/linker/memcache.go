// SPDX-License-Identifier: MIT

package linker

import (
	"context"
	"time"

	"github.com/visualaoi/aoid/internal/cache"
	"github.com/visualaoi/aoid/internal/metrics"
)

// MemCached decorates a Linker with the in-process TTL cache. Used when
// linking is configured but no Redis is available.
type MemCached struct {
	inner Linker
	store cache.Store
	ttl   time.Duration
}

// NewMemCached wraps inner with store.
func NewMemCached(inner Linker, store cache.Store, ttl time.Duration) *MemCached {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &MemCached{inner: inner, store: store, ttl: ttl}
}

func (c *MemCached) Link(ctx context.Context, barcode string) (string, error) {
	key := cacheKeyPrefix + barcode
	if linked, ok := c.store.Get(key); ok {
		metrics.IncLinkOutcome("cache_hit")
		return linked, nil
	}

	linked, err := c.inner.Link(ctx, barcode)
	if err != nil {
		return "", err
	}
	c.store.Set(key, linked, c.ttl)
	return linked, nil
}
