// SPDX-License-Identifier: MIT

package linker

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/visualaoi/aoid/internal/log"
	"github.com/visualaoi/aoid/internal/metrics"
)

const cacheKeyPrefix = "aoi:link:"

// Cached decorates a Linker with a Redis lookaside cache. Cache
// failures degrade to the inner linker; they are never surfaced.
type Cached struct {
	inner  Linker
	rdb    *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCached wraps inner with a Redis cache.
func NewCached(inner Linker, rdb *redis.Client, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cached{
		inner:  inner,
		rdb:    rdb,
		ttl:    ttl,
		logger: log.WithComponent("linker"),
	}
}

func (c *Cached) Link(ctx context.Context, barcode string) (string, error) {
	key := cacheKeyPrefix + barcode

	cached, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil && cached != "":
		metrics.IncLinkOutcome("cache_hit")
		return cached, nil
	case err != nil && !errors.Is(err, redis.Nil):
		c.logger.Warn().Err(err).Str("event", "link.cache_error").Msg("link cache read failed")
	}

	linked, err := c.inner.Link(ctx, barcode)
	if err != nil {
		return "", err
	}

	if err := c.rdb.Set(ctx, key, linked, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("event", "link.cache_error").Msg("link cache write failed")
	}
	return linked, nil
}
