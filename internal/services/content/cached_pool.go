package content

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/hopeana/dispatcher/internal/models"
)

// PoolCacheKey is the cache key of the active content pool.
const PoolCacheKey = "content:active"

type poolSource interface {
	ListActive(ctx context.Context) ([]models.ContentItem, error)
}

type cacheClient[T any] interface {
	Set(ctx context.Context, key string, value T) error
	Get(ctx context.Context, key string) (T, error)
}

// CachedPool serves the active content pool from a cache, falling back to
// the inner source on a miss.
type CachedPool struct {
	inner  poolSource
	cache  cacheClient[[]models.ContentItem]
	logger zerolog.Logger
}

func NewCachedPool(
	inner poolSource,
	cache cacheClient[[]models.ContentItem],
	logger zerolog.Logger,
) *CachedPool {
	logger = logger.With().Str("component", "CachedPool").Logger()
	return &CachedPool{inner: inner, cache: cache, logger: logger}
}

func (p *CachedPool) ListActive(ctx context.Context) ([]models.ContentItem, error) {
	items, err := p.cache.Get(ctx, PoolCacheKey)
	if err == nil && len(items) > 0 {
		p.logger.Debug().Ctx(ctx).Int("count", len(items)).Msg("content pool cache hit")
		return items, nil
	}
	p.logger.Debug().Ctx(ctx).Err(err).Msg("content pool cache miss")

	items, err = p.inner.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	// an empty pool is not cached so that seeding takes effect immediately
	if len(items) == 0 {
		return items, nil
	}
	if err := p.cache.Set(ctx, PoolCacheKey, items); err != nil {
		p.logger.Error().Ctx(ctx).Err(err).Msg("content pool cache set failed")
	}
	return items, nil
}
