// api/util/cache_service.go

package util

import (
	"context"

	"github.com/veritas-grc/veritas/api/db"
)

// CacheService fronts the Redis-backed caches. A nil *CacheService is
// valid and disables caching, which is how tests and cache-less
// deployments run.
type CacheService struct{}

func NewCacheService() *CacheService {
	return &CacheService{}
}

func (c *CacheService) GetStats(ctx context.Context, windowDays int, dest interface{}) (bool, error) {
	if c == nil || db.RedisClient == nil {
		return false, nil
	}
	return db.GetCachedStats(ctx, windowDays, dest)
}

func (c *CacheService) SetStats(ctx context.Context, windowDays int, stats interface{}) error {
	if c == nil || db.RedisClient == nil {
		return nil
	}
	return db.CacheStats(ctx, windowDays, stats)
}

func (c *CacheService) InvalidateStats(ctx context.Context) error {
	if c == nil || db.RedisClient == nil {
		return nil
	}
	return db.InvalidateStats(ctx)
}
