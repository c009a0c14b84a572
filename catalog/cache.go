package catalog

import (
	"context"
	"time"

	"github.com/gutsdata/explorer_backend/config"
)

// Cache keeps recently served catalog documents, keyed by dataset name.
type Cache interface {
	Get(ctx context.Context, dataset string) ([]byte, bool)
	Set(ctx context.Context, dataset string, data []byte)
	Invalidate(ctx context.Context, datasets ...string)
}

const cacheKeyPrefix = "catalog:"

// RedisCache stores documents in the shared redis. Until redis is connected
// every lookup misses and writes are dropped.
type RedisCache struct {
	ttl time.Duration
}

func NewRedisCache() *RedisCache {
	return &RedisCache{ttl: time.Duration(config.EnvInt("CATALOG_CACHE_SECONDS", 300)) * time.Second}
}

func (c *RedisCache) Get(ctx context.Context, dataset string) ([]byte, bool) {
	val, ok, err := config.GetRedisValue(ctx, cacheKeyPrefix+dataset)
	if err != nil || !ok {
		return nil, false
	}
	return []byte(val), true
}

func (c *RedisCache) Set(ctx context.Context, dataset string, data []byte) {
	if err := config.SetRedisValue(ctx, cacheKeyPrefix+dataset, string(data), c.ttl); err != nil {
		config.GetLogger().WithField("dataset", dataset).Warn("catalog cache write failed: " + err.Error())
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, datasets ...string) {
	keys := make([]string, 0, len(datasets))
	for _, ds := range datasets {
		keys = append(keys, cacheKeyPrefix+ds)
	}
	if err := config.RemoveRedisKey(ctx, keys...); err != nil {
		config.GetLogger().WithField("datasets", datasets).Warn("catalog cache invalidation failed: " + err.Error())
	}
}
