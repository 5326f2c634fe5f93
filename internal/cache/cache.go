// Package cache кэширует ответы Secure Access API (по умолчанию на час), как и
// исходный дашборд. Хранилище — Redis либо память процесса.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/secure-access-dashboard/internal/infra"
)

// Store — хранилище сырых значений кэша.
type Store interface {
	// Get возвращает значение и признак попадания.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Flush удаляет все ключи кэша дашборда.
	Flush(ctx context.Context) error
}

// Cache — read-through кэш поверх Store. Ошибки хранилища не ломают запрос:
// они логируются, а значение берется из источника.
type Cache struct {
	store   Store
	ttl     time.Duration
	metrics *infra.Metrics
	logger  *zap.Logger
}

func New(store Store, ttl time.Duration, metrics *infra.Metrics, logger *zap.Logger) *Cache {
	if metrics == nil {
		metrics = infra.NewMetrics(nil)
	}
	return &Cache{store: store, ttl: ttl, metrics: metrics, logger: logger.Named("cache")}
}

// Flush сбрасывает кэш целиком.
func (c *Cache) Flush(ctx context.Context) error {
	return c.store.Flush(ctx)
}

// Remember возвращает значение из кэша либо вызывает fn и кладет результат в кэш.
func Remember[T any](ctx context.Context, c *Cache, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	fullKey := infra.CacheKey(key)

	if raw, ok, err := c.store.Get(ctx, fullKey); err != nil {
		c.metrics.CacheLookups.WithLabelValues(key, "error").Inc()
		c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		var v T
		err := json.Unmarshal(raw, &v)
		if err == nil {
			c.metrics.CacheLookups.WithLabelValues(key, "hit").Inc()
			return v, nil
		}
		c.logger.Warn("cache entry is corrupted, refetching", zap.String("key", key), zap.Error(err))
	}
	c.metrics.CacheLookups.WithLabelValues(key, "miss").Inc()

	v, err := fn(ctx)
	if err != nil {
		return v, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return v, nil
	}
	if err := c.store.Set(ctx, fullKey, raw, c.ttl); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return v, nil
}
