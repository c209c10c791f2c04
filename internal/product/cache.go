package product

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/MikeMC777/ecom-ledger/internal/metrics"
)

const keyPrefix = "product:"

// Cached wraps a Repository with a Redis cache-aside for single-product
// reads. Every write through it invalidates the product's key. Redis
// failures degrade to the underlying repository.
type Cached struct {
	Repository
	rdb   redis.Cmdable
	ttl   time.Duration
	group singleflight.Group
	log   *zap.Logger
}

func NewCached(repo Repository, rdb redis.Cmdable, ttl time.Duration, log *zap.Logger) *Cached {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cached{Repository: repo, rdb: rdb, ttl: ttl, log: log}
}

func cacheKey(id string) string { return keyPrefix + id }

func (c *Cached) GetByID(ctx context.Context, id string) (*Product, error) {
	key := cacheKey(id)
	if p, ok := c.lookup(ctx, key); ok {
		return p, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		p, err := c.Repository.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	cp := *v.(*Product)
	return &cp, nil
}

func (c *Cached) lookup(ctx context.Context, key string) (*Product, bool) {
	raw, err := c.rdb.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		metrics.ProductCache.WithLabelValues("miss").Inc()
		return nil, false
	case err != nil:
		metrics.ProductCache.WithLabelValues("error").Inc()
		c.log.Warn("product_cache_get_failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	var p Product
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		metrics.ProductCache.WithLabelValues("error").Inc()
		return nil, false
	}
	metrics.ProductCache.WithLabelValues("hit").Inc()
	return &p, true
}

func (c *Cached) store(ctx context.Context, key string, p *Product) {
	b, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, string(b), c.ttl).Err(); err != nil {
		c.log.Warn("product_cache_set_failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cached) invalidate(ctx context.Context, id string) {
	if err := c.rdb.Del(ctx, cacheKey(id)).Err(); err != nil {
		c.log.Warn("product_cache_invalidate_failed", zap.String("product_id", id), zap.Error(err))
	}
}

func (c *Cached) Update(ctx context.Context, id string, patch Patch) (*Product, error) {
	p, err := c.Repository.Update(ctx, id, patch)
	if err == nil {
		c.invalidate(ctx, id)
	}
	return p, err
}

func (c *Cached) SoftDelete(ctx context.Context, id string) (bool, error) {
	ok, err := c.Repository.SoftDelete(ctx, id)
	if ok {
		c.invalidate(ctx, id)
	}
	return ok, err
}

func (c *Cached) Restore(ctx context.Context, id string) (bool, error) {
	ok, err := c.Repository.Restore(ctx, id)
	if ok {
		c.invalidate(ctx, id)
	}
	return ok, err
}

func (c *Cached) PermanentDelete(ctx context.Context, id string) (bool, error) {
	ok, err := c.Repository.PermanentDelete(ctx, id)
	if ok {
		c.invalidate(ctx, id)
	}
	return ok, err
}

var _ Repository = (*Cached)(nil)
