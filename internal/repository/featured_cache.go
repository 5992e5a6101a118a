package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/storefront-backend/internal/model"
)

// FeaturedKey is the Redis key holding the featured product list as JSON.
const FeaturedKey = "featured_products"

// ErrCacheMiss is returned by FeaturedCache.Get when nothing is cached.
var ErrCacheMiss = errors.New("cache miss")

// FeaturedCache is the cache half of the featured-products cache-aside
// read.  Readers fall back to ProductRepo on ErrCacheMiss and Set the
// result; every product write calls Set or Invalidate.
type FeaturedCache struct {
	RDB redis.Cmdable
	TTL time.Duration // zero keeps entries until the next write
}

func NewFeaturedCache(rdb redis.Cmdable, ttl time.Duration) *FeaturedCache {
	return &FeaturedCache{RDB: rdb, TTL: ttl}
}

func (c *FeaturedCache) Get(ctx context.Context) ([]model.Product, error) {
	bs, err := c.RDB.Get(ctx, FeaturedKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read featured cache: %w", err)
	}
	var out []model.Product
	if err := json.Unmarshal(bs, &out); err != nil {
		// A corrupt entry is a miss; the next Set overwrites it.
		return nil, ErrCacheMiss
	}
	return out, nil
}

func (c *FeaturedCache) Set(ctx context.Context, products []model.Product) error {
	bs, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("encode featured cache: %w", err)
	}
	if err := c.RDB.Set(ctx, FeaturedKey, bs, c.TTL).Err(); err != nil {
		return fmt.Errorf("write featured cache: %w", err)
	}
	return nil
}

func (c *FeaturedCache) Invalidate(ctx context.Context) error {
	if err := c.RDB.Del(ctx, FeaturedKey).Err(); err != nil {
		return fmt.Errorf("invalidate featured cache: %w", err)
	}
	return nil
}
