package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"lounge_back_end/internal/models"
	"lounge_back_end/internal/store"
)

const (
	ProductListKey  = "products:all"
	ProductListTTL  = time.Hour
	ProductCacheTTL = 10 * time.Minute

	// ProductRedeleteDelay is how long after a write its keys are dropped a
	// second time, catching readers that loaded the old value before the
	// write and stored it after the first delete.
	ProductRedeleteDelay = 500 * time.Millisecond

	redeleteTimeout = 2 * time.Second
)

func ProductKey(id primitive.ObjectID) string { return "product:" + id.Hex() }

// ProductCache is a read-through Redis cache in front of a ProductStore.
// Writes go straight to the store and drop the affected keys. Redis failures
// are logged and the store answers instead.
type ProductCache struct {
	next     store.ProductStore
	rdb      *redis.Client
	log      zerolog.Logger
	redelete time.Duration
}

var _ store.ProductStore = (*ProductCache)(nil)

func NewProductCache(next store.ProductStore, rdb *redis.Client, log zerolog.Logger) *ProductCache {
	return &ProductCache{next: next, rdb: rdb, log: log, redelete: ProductRedeleteDelay}
}

func (c *ProductCache) ListProducts(ctx context.Context) ([]models.Product, error) {
	var cached []models.Product
	if c.get(ctx, ProductListKey, &cached) {
		return cached, nil
	}

	products, err := c.next.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, ProductListKey, products, ProductListTTL)
	return products, nil
}

func (c *ProductCache) GetProduct(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	key := ProductKey(id)

	var cached models.Product
	if c.get(ctx, key, &cached) {
		return cached, nil
	}

	p, err := c.next.GetProduct(ctx, id)
	if err != nil {
		return models.Product{}, err
	}
	c.set(ctx, key, p, ProductCacheTTL)
	return p, nil
}

func (c *ProductCache) CreateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	created, err := c.next.CreateProduct(ctx, p)
	if err != nil {
		return models.Product{}, err
	}
	c.invalidateAfterWrite(ctx, ProductListKey)
	return created, nil
}

func (c *ProductCache) UpdateProduct(ctx context.Context, id primitive.ObjectID, upd store.ProductUpdate) (models.Product, error) {
	p, err := c.next.UpdateProduct(ctx, id, upd)
	if err != nil {
		return models.Product{}, err
	}
	c.invalidateAfterWrite(ctx, ProductListKey, ProductKey(id))
	return p, nil
}

func (c *ProductCache) DeleteProduct(ctx context.Context, id primitive.ObjectID) error {
	if err := c.next.DeleteProduct(ctx, id); err != nil {
		return err
	}
	c.invalidateAfterWrite(ctx, ProductListKey, ProductKey(id))
	return nil
}

// InvalidateAll drops every cached product entry. Used after bulk writes
// that bypass the cache, such as seeding.
func (c *ProductCache) InvalidateAll(ctx context.Context) {
	if c.rdb == nil {
		return
	}
	keys := []string{ProductListKey}
	iter := c.rdb.Scan(ctx, 0, "product:*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.log.Warn().Err(err).Msg("product cache scan failed")
	}
	c.invalidate(ctx, keys...)
}

func (c *ProductCache) get(ctx context.Context, key string, dst any) bool {
	if c.rdb == nil {
		return false
	}
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Str("key", key).Msg("product cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(val, dst); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("product cache entry corrupt")
		return false
	}
	return true
}

func (c *ProductCache) set(ctx context.Context, key string, v any, ttl time.Duration) {
	if c.rdb == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("product cache write failed")
	}
}

func (c *ProductCache) invalidate(ctx context.Context, keys ...string) {
	if c.rdb == nil || len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn().Err(err).Strs("keys", keys).Msg("product cache invalidation failed")
	}
}

// invalidateAfterWrite drops keys now and once more after c.redelete.
func (c *ProductCache) invalidateAfterWrite(ctx context.Context, keys ...string) {
	c.invalidate(ctx, keys...)
	if c.rdb == nil || c.redelete <= 0 {
		return
	}
	base := context.WithoutCancel(ctx)
	time.AfterFunc(c.redelete, func() {
		ctx, cancel := context.WithTimeout(base, redeleteTimeout)
		defer cancel()
		c.invalidate(ctx, keys...)
	})
}
