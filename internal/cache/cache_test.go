package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"lounge_back_end/internal/models"
	"lounge_back_end/internal/store"
	"lounge_back_end/internal/store/memory"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// countingStore records how often the product list reaches the backing store.
type countingStore struct {
	store.ProductStore
	lists int
	gets  int
}

func (c *countingStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	c.lists++
	return c.ProductStore.ListProducts(ctx)
}

func (c *countingStore) GetProduct(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	c.gets++
	return c.ProductStore.GetProduct(ctx, id)
}

func TestProductListIsCachedUntilWrite(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	backing := &countingStore{ProductStore: memory.New()}
	pc := NewProductCache(backing, rdb, zerolog.Nop())

	_, err := pc.CreateProduct(ctx, models.Product{Name: "LD01", Price: 2999, Image: "./images/1.png"})
	require.NoError(t, err)

	first, err := pc.ListProducts(ctx)
	require.NoError(t, err)
	second, err := pc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, backing.lists)
	assert.True(t, mr.Exists(ProductListKey))
	assert.InDelta(t, ProductListTTL.Seconds(), mr.TTL(ProductListKey).Seconds(), 1)

	_, err = pc.CreateProduct(ctx, models.Product{Name: "LD02", Price: 3499, Image: "./images/2.png"})
	require.NoError(t, err)
	assert.False(t, mr.Exists(ProductListKey))

	list, err := pc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 2, backing.lists)
}

func TestProductEntryInvalidatedOnUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	backing := &countingStore{ProductStore: memory.New()}
	pc := NewProductCache(backing, rdb, zerolog.Nop())

	p, err := pc.CreateProduct(ctx, models.Product{Name: "LD03", Price: 4299, Image: "i"})
	require.NoError(t, err)

	_, err = pc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	_, err = pc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, backing.gets)

	updated, err := pc.UpdateProduct(ctx, p.ID, store.ProductUpdate{Name: "LD03", Price: 4000, Image: "i"})
	require.NoError(t, err)
	assert.False(t, mr.Exists(ProductKey(p.ID)))

	got, err := pc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Price, got.Price)

	require.NoError(t, pc.DeleteProduct(ctx, p.ID))
	_, err = pc.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeletedProductStaleEntryIsDroppedAgain(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	pc := NewProductCache(memory.New(), rdb, zerolog.Nop())
	pc.redelete = 20 * time.Millisecond

	p, err := pc.CreateProduct(ctx, models.Product{Name: "LD04", Price: 2999, Image: "i"})
	require.NoError(t, err)
	require.NoError(t, pc.DeleteProduct(ctx, p.ID))

	// A reader that loaded the product before the delete writes it back
	// after the first invalidation.
	stale, err := json.Marshal(p)
	require.NoError(t, err)
	require.NoError(t, mr.Set(ProductKey(p.ID), string(stale)))

	require.Eventually(t, func() bool { return !mr.Exists(ProductKey(p.ID)) }, time.Second, 5*time.Millisecond)
	_, err = pc.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProductCacheFallsThroughWhenRedisDown(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	pc := NewProductCache(memory.New(), rdb, zerolog.Nop())

	_, err := pc.CreateProduct(ctx, models.Product{Name: "LD04", Price: 2999, Image: "i"})
	require.NoError(t, err)

	mr.Close()

	list, err := pc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestProductCacheWithoutRedis(t *testing.T) {
	ctx := context.Background()
	pc := NewProductCache(memory.New(), nil, zerolog.Nop())

	_, err := pc.CreateProduct(ctx, models.Product{Name: "LD05", Price: 4999, Image: "i"})
	require.NoError(t, err)
	list, err := pc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	pc.InvalidateAll(ctx)
}

func TestInvalidateAll(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	pc := NewProductCache(memory.New(), rdb, zerolog.Nop())

	p, err := pc.CreateProduct(ctx, models.Product{Name: "LD06", Price: 3499, Image: "i"})
	require.NoError(t, err)
	_, _ = pc.ListProducts(ctx)
	_, _ = pc.GetProduct(ctx, p.ID)
	require.True(t, mr.Exists(ProductKey(p.ID)))

	pc.InvalidateAll(ctx)

	assert.False(t, mr.Exists(ProductListKey))
	assert.False(t, mr.Exists(ProductKey(p.ID)))
}

func TestCartEventsRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)
	events := NewCartEvents(rdb)

	ps, err := events.Subscribe(ctx, "u1")
	require.NoError(t, err)
	defer ps.Close()

	require.NoError(t, events.Publish(ctx, "u1", CartUpdated))

	select {
	case msg := <-ps.Channel():
		assert.Equal(t, "cart:u1", msg.Channel)
		assert.Equal(t, CartUpdated, msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no cart event received")
	}
}

func TestCartEventsWithoutRedis(t *testing.T) {
	events := NewCartEvents(nil)
	assert.NoError(t, events.Publish(context.Background(), "u1", CartCleared))

	_, err := events.Subscribe(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNoRedis)
}

func TestIncrementRateLimit(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)

	for i := int64(1); i <= 3; i++ {
		n, err := IncrementRateLimit(ctx, rdb, "cart_ops:u1", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	assert.Equal(t, time.Minute, mr.TTL("cart_ops:u1"))

	mr.FastForward(time.Minute + time.Second)
	n, err := IncrementRateLimit(ctx, rdb, "cart_ops:u1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
