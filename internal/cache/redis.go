package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// --- Cart events (Pub/Sub) ---

const (
	CartUpdated = "updated"
	CartCleared = "cleared"
)

var ErrNoRedis = errors.New("redis not configured")

func CartChannel(userID string) string { return "cart:" + userID }

// CartEvents fans cart change notifications out to connected clients. A nil
// client turns Publish into a no-op and Subscribe into ErrNoRedis.
type CartEvents struct {
	rdb *redis.Client
}

func NewCartEvents(rdb *redis.Client) *CartEvents {
	return &CartEvents{rdb: rdb}
}

func (e *CartEvents) Publish(ctx context.Context, userID, event string) error {
	if e == nil || e.rdb == nil {
		return nil
	}
	return e.rdb.Publish(ctx, CartChannel(userID), event).Err()
}

// Subscribe returns a live subscription on the user's cart channel. The
// caller must Close it.
func (e *CartEvents) Subscribe(ctx context.Context, userID string) (*redis.PubSub, error) {
	if e == nil || e.rdb == nil {
		return nil, ErrNoRedis
	}
	ps := e.rdb.Subscribe(ctx, CartChannel(userID))
	// Wait for the subscription confirmation so no event published right
	// after this call is missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", CartChannel(userID), err)
	}
	return ps, nil
}

// --- Rate limiting ---

// IncrementRateLimit bumps the counter at key and returns its new value. The
// window starts with the first hit.
func IncrementRateLimit(ctx context.Context, rdb *redis.Client, key string, window time.Duration) (int64, error) {
	n, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}
