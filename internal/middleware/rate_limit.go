package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"lounge_back_end/internal/cache"
)

const CartRateWindow = time.Minute

// CartRateLimit caps cart mutations per user (the :userId path parameter)
// at limit per minute. Without Redis, or with limit <= 0, it lets everything
// through. A Redis error also lets the request through.
func CartRateLimit(rdb *redis.Client, limit int, log zerolog.Logger) gin.HandlerFunc {
	if rdb == nil || limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		userID := c.Param("userId")
		if userID == "" {
			c.Next()
			return
		}

		count, err := cache.IncrementRateLimit(c.Request.Context(), rdb, "cart_ops:"+userID, CartRateWindow)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("cart rate limit unavailable")
			c.Next()
			return
		}

		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if count > int64(limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message":     "Too many cart updates, slow down a little",
				"retry_after": int(CartRateWindow.Seconds()),
			})
			return
		}
		c.Next()
	}
}
