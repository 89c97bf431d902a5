package user

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"lounge_back_end/internal/cache"
	"lounge_back_end/internal/models"
)

const (
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

type cartMessage struct {
	Type string               `json:"type"`
	Cart *models.ResolvedCart `json:"cart,omitempty"`
}

func (h *CartHandler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(h.origins) == 0 {
				return true
			}
			for _, o := range h.origins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
	}
}

// CartWebSocket pushes the resolved cart to the client every time it
// changes. GET /api/cart/:userId/ws
func (h *CartHandler) CartWebSocket(c *gin.Context) {
	userID := c.Param("userId")
	log := zerolog.Ctx(c.Request.Context()).With().Str("user_id", userID).Logger()

	// Subscribe before the upgrade so a missing Redis can still be reported
	// as a plain HTTP error.
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	pubsub, err := h.events.Subscribe(ctx, userID)
	if errors.Is(err, cache.ErrNoRedis) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Cart sync is not available"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("cart subscription failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error: cart subscription failed"})
		return
	}
	defer pubsub.Close()

	up := h.upgrader()
	conn, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Reader: the client never sends anything useful, but reading is how a
	// close frame or a dropped connection is noticed.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.pushCart(ctx, conn, userID, "connected"); err != nil {
		return
	}

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg.Payload != cache.CartUpdated && msg.Payload != cache.CartCleared {
				continue
			}
			if err := h.pushCart(ctx, conn, userID, "cart_updated"); err != nil {
				log.Debug().Err(err).Msg("websocket closed")
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (h *CartHandler) pushCart(ctx context.Context, conn *websocket.Conn, userID, kind string) error {
	cart, err := h.cart.GetCart(ctx, userID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("cart reload for websocket failed")
		return nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(cartMessage{Type: kind, Cart: &cart})
}
