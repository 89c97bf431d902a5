package user

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lounge_back_end/internal/cache"
	"lounge_back_end/internal/handlers"
	"lounge_back_end/internal/service"
)

type CartHandler struct {
	cart   *service.CartService
	events *cache.CartEvents
	// origins allowed to open the sync websocket; "*" or empty allows all
	origins []string
}

func NewCartHandler(cart *service.CartService, events *cache.CartEvents, origins []string) *CartHandler {
	return &CartHandler{cart: cart, events: events, origins: origins}
}

type addRequest struct {
	ProductID string `json:"productId"`
}

type updateRequest struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

// GET /api/cart/:userId
func (h *CartHandler) GetCart(c *gin.Context) {
	cart, err := h.cart.GetCart(c.Request.Context(), c.Param("userId"))
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// POST /api/cart/:userId/add
func (h *CartHandler) AddToCart(c *gin.Context) {
	var req addRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.BadRequest(c, "Invalid request body")
		return
	}

	cart, err := h.cart.AddToCart(c.Request.Context(), c.Param("userId"), req.ProductID)
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// PUT /api/cart/:userId/update
func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProductID == "" || req.Quantity == nil {
		handlers.BadRequest(c, "productId and quantity are required")
		return
	}

	cart, err := h.cart.SetQuantity(c.Request.Context(), c.Param("userId"), req.ProductID, *req.Quantity)
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}
