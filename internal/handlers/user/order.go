package user

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"lounge_back_end/internal/handlers"
	"lounge_back_end/internal/models"
	"lounge_back_end/internal/service"
)

type OrderHandler struct {
	orders *service.OrderService
}

func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// POST /api/orders/:userId
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req models.OrderRequest
	// An empty body is an order with no shipping or payment details.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		handlers.BadRequest(c, "Invalid order body")
		return
	}

	receipt, err := h.orders.CreateOrder(c.Request.Context(), c.Param("userId"), req)
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

// GET /api/orders/:userId
func (h *OrderHandler) ListOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context(), c.Param("userId"))
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GET /api/orders/:userId/:orderId
func (h *OrderHandler) GetOrder(c *gin.Context) {
	o, err := h.orders.GetOrder(c.Request.Context(), c.Param("userId"), c.Param("orderId"))
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}
