// Package store declares the persistence ports used by the service layer.
// Implementations live in mongostore (production) and memory (tests, local dev).
package store

import (
	"context"
	"errors"

	"lounge_back_end/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound         = errors.New("store: not found")
	ErrRevisionMismatch = errors.New("store: revision mismatch")
)

type ProductUpdate struct {
	Name  string
	Price int64
	Image string
	// nil leaves the stored description untouched
	Description *string
}

type ProductStore interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id primitive.ObjectID) (models.Product, error)
	CreateProduct(ctx context.Context, p models.Product) (models.Product, error)
	UpdateProduct(ctx context.Context, id primitive.ObjectID, upd ProductUpdate) (models.Product, error)
	DeleteProduct(ctx context.Context, id primitive.ObjectID) error
}

type CartStore interface {
	// GetOrCreateCart returns the user's cart, inserting an empty one when
	// none exists. Concurrent callers observe the same cart.
	GetOrCreateCart(ctx context.Context, userID string) (models.Cart, error)
	FindCart(ctx context.Context, userID string) (models.Cart, error)
	// ReplaceLines stores lines only if the cart is still at revision
	// expected, and returns the cart at its new revision. A stale revision
	// yields ErrRevisionMismatch.
	ReplaceLines(ctx context.Context, userID string, expected int64, lines []models.CartLine) (models.Cart, error)
}

type OrderStore interface {
	InsertOrder(ctx context.Context, o models.Order) (models.Order, error)
	ListOrders(ctx context.Context, userID string) ([]models.Order, error)
	GetOrder(ctx context.Context, userID string, id primitive.ObjectID) (models.Order, error)
}

// TxRunner runs fn as one unit of work. Backends without multi-document
// transactions simply call fn.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProductCatalog is a ProductStore that can also wipe all products; used by
// the seed command.
type ProductCatalog interface {
	ProductStore
	DeleteAllProducts(ctx context.Context) (int64, error)
}
