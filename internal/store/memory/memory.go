// Package memory is an in-process implementation of the store ports. It
// honours the same revision semantics as the Mongo store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"lounge_back_end/internal/models"
	"lounge_back_end/internal/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Store struct {
	mu       sync.Mutex
	products map[primitive.ObjectID]models.Product
	order    []primitive.ObjectID
	carts    map[string]models.Cart
	orders   []models.Order
	now      func() time.Time
}

func New() *Store {
	return &Store{
		products: make(map[primitive.ObjectID]models.Product),
		carts:    make(map[string]models.Cart),
		now:      time.Now,
	}
}

// --- products ---

func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.products[id])
	}
	return out, nil
}

func (s *Store) GetProduct(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return models.Product{}, store.ErrNotFound
	}
	return p, nil
}

func (s *Store) CreateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = primitive.NewObjectID()
	s.products[p.ID] = p
	s.order = append(s.order, p.ID)
	return p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, id primitive.ObjectID, upd store.ProductUpdate) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return models.Product{}, store.ErrNotFound
	}
	p.Name = upd.Name
	p.Price = upd.Price
	p.Image = upd.Image
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	s.products[id] = p
	return p, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.products, id)
	for i, pid := range s.order {
		if pid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) DeleteAllProducts(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.products))
	s.products = make(map[primitive.ObjectID]models.Product)
	s.order = nil
	return n, nil
}

// --- carts ---

func (s *Store) GetOrCreateCart(ctx context.Context, userID string) (models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[userID]
	if !ok {
		c = models.Cart{ID: primitive.NewObjectID(), UserID: userID, Lines: []models.CartLine{}}
		s.carts[userID] = c
	}
	return copyCart(c), nil
}

func (s *Store) FindCart(ctx context.Context, userID string) (models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[userID]
	if !ok {
		return models.Cart{}, store.ErrNotFound
	}
	return copyCart(c), nil
}

func (s *Store) ReplaceLines(ctx context.Context, userID string, expected int64, lines []models.CartLine) (models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[userID]
	if !ok {
		return models.Cart{}, store.ErrNotFound
	}
	if c.Revision != expected {
		return models.Cart{}, store.ErrRevisionMismatch
	}
	c.Lines = append([]models.CartLine{}, lines...)
	c.Revision++
	s.carts[userID] = c
	return copyCart(c), nil
}

func copyCart(c models.Cart) models.Cart {
	c.Lines = append([]models.CartLine{}, c.Lines...)
	return c
}

// --- orders ---

func (s *Store) InsertOrder(ctx context.Context, o models.Order) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o.ID = primitive.NewObjectID()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	o.Lines = append([]models.OrderLine{}, o.Lines...)
	s.orders = append(s.orders, o)
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetOrder(ctx context.Context, userID string, id primitive.ObjectID) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.orders {
		if o.ID == id && o.UserID == userID {
			return o, nil
		}
	}
	return models.Order{}, store.ErrNotFound
}

// RunInTx has no rollback; callers order their writes so a failure never
// leaves a cleared cart without its order.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
