package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"lounge_back_end/internal/cache"
	"lounge_back_end/internal/models"
	"lounge_back_end/internal/store"
)

const (
	msgCartNotFound = "Cart not found"
	msgCartConflict = "Cart was modified concurrently, please retry"

	defaultMaxRetries  = 10
	resolveConcurrency = 8
)

// EventPublisher is told about every committed cart write.
type EventPublisher interface {
	Publish(ctx context.Context, userID, event string) error
}

type CartOptions struct {
	// MaxRetries bounds the compare-and-swap loop of a single mutation.
	MaxRetries int
	Events     EventPublisher
	Logger     zerolog.Logger
}

type CartService struct {
	products   store.ProductStore
	carts      store.CartStore
	events     EventPublisher
	maxRetries int
	log        zerolog.Logger
}

func NewCartService(products store.ProductStore, carts store.CartStore, opts CartOptions) *CartService {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	return &CartService{
		products:   products,
		carts:      carts,
		events:     opts.Events,
		maxRetries: opts.MaxRetries,
		log:        opts.Logger,
	}
}

// GetCart returns the user's cart, creating an empty one on first access.
func (s *CartService) GetCart(ctx context.Context, userID string) (models.ResolvedCart, error) {
	cart, err := s.carts.GetOrCreateCart(ctx, userID)
	if err != nil {
		return models.ResolvedCart{}, persistenceError("load cart", err)
	}
	return s.Resolve(ctx, cart)
}

func (s *CartService) AddToCart(ctx context.Context, userID, productID string) (models.ResolvedCart, error) {
	pid, ok := parseID(productID)
	if !ok {
		return models.ResolvedCart{}, notFoundError(msgProductNotFound)
	}
	if _, err := s.products.GetProduct(ctx, pid); err != nil {
		return models.ResolvedCart{}, productErr("get product", err)
	}

	cart, err := s.carts.GetOrCreateCart(ctx, userID)
	if err != nil {
		return models.ResolvedCart{}, persistenceError("load cart", err)
	}

	cart, err = s.mutate(ctx, userID, cart, cache.CartUpdated, func(c *models.Cart) bool {
		if i := c.Line(pid); i >= 0 {
			c.Lines[i].Quantity++
		} else {
			c.Lines = append(c.Lines, models.CartLine{ProductID: pid, Quantity: 1})
		}
		return true
	})
	if err != nil {
		return models.ResolvedCart{}, err
	}
	return s.Resolve(ctx, cart)
}

// SetQuantity replaces the quantity of an existing line. Zero removes the
// line, a negative quantity changes nothing, and a product that is not in
// the cart is never added.
func (s *CartService) SetQuantity(ctx context.Context, userID, productID string, quantity int) (models.ResolvedCart, error) {
	cart, err := s.carts.FindCart(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.ResolvedCart{}, notFoundError(msgCartNotFound)
		}
		return models.ResolvedCart{}, persistenceError("load cart", err)
	}

	pid, ok := parseID(productID)
	if quantity < 0 || !ok {
		return s.Resolve(ctx, cart)
	}

	cart, err = s.mutate(ctx, userID, cart, cache.CartUpdated, func(c *models.Cart) bool {
		i := c.Line(pid)
		if i < 0 {
			return false
		}
		if quantity == 0 {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return true
		}
		if c.Lines[i].Quantity == quantity {
			return false
		}
		c.Lines[i].Quantity = quantity
		return true
	})
	if err != nil {
		return models.ResolvedCart{}, err
	}
	return s.Resolve(ctx, cart)
}

// mutate applies fn to a private copy of the cart and stores the result with
// a revision check. On a stale revision the cart is reloaded and fn runs
// again. fn reports whether it changed anything; an unchanged cart is not
// written. event, when set, is published once the write lands.
func (s *CartService) mutate(ctx context.Context, userID string, cart models.Cart, event string, fn func(*models.Cart) bool) (models.Cart, error) {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		next := cart
		next.Lines = append([]models.CartLine{}, cart.Lines...)
		if !fn(&next) {
			return cart, nil
		}

		saved, err := s.carts.ReplaceLines(ctx, userID, cart.Revision, next.Lines)
		switch {
		case err == nil:
			if event != "" {
				s.publish(ctx, userID, event)
			}
			return saved, nil
		case errors.Is(err, store.ErrRevisionMismatch):
			s.log.Debug().Str("user_id", userID).Int("attempt", attempt+1).Msg("cart revision moved, retrying")
		case errors.Is(err, store.ErrNotFound):
			return models.Cart{}, notFoundError(msgCartNotFound)
		default:
			return models.Cart{}, persistenceError("save cart", err)
		}

		cart, err = s.carts.FindCart(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return models.Cart{}, notFoundError(msgCartNotFound)
			}
			return models.Cart{}, persistenceError("reload cart", err)
		}
	}
	s.log.Warn().Str("user_id", userID).Int("retries", s.maxRetries).Msg("cart write gave up after repeated conflicts")
	return models.Cart{}, &Error{Kind: ErrConflict, Message: msgCartConflict}
}

// clearOrdered empties the cart after checkout. When the cart has moved on
// since snapshot was taken, only the snapshot quantities are taken out so
// items added in the meantime stay in the cart. It publishes nothing and
// reports whether a write happened.
func (s *CartService) clearOrdered(ctx context.Context, userID string, snapshot models.Cart) (bool, error) {
	ordered := make(map[primitive.ObjectID]int, len(snapshot.Lines))
	for _, l := range snapshot.Lines {
		ordered[l.ProductID] += l.Quantity
	}

	wrote := false
	_, err := s.mutate(ctx, userID, snapshot, "", func(c *models.Cart) bool {
		wrote = false
		if len(c.Lines) == 0 {
			return false
		}
		if c.Revision == snapshot.Revision {
			c.Lines = []models.CartLine{}
			wrote = true
			return true
		}
		changed := false
		kept := make([]models.CartLine, 0, len(c.Lines))
		for _, l := range c.Lines {
			if n := ordered[l.ProductID]; n > 0 {
				l.Quantity -= n
				changed = true
			}
			if l.Quantity > 0 {
				kept = append(kept, l)
			}
		}
		c.Lines = kept
		wrote = changed
		return changed
	})
	if err != nil {
		return false, err
	}
	return wrote, nil
}

// Resolve joins every line with the live product. Lines whose product is
// gone, or has no name or price, are left out of the view only.
func (s *CartService) Resolve(ctx context.Context, cart models.Cart) (models.ResolvedCart, error) {
	return s.resolve(ctx, cart, resolveConcurrency)
}

// resolve is Resolve with at most limit product lookups in flight.
func (s *CartService) resolve(ctx context.Context, cart models.Cart, limit int) (models.ResolvedCart, error) {
	found := make([]*models.Product, len(cart.Lines))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, line := range cart.Lines {
		g.Go(func() error {
			p, err := s.products.GetProduct(gctx, line.ProductID)
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			found[i] = &p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.ResolvedCart{}, persistenceError("resolve cart", err)
	}

	view := models.ResolvedCart{
		ID:       cart.ID,
		UserID:   cart.UserID,
		Lines:    []models.ResolvedLine{},
		Revision: cart.Revision,
	}
	for i, line := range cart.Lines {
		p := found[i]
		if p == nil || p.Name == "" || p.Price <= 0 {
			continue
		}
		view.Lines = append(view.Lines, models.ResolvedLine{
			Product: models.ProductSnapshot{
				ID:    p.ID,
				Name:  p.Name,
				Price: p.Price,
				Image: p.Image,
			},
			Quantity: line.Quantity,
		})
		view.Subtotal += p.Price * int64(line.Quantity)
	}
	return view, nil
}

func (s *CartService) publish(ctx context.Context, userID, event string) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, userID, event); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Str("event", event).Msg("cart event not published")
	}
}
