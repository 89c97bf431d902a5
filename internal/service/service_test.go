package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"lounge_back_end/internal/models"
	"lounge_back_end/internal/store"
	"lounge_back_end/internal/store/memory"
)

func ptr[T any](v T) *T { return &v }

func chairInput(name string, price int64) models.ProductInput {
	return models.ProductInput{Name: ptr(name), Price: ptr(price), Image: ptr("x")}
}

func shipping() *models.ShippingAddress {
	return &models.ShippingAddress{
		FullName: "Ada Lovelace",
		Email:    "ada@example.com",
		Address:  "12 Analytical St",
		City:     "London",
		State:    "LDN",
		Pincode:  "10001",
		Phone:    "5550100",
	}
}

type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEvents) Publish(_ context.Context, userID, event string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, userID+":"+event)
	return nil
}

func (r *recordingEvents) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *memory.Store
	events  *recordingEvents
	catalog *CatalogService
	cart    *CartService
	orders  *OrderService
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	s.events = &recordingEvents{}
	s.catalog = NewCatalogService(s.store)
	s.cart = NewCartService(s.store, s.store, CartOptions{
		MaxRetries: 64,
		Events:     s.events,
		Logger:     zerolog.Nop(),
	})
	s.orders = NewOrderService(s.cart, s.store, s.store, s.store, OrderOptions{
		ShippingFee: 100,
		Logger:      zerolog.Nop(),
	})
}

func (s *ServiceSuite) product(name string, price int64) models.Product {
	p, err := s.catalog.CreateProduct(s.ctx, chairInput(name, price))
	s.Require().NoError(err)
	return p
}

func (s *ServiceSuite) checkout(userID string) models.OrderReceipt {
	receipt, err := s.orders.CreateOrder(s.ctx, userID, models.OrderRequest{
		ShippingAddress: shipping(),
		PaymentMethod:   "card",
		PaymentDetails:  models.PaymentDetails(`{"last4":"4242"}`),
	})
	s.Require().NoError(err)
	return receipt
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

// --- catalog ---

func (s *ServiceSuite) TestCreateProductValidation() {
	cases := map[string]struct {
		in  models.ProductInput
		msg string
	}{
		"missing name":  {models.ProductInput{Price: ptr(int64(10)), Image: ptr("x")}, msgProductRequired},
		"blank name":    {models.ProductInput{Name: ptr("  "), Price: ptr(int64(10)), Image: ptr("x")}, msgProductRequired},
		"missing price": {models.ProductInput{Name: ptr("a"), Image: ptr("x")}, msgProductRequired},
		"missing image": {models.ProductInput{Name: ptr("a"), Price: ptr(int64(10))}, msgProductRequired},
		"zero price":    {chairInput("a", 0), msgPricePositive},
		"negative":      {chairInput("a", -3), msgPricePositive},
	}
	for name, tc := range cases {
		s.Run(name, func() {
			_, err := s.catalog.CreateProduct(s.ctx, tc.in)
			s.ErrorIs(err, ErrValidation)
			s.Equal(tc.msg, Message(err))
		})
	}
}

func (s *ServiceSuite) TestProductLifecycle() {
	p := s.product("Chair", 1000)

	got, err := s.catalog.GetProduct(s.ctx, p.ID.Hex())
	s.Require().NoError(err)
	s.Equal("Chair", got.Name)

	updated, err := s.catalog.UpdateProduct(s.ctx, p.ID.Hex(), chairInput("Chair", 1500))
	s.Require().NoError(err)
	s.Equal(int64(1500), updated.Price)

	_, err = s.catalog.UpdateProduct(s.ctx, p.ID.Hex(), chairInput("", 1500))
	s.ErrorIs(err, ErrValidation)

	s.Require().NoError(s.catalog.DeleteProduct(s.ctx, p.ID.Hex()))
	s.ErrorIs(s.catalog.DeleteProduct(s.ctx, p.ID.Hex()), ErrNotFound)

	_, err = s.catalog.UpdateProduct(s.ctx, p.ID.Hex(), chairInput("Chair", 1500))
	s.ErrorIs(err, ErrNotFound)
	s.Equal(msgProductNotFound, Message(err))
}

func (s *ServiceSuite) TestMalformedIDsAreNotFound() {
	_, err := s.catalog.GetProduct(s.ctx, "not-an-id")
	s.ErrorIs(err, ErrNotFound)
	s.ErrorIs(s.catalog.DeleteProduct(s.ctx, "123"), ErrNotFound)
	_, err = s.cart.AddToCart(s.ctx, "u1", "zzz")
	s.ErrorIs(err, ErrNotFound)
	_, err = s.orders.GetOrder(s.ctx, "u1", "nope")
	s.ErrorIs(err, ErrNotFound)
}

// --- cart ---

func (s *ServiceSuite) TestGetCartCreatesEmptyCart() {
	c, err := s.cart.GetCart(s.ctx, "fresh")
	s.Require().NoError(err)
	s.Equal("fresh", c.UserID)
	s.NotNil(c.Lines)
	s.Empty(c.Lines)
	s.Zero(c.Subtotal)

	again, err := s.cart.GetCart(s.ctx, "fresh")
	s.Require().NoError(err)
	s.Equal(c.ID, again.ID)
}

func (s *ServiceSuite) TestAddTwiceYieldsOneLineWithQuantityTwo() {
	p := s.product("Chair", 1000)

	_, err := s.cart.AddToCart(s.ctx, "u1", p.ID.Hex())
	s.Require().NoError(err)
	c, err := s.cart.AddToCart(s.ctx, "u1", p.ID.Hex())
	s.Require().NoError(err)

	s.Require().Len(c.Lines, 1)
	s.Equal(2, c.Lines[0].Quantity)
	s.Equal(p.ID, c.Lines[0].Product.ID)
	s.Equal(int64(2000), c.Subtotal)
	s.Equal([]string{"u1:updated", "u1:updated"}, s.events.all())
}

func (s *ServiceSuite) TestAddUnknownProduct() {
	_, err := s.cart.AddToCart(s.ctx, "u1", primitive.NewObjectID().Hex())
	s.ErrorIs(err, ErrNotFound)
	s.Equal(msgProductNotFound, Message(err))
}

func (s *ServiceSuite) TestParallelAddsDoNotLoseUpdates() {
	p := s.product("Chair", 1000)

	const n = 16
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := s.cart.AddToCart(s.ctx, "racer", p.ID.Hex())
			return err
		})
	}
	s.Require().NoError(g.Wait())

	c, err := s.cart.GetCart(s.ctx, "racer")
	s.Require().NoError(err)
	s.Require().Len(c.Lines, 1)
	s.Equal(n, c.Lines[0].Quantity)
	s.Equal(int64(n), c.Revision)
}

func (s *ServiceSuite) TestSetQuantity() {
	p := s.product("Chair", 1000)
	other := s.product("Stool", 300)

	_, err := s.cart.SetQuantity(s.ctx, "u1", p.ID.Hex(), 3)
	s.ErrorIs(err, ErrNotFound, "cart does not exist yet")
	s.Equal(msgCartNotFound, Message(err))

	_, err = s.cart.AddToCart(s.ctx, "u1", p.ID.Hex())
	s.Require().NoError(err)

	c, err := s.cart.SetQuantity(s.ctx, "u1", p.ID.Hex(), 5)
	s.Require().NoError(err)
	s.Equal(5, c.Lines[0].Quantity)
	rev := c.Revision

	c, err = s.cart.SetQuantity(s.ctx, "u1", p.ID.Hex(), -1)
	s.Require().NoError(err)
	s.Equal(5, c.Lines[0].Quantity)
	s.Equal(rev, c.Revision, "negative quantity must not write")

	c, err = s.cart.SetQuantity(s.ctx, "u1", other.ID.Hex(), 4)
	s.Require().NoError(err)
	s.Len(c.Lines, 1, "absent lines are never created")

	c, err = s.cart.SetQuantity(s.ctx, "u1", other.ID.Hex(), 0)
	s.Require().NoError(err)
	s.Len(c.Lines, 1)

	c, err = s.cart.SetQuantity(s.ctx, "u1", p.ID.Hex(), 0)
	s.Require().NoError(err)
	s.Empty(c.Lines)
}

func (s *ServiceSuite) TestDeletedProductsAreFilteredOnRead() {
	keep := s.product("Chair", 1000)
	gone := s.product("Lamp", 500)

	_, err := s.cart.AddToCart(s.ctx, "u1", keep.ID.Hex())
	s.Require().NoError(err)
	_, err = s.cart.AddToCart(s.ctx, "u1", gone.ID.Hex())
	s.Require().NoError(err)

	s.Require().NoError(s.catalog.DeleteProduct(s.ctx, gone.ID.Hex()))

	c, err := s.cart.GetCart(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().Len(c.Lines, 1)
	s.Equal(keep.ID, c.Lines[0].Product.ID)
	s.Equal(int64(1000), c.Subtotal)

	raw, err := s.store.FindCart(s.ctx, "u1")
	s.Require().NoError(err)
	s.Len(raw.Lines, 2, "the stored cart keeps the dangling line")
}

// --- checkout ---

func (s *ServiceSuite) TestChairExample() {
	p := s.product("Chair", 1000)

	c, err := s.cart.AddToCart(s.ctx, "u1", p.ID.Hex())
	s.Require().NoError(err)
	s.Equal(1, c.Lines[0].Quantity)
	c, err = s.cart.AddToCart(s.ctx, "u1", p.ID.Hex())
	s.Require().NoError(err)
	s.Equal(2, c.Lines[0].Quantity)

	receipt := s.checkout("u1")
	s.Equal(int64(2100), receipt.Total)
	s.Equal(msgOrderPlaced, receipt.Message)
	s.False(receipt.Degraded)

	c, err = s.cart.GetCart(s.ctx, "u1")
	s.Require().NoError(err)
	s.Empty(c.Lines)
	s.Contains(s.events.all(), "u1:cleared")
}

func (s *ServiceSuite) TestOrderKeepsPriceSnapshot() {
	p := s.product("Chair", 1000)
	_, err := s.cart.AddToCart(s.ctx, "u1", p.ID.Hex())
	s.Require().NoError(err)

	receipt := s.checkout("u1")

	_, err = s.catalog.UpdateProduct(s.ctx, p.ID.Hex(), chairInput("Chair", 9999))
	s.Require().NoError(err)

	o, err := s.orders.GetOrder(s.ctx, "u1", receipt.OrderID)
	s.Require().NoError(err)
	s.Require().Len(o.Lines, 1)
	s.Equal(int64(1000), o.Lines[0].Price)
	s.Equal("Chair", o.Lines[0].Name)
	s.Equal(int64(1100), o.Total)
	s.Equal(models.OrderStatusPending, o.Status)
	s.JSONEq(`{"last4":"4242"}`, string(o.PaymentDetails))
}

func (s *ServiceSuite) TestCheckoutOmitsDanglingLines() {
	keep := s.product("Chair", 1000)
	gone := s.product("Lamp", 500)
	_, _ = s.cart.AddToCart(s.ctx, "u1", keep.ID.Hex())
	_, _ = s.cart.AddToCart(s.ctx, "u1", gone.ID.Hex())
	s.Require().NoError(s.catalog.DeleteProduct(s.ctx, gone.ID.Hex()))

	receipt := s.checkout("u1")
	s.Equal(int64(1100), receipt.Total)

	o, err := s.orders.GetOrder(s.ctx, "u1", receipt.OrderID)
	s.Require().NoError(err)
	s.Len(o.Lines, 1)

	raw, err := s.store.FindCart(s.ctx, "u1")
	s.Require().NoError(err)
	s.Empty(raw.Lines, "checkout clears dangling lines too")
}

func (s *ServiceSuite) TestEmptyCartCheckoutChargesShippingOnly() {
	receipt := s.checkout("nobody-yet")
	s.Equal(int64(100), receipt.Total)

	orders, err := s.orders.ListOrders(s.ctx, "nobody-yet")
	s.Require().NoError(err)
	s.Len(orders, 1)
	s.Empty(orders[0].Lines)
}

func (s *ServiceSuite) TestCheckoutStoresRequestAsSent() {
	p := s.product("Chair", 1000)
	_, err := s.cart.AddToCart(s.ctx, "u1", p.ID.Hex())
	s.Require().NoError(err)

	receipt, err := s.orders.CreateOrder(s.ctx, "u1", models.OrderRequest{
		PaymentDetails: models.PaymentDetails(`{"note":"no address"}`),
	})
	s.Require().NoError(err)
	s.Equal(int64(1100), receipt.Total)

	o, err := s.orders.GetOrder(s.ctx, "u1", receipt.OrderID)
	s.Require().NoError(err)
	s.Empty(o.PaymentMethod)
	s.Equal(models.ShippingAddress{}, o.ShippingAddress)
	s.Len(o.Lines, 1)
}

func (s *ServiceSuite) TestIncompleteProductsAreFilteredOnRead() {
	keep := s.product("Chair", 1000)
	nameless, err := s.store.CreateProduct(s.ctx, models.Product{Price: 700, Image: "x"})
	s.Require().NoError(err)
	free, err := s.store.CreateProduct(s.ctx, models.Product{Name: "Sample", Price: 0, Image: "x"})
	s.Require().NoError(err)

	for _, id := range []primitive.ObjectID{keep.ID, nameless.ID, free.ID} {
		_, err := s.cart.AddToCart(s.ctx, "u1", id.Hex())
		s.Require().NoError(err)
	}

	c, err := s.cart.GetCart(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().Len(c.Lines, 1)
	s.Equal(keep.ID, c.Lines[0].Product.ID)
	s.Equal(int64(1000), c.Subtotal)

	receipt := s.checkout("u1")
	s.Equal(int64(1100), receipt.Total)
}

func (s *ServiceSuite) TestListOrdersNewestFirst() {
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.orders.now = func() time.Time { return clock }
	first := s.checkout("u1")
	clock = clock.Add(time.Minute)
	second := s.checkout("u1")

	orders, err := s.orders.ListOrders(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().Len(orders, 2)
	s.Equal(second.OrderID, orders[0].ID.Hex())
	s.Equal(first.OrderID, orders[1].ID.Hex())

	none, err := s.orders.ListOrders(s.ctx, "stranger")
	s.Require().NoError(err)
	s.NotNil(none)
	s.Empty(none)

	_, err = s.orders.GetOrder(s.ctx, "stranger", first.OrderID)
	s.ErrorIs(err, ErrNotFound)
}

// --- clear rule ---

func TestClearOrderedKeepsConcurrentAdditions(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	cart := NewCartService(st, st, CartOptions{Logger: zerolog.Nop()})
	catalog := NewCatalogService(st)

	chair, err := catalog.CreateProduct(ctx, chairInput("Chair", 1000))
	require.NoError(t, err)
	lamp, err := catalog.CreateProduct(ctx, chairInput("Lamp", 200))
	require.NoError(t, err)

	_, err = cart.AddToCart(ctx, "u1", chair.ID.Hex())
	require.NoError(t, err)
	snapshot, err := st.FindCart(ctx, "u1")
	require.NoError(t, err)

	// Another request lands between the snapshot and the clear.
	_, err = cart.AddToCart(ctx, "u1", chair.ID.Hex())
	require.NoError(t, err)
	_, err = cart.AddToCart(ctx, "u1", lamp.ID.Hex())
	require.NoError(t, err)

	wrote, err := cart.clearOrdered(ctx, "u1", snapshot)
	require.NoError(t, err)
	assert.True(t, wrote)

	after, err := st.FindCart(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, after.Lines, 2)
	assert.Equal(t, chair.ID, after.Lines[0].ProductID)
	assert.Equal(t, 1, after.Lines[0].Quantity)
	assert.Equal(t, lamp.ID, after.Lines[1].ProductID)
	assert.Equal(t, 1, after.Lines[1].Quantity)
}

// --- failure policy ---

type failingOrders struct {
	store.OrderStore
}

func (failingOrders) InsertOrder(context.Context, models.Order) (models.Order, error) {
	return models.Order{}, errors.New("connection reset")
}

func newFailingCheckout(fallback bool) (*OrderService, *memory.Store) {
	st := memory.New()
	cart := NewCartService(st, st, CartOptions{Logger: zerolog.Nop()})
	svc := NewOrderService(cart, st, failingOrders{st}, st, OrderOptions{
		ShippingFee: 100,
		Fallback:    fallback,
		Logger:      zerolog.Nop(),
		Now:         func() time.Time { return time.UnixMilli(1700000000000) },
	})
	return svc, st
}

func TestCheckoutSurfacesPersistenceErrors(t *testing.T) {
	svc, st := newFailingCheckout(false)
	ctx := context.Background()

	p, err := NewCatalogService(st).CreateProduct(ctx, chairInput("Chair", 1000))
	require.NoError(t, err)
	_, err = svc.cart.AddToCart(ctx, "u1", p.ID.Hex())
	require.NoError(t, err)

	_, err = svc.CreateOrder(ctx, "u1", models.OrderRequest{ShippingAddress: shipping(), PaymentMethod: "card"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.True(t, strings.HasPrefix(Message(err), "Server error"))

	c, err := st.FindCart(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, c.Lines, 1, "cart must survive a failed order insert")
}

func TestCheckoutFallbackReceipt(t *testing.T) {
	svc, _ := newFailingCheckout(true)

	receipt, err := svc.CreateOrder(context.Background(), "u1", models.OrderRequest{ShippingAddress: shipping(), PaymentMethod: "card"})
	require.NoError(t, err)
	assert.Equal(t, "ORD1700000000000", receipt.OrderID)
	assert.Equal(t, int64(3099), receipt.Total)
	assert.True(t, receipt.Degraded)
	assert.Equal(t, msgOrderPlaced, receipt.Message)

	receipt, err = svc.CreateOrder(context.Background(), "u1", models.OrderRequest{})
	require.NoError(t, err)
	assert.True(t, receipt.Degraded)
}

// --- transactions ---

type abortingTx struct{}

func (abortingTx) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		return err
	}
	return errors.New("transaction aborted on commit")
}

func TestCheckoutPublishesClearOnlyAfterCommit(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	events := &recordingEvents{}
	cart := NewCartService(st, st, CartOptions{Events: events, Logger: zerolog.Nop()})
	p, err := NewCatalogService(st).CreateProduct(ctx, chairInput("Chair", 1000))
	require.NoError(t, err)
	_, err = cart.AddToCart(ctx, "u1", p.ID.Hex())
	require.NoError(t, err)

	aborted := NewOrderService(cart, st, st, abortingTx{}, OrderOptions{ShippingFee: 100, Logger: zerolog.Nop()})
	_, err = aborted.CreateOrder(ctx, "u1", models.OrderRequest{ShippingAddress: shipping(), PaymentMethod: "card"})
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, []string{"u1:updated"}, events.all())

	_, err = cart.AddToCart(ctx, "u1", p.ID.Hex())
	require.NoError(t, err)
	committed := NewOrderService(cart, st, st, st, OrderOptions{ShippingFee: 100, Logger: zerolog.Nop()})
	_, err = committed.CreateOrder(ctx, "u1", models.OrderRequest{ShippingAddress: shipping(), PaymentMethod: "card"})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1:updated", "u1:updated", "u1:cleared"}, events.all())
}

// inFlightProducts records the most GetProduct calls seen running at once.
type inFlightProducts struct {
	store.ProductStore
	mu      sync.Mutex
	current int
	max     int
}

func (p *inFlightProducts) GetProduct(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	p.mu.Lock()
	p.current++
	if p.current > p.max {
		p.max = p.current
	}
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.current--
		p.mu.Unlock()
	}()
	time.Sleep(5 * time.Millisecond)
	return p.ProductStore.GetProduct(ctx, id)
}

func TestCheckoutResolvesLinesOneAtATime(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	catalog := NewCatalogService(st)
	tracked := &inFlightProducts{ProductStore: st}
	cart := NewCartService(tracked, st, CartOptions{Logger: zerolog.Nop()})
	for _, name := range []string{"Chair", "Stool", "Lamp", "Sofa"} {
		p, err := catalog.CreateProduct(ctx, chairInput(name, 100))
		require.NoError(t, err)
		_, err = cart.AddToCart(ctx, "u1", p.ID.Hex())
		require.NoError(t, err)
	}

	tracked.mu.Lock()
	tracked.max = 0
	tracked.mu.Unlock()

	svc := NewOrderService(cart, st, st, st, OrderOptions{ShippingFee: 100, Logger: zerolog.Nop()})
	receipt, err := svc.CreateOrder(ctx, "u1", models.OrderRequest{ShippingAddress: shipping(), PaymentMethod: "card"})
	require.NoError(t, err)
	assert.Equal(t, int64(500), receipt.Total)

	tracked.mu.Lock()
	defer tracked.mu.Unlock()
	assert.Equal(t, 1, tracked.max)
}

// --- notifications ---

type notifierFunc func(context.Context, models.Order) error

func (f notifierFunc) OrderPlaced(ctx context.Context, o models.Order) error { return f(ctx, o) }

func TestCheckoutNotifiesAsynchronously(t *testing.T) {
	st := memory.New()
	cart := NewCartService(st, st, CartOptions{Logger: zerolog.Nop()})
	got := make(chan models.Order, 1)
	svc := NewOrderService(cart, st, st, st, OrderOptions{
		ShippingFee: 100,
		Logger:      zerolog.Nop(),
		Notifier: notifierFunc(func(_ context.Context, o models.Order) error {
			got <- o
			return nil
		}),
	})

	receipt, err := svc.CreateOrder(context.Background(), "u1", models.OrderRequest{ShippingAddress: shipping(), PaymentMethod: "cod"})
	require.NoError(t, err)

	select {
	case o := <-got:
		assert.Equal(t, receipt.OrderID, o.ID.Hex())
		assert.Equal(t, "ada@example.com", o.ShippingAddress.Email)
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was not called")
	}
}

// --- conflicts ---

type alwaysStale struct {
	store.CartStore
}

func (alwaysStale) ReplaceLines(context.Context, string, int64, []models.CartLine) (models.Cart, error) {
	return models.Cart{}, store.ErrRevisionMismatch
}

func TestMutateGivesUpWithConflict(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	p, err := NewCatalogService(st).CreateProduct(ctx, chairInput("Chair", 1000))
	require.NoError(t, err)

	cart := NewCartService(st, alwaysStale{st}, CartOptions{MaxRetries: 3, Logger: zerolog.Nop()})
	_, err = cart.AddToCart(ctx, "u1", p.ID.Hex())
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, msgCartConflict, Message(err))
}
