// Package mongostore implements the store ports on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"lounge_back_end/internal/models"
	"lounge_back_end/internal/store"
)

const (
	productsCollection = "products"
	cartsCollection    = "carts"
	ordersCollection   = "orders"
)

type Store struct {
	db      *mongo.Database
	timeout time.Duration
	// transactions requires a replica set; standalone servers reject them.
	transactions bool
}

type Option func(*Store)

func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithTransactions(enabled bool) Option {
	return func(s *Store) { s.transactions = enabled }
}

func New(db *mongo.Database, opts ...Option) *Store {
	s := &Store{db: db, timeout: 5 * time.Second}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) products() *mongo.Collection { return s.db.Collection(productsCollection) }
func (s *Store) carts() *mongo.Collection    { return s.db.Collection(cartsCollection) }
func (s *Store) orders() *mongo.Collection   { return s.db.Collection(ordersCollection) }

func (s *Store) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.timeout)
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return err
}

// --- products ---

func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	cursor, err := s.products().Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	products := []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var p models.Product
	if err := s.products().FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return models.Product{}, notFound(err)
	}
	return p, nil
}

func (s *Store) CreateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	p.ID = primitive.NewObjectID()
	if _, err := s.products().InsertOne(ctx, p); err != nil {
		return models.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, id primitive.ObjectID, upd store.ProductUpdate) (models.Product, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	set := bson.M{"name": upd.Name, "price": upd.Price, "image": upd.Image}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}

	var p models.Product
	err := s.products().FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&p)
	if err != nil {
		return models.Product{}, notFound(err)
	}
	return p, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	res, err := s.products().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAllProducts(ctx context.Context) (int64, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	res, err := s.products().DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("delete products: %w", err)
	}
	return res.DeletedCount, nil
}

// --- carts ---

// GetOrCreateCart upserts on userId. Two racing upserts can both miss and
// both try to insert; the unique index rejects one and the retry then finds
// the winner's document.
func (s *Store) GetOrCreateCart(ctx context.Context, userID string) (models.Cart, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	update := bson.M{"$setOnInsert": bson.M{
		"products": []models.CartLine{},
		"revision": int64(0),
	}}

	var c models.Cart
	for attempt := 0; attempt < 2; attempt++ {
		err := s.carts().FindOneAndUpdate(ctx, bson.M{"userId": userID}, update, opts).Decode(&c)
		if err == nil {
			if c.Lines == nil {
				c.Lines = []models.CartLine{}
			}
			return c, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return models.Cart{}, fmt.Errorf("upsert cart: %w", err)
		}
	}
	return models.Cart{}, fmt.Errorf("upsert cart: duplicate key persisted for %q", userID)
}

func (s *Store) FindCart(ctx context.Context, userID string) (models.Cart, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var c models.Cart
	if err := s.carts().FindOne(ctx, bson.M{"userId": userID}).Decode(&c); err != nil {
		return models.Cart{}, notFound(err)
	}
	if c.Lines == nil {
		c.Lines = []models.CartLine{}
	}
	return c, nil
}

func (s *Store) ReplaceLines(ctx context.Context, userID string, expected int64, lines []models.CartLine) (models.Cart, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	if lines == nil {
		lines = []models.CartLine{}
	}

	var c models.Cart
	err := s.carts().FindOneAndUpdate(ctx,
		revisionFilter(userID, expected),
		bson.M{
			"$set": bson.M{"products": lines},
			"$inc": bson.M{"revision": 1},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&c)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Cart{}, fmt.Errorf("replace cart lines: %w", err)
	}

	// Distinguish a stale revision from a missing cart.
	n, cerr := s.carts().CountDocuments(ctx, bson.M{"userId": userID})
	if cerr != nil {
		return models.Cart{}, fmt.Errorf("count carts: %w", cerr)
	}
	if n == 0 {
		return models.Cart{}, store.ErrNotFound
	}
	return models.Cart{}, store.ErrRevisionMismatch
}

// revisionFilter matches the cart at the expected revision. Carts written
// before revisions existed have no field at all and decode as revision 0.
func revisionFilter(userID string, expected int64) bson.M {
	if expected != 0 {
		return bson.M{"userId": userID, "revision": expected}
	}
	return bson.M{
		"userId": userID,
		"$or": bson.A{
			bson.M{"revision": int64(0)},
			bson.M{"revision": bson.M{"$exists": false}},
		},
	}
}

// --- orders ---

func (s *Store) InsertOrder(ctx context.Context, o models.Order) (models.Order, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	o.ID = primitive.NewObjectID()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if _, err := s.orders().InsertOne(ctx, o); err != nil {
		return models.Order{}, fmt.Errorf("insert order: %w", err)
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.orders().Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return orders, nil
}

func (s *Store) GetOrder(ctx context.Context, userID string, id primitive.ObjectID) (models.Order, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var o models.Order
	if err := s.orders().FindOne(ctx, bson.M{"_id": id, "userId": userID}).Decode(&o); err != nil {
		return models.Order{}, notFound(err)
	}
	return o, nil
}

// --- transactions ---

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.transactions {
		return fn(ctx)
	}

	sess, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
