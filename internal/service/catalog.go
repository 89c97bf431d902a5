package service

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"lounge_back_end/internal/models"
	"lounge_back_end/internal/store"
)

const (
	msgProductRequired = "Name, price, and image are required"
	msgPricePositive   = "Price must be a positive number"
	msgProductNotFound = "Product not found"
)

type CatalogService struct {
	products store.ProductStore
}

func NewCatalogService(products store.ProductStore) *CatalogService {
	return &CatalogService{products: products}
}

// parseID treats a malformed hex id like an unknown one: it can never match.
func parseID(hex string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(hex))
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.products.ListProducts(ctx)
	if err != nil {
		return nil, persistenceError("list products", err)
	}
	return products, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (models.Product, error) {
	oid, ok := parseID(id)
	if !ok {
		return models.Product{}, notFoundError(msgProductNotFound)
	}
	p, err := s.products.GetProduct(ctx, oid)
	if err != nil {
		return models.Product{}, productErr("get product", err)
	}
	return p, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, in models.ProductInput) (models.Product, error) {
	upd, err := validateProduct(in)
	if err != nil {
		return models.Product{}, err
	}

	p := models.Product{Name: upd.Name, Price: upd.Price, Image: upd.Image}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	created, err := s.products.CreateProduct(ctx, p)
	if err != nil {
		return models.Product{}, persistenceError("create product", err)
	}
	return created, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id string, in models.ProductInput) (models.Product, error) {
	upd, err := validateProduct(in)
	if err != nil {
		return models.Product{}, err
	}
	oid, ok := parseID(id)
	if !ok {
		return models.Product{}, notFoundError(msgProductNotFound)
	}

	p, err := s.products.UpdateProduct(ctx, oid, upd)
	if err != nil {
		return models.Product{}, productErr("update product", err)
	}
	return p, nil
}

// DeleteProduct does not touch carts; lines pointing at the product are
// filtered out when carts are resolved.
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	oid, ok := parseID(id)
	if !ok {
		return notFoundError(msgProductNotFound)
	}
	if err := s.products.DeleteProduct(ctx, oid); err != nil {
		return productErr("delete product", err)
	}
	return nil
}

func validateProduct(in models.ProductInput) (store.ProductUpdate, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" ||
		in.Price == nil ||
		in.Image == nil || strings.TrimSpace(*in.Image) == "" {
		return store.ProductUpdate{}, validationError(msgProductRequired)
	}
	if *in.Price <= 0 {
		return store.ProductUpdate{}, validationError(msgPricePositive)
	}
	return store.ProductUpdate{
		Name:        strings.TrimSpace(*in.Name),
		Price:       *in.Price,
		Image:       strings.TrimSpace(*in.Image),
		Description: in.Description,
	}, nil
}

func productErr(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFoundError(msgProductNotFound)
	}
	return persistenceError(op, err)
}
