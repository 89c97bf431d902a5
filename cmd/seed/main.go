package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"lounge_back_end/internal/cache"
	"lounge_back_end/internal/config"
	"lounge_back_end/internal/database"
	"lounge_back_end/internal/logger"
	"lounge_back_end/internal/models"
	"lounge_back_end/internal/store"
	"lounge_back_end/internal/store/mongostore"
)

var catalog = []models.Product{
	{
		Name:        "LD01 LOUNGE CHAIR",
		Price:       2999,
		Image:       "./images/1.png",
		Description: "Elegant and comfortable lounge chair with premium fabric upholstery. Perfect for modern living spaces.",
	},
	{
		Name:        "LD02 LOUNGE CHAIR",
		Price:       3499,
		Image:       "./images/2.png",
		Description: "Contemporary design with ergonomic support. Features high-quality leather and solid wood frame.",
	},
	{
		Name:        "LD03 LOUNGE CHAIR",
		Price:       4299,
		Image:       "./images/3.png",
		Description: "Minimalist Scandinavian design with plush cushioning. Ideal for reading corners and relaxation.",
	},
	{
		Name:        "LD04 LOUNGE CHAIR",
		Price:       2999,
		Image:       "./images/4.png",
		Description: "Classic mid-century modern style with updated comfort features. Durable construction and timeless appeal.",
	},
	{
		Name:        "LD05 LOUNGE CHAIR",
		Price:       4999,
		Image:       "./images/5.png",
		Description: "Premium lounge chair with adjustable backrest. Combines style with exceptional comfort.",
	},
	{
		Name:        "LD06 LOUNGE CHAIR",
		Price:       3499,
		Image:       "./images/6.png",
		Description: "Modern accent chair with distinctive design. Features premium materials and expert craftsmanship.",
	},
	{
		Name:        "LD07 LOUNGE CHAIR",
		Price:       4299,
		Image:       "./images/7.png",
		Description: "Luxurious reclining lounge chair. Perfect blend of comfort and sophisticated design.",
	},
	{
		Name:        "LD08 LOUNGE CHAIR",
		Price:       2999,
		Image:       "./images/8.png",
		Description: "Compact yet comfortable lounge chair. Ideal for small spaces without compromising on style.",
	},
}

// seed replaces every product with the lounge chair catalog.
func seed(ctx context.Context, products store.ProductCatalog, log zerolog.Logger) error {
	removed, err := products.DeleteAllProducts(ctx)
	if err != nil {
		return fmt.Errorf("clear products: %w", err)
	}
	log.Info().Int64("removed", removed).Msg("cleared existing products")

	for _, p := range catalog {
		created, err := products.CreateProduct(ctx, p)
		if err != nil {
			return fmt.Errorf("insert %s: %w", p.Name, err)
		}
		log.Debug().Str("id", created.ID.Hex()).Str("name", created.Name).Msg("product added")
	}
	log.Info().Int("added", len(catalog)).Msg("catalog seeded")
	return nil
}

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{Service: "lounge-seed", Env: cfg.AppEnv, Level: cfg.LogLevel})
	ctx := context.Background()

	if err := database.ConnectDatabases(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(1)
	}
	defer database.Close(ctx)

	st := mongostore.New(database.Mongo, mongostore.WithTimeout(cfg.MongoTimeout))
	if err := seed(ctx, st, log); err != nil {
		log.Error().Err(err).Msg("seeding failed")
		os.Exit(1)
	}

	// Cached product lists would otherwise keep serving the old catalog.
	cache.NewProductCache(st, database.Redis, log).InvalidateAll(ctx)
}
