package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"lounge_back_end/internal/cache"
	"lounge_back_end/internal/config"
	"lounge_back_end/internal/database"
	"lounge_back_end/internal/logger"
	"lounge_back_end/internal/routes"
	"lounge_back_end/internal/service"
	"lounge_back_end/internal/services"
	"lounge_back_end/internal/store/mongostore"
	"lounge_back_end/internal/utils"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{Service: "lounge", Env: cfg.AppEnv, Level: cfg.LogLevel})
	zerolog.DefaultContextLogger = &log

	if cfg.AppEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	if err := database.ConnectDatabases(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(1)
	}

	st := mongostore.New(database.Mongo,
		mongostore.WithTimeout(cfg.MongoTimeout),
		mongostore.WithTransactions(cfg.MongoTransactions),
	)
	products := cache.NewProductCache(st, database.Redis, log)
	events := cache.NewCartEvents(database.Redis)

	catalog := service.NewCatalogService(products)
	carts := service.NewCartService(products, st, service.CartOptions{
		MaxRetries: cfg.CartMaxRetries,
		Events:     events,
		Logger:     log,
	})

	orderOpts := service.OrderOptions{
		ShippingFee: cfg.ShippingFee,
		Fallback:    cfg.CheckoutFallback,
		Logger:      log,
	}
	if cfg.SMTPHost != "" {
		orderOpts.Notifier = utils.NewMailer(utils.MailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}
	orders := service.NewOrderService(carts, st, st, st, orderOpts)

	deps := routes.Deps{
		Catalog:        catalog,
		Cart:           carts,
		Orders:         orders,
		Events:         events,
		Redis:          database.Redis,
		CORSOrigins:    cfg.CORSOrigins,
		CartRateLimit:  cfg.CartRateLimit,
		AdminJWTSecret: cfg.AdminJWTSecret,
		Logger:         log,
	}
	// Left nil without MinIO so the upload route answers 503.
	if database.MinIO != nil {
		deps.Images = services.NewImageUploader(database.MinIO, cfg.MinIOEndpoint, cfg.MinIOBucket, cfg.MinIOUseSSL)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown failed")
	}
	database.Close(shutdownCtx)
}
