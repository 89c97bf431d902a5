package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"lounge_back_end/internal/cache"
	"lounge_back_end/internal/handlers"
	"lounge_back_end/internal/handlers/product"
	"lounge_back_end/internal/handlers/user"
	"lounge_back_end/internal/middleware"
	"lounge_back_end/internal/service"
)

type Deps struct {
	Catalog *service.CatalogService
	Cart    *service.CartService
	Orders  *service.OrderService
	Events  *cache.CartEvents
	Images  product.ImageUploader // nil disables uploads
	Redis   *redis.Client         // nil disables the cart rate limit

	CORSOrigins    []string
	CartRateLimit  int
	AdminJWTSecret string
	Logger         zerolog.Logger
}

// NewRouter builds the engine with the global middleware stack and every
// route registered.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(cors.New(corsConfig(d.CORSOrigins)))

	RegisterRoutes(r, d)
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	products := product.NewHandler(d.Catalog, d.Images)
	carts := user.NewCartHandler(d.Cart, d.Events, d.CORSOrigins)
	orders := user.NewOrderHandler(d.Orders)

	admin := middleware.AdminRequired(d.AdminJWTSecret)
	cartLimit := middleware.CartRateLimit(d.Redis, d.CartRateLimit, d.Logger)

	r.GET("/healthz", handlers.Health)

	api := r.Group("/api")

	// Catalog
	api.GET("/products", products.ListProducts)
	api.GET("/products/:id", products.GetProduct)
	api.POST("/products", admin, products.CreateProduct)
	api.POST("/products/images", admin, products.UploadImage)
	api.PUT("/products/:id", admin, products.UpdateProduct)
	api.DELETE("/products/:id", admin, products.DeleteProduct)

	// Cart
	api.GET("/cart/:userId", carts.GetCart)
	api.GET("/cart/:userId/ws", carts.CartWebSocket)
	api.POST("/cart/:userId/add", cartLimit, carts.AddToCart)
	api.PUT("/cart/:userId/update", cartLimit, carts.UpdateQuantity)

	// Orders
	api.POST("/orders/:userId", orders.CreateOrder)
	api.GET("/orders/:userId", orders.ListOrders)
	api.GET("/orders/:userId/:orderId", orders.GetOrder)
}
