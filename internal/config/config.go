package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv   string
	LogLevel string
	Port     string

	CORSOrigins []string

	MongoURI          string
	MongoDB           string
	MongoTimeout      time.Duration
	MongoTransactions bool

	RedisHost     string
	RedisPassword string

	ShippingFee      int64
	CheckoutFallback bool
	CartMaxRetries   int
	CartRateLimit    int

	AdminJWTSecret string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PORT", "3000")
	v.SetDefault("CORS_ORIGINS", "*")

	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB", "shopping_cart")
	v.SetDefault("MONGO_TIMEOUT", 5*time.Second)
	v.SetDefault("MONGO_TRANSACTIONS", false)

	v.SetDefault("REDIS_HOST", "")
	v.SetDefault("REDIS_PASSWORD", "")

	v.SetDefault("SHIPPING_FEE", 100)
	v.SetDefault("CHECKOUT_FALLBACK", false)
	v.SetDefault("CART_MAX_RETRIES", 10)
	v.SetDefault("CART_RATE_LIMIT", 20)

	v.SetDefault("ADMIN_JWT_SECRET", "")

	v.SetDefault("MINIO_ENDPOINT", "")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_BUCKET", "product-images")
	v.SetDefault("MINIO_USE_SSL", false)

	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "noreply@lounge.local")
}

// Load reads .env when present, then the process environment.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Info().Msg("no .env file found, using process environment")
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) Config {
	cfg := Config{
		AppEnv:   v.GetString("APP_ENV"),
		LogLevel: v.GetString("LOG_LEVEL"),
		Port:     v.GetString("PORT"),

		CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),

		MongoURI:          v.GetString("MONGO_URI"),
		MongoDB:           v.GetString("MONGO_DB"),
		MongoTimeout:      v.GetDuration("MONGO_TIMEOUT"),
		MongoTransactions: v.GetBool("MONGO_TRANSACTIONS"),

		RedisHost:     v.GetString("REDIS_HOST"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),

		ShippingFee:      v.GetInt64("SHIPPING_FEE"),
		CheckoutFallback: v.GetBool("CHECKOUT_FALLBACK"),
		CartMaxRetries:   v.GetInt("CART_MAX_RETRIES"),
		CartRateLimit:    v.GetInt("CART_RATE_LIMIT"),

		AdminJWTSecret: v.GetString("ADMIN_JWT_SECRET"),

		MinIOEndpoint:  v.GetString("MINIO_ENDPOINT"),
		MinIOAccessKey: v.GetString("MINIO_ACCESS_KEY"),
		MinIOSecretKey: v.GetString("MINIO_SECRET_KEY"),
		MinIOBucket:    v.GetString("MINIO_BUCKET"),
		MinIOUseSSL:    v.GetBool("MINIO_USE_SSL"),

		SMTPHost:     v.GetString("SMTP_HOST"),
		SMTPPort:     v.GetInt("SMTP_PORT"),
		SMTPUsername: v.GetString("SMTP_USERNAME"),
		SMTPPassword: v.GetString("SMTP_PASSWORD"),
		SMTPFrom:     v.GetString("SMTP_FROM"),
	}

	if cfg.MongoTimeout <= 0 {
		cfg.MongoTimeout = 5 * time.Second
	}
	if cfg.CartMaxRetries <= 0 {
		cfg.CartMaxRetries = 10
	}
	if cfg.ShippingFee < 0 {
		cfg.ShippingFee = 0
	}
	return cfg
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
