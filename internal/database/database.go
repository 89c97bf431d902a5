package database

import (
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"lounge_back_end/internal/config"
)

// --- Globals ---
var (
	MongoClient *mongo.Client
	Mongo       *mongo.Database
	Redis       *redis.Client // nil when REDIS_HOST is unset
	MinIO       *minio.Client // nil when MINIO_ENDPOINT is unset
)

// ConnectDatabases opens every backend the configuration asks for. Mongo is
// mandatory; Redis and MinIO are skipped when not configured.
func ConnectDatabases(ctx context.Context, cfg config.Config) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := ConnectMongo(ctx, cfg); err != nil {
		return err
	}
	if err := EnsureIndexes(ctx, Mongo); err != nil {
		return err
	}
	if cfg.RedisHost != "" {
		if err := ConnectRedis(ctx, cfg); err != nil {
			return err
		}
	} else {
		log.Warn().Msg("REDIS_HOST not set: product cache, cart events and rate limit disabled")
	}
	if cfg.MinIOEndpoint != "" {
		if err := ConnectMinIO(ctx, cfg); err != nil {
			return err
		}
	}
	log.Info().Msg("all configured databases connected")
	return nil
}

// =============================================
// MONGODB
// =============================================

func ConnectMongo(ctx context.Context, cfg config.Config) error {
	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetServerSelectionTimeout(cfg.MongoTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}

	MongoClient = client
	Mongo = client.Database(cfg.MongoDB)
	log.Info().Str("db", cfg.MongoDB).Msg("connected to MongoDB")
	return nil
}

// EnsureIndexes creates the indexes the store relies on. The unique index on
// carts.userId is what keeps GetOrCreateCart to a single cart per user.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("carts").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("carts index: %w", err)
	}

	_, err = db.Collection("orders").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("orders index: %w", err)
	}
	return nil
}

// =============================================
// REDIS
// =============================================

func ConnectRedis(ctx context.Context, cfg config.Config) error {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisHost,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	Redis = client
	log.Info().Str("addr", cfg.RedisHost).Msg("connected to Redis")
	return nil
}

// =============================================
// MINIO
// =============================================

func ConnectMinIO(ctx context.Context, cfg config.Config) error {
	client, err := minio.New(cfg.MinIOEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
		Secure: cfg.MinIOUseSSL,
	})
	if err != nil {
		return fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.MinIOBucket)
	if err != nil {
		return fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinIOBucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("minio make bucket: %w", err)
		}
		log.Info().Str("bucket", cfg.MinIOBucket).Msg("bucket created")
	}

	MinIO = client
	log.Info().Str("endpoint", cfg.MinIOEndpoint).Msg("connected to MinIO")
	return nil
}

// Close releases every open connection.
func Close(ctx context.Context) {
	if Redis != nil {
		if err := Redis.Close(); err != nil {
			log.Warn().Err(err).Msg("redis close")
		}
	}
	if MongoClient != nil {
		if err := MongoClient.Disconnect(ctx); err != nil {
			log.Warn().Err(err).Msg("mongo disconnect")
		}
	}
}
