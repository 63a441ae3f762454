package cleanup

import (
	"context"
	"net/http"
	"time"

	"installment-ledger/internal/pkg/db/mongo"
	"installment-ledger/internal/pkg/db/redis"
	"installment-ledger/internal/pkg/log_messages"
	"installment-ledger/internal/pkg/logger"
)

// Resources groups everything the process must release on shutdown. Nil fields are skipped.
type Resources struct {
	PubSubConsumer  interface{ Close() error }
	PubSubPublisher interface{ Close() error }
	KafkaProducer   interface{ Close() error }
	GCSClient       interface{ Close() error }
	MongoClient     *mongo.MongoClient
	RedisClient     *redis.RedisClient
	Server          *http.Server
	TraceShutdown   func(context.Context) error
	StopWorkers     func()
}

// CleanupResources stops intake first, then drains work, then closes the stores.
func CleanupResources(ctx context.Context, r Resources) {
	logger.CtxInfo(ctx, log_messages.CleanupStarted)

	cleanupHTTPServer(ctx, r.Server)
	closeResource(ctx, r.PubSubConsumer, "PubSub consumer")

	if r.StopWorkers != nil {
		r.StopWorkers()
	}

	closeResource(ctx, r.PubSubPublisher, "PubSub publisher")
	closeResource(ctx, r.KafkaProducer, "Kafka producer")
	closeResource(ctx, r.GCSClient, "GCS client")

	cleanupMongoResource(ctx, r.MongoClient)
	cleanupRedisResource(ctx, r.RedisClient)

	if r.TraceShutdown != nil {
		if err := r.TraceShutdown(ctx); err != nil {
			logger.CtxError(ctx, "Failed to shutdown tracer provider", err)
		}
	}

	logger.CtxInfo(ctx, log_messages.CleanupCompleted)
}

func closeResource(ctx context.Context, resource interface{ Close() error }, resourceName string) {
	if resource == nil {
		return
	}
	if err := resource.Close(); err != nil {
		logger.CtxError(ctx, "Failed to close "+resourceName, err)
		return
	}
	logger.CtxInfo(ctx, resourceName+" closed successfully")
}

func cleanupMongoResource(ctx context.Context, mongoClient *mongo.MongoClient) {
	if mongoClient == nil || mongoClient.Client == nil {
		return
	}
	mongoCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Client.Disconnect(mongoCtx); err != nil {
		logger.CtxError(mongoCtx, "Failed to disconnect MongoDB client", err)
		return
	}
	logger.CtxInfo(mongoCtx, "MongoDB client disconnected successfully")
}

func cleanupRedisResource(ctx context.Context, redisClient *redis.RedisClient) {
	if redisClient == nil || redisClient.Client == nil {
		return
	}
	if err := redis.Disconnect(redisClient.Client); err != nil {
		logger.CtxError(ctx, "Failed to close Redis client", err)
		return
	}
	logger.CtxInfo(ctx, "Redis client closed successfully")
}

func cleanupHTTPServer(ctx context.Context, server *http.Server) {
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.CtxError(ctx, "Failed to shutdown HTTP server", err)
		return
	}
	logger.CtxInfo(ctx, "HTTP server shutdown successfully")
}
