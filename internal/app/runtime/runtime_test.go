package runtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"installment-ledger/internal/app/router"
	"installment-ledger/internal/pkg/config"
	"installment-ledger/internal/pkg/gcs"
	"installment-ledger/internal/pkg/kafka"
	"installment-ledger/internal/pkg/pubsub"

	mongopkg "installment-ledger/internal/pkg/db/mongo"
	redispkg "installment-ledger/internal/pkg/db/redis"

	svcInterfaces "installment-ledger/internal/service/interfaces"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const testConfigPath = "../../../configs/config.yaml"

type mockPubSubPublisher struct {
	closeCalled bool
}

func (m *mockPubSubPublisher) Close() error {
	m.closeCalled = true
	return nil
}

func (m *mockPubSubPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	return nil
}

type mockPubSub struct {
	closeCalled bool
}

func (m *mockPubSub) Close() error {
	m.closeCalled = true
	return nil
}

func (m *mockPubSub) Consume(ctx context.Context, sub string, handler func(context.Context, []byte) error) error {
	return context.Canceled
}

func (m *mockPubSub) StartConsumer(subscription string, handler func(ctx context.Context, msg []byte) error) {}

type mockPubSubClient struct{}

func (m *mockPubSubClient) Subscriber(subscription string) svcInterfaces.SubscriberInterface {
	return &mockSubscriber{}
}

func (m *mockPubSubClient) Close() error { return nil }

type mockSubscriber struct{}

func (s *mockSubscriber) Receive(ctx context.Context, f func(context.Context, svcInterfaces.MessageInterface)) error {
	return ctx.Err()
}

func (s *mockSubscriber) SetMaxExtension(d time.Duration) {}

func (s *mockSubscriber) SetMaxOutstandingMessages(n int) {}

type mockPubSubPublisherClient struct{}

func (m *mockPubSubPublisherClient) Publisher(topic string) svcInterfaces.PublisherInterface {
	return &mockPublisher{}
}

func (m *mockPubSubPublisherClient) Close() error { return nil }

type mockPublisher struct{}

func (m *mockPublisher) Publish(ctx context.Context, msg []byte) error {
	return nil
}

// stubConstructors swaps every outbound constructor and restores them when the test ends.
func stubConstructors(t *testing.T) {
	t.Helper()
	origConsumer := pubsub.NewPubSubConsumer
	origPublisher := pubsub.NewPubSubPublisher
	origKafka := newKafkaProducer
	origMongo := connectMongoDB
	origRedis := connectRedisDB
	origGCS := newGCSClient
	origIndexes := ensureIndexes
	t.Cleanup(func() {
		pubsub.NewPubSubConsumer = origConsumer
		pubsub.NewPubSubPublisher = origPublisher
		newKafkaProducer = origKafka
		connectMongoDB = origMongo
		connectRedisDB = origRedis
		newGCSClient = origGCS
		ensureIndexes = origIndexes
	})

	pubsub.NewPubSubConsumer = func(ctx context.Context, projectID string) (*pubsub.PubSubConsumer, error) {
		return &pubsub.PubSubConsumer{PubSubClient: &mockPubSubClient{}, Ctx: ctx}, nil
	}
	pubsub.NewPubSubPublisher = func(ctx context.Context, projectID string) (*pubsub.PubSubPublisher, error) {
		return &pubsub.PubSubPublisher{PubSubClient: &mockPubSubPublisherClient{}}, nil
	}
	newKafkaProducer = func(cfg config.KafkaConfig) (*kafka.KafkaProducer, error) {
		return &kafka.KafkaProducer{}, nil
	}
	connectMongoDB = func(ctx context.Context, cfg config.MongoConfig) (*mongopkg.MongoClient, error) {
		return &mongopkg.MongoClient{}, nil
	}
	connectRedisDB = func(ctx context.Context, cfg config.RedisConfig) (*redispkg.RedisClient, error) {
		return &redispkg.RedisClient{}, nil
	}
	newGCSClient = func(ctx context.Context, cfg config.GCSConfig) (*gcs.GCSClient, error) {
		return &gcs.GCSClient{BucketName: cfg.BucketName, FolderName: cfg.FolderName}, nil
	}
	ensureIndexes = func(ctx context.Context, db *mongo.Database, markerTTL time.Duration) error {
		return nil
	}

	t.Setenv("CONFIG_PATH", testConfigPath)
}

func TestShutdownCallsCleanup(t *testing.T) {
	pub := &mockPubSub{}
	pubPublisher := &mockPubSubPublisher{}
	app := &App{
		PubSubConsumer:  pub,
		PubSubPublisher: pubPublisher,
	}

	app.Shutdown(context.Background())

	assert.True(t, pub.closeCalled, "expected PubSub consumer Close on Shutdown")
	assert.True(t, pubPublisher.closeCalled, "expected PubSub publisher Close on Shutdown")
}

func TestNewSuccessWithStubs(t *testing.T) {
	stubConstructors(t)

	app, err := New(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, app.PubSubConsumer)
	assert.NotNil(t, app.PubSubPublisher)
	assert.NotNil(t, app.KafkaProducer)
	assert.NotNil(t, app.KafkaService)
	assert.NotNil(t, app.MongoClient)
	assert.NotNil(t, app.RedisClient)
	assert.Equal(t, "deduction-sweeps", app.GcsClient.FolderName)
	assert.Equal(t, 10, app.PubSubConsumer.(*pubsub.PubSubConsumer).MaxOutstanding)
}

func TestNewEnsuresIndexesWithMarkerTTL(t *testing.T) {
	stubConstructors(t)
	var gotTTL time.Duration
	ensureIndexes = func(ctx context.Context, db *mongo.Database, markerTTL time.Duration) error {
		gotTTL = markerTTL
		return nil
	}

	_, err := New(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, gotTTL)
}

func TestNewFailures(t *testing.T) {
	tests := []struct {
		name string
		fail func()
	}{
		{"pubsub consumer", func() {
			pubsub.NewPubSubConsumer = func(ctx context.Context, projectID string) (*pubsub.PubSubConsumer, error) {
				return nil, errors.New("pubsub failed")
			}
		}},
		{"kafka", func() {
			newKafkaProducer = func(cfg config.KafkaConfig) (*kafka.KafkaProducer, error) {
				return nil, errors.New("kafka failed")
			}
		}},
		{"mongo", func() {
			connectMongoDB = func(ctx context.Context, cfg config.MongoConfig) (*mongopkg.MongoClient, error) {
				return nil, errors.New("mongo failed")
			}
		}},
		{"indexes", func() {
			ensureIndexes = func(ctx context.Context, db *mongo.Database, markerTTL time.Duration) error {
				return errors.New("index creation failed")
			}
		}},
		{"redis", func() {
			connectRedisDB = func(ctx context.Context, cfg config.RedisConfig) (*redispkg.RedisClient, error) {
				return nil, errors.New("redis failed")
			}
		}},
		{"gcs", func() {
			newGCSClient = func(ctx context.Context, cfg config.GCSConfig) (*gcs.GCSClient, error) {
				return nil, errors.New("gcs failed")
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubConstructors(t)
			tt.fail()
			_, err := New(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestNewMissingConfig(t *testing.T) {
	t.Setenv("CONFIG_PATH", "does/not/exist.yaml")
	_, err := New(context.Background())
	assert.Error(t, err)
}

func TestWireServesHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)

	// mongo.Connect is lazy, nothing is dialled until the first operation
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI("mongodb://localhost:27017"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	cfg, err := config.LoadFromConfigFilePath(testConfigPath)
	require.NoError(t, err)

	app := &App{
		Cfg:             cfg,
		PubSubPublisher: &mockPubSubPublisher{},
		MongoClient:     &mongopkg.MongoClient{Client: client, Database: client.Database("ledger_test")},
		RedisClient:     &redispkg.RedisClient{Client: goredis.NewClient(&goredis.Options{Addr: mr.Addr()})},
		GcsClient:       &gcs.GCSClient{},
	}

	w := app.wire()
	require.NotNil(t, w.consumer)
	require.NotNil(t, w.routes.Loans)
	require.NotNil(t, w.routes.KafkaRetry)

	engine := router.SetupRouter(cfg.Otel.ServiceName, w.routes)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/IntegrationServices/InstallmentLedger/HealthCheck", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
