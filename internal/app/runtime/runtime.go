package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"installment-ledger/internal/app/router"
	"installment-ledger/internal/pkg/cleanup"
	"installment-ledger/internal/pkg/config"
	"installment-ledger/internal/pkg/db/mongo"
	"installment-ledger/internal/pkg/db/redis"
	"installment-ledger/internal/pkg/gcs"
	"installment-ledger/internal/pkg/kafka"
	"installment-ledger/internal/pkg/lock"
	"installment-ledger/internal/pkg/log_messages"
	"installment-ledger/internal/pkg/logger"
	"installment-ledger/internal/pkg/otel"
	"installment-ledger/internal/pkg/pubsub"
	"installment-ledger/internal/pkg/store/impl/collection_history"
	"installment-ledger/internal/pkg/store/impl/collectors"
	"installment-ledger/internal/pkg/store/impl/deductions_in_progress"
	"installment-ledger/internal/pkg/store/impl/installments"
	"installment-ledger/internal/pkg/store/impl/members"
	savingsrepo "installment-ledger/internal/pkg/store/impl/savings"
	"installment-ledger/internal/pkg/store/repository"
	"installment-ledger/internal/service"
	"installment-ledger/internal/service/collection"
	"installment-ledger/internal/service/events"
	servicekafka "installment-ledger/internal/service/kafka"
	"installment-ledger/internal/service/ledger"
	"installment-ledger/internal/service/loan"
	pubsubService "installment-ledger/internal/service/pubsub"
	"installment-ledger/internal/service/savings"
	"installment-ledger/internal/service/schedule"
)

var (
	connectMongoDB = mongo.ConnectToMongoDB
	connectRedisDB = func(ctx context.Context, cfg config.RedisConfig) (*redis.RedisClient, error) {
		return redis.ConnectToRedis(ctx, cfg, nil)
	}
	newKafkaProducer = kafka.NewKafkaProducer
	newGCSClient     = func(ctx context.Context, cfg config.GCSConfig) (*gcs.GCSClient, error) {
		return gcs.NewGCSClient(ctx, cfg.BucketName, cfg.FolderName)
	}
	setupTracing  = otel.Setup
	ensureIndexes = mongo.EnsureIndexes
)

// PubSubConsumer defines the contract for any PubSub consumer
type PubSubConsumer interface {
	Close() error
	Consume(ctx context.Context, sub string, handler func(ctx context.Context, msg []byte) error) error
	StartConsumer(subscription string, handler func(ctx context.Context, msg []byte) error)
}

// PubSubPublisher defines the contract for any PubSub publisher
type PubSubPublisher interface {
	Close() error
	Publish(ctx context.Context, topic string, msg []byte) error
}

// App encapsulates application resources and lifecycle.
type App struct {
	Cfg             *config.AppConfig
	PubSubConsumer  PubSubConsumer
	PubSubPublisher PubSubPublisher
	KafkaProducer   *kafka.KafkaProducer
	KafkaService    *servicekafka.LedgerKafkaService
	MongoClient     *mongo.MongoClient
	RedisClient     *redis.RedisClient
	HTTPServer      *http.Server
	GcsClient       *gcs.GCSClient
	TraceShutdown   func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.LoadFromConfig()
	if err != nil {
		logger.CtxError(ctx, log_messages.FailedLoadingConfiguration, err)
		return nil, err
	}
	logger.Init(cfg.Logging.LogLevel)

	app := &App{Cfg: cfg}
	if cfg.Otel.Enabled {
		shutdown, err := setupTracing(ctx, cfg.Otel.ServiceName, cfg.Otel.CollectorURL)
		if err != nil {
			logger.CtxError(ctx, log_messages.FailedSettingUpTracing, err)
			return nil, err
		}
		app.TraceShutdown = shutdown
	}

	pubsubConsumer, err := pubsub.NewPubSubConsumer(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		logger.CtxError(ctx, log_messages.FailureInPubsubConsumerCreation, err)
		return nil, err
	}
	pubsubConsumer.MaxOutstanding = cfg.PubSub.MaxOutstandingMessages
	app.PubSubConsumer = pubsubConsumer

	pubsubPublisher, err := pubsub.NewPubSubPublisher(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		logger.CtxError(ctx, log_messages.FailureInPubsubPublisherCreation, err)
		return nil, err
	}
	app.PubSubPublisher = pubsubPublisher

	kafkaProducer, err := newKafkaProducer(cfg.Kafka)
	if err != nil {
		logger.CtxError(ctx, log_messages.FailureInKafkaProducerCreation, err)
		return nil, err
	}
	app.KafkaProducer = kafkaProducer
	app.KafkaService = servicekafka.NewLedgerKafkaService(kafkaProducer)

	app.MongoClient, err = connectMongoDB(ctx, cfg.Mongo)
	if err != nil {
		logger.CtxError(ctx, log_messages.FailedConnectingMongoDB, err)
		return nil, err
	}
	if err := ensureIndexes(ctx, app.MongoClient.Database, cfg.DeductionSweep.MarkerTTL); err != nil {
		logger.CtxError(ctx, log_messages.FailedEnsuringMongoIndexes, err)
		return nil, err
	}

	app.RedisClient, err = connectRedisDB(ctx, cfg.Redis)
	if err != nil {
		logger.CtxError(ctx, log_messages.FailedConnectingRedis, err)
		return nil, err
	}

	app.GcsClient, err = newGCSClient(ctx, cfg.GCS)
	if err != nil {
		logger.CtxError(ctx, log_messages.FailedCreatingGCSClient, err)
		return nil, err
	}

	return app, nil
}

// wiring is the service graph built on top of the connected resources.
type wiring struct {
	routes   router.Services
	consumer *pubsubService.CollectionMessageConsumer
}

func (a *App) wire() wiring {
	cfg := a.Cfg
	loc := cfg.Ledger.Location()

	installmentsRepo := installments.NewInstallmentsRepository(a.MongoClient)
	membersRepo := members.NewMembersRepository(a.MongoClient)
	historyRepo := collection_history.NewCollectionHistoryRepository(a.MongoClient)
	savingsRepo := savingsrepo.NewSavingsRepository(a.MongoClient)
	collectorsRepo := collectors.NewCollectorsRepository(a.MongoClient)
	inProgressRepo := deductions_in_progress.NewDeductionsInProgressRepository(a.MongoClient)

	locker := lock.NewRedisLocker(a.RedisClient.Client, cfg.Ledger.LockTTL, cfg.Ledger.LockWait)
	calendarCache := repository.NewRedisStoreAdapter(a.RedisClient.Client)
	executor := ledger.NewExecutor(locker, a.MongoClient, cfg.Ledger.MaxConflictRetries)
	dispatcher := events.NewDispatcher(a.KafkaService, historyRepo, a.PubSubPublisher, cfg.PubSub.NotificationTopic)

	ledgerService := ledger.NewLedgerService(installmentsRepo, cfg.Ledger.MaxActiveLoanGroups)
	loanService := loan.NewLoanService(installmentsRepo, membersRepo,
		schedule.NewCalendarLoader(collectorsRepo, calendarCache, cfg.Ledger.CalendarCacheTTL),
		ledgerService, executor, schedule.RulesFromConfig(cfg.Ledger), loc)
	collectionService := collection.NewCollectionService(installmentsRepo, membersRepo, historyRepo,
		executor, dispatcher, loc)
	savingsService := savings.NewSavingsService(installmentsRepo, membersRepo, historyRepo, savingsRepo,
		inProgressRepo, a.GcsClient, executor, dispatcher, loc, savings.SweepOptions{
			WorkerCount: cfg.DeductionSweep.WorkerCount,
			BufferSize:  cfg.DeductionSweep.BufferSize,
		})
	collectionService.SetCompletionHook(savingsService.OnLoanGroupCompleted)

	return wiring{
		routes: router.Services{
			Loans:       loanService,
			Canceller:   ledgerService,
			Collections: collectionService,
			Savings:     savingsService,
			KafkaRetry:  service.NewKafkaRetryService(historyRepo, a.KafkaService, cfg.KafkaRetryService),
		},
		consumer: pubsubService.NewCollectionMessageConsumer(collectionService),
	}
}

// Run starts the PubSub consumer and HTTP server, then blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	w := a.wire()

	go a.PubSubConsumer.StartConsumer(a.Cfg.PubSub.CollectionSubscription, w.consumer.HandleCollectionMessage)

	engine := router.SetupRouter(a.Cfg.Otel.ServiceName, w.routes)
	a.HTTPServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.CtxError(ctx, log_messages.ServerStartFailure, err)
		}
	}()
	logger.CtxInfo(ctx, log_messages.LedgerServiceStarted, slog.Int("port", a.Cfg.Server.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.CtxInfo(ctx, log_messages.ServerShutdown)
	a.Shutdown(ctx)
	logger.CtxInfo(ctx, log_messages.ServerExiting)
	return nil
}

// Shutdown gracefully closes all resources with bounded timeouts.
func (a *App) Shutdown(ctx context.Context) {
	res := cleanup.Resources{
		MongoClient:   a.MongoClient,
		RedisClient:   a.RedisClient,
		Server:        a.HTTPServer,
		TraceShutdown: a.TraceShutdown,
	}
	// typed nils must not reach the interface fields
	if a.PubSubConsumer != nil {
		res.PubSubConsumer = a.PubSubConsumer
	}
	if a.PubSubPublisher != nil {
		res.PubSubPublisher = a.PubSubPublisher
	}
	if a.KafkaProducer != nil {
		res.KafkaProducer = a.KafkaProducer
	}
	if a.GcsClient != nil {
		res.GCSClient = a.GcsClient
	}
	cleanup.CleanupResources(ctx, res)
}
