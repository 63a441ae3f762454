package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"installment-ledger/internal/pkg/config"
	"installment-ledger/internal/pkg/log_messages"
	"installment-ledger/internal/pkg/logger"
	"installment-ledger/internal/pkg/models"
	storemodels "installment-ledger/internal/pkg/store/models"
	"installment-ledger/internal/service/interfaces"

	"go.mongodb.org/mongo-driver/mongo"
)

type KafkaRetryServiceInterface interface {
	RetryLedgerEvents(ctx context.Context) *models.KafkaRetryResponse
}

// KafkaRetryService republishes committed history entries whose Kafka publish never succeeded.
type KafkaRetryService struct {
	HistoryRepo   interfaces.CollectionHistoryRepoInterface
	publisher     interfaces.LedgerEventPublisherInterface
	workerConfig  config.KafkaRetryServiceConfig
	cursorHandler *DefaultCursorHandler
}

type DefaultCursorHandler struct{}

// StreamDocuments feeds decoded entries to docChan and closes it when the cursor is drained.
func (h *DefaultCursorHandler) StreamDocuments(
	ctx context.Context,
	cursor *mongo.Cursor,
	docChan chan<- storemodels.HistoryWithInstallment,
	errorChan chan<- error,
) {
	defer close(docChan)

	hasDocuments := false
	for cursor.Next(ctx) {
		hasDocuments = true
		var doc storemodels.HistoryWithInstallment
		if err := cursor.Decode(&doc); err != nil {
			logger.CtxError(ctx, log_messages.ErrorDecodingDocument, err)
			continue
		}

		select {
		case docChan <- doc:
		case <-ctx.Done():
			return
		}
	}

	if !hasDocuments {
		logger.CtxInfo(ctx, log_messages.NoUnpublishedEntries)
	}

	if err := cursor.Err(); err != nil {
		select {
		case errorChan <- fmt.Errorf(log_messages.CursorError, err):
		case <-ctx.Done():
		default:
			logger.CtxError(ctx, log_messages.ErrorChannelFull, err)
		}
	}
}

func NewKafkaRetryService(
	historyRepo interfaces.CollectionHistoryRepoInterface,
	publisher interfaces.LedgerEventPublisherInterface,
	workerConfig config.KafkaRetryServiceConfig,
) *KafkaRetryService {
	return &KafkaRetryService{
		HistoryRepo:   historyRepo,
		publisher:     publisher,
		workerConfig:  workerConfig,
		cursorHandler: &DefaultCursorHandler{},
	}
}

type retryChannels struct {
	docs    chan storemodels.HistoryWithInstallment
	success chan []string
	failure chan []string
	errs    chan error
}

func (ks *KafkaRetryService) RetryLedgerEvents(ctx context.Context) *models.KafkaRetryResponse {
	response := &models.KafkaRetryResponse{
		SuccessIDs: []string{},
		FailedIDs:  []string{},
	}
	if ks.workerConfig.WorkerCount <= 0 {
		err := errors.New(log_messages.NoWorkerConfigured)
		logger.CtxError(ctx, log_messages.NoWorkerConfigured, err)
		response.SetError(err, log_messages.NoWorkerConfigured)
		return response
	}

	cursor, err := ks.HistoryRepo.GetUnpublishedEntriesCursor(ctx, ks.workerConfig.RetryStartDate,
		ks.workerConfig.MongoBatchSize)
	if err != nil {
		logger.CtxError(ctx, log_messages.FailedToGetUnpublishedEvents, err)
		response.SetError(err, log_messages.FailedToGetUnpublishedEvents)
		return response
	}
	if cursor == nil {
		logger.CtxInfo(ctx, log_messages.CursorIsNilNoDocumentsToProcess)
		response.Message = log_messages.CursorIsNilNoDocumentsToProcess
		return response
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			logger.CtxError(ctx, log_messages.ErrorClosingCursor, err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bufferSize := ks.workerConfig.BufferSize
	ch := retryChannels{
		docs:    make(chan storemodels.HistoryWithInstallment, bufferSize),
		success: make(chan []string, bufferSize),
		failure: make(chan []string, bufferSize),
		errs:    make(chan error, bufferSize),
	}

	var wg sync.WaitGroup
	for i := 0; i < ks.workerConfig.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ks.processDocumentsWorker(ctx, ch)
		}()
	}

	resultsDone := make(chan struct{})
	var resultErrors []error
	go ks.collectResults(ctx, response, ch, resultsDone, &resultErrors)

	ks.cursorHandler.StreamDocuments(ctx, cursor, ch.docs, ch.errs)
	wg.Wait()
	close(ch.success)
	close(ch.failure)
	close(ch.errs)
	<-resultsDone

	response.Message = log_messages.KafkaRetryProcessingCompleted
	logger.CtxInfo(ctx, log_messages.KafkaRetryProcessingCompleted,
		slog.Int("successCount", len(response.SuccessIDs)),
		slog.Int("failureCount", len(response.FailedIDs)),
		slog.Int("errorCount", len(resultErrors)))
	return response
}

func (ks *KafkaRetryService) collectResults(
	ctx context.Context,
	response *models.KafkaRetryResponse,
	ch retryChannels,
	resultsDone chan struct{},
	resultErrors *[]error,
) {
	defer close(resultsDone)

	success, failure, errs := ch.success, ch.failure, ch.errs
	for success != nil || failure != nil || errs != nil {
		select {
		case ids, ok := <-success:
			if !ok {
				success = nil
				continue
			}
			response.SuccessIDs = append(response.SuccessIDs, ids...)
		case ids, ok := <-failure:
			if !ok {
				failure = nil
				continue
			}
			response.FailedIDs = append(response.FailedIDs, ids...)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			*resultErrors = append(*resultErrors, err)
			if response.ErrorMsg == "" {
				response.ErrorMsg = err.Error()
			}
			logger.CtxError(ctx, log_messages.ErrorPublishingToKafka, err)
		case <-ctx.Done():
			return
		}
	}
}

func (ks *KafkaRetryService) processDocumentsWorker(ctx context.Context, ch retryChannels) {
	maxBatchSize := ks.workerConfig.MaxBatchSize
	if maxBatchSize < 1 {
		maxBatchSize = 1
	}
	flushInterval := ks.workerConfig.FlushInterval
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	batch := make([]storemodels.HistoryWithInstallment, 0, maxBatchSize)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case doc, ok := <-ch.docs:
			if !ok {
				ks.processAndPublishBatch(ctx, batch, ch)
				return
			}
			batch = append(batch, doc)
			if len(batch) >= maxBatchSize {
				ks.processAndPublishBatch(ctx, batch, ch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				ks.processAndPublishBatch(ctx, batch, ch)
				batch = batch[:0]
			}
		case <-ctx.Done():
			if len(batch) > 0 {
				ks.processAndPublishBatch(ctx, batch, ch)
			}
			return
		}
	}
}

func (ks *KafkaRetryService) processAndPublishBatch(ctx context.Context, batch []storemodels.HistoryWithInstallment,
	ch retryChannels) {
	if len(batch) == 0 {
		return
	}

	successIDs := make([]string, 0, len(batch))
	failedIDs := make([]string, 0, len(batch))
	for _, doc := range batch {
		if err := ks.publisher.PublishLedgerEvent(ctx, doc.ToHistory(), doc.SequenceNumber, doc.TotalInSeries); err != nil {
			failedIDs = append(failedIDs, doc.ID.Hex())
			select {
			case ch.errs <- err:
			case <-ctx.Done():
				return
			default:
				logger.CtxError(ctx, log_messages.ErrorChannelFull, err)
			}
			continue
		}
		successIDs = append(successIDs, doc.ID.Hex())
	}

	if len(successIDs) > 0 {
		select {
		case ch.success <- successIDs:
		case <-ctx.Done():
			return
		}
		failedUpdateIDs, err := ks.HistoryRepo.UpdatePublishedToKafkaInBulk(ctx, successIDs)
		if err != nil {
			logger.CtxError(ctx, log_messages.ErrorUpdatingKafkaFlag, err, slog.Any("successIDs", successIDs))
			select {
			case ch.errs <- fmt.Errorf("%s: %w", log_messages.ErrorUpdatingKafkaFlag, err):
			case <-ctx.Done():
				return
			}
		} else if len(failedUpdateIDs) > 0 {
			logger.CtxWarn(ctx, log_messages.ErrorUpdatingKafkaFlag, slog.Any("failedUpdateIDs", failedUpdateIDs))
		}
	}

	if len(failedIDs) > 0 {
		select {
		case ch.failure <- failedIDs:
		case <-ctx.Done():
		}
	}
}
