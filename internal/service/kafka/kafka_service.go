package kafka

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"

	"installment-ledger/internal/pkg/log_messages"
	"installment-ledger/internal/pkg/logger"
	"installment-ledger/internal/pkg/store/models"
	"installment-ledger/internal/service/interfaces"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const eventTimeFormat = "01/02/2006 15:04"

// LedgerKafkaService publishes one CSV record per ledger movement.
type LedgerKafkaService struct {
	KafkaProducer interfaces.KafkaProducerInterface
}

var _ interfaces.LedgerEventPublisherInterface = (*LedgerKafkaService)(nil)

func NewLedgerKafkaService(producer interfaces.KafkaProducerInterface) *LedgerKafkaService {
	return &LedgerKafkaService{
		KafkaProducer: producer,
	}
}

func (s *LedgerKafkaService) PublishLedgerEvent(ctx context.Context, entry models.CollectionHistory,
	sequenceNumber, totalInSeries int) error {
	data, err := FormatLedgerEventAsCsvBytes(entry, sequenceNumber, totalInSeries)
	if err != nil {
		logger.CtxError(ctx, log_messages.FailedToWriteRecordToCSV, err, slog.String("historyId", entry.ID.Hex()))
		return err
	}
	if err := s.KafkaProducer.Publish(ctx, data); err != nil {
		logger.CtxError(ctx, log_messages.ErrorPublishingToKafka, err,
			slog.String("historyId", entry.ID.Hex()),
			slog.String("entryType", string(entry.EntryType)))
		return err
	}
	logger.CtxDebug(ctx, log_messages.LedgerEventPublished, slog.String("historyId", entry.ID.Hex()))
	return nil
}

func hexOrEmpty(id primitive.ObjectID) string {
	if id.IsZero() {
		return ""
	}
	return id.Hex()
}

// FormatLedgerEventAsCsvBytes renders the downstream record layout. Amounts keep two decimals.
func FormatLedgerEventAsCsvBytes(entry models.CollectionHistory, sequenceNumber, totalInSeries int) ([]byte, error) {
	record := []string{
		entry.ID.Hex(),
		string(entry.EntryType),
		entry.Date.Format(eventTimeFormat),
		hexOrEmpty(entry.MemberID),
		hexOrEmpty(entry.CollectorID),
		hexOrEmpty(entry.BranchID),
		entry.LoanGroupID,
		hexOrEmpty(entry.InstallmentID),
		strconv.Itoa(sequenceNumber),
		strconv.Itoa(totalInSeries),
		string(entry.PaymentMethod),
		entry.Amount.StringFixed(2),
		entry.OutstandingAfter.StringFixed(2),
		entry.ReceiptNumber,
		entry.SourceLoanGroupID,
	}

	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)

	if err := writer.Write(record); err != nil {
		return nil, fmt.Errorf("error writing CSV record: %w", err)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("error flushing CSV writer: %w", err)
	}

	return bytes.TrimRight(buffer.Bytes(), "\n"), nil
}
