package interfaces

import (
	"context"
	"time"

	"installment-ledger/internal/pkg/store/models"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// CollectionHistoryRepoInterface defines the append-only audit trail operations
type CollectionHistoryRepoInterface interface {
	CreateEntries(ctx context.Context, entries []models.CollectionHistory) ([]primitive.ObjectID, error)
	ExistsForDay(ctx context.Context, memberID, installmentID primitive.ObjectID, amount decimal.Decimal,
		dayStart, dayEnd time.Time) (bool, error)
	ExistsByReceipt(ctx context.Context, memberID primitive.ObjectID, receiptNumber string) (bool, error)
	SumPaidByMember(ctx context.Context, memberID primitive.ObjectID) (decimal.Decimal, error)
	UpdatePublishToKafka(ctx context.Context, id primitive.ObjectID) error
	UpdatePublishedToKafkaInBulk(ctx context.Context, historyIDs []string) ([]string, error)
	GetUnpublishedEntriesCursor(ctx context.Context, since string, batchSize int32) (*mongo.Cursor, error)
}
