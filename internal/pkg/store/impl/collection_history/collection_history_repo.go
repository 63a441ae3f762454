package collection_history

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"installment-ledger/internal/pkg/consts"
	mongodb "installment-ledger/internal/pkg/db/mongo"
	"installment-ledger/internal/pkg/error_handling"
	"installment-ledger/internal/pkg/log_messages"
	"installment-ledger/internal/pkg/logger"
	"installment-ledger/internal/pkg/store/models"
	"installment-ledger/internal/pkg/store/repository"
	"installment-ledger/internal/service/interfaces"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionHistoryRepository implements the CollectionHistoryRepoInterface
type CollectionHistoryRepository struct {
	repo       *repository.MongoRepository[models.CollectionHistory]
	createMany func(ctx context.Context, documents []interface{}) (*mongo.InsertManyResult, error)
	count      func(ctx context.Context, filter interface{}) (int64, error)
	aggregate  func(ctx context.Context, pipeline interface{}, result interface{}) error
	updateOne  func(ctx context.Context, filter interface{}, update interface{}) error
	updateMany func(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error)
	find       func(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.CollectionHistory, error)
}

// Ensure CollectionHistoryRepository implements the CollectionHistoryRepoInterface
var _ interfaces.CollectionHistoryRepoInterface = (*CollectionHistoryRepository)(nil)

func NewCollectionHistoryRepository(client *mongodb.MongoClient) *CollectionHistoryRepository {
	collection := client.Database.Collection(consts.CollectionHistoryCollection)
	repo := repository.NewMongoRepository[models.CollectionHistory](collection)
	r := &CollectionHistoryRepository{
		repo: repo,
	}
	r.createMany = repo.CreateMany
	r.count = repo.CountDocuments
	r.aggregate = repo.Aggregate
	r.updateOne = repo.UpdateOne
	r.updateMany = repo.UpdateMany
	r.find = repo.Find
	return r
}

func (r *CollectionHistoryRepository) CreateEntries(ctx context.Context,
	entries []models.CollectionHistory) ([]primitive.ObjectID, error) {

	if len(entries) == 0 {
		return nil, nil
	}

	ids := make([]primitive.ObjectID, len(entries))
	docs := make([]interface{}, len(entries))
	for i := range entries {
		if entries[i].ID.IsZero() {
			entries[i].ID = primitive.NewObjectID()
		}
		ids[i] = entries[i].ID
		docs[i] = entries[i]
	}

	if _, err := r.createMany(ctx, docs); err != nil {
		// the only unique key on history is (memberId, receiptNumber) for collections
		if mongo.IsDuplicateKeyError(err) {
			return nil, &error_handling.DuplicateCollectionError{
				MemberID:      entries[0].MemberID.Hex(),
				InstallmentID: entries[0].InstallmentID.Hex(),
				ReceiptNumber: entries[0].ReceiptNumber,
			}
		}
		logger.CtxError(ctx, "Failed to create collection history entries", err,
			slog.String("memberId", entries[0].MemberID.Hex()))
		return nil, err
	}
	logger.CtxInfo(ctx, "Created collection history entries",
		slog.String("memberId", entries[0].MemberID.Hex()),
		slog.Int("count", len(entries)))
	return ids, nil
}

func (r *CollectionHistoryRepository) ExistsForDay(ctx context.Context, memberID, installmentID primitive.ObjectID,
	amount decimal.Decimal, dayStart, dayEnd time.Time) (bool, error) {

	filter := bson.M{
		"memberId":      memberID,
		"installmentId": installmentID,
		"entryType":     models.EntryTypeCollection,
		"amount":        amount,
		"date":          bson.M{"$gte": dayStart, "$lt": dayEnd},
	}
	n, err := r.count(ctx, filter)
	if err != nil {
		logger.CtxError(ctx, "Failed to look up same-day collection", err,
			slog.String("installmentId", installmentID.Hex()))
		return false, err
	}
	return n > 0, nil
}

func (r *CollectionHistoryRepository) ExistsByReceipt(ctx context.Context, memberID primitive.ObjectID,
	receiptNumber string) (bool, error) {

	if receiptNumber == "" {
		return false, nil
	}
	n, err := r.count(ctx, bson.M{"memberId": memberID, "receiptNumber": receiptNumber})
	if err != nil {
		logger.CtxError(ctx, "Failed to look up receipt", err, slog.String("receiptNumber", receiptNumber))
		return false, err
	}
	return n > 0, nil
}

type paidTotal struct {
	Total decimal.Decimal `bson:"total"`
}

func sumPaidPipeline(memberID primitive.ObjectID) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "memberId", Value: memberID},
			{Key: "entryType", Value: bson.D{{Key: "$in", Value: bson.A{
				models.EntryTypeCollection, models.EntryTypeSavingsDeduction,
			}}}},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$memberId"},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
		}}},
	}
}

// SumPaidByMember totals the money a member actually handed over. Cascade and
// transfer entries are re-allocations and are left out.
func (r *CollectionHistoryRepository) SumPaidByMember(ctx context.Context,
	memberID primitive.ObjectID) (decimal.Decimal, error) {

	var result paidTotal
	if err := r.aggregate(ctx, sumPaidPipeline(memberID), &result); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return decimal.Zero, nil
		}
		logger.CtxError(ctx, "Failed to sum member payments", err, slog.String("memberId", memberID.Hex()))
		return decimal.Zero, err
	}
	return result.Total, nil
}

func (r *CollectionHistoryRepository) UpdatePublishToKafka(ctx context.Context, id primitive.ObjectID) error {
	filter := bson.M{"_id": id}
	update := bson.M{"publishedToKafka": true}
	if err := r.updateOne(ctx, filter, update); err != nil {
		logger.CtxError(ctx, log_messages.ErrorUpdatingHistoryDocument, err)
		return err
	}
	logger.CtxInfo(ctx, log_messages.SuccessUpdatedHistoryDoc, slog.Any("historyId", id))
	return nil
}

func (r *CollectionHistoryRepository) UpdatePublishedToKafkaInBulk(ctx context.Context,
	historyIDs []string) ([]string, error) {

	objectIDs := make([]primitive.ObjectID, len(historyIDs))
	for i, id := range historyIDs {
		objectID, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			logger.CtxError(ctx, log_messages.InvalidObjectID, err)
			return nil, err
		}
		objectIDs[i] = objectID
	}

	filter := bson.M{"_id": bson.M{"$in": objectIDs}}
	update := bson.M{"$set": bson.M{"publishedToKafka": true}}

	updateResult, err := r.updateMany(ctx, filter, update)
	if err != nil {
		return nil, err
	}

	failedUpdateIDs := []string{}
	if updateResult.MatchedCount != int64(len(objectIDs)) {
		filterFailed := bson.M{
			"_id":              bson.M{"$in": objectIDs},
			"publishedToKafka": bson.M{"$ne": true},
		}
		failedUpdate, err := r.find(ctx, filterFailed)
		if err != nil {
			return nil, err
		}
		for i := range failedUpdate {
			failedUpdateIDs = append(failedUpdateIDs, failedUpdate[i].ID.Hex())
		}
	}
	if len(failedUpdateIDs) > 0 {
		logger.CtxInfo(ctx, log_messages.FailedToUpdateKafkaFlag, slog.Any("failedUpdateIDs", failedUpdateIDs))
	}
	return failedUpdateIDs, nil
}

// GetUnpublishedEntriesCursor streams entries created on or after since (yyyy-mm-dd)
// that never reached Kafka, joined with their installment's position in the series.
func (r *CollectionHistoryRepository) GetUnpublishedEntriesCursor(ctx context.Context,
	since string, batchSize int32) (*mongo.Cursor, error) {

	thresholdDate, err := time.Parse(consts.DateFormat, since)
	if err != nil {
		logger.CtxError(ctx, log_messages.InvalidDurationFormat, err)
		return nil, err
	}

	opts := options.Aggregate().SetBatchSize(batchSize)
	cursor, err := r.repo.GetCollection().Aggregate(ctx, unpublishedEntriesPipeline(thresholdDate), opts)
	if err != nil {
		logger.CtxError(ctx, log_messages.FailedToGetUnpublishedEvents, err)
		return nil, err
	}
	return cursor, nil
}

func unpublishedEntriesPipeline(thresholdDate time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "publishedToKafka", Value: false},
			{Key: "createdAt", Value: bson.D{{Key: "$gte", Value: thresholdDate}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: 1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: consts.InstallmentsCollection},
			{Key: "localField", Value: "installmentId"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "installment"},
		}}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "sequenceNumber", Value: bson.D{
				{Key: "$ifNull", Value: bson.A{
					bson.D{{Key: "$arrayElemAt", Value: bson.A{"$installment.sequenceNumber", 0}}}, 0,
				}},
			}},
			{Key: "totalInSeries", Value: bson.D{
				{Key: "$ifNull", Value: bson.A{
					bson.D{{Key: "$arrayElemAt", Value: bson.A{"$installment.totalInSeries", 0}}}, 0,
				}},
			}},
		}}},
		{{Key: "$project", Value: bson.D{{Key: "installment", Value: 0}}}},
	}
}
