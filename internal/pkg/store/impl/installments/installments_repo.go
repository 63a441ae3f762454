package installments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"installment-ledger/internal/pkg/consts"
	mongodb "installment-ledger/internal/pkg/db/mongo"
	"installment-ledger/internal/pkg/error_handling"
	"installment-ledger/internal/pkg/logger"
	"installment-ledger/internal/pkg/store/models"
	"installment-ledger/internal/pkg/store/repository"
	"installment-ledger/internal/service/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var unpaidStatuses = []models.InstallmentStatus{models.StatusPending, models.StatusPartial, models.StatusMissed}

// InstallmentsRepository implements the InstallmentsRepositoryInterface
type InstallmentsRepository struct {
	repo         *repository.MongoRepository[models.Installment]
	createMany   func(ctx context.Context, documents []interface{}) (*mongo.InsertManyResult, error)
	findOne      func(ctx context.Context, filter interface{}, opts *options.FindOneOptions) (models.Installment, error)
	find         func(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Installment, error)
	updateRaw    func(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error)
	aggregateAll func(ctx context.Context, pipeline interface{}, result interface{}) error
}

// Ensure InstallmentsRepository implements the InstallmentsRepositoryInterface
var _ interfaces.InstallmentsRepositoryInterface = (*InstallmentsRepository)(nil)

func NewInstallmentsRepository(client *mongodb.MongoClient) *InstallmentsRepository {
	collection := client.Database.Collection(consts.InstallmentsCollection)
	return NewInstallmentsRepositoryWithInterface(collection)
}

func NewInstallmentsRepositoryWithInterface(collection interfaces.MongoRepositoryInterface) *InstallmentsRepository {
	repo := repository.NewMongoRepository[models.Installment](collection)
	return &InstallmentsRepository{
		repo:         repo,
		createMany:   repo.CreateMany,
		findOne:      repo.FindOne,
		find:         repo.Find,
		updateRaw:    repo.UpdateOneRaw,
		aggregateAll: repo.AggregateAll,
	}
}

func (r *InstallmentsRepository) CreateSeries(ctx context.Context,
	series []models.Installment) ([]models.Installment, error) {

	docs := make([]interface{}, len(series))
	for i := range series {
		if series[i].ID.IsZero() {
			series[i].ID = primitive.NewObjectID()
		}
		docs[i] = series[i]
	}

	if _, err := r.createMany(ctx, docs); err != nil {
		logger.CtxError(ctx, "Failed to insert installment series", err,
			slog.Int("count", len(series)))
		return nil, err
	}
	return series, nil
}

func (r *InstallmentsRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Installment, error) {
	inst, err := r.findOne(ctx, bson.M{"_id": id}, options.FindOne())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, error_handling.NewNotFoundError("installment", "id", id.Hex())
		}
		logger.CtxError(ctx, "Error fetching installment", err, slog.String("installmentId", id.Hex()))
		return nil, err
	}
	return &inst, nil
}

func (r *InstallmentsRepository) GetByLoanGroupAndSequence(ctx context.Context, loanGroupID string,
	sequence int) (*models.Installment, error) {
	filter := bson.M{"loanGroupId": loanGroupID, "sequenceNumber": sequence, "isActive": true}
	inst, err := r.findOne(ctx, filter, options.FindOne())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, error_handling.NewNotFoundError("installment", "loanGroupId/sequenceNumber",
				fmt.Sprintf("%s/%d", loanGroupID, sequence))
		}
		logger.CtxError(ctx, "Error fetching installment by sequence", err,
			slog.String("loanGroupId", loanGroupID), slog.Int("sequenceNumber", sequence))
		return nil, err
	}
	return &inst, nil
}

func (r *InstallmentsRepository) FindByLoanGroup(ctx context.Context, loanGroupID string) ([]models.Installment, error) {
	filter := bson.M{"loanGroupId": loanGroupID, "isActive": true}
	opts := options.Find().SetSort(bson.D{{Key: "sequenceNumber", Value: 1}})
	result, err := r.find(ctx, filter, opts)
	if err != nil {
		logger.CtxError(ctx, "Error fetching loan group installments", err, slog.String("loanGroupId", loanGroupID))
		return nil, err
	}
	return result, nil
}

func (r *InstallmentsRepository) FindUnpaidByMember(ctx context.Context,
	memberID primitive.ObjectID) ([]models.Installment, error) {
	filter := bson.M{
		"memberId": memberID,
		"isActive": true,
		"status":   bson.M{"$in": unpaidStatuses},
	}
	opts := options.Find().SetSort(bson.D{{Key: "dueDate", Value: 1}, {Key: "sequenceNumber", Value: 1}})
	result, err := r.find(ctx, filter, opts)
	if err != nil {
		logger.CtxError(ctx, "Error fetching outstanding installments", err, slog.String("memberId", memberID.Hex()))
		return nil, err
	}
	return result, nil
}

func (r *InstallmentsRepository) FindOverdue(ctx context.Context, before time.Time) ([]models.Installment, error) {
	filter := bson.M{
		"isActive": true,
		"status":   bson.M{"$in": unpaidStatuses},
		"dueDate":  bson.M{"$lt": before},
	}
	opts := options.Find().SetSort(bson.D{
		{Key: "memberId", Value: 1},
		{Key: "dueDate", Value: 1},
		{Key: "sequenceNumber", Value: 1},
	})
	result, err := r.find(ctx, filter, opts)
	if err != nil {
		logger.CtxError(ctx, "Error fetching overdue installments", err, slog.Time("before", before))
		return nil, err
	}
	return result, nil
}

type loanGroupOutstanding struct {
	LoanGroupID string `bson:"_id"`
}

func activeLoanGroupsPipeline(memberID primitive.ObjectID) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "memberId", Value: memberID},
			{Key: "isActive", Value: true},
			{Key: "status", Value: bson.D{{Key: "$ne", Value: models.StatusCancelled}}},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$loanGroupId"},
			{Key: "outstanding", Value: bson.D{{Key: "$sum", Value: "$remainingAmount"}}},
			{Key: "createdAt", Value: bson.D{{Key: "$min", Value: "$createdAt"}}},
		}}},
		{{Key: "$match", Value: bson.D{{Key: "outstanding", Value: bson.D{{Key: "$gt", Value: 0}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}}},
	}
}

func (r *InstallmentsRepository) ActiveLoanGroupIDs(ctx context.Context, memberID primitive.ObjectID) ([]string, error) {
	var groups []loanGroupOutstanding
	if err := r.aggregateAll(ctx, activeLoanGroupsPipeline(memberID), &groups); err != nil {
		logger.CtxError(ctx, "Error aggregating active loan groups", err, slog.String("memberId", memberID.Hex()))
		return nil, err
	}

	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.LoanGroupID)
	}
	return ids, nil
}

func (r *InstallmentsRepository) UpdateWithRevision(ctx context.Context, inst *models.Installment) error {
	now := time.Now()
	filter := bson.M{"_id": inst.ID, "revision": inst.Revision}
	update := bson.M{
		"$set": bson.M{
			"collectorId":             inst.CollectorID,
			"paidAmount":              inst.PaidAmount,
			"remainingAmount":         inst.RemainingAmount,
			"lastPaymentAmount":       inst.LastPaymentAmount,
			"status":                  inst.Status,
			"dueDate":                 inst.DueDate,
			"collectionDate":          inst.CollectionDate,
			"collectionWeek":          inst.CollectionWeek,
			"collectionMonth":         inst.CollectionMonth,
			"paymentHistory":          inst.PaymentHistory,
			"receiptNumber":           inst.ReceiptNumber,
			"isAutoApplied":           inst.IsAutoApplied,
			"outstandingAtCollection": inst.OutstandingAtCollection,
			"isActive":                inst.IsActive,
			"updatedAt":               now,
		},
		"$inc": bson.M{"revision": 1},
	}

	result, err := r.updateRaw(ctx, filter, update)
	if err != nil {
		logger.CtxError(ctx, "Failed to update installment", err, slog.String("installmentId", inst.ID.Hex()))
		return err
	}
	if result.MatchedCount == 0 {
		logger.CtxWarn(ctx, "Installment revision mismatch",
			slog.String("installmentId", inst.ID.Hex()),
			slog.Int64("revision", inst.Revision))
		return error_handling.ErrStaleRevision
	}

	inst.Revision++
	inst.UpdatedAt = now
	return nil
}
