package deductions_in_progress

import (
	"context"
	"errors"
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

// DeductionsInProgressRepository implements the DeductionsInProgressRepoInterface
type DeductionsInProgressRepository struct {
	repo    *repository.MongoRepository[models.DeductionsInProgress]
	findOne func(ctx context.Context,
		filter interface{}, opts *options.FindOneOptions) (models.DeductionsInProgress, error)
	create func(ctx context.Context, document interface{}) (*mongo.InsertOneResult, error)
	delete func(ctx context.Context, filter interface{}) error
}

// Ensure DeductionsInProgressRepository implements the DeductionsInProgressRepoInterface
var _ interfaces.DeductionsInProgressRepoInterface = (*DeductionsInProgressRepository)(nil)

func NewDeductionsInProgressRepository(client *mongodb.MongoClient) *DeductionsInProgressRepository {
	collection := client.Database.Collection(consts.DeductionsInProgressCollection)
	repo := repository.NewMongoRepository[models.DeductionsInProgress](collection)
	r := &DeductionsInProgressRepository{
		repo: repo,
	}
	r.findOne = repo.FindOne
	r.create = repo.Create
	r.delete = repo.Delete
	return r
}

func (r *DeductionsInProgressRepository) CheckEntryExists(ctx context.Context,
	memberID primitive.ObjectID) (bool, error) {
	filter := bson.M{"memberId": memberID}
	_, err := r.findOne(ctx, filter, options.FindOne())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		logger.CtxError(ctx, "Error checking deduction in progress", err, slog.String("memberId", memberID.Hex()))
		return false, err
	}
	return true, nil
}

// CreateEntry claims the member. EnsureIndexes puts a unique index on memberId, so a
// second claim surfaces as LedgerBusyError. A TTL index on createdAt drops orphaned claims.
func (r *DeductionsInProgressRepository) CreateEntry(ctx context.Context, memberID primitive.ObjectID) error {
	entry := models.DeductionsInProgress{
		MemberID:  memberID,
		CreatedAt: time.Now(),
	}
	_, err := r.create(ctx, entry)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return &error_handling.LedgerBusyError{Key: memberID.Hex(), Err: err}
		}
		logger.CtxError(ctx, "Failed to create deduction in progress entry", err,
			slog.String("memberId", memberID.Hex()))
		return err
	}
	logger.CtxDebug(ctx, "Created deduction in progress entry", slog.String("memberId", memberID.Hex()))
	return nil
}

func (r *DeductionsInProgressRepository) DeleteEntry(ctx context.Context, memberID primitive.ObjectID) error {
	filter := bson.M{"memberId": memberID}
	if err := r.delete(ctx, filter); err != nil {
		logger.CtxError(ctx, "Failed to delete deduction in progress entry", err,
			slog.String("memberId", memberID.Hex()))
		return err
	}
	return nil
}
