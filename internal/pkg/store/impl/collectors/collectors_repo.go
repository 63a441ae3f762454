package collectors

import (
	"context"
	"errors"
	"log/slog"

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

type CollectorsRepository struct {
	repo    *repository.MongoRepository[models.Collector]
	findOne func(ctx context.Context, filter interface{}, opts *options.FindOneOptions) (models.Collector, error)
}

var _ interfaces.CollectorsRepositoryInterface = (*CollectorsRepository)(nil)

func NewCollectorsRepository(client *mongodb.MongoClient) *CollectorsRepository {
	collection := client.Database.Collection(consts.CollectorsCollection)
	repo := repository.NewMongoRepository[models.Collector](collection)
	return &CollectorsRepository{repo: repo, findOne: repo.FindOne}
}

func (r *CollectorsRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Collector, error) {
	opts := options.FindOne().SetProjection(bson.M{"name": 1, "branchId": 1, "assignedDay": 1, "visitDates": 1})
	collector, err := r.findOne(ctx, bson.M{"_id": id}, opts)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, error_handling.NewNotFoundError("collector", "id", id.Hex())
		}
		logger.CtxError(ctx, "Error fetching collector", err, slog.String("collectorId", id.Hex()))
		return nil, err
	}
	return &collector, nil
}
