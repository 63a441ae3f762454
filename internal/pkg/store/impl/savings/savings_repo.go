package savings

import (
	"context"
	"log/slog"
	"time"

	"installment-ledger/internal/pkg/consts"
	mongodb "installment-ledger/internal/pkg/db/mongo"
	"installment-ledger/internal/pkg/logger"
	"installment-ledger/internal/pkg/store/models"
	"installment-ledger/internal/pkg/store/repository"
	"installment-ledger/internal/service/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SavingsRepository struct {
	repo   *repository.MongoRepository[models.SavingsEntry]
	create func(ctx context.Context, document interface{}) (*mongo.InsertOneResult, error)
	find   func(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.SavingsEntry, error)
}

var _ interfaces.SavingsRepositoryInterface = (*SavingsRepository)(nil)

func NewSavingsRepository(client *mongodb.MongoClient) *SavingsRepository {
	collection := client.Database.Collection(consts.SavingsCollection)
	repo := repository.NewMongoRepository[models.SavingsEntry](collection)
	return &SavingsRepository{
		repo:   repo,
		create: repo.Create,
		find:   repo.Find,
	}
}

// FindByMember returns the member's savings movements oldest first.
func (r *SavingsRepository) FindByMember(ctx context.Context, memberID primitive.ObjectID) ([]models.SavingsEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}})
	entries, err := r.find(ctx, bson.M{"memberId": memberID}, opts)
	if err != nil {
		logger.CtxError(ctx, "Error fetching savings entries", err, slog.String("memberId", memberID.Hex()))
		return nil, err
	}
	return entries, nil
}

func (r *SavingsRepository) CreateEntry(ctx context.Context, entry *models.SavingsEntry) (primitive.ObjectID, error) {
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if _, err := r.create(ctx, entry); err != nil {
		logger.CtxError(ctx, "Failed to create savings entry", err,
			slog.String("memberId", entry.MemberID.Hex()),
			slog.String("type", string(entry.Type)))
		return primitive.NilObjectID, err
	}
	logger.CtxInfo(ctx, "Created savings entry",
		slog.String("memberId", entry.MemberID.Hex()),
		slog.String("type", string(entry.Type)),
		slog.String("amount", entry.Amount.String()))
	return entry.ID, nil
}
