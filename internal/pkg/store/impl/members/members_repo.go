package members

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

type MembersRepository struct {
	repo             *repository.MongoRepository[models.Member]
	findOne          func(ctx context.Context, filter interface{}, opts *options.FindOneOptions) (models.Member, error)
	findOneAndUpdate func(ctx context.Context, filter interface{}, update interface{}) (models.Member, error)
}

var _ interfaces.MembersRepositoryInterface = (*MembersRepository)(nil)

func NewMembersRepository(client *mongodb.MongoClient) *MembersRepository {
	collection := client.Database.Collection(consts.MembersCollection)
	repo := repository.NewMongoRepository[models.Member](collection)
	return &MembersRepository{
		repo:             repo,
		findOne:          repo.FindOne,
		findOneAndUpdate: repo.FindOneAndUpdate,
	}
}

func (r *MembersRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Member, error) {
	member, err := r.findOne(ctx, bson.M{"_id": id}, options.FindOne())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, error_handling.NewNotFoundError("member", "id", id.Hex())
		}
		logger.CtxError(ctx, "Error fetching member", err, slog.String("memberId", id.Hex()))
		return nil, err
	}
	return &member, nil
}

// ApplyAggregateDelta increments the member totals in place and returns the updated member.
func (r *MembersRepository) ApplyAggregateDelta(ctx context.Context, id primitive.ObjectID,
	delta models.MemberAggregateDelta) (*models.Member, error) {

	set := bson.M{"updatedAt": time.Now()}
	if delta.LastPaymentDate != nil {
		set["lastPaymentDate"] = *delta.LastPaymentDate
	}
	update := bson.M{
		"$inc": bson.M{
			"totalPaid":    delta.TotalPaid,
			"totalSavings": delta.TotalSavings,
		},
		"$set": set,
	}

	member, err := r.findOneAndUpdate(ctx, bson.M{"_id": id}, update)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, error_handling.NewNotFoundError("member", "id", id.Hex())
		}
		logger.CtxError(ctx, "Failed to update member aggregates", err, slog.String("memberId", id.Hex()))
		return nil, err
	}

	logger.CtxDebug(ctx, "Applied member aggregate delta",
		slog.String("memberId", id.Hex()),
		slog.String("totalPaid", member.TotalPaid.String()),
		slog.String("totalSavings", member.TotalSavings.String()))
	return &member, nil
}
