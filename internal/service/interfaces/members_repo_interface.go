package interfaces

import (
	"context"

	"installment-ledger/internal/pkg/store/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MembersRepositoryInterface interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Member, error)
	ApplyAggregateDelta(ctx context.Context, id primitive.ObjectID, delta models.MemberAggregateDelta) (*models.Member, error)
}
