package interfaces

import (
	"context"

	"installment-ledger/internal/pkg/store/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SavingsRepositoryInterface interface {
	FindByMember(ctx context.Context, memberID primitive.ObjectID) ([]models.SavingsEntry, error)
	CreateEntry(ctx context.Context, entry *models.SavingsEntry) (primitive.ObjectID, error)
}
