package interfaces

import (
	"context"
	"time"

	"installment-ledger/internal/pkg/store/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InstallmentsRepositoryInterface defines persistence of installment records
type InstallmentsRepositoryInterface interface {
	CreateSeries(ctx context.Context, installments []models.Installment) ([]models.Installment, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Installment, error)
	GetByLoanGroupAndSequence(ctx context.Context, loanGroupID string, sequence int) (*models.Installment, error)
	// FindByLoanGroup returns the active installments of a group ordered by sequence number.
	FindByLoanGroup(ctx context.Context, loanGroupID string) ([]models.Installment, error)
	FindUnpaidByMember(ctx context.Context, memberID primitive.ObjectID) ([]models.Installment, error)
	// FindOverdue returns unpaid active installments due strictly before the given instant.
	FindOverdue(ctx context.Context, before time.Time) ([]models.Installment, error)
	// ActiveLoanGroupIDs lists groups with positive outstanding, oldest first.
	ActiveLoanGroupIDs(ctx context.Context, memberID primitive.ObjectID) ([]string, error)
	// UpdateWithRevision writes the record only if its stored revision still matches,
	// and bumps the revision on success.
	UpdateWithRevision(ctx context.Context, installment *models.Installment) error
}
