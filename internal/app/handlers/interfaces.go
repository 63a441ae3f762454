package handlers

import (
	"context"
	"time"

	"installment-ledger/internal/pkg/models"
	storemodels "installment-ledger/internal/pkg/store/models"
	"installment-ledger/internal/service/collection"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type LoanServiceInterface interface {
	GenerateLoanSchedule(ctx context.Context, req *models.GenerateScheduleRequest) (*models.ScheduleResult, error)
	RecalculateDueDates(ctx context.Context, loanGroupID, collectorHex string) ([]storemodels.Installment, error)
	GetActiveLoanGroupCount(ctx context.Context, memberHex string) (*models.ActiveLoanGroupCount, error)
}

type InstallmentCancellerInterface interface {
	CancelInstallment(ctx context.Context, id primitive.ObjectID) (*storemodels.Installment, error)
}

type CollectionServiceInterface interface {
	Collect(ctx context.Context, req *collection.CollectionRequest) (*models.CollectionResult, error)
	ReconcileMemberAggregate(ctx context.Context, memberID primitive.ObjectID) (*models.ReconciliationReport, error)
}

type SavingsServiceInterface interface {
	ProcessAutoDeduction(ctx context.Context, memberID, installmentID primitive.ObjectID,
		date time.Time) (*models.DeductionResult, error)
	ProcessAllPendingDeductions(ctx context.Context, date time.Time) (*models.BatchResult, error)
	TransferOnCompletion(ctx context.Context, memberID primitive.ObjectID, loanGroupID string) (*models.TransferResult, error)
}
