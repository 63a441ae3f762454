package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"installment-ledger/internal/pkg/error_handling"
	"installment-ledger/internal/pkg/log_messages"
	"installment-ledger/internal/pkg/logger"
	"installment-ledger/internal/pkg/store/models"
	"installment-ledger/internal/service/interfaces"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SeriesSpec describes a new loan group. DueDates need not be sorted.
type SeriesSpec struct {
	LoanGroupID string
	MemberID    primitive.ObjectID
	CollectorID primitive.ObjectID
	BranchID    primitive.ObjectID
	ProductName string
	Description string
	Amount      decimal.Decimal
	Frequency   models.Frequency
	SaleDate    time.Time
	DueDates    []time.Time
}

type LedgerService struct {
	installments        interfaces.InstallmentsRepositoryInterface
	maxActiveLoanGroups int
	now                 func() time.Time
}

func NewLedgerService(installments interfaces.InstallmentsRepositoryInterface, maxActiveLoanGroups int) *LedgerService {
	return &LedgerService{
		installments:        installments,
		maxActiveLoanGroups: maxActiveLoanGroups,
		now:                 time.Now,
	}
}

func (s *LedgerService) MaxActiveLoanGroups() int {
	return s.maxActiveLoanGroups
}

// CreateSeries inserts one pending installment per due date. The caller must hold the
// member lock so the active-group count cannot change between the check and the insert.
func (s *LedgerService) CreateSeries(ctx context.Context, spec SeriesSpec) ([]models.Installment, error) {
	if spec.LoanGroupID == "" {
		return nil, error_handling.NewValidationError("loanGroupId", "is required")
	}
	if len(spec.DueDates) == 0 {
		return nil, error_handling.NewValidationError("dueDates", "at least one due date is required")
	}
	if !spec.Amount.IsPositive() {
		return nil, error_handling.NewValidationError("amount", "must be positive")
	}
	if !spec.Frequency.Valid() {
		return nil, error_handling.NewValidationError("frequency", fmt.Sprintf("unsupported frequency %q", spec.Frequency))
	}

	dueDates := append([]time.Time(nil), spec.DueDates...)
	sort.Slice(dueDates, func(i, j int) bool { return dueDates[i].Before(dueDates[j]) })
	for i := 1; i < len(dueDates); i++ {
		if dueDates[i].Equal(dueDates[i-1]) {
			return nil, error_handling.NewValidationError("dueDates", "due dates must be distinct")
		}
	}

	active, err := s.ActiveLoanGroupCount(ctx, spec.MemberID)
	if err != nil {
		return nil, err
	}
	if active >= s.maxActiveLoanGroups {
		return nil, &error_handling.TooManyActiveLoansError{
			MemberID: spec.MemberID.Hex(),
			Active:   active,
			Limit:    s.maxActiveLoanGroups,
		}
	}

	now := s.now()
	series := make([]models.Installment, 0, len(dueDates))
	for i, due := range dueDates {
		series = append(series, models.Installment{
			LoanGroupID:             spec.LoanGroupID,
			SequenceNumber:          i + 1,
			TotalInSeries:           len(dueDates),
			MemberID:                spec.MemberID,
			CollectorID:             spec.CollectorID,
			BranchID:                spec.BranchID,
			ProductName:             spec.ProductName,
			Description:             spec.Description,
			Amount:                  spec.Amount,
			PaidAmount:              decimal.Zero,
			RemainingAmount:         spec.Amount,
			LastPaymentAmount:       decimal.Zero,
			Status:                  models.StatusPending,
			DueDate:                 due,
			SaleDate:                spec.SaleDate,
			Frequency:               spec.Frequency,
			PaymentHistory:          []models.PaymentEvent{},
			OutstandingAtCollection: decimal.Zero,
			IsActive:                true,
			CreatedAt:               now,
			UpdatedAt:               now,
		})
	}

	created, err := s.installments.CreateSeries(ctx, series)
	if err != nil {
		return nil, err
	}
	logger.CtxInfo(ctx, log_messages.InstallmentSeriesCreated,
		slog.String("loanGroupId", spec.LoanGroupID),
		slog.String("memberId", spec.MemberID.Hex()),
		slog.Int("count", len(created)),
	)
	return created, nil
}

// FindOutstanding lists the member's installments that can still receive money.
func (s *LedgerService) FindOutstanding(ctx context.Context, memberID primitive.ObjectID) ([]models.Installment, error) {
	return s.installments.FindUnpaidByMember(ctx, memberID)
}

func (s *LedgerService) FindByLoanGroup(ctx context.Context, loanGroupID string) ([]models.Installment, error) {
	installments, err := s.installments.FindByLoanGroup(ctx, loanGroupID)
	if err != nil {
		return nil, err
	}
	if len(installments) == 0 {
		return nil, error_handling.NewNotFoundError("loan group", "loanGroupId", loanGroupID)
	}
	return installments, nil
}

// ActiveLoanGroupCount counts the member's loan groups with positive outstanding.
func (s *LedgerService) ActiveLoanGroupCount(ctx context.Context, memberID primitive.ObjectID) (int, error) {
	ids, err := s.installments.ActiveLoanGroupIDs(ctx, memberID)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// CancelInstallment soft-deletes an unpaid installment. It then drops out of every group total.
func (s *LedgerService) CancelInstallment(ctx context.Context, id primitive.ObjectID) (*models.Installment, error) {
	inst, err := s.installments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(inst.Status, models.StatusCancelled) {
		return nil, error_handling.NewValidationError("status",
			fmt.Sprintf("installment in status %s cannot be cancelled", inst.Status))
	}
	if inst.Status == models.StatusCancelled {
		return inst, nil
	}

	inst.Status = models.StatusCancelled
	inst.IsActive = false
	inst.UpdatedAt = s.now()
	if err := s.installments.UpdateWithRevision(ctx, inst); err != nil {
		return nil, err
	}
	return inst, nil
}
