package loan

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"installment-ledger/internal/pkg/common"
	"installment-ledger/internal/pkg/error_handling"
	"installment-ledger/internal/pkg/log_messages"
	"installment-ledger/internal/pkg/logger"
	"installment-ledger/internal/pkg/models"
	"installment-ledger/internal/pkg/otel"
	storemodels "installment-ledger/internal/pkg/store/models"
	"installment-ledger/internal/service/interfaces"
	"installment-ledger/internal/service/ledger"
	"installment-ledger/internal/service/schedule"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
)

type LoanService struct {
	installments interfaces.InstallmentsRepositoryInterface
	members      interfaces.MembersRepositoryInterface
	calendars    *schedule.CalendarLoader
	ledger       *ledger.LedgerService
	executor     *ledger.Executor
	rules        schedule.Rules
	loc          *time.Location
	now          func() time.Time
	newGroupID   func() string
}

func NewLoanService(
	installments interfaces.InstallmentsRepositoryInterface,
	members interfaces.MembersRepositoryInterface,
	calendars *schedule.CalendarLoader,
	ledgerService *ledger.LedgerService,
	executor *ledger.Executor,
	rules schedule.Rules,
	loc *time.Location,
) *LoanService {
	if loc == nil {
		loc = time.UTC
	}
	return &LoanService{
		installments: installments,
		members:      members,
		calendars:    calendars,
		ledger:       ledgerService,
		executor:     executor,
		rules:        rules,
		loc:          loc,
		now:          time.Now,
		newGroupID:   uuid.NewString,
	}
}

func parseID(field, value string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(value)
	if err != nil {
		return primitive.NilObjectID, error_handling.NewValidationError(field, "must be a 24 character hex id")
	}
	return id, nil
}

// installmentAmount settles the per-installment amount. Without an explicit amount the
// principal is split evenly, rounding each share up to the cent.
func installmentAmount(req *models.GenerateScheduleRequest) (decimal.Decimal, error) {
	count := decimal.NewFromInt(int64(req.InstallmentCount))
	amount := req.InstallmentAmount
	if amount.IsZero() && req.Principal.IsPositive() {
		amount = req.Principal.Div(count).RoundCeil(2)
	}
	if !amount.IsPositive() {
		return decimal.Zero, error_handling.NewValidationError("installmentAmount", "must be positive")
	}
	if !amount.Equal(amount.Round(2)) {
		return decimal.Zero, error_handling.NewValidationError("installmentAmount", "at most two decimal places")
	}
	if req.Principal.IsNegative() {
		return decimal.Zero, error_handling.NewValidationError("principal", "must not be negative")
	}
	if req.Principal.IsPositive() && amount.Mul(count).LessThan(req.Principal) {
		return decimal.Zero, error_handling.NewValidationError("installmentAmount",
			fmt.Sprintf("%d x %s does not cover principal %s", req.InstallmentCount, amount, req.Principal))
	}
	return amount, nil
}

// GenerateLoanSchedule creates a new loan group for the member with due dates aligned to the
// collector's calendar. The member lock is held across the active-group check and the insert.
func (s *LoanService) GenerateLoanSchedule(ctx context.Context, req *models.GenerateScheduleRequest) (*models.ScheduleResult, error) {
	ctx, span := otel.StartSpan(ctx, "loan.GenerateLoanSchedule")
	defer span.End()

	memberID, err := parseID("memberId", req.MemberID)
	if err != nil {
		return nil, err
	}
	collectorID, err := parseID("collectorId", req.CollectorID)
	if err != nil {
		return nil, err
	}
	var branchID primitive.ObjectID
	if req.BranchID != "" {
		if branchID, err = parseID("branchId", req.BranchID); err != nil {
			return nil, err
		}
	}
	amount, err := installmentAmount(req)
	if err != nil {
		return nil, err
	}

	member, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if branchID.IsZero() {
		branchID = member.BranchID
	}

	calendar, err := s.calendars.Load(ctx, collectorID)
	if err != nil {
		return nil, err
	}
	frequency := storemodels.Frequency(req.Frequency)
	dueDates, err := schedule.GenerateDueDates(schedule.Input{
		InstallmentCount: req.InstallmentCount,
		Frequency:        frequency,
		Calendar:         calendar,
		SaleDate:         req.SaleDate,
		Now:              s.now(),
		Location:         s.loc,
		Rules:            s.rules,
	})
	if err != nil {
		return nil, err
	}

	groupID := s.newGroupID()
	span.SetAttributes(attribute.String("loanGroupId", groupID))
	var created []storemodels.Installment
	err = s.executor.Run(ctx, storemodels.MemberLockKey(memberID.Hex()), groupID, func(txCtx context.Context) error {
		out, err := s.ledger.CreateSeries(txCtx, ledger.SeriesSpec{
			LoanGroupID: groupID,
			MemberID:    memberID,
			CollectorID: collectorID,
			BranchID:    branchID,
			ProductName: req.ProductName,
			Description: req.Description,
			Amount:      amount,
			Frequency:   frequency,
			SaleDate:    common.StartOfDay(req.SaleDate, s.loc),
			DueDates:    dueDates,
		})
		created = out
		return err
	})
	if err != nil {
		if error_handling.IsTooManyActiveLoans(err) {
			logger.CtxWarn(ctx, log_messages.ActiveLoanGroupCapReached, slog.String("memberId", memberID.Hex()))
		}
		return nil, err
	}
	return &models.ScheduleResult{LoanGroupID: groupID, Installments: created}, nil
}

// RecalculateDueDates reschedules a loan group for a new collector. Only installments that can
// still receive money get new due dates; collected ones keep theirs. The group is left untouched
// when the merged dates would no longer increase with the sequence number.
func (s *LoanService) RecalculateDueDates(ctx context.Context, loanGroupID, collectorHex string) ([]storemodels.Installment, error) {
	ctx, span := otel.StartSpan(ctx, "loan.RecalculateDueDates")
	defer span.End()
	span.SetAttributes(attribute.String("loanGroupId", loanGroupID))

	collectorID, err := parseID("collectorId", collectorHex)
	if err != nil {
		return nil, err
	}
	calendar, err := s.calendars.Load(ctx, collectorID)
	if err != nil {
		return nil, err
	}

	var updated []storemodels.Installment
	err = s.executor.Run(ctx, storemodels.LoanGroupLockKey(loanGroupID), loanGroupID, func(txCtx context.Context) error {
		updated = nil
		group, err := s.ledger.FindByLoanGroup(txCtx, loanGroupID)
		if err != nil {
			return err
		}
		dueDates, err := schedule.GenerateDueDates(schedule.Input{
			InstallmentCount: group[0].TotalInSeries,
			Frequency:        group[0].Frequency,
			Calendar:         calendar,
			SaleDate:         group[0].SaleDate,
			Now:              s.now(),
			Location:         s.loc,
			Rules:            s.rules,
		})
		if err != nil {
			return err
		}
		var moved []*storemodels.Installment
		for i := range group {
			inst := &group[i]
			if !inst.Counted() || !inst.Status.Unpaid() {
				continue
			}
			if inst.SequenceNumber < 1 || inst.SequenceNumber > len(dueDates) {
				return error_handling.NewInconsistentLedgerStateError(loanGroupID,
					fmt.Sprintf("sequence %d outside series of %d", inst.SequenceNumber, len(dueDates)), nil)
			}
			inst.DueDate = dueDates[inst.SequenceNumber-1]
			inst.CollectorID = collectorID
			moved = append(moved, inst)
		}
		if err := mergedSeriesInOrder(group); err != nil {
			return err
		}
		for _, inst := range moved {
			if err := s.installments.UpdateWithRevision(txCtx, inst); err != nil {
				return err
			}
			updated = append(updated, *inst)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.CtxInfo(ctx, log_messages.DueDatesRecalculated,
		slog.String("loanGroupId", loanGroupID),
		slog.String("collectorId", collectorHex),
		slog.Int("updated", len(updated)))
	return updated, nil
}

// mergedSeriesInOrder checks the due dates of the live installments in sequence order.
func mergedSeriesInOrder(group []storemodels.Installment) error {
	live := make([]storemodels.Installment, 0, len(group))
	for _, inst := range group {
		if inst.Counted() {
			live = append(live, inst)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].SequenceNumber < live[j].SequenceNumber })
	dates := make([]time.Time, len(live))
	for i, inst := range live {
		dates[i] = inst.DueDate
	}
	if err := schedule.ValidateSeries(dates, len(dates)); err != nil {
		return error_handling.NewValidationError("collectorId",
			"new due dates would fall out of order with collected installments")
	}
	return nil
}

func (s *LoanService) GetActiveLoanGroupCount(ctx context.Context, memberHex string) (*models.ActiveLoanGroupCount, error) {
	memberID, err := parseID("memberId", memberHex)
	if err != nil {
		return nil, err
	}
	count, err := s.ledger.ActiveLoanGroupCount(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return &models.ActiveLoanGroupCount{MemberID: memberHex, Count: count, Limit: s.ledger.MaxActiveLoanGroups()}, nil
}
