package savings

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"installment-ledger/internal/pkg/common"
	"installment-ledger/internal/pkg/consts"
	"installment-ledger/internal/pkg/error_handling"
	"installment-ledger/internal/pkg/log_messages"
	"installment-ledger/internal/pkg/logger"
	"installment-ledger/internal/pkg/models"
	"installment-ledger/internal/pkg/otel"
	storemodels "installment-ledger/internal/pkg/store/models"
	"installment-ledger/internal/service/events"
	"installment-ledger/internal/service/interfaces"
	"installment-ledger/internal/service/ledger"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
)

type SavingsService struct {
	installments interfaces.InstallmentsRepositoryInterface
	members      interfaces.MembersRepositoryInterface
	history      interfaces.CollectionHistoryRepoInterface
	savings      interfaces.SavingsRepositoryInterface
	inProgress   interfaces.DeductionsInProgressRepoInterface
	archive      interfaces.GcsInterface
	executor     *ledger.Executor
	dispatcher   *events.Dispatcher
	loc          *time.Location
	sweepWorkers int
	sweepBuffer  int
	now          func() time.Time
}

type SweepOptions struct {
	WorkerCount int
	BufferSize  int
}

func NewSavingsService(
	installments interfaces.InstallmentsRepositoryInterface,
	members interfaces.MembersRepositoryInterface,
	history interfaces.CollectionHistoryRepoInterface,
	savings interfaces.SavingsRepositoryInterface,
	inProgress interfaces.DeductionsInProgressRepoInterface,
	archive interfaces.GcsInterface,
	executor *ledger.Executor,
	dispatcher *events.Dispatcher,
	loc *time.Location,
	sweep SweepOptions,
) *SavingsService {
	if loc == nil {
		loc = time.UTC
	}
	return &SavingsService{
		installments: installments,
		members:      members,
		history:      history,
		savings:      savings,
		inProgress:   inProgress,
		archive:      archive,
		executor:     executor,
		dispatcher:   dispatcher,
		loc:          loc,
		sweepWorkers: sweep.WorkerCount,
		sweepBuffer:  sweep.BufferSize,
		now:          time.Now,
	}
}

// otherProducts lists product names of the member's unpaid installments outside loanGroupID.
func (s *SavingsService) otherProducts(ctx context.Context, memberID primitive.ObjectID,
	loanGroupID string) ([]string, error) {
	unpaid, err := s.installments.FindUnpaidByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var products []string
	for _, inst := range unpaid {
		if inst.LoanGroupID == loanGroupID || inst.ProductName == "" || seen[inst.ProductName] {
			continue
		}
		seen[inst.ProductName] = true
		products = append(products, inst.ProductName)
	}
	return products, nil
}

func (s *SavingsService) earmarkFor(ctx context.Context, memberID primitive.ObjectID,
	group LoanGroupRef) (Earmark, error) {
	entries, err := s.savings.FindByMember(ctx, memberID)
	if err != nil {
		return Earmark{}, err
	}
	others, err := s.otherProducts(ctx, memberID, group.LoanGroupID)
	if err != nil {
		return Earmark{}, err
	}
	return ComputeEarmark(entries, group, others), nil
}

type deduction struct {
	result    *models.DeductionResult
	event     events.LedgerEvent
	memberID  primitive.ObjectID
	completed bool
}

// ProcessAutoDeduction pays an overdue installment from the savings earmarked for its loan
// group. Overdue means due before the calendar day of date. No cascade is applied.
func (s *SavingsService) ProcessAutoDeduction(ctx context.Context, memberID, installmentID primitive.ObjectID,
	date time.Time) (*models.DeductionResult, error) {
	ctx, span := otel.StartSpan(ctx, "savings.ProcessAutoDeduction")
	defer span.End()

	inst, err := s.installments.GetByID(ctx, installmentID)
	if err != nil {
		return nil, err
	}
	if inst.MemberID != memberID {
		return nil, error_handling.NewValidationError("memberId", "installment belongs to another member")
	}
	span.SetAttributes(attribute.String("loanGroupId", inst.LoanGroupID))

	var d *deduction
	err = s.executor.Run(ctx, storemodels.LoanGroupLockKey(inst.LoanGroupID), inst.LoanGroupID,
		func(txCtx context.Context) error {
			out, err := s.deduct(txCtx, memberID, installmentID, date)
			d = out
			return err
		})
	if err != nil {
		if error_handling.IsInsufficientSavings(err) {
			logger.CtxInfo(ctx, log_messages.NoEarmarkedSavingsForOverdue,
				slog.String("memberId", memberID.Hex()),
				slog.String("installmentId", installmentID.Hex()))
		}
		return nil, err
	}

	logger.CtxInfo(ctx, log_messages.SavingsDeducted,
		slog.String("memberId", memberID.Hex()),
		slog.String("installmentId", installmentID.Hex()),
		slog.String("amount", d.result.Amount.String()))

	s.dispatcher.PublishLedgerEvents(ctx, []events.LedgerEvent{d.event})
	s.dispatcher.Notify(ctx, common.SerializeNotification(consts.NotificationSavingsDeducted, d.event.Entry))
	if d.completed {
		s.dispatcher.Notify(ctx, models.NotificationMessage{
			Event:       consts.NotificationLoanCompleted,
			MemberID:    memberID.Hex(),
			LoanGroupID: inst.LoanGroupID,
			Amount:      decimal.Zero,
			OccurredAt:  s.now(),
		})
		s.OnLoanGroupCompleted(ctx, memberID, inst.LoanGroupID)
	}
	return d.result, nil
}

func (s *SavingsService) deduct(ctx context.Context, memberID, installmentID primitive.ObjectID,
	date time.Time) (*deduction, error) {
	inst, err := s.installments.GetByID(ctx, installmentID)
	if err != nil {
		return nil, err
	}
	if !inst.Counted() || !inst.Status.Unpaid() {
		return nil, error_handling.NewValidationError("installmentId",
			fmt.Sprintf("installment in status %s is not outstanding", inst.Status))
	}
	if !inst.DueDate.Before(common.StartOfDay(date, s.loc)) {
		return nil, error_handling.NewValidationError("installmentId", "installment is not overdue")
	}

	member, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	earmark, err := s.earmarkFor(ctx, memberID, LoanGroupRef{LoanGroupID: inst.LoanGroupID, ProductName: inst.ProductName})
	if err != nil {
		return nil, err
	}

	amount := ledger.Remaining(inst)
	for _, limit := range []decimal.Decimal{earmark.Balance, member.TotalSavings} {
		if limit.LessThan(amount) {
			amount = limit
		}
	}
	if !amount.IsPositive() {
		return nil, &error_handling.InsufficientSavingsError{MemberID: memberID.Hex(), LoanGroupID: inst.LoanGroupID}
	}

	group, err := s.installments.FindByLoanGroup(ctx, inst.LoanGroupID)
	if err != nil {
		return nil, err
	}
	before := ledger.CloneGroup(group)
	after := ledger.CloneGroup(group)
	var target *storemodels.Installment
	for i := range after {
		if after[i].ID == installmentID {
			target = &after[i]
			break
		}
	}
	if target == nil {
		return nil, error_handling.NewInconsistentLedgerStateError(inst.LoanGroupID,
			"installment missing from its loan group", nil)
	}

	now := s.now()
	event := storemodels.PaymentEvent{Date: now, CollectorID: target.CollectorID, Method: storemodels.PaymentMethodSavings}
	if err := ledger.ApplyPayment(target, amount, event, s.loc); err != nil {
		return nil, err
	}
	target.IsAutoApplied = true
	target.ReceiptNumber = ""
	outstanding := ledger.Outstanding(after)
	target.OutstandingAtCollection = outstanding

	if err := ledger.CheckInvariants(inst.LoanGroupID, before, after); err != nil {
		return nil, err
	}
	if err := s.installments.UpdateWithRevision(ctx, target); err != nil {
		return nil, err
	}

	withdrawal := &storemodels.SavingsEntry{
		MemberID: memberID,
		Type:     storemodels.SavingsWithdrawal,
		Amount:   amount,
		Date:     now,
	}
	tagWithdrawal(withdrawal, earmark, inst.LoanGroupID)
	if _, err := s.savings.CreateEntry(ctx, withdrawal); err != nil {
		return nil, err
	}

	entries := []storemodels.CollectionHistory{common.SerializeHistoryEntry(target, amount,
		storemodels.EntryTypeSavingsDeduction, storemodels.PaymentMethodSavings, "", outstanding, target.CollectorID, now)}
	if _, err := s.history.CreateEntries(ctx, entries); err != nil {
		return nil, err
	}

	if _, err := s.members.ApplyAggregateDelta(ctx, memberID, storemodels.MemberAggregateDelta{
		TotalPaid:       amount,
		TotalSavings:    amount.Neg(),
		LastPaymentDate: &now,
	}); err != nil {
		return nil, err
	}

	completed := ledger.Completed(after)
	return &deduction{
		result: &models.DeductionResult{
			MemberID:      memberID.Hex(),
			InstallmentID: installmentID.Hex(),
			LoanGroupID:   inst.LoanGroupID,
			Amount:        amount,
			Status:        models.DeductionStatusDeducted,
			Completed:     completed,
		},
		event:     events.LedgerEvent{Entry: entries[0], SequenceNumber: target.SequenceNumber, TotalInSeries: target.TotalInSeries},
		memberID:  memberID,
		completed: completed,
	}, nil
}

// OnLoanGroupCompleted is the completion hook; it never fails the caller.
func (s *SavingsService) OnLoanGroupCompleted(ctx context.Context, memberID primitive.ObjectID, loanGroupID string) {
	if _, err := s.TransferOnCompletion(ctx, memberID, loanGroupID); err != nil {
		logger.CtxError(ctx, log_messages.CompletionTransferFailed, err,
			slog.String("memberId", memberID.Hex()),
			slog.String("loanGroupId", loanGroupID))
	}
}

// ReasonLegacySavings is reported when the completed group only has the shared legacy pool.
const ReasonLegacySavings = "legacy savings are not earmarked to the loan group"

// TransferOnCompletion moves the savings still earmarked for a completed loan group to the
// member's oldest other active group. It appends one transfer entry and never edits the
// originals, so a second call finds nothing left to move.
func (s *SavingsService) TransferOnCompletion(ctx context.Context, memberID primitive.ObjectID,
	completedGroupID string) (*models.TransferResult, error) {
	ctx, span := otel.StartSpan(ctx, "savings.TransferOnCompletion")
	defer span.End()

	result := &models.TransferResult{
		MemberID:          memberID.Hex(),
		SourceLoanGroupID: completedGroupID,
		Amount:            decimal.Zero,
	}
	var event *events.LedgerEvent
	err := s.executor.Run(ctx, storemodels.MemberLockKey(memberID.Hex()), completedGroupID,
		func(txCtx context.Context) error {
			result.Transferred, result.TargetLoanGroupID, result.Reason = false, "", ""
			result.Amount = decimal.Zero
			ev, err := s.transfer(txCtx, memberID, completedGroupID, result)
			event = ev
			return err
		})
	if err != nil {
		return nil, err
	}
	if event == nil {
		logger.CtxInfo(ctx, log_messages.NoSavingsTransferredOnCompletion,
			slog.String("loanGroupId", completedGroupID), slog.String("reason", result.Reason))
		return result, nil
	}

	logger.CtxInfo(ctx, log_messages.SavingsTransferred,
		slog.String("memberId", memberID.Hex()),
		slog.String("sourceLoanGroupId", completedGroupID),
		slog.String("targetLoanGroupId", result.TargetLoanGroupID),
		slog.String("amount", result.Amount.String()))
	s.dispatcher.PublishLedgerEvents(ctx, []events.LedgerEvent{*event})
	return result, nil
}

func (s *SavingsService) transfer(ctx context.Context, memberID primitive.ObjectID, completedGroupID string,
	result *models.TransferResult) (*events.LedgerEvent, error) {
	group, err := s.installments.FindByLoanGroup(ctx, completedGroupID)
	if err != nil {
		return nil, err
	}
	if len(group) == 0 {
		return nil, error_handling.NewNotFoundError("loan group", "loanGroupId", completedGroupID)
	}
	if group[0].MemberID != memberID {
		return nil, error_handling.NewValidationError("memberId", "loan group belongs to another member")
	}
	if !ledger.Completed(group) {
		result.Reason = "loan group is not completed"
		return nil, nil
	}

	earmark, err := s.earmarkFor(ctx, memberID, LoanGroupRef{LoanGroupID: completedGroupID, ProductName: group[0].ProductName})
	if err != nil {
		return nil, err
	}
	if earmark.Tier == TierLegacy {
		result.Reason = ReasonLegacySavings
		return nil, nil
	}
	if !earmark.Balance.IsPositive() {
		result.Reason = "no earmarked savings left"
		return nil, nil
	}

	active, err := s.installments.ActiveLoanGroupIDs(ctx, memberID)
	if err != nil {
		return nil, err
	}
	targetID := ""
	for _, id := range active {
		if id != completedGroupID {
			targetID = id
			break
		}
	}
	if targetID == "" {
		result.Reason = "no other active loan group"
		return nil, nil
	}
	targetGroup, err := s.installments.FindByLoanGroup(ctx, targetID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	transfer := &storemodels.SavingsEntry{
		MemberID:          memberID,
		LoanGroupID:       targetID,
		SourceLoanGroupID: completedGroupID,
		Type:              storemodels.SavingsTransfer,
		Amount:            earmark.Balance,
		Description:       fmt.Sprintf("earmark transfer from %s", completedGroupID),
		Date:              now,
	}
	if earmark.Tier == TierProduct {
		transfer.SourceToken = earmark.Token
	}
	if _, err := s.savings.CreateEntry(ctx, transfer); err != nil {
		return nil, err
	}

	entry := storemodels.CollectionHistory{
		MemberID:          memberID,
		CollectorID:       group[0].CollectorID,
		BranchID:          group[0].BranchID,
		LoanGroupID:       targetID,
		SourceLoanGroupID: completedGroupID,
		Amount:            earmark.Balance,
		Date:              now,
		OutstandingAfter:  ledger.Outstanding(targetGroup),
		EntryType:         storemodels.EntryTypeSavingsTransfer,
		PaymentMethod:     storemodels.PaymentMethodSavings,
		CreatedAt:         now,
	}
	entries := []storemodels.CollectionHistory{entry}
	if _, err := s.history.CreateEntries(ctx, entries); err != nil {
		return nil, err
	}

	result.Transferred = true
	result.TargetLoanGroupID = targetID
	result.Amount = earmark.Balance
	return &events.LedgerEvent{Entry: entries[0]}, nil
}
