package collection

import (
	"context"
	"log/slog"
	"strings"
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

// CompletionHook runs after a commit that left every installment of a loan group collected.
type CompletionHook func(ctx context.Context, memberID primitive.ObjectID, loanGroupID string)

type CollectionService struct {
	installments interfaces.InstallmentsRepositoryInterface
	members      interfaces.MembersRepositoryInterface
	history      interfaces.CollectionHistoryRepoInterface
	guard        *DuplicateGuard
	executor     *ledger.Executor
	dispatcher   *events.Dispatcher
	loc          *time.Location
	now          func() time.Time
	onComplete   CompletionHook
}

func NewCollectionService(
	installments interfaces.InstallmentsRepositoryInterface,
	members interfaces.MembersRepositoryInterface,
	history interfaces.CollectionHistoryRepoInterface,
	executor *ledger.Executor,
	dispatcher *events.Dispatcher,
	loc *time.Location,
) *CollectionService {
	if loc == nil {
		loc = time.UTC
	}
	return &CollectionService{
		installments: installments,
		members:      members,
		history:      history,
		guard:        NewDuplicateGuard(history, loc),
		executor:     executor,
		dispatcher:   dispatcher,
		loc:          loc,
		now:          time.Now,
	}
}

func (s *CollectionService) SetCompletionHook(hook CompletionHook) {
	s.onComplete = hook
}

type outcome struct {
	target    storemodels.Installment
	member    *storemodels.Member
	events    []events.LedgerEvent
	cascaded  []string
	completed bool
}

// Collect applies a cash collection: target first, then any overpayment down the loan group
// in sequence order. The whole event is one transaction under the loan-group lock.
func (s *CollectionService) Collect(ctx context.Context, req *CollectionRequest) (*models.CollectionResult, error) {
	ctx, span := otel.StartSpan(ctx, "collection.Collect")
	defer span.End()

	if err := req.validate(); err != nil {
		return nil, err
	}
	at := req.CollectedAt
	if at.IsZero() {
		at = s.now()
	}

	target, err := s.resolveTarget(ctx, req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("loanGroupId", target.LoanGroupID),
		attribute.String("installmentId", target.ID.Hex()),
	)

	receipt := req.ReceiptNumber
	if receipt == "" {
		receipt = common.GenerateReceiptNumber(at, req.MemberID, target.ID, target.SequenceNumber)
	}

	var result *outcome
	err = s.executor.Run(ctx, storemodels.LoanGroupLockKey(target.LoanGroupID), target.LoanGroupID,
		func(txCtx context.Context) error {
			o, err := s.apply(txCtx, req, target.ID, receipt, at)
			result = o
			return err
		})
	if err != nil {
		if error_handling.IsDuplicate(err) {
			logger.CtxInfo(ctx, log_messages.DuplicateCollectionRejected,
				slog.String("memberId", req.MemberID.Hex()),
				slog.String("installmentId", target.ID.Hex()),
				slog.String("reason", err.Error()))
		}
		return nil, err
	}

	logger.CtxInfo(ctx, log_messages.InstallmentCollected,
		slog.String("loanGroupId", result.target.LoanGroupID),
		slog.String("installmentId", result.target.ID.Hex()),
		slog.String("amount", req.Amount.String()),
		slog.String("receiptNumber", receipt),
		slog.Int("cascaded", len(result.cascaded)))

	s.afterCommit(ctx, result)

	target = &result.target
	return &models.CollectionResult{
		Installment: target,
		Member:      result.member,
		Cascaded:    result.cascaded,
		Completed:   result.completed,
	}, nil
}

func (s *CollectionService) resolveTarget(ctx context.Context, req *CollectionRequest) (*storemodels.Installment, error) {
	var (
		target *storemodels.Installment
		err    error
	)
	switch {
	case !req.InstallmentID.IsZero():
		target, err = s.installments.GetByID(ctx, req.InstallmentID)
	case req.LoanGroupID != "":
		target, err = s.installments.GetByLoanGroupAndSequence(ctx, req.LoanGroupID, req.SequenceNumber)
	default:
		target, err = s.matchLegacy(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if target.MemberID != req.MemberID {
		return nil, error_handling.NewValidationError("memberId", "installment belongs to another member")
	}
	return target, nil
}

// matchLegacy finds the earliest outstanding installment whose amount equals the payment and
// whose description or product name matches.
func (s *CollectionService) matchLegacy(ctx context.Context, req *CollectionRequest) (*storemodels.Installment, error) {
	outstanding, err := s.installments.FindUnpaidByMember(ctx, req.MemberID)
	if err != nil {
		return nil, err
	}
	for i := range outstanding {
		inst := &outstanding[i]
		if !inst.Amount.Equal(req.Amount) {
			continue
		}
		if strings.EqualFold(inst.Description, req.Description) || strings.EqualFold(inst.ProductName, req.Description) {
			return inst, nil
		}
	}
	return nil, error_handling.NewNotFoundError("installment", "description", req.Description)
}

func minDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// apply runs inside the transaction and reloads everything it touches.
func (s *CollectionService) apply(
	ctx context.Context,
	req *CollectionRequest,
	targetID primitive.ObjectID,
	receipt string,
	at time.Time,
) (*outcome, error) {
	current, err := s.installments.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !current.Counted() {
		return nil, error_handling.NewValidationError("installmentId", "installment is cancelled")
	}
	member, err := s.members.GetByID(ctx, req.MemberID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Check(ctx, current, req.MemberID, req.Amount, req.ReceiptNumber, at); err != nil {
		return nil, err
	}

	group, err := s.installments.FindByLoanGroup(ctx, current.LoanGroupID)
	if err != nil {
		return nil, err
	}
	before := ledger.CloneGroup(group)
	after := ledger.CloneGroup(group)

	idx := -1
	for i := range after {
		if after[i].ID == targetID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, error_handling.NewInconsistentLedgerStateError(current.LoanGroupID,
			"target installment missing from its loan group", nil)
	}

	target := &after[idx]
	remaining := req.Amount
	touched := []int{idx}

	applied := minDecimal(remaining, ledger.Remaining(target))
	if applied.IsPositive() {
		event := storemodels.PaymentEvent{
			Date:          at,
			CollectorID:   req.CollectorID,
			ReceiptNumber: receipt,
			Method:        storemodels.PaymentMethodCash,
		}
		if err := ledger.ApplyPayment(target, applied, event, s.loc); err != nil {
			return nil, err
		}
		remaining = remaining.Sub(applied)
	}
	target.ReceiptNumber = receipt
	target.IsAutoApplied = false

	type step struct {
		index  int
		amount decimal.Decimal
	}
	var steps []step
	for i := range after {
		if !remaining.IsPositive() {
			break
		}
		next := &after[i]
		if i == idx || !next.Counted() || !next.Status.Unpaid() {
			continue
		}
		amount := minDecimal(remaining, ledger.Remaining(next))
		if !amount.IsPositive() {
			continue
		}
		event := storemodels.PaymentEvent{
			Date:        at,
			CollectorID: req.CollectorID,
			Method:      storemodels.PaymentMethodOverpayment,
		}
		if err := ledger.ApplyPayment(next, amount, event, s.loc); err != nil {
			return nil, err
		}
		next.IsAutoApplied = true
		next.ReceiptNumber = ""
		remaining = remaining.Sub(amount)
		touched = append(touched, i)
		steps = append(steps, step{index: i, amount: amount})
		logger.CtxInfo(ctx, log_messages.OverpaymentCascaded,
			slog.String("loanGroupId", next.LoanGroupID),
			slog.Int("sequenceNumber", next.SequenceNumber),
			slog.String("amount", amount.String()))
	}

	if remaining.IsPositive() {
		logger.CtxWarn(ctx, log_messages.OverpaymentFoldedIntoTarget,
			slog.String("loanGroupId", target.LoanGroupID),
			slog.String("installmentId", target.ID.Hex()),
			slog.String("leftover", remaining.String()))
		if applied.IsPositive() {
			ledger.FoldOverpayment(target, remaining)
		} else {
			event := storemodels.PaymentEvent{
				Date:          at,
				CollectorID:   req.CollectorID,
				ReceiptNumber: receipt,
				Method:        storemodels.PaymentMethodCash,
			}
			if err := ledger.ApplyPayment(target, remaining, event, s.loc); err != nil {
				return nil, err
			}
		}
	}

	outstanding := ledger.Outstanding(after)
	for _, i := range touched {
		after[i].OutstandingAtCollection = outstanding
	}
	if err := ledger.CheckInvariants(target.LoanGroupID, before, after); err != nil {
		return nil, err
	}
	for _, i := range touched {
		if err := s.installments.UpdateWithRevision(ctx, &after[i]); err != nil {
			return nil, err
		}
	}

	entries := make([]storemodels.CollectionHistory, 0, len(steps)+1)
	entries = append(entries, common.SerializeHistoryEntry(target, req.Amount, storemodels.EntryTypeCollection,
		storemodels.PaymentMethodCash, receipt, outstanding, req.CollectorID, at))
	for _, st := range steps {
		entries = append(entries, common.SerializeHistoryEntry(&after[st.index], st.amount, storemodels.EntryTypeCascade,
			storemodels.PaymentMethodOverpayment, "", outstanding, req.CollectorID, at))
	}
	if _, err := s.history.CreateEntries(ctx, entries); err != nil {
		return nil, err
	}

	paidAt := at
	updated, err := s.members.ApplyAggregateDelta(ctx, member.ID, storemodels.MemberAggregateDelta{
		TotalPaid:       req.Amount,
		TotalSavings:    decimal.Zero,
		LastPaymentDate: &paidAt,
	})
	if err != nil {
		return nil, err
	}

	o := &outcome{
		target:    *target,
		member:    updated,
		completed: ledger.Completed(after),
	}
	o.events = append(o.events, events.LedgerEvent{
		Entry: entries[0], SequenceNumber: target.SequenceNumber, TotalInSeries: target.TotalInSeries,
	})
	for i, st := range steps {
		inst := &after[st.index]
		o.cascaded = append(o.cascaded, inst.ID.Hex())
		o.events = append(o.events, events.LedgerEvent{
			Entry: entries[i+1], SequenceNumber: inst.SequenceNumber, TotalInSeries: inst.TotalInSeries,
		})
	}
	return o, nil
}

func (s *CollectionService) afterCommit(ctx context.Context, o *outcome) {
	s.dispatcher.PublishLedgerEvents(ctx, o.events)
	if len(o.events) > 0 {
		s.dispatcher.Notify(ctx, common.SerializeNotification(consts.NotificationCollectionReceived, o.events[0].Entry))
	}
	if !o.completed {
		return
	}
	s.dispatcher.Notify(ctx, models.NotificationMessage{
		Event:       consts.NotificationLoanCompleted,
		MemberID:    o.target.MemberID.Hex(),
		LoanGroupID: o.target.LoanGroupID,
		Amount:      decimal.Zero,
		OccurredAt:  s.now(),
	})
	if s.onComplete != nil {
		s.onComplete(ctx, o.target.MemberID, o.target.LoanGroupID)
	}
}

// ReconcileMemberAggregate compares the member's running totalPaid with the ledger.
func (s *CollectionService) ReconcileMemberAggregate(ctx context.Context,
	memberID primitive.ObjectID) (*models.ReconciliationReport, error) {
	member, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	ledgerTotal, err := s.history.SumPaidByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	drift := member.TotalPaid.Sub(ledgerTotal)
	report := &models.ReconciliationReport{
		MemberID:          memberID.Hex(),
		RecordedTotalPaid: member.TotalPaid,
		LedgerTotalPaid:   ledgerTotal,
		Drift:             drift,
		InSync:            drift.IsZero(),
	}
	if !report.InSync {
		logger.CtxWarn(ctx, log_messages.MemberAggregateDrifted,
			slog.String("memberId", report.MemberID),
			slog.String("recorded", member.TotalPaid.String()),
			slog.String("ledger", ledgerTotal.String()))
	}
	return report, nil
}
