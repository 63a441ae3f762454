package savings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"installment-ledger/internal/pkg/common"
	"installment-ledger/internal/pkg/consts"
	"installment-ledger/internal/pkg/error_handling"
	"installment-ledger/internal/pkg/log_messages"
	"installment-ledger/internal/pkg/logger"
	"installment-ledger/internal/pkg/models"
	"installment-ledger/internal/pkg/otel"
	storemodels "installment-ledger/internal/pkg/store/models"
	"installment-ledger/internal/pkg/utils/worker"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
)

type memberBatch struct {
	memberID     primitive.ObjectID
	installments []storemodels.Installment
}

// groupByMember keeps the order in which members first appear.
func groupByMember(overdue []storemodels.Installment) []memberBatch {
	index := map[primitive.ObjectID]int{}
	var batches []memberBatch
	for _, inst := range overdue {
		i, ok := index[inst.MemberID]
		if !ok {
			i = len(batches)
			index[inst.MemberID] = i
			batches = append(batches, memberBatch{memberID: inst.MemberID})
		}
		batches[i].installments = append(batches[i].installments, inst)
	}
	return batches
}

func classify(inst storemodels.Installment, res *models.DeductionResult, err error) models.DeductionResult {
	if err == nil {
		return *res
	}
	out := models.DeductionResult{
		MemberID:      inst.MemberID.Hex(),
		InstallmentID: inst.ID.Hex(),
		LoanGroupID:   inst.LoanGroupID,
		Amount:        decimal.Zero,
		Reason:        err.Error(),
	}
	switch {
	case error_handling.IsInsufficientSavings(err):
		out.Status = models.DeductionStatusInsufficient
	case error_handling.IsValidation(err), error_handling.IsNotFound(err):
		out.Status = models.DeductionStatusSkipped
	default:
		out.Status = models.DeductionStatusFailed
	}
	return out
}

// ProcessAllPendingDeductions runs auto deduction over every installment overdue on date.
// Members are fanned out to the worker pool; a member marked in progress by another sweep
// is skipped whole. One failing installment never stops the rest.
func (s *SavingsService) ProcessAllPendingDeductions(ctx context.Context, date time.Time) (*models.BatchResult, error) {
	ctx, span := otel.StartSpan(ctx, "savings.ProcessAllPendingDeductions")
	defer span.End()

	result := &models.BatchResult{
		Date:        date.In(s.loc).Format(consts.DateFormat),
		StartedAt:   s.now(),
		TotalAmount: decimal.Zero,
	}

	overdue, err := s.installments.FindOverdue(ctx, common.StartOfDay(date, s.loc))
	if err != nil {
		logger.CtxError(ctx, log_messages.FailedLoadingOverdueInstallments, err, slog.String("date", result.Date))
		return nil, err
	}
	batches := groupByMember(overdue)
	span.SetAttributes(attribute.Int("members", len(batches)), attribute.Int("installments", len(overdue)))

	pool := worker.NewWorkerPool(s.sweepWorkers, s.sweepBuffer)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, batch := range batches {
		batch := batch
		wg.Add(1)
		pool.Submit(batch.memberID.Hex(), func() {
			defer wg.Done()
			results, skipped := s.sweepMember(ctx, batch, date)

			mu.Lock()
			defer mu.Unlock()
			if skipped {
				result.MembersSkipped++
				return
			}
			result.MembersProcessed++
			result.Results = append(result.Results, results...)
		})
	}
	wg.Wait()
	pool.Stop()

	sort.Slice(result.Results, func(i, j int) bool {
		a, b := result.Results[i], result.Results[j]
		if a.MemberID != b.MemberID {
			return a.MemberID < b.MemberID
		}
		return a.InstallmentID < b.InstallmentID
	})
	for _, r := range result.Results {
		result.Processed++
		switch r.Status {
		case models.DeductionStatusDeducted:
			result.Deducted++
			result.TotalAmount = result.TotalAmount.Add(r.Amount)
		case models.DeductionStatusInsufficient:
			result.Insufficient++
		case models.DeductionStatusSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
	}
	result.FinishedAt = s.now()

	s.archiveReport(ctx, result)
	logger.CtxInfo(ctx, log_messages.SweepCompleted,
		slog.String("date", result.Date),
		slog.Int("membersProcessed", result.MembersProcessed),
		slog.Int("membersSkipped", result.MembersSkipped),
		slog.Int("deducted", result.Deducted),
		slog.Int("insufficient", result.Insufficient),
		slog.Int("failed", result.Failed),
		slog.String("totalAmount", result.TotalAmount.String()))
	return result, nil
}

func (s *SavingsService) sweepMember(ctx context.Context, batch memberBatch, date time.Time) ([]models.DeductionResult, bool) {
	exists, err := s.inProgress.CheckEntryExists(ctx, batch.memberID)
	if err == nil && !exists {
		err = s.inProgress.CreateEntry(ctx, batch.memberID)
	}
	if exists || err != nil {
		logger.CtxWarn(ctx, log_messages.SweepMemberSkipped,
			slog.String("memberId", batch.memberID.Hex()),
			slog.Any("error", err))
		return nil, true
	}
	defer func() {
		if err := s.inProgress.DeleteEntry(context.WithoutCancel(ctx), batch.memberID); err != nil {
			logger.CtxError(ctx, log_messages.FailedClearingDeductionMarker, err, slog.String("memberId", batch.memberID.Hex()))
		}
	}()

	results := make([]models.DeductionResult, 0, len(batch.installments))
	for _, inst := range batch.installments {
		res, err := s.ProcessAutoDeduction(ctx, batch.memberID, inst.ID, date)
		results = append(results, classify(inst, res, err))
	}
	return results, false
}

func (s *SavingsService) archiveReport(ctx context.Context, result *models.BatchResult) {
	if s.archive == nil {
		return
	}
	objectName := fmt.Sprintf("deductions_%s_%d.json", result.Date, result.FinishedAt.Unix())
	result.ArchiveObject = objectName
	data, err := json.Marshal(result)
	if err != nil {
		logger.CtxError(ctx, log_messages.ErrorMarshallingJSON, err)
		result.ArchiveObject = ""
		return
	}
	if err := s.archive.Upload(ctx, objectName, data); err != nil {
		result.ArchiveObject = ""
	}
}
