package ledger

import (
	"context"
	"errors"
	"log/slog"

	"installment-ledger/internal/pkg/error_handling"
	"installment-ledger/internal/pkg/log_messages"
	"installment-ledger/internal/pkg/logger"
	"installment-ledger/internal/service/interfaces"
)

// Executor runs ledger changes under a distributed lock inside one transaction.
type Executor struct {
	locker     interfaces.LockerInterface
	txRunner   interfaces.TransactionRunner
	maxRetries int
}

func NewExecutor(locker interfaces.LockerInterface, txRunner interfaces.TransactionRunner, maxRetries int) *Executor {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Executor{locker: locker, txRunner: txRunner, maxRetries: maxRetries}
}

// Run holds lockKey for the whole attempt loop. fn is re-run from scratch in a fresh
// transaction whenever a revision check fails, so it must reload everything it writes.
func (e *Executor) Run(ctx context.Context, lockKey, loanGroupID string, fn func(ctx context.Context) error) error {
	release, err := e.locker.Acquire(ctx, lockKey)
	if err != nil {
		return err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			logger.CtxWarn(ctx, log_messages.FailedReleasingLedgerLock,
				slog.String("key", lockKey), slog.String("error", err.Error()))
		}
	}()

	for attempt := 0; ; attempt++ {
		err = e.txRunner.RunInTransaction(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, error_handling.ErrStaleRevision) {
			if error_handling.IsInconsistentState(err) {
				logger.CtxError(ctx, log_messages.LedgerInvariantBroken, err, slog.String("loanGroupId", loanGroupID))
			}
			return err
		}
		if attempt >= e.maxRetries {
			break
		}
		logger.CtxWarn(ctx, log_messages.StaleRevisionRetry,
			slog.String("loanGroupId", loanGroupID), slog.Int("attempt", attempt+1))
	}

	inconsistent := error_handling.NewInconsistentLedgerStateError(loanGroupID, "conflict retries exhausted", err)
	logger.CtxError(ctx, log_messages.LedgerInvariantBroken, inconsistent, slog.String("loanGroupId", loanGroupID))
	return inconsistent
}
