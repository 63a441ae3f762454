package main

import (
	"context"

	"installment-ledger/internal/app/runtime"
	"installment-ledger/internal/pkg/log_messages"
	"installment-ledger/internal/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app, err := runtime.New(ctx)
	if err != nil {
		logger.CtxError(ctx, log_messages.FailedInitializingApp, err)
		return
	}

	if err := app.Run(ctx); err != nil {
		logger.CtxError(ctx, log_messages.AppStoppedWithError, err)
		return
	}
}
