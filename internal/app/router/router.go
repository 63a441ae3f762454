package router

import (
	"installment-ledger/internal/app/handlers"
	"installment-ledger/internal/app/middleware"
	"installment-ledger/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const basePath = "/IntegrationServices/InstallmentLedger"

// Services are the already wired application services the routes call into.
type Services struct {
	Loans       handlers.LoanServiceInterface
	Canceller   handlers.InstallmentCancellerInterface
	Collections handlers.CollectionServiceInterface
	Savings     handlers.SavingsServiceInterface
	KafkaRetry  service.KafkaRetryServiceInterface
}

func SetupRouter(serviceName string, svc Services) *gin.Engine {
	server := gin.Default()
	server.Use(otelgin.Middleware(serviceName))
	server.Use(middleware.AttachRequestContext())

	healthCheckHandler := handlers.NewHealthCheckHandler()
	server.GET(basePath+"/HealthCheck", healthCheckHandler.HealthCheck)

	api := server.Group(basePath)

	loanHandler := handlers.NewLoanHandler(svc.Loans, svc.Canceller)
	api.POST("/loan-groups", loanHandler.GenerateLoanSchedule)
	api.POST("/loan-groups/:loanGroupId/recalculate", loanHandler.RecalculateDueDates)
	api.GET("/members/:memberId/active-loan-groups", loanHandler.GetActiveLoanGroupCount)
	api.POST("/installments/:installmentId/cancel", loanHandler.CancelInstallment)

	collectionHandler := handlers.NewCollectionHandler(svc.Collections)
	api.POST("/collections", collectionHandler.Collect)
	api.GET("/members/:memberId/reconciliation", collectionHandler.ReconcileMember)

	savingsHandler := handlers.NewSavingsHandler(svc.Savings)
	api.POST("/deductions", savingsHandler.ProcessAutoDeduction)
	api.POST("/deductions/sweep", savingsHandler.ProcessAllPendingDeductions)
	api.POST("/savings/transfers", savingsHandler.TransferOnCompletion)

	kafkaRetryHandler := handlers.NewKafkaRetryHandler(svc.KafkaRetry)
	api.GET("/kafka-retry", kafkaRetryHandler.RetryLedgerEvents)

	return server
}
