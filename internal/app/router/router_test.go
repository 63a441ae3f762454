package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"installment-ledger/internal/pkg/config"
	"installment-ledger/internal/pkg/models"
	"installment-ledger/internal/pkg/store/impl/memory"
	storemodels "installment-ledger/internal/pkg/store/models"
	"installment-ledger/internal/service"
	"installment-ledger/internal/service/collection"
	"installment-ledger/internal/service/events"
	"installment-ledger/internal/service/ledger"
	"installment-ledger/internal/service/loan"
	"installment-ledger/internal/service/savings"
	"installment-ledger/internal/service/schedule"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type testApp struct {
	engine    *gin.Engine
	store     *memory.Store
	member    storemodels.Member
	collector storemodels.Collector
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	executor := ledger.NewExecutor(memory.NewLocker(), store, 3)
	ledgerSvc := ledger.NewLedgerService(store.Installments(), 2)
	dispatcher := events.NewDispatcher(nil, store.CollectionHistory(), nil, "")

	loanSvc := loan.NewLoanService(store.Installments(), store.Members(),
		schedule.NewCalendarLoader(store.Collectors(), nil, time.Hour),
		ledgerSvc, executor, schedule.DefaultRules(), time.UTC)
	collectionSvc := collection.NewCollectionService(store.Installments(), store.Members(),
		store.CollectionHistory(), executor, dispatcher, time.UTC)
	savingsSvc := savings.NewSavingsService(store.Installments(), store.Members(), store.CollectionHistory(),
		store.SavingsEntries(), store.DeductionsInProgress(), nil, executor, dispatcher, time.UTC,
		savings.SweepOptions{WorkerCount: 2, BufferSize: 4})
	collectionSvc.SetCompletionHook(savingsSvc.OnLoanGroupCompleted)
	retrySvc := service.NewKafkaRetryService(store.CollectionHistory(), nil, config.KafkaRetryServiceConfig{
		RetryStartDate: "2026-10-01", WorkerCount: 1, BufferSize: 4, MaxBatchSize: 10, MongoBatchSize: 10,
		FlushInterval: 10 * time.Millisecond,
	})

	engine := SetupRouter("installment-ledger-test", Services{
		Loans:       loanSvc,
		Canceller:   ledgerSvc,
		Collections: collectionSvc,
		Savings:     savingsSvc,
		KafkaRetry:  retrySvc,
	})
	return &testApp{
		engine:    engine,
		store:     store,
		member:    store.AddMember(storemodels.Member{Name: "Rahima", BranchID: primitive.NewObjectID()}),
		collector: store.AddCollector(storemodels.Collector{Name: "Jamal", AssignedDay: "Wednesday"}),
	}
}

func (a *testApp) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, basePath+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *testApp) createLoanGroup(t *testing.T) models.ScheduleResult {
	t.Helper()
	w := a.do(t, http.MethodPost, "/loan-groups", map[string]interface{}{
		"memberId":          a.member.ID.Hex(),
		"collectorId":       a.collector.ID.Hex(),
		"installmentCount":  3,
		"installmentAmount": "100",
		"frequency":         "weekly",
		"saleDate":          "2026-10-12T00:00:00Z",
		"productName":       "Sewing Machine",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res models.ScheduleResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func TestHealthCheck(t *testing.T) {
	app := newTestApp(t)
	w := app.do(t, http.MethodGet, "/HealthCheck", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Health Check")
}

func TestLoanGroupLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)
	group := app.createLoanGroup(t)
	require.Len(t, group.Installments, 3)

	w := app.do(t, http.MethodGet, "/members/"+app.member.ID.Hex()+"/active-loan-groups", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	payment := map[string]interface{}{
		"memberId":       app.member.ID.Hex(),
		"collectorId":    app.collector.ID.Hex(),
		"loanGroupId":    group.LoanGroupID,
		"sequenceNumber": 1,
		"amount":         "100",
		"collectedAt":    "2026-10-14T09:30:00Z",
	}
	w = app.do(t, http.MethodPost, "/collections", payment)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, storemodels.StatusCollected, app.store.Installment(group.Installments[0].ID).Status)

	w = app.do(t, http.MethodPost, "/collections", payment)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = app.do(t, http.MethodGet, "/members/"+app.member.ID.Hex()+"/reconciliation", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"inSync":true`)
}

func TestLoanGroupCapReturnsUnprocessable(t *testing.T) {
	app := newTestApp(t)
	app.createLoanGroup(t)
	app.createLoanGroup(t)

	w := app.do(t, http.MethodPost, "/loan-groups", map[string]interface{}{
		"memberId":          app.member.ID.Hex(),
		"collectorId":       app.collector.ID.Hex(),
		"installmentCount":  2,
		"installmentAmount": "50",
		"frequency":         "daily",
		"saleDate":          "2026-10-12T00:00:00Z",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestBadRequests(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/loan-groups", map[string]interface{}{"memberId": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodPost, "/installments/not-hex/cancel", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodPost, "/installments/"+primitive.NewObjectID().Hex()+"/cancel", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSweepWithEmptyBody(t *testing.T) {
	app := newTestApp(t)
	req := httptest.NewRequest(http.MethodPost, basePath+"/deductions/sweep", nil)
	w := httptest.NewRecorder()
	app.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"processed":0`)
}

func TestKafkaRetryWithNothingPending(t *testing.T) {
	app := newTestApp(t)
	w := app.do(t, http.MethodGet, "/kafka-retry", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
