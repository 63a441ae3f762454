package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"installment-ledger/internal/pkg/error_handling"
	"installment-ledger/internal/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MockSavingsService struct {
	mock.Mock
}

func (m *MockSavingsService) ProcessAutoDeduction(ctx context.Context, memberID, installmentID primitive.ObjectID,
	date time.Time) (*models.DeductionResult, error) {
	args := m.Called(ctx, memberID, installmentID, date)
	res, _ := args.Get(0).(*models.DeductionResult)
	return res, args.Error(1)
}

func (m *MockSavingsService) ProcessAllPendingDeductions(ctx context.Context, date time.Time) (*models.BatchResult, error) {
	args := m.Called(ctx, date)
	res, _ := args.Get(0).(*models.BatchResult)
	return res, args.Error(1)
}

func (m *MockSavingsService) TransferOnCompletion(ctx context.Context, memberID primitive.ObjectID,
	loanGroupID string) (*models.TransferResult, error) {
	args := m.Called(ctx, memberID, loanGroupID)
	res, _ := args.Get(0).(*models.TransferResult)
	return res, args.Error(1)
}

var handlerNow = time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)

func serve(h gin.HandlerFunc, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(http.MethodPost, "/", nil)
	} else {
		req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	}
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	h(c)
	return w
}

func TestProcessAutoDeduction(t *testing.T) {
	gin.SetMode(gin.TestMode)
	memberID := primitive.NewObjectID()
	installmentID := primitive.NewObjectID()
	body := `{"memberId":"` + memberID.Hex() + `","installmentId":"` + installmentID.Hex() + `"}`

	t.Run("defaults the date to now", func(t *testing.T) {
		svc := new(MockSavingsService)
		svc.On("ProcessAutoDeduction", mock.Anything, memberID, installmentID, handlerNow).
			Return(&models.DeductionResult{Status: models.DeductionStatusDeducted, Amount: decimal.NewFromInt(80)}, nil)
		h := NewSavingsHandler(svc)
		h.now = func() time.Time { return handlerNow }

		w := serve(h.ProcessAutoDeduction, body)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"deducted"`)
		svc.AssertExpectations(t)
	})

	t.Run("insufficient savings", func(t *testing.T) {
		svc := new(MockSavingsService)
		svc.On("ProcessAutoDeduction", mock.Anything, memberID, installmentID, mock.Anything).
			Return(nil, &error_handling.InsufficientSavingsError{MemberID: memberID.Hex()})
		w := serve(NewSavingsHandler(svc).ProcessAutoDeduction, body)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("invalid ids never reach the service", func(t *testing.T) {
		svc := new(MockSavingsService)
		w := serve(NewSavingsHandler(svc).ProcessAutoDeduction, `{"memberId":"abc","installmentId":"def"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "ProcessAutoDeduction")
	})
}

func TestProcessAllPendingDeductions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sweepDay := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)

	t.Run("explicit date", func(t *testing.T) {
		svc := new(MockSavingsService)
		svc.On("ProcessAllPendingDeductions", mock.Anything, sweepDay).
			Return(&models.BatchResult{Date: "2026-10-14", Deducted: 3}, nil)
		w := serve(NewSavingsHandler(svc).ProcessAllPendingDeductions, `{"date":"2026-10-14T00:00:00Z"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"deducted":3`)
		svc.AssertExpectations(t)
	})

	t.Run("busy", func(t *testing.T) {
		svc := new(MockSavingsService)
		svc.On("ProcessAllPendingDeductions", mock.Anything, mock.Anything).
			Return(nil, &error_handling.LedgerBusyError{Key: "sweep"})
		w := serve(NewSavingsHandler(svc).ProcessAllPendingDeductions, "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestTransferOnCompletion(t *testing.T) {
	gin.SetMode(gin.TestMode)
	memberID := primitive.NewObjectID()

	svc := new(MockSavingsService)
	svc.On("TransferOnCompletion", mock.Anything, memberID, "A").
		Return(&models.TransferResult{Transferred: false, Reason: "no earmarked savings left"}, nil)
	w := serve(NewSavingsHandler(svc).TransferOnCompletion, `{"memberId":"`+memberID.Hex()+`","loanGroupId":"A"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "no earmarked savings left")
	svc.AssertExpectations(t)
}
