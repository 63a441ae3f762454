package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"installment-ledger/internal/pkg/log_messages"
	"installment-ledger/internal/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockKafkaRetryService struct {
	mock.Mock
}

func (m *MockKafkaRetryService) RetryLedgerEvents(ctx context.Context) *models.KafkaRetryResponse {
	args := m.Called(ctx)
	return args.Get(0).(*models.KafkaRetryResponse)
}

func TestRetryLedgerEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)

	run := func(response *models.KafkaRetryResponse) *httptest.ResponseRecorder {
		mockService := new(MockKafkaRetryService)
		mockService.On("RetryLedgerEvents", mock.Anything).Return(response)
		handler := NewKafkaRetryHandler(mockService)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/kafka-retry", nil)
		handler.RetryLedgerEvents(c)
		mockService.AssertExpectations(t)
		return w
	}

	t.Run("Success", func(t *testing.T) {
		w := run(&models.KafkaRetryResponse{SuccessIDs: []string{"id1", "id2"}, FailedIDs: []string{}})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"successIds":["id1","id2"]`)
	})

	t.Run("Partial success", func(t *testing.T) {
		w := run(&models.KafkaRetryResponse{
			SuccessIDs: []string{"id1"},
			FailedIDs:  []string{"id2"},
			ErrorMsg:   log_messages.ErrorUpdatingKafkaFlag,
		})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"failedIds":["id2"]`)
		assert.Contains(t, w.Body.String(), `"error":"`+log_messages.ErrorUpdatingKafkaFlag+`"`)
	})

	t.Run("Nothing pending", func(t *testing.T) {
		w := run(&models.KafkaRetryResponse{SuccessIDs: []string{}, FailedIDs: []string{}})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"message":"`+log_messages.NoUnpublishedEntries+`"`)
	})

	t.Run("Complete failure", func(t *testing.T) {
		w := run(&models.KafkaRetryResponse{
			SuccessIDs: []string{},
			FailedIDs:  []string{"id1"},
			ErrorMsg:   "broker down",
		})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), `"error":"broker down"`)
	})
}
