package handlers

import (
	"net/http"

	"installment-ledger/internal/pkg/log_messages"
	"installment-ledger/internal/service"

	"github.com/gin-gonic/gin"
)

type KafkaRetryHandler struct {
	service service.KafkaRetryServiceInterface
}

func NewKafkaRetryHandler(service service.KafkaRetryServiceInterface) *KafkaRetryHandler {
	return &KafkaRetryHandler{
		service: service,
	}
}

func (h *KafkaRetryHandler) RetryLedgerEvents(c *gin.Context) {
	response := h.service.RetryLedgerEvents(c.Request.Context())

	if response.ErrorMsg == "" {
		if len(response.SuccessIDs) == 0 && len(response.FailedIDs) == 0 {
			response.Message = log_messages.NoUnpublishedEntries
		}
		c.JSON(http.StatusOK, response)
		return
	}

	// partial progress is still progress; the rest is picked up next run
	if len(response.SuccessIDs) > 0 {
		c.JSON(http.StatusOK, response)
		return
	}

	c.JSON(http.StatusInternalServerError, response)
}
