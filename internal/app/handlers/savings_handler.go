package handlers

import (
	"net/http"
	"time"

	"installment-ledger/internal/pkg/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SavingsHandler struct {
	service SavingsServiceInterface
	now     func() time.Time
}

func NewSavingsHandler(service SavingsServiceInterface) *SavingsHandler {
	return &SavingsHandler{service: service, now: time.Now}
}

func (h *SavingsHandler) dateOrNow(d time.Time) time.Time {
	if d.IsZero() {
		return h.now()
	}
	return d
}

func (h *SavingsHandler) ProcessAutoDeduction(c *gin.Context) {
	var body models.AutoDeductionRequest
	if !bindBody(c, &body) {
		return
	}
	// both ids already passed the hexadecimal check
	memberID, _ := primitive.ObjectIDFromHex(body.MemberID)
	installmentID, _ := primitive.ObjectIDFromHex(body.InstallmentID)

	result, err := h.service.ProcessAutoDeduction(c.Request.Context(), memberID, installmentID, h.dateOrNow(body.Date))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ProcessAllPendingDeductions is triggered by an external timer. An empty body sweeps for today.
func (h *SavingsHandler) ProcessAllPendingDeductions(c *gin.Context) {
	var body models.DeductionSweepRequest
	if c.Request.ContentLength > 0 && !bindBody(c, &body) {
		return
	}
	result, err := h.service.ProcessAllPendingDeductions(c.Request.Context(), h.dateOrNow(body.Date))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *SavingsHandler) TransferOnCompletion(c *gin.Context) {
	var body models.TransferRequest
	if !bindBody(c, &body) {
		return
	}
	memberID, _ := primitive.ObjectIDFromHex(body.MemberID)

	result, err := h.service.TransferOnCompletion(c.Request.Context(), memberID, body.LoanGroupID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
