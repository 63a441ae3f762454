package handlers

import (
	"net/http"

	"installment-ledger/internal/pkg/models"

	"github.com/gin-gonic/gin"
)

type LoanHandler struct {
	service   LoanServiceInterface
	canceller InstallmentCancellerInterface
}

func NewLoanHandler(service LoanServiceInterface, canceller InstallmentCancellerInterface) *LoanHandler {
	return &LoanHandler{service: service, canceller: canceller}
}

// GenerateLoanSchedule creates the installment series for a new loan group.
func (h *LoanHandler) GenerateLoanSchedule(c *gin.Context) {
	var body models.GenerateScheduleRequest
	if !bindBody(c, &body) {
		return
	}
	result, err := h.service.GenerateLoanSchedule(c.Request.Context(), &body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *LoanHandler) RecalculateDueDates(c *gin.Context) {
	var body models.RecalculateDueDatesRequest
	if !bindBody(c, &body) {
		return
	}
	loanGroupID := c.Param("loanGroupId")
	updated, err := h.service.RecalculateDueDates(c.Request.Context(), loanGroupID, body.CollectorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loanGroupId": loanGroupID, "installments": updated})
}

func (h *LoanHandler) GetActiveLoanGroupCount(c *gin.Context) {
	count, err := h.service.GetActiveLoanGroupCount(c.Request.Context(), c.Param("memberId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, count)
}

func (h *LoanHandler) CancelInstallment(c *gin.Context) {
	id, ok := objectIDParam(c, "installmentId")
	if !ok {
		return
	}
	inst, err := h.canceller.CancelInstallment(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inst)
}
