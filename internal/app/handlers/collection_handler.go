package handlers

import (
	"net/http"

	"installment-ledger/internal/pkg/models"
	"installment-ledger/internal/service/collection"

	"github.com/gin-gonic/gin"
)

type CollectionHandler struct {
	service CollectionServiceInterface
}

func NewCollectionHandler(service CollectionServiceInterface) *CollectionHandler {
	return &CollectionHandler{service: service}
}

// Collect accepts the same payload as the Pub/Sub collection feed.
func (h *CollectionHandler) Collect(c *gin.Context) {
	var body models.CollectionRequestMessage
	if !bindBody(c, &body) {
		return
	}
	req, err := collection.RequestFromMessage(&body)
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := h.service.Collect(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *CollectionHandler) ReconcileMember(c *gin.Context) {
	memberID, ok := objectIDParam(c, "memberId")
	if !ok {
		return
	}
	report, err := h.service.ReconcileMemberAggregate(c.Request.Context(), memberID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
