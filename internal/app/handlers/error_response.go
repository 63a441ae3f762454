package handlers

import (
	"log/slog"
	"net/http"

	"installment-ledger/internal/pkg/error_handling"
	"installment-ledger/internal/pkg/log_messages"
	"installment-ledger/internal/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var validate = validator.New()

// StatusFor maps a ledger error onto the HTTP status returned to callers.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case error_handling.IsValidation(err):
		return http.StatusBadRequest
	case error_handling.IsNotFound(err):
		return http.StatusNotFound
	case error_handling.IsDuplicate(err):
		return http.StatusConflict
	case error_handling.IsTooManyActiveLoans(err), error_handling.IsInsufficientSavings(err):
		return http.StatusUnprocessableEntity
	case error_handling.IsBusy(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.CtxError(c.Request.Context(), log_messages.RequestFailed, err,
			slog.String("path", c.FullPath()), slog.Int("status", status))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// bindBody decodes JSON and runs the validate tags. It writes the 400 itself.
func bindBody(c *gin.Context, body interface{}) bool {
	if err := c.ShouldBindJSON(body); err != nil {
		logger.CtxWarn(c.Request.Context(), log_messages.InvalidRequestBody, slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	if err := validate.Struct(body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func objectIDParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": error_handling.NewValidationError(name, "must be a 24 character hex id").Error()})
		return primitive.NilObjectID, false
	}
	return id, true
}
