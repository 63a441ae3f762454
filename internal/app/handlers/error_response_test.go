package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"installment-ledger/internal/pkg/error_handling"

	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", error_handling.NewValidationError("amount", "must be positive"), http.StatusBadRequest},
		{"not found", error_handling.NewNotFoundError("member", "id", "x"), http.StatusNotFound},
		{"duplicate", &error_handling.DuplicateCollectionError{MemberID: "m"}, http.StatusConflict},
		{"too many loans", &error_handling.TooManyActiveLoansError{MemberID: "m", Active: 2, Limit: 2},
			http.StatusUnprocessableEntity},
		{"insufficient", &error_handling.InsufficientSavingsError{}, http.StatusUnprocessableEntity},
		{"busy wrapped", fmt.Errorf("collect: %w", &error_handling.LedgerBusyError{Key: "lock:loan-group:A"}),
			http.StatusServiceUnavailable},
		{"inconsistent", error_handling.NewInconsistentLedgerStateError("A", "paid exceeds total", nil),
			http.StatusInternalServerError},
		{"unknown", errors.New("mongo down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}
