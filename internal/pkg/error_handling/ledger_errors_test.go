package error_handling

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"validation", NewValidationError("amount", "must be positive"), "field=amount"},
		{"not found", NewNotFoundError("installment", "id", "abc"), "installment not found: id=abc"},
		{"duplicate by day", &DuplicateCollectionError{MemberID: "m1", InstallmentID: "i1", Amount: "100",
			Day: "2026-10-15"}, "installment=i1"},
		{"duplicate by receipt", &DuplicateCollectionError{MemberID: "m1", ReceiptNumber: "R-9"}, "receipt R-9"},
		{"too many", &TooManyActiveLoansError{MemberID: "m1", Active: 2, Limit: 2}, "2 active loan groups"},
		{"insufficient", &InsufficientSavingsError{MemberID: "m1", LoanGroupID: "g1"}, "loan group g1"},
		{"inconsistent no cause", NewInconsistentLedgerStateError("g1", "sum changed", nil), "sum changed"},
		{"busy", &LedgerBusyError{Key: "lock:loanGroup:g1", Err: errors.New("timeout")}, "lock:loanGroup:g1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, tt.err.Error(), tt.contains)
		})
	}
}

func TestClassifiersSeeThroughWrapping(t *testing.T) {
	wrapped := func(err error) error { return fmt.Errorf("collect: %w", err) }

	assert.True(t, IsValidation(wrapped(NewValidationError("a", "b"))))
	assert.True(t, IsNotFound(wrapped(NewNotFoundError("member", "id", "x"))))
	assert.True(t, IsDuplicate(wrapped(&DuplicateCollectionError{})))
	assert.True(t, IsTooManyActiveLoans(wrapped(&TooManyActiveLoansError{})))
	assert.True(t, IsInsufficientSavings(wrapped(&InsufficientSavingsError{})))
	assert.True(t, IsInconsistentState(wrapped(NewInconsistentLedgerStateError("g", "r", nil))))
	assert.True(t, IsBusy(wrapped(&LedgerBusyError{})))

	assert.False(t, IsDuplicate(errors.New("plain")))
	assert.False(t, IsBusy(nil))
}

func TestInconsistentStateUnwrapsCause(t *testing.T) {
	err := NewInconsistentLedgerStateError("g1", "retries exhausted", ErrStaleRevision)
	assert.ErrorIs(t, err, ErrStaleRevision)
	assert.Contains(t, err.Error(), "stale installment revision")
}
