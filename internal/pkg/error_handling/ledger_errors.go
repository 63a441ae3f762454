package error_handling

import (
	"errors"
	"fmt"
)

// ValidationError is raised for malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: field=%s, reason=%s", e.Field, e.Reason)
}

// NotFoundError is raised when a referenced member, collector, installment or loan group is missing.
type NotFoundError struct {
	Entity string
	Field  string
	Value  string
}

func NewNotFoundError(entity, field, value string) *NotFoundError {
	return &NotFoundError{Entity: entity, Field: field, Value: value}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s=%s", e.Entity, e.Field, e.Value)
}

type DuplicateCollectionError struct {
	MemberID      string
	InstallmentID string
	Amount        string
	Day           string
	ReceiptNumber string
}

func (e *DuplicateCollectionError) Error() string {
	if e.ReceiptNumber != "" {
		return fmt.Sprintf("duplicate collection: receipt %s already recorded for member %s",
			e.ReceiptNumber, e.MemberID)
	}
	return fmt.Sprintf("duplicate collection: member=%s, installment=%s, amount=%s, day=%s",
		e.MemberID, e.InstallmentID, e.Amount, e.Day)
}

type TooManyActiveLoansError struct {
	MemberID string
	Active   int
	Limit    int
}

func (e *TooManyActiveLoansError) Error() string {
	return fmt.Sprintf("member %s already has %d active loan groups (limit %d)", e.MemberID, e.Active, e.Limit)
}

// InsufficientSavingsError is non-fatal; the installment stays unpaid.
type InsufficientSavingsError struct {
	MemberID    string
	LoanGroupID string
}

func (e *InsufficientSavingsError) Error() string {
	return fmt.Sprintf("insufficient savings for member %s, loan group %s", e.MemberID, e.LoanGroupID)
}

// InconsistentLedgerStateError aborts the enclosing transaction.
type InconsistentLedgerStateError struct {
	LoanGroupID string
	Reason      string
	Err         error
}

func NewInconsistentLedgerStateError(loanGroupID, reason string, err error) *InconsistentLedgerStateError {
	return &InconsistentLedgerStateError{LoanGroupID: loanGroupID, Reason: reason, Err: err}
}

func (e *InconsistentLedgerStateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("inconsistent ledger state for loan group %s: %s: %v", e.LoanGroupID, e.Reason, e.Err)
	}
	return fmt.Sprintf("inconsistent ledger state for loan group %s: %s", e.LoanGroupID, e.Reason)
}

func (e *InconsistentLedgerStateError) Unwrap() error {
	return e.Err
}

// LedgerBusyError means a lock on the loan group or member could not be taken in time.
type LedgerBusyError struct {
	Key string
	Err error
}

func (e *LedgerBusyError) Error() string {
	return fmt.Sprintf("ledger busy: lock %s not acquired: %v", e.Key, e.Err)
}

func (e *LedgerBusyError) Unwrap() error {
	return e.Err
}

// ErrStaleRevision signals that an installment changed between read and write.
var ErrStaleRevision = errors.New("stale installment revision")

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsDuplicate(err error) bool {
	var target *DuplicateCollectionError
	return errors.As(err, &target)
}

func IsTooManyActiveLoans(err error) bool {
	var target *TooManyActiveLoansError
	return errors.As(err, &target)
}

func IsInsufficientSavings(err error) bool {
	var target *InsufficientSavingsError
	return errors.As(err, &target)
}

func IsInconsistentState(err error) bool {
	var target *InconsistentLedgerStateError
	return errors.As(err, &target)
}

func IsBusy(err error) bool {
	var target *LedgerBusyError
	return errors.As(err, &target)
}
