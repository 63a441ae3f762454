package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type GenerateScheduleRequest struct {
	MemberID          string          `json:"memberId" validate:"required,len=24,hexadecimal"`
	CollectorID       string          `json:"collectorId" validate:"required,len=24,hexadecimal"`
	BranchID          string          `json:"branchId" validate:"omitempty,len=24,hexadecimal"`
	InstallmentCount  int             `json:"installmentCount" validate:"required,min=1,max=520"`
	InstallmentAmount decimal.Decimal `json:"installmentAmount"`
	Principal         decimal.Decimal `json:"principal"`
	Frequency         string          `json:"frequency" validate:"required,oneof=daily weekly monthly"`
	SaleDate          time.Time       `json:"saleDate" validate:"required"`
	ProductName       string          `json:"productName" validate:"max=120"`
	Description       string          `json:"description" validate:"max=240"`
}

type RecalculateDueDatesRequest struct {
	CollectorID string `json:"collectorId" validate:"required,len=24,hexadecimal"`
}

type AutoDeductionRequest struct {
	MemberID      string    `json:"memberId" validate:"required,len=24,hexadecimal"`
	InstallmentID string    `json:"installmentId" validate:"required,len=24,hexadecimal"`
	Date          time.Time `json:"date"`
}

type DeductionSweepRequest struct {
	Date time.Time `json:"date"`
}

type TransferRequest struct {
	MemberID    string `json:"memberId" validate:"required,len=24,hexadecimal"`
	LoanGroupID string `json:"loanGroupId" validate:"required"`
}
