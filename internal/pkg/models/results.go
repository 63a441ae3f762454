package models

import (
	"time"

	storemodels "installment-ledger/internal/pkg/store/models"

	"github.com/shopspring/decimal"
)

type ScheduleResult struct {
	LoanGroupID  string                    `json:"loanGroupId"`
	Installments []storemodels.Installment `json:"installments"`
}

type CollectionResult struct {
	Installment *storemodels.Installment `json:"installment"`
	Member      *storemodels.Member      `json:"member"`
	Cascaded    []string                 `json:"cascadedInstallmentIds,omitempty"`
	Completed   bool                     `json:"loanGroupCompleted"`
}

const (
	DeductionStatusDeducted     = "deducted"
	DeductionStatusInsufficient = "insufficient"
	DeductionStatusSkipped      = "skipped"
	DeductionStatusFailed       = "failed"
)

type DeductionResult struct {
	MemberID      string          `json:"memberId"`
	InstallmentID string          `json:"installmentId"`
	LoanGroupID   string          `json:"loanGroupId"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	Reason        string          `json:"reason,omitempty"`
	Completed     bool            `json:"loanGroupCompleted,omitempty"`
}

// BatchResult summarises one run of the pending deduction sweep.
type BatchResult struct {
	Date             string            `json:"date"`
	StartedAt        time.Time         `json:"startedAt"`
	FinishedAt       time.Time         `json:"finishedAt"`
	MembersProcessed int               `json:"membersProcessed"`
	MembersSkipped   int               `json:"membersSkipped"`
	Processed        int               `json:"processed"`
	Deducted         int               `json:"deducted"`
	Insufficient     int               `json:"insufficient"`
	Skipped          int               `json:"skipped"`
	Failed           int               `json:"failed"`
	TotalAmount      decimal.Decimal   `json:"totalAmount"`
	Results          []DeductionResult `json:"results"`
	ArchiveObject    string            `json:"archiveObject,omitempty"`
}

type TransferResult struct {
	MemberID          string          `json:"memberId"`
	SourceLoanGroupID string          `json:"sourceLoanGroupId"`
	TargetLoanGroupID string          `json:"targetLoanGroupId,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	Transferred       bool            `json:"transferred"`
	Reason            string          `json:"reason,omitempty"`
}

// ReconciliationReport compares the member aggregate with the ledger. Drift is never auto-fixed.
type ReconciliationReport struct {
	MemberID          string          `json:"memberId"`
	RecordedTotalPaid decimal.Decimal `json:"recordedTotalPaid"`
	LedgerTotalPaid   decimal.Decimal `json:"ledgerTotalPaid"`
	Drift             decimal.Decimal `json:"drift"`
	InSync            bool            `json:"inSync"`
}

type ActiveLoanGroupCount struct {
	MemberID string `json:"memberId"`
	Count    int    `json:"count"`
	Limit    int    `json:"limit"`
}

type KafkaRetryResponse struct {
	SuccessIDs []string `json:"successIds"`
	FailedIDs  []string `json:"failedIds"`
	ErrorMsg   string   `json:"error,omitempty"`
	Message    string   `json:"message"`
}

func (r *KafkaRetryResponse) SetError(err error, msg string) {
	if err != nil {
		r.ErrorMsg = err.Error()
	}
	r.Message = msg
}
