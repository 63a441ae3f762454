package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CollectionRequestMessage is a field collection uploaded by the collector app.
// One of InstallmentID, LoanGroupID+SequenceNumber or Description identifies the target.
type CollectionRequestMessage struct {
	MemberID       string          `json:"memberId" validate:"required,len=24,hexadecimal"`
	CollectorID    string          `json:"collectorId" validate:"required,len=24,hexadecimal"`
	InstallmentID  string          `json:"installmentId,omitempty" validate:"omitempty,len=24,hexadecimal"`
	LoanGroupID    string          `json:"loanGroupId,omitempty" validate:"required_with=SequenceNumber"`
	SequenceNumber int             `json:"sequenceNumber,omitempty" validate:"omitempty,min=1"`
	Description    string          `json:"description,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	ReceiptNumber  string          `json:"receiptNumber,omitempty" validate:"omitempty,max=64"`
	CollectedAt    time.Time       `json:"collectedAt"`
}

func (c CollectionRequestMessage) String() string {
	return fmt.Sprintf(
		"MemberID: %s, CollectorID: %s, InstallmentID: %s, LoanGroupID: %s, Sequence: %d, Amount: %s, Receipt: %s",
		c.MemberID,
		c.CollectorID,
		c.InstallmentID,
		c.LoanGroupID,
		c.SequenceNumber,
		c.Amount.String(),
		c.ReceiptNumber,
	)
}

// NotificationMessage asks the notification service to text the member.
type NotificationMessage struct {
	Event            string          `json:"event"`
	MemberID         string          `json:"memberId"`
	LoanGroupID      string          `json:"loanGroupId"`
	InstallmentID    string          `json:"installmentId,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	OutstandingAfter decimal.Decimal `json:"outstandingAfter"`
	ReceiptNumber    string          `json:"receiptNumber,omitempty"`
	OccurredAt       time.Time       `json:"occurredAt"`
}
