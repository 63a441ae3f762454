package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HistoryWithInstallment is the relay projection of a history entry joined with its installment.
type HistoryWithInstallment struct {
	ID               primitive.ObjectID `bson:"_id"`
	InstallmentID    primitive.ObjectID `bson:"installmentId"`
	MemberID         primitive.ObjectID `bson:"memberId"`
	CollectorID      primitive.ObjectID `bson:"collectorId"`
	BranchID         primitive.ObjectID `bson:"branchId"`
	LoanGroupID      string             `bson:"loanGroupId"`
	SourceLoanGroup  string             `bson:"sourceLoanGroupId"`
	Amount           decimal.Decimal    `bson:"amount"`
	Date             time.Time          `bson:"date"`
	ReceiptNumber    string             `bson:"receiptNumber"`
	OutstandingAfter decimal.Decimal    `bson:"outstandingAfter"`
	EntryType        HistoryEntryType   `bson:"entryType"`
	PaymentMethod    PaymentMethod      `bson:"paymentMethod"`
	SequenceNumber   int                `bson:"sequenceNumber"`
	TotalInSeries    int                `bson:"totalInSeries"`
	CreatedAt        time.Time          `bson:"createdAt"`
}

func (h *HistoryWithInstallment) ToHistory() CollectionHistory {
	return CollectionHistory{
		ID:                h.ID,
		InstallmentID:     h.InstallmentID,
		MemberID:          h.MemberID,
		CollectorID:       h.CollectorID,
		BranchID:          h.BranchID,
		LoanGroupID:       h.LoanGroupID,
		SourceLoanGroupID: h.SourceLoanGroup,
		Amount:            h.Amount,
		Date:              h.Date,
		ReceiptNumber:     h.ReceiptNumber,
		OutstandingAfter:  h.OutstandingAfter,
		EntryType:         h.EntryType,
		PaymentMethod:     h.PaymentMethod,
		CreatedAt:         h.CreatedAt,
	}
}
