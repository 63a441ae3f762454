package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type InstallmentStatus string

const (
	StatusPending   InstallmentStatus = "pending"
	StatusPartial   InstallmentStatus = "partial"
	StatusCollected InstallmentStatus = "collected"
	StatusMissed    InstallmentStatus = "missed"
	StatusCancelled InstallmentStatus = "cancelled"
)

// Unpaid reports whether the installment can still receive money.
func (s InstallmentStatus) Unpaid() bool {
	return s == StatusPending || s == StatusPartial || s == StatusMissed
}

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

func (f Frequency) Valid() bool {
	return f == FrequencyDaily || f == FrequencyWeekly || f == FrequencyMonthly
}

type PaymentMethod string

const (
	PaymentMethodCash        PaymentMethod = "cash"
	PaymentMethodOverpayment PaymentMethod = "overpayment"
	PaymentMethodSavings     PaymentMethod = "savings"
)

type PaymentEvent struct {
	Amount        decimal.Decimal    `bson:"amount" json:"amount"`
	Date          time.Time          `bson:"date" json:"date"`
	CollectorID   primitive.ObjectID `bson:"collectorId" json:"collectorId"`
	ReceiptNumber string             `bson:"receiptNumber,omitempty" json:"receiptNumber,omitempty"`
	Method        PaymentMethod      `bson:"method" json:"method"`
}

type Installment struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	LoanGroupID    string             `bson:"loanGroupId" json:"loanGroupId"`
	SequenceNumber int                `bson:"sequenceNumber" json:"sequenceNumber"`
	TotalInSeries  int                `bson:"totalInSeries" json:"totalInSeries"`
	MemberID       primitive.ObjectID `bson:"memberId" json:"memberId"`
	CollectorID    primitive.ObjectID `bson:"collectorId" json:"collectorId"`
	BranchID       primitive.ObjectID `bson:"branchId" json:"branchId"`
	ProductName    string             `bson:"productName,omitempty" json:"productName,omitempty"`
	Description    string             `bson:"description,omitempty" json:"description,omitempty"`

	Amount            decimal.Decimal   `bson:"amount" json:"amount"`
	PaidAmount        decimal.Decimal   `bson:"paidAmount" json:"paidAmount"`
	RemainingAmount   decimal.Decimal   `bson:"remainingAmount" json:"remainingAmount"`
	LastPaymentAmount decimal.Decimal   `bson:"lastPaymentAmount" json:"lastPaymentAmount"`
	Status            InstallmentStatus `bson:"status" json:"status"`

	DueDate         time.Time  `bson:"dueDate" json:"dueDate"`
	SaleDate        time.Time  `bson:"saleDate" json:"saleDate"`
	CollectionDate  *time.Time `bson:"collectionDate,omitempty" json:"collectionDate,omitempty"`
	CollectionWeek  int        `bson:"collectionWeek,omitempty" json:"collectionWeek,omitempty"`
	CollectionMonth string     `bson:"collectionMonth,omitempty" json:"collectionMonth,omitempty"`
	Frequency       Frequency  `bson:"frequency" json:"frequency"`

	PaymentHistory          []PaymentEvent  `bson:"paymentHistory" json:"paymentHistory"`
	ReceiptNumber           string          `bson:"receiptNumber,omitempty" json:"receiptNumber,omitempty"`
	IsAutoApplied           bool            `bson:"isAutoApplied" json:"isAutoApplied"`
	OutstandingAtCollection decimal.Decimal `bson:"outstandingAtCollection" json:"outstandingAtCollection"`

	IsActive  bool      `bson:"isActive" json:"isActive"`
	Revision  int64     `bson:"revision" json:"revision"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Counted reports whether the installment takes part in loan-group totals.
func (i *Installment) Counted() bool {
	return i.IsActive && i.Status != StatusCancelled
}

type Member struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name            string             `bson:"name" json:"name"`
	Phone           string             `bson:"phone,omitempty" json:"phone,omitempty"`
	BranchID        primitive.ObjectID `bson:"branchId" json:"branchId"`
	TotalSavings    decimal.Decimal    `bson:"totalSavings" json:"totalSavings"`
	TotalPaid       decimal.Decimal    `bson:"totalPaid" json:"totalPaid"`
	LastPaymentDate *time.Time         `bson:"lastPaymentDate,omitempty" json:"lastPaymentDate,omitempty"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type HistoryEntryType string

const (
	EntryTypeCollection       HistoryEntryType = "collection"
	EntryTypeCascade          HistoryEntryType = "cascade"
	EntryTypeSavingsDeduction HistoryEntryType = "savings_deduction"
	EntryTypeSavingsTransfer  HistoryEntryType = "savings_transfer"
)

// CollectionHistory is append-only; only the relay flag is ever updated.
type CollectionHistory struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	InstallmentID     primitive.ObjectID `bson:"installmentId,omitempty" json:"installmentId,omitempty"`
	MemberID          primitive.ObjectID `bson:"memberId" json:"memberId"`
	CollectorID       primitive.ObjectID `bson:"collectorId,omitempty" json:"collectorId,omitempty"`
	BranchID          primitive.ObjectID `bson:"branchId,omitempty" json:"branchId,omitempty"`
	LoanGroupID       string             `bson:"loanGroupId" json:"loanGroupId"`
	SourceLoanGroupID string             `bson:"sourceLoanGroupId,omitempty" json:"sourceLoanGroupId,omitempty"`
	Amount            decimal.Decimal    `bson:"amount" json:"amount"`
	Date              time.Time          `bson:"date" json:"date"`
	ReceiptNumber     string             `bson:"receiptNumber,omitempty" json:"receiptNumber,omitempty"`
	OutstandingAfter  decimal.Decimal    `bson:"outstandingAfter" json:"outstandingAfter"`
	EntryType         HistoryEntryType   `bson:"entryType" json:"entryType"`
	PaymentMethod     PaymentMethod      `bson:"paymentMethod" json:"paymentMethod"`
	PublishedToKafka  bool               `bson:"publishedToKafka" json:"publishedToKafka"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
}

type SavingsEntryType string

const (
	SavingsDeposit    SavingsEntryType = "deposit"
	SavingsWithdrawal SavingsEntryType = "withdrawal"
	SavingsTransfer   SavingsEntryType = "transfer"
)

// SavingsEntry is append-only. Transfers carry the completed group in SourceLoanGroupID
// and count as a credit to LoanGroupID and a debit to the source. SourceToken is set when
// the transfer drew from an untagged product pool, which it then debits too.
type SavingsEntry struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	MemberID          primitive.ObjectID `bson:"memberId" json:"memberId"`
	LoanGroupID       string             `bson:"loanGroupId,omitempty" json:"loanGroupId,omitempty"`
	SourceLoanGroupID string             `bson:"sourceLoanGroupId,omitempty" json:"sourceLoanGroupId,omitempty"`
	Type              SavingsEntryType   `bson:"type" json:"type"`
	Amount            decimal.Decimal    `bson:"amount" json:"amount"`
	Description       string             `bson:"description,omitempty" json:"description,omitempty"`
	SourceToken       string             `bson:"sourceToken,omitempty" json:"sourceToken,omitempty"`
	Date              time.Time          `bson:"date" json:"date"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
}

type Collector struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	BranchID    primitive.ObjectID `bson:"branchId" json:"branchId"`
	AssignedDay string             `bson:"assignedDay" json:"assignedDay"`
	VisitDates  []time.Time        `bson:"visitDates" json:"visitDates"`
}

type DeductionsInProgress struct {
	MemberID  primitive.ObjectID `bson:"memberId"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// MemberAggregateDelta is applied with $inc so concurrent updates never overwrite each other.
type MemberAggregateDelta struct {
	TotalPaid       decimal.Decimal
	TotalSavings    decimal.Decimal
	LastPaymentDate *time.Time
}
