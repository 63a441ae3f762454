package collection

import (
	"strings"
	"time"

	"installment-ledger/internal/pkg/error_handling"
	"installment-ledger/internal/pkg/models"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CollectionRequest is one cash collection. The target is InstallmentID if set, else
// LoanGroupID+SequenceNumber, else the member's outstanding installment matching Amount
// and Description.
type CollectionRequest struct {
	MemberID       primitive.ObjectID
	CollectorID    primitive.ObjectID
	InstallmentID  primitive.ObjectID
	LoanGroupID    string
	SequenceNumber int
	Description    string
	Amount         decimal.Decimal
	ReceiptNumber  string
	CollectedAt    time.Time
}

func parseObjectID(field, value string, required bool) (primitive.ObjectID, error) {
	if value == "" {
		if required {
			return primitive.NilObjectID, error_handling.NewValidationError(field, "is required")
		}
		return primitive.NilObjectID, nil
	}
	id, err := primitive.ObjectIDFromHex(value)
	if err != nil {
		return primitive.NilObjectID, error_handling.NewValidationError(field, "must be a valid ObjectID")
	}
	return id, nil
}

// RequestFromMessage converts the wire form used by Pub/Sub and HTTP.
func RequestFromMessage(msg *models.CollectionRequestMessage) (*CollectionRequest, error) {
	memberID, err := parseObjectID("memberId", msg.MemberID, true)
	if err != nil {
		return nil, err
	}
	collectorID, err := parseObjectID("collectorId", msg.CollectorID, true)
	if err != nil {
		return nil, err
	}
	installmentID, err := parseObjectID("installmentId", msg.InstallmentID, false)
	if err != nil {
		return nil, err
	}
	return &CollectionRequest{
		MemberID:       memberID,
		CollectorID:    collectorID,
		InstallmentID:  installmentID,
		LoanGroupID:    strings.TrimSpace(msg.LoanGroupID),
		SequenceNumber: msg.SequenceNumber,
		Description:    strings.TrimSpace(msg.Description),
		Amount:         msg.Amount,
		ReceiptNumber:  strings.TrimSpace(msg.ReceiptNumber),
		CollectedAt:    msg.CollectedAt,
	}, nil
}

func (r *CollectionRequest) validate() error {
	if r.MemberID.IsZero() {
		return error_handling.NewValidationError("memberId", "is required")
	}
	if r.CollectorID.IsZero() {
		return error_handling.NewValidationError("collectorId", "is required")
	}
	if !r.Amount.IsPositive() {
		return error_handling.NewValidationError("amount", "must be greater than zero")
	}
	if !r.Amount.Equal(r.Amount.Round(2)) {
		return error_handling.NewValidationError("amount", "must have at most two decimal places")
	}
	if r.InstallmentID.IsZero() && r.LoanGroupID == "" && r.Description == "" {
		return error_handling.NewValidationError("installmentId",
			"one of installmentId, loanGroupId with sequenceNumber, or description is required")
	}
	if r.InstallmentID.IsZero() && r.LoanGroupID != "" && r.SequenceNumber < 1 {
		return error_handling.NewValidationError("sequenceNumber", "must be at least 1 when loanGroupId is given")
	}
	return nil
}
