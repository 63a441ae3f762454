package collection

import (
	"context"
	"time"

	"installment-ledger/internal/pkg/common"
	"installment-ledger/internal/pkg/consts"
	"installment-ledger/internal/pkg/error_handling"
	"installment-ledger/internal/pkg/store/models"
	"installment-ledger/internal/service/interfaces"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DuplicateGuard rejects replays of a collection. It must run inside the same transaction
// as the write it protects.
type DuplicateGuard struct {
	history interfaces.CollectionHistoryRepoInterface
	loc     *time.Location
}

func NewDuplicateGuard(history interfaces.CollectionHistoryRepoInterface, loc *time.Location) *DuplicateGuard {
	if loc == nil {
		loc = time.UTC
	}
	return &DuplicateGuard{history: history, loc: loc}
}

// Check fails when the target is already collected and the same member paid the same amount
// for it on the same calendar day, or when receiptNumber was already used by the member.
// An empty receiptNumber skips the receipt check.
func (g *DuplicateGuard) Check(
	ctx context.Context,
	target *models.Installment,
	memberID primitive.ObjectID,
	amount decimal.Decimal,
	receiptNumber string,
	at time.Time,
) error {
	if receiptNumber != "" {
		used, err := g.history.ExistsByReceipt(ctx, memberID, receiptNumber)
		if err != nil {
			return err
		}
		if used {
			return &error_handling.DuplicateCollectionError{
				MemberID:      memberID.Hex(),
				InstallmentID: target.ID.Hex(),
				ReceiptNumber: receiptNumber,
			}
		}
	}

	if target.Status != models.StatusCollected {
		return nil
	}
	dayStart, dayEnd := common.DayBounds(at, g.loc)
	exists, err := g.history.ExistsForDay(ctx, memberID, target.ID, amount, dayStart, dayEnd)
	if err != nil {
		return err
	}
	if exists {
		return &error_handling.DuplicateCollectionError{
			MemberID:      memberID.Hex(),
			InstallmentID: target.ID.Hex(),
			Amount:        amount.String(),
			Day:           dayStart.Format(consts.DateFormat),
		}
	}
	return nil
}
