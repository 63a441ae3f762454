package common

import (
	"fmt"
	"strings"
	"time"

	"installment-ledger/internal/pkg/consts"
	"installment-ledger/internal/pkg/models"
	storemodels "installment-ledger/internal/pkg/store/models"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GenerateReceiptNumber builds the receipt for a collection that arrived without one. The
// installment suffix keeps receipts of different loan groups collected in the same second apart.
func GenerateReceiptNumber(now time.Time, memberID, installmentID primitive.ObjectID, sequence int) string {
	member := strings.ToUpper(memberID.Hex())
	inst := strings.ToUpper(installmentID.Hex())
	return fmt.Sprintf("%s-%s-%s-%s-%03d", consts.ReceiptPrefix, now.Format("20060102150405"),
		member[len(member)-6:], inst[len(inst)-6:], sequence)
}

// CollectionWeek is the ISO week of the collection instant in loc.
func CollectionWeek(t time.Time, loc *time.Location) int {
	_, week := t.In(loc).ISOWeek()
	return week
}

func CollectionMonth(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(consts.MonthKeyFormat)
}

// StartOfDay normalises t to midnight of its calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// DayBounds returns [start, end) of the calendar day containing t.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	start := StartOfDay(t, loc)
	return start, start.AddDate(0, 0, 1)
}

func SerializeHistoryEntry(
	inst *storemodels.Installment,
	amount decimal.Decimal,
	entryType storemodels.HistoryEntryType,
	method storemodels.PaymentMethod,
	receiptNumber string,
	outstandingAfter decimal.Decimal,
	collectorID primitive.ObjectID,
	date time.Time,
) storemodels.CollectionHistory {
	return storemodels.CollectionHistory{
		InstallmentID:    inst.ID,
		MemberID:         inst.MemberID,
		CollectorID:      collectorID,
		BranchID:         inst.BranchID,
		LoanGroupID:      inst.LoanGroupID,
		Amount:           amount,
		Date:             date,
		ReceiptNumber:    receiptNumber,
		OutstandingAfter: outstandingAfter,
		EntryType:        entryType,
		PaymentMethod:    method,
		PublishedToKafka: false,
		CreatedAt:        date,
	}
}

func SerializeNotification(event string, entry storemodels.CollectionHistory) models.NotificationMessage {
	msg := models.NotificationMessage{
		Event:            event,
		MemberID:         entry.MemberID.Hex(),
		LoanGroupID:      entry.LoanGroupID,
		Amount:           entry.Amount,
		OutstandingAfter: entry.OutstandingAfter,
		ReceiptNumber:    entry.ReceiptNumber,
		OccurredAt:       entry.Date,
	}
	if !entry.InstallmentID.IsZero() {
		msg.InstallmentID = entry.InstallmentID.Hex()
	}
	return msg
}
