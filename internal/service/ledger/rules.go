package ledger

import (
	"fmt"
	"time"

	"installment-ledger/internal/pkg/common"
	"installment-ledger/internal/pkg/error_handling"
	"installment-ledger/internal/pkg/store/models"

	"github.com/shopspring/decimal"
)

var transitions = map[models.InstallmentStatus][]models.InstallmentStatus{
	models.StatusPending:   {models.StatusPartial, models.StatusCollected, models.StatusMissed, models.StatusCancelled},
	models.StatusPartial:   {models.StatusCollected, models.StatusCancelled},
	models.StatusMissed:    {models.StatusPartial, models.StatusCollected, models.StatusCancelled},
	models.StatusCollected: nil,
	models.StatusCancelled: nil,
}

// CanTransition reports whether from -> to is a legal move. Staying put is always legal.
func CanTransition(from, to models.InstallmentStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func Remaining(inst *models.Installment) decimal.Decimal {
	rem := inst.Amount.Sub(inst.PaidAmount)
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

func statusFor(inst *models.Installment) models.InstallmentStatus {
	switch {
	case inst.PaidAmount.GreaterThanOrEqual(inst.Amount):
		return models.StatusCollected
	case inst.PaidAmount.IsPositive():
		return models.StatusPartial
	default:
		return inst.Status
	}
}

// ApplyPayment is the single update rule for money reaching an installment.
func ApplyPayment(inst *models.Installment, amount decimal.Decimal, event models.PaymentEvent, loc *time.Location) error {
	if !amount.IsPositive() {
		return fmt.Errorf("payment amount must be positive, got %s", amount)
	}
	if !inst.Counted() {
		return error_handling.NewInconsistentLedgerStateError(inst.LoanGroupID,
			fmt.Sprintf("installment %s is not active", inst.ID.Hex()), nil)
	}

	inst.PaidAmount = inst.PaidAmount.Add(amount)
	next := statusFor(inst)
	if !CanTransition(inst.Status, next) {
		return error_handling.NewInconsistentLedgerStateError(inst.LoanGroupID,
			fmt.Sprintf("illegal transition %s -> %s on installment %s", inst.Status, next, inst.ID.Hex()), nil)
	}
	inst.Status = next
	inst.RemainingAmount = Remaining(inst)
	inst.LastPaymentAmount = amount

	event.Amount = amount
	inst.PaymentHistory = append(inst.PaymentHistory, event)
	collected := event.Date
	inst.CollectionDate = &collected
	inst.CollectionWeek = common.CollectionWeek(collected, loc)
	inst.CollectionMonth = common.CollectionMonth(collected, loc)
	inst.UpdatedAt = event.Date
	return nil
}

// FoldOverpayment credits money that found no other installment to the one just paid.
// The last payment event grows with it so the event log still sums to paidAmount.
func FoldOverpayment(inst *models.Installment, leftover decimal.Decimal) {
	if !leftover.IsPositive() {
		return
	}
	inst.PaidAmount = inst.PaidAmount.Add(leftover)
	inst.LastPaymentAmount = inst.LastPaymentAmount.Add(leftover)
	if n := len(inst.PaymentHistory); n > 0 {
		inst.PaymentHistory[n-1].Amount = inst.PaymentHistory[n-1].Amount.Add(leftover)
	}
	inst.Status = statusFor(inst)
	inst.RemainingAmount = Remaining(inst)
}

// GroupTotals sums amount and paid over installments that count towards the group.
func GroupTotals(installments []models.Installment) (total, paid decimal.Decimal) {
	total, paid = decimal.Zero, decimal.Zero
	for i := range installments {
		if !installments[i].Counted() {
			continue
		}
		total = total.Add(installments[i].Amount)
		paid = paid.Add(installments[i].PaidAmount)
	}
	return total, paid
}

// Outstanding never goes below zero, even when a folded overpayment pushes paid past total.
func Outstanding(installments []models.Installment) decimal.Decimal {
	total, paid := GroupTotals(installments)
	out := total.Sub(paid)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// Completed reports whether every counted installment of the group is collected.
func Completed(installments []models.Installment) bool {
	counted := 0
	for i := range installments {
		if !installments[i].Counted() {
			continue
		}
		counted++
		if installments[i].Status != models.StatusCollected {
			return false
		}
	}
	return counted > 0
}

func sumAmounts(installments []models.Installment) decimal.Decimal {
	sum := decimal.Zero
	for i := range installments {
		sum = sum.Add(installments[i].Amount)
	}
	return sum
}

// CheckInvariants compares a loan group before and after an in-memory change.
func CheckInvariants(loanGroupID string, before, after []models.Installment) error {
	fail := func(format string, args ...interface{}) error {
		return error_handling.NewInconsistentLedgerStateError(loanGroupID, fmt.Sprintf(format, args...), nil)
	}

	if len(before) != len(after) {
		return fail("installment count changed from %d to %d", len(before), len(after))
	}
	if !sumAmounts(before).Equal(sumAmounts(after)) {
		return fail("group amount changed from %s to %s", sumAmounts(before), sumAmounts(after))
	}

	prev := make(map[string]models.Installment, len(before))
	for _, inst := range before {
		prev[inst.ID.Hex()] = inst
	}
	for i := range after {
		inst := &after[i]
		old, ok := prev[inst.ID.Hex()]
		if !ok {
			return fail("installment %s appeared during update", inst.ID.Hex())
		}
		if !CanTransition(old.Status, inst.Status) {
			return fail("illegal transition %s -> %s on installment %s", old.Status, inst.Status, inst.ID.Hex())
		}
		if inst.PaidAmount.LessThan(old.PaidAmount) {
			return fail("paid amount decreased on installment %s", inst.ID.Hex())
		}
		if !inst.RemainingAmount.Equal(Remaining(inst)) {
			return fail("remaining amount %s does not match amount-paid on installment %s",
				inst.RemainingAmount, inst.ID.Hex())
		}
		if !inst.Counted() {
			continue
		}
		if (inst.Status == models.StatusCollected) != inst.PaidAmount.GreaterThanOrEqual(inst.Amount) {
			return fail("status %s disagrees with paid %s of %s on installment %s",
				inst.Status, inst.PaidAmount, inst.Amount, inst.ID.Hex())
		}
	}
	return nil
}

// CloneGroup deep-copies installments so a change can be checked against the original.
func CloneGroup(installments []models.Installment) []models.Installment {
	out := make([]models.Installment, len(installments))
	for i := range installments {
		out[i] = installments[i]
		out[i].PaymentHistory = append([]models.PaymentEvent(nil), installments[i].PaymentHistory...)
		if installments[i].CollectionDate != nil {
			d := *installments[i].CollectionDate
			out[i].CollectionDate = &d
		}
	}
	return out
}
