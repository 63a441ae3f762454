package savings

import (
	"strings"
	"unicode"

	"installment-ledger/internal/pkg/store/models"

	"github.com/shopspring/decimal"
)

type Tier int

const (
	TierNone Tier = iota
	TierLoanGroup
	TierProduct
	TierLegacy
)

func (t Tier) String() string {
	switch t {
	case TierLoanGroup:
		return "loanGroup"
	case TierProduct:
		return "product"
	case TierLegacy:
		return "legacy"
	default:
		return "none"
	}
}

// LoanGroupRef identifies the loan group savings are being matched against.
type LoanGroupRef struct {
	LoanGroupID string
	ProductName string
}

// Earmark is the savings balance usable by one loan group.
type Earmark struct {
	Tier    Tier
	Token   string
	Balance decimal.Decimal
}

// ProductToken is the lower-cased first word of a product name with at least three letters.
func ProductToken(productName string) string {
	for _, word := range strings.FieldsFunc(productName, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(word)) >= 3 {
			return strings.ToLower(word)
		}
	}
	return ""
}

func untagged(e *models.SavingsEntry) bool {
	return e.LoanGroupID == "" && e.SourceLoanGroupID == ""
}

func mentions(description, token string) bool {
	return token != "" && strings.Contains(strings.ToLower(description), token)
}

// signedAmount is the effect of an entry on the balance earmarked for loanGroupID.
func signedAmount(e *models.SavingsEntry, loanGroupID string) decimal.Decimal {
	switch e.Type {
	case models.SavingsDeposit:
		return e.Amount
	case models.SavingsWithdrawal:
		return e.Amount.Neg()
	case models.SavingsTransfer:
		if e.SourceLoanGroupID == loanGroupID && loanGroupID != "" {
			return e.Amount.Neg()
		}
		if e.LoanGroupID == loanGroupID {
			return e.Amount
		}
	}
	return decimal.Zero
}

// ComputeEarmark picks the first tier that has any entries: entries tagged with the loan group
// (as owner or as transfer source), then untagged entries naming the product, then untagged
// entries naming no known product. otherProducts are the member's other product names.
// Legacy balances are shared by every group and never belong to one of them.
func ComputeEarmark(entries []models.SavingsEntry, group LoanGroupRef, otherProducts []string) Earmark {
	token := ProductToken(group.ProductName)
	known := []string{}
	if token != "" {
		known = append(known, token)
	}
	for _, p := range otherProducts {
		if t := ProductToken(p); t != "" {
			known = append(known, t)
		}
	}

	// transfers out of the product pool debit it for every group sharing the token
	drawnFromPool := func(e *models.SavingsEntry) bool {
		return e.Type == models.SavingsTransfer && token != "" && e.SourceToken == token
	}

	tiers := []struct {
		tier  Tier
		match func(e *models.SavingsEntry) bool
	}{
		{TierLoanGroup, func(e *models.SavingsEntry) bool {
			return e.LoanGroupID == group.LoanGroupID || e.SourceLoanGroupID == group.LoanGroupID
		}},
		{TierProduct, func(e *models.SavingsEntry) bool {
			return (untagged(e) && mentions(e.Description, token)) || drawnFromPool(e)
		}},
		{TierLegacy, func(e *models.SavingsEntry) bool {
			if !untagged(e) {
				return false
			}
			for _, k := range known {
				if mentions(e.Description, k) {
					return false
				}
			}
			return true
		}},
	}

	for _, t := range tiers {
		matched := false
		balance := decimal.Zero
		for i := range entries {
			if !t.match(&entries[i]) {
				continue
			}
			matched = true
			if t.tier == TierProduct && drawnFromPool(&entries[i]) {
				balance = balance.Sub(entries[i].Amount)
				continue
			}
			balance = balance.Add(signedAmount(&entries[i], group.LoanGroupID))
		}
		if !matched {
			continue
		}
		if balance.IsNegative() {
			balance = decimal.Zero
		}
		return Earmark{Tier: t.tier, Token: token, Balance: balance}
	}
	return Earmark{Tier: TierNone, Token: token, Balance: decimal.Zero}
}

// tagWithdrawal makes a withdrawal count against the same tier it was drawn from.
func tagWithdrawal(entry *models.SavingsEntry, earmark Earmark, loanGroupID string) {
	switch earmark.Tier {
	case TierLoanGroup:
		entry.LoanGroupID = loanGroupID
	case TierProduct:
		entry.Description = earmark.Token
	}
}
