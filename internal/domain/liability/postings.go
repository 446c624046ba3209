package liability

import (
	"time"

	"github.com/pfin-cycle-ledger/internal/domain/ledger"
	"github.com/pfin-cycle-ledger/internal/domain/shared"
)

const ReferenceTypeLiability = "LIABILITY"

// Accounts are the ledger account codes derived for one liability
type Accounts struct {
	Liability string
	Interest  string
	Spending  string
}

// AccountsOf derives the account codes of a liability from its kind, name and id
func AccountsOf(l Liability) Accounts {
	b := l.Info()
	category := ledger.CategoryLoanLiability
	if l.Kind() == KindCard {
		category = ledger.CategoryCardLiability
	}
	return Accounts{
		Liability: ledger.AccountCode(category, b.Name, b.ID),
		Interest:  ledger.AccountCode(ledger.CategoryInterestExpense, b.Name, b.ID),
		Spending:  ledger.AccountCode(ledger.CategorySpendingExpense, b.Name, b.ID),
	}
}

// CycleDrafts builds one balanced draft per non-zero aggregate of an advance:
// new spend, accrued interest and applied payments, in that order.
func CycleDrafts(l Liability, res AdvanceResult, cycleKey string, occurredAt time.Time) []ledger.Draft {
	b := l.Info()
	accounts := AccountsOf(l)

	interestType, paymentType := ledger.EntryTypeLoanInterest, ledger.EntryTypeLoanPayment
	if l.Kind() == KindCard {
		interestType, paymentType = ledger.EntryTypeCardInterest, ledger.EntryTypeCardPayment
	}

	var drafts []ledger.Draft
	add := func(entryType ledger.EntryType, debit, credit string, amount float64, description string) {
		if shared.Round2(amount) <= 0 {
			return
		}
		d := ledger.Transfer(b.UserID, entryType, debit, credit, shared.Cents(amount))
		d.Description = description
		d.OccurredAt = occurredAt
		d.ReferenceType = ReferenceTypeLiability
		d.ReferenceID = b.ID.String()
		d.CycleKey = cycleKey
		drafts = append(drafts, d)
	}

	add(ledger.EntryTypeCardSpend, accounts.Spending, accounts.Liability, res.SpendAdded, "Card spend on "+b.Name)
	add(interestType, accounts.Interest, accounts.Liability, res.InterestAccrued, "Interest on "+b.Name)
	add(paymentType, accounts.Liability, ledger.AccountCash, res.PaymentsApplied, "Payment to "+b.Name)
	return drafts
}

// ChargeDraft records an ad-hoc purchase on a card
func ChargeDraft(c *Card, amount float64, description string, occurredAt time.Time) ledger.Draft {
	accounts := AccountsOf(c)
	if description == "" {
		description = "Purchase on " + c.Name
	}
	d := ledger.Transfer(c.UserID, ledger.EntryTypeCardSpend, accounts.Spending, accounts.Liability, shared.Cents(amount))
	d.Description = description
	d.OccurredAt = occurredAt
	d.ReferenceType = ReferenceTypeLiability
	d.ReferenceID = c.ID.String()
	return d
}

// PaymentDraft records an ad-hoc payment from cash to a liability
func PaymentDraft(l Liability, amount float64, description string, occurredAt time.Time) ledger.Draft {
	b := l.Info()
	entryType := ledger.EntryTypeLoanPayment
	if l.Kind() == KindCard {
		entryType = ledger.EntryTypeCardPayment
	}
	if description == "" {
		description = "Payment to " + b.Name
	}
	d := ledger.Transfer(b.UserID, entryType, AccountsOf(l).Liability, ledger.AccountCash, shared.Cents(amount))
	d.Description = description
	d.OccurredAt = occurredAt
	d.ReferenceType = ReferenceTypeLiability
	d.ReferenceID = b.ID.String()
	return d
}
