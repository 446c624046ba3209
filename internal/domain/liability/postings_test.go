package liability

import (
	"testing"
	"time"

	"github.com/pfin-cycle-ledger/internal/domain/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCycleDrafts(t *testing.T) {
	occurredAt := time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)

	t.Run("CardWithAllAggregates", func(t *testing.T) {
		card := newTestCard()
		card.SpendPerMonth = 120
		res := card.Advance(1, occurredAt)

		drafts := CycleDrafts(&card, res, "2024-03", occurredAt)
		require.Len(t, drafts, 3)

		accounts := AccountsOf(&card)
		assert.Equal(t, ledger.EntryTypeCardSpend, drafts[0].EntryType)
		assert.Equal(t, accounts.Spending, drafts[0].Lines[0].AccountCode)
		assert.Equal(t, accounts.Liability, drafts[0].Lines[1].AccountCode)

		assert.Equal(t, ledger.EntryTypeCardInterest, drafts[1].EntryType)
		assert.Equal(t, "20.00", drafts[1].Lines[0].Amount.StringFixed(2))

		assert.Equal(t, ledger.EntryTypeCardPayment, drafts[2].EntryType)
		assert.Equal(t, accounts.Liability, drafts[2].Lines[0].AccountCode)
		assert.Equal(t, ledger.AccountCash, drafts[2].Lines[1].AccountCode)

		for _, d := range drafts {
			assert.Equal(t, "2024-03", d.CycleKey)
			assert.Equal(t, ReferenceTypeLiability, d.ReferenceType)
			assert.Equal(t, card.ID.String(), d.ReferenceID)
			_, err := ledger.NewEntry(d, occurredAt)
			assert.NoError(t, err)
		}
	})

	t.Run("LoanSkipsZeroAggregates", func(t *testing.T) {
		loan := newTestLoan()
		loan.APR = 0
		res := loan.Advance(1, occurredAt)

		drafts := CycleDrafts(&loan, res, "2024-02", occurredAt)
		require.Len(t, drafts, 1)
		assert.Equal(t, ledger.EntryTypeLoanPayment, drafts[0].EntryType)
		assert.Contains(t, drafts[0].Lines[0].AccountCode, ledger.CategoryLoanLiability)
	})

	t.Run("NothingElapsed", func(t *testing.T) {
		card := newTestCard()
		res := card.Advance(0, occurredAt)
		assert.Empty(t, CycleDrafts(&card, res, "2024-01", occurredAt))
	})
}

func TestAdHocDrafts(t *testing.T) {
	card := newTestCard()
	now := time.Now()

	charge := ChargeDraft(&card, 42.5, "", now)
	assert.Equal(t, ledger.EntryTypeCardSpend, charge.EntryType)
	assert.Equal(t, "Purchase on Everyday Visa", charge.Description)

	loan := newTestLoan()
	payment := PaymentDraft(&loan, 300, "Extra principal", now)
	assert.Equal(t, ledger.EntryTypeLoanPayment, payment.EntryType)
	assert.Equal(t, ledger.AccountCash, payment.Lines[1].AccountCode)

	for _, d := range []ledger.Draft{charge, payment} {
		_, err := ledger.NewEntry(d, now)
		assert.NoError(t, err)
	}
}
