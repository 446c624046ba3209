// Package ledger implements the append-only double-entry ledger. Every entry
// carries at least two lines and its debits equal its credits to the cent.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryType classifies the money movement an entry records
type EntryType string

const (
	EntryTypeCardSpend    EntryType = "CARD_SPEND"
	EntryTypeCardInterest EntryType = "CARD_INTEREST"
	EntryTypeCardPayment  EntryType = "CARD_PAYMENT"
	EntryTypeLoanInterest EntryType = "LOAN_INTEREST"
	EntryTypeLoanPayment  EntryType = "LOAN_PAYMENT"
	EntryTypeManual       EntryType = "MANUAL"
	EntryTypeReversal     EntryType = "REVERSAL"
)

// LineType is the side of a ledger line
type LineType string

const (
	LineTypeDebit  LineType = "DEBIT"
	LineTypeCredit LineType = "CREDIT"
)

const ReferenceTypeLedgerEntry = "LEDGER_ENTRY"

var (
	ErrInvalidDraft    = errors.New("invalid ledger entry draft")
	ErrAlreadyReversed = errors.New("ledger entry already reversed")
)

// Line is one debit or credit of an entry
type Line struct {
	EntryID     uuid.UUID       `json:"entry_id" bson:"entry_id"`
	LineType    LineType        `json:"line_type" bson:"line_type"`
	AccountCode string          `json:"account_code" bson:"account_code"`
	Amount      decimal.Decimal `json:"amount" bson:"amount"`
}

// Entry is an immutable ledger record. Header and lines are stored together.
type Entry struct {
	ID            uuid.UUID `json:"id" bson:"_id"`
	UserID        string    `json:"user_id" bson:"user_id"`
	EntryType     EntryType `json:"entry_type" bson:"entry_type"`
	Description   string    `json:"description" bson:"description"`
	OccurredAt    time.Time `json:"occurred_at" bson:"occurred_at"`
	ReferenceType string    `json:"reference_type,omitempty" bson:"reference_type,omitempty"`
	ReferenceID   string    `json:"reference_id,omitempty" bson:"reference_id,omitempty"`
	CycleKey      string    `json:"cycle_key,omitempty" bson:"cycle_key,omitempty"`
	Lines         []Line    `json:"lines" bson:"lines"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}

// DraftLine is a line before validation
type DraftLine struct {
	LineType    LineType        `json:"line_type"`
	AccountCode string          `json:"account_code"`
	Amount      decimal.Decimal `json:"amount"`
}

// Draft is an unvalidated entry submitted for appending
type Draft struct {
	UserID        string      `json:"user_id"`
	EntryType     EntryType   `json:"entry_type"`
	Description   string      `json:"description"`
	OccurredAt    time.Time   `json:"occurred_at"`
	ReferenceType string      `json:"reference_type,omitempty"`
	ReferenceID   string      `json:"reference_id,omitempty"`
	CycleKey      string      `json:"cycle_key,omitempty"`
	Lines         []DraftLine `json:"lines"`
}

// ImbalancedEntryError is returned for drafts with fewer than two lines or
// with debit and credit totals that differ
type ImbalancedEntryError struct {
	LineCount int
	Debits    decimal.Decimal
	Credits   decimal.Decimal
}

func (e ImbalancedEntryError) Error() string {
	if e.LineCount < 2 {
		return fmt.Sprintf("imbalanced ledger entry: %d line(s), at least 2 required", e.LineCount)
	}
	return fmt.Sprintf("imbalanced ledger entry: debits %s != credits %s", e.Debits.StringFixed(2), e.Credits.StringFixed(2))
}

// InvalidLineAmountError is returned for a line whose amount is not a positive number of cents
type InvalidLineAmountError struct {
	Index  int
	Amount decimal.Decimal
}

func (e InvalidLineAmountError) Error() string {
	return fmt.Sprintf("invalid amount %s on ledger line %d: must be positive", e.Amount.String(), e.Index)
}

// Totals returns the debit and credit sums of the lines
func Totals(lines []Line) (debits, credits decimal.Decimal) {
	for _, l := range lines {
		if l.LineType == LineTypeDebit {
			debits = debits.Add(l.Amount)
		} else {
			credits = credits.Add(l.Amount)
		}
	}
	return debits, credits
}

// NewEntry validates a draft and turns it into an entry with a fresh id.
// Amounts are rounded to cents before the balance check.
func NewEntry(d Draft, now time.Time) (*Entry, error) {
	if d.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidDraft)
	}
	if d.EntryType == "" {
		return nil, fmt.Errorf("%w: entry_type is required", ErrInvalidDraft)
	}
	if len(d.Lines) < 2 {
		return nil, ImbalancedEntryError{LineCount: len(d.Lines)}
	}

	id := uuid.New()
	lines := make([]Line, 0, len(d.Lines))
	for i, dl := range d.Lines {
		if dl.LineType != LineTypeDebit && dl.LineType != LineTypeCredit {
			return nil, fmt.Errorf("%w: unknown line type %q on line %d", ErrInvalidDraft, dl.LineType, i)
		}
		if dl.AccountCode == "" {
			return nil, fmt.Errorf("%w: account_code is required on line %d", ErrInvalidDraft, i)
		}
		amount := dl.Amount.Round(2)
		if !amount.IsPositive() {
			return nil, InvalidLineAmountError{Index: i, Amount: dl.Amount}
		}
		lines = append(lines, Line{
			EntryID:     id,
			LineType:    dl.LineType,
			AccountCode: dl.AccountCode,
			Amount:      amount,
		})
	}

	debits, credits := Totals(lines)
	if !debits.Equal(credits) {
		return nil, ImbalancedEntryError{LineCount: len(lines), Debits: debits, Credits: credits}
	}

	occurredAt := d.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}
	return &Entry{
		ID:            id,
		UserID:        d.UserID,
		EntryType:     d.EntryType,
		Description:   d.Description,
		OccurredAt:    occurredAt.UTC(),
		ReferenceType: d.ReferenceType,
		ReferenceID:   d.ReferenceID,
		CycleKey:      d.CycleKey,
		Lines:         lines,
		CreatedAt:     now.UTC(),
	}, nil
}

// ReversalDraft builds the correcting entry for an existing one with every line
// moved to the opposite side
func ReversalDraft(original *Entry, description string, now time.Time) Draft {
	if description == "" {
		description = "Reversal of " + original.ID.String()
	}
	lines := make([]DraftLine, 0, len(original.Lines))
	for _, l := range original.Lines {
		side := LineTypeDebit
		if l.LineType == LineTypeDebit {
			side = LineTypeCredit
		}
		lines = append(lines, DraftLine{LineType: side, AccountCode: l.AccountCode, Amount: l.Amount})
	}
	return Draft{
		UserID:        original.UserID,
		EntryType:     EntryTypeReversal,
		Description:   description,
		OccurredAt:    now,
		ReferenceType: ReferenceTypeLedgerEntry,
		ReferenceID:   original.ID.String(),
		CycleKey:      original.CycleKey,
		Lines:         lines,
	}
}

// Transfer is a two line draft moving amount from the credited account to the debited one
func Transfer(userID string, entryType EntryType, debit, credit string, amount decimal.Decimal) Draft {
	return Draft{
		UserID:    userID,
		EntryType: entryType,
		Lines: []DraftLine{
			{LineType: LineTypeDebit, AccountCode: debit, Amount: amount},
			{LineType: LineTypeCredit, AccountCode: credit, Amount: amount},
		},
	}
}
