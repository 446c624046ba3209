// Package liability models credit cards and installment loans and simulates
// their monthly statement cycles. Simulation is pure; callers persist the result.
package liability

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pfin-cycle-ledger/internal/domain/cadence"
)

// Kind tags the concrete liability shape
type Kind string

const (
	KindCard Kind = "CARD"
	KindLoan Kind = "LOAN"
)

// Common errors
var (
	ErrEmptyName              = errors.New("liability name cannot be empty")
	ErrEmptyUserID            = errors.New("liability user id cannot be empty")
	ErrNegativeAmount         = errors.New("amounts must not be negative")
	ErrInvalidCreditLimit     = errors.New("credit limit must be positive")
	ErrMissingMinimumPercent  = errors.New("minimum payment percent is required for PERCENT_PLUS_INTEREST cards")
	ErrInvalidMinimumPercent  = errors.New("minimum payment percent must be between 0 and 100")
	ErrUnknownMinimumPolicy   = errors.New("unknown minimum payment policy")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrPaymentExceedsBalance  = errors.New("payment exceeds outstanding balance")
	ErrChargeExceedsLimit     = errors.New("charge exceeds available credit")
	ErrInvalidCycleDay        = errors.New("cycle day must be between 1 and 31")
	ErrOperationNotPermitted  = errors.New("operation not supported for this liability kind")
	ErrMissingLastCycleAnchor = errors.New("last cycle anchor is required")
)

// Base holds the fields shared by every liability
type Base struct {
	ID              uuid.UUID `json:"id"`
	UserID          string    `json:"user_id"`
	Name            string    `json:"name"`
	Balance         float64   `json:"balance"`
	APR             float64   `json:"apr_percent"`
	MinimumPayment  float64   `json:"minimum_payment"`
	LastCycleAnchor time.Time `json:"last_cycle_anchor"`
	CycleDay        int       `json:"cycle_day"`
	Version         int       `json:"version"` // For optimistic locking
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Info exposes the shared fields to code holding a Liability
func (b *Base) Info() *Base {
	return b
}

// ElapsedCycles counts statement cycles that closed since the last cycle anchor
func (b *Base) ElapsedCycles(ref time.Time) int {
	return cadence.ElapsedMonthlyCyclesOnDay(b.LastCycleAnchor, ref, b.CycleDay)
}

func (b *Base) advanceAnchor(cycles int, now time.Time) {
	if b.CycleDay == 0 {
		b.CycleDay = cadence.DateOf(b.LastCycleAnchor).Day()
	}
	b.LastCycleAnchor = cadence.AddMonthsClamped(b.LastCycleAnchor, cycles, b.CycleDay)
	b.UpdatedAt = now
	b.Version++
}

func (b *Base) validate() error {
	if b.UserID == "" {
		return ErrEmptyUserID
	}
	if b.Name == "" {
		return ErrEmptyName
	}
	if b.Balance < 0 || b.APR < 0 || b.MinimumPayment < 0 {
		return ErrNegativeAmount
	}
	if b.CycleDay != 0 && (b.CycleDay < 1 || b.CycleDay > 31) {
		return ErrInvalidCycleDay
	}
	if b.LastCycleAnchor.IsZero() {
		return ErrMissingLastCycleAnchor
	}
	return nil
}

func newBase(userID, name string, anchor time.Time, now time.Time) Base {
	return Base{
		ID:              uuid.New(),
		UserID:          userID,
		Name:            name,
		LastCycleAnchor: anchor,
		CycleDay:        cadence.DateOf(anchor).Day(),
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// AdvanceResult summarizes one liability's catch-up within a cycle run
type AdvanceResult struct {
	LiabilityID     uuid.UUID `json:"liability_id" bson:"liability_id"`
	Kind            Kind      `json:"kind" bson:"kind"`
	Cycles          int       `json:"cycles" bson:"cycles"`
	BalanceBefore   float64   `json:"balance_before" bson:"balance_before"`
	BalanceAfter    float64   `json:"balance_after" bson:"balance_after"`
	InterestAccrued float64   `json:"interest_accrued" bson:"interest_accrued"`
	PaymentsApplied float64   `json:"payments_applied" bson:"payments_applied"`
	SpendAdded      float64   `json:"spend_added" bson:"spend_added"`
}

// Liability is implemented by *Card and *Loan
type Liability interface {
	Info() *Base
	Kind() Kind
	Validate() error
	ElapsedCycles(ref time.Time) int

	// Advance runs the given number of cycles, stores the new balances on the
	// receiver and moves the last cycle anchor forward by the same count.
	Advance(cycles int, now time.Time) AdvanceResult

	// Pay applies an ad-hoc payment outside the cycle
	Pay(amount float64, now time.Time) error

	// MonthlyCommitment is the expected monthly outflow for this liability
	MonthlyCommitment() float64
}
