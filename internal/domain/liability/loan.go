package liability

import (
	"math"
	"time"

	"github.com/pfin-cycle-ledger/internal/domain/cadence"
	"github.com/pfin-cycle-ledger/internal/domain/shared"
)

// Loan is an installment loan paid on its own recurrence. Payments are
// normalized to a monthly amount and applied once per monthly cycle.
type Loan struct {
	Base
	Recurrence cadence.Recurrence `json:"recurrence"`
}

// NewLoan creates a loan with the given principal cycling from the recurrence anchor
func NewLoan(userID, name string, principal float64, recurrence cadence.Recurrence, now time.Time) *Loan {
	l := &Loan{
		Base:       newBase(userID, name, recurrence.Anchor, now),
		Recurrence: recurrence,
	}
	l.Balance = principal
	if recurrence.DayOfMonth != 0 {
		l.CycleDay = recurrence.DayOfMonth
	}
	return l
}

func (l *Loan) Kind() Kind {
	return KindLoan
}

func (l *Loan) Validate() error {
	if err := l.Base.validate(); err != nil {
		return err
	}
	return l.Recurrence.Validate()
}

// LoanCycleResult is the outcome of SimulateLoan. Amounts are rounded to cents.
type LoanCycleResult struct {
	Cycles          int     `json:"cycles"`
	Balance         float64 `json:"balance"`
	MonthlyPayment  float64 `json:"monthly_payment"`
	InterestAccrued float64 `json:"interest_accrued"`
	PaymentsApplied float64 `json:"payments_applied"`
	PaidOff         bool    `json:"paid_off"`
}

// MonthlyPayment is the loan's minimum payment expressed per month
func (l Loan) MonthlyPayment() float64 {
	return cadence.MonthlyEquivalent(shared.NonNegative(l.MinimumPayment), l.Recurrence)
}

// SimulateLoan accrues interest and applies the normalized monthly payment once
// per cycle. Zero or negative cycles return the balance unchanged.
func SimulateLoan(l Loan, cycles int) LoanCycleResult {
	payment := l.MonthlyPayment()
	if cycles <= 0 {
		balance := shared.NonNegative(l.Balance)
		return LoanCycleResult{
			Balance:        balance,
			MonthlyPayment: shared.Round2(payment),
			PaidOff:        balance <= 0,
		}
	}

	apr := shared.NonNegative(l.APR)
	balance := shared.NonNegative(l.Balance)
	var totalInterest, totalPayments float64
	for i := 0; i < cycles; i++ {
		interest := balance * apr / 100 / 12
		balance += interest
		paid := math.Min(balance, payment)
		balance -= paid

		totalInterest += interest
		totalPayments += paid
	}

	balance = shared.Round2(balance)
	return LoanCycleResult{
		Cycles:          cycles,
		Balance:         balance,
		MonthlyPayment:  shared.Round2(payment),
		InterestAccrued: shared.Round2(totalInterest),
		PaymentsApplied: shared.Round2(totalPayments),
		PaidOff:         balance <= 0,
	}
}

func (l *Loan) Advance(cycles int, now time.Time) AdvanceResult {
	before := l.Balance
	res := SimulateLoan(*l, cycles)
	if cycles > 0 {
		l.Balance = res.Balance
		l.advanceAnchor(cycles, now)
	}
	return AdvanceResult{
		LiabilityID:     l.ID,
		Kind:            KindLoan,
		Cycles:          res.Cycles,
		BalanceBefore:   before,
		BalanceAfter:    l.Balance,
		InterestAccrued: res.InterestAccrued,
		PaymentsApplied: res.PaymentsApplied,
	}
}

func (l *Loan) Pay(amount float64, now time.Time) error {
	amount = shared.Round2(amount)
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > l.Balance {
		return ErrPaymentExceedsBalance
	}
	l.Balance = shared.Round2(l.Balance - amount)
	l.UpdatedAt = now
	l.Version++
	return nil
}

func (l *Loan) MonthlyCommitment() float64 {
	return shared.Round2(math.Min(l.MonthlyPayment(), shared.NonNegative(l.Balance)))
}
