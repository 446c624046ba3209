package cycle

import (
	"time"

	"github.com/google/uuid"
	"github.com/pfin-cycle-ledger/internal/domain/cadence"
	"github.com/pfin-cycle-ledger/internal/domain/liability"
	"github.com/pfin-cycle-ledger/internal/domain/shared"
)

// RecurringAmount is an income or bill owned by the profile collaborator
type RecurringAmount struct {
	Name       string             `json:"name" bson:"name"`
	Amount     float64            `json:"amount" bson:"amount"`
	Recurrence cadence.Recurrence `json:"recurrence" bson:"recurrence"`
}

// Profile is the read-only financial context needed for a month-close snapshot
type Profile struct {
	CashBalance float64           `json:"cash_balance"`
	Incomes     []RecurringAmount `json:"incomes"`
	Bills       []RecurringAmount `json:"bills"`
}

// Summary is the point-in-time financial picture stored with each cycle
type Summary struct {
	NetWorth           float64  `json:"net_worth" bson:"net_worth"`
	CashBalance        float64  `json:"cash_balance" bson:"cash_balance"`
	TotalDebt          float64  `json:"total_debt" bson:"total_debt"`
	MonthlyIncome      float64  `json:"monthly_income" bson:"monthly_income"`
	MonthlyCommitments float64  `json:"monthly_commitments" bson:"monthly_commitments"`
	MonthlyNet         float64  `json:"monthly_net" bson:"monthly_net"`
	RunwayMonths       *float64 `json:"runway_months,omitempty" bson:"runway_months,omitempty"`
	CreditUtilization  *float64 `json:"credit_utilization,omitempty" bson:"credit_utilization,omitempty"`
	CardCount          int      `json:"card_count" bson:"card_count"`
	LoanCount          int      `json:"loan_count" bson:"loan_count"`
}

// Snapshot is the month-close record, one per user and cycle key
type Snapshot struct {
	UserID    string    `json:"user_id" bson:"user_id"`
	CycleKey  string    `json:"cycle_key" bson:"cycle_key"`
	RunID     uuid.UUID `json:"run_id" bson:"run_id"`
	Summary   Summary   `json:"summary" bson:"summary"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Summarize computes the month-close summary from the profile and the
// post-run liabilities. Runway is omitted when there are no commitments and
// utilization when no card has a limit.
func Summarize(profile *Profile, liabilities []liability.Liability) Summary {
	if profile == nil {
		profile = &Profile{}
	}

	var s Summary
	var cardBalances, cardLimits float64
	for _, l := range liabilities {
		b := l.Info()
		s.TotalDebt += shared.NonNegative(b.Balance)
		s.MonthlyCommitments += l.MonthlyCommitment()
		if c, ok := l.(*liability.Card); ok {
			s.CardCount++
			cardBalances += shared.NonNegative(c.Balance)
			cardLimits += shared.NonNegative(c.CreditLimit)
			continue
		}
		s.LoanCount++
	}
	for _, income := range profile.Incomes {
		s.MonthlyIncome += cadence.MonthlyEquivalent(shared.NonNegative(income.Amount), income.Recurrence)
	}
	for _, bill := range profile.Bills {
		s.MonthlyCommitments += cadence.MonthlyEquivalent(shared.NonNegative(bill.Amount), bill.Recurrence)
	}

	s.CashBalance = shared.Round2(profile.CashBalance)
	s.TotalDebt = shared.Round2(s.TotalDebt)
	s.MonthlyIncome = shared.Round2(s.MonthlyIncome)
	s.MonthlyCommitments = shared.Round2(s.MonthlyCommitments)
	s.NetWorth = shared.Round2(s.CashBalance - s.TotalDebt)
	s.MonthlyNet = shared.Round2(s.MonthlyIncome - s.MonthlyCommitments)

	if s.MonthlyCommitments > 0 {
		runway := shared.Round2(shared.NonNegative(s.CashBalance) / s.MonthlyCommitments)
		s.RunwayMonths = &runway
	}
	if cardLimits > 0 {
		utilization := shared.Round2(cardBalances / cardLimits)
		s.CreditUtilization = &utilization
	}
	return s
}
