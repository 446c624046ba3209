package liability

import (
	"math"
	"time"

	"github.com/pfin-cycle-ledger/internal/domain/shared"
)

// MinimumPaymentPolicy decides how a card's minimum due is computed
type MinimumPaymentPolicy string

const (
	MinimumPaymentFixed               MinimumPaymentPolicy = "FIXED"
	MinimumPaymentPercentPlusInterest MinimumPaymentPolicy = "PERCENT_PLUS_INTEREST"
)

// Card is a revolving credit card. StatementBalance plus PendingCharges always
// equals Balance once a cycle settles.
type Card struct {
	Base
	CreditLimit           float64              `json:"credit_limit"`
	StatementBalance      float64              `json:"statement_balance"`
	PendingCharges        float64              `json:"pending_charges"`
	SpendPerMonth         float64              `json:"spend_per_month"`
	MinimumPaymentPolicy  MinimumPaymentPolicy `json:"minimum_payment_policy"`
	MinimumPaymentPercent float64              `json:"minimum_payment_percent,omitempty"`
	ExtraPayment          float64              `json:"extra_payment"`
}

// NewCard creates a card with an empty balance cycling from the given anchor
func NewCard(userID, name string, creditLimit float64, anchor, now time.Time) *Card {
	return &Card{
		Base:                 newBase(userID, name, anchor, now),
		CreditLimit:          creditLimit,
		MinimumPaymentPolicy: MinimumPaymentFixed,
	}
}

func (c *Card) Kind() Kind {
	return KindCard
}

// Validate is the write boundary check for cards
func (c *Card) Validate() error {
	if err := c.Base.validate(); err != nil {
		return err
	}
	if c.CreditLimit <= 0 {
		return ErrInvalidCreditLimit
	}
	return c.ValidateTerms()
}

// ValidateTerms checks only the inputs SimulateCard reads, for previews of
// cards that are not stored
func (c *Card) ValidateTerms() error {
	if c.Balance < 0 || c.APR < 0 || c.MinimumPayment < 0 {
		return ErrNegativeAmount
	}
	if c.StatementBalance < 0 || c.PendingCharges < 0 || c.SpendPerMonth < 0 || c.ExtraPayment < 0 {
		return ErrNegativeAmount
	}
	switch c.MinimumPaymentPolicy {
	case MinimumPaymentFixed:
	case MinimumPaymentPercentPlusInterest:
		if c.MinimumPaymentPercent == 0 {
			return ErrMissingMinimumPercent
		}
		if c.MinimumPaymentPercent < 0 || c.MinimumPaymentPercent > 100 {
			return ErrInvalidMinimumPercent
		}
	default:
		return ErrUnknownMinimumPolicy
	}
	return nil
}

// CardCycleResult is the outcome of SimulateCard. Amounts are rounded to cents.
type CardCycleResult struct {
	Cycles           int     `json:"cycles"`
	Balance          float64 `json:"balance"`
	StatementBalance float64 `json:"statement_balance"`
	PendingCharges   float64 `json:"pending_charges"`
	DueBalance       float64 `json:"due_balance"`
	MinimumDue       float64 `json:"minimum_due"`
	NextMinimumDue   float64 `json:"next_minimum_due"`
	InterestAccrued  float64 `json:"interest_accrued"`
	PaymentsApplied  float64 `json:"payments_applied"`
	SpendAdded       float64 `json:"spend_added"`
}

func termsOf(c Card) cardTerms {
	return cardTerms{
		apr:     shared.NonNegative(c.APR),
		minimum: shared.NonNegative(c.MinimumPayment),
		percent: shared.NonNegative(c.MinimumPaymentPercent),
		extra:   shared.NonNegative(c.ExtraPayment),
		spend:   shared.NonNegative(c.SpendPerMonth),
		policy:  c.MinimumPaymentPolicy,
	}
}

type cardTerms struct {
	apr, minimum, percent, extra, spend float64
	policy                              MinimumPaymentPolicy
}

func (t cardTerms) interest(statement float64) float64 {
	if t.apr <= 0 {
		return 0
	}
	return statement * t.apr / 100 / 12
}

func (t cardTerms) minimumDue(statement, interest, due float64) float64 {
	if t.policy == MinimumPaymentPercentPlusInterest {
		return math.Min(due, math.Max(statement*t.percent/100+interest, 0))
	}
	return math.Min(due, t.minimum)
}

// SimulateCard advances a card snapshot through the given number of monthly
// statement cycles without touching the input. Zero or negative cycles return
// the balances unchanged.
func SimulateCard(c Card, cycles int) CardCycleResult {
	terms := termsOf(c)
	statement := shared.NonNegative(c.StatementBalance)
	pending := shared.NonNegative(c.PendingCharges)

	if cycles <= 0 {
		interest := terms.interest(statement)
		return CardCycleResult{
			Balance:          shared.NonNegative(c.Balance),
			StatementBalance: statement,
			PendingCharges:   pending,
			NextMinimumDue:   shared.Round2(terms.minimumDue(statement, interest, statement+interest)),
		}
	}

	var due, minimumDue, totalInterest, totalPayments, totalSpend float64
	for i := 0; i < cycles; i++ {
		interest := terms.interest(statement)
		due = statement + interest
		minimumDue = terms.minimumDue(statement, interest, due)
		payment := math.Min(due, minimumDue+terms.extra)

		pending += terms.spend
		statement = (due - payment) + pending
		pending = 0

		totalInterest += interest
		totalPayments += payment
		totalSpend += terms.spend
	}

	statement = shared.Round2(statement)
	nextInterest := terms.interest(statement)
	return CardCycleResult{
		Cycles:           cycles,
		Balance:          statement,
		StatementBalance: statement,
		PendingCharges:   0,
		DueBalance:       shared.Round2(due),
		MinimumDue:       shared.Round2(minimumDue),
		NextMinimumDue:   shared.Round2(terms.minimumDue(statement, nextInterest, statement+nextInterest)),
		InterestAccrued:  shared.Round2(totalInterest),
		PaymentsApplied:  shared.Round2(totalPayments),
		SpendAdded:       shared.Round2(totalSpend),
	}
}

func (c *Card) Advance(cycles int, now time.Time) AdvanceResult {
	before := c.Balance
	res := SimulateCard(*c, cycles)
	if cycles > 0 {
		c.Balance = res.Balance
		c.StatementBalance = res.StatementBalance
		c.PendingCharges = res.PendingCharges
		c.advanceAnchor(cycles, now)
	}
	return AdvanceResult{
		LiabilityID:     c.ID,
		Kind:            KindCard,
		Cycles:          res.Cycles,
		BalanceBefore:   before,
		BalanceAfter:    c.Balance,
		InterestAccrued: res.InterestAccrued,
		PaymentsApplied: res.PaymentsApplied,
		SpendAdded:      res.SpendAdded,
	}
}

// Charge records a purchase made since the last statement
func (c *Card) Charge(amount float64, now time.Time) error {
	amount = shared.Round2(amount)
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if c.Balance+amount > c.CreditLimit {
		return ErrChargeExceedsLimit
	}
	c.PendingCharges = shared.Round2(c.PendingCharges + amount)
	c.Balance = shared.Round2(c.StatementBalance + c.PendingCharges)
	c.UpdatedAt = now
	c.Version++
	return nil
}

// Pay reduces the statement balance first and pending charges with the remainder
func (c *Card) Pay(amount float64, now time.Time) error {
	amount = shared.Round2(amount)
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > c.Balance {
		return ErrPaymentExceedsBalance
	}
	fromStatement := math.Min(amount, c.StatementBalance)
	c.StatementBalance = shared.Round2(c.StatementBalance - fromStatement)
	c.PendingCharges = shared.Round2(math.Max(c.PendingCharges-(amount-fromStatement), 0))
	c.Balance = shared.Round2(c.StatementBalance + c.PendingCharges)
	c.UpdatedAt = now
	c.Version++
	return nil
}

// MonthlyCommitment is the next minimum due plus any planned extra payment
func (c *Card) MonthlyCommitment() float64 {
	terms := termsOf(*c)
	statement := shared.NonNegative(c.StatementBalance)
	interest := terms.interest(statement)
	due := statement + interest
	return shared.Round2(math.Min(due, terms.minimumDue(statement, interest, due)+terms.extra))
}

// Utilization is the share of the credit limit in use
func (c *Card) Utilization() float64 {
	if c.CreditLimit <= 0 {
		return 0
	}
	return c.Balance / c.CreditLimit
}
