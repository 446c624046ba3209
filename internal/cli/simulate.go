package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/pfin-cycle-ledger/internal/domain/cadence"
	"github.com/pfin-cycle-ledger/internal/domain/liability"
	"github.com/spf13/cobra"
)

func newSimulateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate statement cycles of a card or loan without storing it",
	}
	cmd.AddCommand(newSimulateCardCommand())
	cmd.AddCommand(newSimulateLoanCommand())
	return cmd
}

func newSimulateCardCommand() *cobra.Command {
	var (
		card   liability.Card
		policy string
		cycles int
	)

	cmd := &cobra.Command{
		Use:   "card",
		Short: "Simulate a credit card",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			card.MinimumPaymentPolicy = liability.MinimumPaymentPolicy(strings.ToUpper(policy))
			if err := card.ValidateTerms(); err != nil {
				return err
			}
			if cycles < 0 {
				return fmt.Errorf("cycles must not be negative")
			}
			return printJSON(cmd.OutOrStdout(), liability.SimulateCard(card, cycles))
		},
	}

	f := cmd.Flags()
	f.Float64Var(&card.StatementBalance, "statement", 0, "closed statement balance")
	f.Float64Var(&card.PendingCharges, "pending", 0, "charges since the last statement")
	f.Float64Var(&card.APR, "apr", 0, "annual percentage rate")
	f.StringVar(&policy, "policy", string(liability.MinimumPaymentFixed), "minimum payment policy: FIXED or PERCENT_PLUS_INTEREST")
	f.Float64Var(&card.MinimumPayment, "min", 0, "fixed minimum payment")
	f.Float64Var(&card.MinimumPaymentPercent, "min-percent", 0, "percent of the statement due under PERCENT_PLUS_INTEREST")
	f.Float64Var(&card.SpendPerMonth, "spend", 0, "new spend per month")
	f.Float64Var(&card.ExtraPayment, "extra", 0, "payment above the minimum each cycle")
	f.IntVar(&cycles, "cycles", 1, "number of monthly cycles")

	return cmd
}

func newSimulateLoanCommand() *cobra.Command {
	var (
		loan       liability.Loan
		recurrence recurrenceFlags
		cycles     int
	)

	cmd := &cobra.Command{
		Use:   "loan",
		Short: "Simulate an installment loan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := recurrence.build(time.Now())
			if err != nil {
				return err
			}
			if err := r.Validate(); err != nil {
				return err
			}
			if loan.Balance < 0 || loan.APR < 0 || loan.MinimumPayment < 0 {
				return liability.ErrNegativeAmount
			}
			if cycles < 0 {
				return fmt.Errorf("cycles must not be negative")
			}
			loan.Recurrence = r
			return printJSON(cmd.OutOrStdout(), liability.SimulateLoan(loan, cycles))
		},
	}

	f := cmd.Flags()
	f.Float64Var(&loan.Balance, "balance", 0, "outstanding principal")
	f.Float64Var(&loan.APR, "apr", 0, "annual percentage rate")
	f.Float64Var(&loan.MinimumPayment, "min", 0, "payment per occurrence of the cadence")
	f.IntVar(&cycles, "cycles", 1, "number of monthly cycles")
	recurrence.register(cmd)

	return cmd
}

// recurrenceFlags are the flags shared by commands that take a recurrence
type recurrenceFlags struct {
	cadence  string
	interval int
	unit     string
	anchor   string
	day      int
}

func (r *recurrenceFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&r.cadence, "cadence", string(cadence.CadenceMonthly), "WEEKLY, BIWEEKLY, MONTHLY, QUARTERLY, YEARLY, CUSTOM or ONE_TIME")
	f.IntVar(&r.interval, "interval", 0, "custom cadence interval")
	f.StringVar(&r.unit, "unit", "", "custom cadence unit: DAYS, WEEKS, MONTHS or YEARS")
	f.StringVar(&r.anchor, "anchor", "", "first occurrence, YYYY-MM-DD or RFC3339 (default today)")
	f.IntVar(&r.day, "day", 0, "day of month override for month-based cadences")
}

func (r *recurrenceFlags) build(defaultAnchor time.Time) (cadence.Recurrence, error) {
	anchor := defaultAnchor.UTC()
	if r.anchor != "" {
		t, err := parseInstant(r.anchor)
		if err != nil {
			return cadence.Recurrence{}, err
		}
		anchor = t
	}
	return cadence.Recurrence{
		Cadence:        cadence.Cadence(strings.ToUpper(r.cadence)),
		CustomInterval: r.interval,
		CustomUnit:     cadence.Unit(strings.ToUpper(r.unit)),
		Anchor:         anchor,
		DayOfMonth:     r.day,
	}, nil
}
