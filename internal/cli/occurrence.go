package cli

import (
	"time"

	"github.com/pfin-cycle-ledger/internal/domain/cadence"
	"github.com/pfin-cycle-ledger/internal/domain/shared"
	"github.com/spf13/cobra"
)

type occurrenceOutput struct {
	Cadence           cadence.Cadence `json:"cadence"`
	ReferenceDate     string          `json:"reference_date"`
	NextOccurrence    string          `json:"next_occurrence,omitempty"`
	Exhausted         bool            `json:"exhausted"`
	CycleKey          string          `json:"cycle_key"`
	MonthlyEquivalent *float64        `json:"monthly_equivalent,omitempty"`
}

func newNextOccurrenceCommand(clock func() time.Time) *cobra.Command {
	var (
		recurrence recurrenceFlags
		ref        string
		amount     float64
	)

	cmd := &cobra.Command{
		Use:   "next-occurrence",
		Short: "Print the first occurrence of a recurrence on or after a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := clock().UTC()
			r, err := recurrence.build(now)
			if err != nil {
				return err
			}
			if err := r.Validate(); err != nil {
				return err
			}

			refDate := now
			if ref != "" {
				if refDate, err = parseInstant(ref); err != nil {
					return err
				}
			}

			out := occurrenceOutput{
				Cadence:       r.Cadence,
				ReferenceDate: cadence.DateOf(refDate).Format(time.DateOnly),
				CycleKey:      cadence.CycleKey(refDate),
			}
			if next, ok := cadence.NextOccurrence(r, refDate); ok {
				out.NextOccurrence = next.Format(time.DateOnly)
			} else {
				out.Exhausted = true
			}
			if cmd.Flags().Changed("amount") {
				monthly := shared.Round2(cadence.MonthlyEquivalent(amount, r))
				out.MonthlyEquivalent = &monthly
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	recurrence.register(cmd)
	cmd.Flags().StringVar(&ref, "ref", "", "reference date, YYYY-MM-DD or RFC3339 (default now)")
	cmd.Flags().Float64Var(&amount, "amount", 0, "also print the monthly equivalent of this amount")

	return cmd
}
