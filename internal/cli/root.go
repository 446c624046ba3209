// Package cli implements cyclectl, the operator tool for offline simulations
// and one-off cycle runs.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

// NewRootCommand creates the cyclectl command tree
func NewRootCommand() *cobra.Command {
	return newRootCommand(connectStores, time.Now)
}

func newRootCommand(connect connectFunc, clock func() time.Time) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cyclectl",
		Short: "Inspect and run recurring finance cycles",
		Long: `cyclectl simulates cards and loans without touching any store,
resolves recurrence dates and runs a user's monthly cycle on demand.

Example:
  cyclectl simulate card --statement 1000 --apr 24 --min 50 --cycles 1
  cyclectl next-occurrence --cadence MONTHLY --anchor 2024-01-31 --ref 2024-02-10
  cyclectl run --user alice --config configs/cycle_processor.env`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newSimulateCommand())
	rootCmd.AddCommand(newNextOccurrenceCommand(clock))
	rootCmd.AddCommand(newRunCommand(connect, clock))

	return rootCmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}

// parseInstant accepts a calendar date or a full RFC3339 timestamp
func parseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD or RFC3339", s)
	}
	return t.UTC(), nil
}
