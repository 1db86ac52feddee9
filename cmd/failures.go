package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/salary-cli/internal/ledger"
)

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "Inspect the department failure ledger",
}

var failuresListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ledgered department failures",
	RunE: func(cmd *cobra.Command, args []string) error {
		year, _ := cmd.Flags().GetInt("year")

		entries, err := openLedger().ReadFiltered(cmd.Context(), year)
		if err != nil {
			return eris.Wrap(err, "failures list")
		}
		if len(entries) == 0 {
			zap.L().Info("failure ledger is empty", zap.String("path", cfg.Ingest.LedgerPath))
			return nil
		}
		formatLedgerEntries(cmd.OutOrStdout(), entries)
		return nil
	},
}

var failuresClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove ledgered failures without retrying them",
	RunE: func(cmd *cobra.Command, args []string) error {
		year, _ := cmd.Flags().GetInt("year")

		n, err := clearLedger(cmd.Context(), openLedger(), year)
		if err != nil {
			return eris.Wrap(err, "failures clear")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d ledger entries\n", n)
		return nil
	},
}

func init() {
	failuresListCmd.Flags().Int("year", ledger.AllYears, "year key (-1 = all years)")
	failuresClearCmd.Flags().Int("year", ledger.AllYears, "year key (-1 = all years)")
	failuresCmd.AddCommand(failuresListCmd, failuresClearCmd)
	rootCmd.AddCommand(failuresCmd)
}

// clearLedger removes every entry for yearKey (or all years) and returns the
// number of lines removed.
func clearLedger(ctx context.Context, l ledger.Store, yearKey int) (int, error) {
	entries, err := l.ReadFiltered(ctx, yearKey)
	if err != nil {
		return 0, err
	}
	byYear := make(map[int][]string)
	var years []int
	for _, e := range entries {
		if _, ok := byYear[e.YearKey]; !ok {
			years = append(years, e.YearKey)
		}
		byYear[e.YearKey] = append(byYear[e.YearKey], e.SourceEncodedID)
	}

	total := 0
	for _, yk := range years {
		n, err := l.RemoveKeys(ctx, yk, byYear[yk])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// formatLedgerEntries writes a tabular representation of ledger entries to out.
func formatLedgerEntries(out io.Writer, entries []ledger.Entry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "YEAR\tID\tDEPARTMENT\tFAILED\tERROR")
	_, _ = fmt.Fprintln(w, "----\t--\t----------\t------\t-----")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			e.YearKey,
			e.SourceEncodedID,
			truncate(e.DisplayName, 40),
			e.FailedAt.Format("2006-01-02 15:04"),
			truncate(e.ErrorMessage, 60),
		)
	}
	_ = w.Flush()
}
