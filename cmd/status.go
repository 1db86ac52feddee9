package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/salary-cli/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored record counts per year",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		counts, err := st.CountByYear(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}
		if len(counts) == 0 {
			zap.L().Info("no salary records stored, run 'import html' or 'import pdf' first")
			return nil
		}
		formatYearCounts(cmd.OutOrStdout(), counts)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// formatYearCounts writes per-year record counts and a total to out.
func formatYearCounts(out io.Writer, counts []store.YearCount) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "YEAR KEY\tFISCAL YEAR\tRECORDS")
	_, _ = fmt.Fprintln(w, "--------\t-----------\t-------")
	var total int64
	for _, c := range counts {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\n", c.YearKey, c.FiscalYear, c.Records)
		total += c.Records
	}
	_, _ = fmt.Fprintf(w, "\tTOTAL\t%d\n", total)
	_ = w.Flush()
}
