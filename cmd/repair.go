package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/salary-cli/internal/ingest"
	"github.com/sells-group/salary-cli/internal/store"
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Move job titles stored as departments back into the title field",
	Long: `Scans stored records for a department value that reads as a job title
("Assistant Professor", "Head Coach") and moves it into the title field.

The classification is heuristic. Run with --dry-run first and review the
sample of changes. A fix that would duplicate another record is skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		year, _ := cmd.Flags().GetInt("year")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		rules, err := loadRules()
		if err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ctl := ingest.NewController(ingest.Deps{Store: st, Rules: rules})
		report, err := ctl.Repair(ctx, ingest.RepairOptions{YearKey: year, DryRun: dryRun})
		if report != nil {
			formatRepairReport(cmd.OutOrStdout(), report, dryRun)
		}
		if err != nil {
			return eris.Wrap(err, "repair")
		}
		return nil
	},
}

func init() {
	repairCmd.Flags().Int("year", store.AllYears, "year key to repair (-1 = all years)")
	repairCmd.Flags().Bool("dry-run", false, "report candidates without updating")
	rootCmd.AddCommand(repairCmd)
}

// formatRepairReport writes the repair summary and sampled changes to out.
func formatRepairReport(out io.Writer, r *ingest.RepairReport, dryRun bool) {
	_, _ = fmt.Fprintf(out, "Scanned %d records, %d candidates", r.Scanned, r.Candidates)
	if dryRun {
		_, _ = fmt.Fprintln(out, " (dry run)")
	} else {
		_, _ = fmt.Fprintf(out, ", %d updated, %d skipped as duplicates\n", r.Updated, r.Collisions)
	}
	if len(r.Changes) == 0 {
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tOLD TITLE\tOLD DEPARTMENT\tNEW TITLE\tNOTE")
	for _, c := range r.Changes {
		note := ""
		if c.Collided {
			note = "duplicate"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s, %s\t%s\t%s\t%s\t%s\n",
			c.ID, c.LastName, c.FirstName,
			truncate(c.OldTitle, 40), truncate(c.OldDept, 40), truncate(c.NewTitle, 40), note)
	}
	_ = w.Flush()
	if r.Candidates > len(r.Changes) {
		_, _ = fmt.Fprintf(out, "(showing %d of %d)\n", len(r.Changes), r.Candidates)
	}
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
