package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/salary-cli/internal/config"
	"github.com/sells-group/salary-cli/internal/htmlsource"
	"github.com/sells-group/salary-cli/internal/ingest"
	"github.com/sells-group/salary-cli/internal/loader"
	"github.com/sells-group/salary-cli/internal/model"
	"github.com/sells-group/salary-cli/internal/ocr"
	"github.com/sells-group/salary-cli/internal/pdfsource"
)

// maxReportedFailures bounds the failing ids printed after a run.
const maxReportedFailures = 10

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import salary records from a source",
}

var importHTMLCmd = &cobra.Command{
	Use:   "html",
	Short: "Import one year from the paginated HTML source",
	Long: `Lists the department roster for --year, then scrapes each department's
paginated salary table into salary_records.

A department that fails after all retries is recorded in the failure ledger
(ingest.ledger_path) and the run continues. Use --retry-failed to re-run only
the ledgered departments of that year; each one that succeeds is removed from
the ledger.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		opts, delay, err := parseRosterOpts(cmd)
		if err != nil {
			return err
		}
		if err := opts.Validate(); err != nil {
			return err
		}
		if err := cfg.RequireHTMLSource(); err != nil {
			return err
		}
		if err := cfg.ValidateIngest(); err != nil {
			return err
		}
		rules, err := loadRules()
		if err != nil {
			return err
		}
		campus, err := model.ParseCampus(cfg.Source.HTML.DefaultCampus)
		if err != nil {
			return config.NewConfigError("source.html.default_campus", err.Error())
		}

		deps := ingest.Deps{
			Source:           htmlsource.NewClient(newFetcher(delay), cfg.Source.HTML, rules),
			Ledger:           openLedger(),
			Rules:            rules,
			LatestFiscalYear: cfg.Ingest.LatestFiscalYear,
			DefaultCampus:    campus,
		}
		if !opts.DryRun {
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			deps.Store = st
			deps.Loader = loader.New(st, cfg.Ingest.BatchSize)
		}

		report, err := ingest.NewController(deps).RunRoster(ctx, opts)
		if report != nil {
			printReport(cmd.OutOrStdout(), report)
		}
		if err != nil {
			return eris.Wrap(err, "import html")
		}
		return nil
	},
}

var importPDFCmd = &cobra.Command{
	Use:   "pdf",
	Short: "Import one year from the published PDF report",
	Long: `Extracts text from the report (--file, --url or source.pdf.url), detects
its layout (compact or line-block, override with --format) and loads every
parsed record. Chunks that cannot be parsed are counted and skipped.

A .txt --file is treated as already-extracted text.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		opts, delay, err := parseDocumentOpts(cmd, cfg.Source.PDF.URL)
		if err != nil {
			return err
		}
		if err := opts.Validate(); err != nil {
			return err
		}
		if err := cfg.ValidateIngest(); err != nil {
			return err
		}
		rules, err := loadRules()
		if err != nil {
			return err
		}
		ex, err := ocr.NewExtractor(cfg.Source.PDF.OCR)
		if err != nil {
			return config.NewConfigError("source.pdf.ocr.provider", err.Error())
		}

		deps := ingest.Deps{
			Fetcher:          newFetcher(delay),
			Extractor:        ex,
			Rules:            rules,
			LatestFiscalYear: cfg.Ingest.LatestFiscalYear,
			DefaultCampus:    model.CampusAnnArbor,
			TempDir:          cfg.Source.PDF.TempDir,
		}
		if !opts.DryRun {
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			deps.Store = st
			deps.Loader = loader.New(st, cfg.Ingest.BatchSize)
		}

		report, err := ingest.NewController(deps).RunDocument(ctx, opts)
		if report != nil {
			printReport(cmd.OutOrStdout(), report)
		}
		if err != nil {
			return eris.Wrap(err, "import pdf")
		}
		return nil
	},
}

func init() {
	addRunFlags(importHTMLCmd)
	importHTMLCmd.Flags().Int("limit", 0, "process at most N departments (0 = all)")
	importHTMLCmd.Flags().Int("skip", 0, "skip the first N departments")
	importHTMLCmd.Flags().String("departments", "", "comma-separated zero-based roster indices (e.g. 0,4,17)")
	importHTMLCmd.Flags().Bool("retry-failed", false, "re-run only departments recorded in the failure ledger for --year")

	addRunFlags(importPDFCmd)
	importPDFCmd.Flags().String("file", "", "local report (.pdf, or .txt with extracted text)")
	importPDFCmd.Flags().String("url", "", "report URL (defaults to source.pdf.url)")
	importPDFCmd.Flags().String("format", "auto", "layout: auto, compact, line-block")

	importCmd.AddCommand(importHTMLCmd, importPDFCmd)
	rootCmd.AddCommand(importCmd)
}

// addRunFlags registers the flags shared by both import commands.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int("year", 0, "year key: 0 = latest fiscal year, 1 = the one before, ...")
	cmd.Flags().Duration("delay", 0, "minimum spacing between requests (default fetch.delay_ms)")
	cmd.Flags().Bool("clear", false, "delete the year's records before importing")
	cmd.Flags().Bool("dry-run", false, "fetch and parse only; write nothing")
}

// parseRosterOpts extracts ingest.Options from the import html flags.
func parseRosterOpts(cmd *cobra.Command) (ingest.Options, time.Duration, error) {
	year, _ := cmd.Flags().GetInt("year")
	delay, _ := cmd.Flags().GetDuration("delay")
	limit, _ := cmd.Flags().GetInt("limit")
	skip, _ := cmd.Flags().GetInt("skip")
	deptStr, _ := cmd.Flags().GetString("departments")
	retry, _ := cmd.Flags().GetBool("retry-failed")
	clearYear, _ := cmd.Flags().GetBool("clear")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if delay < 0 {
		return ingest.Options{}, 0, config.NewConfigError("delay", "must not be negative")
	}
	indices, err := parseIndices(deptStr)
	if err != nil {
		return ingest.Options{}, 0, err
	}

	return ingest.Options{
		YearKey:     year,
		Limit:       limit,
		Skip:        skip,
		Indices:     indices,
		RetryFailed: retry,
		Clear:       clearYear,
		DryRun:      dryRun,
	}, delay, nil
}

// parseDocumentOpts extracts ingest.DocumentOptions from the import pdf flags.
// defaultURL is used when neither --file nor --url is given.
func parseDocumentOpts(cmd *cobra.Command, defaultURL string) (ingest.DocumentOptions, time.Duration, error) {
	year, _ := cmd.Flags().GetInt("year")
	delay, _ := cmd.Flags().GetDuration("delay")
	file, _ := cmd.Flags().GetString("file")
	url, _ := cmd.Flags().GetString("url")
	formatStr, _ := cmd.Flags().GetString("format")
	clearYear, _ := cmd.Flags().GetBool("clear")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if delay < 0 {
		return ingest.DocumentOptions{}, 0, config.NewConfigError("delay", "must not be negative")
	}
	format, err := pdfsource.ParseFormat(formatStr)
	if err != nil {
		return ingest.DocumentOptions{}, 0, err
	}
	if file == "" && url == "" {
		url = defaultURL
	}

	return ingest.DocumentOptions{
		YearKey: year,
		File:    file,
		URL:     url,
		Format:  format,
		Clear:   clearYear,
		DryRun:  dryRun,
	}, delay, nil
}

// parseIndices parses "0, 4,17" into roster indices.
func parseIndices(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, config.NewConfigError("departments", fmt.Sprintf("invalid index %q", part))
		}
		out = append(out, n)
	}
	return out, nil
}

// printReport writes the end-of-run summary.
func printReport(w io.Writer, r *ingest.Report) {
	_, _ = fmt.Fprintf(w, "Run %s: year %d (%s) %s\n", r.RunID, r.YearKey, r.FiscalYear, r.State)
	_, _ = fmt.Fprintf(w, "  units:     %d (%d succeeded, %d failed)\n", r.Units, r.Succeeded, r.Failed)
	_, _ = fmt.Fprintf(w, "  records:   %d inserted, %d duplicates skipped, %d invalid\n",
		r.Load.Inserted, r.Load.Skipped, r.Load.Invalid)
	if r.ParseFailures > 0 {
		_, _ = fmt.Fprintf(w, "  rejected:  %d unparseable chunks\n", r.ParseFailures)
	}
	if r.RowsCleared > 0 {
		_, _ = fmt.Fprintf(w, "  cleared:   %d existing rows\n", r.RowsCleared)
	}
	if r.LedgerCleared > 0 {
		_, _ = fmt.Fprintf(w, "  ledger:    %d entries resolved\n", r.LedgerCleared)
	}
	if len(r.IgnoredIndices) > 0 {
		_, _ = fmt.Fprintf(w, "  ignored:   out-of-range indices %v\n", r.IgnoredIndices)
	}

	ids := r.FailedIDs()
	if len(ids) == 0 {
		return
	}
	shown := ids[:min(len(ids), maxReportedFailures)]
	_, _ = fmt.Fprintf(w, "  failed:    %s", strings.Join(shown, ", "))
	if more := len(ids) - len(shown); more > 0 {
		_, _ = fmt.Fprintf(w, " (+%d more)", more)
	}
	_, _ = fmt.Fprintln(w)
	zap.L().Warn("departments failed; re-run with --retry-failed",
		zap.Int("failed", len(ids)),
		zap.Int("year_key", r.YearKey),
	)
}
