package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/salary-cli/internal/config"
	"github.com/sells-group/salary-cli/internal/model"
	"github.com/sells-group/salary-cli/internal/ocr"
	"github.com/sells-group/salary-cli/internal/pdfsource"
)

// DocumentOptions configures a run against the published report.
type DocumentOptions struct {
	YearKey int
	File    string           // local .pdf, or .txt holding already-extracted text
	URL     string           // downloaded when File is empty
	Format  pdfsource.Format // FormatAuto to classify
	Clear   bool
	DryRun  bool
}

// Validate requires exactly one source.
func (o DocumentOptions) Validate() error {
	if o.YearKey < 0 {
		return config.NewConfigError("year", "must not be negative")
	}
	if o.File == "" && o.URL == "" {
		return config.NewConfigError("source", "no document given (use --file, --url or source.pdf.url)")
	}
	if o.File != "" && o.URL != "" {
		return config.NewConfigError("source", "--file and --url are mutually exclusive")
	}
	return nil
}

// RunDocument imports one year from the published report. Obtaining or
// extracting the document is fatal; rejected chunks are only counted.
func (c *Controller) RunDocument(ctx context.Context, opts DocumentOptions) (*Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:      c.newID(),
		YearKey:    opts.YearKey,
		FiscalYear: model.FiscalYearLabel(c.LatestFiscalYear, opts.YearKey),
	}
	log := zap.L().With(
		zap.String("component", "ingest.document"),
		zap.String("run_id", report.RunID),
		zap.Int("year_key", opts.YearKey),
	)

	report.State = StateFetching
	c.transition(log, "", StateFetching)
	text, err := c.documentText(ctx, opts, report.RunID)
	if err != nil {
		return report, err
	}

	report.State = StateParsing
	c.transition(log, "", StateParsing)
	format, res, err := pdfsource.ParseDocument(text, opts.Format, c.Rules)
	if err != nil {
		return report, eris.Wrap(err, "ingest: parse document")
	}
	model.Stamp(res.Records, opts.YearKey, report.FiscalYear, c.DefaultCampus)

	report.Units = len(res.Records) + len(res.Failures)
	report.Succeeded = len(res.Records)
	report.ParseFailures = len(res.Failures)
	for _, pe := range res.Failures {
		log.Debug("chunk rejected", zap.Error(pe))
	}
	log.Info("document parsed",
		zap.String("format", string(format)),
		zap.Int("records", len(res.Records)),
		zap.Int("rejected", len(res.Failures)),
	)

	if opts.DryRun {
		report.State = StateDone
		c.transition(log, "", StateDone)
		return report, nil
	}

	if opts.Clear {
		n, err := c.Store.DeleteYear(ctx, opts.YearKey)
		if err != nil {
			return report, eris.Wrapf(err, "ingest: clear year %d", opts.YearKey)
		}
		report.RowsCleared = n
	}

	report.State = StateLoading
	c.transition(log, "", StateLoading)
	load, err := c.Loader.Load(ctx, res.Records)
	report.Load = load
	if err != nil {
		return report, eris.Wrap(err, "ingest: load document")
	}

	report.State = StateDone
	c.transition(log, "", StateDone)
	log.Info("document run complete",
		zap.Int("inserted", load.Inserted),
		zap.Int("skipped", load.Skipped),
		zap.Int("invalid", load.Invalid),
	)
	return report, nil
}

// documentText returns cleaned text for the run's document, downloading it first
// when only a URL is given.
func (c *Controller) documentText(ctx context.Context, opts DocumentOptions, runID string) (string, error) {
	path := opts.File
	if path == "" {
		dir := c.TempDir
		if dir == "" {
			dir = os.TempDir()
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", eris.Wrapf(err, "ingest: create temp dir %s", dir)
		}
		path = filepath.Join(dir, fmt.Sprintf("salary-%d-%s.pdf", opts.YearKey, runID))
		defer os.Remove(path) //nolint:errcheck

		if _, err := c.Fetcher.DownloadToFile(ctx, opts.URL, path); err != nil {
			return "", eris.Wrap(err, "ingest: download document")
		}
	}

	if strings.EqualFold(filepath.Ext(path), ".txt") {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", eris.Wrapf(err, "ingest: read %s", path)
		}
		return ocr.Clean(string(data)), nil
	}

	text, err := c.Extractor.ExtractText(ctx, path)
	if err != nil {
		return "", eris.Wrap(err, "ingest: extract text")
	}
	return text, nil
}
