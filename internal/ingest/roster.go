package ingest

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/salary-cli/internal/ledger"
	"github.com/sells-group/salary-cli/internal/model"
)

// RunRoster imports one year from the HTML source. Per-department failures
// are recorded in the ledger and the run continues. The returned error is
// non-nil only for conditions that abort the run: roster fetch failure, ledger
// read failure, store errors and cancellation. The report is always returned.
func (c *Controller) RunRoster(ctx context.Context, opts Options) (*Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:      c.newID(),
		YearKey:    opts.YearKey,
		FiscalYear: model.FiscalYearLabel(c.LatestFiscalYear, opts.YearKey),
	}
	log := zap.L().With(
		zap.String("component", "ingest.roster"),
		zap.String("run_id", report.RunID),
		zap.Int("year_key", opts.YearKey),
	)

	pending, err := c.Ledger.ReadFiltered(ctx, opts.YearKey)
	if err != nil {
		return report, eris.Wrap(err, "ingest: read failure ledger")
	}
	inLedger := make(map[string]bool, len(pending))
	for _, e := range pending {
		inLedger[e.SourceEncodedID] = true
	}

	var roster []model.DepartmentEntry
	if !opts.RetryFailed {
		report.State = StateListing
		c.transition(log, "", StateListing)
		roster, err = c.Source.Roster(ctx, opts.YearKey)
		if err != nil {
			return report, eris.Wrap(err, "ingest: fetch roster")
		}
	}

	units, ignored := SelectWorkingSet(roster, opts, pending)
	report.Units = len(units)
	report.IgnoredIndices = ignored
	if len(ignored) > 0 {
		log.Warn("ignoring out-of-range department indices",
			zap.Ints("indices", ignored),
			zap.Int("roster_size", len(roster)),
		)
	}
	log.Info("working set selected",
		zap.Int("units", len(units)),
		zap.Bool("retry_failed", opts.RetryFailed),
		zap.Bool("dry_run", opts.DryRun),
	)

	if opts.Clear && !opts.DryRun {
		n, err := c.Store.DeleteYear(ctx, opts.YearKey)
		if err != nil {
			return report, eris.Wrapf(err, "ingest: clear year %d", opts.YearKey)
		}
		report.RowsCleared = n
		log.Info("cleared year before import", zap.Int64("rows", n))
	}

	report.State = StateIterating
	c.transition(log, "", StateIterating)

	for i, unit := range units {
		if err := ctx.Err(); err != nil {
			return report, eris.Wrap(err, "ingest: run cancelled")
		}
		name := unitName(unit)
		uLog := log.With(zap.Int("unit", i), zap.String("department", name))

		c.transition(uLog, name, StateFetching)
		records, err := c.Source.Department(ctx, unit, opts.YearKey)
		if err != nil {
			if ctx.Err() != nil {
				return report, eris.Wrap(ctx.Err(), "ingest: run cancelled")
			}
			c.fail(ctx, uLog, report, unit, err, opts.DryRun)
			continue
		}

		c.transition(uLog, name, StateParsing)
		model.Stamp(records, opts.YearKey, report.FiscalYear, c.DefaultCampus)

		if !opts.DryRun {
			c.transition(uLog, name, StateLoading)
			res, err := c.Loader.Load(ctx, records)
			report.Load.Add(res)
			if err != nil {
				return report, eris.Wrapf(err, "ingest: load %s", name)
			}
			if opts.RetryFailed && inLedger[unit.SourceEncodedID] {
				n, err := c.Ledger.RemoveKeys(ctx, opts.YearKey, []string{unit.SourceEncodedID})
				if err != nil {
					uLog.Warn("failed to clear ledger entry", zap.Error(err))
				}
				report.LedgerCleared += n
			}
		}

		report.Succeeded++
		uLog.Info("department imported", zap.Int("rows", len(records)))
	}

	report.State = StateDone
	c.transition(log, "", StateDone)
	log.Info("roster run complete",
		zap.Int("units", report.Units),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("inserted", report.Load.Inserted),
		zap.Int("skipped", report.Load.Skipped),
		zap.Int("ledger_cleared", report.LedgerCleared),
	)
	return report, nil
}

// fail records a soft per-unit failure. Ledger append errors are logged only.
func (c *Controller) fail(ctx context.Context, log *zap.Logger, report *Report, unit model.DepartmentEntry, cause error, dryRun bool) {
	c.transition(log, unitName(unit), StateFailed)
	entry := ledger.Entry{
		YearKey:         report.YearKey,
		SourceEncodedID: unit.SourceEncodedID,
		DisplayName:     unit.DisplayName,
		ErrorMessage:    cause.Error(),
		FailedAt:        c.now().Truncate(time.Second),
		RunID:           report.RunID,
	}
	report.Failed++
	report.Failures = append(report.Failures, entry)
	log.Error("department failed", zap.Error(cause))

	if dryRun {
		return
	}
	if err := c.Ledger.Append(ctx, entry); err != nil {
		log.Error("failed to record ledger entry", zap.Error(err))
	}
}
