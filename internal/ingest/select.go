package ingest

import (
	"fmt"

	"github.com/sells-group/salary-cli/internal/config"
	"github.com/sells-group/salary-cli/internal/ledger"
	"github.com/sells-group/salary-cli/internal/model"
)

// Options selects and configures a roster run.
type Options struct {
	YearKey     int
	Limit       int   // 0 = no limit
	Skip        int   // applied before Limit
	Indices     []int // zero-based roster positions; overrides Skip/Limit
	RetryFailed bool  // work on the ledger entries for YearKey instead of the roster
	Clear       bool  // delete YearKey's rows before the first unit
	DryRun      bool  // fetch and parse only
}

// Validate rejects contradictory or out-of-range options.
func (o Options) Validate() error {
	if o.YearKey < 0 {
		return config.NewConfigError("year", "must not be negative")
	}
	if o.Limit < 0 {
		return config.NewConfigError("limit", "must not be negative")
	}
	if o.Skip < 0 {
		return config.NewConfigError("skip", "must not be negative")
	}
	if o.Clear && o.RetryFailed {
		return config.NewConfigError("clear", "cannot be combined with retry-failed")
	}
	if o.RetryFailed && len(o.Indices) > 0 {
		return config.NewConfigError("departments", "cannot be combined with retry-failed")
	}
	return nil
}

// SelectWorkingSet picks the units for a run. Retry mode takes the ledger
// entries whose year key matches; otherwise explicit indices win over
// skip/limit. Out-of-range indices are returned separately and not selected.
func SelectWorkingSet(roster []model.DepartmentEntry, opts Options, failed []ledger.Entry) ([]model.DepartmentEntry, []int) {
	if opts.RetryFailed {
		var out []model.DepartmentEntry
		seen := make(map[string]bool)
		for _, e := range failed {
			if e.YearKey != opts.YearKey || seen[e.SourceEncodedID] {
				continue
			}
			seen[e.SourceEncodedID] = true
			out = append(out, model.DepartmentEntry{DisplayName: e.DisplayName, SourceEncodedID: e.SourceEncodedID})
		}
		return out, nil
	}

	if len(opts.Indices) > 0 {
		var (
			out     []model.DepartmentEntry
			ignored []int
		)
		for _, i := range opts.Indices {
			if i < 0 || i >= len(roster) {
				ignored = append(ignored, i)
				continue
			}
			out = append(out, roster[i])
		}
		return out, ignored
	}

	start := min(opts.Skip, len(roster))
	out := roster[start:]
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return append([]model.DepartmentEntry(nil), out...), nil
}

func unitName(d model.DepartmentEntry) string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return fmt.Sprintf("dept %s", d.SourceEncodedID)
}
