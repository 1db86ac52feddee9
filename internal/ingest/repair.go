package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// maxRepairSamples bounds RepairReport.Changes.
const maxRepairSamples = 50

// RepairOptions configures the title-leak repair pass.
type RepairOptions struct {
	YearKey int // store.AllYears for every year
	DryRun  bool
}

// RepairChange is one reclassified row.
type RepairChange struct {
	ID                  int64
	LastName, FirstName string
	OldTitle, OldDept   string
	NewTitle, NewDept   string
	Collided            bool
}

// RepairReport summarizes a repair pass.
type RepairReport struct {
	Scanned    int
	Candidates int
	Updated    int
	Collisions int // skipped: the fix would duplicate another record
	Changes    []RepairChange
}

// Repair moves job titles that leaked into the department field back into the
// title. The heuristic cannot be checked against the source documents, so use
// DryRun to review candidates first.
func (c *Controller) Repair(ctx context.Context, opts RepairOptions) (*RepairReport, error) {
	log := zap.L().With(zap.String("component", "ingest.repair"), zap.Int("year_key", opts.YearKey))

	rows, err := c.Store.ListTitleDepartments(ctx, opts.YearKey)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: list records for repair")
	}

	report := &RepairReport{Scanned: len(rows)}
	for _, row := range rows {
		title, dept, changed := c.Rules.ReclassifyLeak(row.Title, row.Department)
		if !changed {
			continue
		}
		report.Candidates++
		change := RepairChange{
			ID: row.ID, LastName: row.LastName, FirstName: row.FirstName,
			OldTitle: row.Title, OldDept: row.Department,
			NewTitle: title, NewDept: dept,
		}

		if !opts.DryRun {
			if err := ctx.Err(); err != nil {
				return report, eris.Wrap(err, "ingest: repair cancelled")
			}
			ok, err := c.Store.UpdateTitleDepartment(ctx, row.ID, title, dept)
			if err != nil {
				return report, eris.Wrapf(err, "ingest: repair record %d", row.ID)
			}
			if ok {
				report.Updated++
			} else {
				report.Collisions++
				change.Collided = true
			}
		}
		if len(report.Changes) < maxRepairSamples {
			report.Changes = append(report.Changes, change)
		}
	}

	log.Info("repair pass complete",
		zap.Int("scanned", report.Scanned),
		zap.Int("candidates", report.Candidates),
		zap.Int("updated", report.Updated),
		zap.Int("collisions", report.Collisions),
		zap.Bool("dry_run", opts.DryRun),
	)
	return report, nil
}
