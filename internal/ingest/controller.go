// Package ingest drives import runs: it picks the units to process, pushes
// each through fetch, parse and load, and keeps the failure ledger current.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/salary-cli/internal/fetcher"
	"github.com/sells-group/salary-cli/internal/ledger"
	"github.com/sells-group/salary-cli/internal/loader"
	"github.com/sells-group/salary-cli/internal/model"
	"github.com/sells-group/salary-cli/internal/normalize"
	"github.com/sells-group/salary-cli/internal/ocr"
	"github.com/sells-group/salary-cli/internal/store"
)

// State is a run-controller state.
type State string

// Run states. A unit moves fetching -> parsing -> loading, or ends in failed.
const (
	StateListing   State = "listing"
	StateIterating State = "iterating"
	StateFetching  State = "fetching"
	StateParsing   State = "parsing"
	StateLoading   State = "loading"
	StateFailed    State = "failed"
	StateDone      State = "done"
)

// RosterSource lists departments and scrapes one department. htmlsource.Client
// implements it.
type RosterSource interface {
	Roster(ctx context.Context, yearKey int) ([]model.DepartmentEntry, error)
	Department(ctx context.Context, dept model.DepartmentEntry, yearKey int) ([]model.SalaryRecord, error)
}

// Loader writes records. *loader.Loader implements it.
type Loader interface {
	Load(ctx context.Context, records []model.SalaryRecord) (loader.Result, error)
}

// RecordStore is the part of store.Store used outside the loader.
type RecordStore interface {
	DeleteYear(ctx context.Context, yearKey int) (int64, error)
	ListTitleDepartments(ctx context.Context, yearKey int) ([]store.TitleDepartment, error)
	UpdateTitleDepartment(ctx context.Context, id int64, title, department string) (bool, error)
}

// Deps wires a Controller. Fields not needed by the runs being made may be nil.
type Deps struct {
	Source    RosterSource
	Fetcher   fetcher.Fetcher // document downloads
	Extractor ocr.Extractor
	Loader    Loader
	Store     RecordStore
	Ledger    ledger.Store
	Rules     *normalize.RuleSet

	LatestFiscalYear int
	DefaultCampus    model.Campus
	TempDir          string
}

// Controller runs imports and repairs.
type Controller struct {
	Deps

	// OnTransition, when set, observes every state change. unit is empty for
	// run-level states.
	OnTransition func(unit string, s State)

	now   func() time.Time
	newID func() string
}

// NewController creates a Controller.
func NewController(d Deps) *Controller {
	if d.Rules == nil {
		d.Rules = normalize.DefaultRules()
	}
	if d.DefaultCampus.ID == 0 {
		d.DefaultCampus = model.CampusAnnArbor
	}
	return &Controller{
		Deps:  d,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
}

func (c *Controller) transition(log *zap.Logger, unit string, s State) {
	if unit == "" {
		log.Debug("state", zap.String("state", string(s)))
	} else {
		log.Debug("unit state", zap.String("unit", unit), zap.String("state", string(s)))
	}
	if c.OnTransition != nil {
		c.OnTransition(unit, s)
	}
}

// Report summarizes a run.
type Report struct {
	RunID      string
	YearKey    int
	FiscalYear string
	State      State

	Units     int
	Succeeded int
	Failed    int
	Load      loader.Result

	ParseFailures int   // chunks/blocks rejected by a document parser
	RowsCleared   int64 // rows deleted by clear-before-import
	LedgerCleared int   // ledger lines removed after successful retries

	Failures       []ledger.Entry // per-unit failures, in run order
	IgnoredIndices []int
}

// FailedIDs returns the source ids of failed units, in run order.
func (r *Report) FailedIDs() []string {
	ids := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		ids[i] = f.SourceEncodedID
	}
	return ids
}
