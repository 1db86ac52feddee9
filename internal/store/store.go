// Package store persists canonical salary records.
package store

import (
	"context"
	"embed"
	"io/fs"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/salary-cli/internal/config"
	"github.com/sells-group/salary-cli/internal/db"
	"github.com/sells-group/salary-cli/internal/model"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

// AllYears disables the year filter in ListTitleDepartments.
const AllYears = -1

// TitleDepartment is the slice of a stored record the repair pass needs.
type TitleDepartment struct {
	ID         int64
	LastName   string
	FirstName  string
	Title      string
	Department string
	YearKey    int
}

// YearCount summarizes stored rows for one year key.
type YearCount struct {
	YearKey    int
	FiscalYear string
	Records    int64
}

// Store defines the persistence interface for salary records.
type Store interface {
	// InsertBatch writes records in one statement and returns how many were new.
	// Records matching an existing identity tuple are skipped, not errors.
	InsertBatch(ctx context.Context, records []model.SalaryRecord) (int64, error)
	// DeleteYear removes every record for yearKey.
	DeleteYear(ctx context.Context, yearKey int) (int64, error)

	ListTitleDepartments(ctx context.Context, yearKey int) ([]TitleDepartment, error)
	// UpdateTitleDepartment rewrites title and department unless the result
	// would duplicate another record's identity. Reports whether it changed.
	UpdateTitleDepartment(ctx context.Context, id int64, title, department string) (bool, error)

	CountByYear(ctx context.Context) ([]YearCount, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres", "":
		return NewPostgres(ctx, cfg.DatabaseURL)
	case "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

const recordsTable = "salary_records"

var recordColumns = []string{
	"last_name", "first_name", "title", "department", "fiscal_year",
	"year_key", "campus", "campus_id", "ftr", "gf", "period_fte",
}

var identityColumns = []string{"last_name", "first_name", "title", "department", "year_key"}

func insertConfig(p db.Placeholder) db.InsertConfig {
	return db.InsertConfig{
		Table:        recordsTable,
		Columns:      recordColumns,
		ConflictKeys: identityColumns,
		Placeholder:  p,
	}
}

func recordRows(records []model.SalaryRecord) [][]any {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{
			r.LastName, r.FirstName, r.Title, r.Department, r.FiscalYear,
			r.YearKey, r.Campus, r.CampusID, r.FTR, r.GF, r.PeriodFTE,
		}
	}
	return rows
}

// migrationFiles lists the .sql files under dir in lexicographic order.
func migrationFiles(dir string) ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, dir)
	if err != nil {
		return nil, eris.Wrapf(err, "store: read migration dir %s", dir)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
