package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/salary-cli/internal/db"
	"github.com/sells-group/salary-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	conn.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: conn}, nil
}

// InsertBatch implements Store.
func (s *SQLiteStore) InsertBatch(ctx context.Context, records []model.SalaryRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	cfg := insertConfig(db.Question)
	query, err := db.BuildInsertIgnore(cfg, len(records))
	if err != nil {
		return 0, err
	}
	args, err := db.FlattenRows(cfg.Columns, recordRows(records))
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert batch")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

// DeleteYear implements Store.
func (s *SQLiteStore) DeleteYear(ctx context.Context, yearKey int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM salary_records WHERE year_key = ?`, yearKey)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete year %d", yearKey)
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

// ListTitleDepartments implements Store.
func (s *SQLiteStore) ListTitleDepartments(ctx context.Context, yearKey int) ([]TitleDepartment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, last_name, first_name, title, department, year_key FROM salary_records
		 WHERE (? < 0 OR year_key = ?) ORDER BY id`,
		yearKey, yearKey,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list title departments")
	}
	defer rows.Close() //nolint:errcheck

	var out []TitleDepartment
	for rows.Next() {
		var td TitleDepartment
		if err := rows.Scan(&td.ID, &td.LastName, &td.FirstName, &td.Title, &td.Department, &td.YearKey); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan title department")
		}
		out = append(out, td)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate title departments")
}

// UpdateTitleDepartment implements Store.
func (s *SQLiteStore) UpdateTitleDepartment(ctx context.Context, id int64, title, department string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE salary_records SET title = ?, department = ?
		 WHERE id = ? AND NOT EXISTS (
			SELECT 1 FROM salary_records o
			WHERE o.id <> salary_records.id
			  AND o.last_name = salary_records.last_name
			  AND o.first_name = salary_records.first_name
			  AND o.year_key = salary_records.year_key
			  AND o.title = ? AND o.department = ?)`,
		title, department, id, title, department,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: update record %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n == 1, nil
}

// CountByYear implements Store.
func (s *SQLiteStore) CountByYear(ctx context.Context) ([]YearCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT year_key, MAX(fiscal_year), COUNT(*) FROM salary_records GROUP BY year_key ORDER BY year_key`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by year")
	}
	defer rows.Close() //nolint:errcheck

	var out []YearCount
	for rows.Next() {
		var yc YearCount
		if err := rows.Scan(&yc.YearKey, &yc.FiscalYear, &yc.Records); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan year count")
		}
		out = append(out, yc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate year counts")
}

// Migrate applies pending migrations. SQLite serializes writers, so no lock is taken.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename   TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`); err != nil {
		return eris.Wrap(err, "sqlite: ensure migration table")
	}

	names, err := migrationFiles("migrations/sqlite")
	if err != nil {
		return err
	}
	for _, name := range names {
		var n int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE filename = ?`, name).Scan(&n); err != nil {
			return eris.Wrapf(err, "sqlite: check migration %s", name)
		}
		if n > 0 {
			continue
		}
		data, err := migrationFS.ReadFile("migrations/sqlite/" + name)
		if err != nil {
			return eris.Wrapf(err, "sqlite: read migration %s", name)
		}
		zap.L().Debug("applying migration", zap.String("component", "store.migrate"), zap.String("file", name))
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return eris.Wrapf(err, "sqlite: apply migration %s", name)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (filename) VALUES (?)`, name); err != nil {
			return eris.Wrapf(err, "sqlite: record migration %s", name)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
