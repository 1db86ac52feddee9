package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/salary-cli/internal/db"
	"github.com/sells-group/salary-cli/internal/model"
)

// migrationLockID serializes concurrent Migrate calls across processes.
const migrationLockID = 4127001

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a small connection pool. Runs are
// single-threaded, so a handful of connections is plenty.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MinConns = 1
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// InsertBatch implements Store.
func (s *PostgresStore) InsertBatch(ctx context.Context, records []model.SalaryRecord) (int64, error) {
	n, err := db.InsertIgnore(ctx, s.pool, insertConfig(db.Dollar), recordRows(records))
	return n, eris.Wrap(err, "postgres: insert batch")
}

// DeleteYear implements Store.
func (s *PostgresStore) DeleteYear(ctx context.Context, yearKey int) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM salary_records WHERE year_key = $1`, yearKey)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete year %d", yearKey)
	}
	return tag.RowsAffected(), nil
}

// ListTitleDepartments implements Store.
func (s *PostgresStore) ListTitleDepartments(ctx context.Context, yearKey int) ([]TitleDepartment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, last_name, first_name, title, department, year_key FROM salary_records
		 WHERE ($1 < 0 OR year_key = $1) ORDER BY id`,
		yearKey,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list title departments")
	}
	defer rows.Close()

	var out []TitleDepartment
	for rows.Next() {
		var td TitleDepartment
		if err := rows.Scan(&td.ID, &td.LastName, &td.FirstName, &td.Title, &td.Department, &td.YearKey); err != nil {
			return nil, eris.Wrap(err, "postgres: scan title department")
		}
		out = append(out, td)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate title departments")
}

// UpdateTitleDepartment implements Store.
func (s *PostgresStore) UpdateTitleDepartment(ctx context.Context, id int64, title, department string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE salary_records SET title = $2, department = $3
		 WHERE id = $1 AND NOT EXISTS (
			SELECT 1 FROM salary_records o
			WHERE o.id <> salary_records.id
			  AND o.last_name = salary_records.last_name
			  AND o.first_name = salary_records.first_name
			  AND o.year_key = salary_records.year_key
			  AND o.title = $2 AND o.department = $3)`,
		id, title, department,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: update record %d", id)
	}
	return tag.RowsAffected() == 1, nil
}

// CountByYear implements Store.
func (s *PostgresStore) CountByYear(ctx context.Context) ([]YearCount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT year_key, MAX(fiscal_year), COUNT(*) FROM salary_records GROUP BY year_key ORDER BY year_key`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by year")
	}
	defer rows.Close()

	var out []YearCount
	for rows.Next() {
		var yc YearCount
		if err := rows.Scan(&yc.YearKey, &yc.FiscalYear, &yc.Records); err != nil {
			return nil, eris.Wrap(err, "postgres: scan year count")
		}
		out = append(out, yc)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate year counts")
}

// Migrate applies pending migrations in one transaction holding a
// transaction-scoped advisory lock. The lock is released on commit or
// rollback, so it never outlives the connection that took it.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin migration")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
		return eris.Wrap(err, "postgres: acquire migration advisory lock")
	}

	if _, err := tx.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename   TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return eris.Wrap(err, "postgres: ensure migration table")
	}

	applied, err := appliedMigrations(ctx, tx)
	if err != nil {
		return err
	}

	names, err := migrationFiles("migrations/postgres")
	if err != nil {
		return err
	}
	log := zap.L().With(zap.String("component", "store.migrate"))
	for _, name := range names {
		if applied[name] {
			continue
		}
		data, err := migrationFS.ReadFile("migrations/postgres/" + name)
		if err != nil {
			return eris.Wrapf(err, "postgres: read migration %s", name)
		}

		log.Info("applying migration", zap.String("file", name))
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			return eris.Wrapf(err, "postgres: apply migration %s", name)
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO schema_migrations (filename, applied_at) VALUES ($1, now())", name,
		); err != nil {
			return eris.Wrapf(err, "postgres: record migration %s", name)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit migrations")
	}
	return nil
}

func appliedMigrations(ctx context.Context, tx pgx.Tx) (map[string]bool, error) {
	rows, err := tx.Query(ctx, "SELECT filename FROM schema_migrations")
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query applied migrations")
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan migration row")
		}
		applied[name] = true
	}
	return applied, eris.Wrap(rows.Err(), "postgres: iterate migrations")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
