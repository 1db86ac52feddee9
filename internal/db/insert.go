package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Placeholder selects the bind-parameter syntax of the target driver.
type Placeholder int

const (
	// Dollar is $1, $2, ... (Postgres).
	Dollar Placeholder = iota
	// Question is ?, ?, ... (SQLite).
	Question
)

// InsertConfig defines a multi-row insert that skips rows violating a unique key.
type InsertConfig struct {
	Table        string   // target table (e.g., "public.salary_records")
	Columns      []string // columns being inserted, in row order
	ConflictKeys []string // columns forming the unique constraint
	Placeholder  Placeholder
}

// BuildInsertIgnore renders
//
//	INSERT INTO t (cols) VALUES (...), (...) ON CONFLICT (keys) DO NOTHING
//
// for n rows.
func BuildInsertIgnore(cfg InsertConfig, n int) (string, error) {
	if len(cfg.Columns) == 0 {
		return "", eris.New("db: insert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return "", eris.New("db: insert: no conflict keys specified")
	}
	if n <= 0 {
		return "", eris.New("db: insert: no rows")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", sanitizeTable(cfg.Table), quoteAndJoin(cfg.Columns))

	arg := 1
	for r := 0; r < n; r++ {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := range cfg.Columns {
			if c > 0 {
				sb.WriteString(", ")
			}
			if cfg.Placeholder == Question {
				sb.WriteByte('?')
			} else {
				fmt.Fprintf(&sb, "$%d", arg)
			}
			arg++
		}
		sb.WriteByte(')')
	}
	fmt.Fprintf(&sb, " ON CONFLICT (%s) DO NOTHING", quoteAndJoin(cfg.ConflictKeys))
	return sb.String(), nil
}

// FlattenRows checks every row has len(cols) values and flattens them into one
// argument list.
func FlattenRows(cols []string, rows [][]any) ([]any, error) {
	args := make([]any, 0, len(cols)*len(rows))
	for i, row := range rows {
		if len(row) != len(cols) {
			return nil, eris.Errorf("db: insert: row %d has %d values, want %d", i, len(row), len(cols))
		}
		args = append(args, row...)
	}
	return args, nil
}

// InsertIgnore writes rows in one statement and returns how many were new.
// Rows that collide with the conflict keys are skipped silently.
func InsertIgnore(ctx context.Context, pool Pool, cfg InsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	cfg.Placeholder = Dollar
	query, err := BuildInsertIgnore(cfg, len(rows))
	if err != nil {
		return 0, err
	}
	args, err := FlattenRows(cfg.Columns, rows)
	if err != nil {
		return 0, err
	}

	tag, err := pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "db: insert into %s", cfg.Table)
	}
	return tag.RowsAffected(), nil
}

// sanitizeTable handles schema-qualified table names like "public.salary_records".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
