package resolver

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tordrt/schemaguard/internal/db"
)

const (
	DefaultTemplateTimeout = 2 * time.Second
	DefaultListLimit       = 50
)

// Runner executes a function inside a read-only transaction
type Runner interface {
	ReadOnly(ctx context.Context, timeout time.Duration, fn func(ctx context.Context, tx *sql.Tx) error) (db.Timing, error)
}

// Templates runs the fixed count and list statements
type Templates struct {
	runner  Runner
	timeout time.Duration
}

// NewTemplates creates the template runner. A zero timeout uses DefaultTemplateTimeout.
func NewTemplates(runner Runner, timeout time.Duration) *Templates {
	if timeout <= 0 {
		timeout = DefaultTemplateTimeout
	}
	return &Templates{runner: runner, timeout: timeout}
}

// CountSQL renders the count template for a table
func CountSQL(schemaName, table string) string {
	return fmt.Sprintf("SELECT COUNT(*) AS count FROM %s", pgx.Identifier{schemaName, table}.Sanitize())
}

// ListSQL renders the single-column list template for a table
func ListSQL(schemaName, table, column string) string {
	col := pgx.Identifier{column}.Sanitize()
	return fmt.Sprintf("SELECT %s AS %s FROM %s LIMIT $1", col, col, pgx.Identifier{schemaName, table}.Sanitize())
}

// RunCount counts the rows of a table
func (t *Templates) RunCount(ctx context.Context, schemaName, table string) (int64, db.Timing, error) {
	var count int64
	timing, err := t.runner.ReadOnly(ctx, t.timeout, func(ctx context.Context, tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, CountSQL(schemaName, table)).Scan(&count)
	})
	if err != nil {
		return 0, timing, fmt.Errorf("failed to count %s.%s: %w", schemaName, table, err)
	}
	return count, timing, nil
}

// RunList returns up to limit values of one column. A zero limit uses DefaultListLimit; anything
// else below one is raised to one.
func (t *Templates) RunList(ctx context.Context, schemaName, table, column string, limit int) ([]map[string]any, db.Timing, error) {
	switch {
	case limit == 0:
		limit = DefaultListLimit
	case limit < 1:
		limit = 1
	}

	rows := []map[string]any{}
	timing, err := t.runner.ReadOnly(ctx, t.timeout, func(ctx context.Context, tx *sql.Tx) error {
		rs, err := tx.QueryContext(ctx, ListSQL(schemaName, table, column), limit)
		if err != nil {
			return err
		}
		defer func() { _ = rs.Close() }()

		for rs.Next() {
			var v any
			if err := rs.Scan(&v); err != nil {
				return err
			}
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			rows = append(rows, map[string]any{column: v})
		}
		return rs.Err()
	})
	if err != nil {
		return nil, timing, fmt.Errorf("failed to list %s.%s.%s: %w", schemaName, table, column, err)
	}
	return rows, timing, nil
}
