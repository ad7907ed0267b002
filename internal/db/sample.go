package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// SampleValues reads up to limit distinct non-null values of a column as text.
// The query runs read-only under a local statement timeout.
func (c *PostgresClient) SampleValues(ctx context.Context, schemaName, table, column string, limit int, timeout time.Duration) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	col := pgx.Identifier{column}.Sanitize()
	query := fmt.Sprintf(
		"SELECT DISTINCT %s::text FROM %s WHERE %s IS NOT NULL LIMIT $1",
		col, pgx.Identifier{schemaName, table}.Sanitize(), col,
	)

	var values []string
	_, err := c.ReadOnly(ctx, timeout, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, limit)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var v string
			if err := rows.Scan(&v); err != nil {
				return err
			}
			values = append(values, v)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sample %s.%s.%s: %w", schemaName, table, column, err)
	}
	return values, nil
}
