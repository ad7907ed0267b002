package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Explain asks the planner for the verbose JSON plan of a statement without executing it.
// Named binds are resolved from params first.
func (c *PostgresClient) Explain(ctx context.Context, query string, params map[string]any, timeout time.Duration) ([]byte, error) {
	bound, args, err := BindNamed(strings.TrimRight(strings.TrimSpace(query), "; \t\n"), params)
	if err != nil {
		return nil, err
	}

	var plan string
	_, err = c.ReadOnly(ctx, timeout, func(ctx context.Context, tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, "EXPLAIN (VERBOSE, FORMAT JSON) "+bound, args...).Scan(&plan)
	})
	if err != nil {
		return nil, fmt.Errorf("explain failed: %w", err)
	}
	return []byte(plan), nil
}
