package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresClient manages the connection pool to PostgreSQL
type PostgresClient struct {
	db *sql.DB
}

// NewPostgresClient opens a pool through the pgx driver and pings it
func NewPostgresClient(ctx context.Context, connString string) (*PostgresClient, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// NewPostgresClientFromDB wraps an already opened pool
func NewPostgresClientFromDB(db *sql.DB) *PostgresClient {
	return &PostgresClient{db: db}
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	return c.db.Close()
}

// Timing separates connection acquisition from statement execution
type Timing struct {
	Acquire time.Duration `json:"acquire"`
	Exec    time.Duration `json:"exec"`
}

// ReadOnly runs fn inside a read-only transaction on a dedicated connection.
// A positive timeout is applied with SET LOCAL so it dies with the transaction.
// The transaction is always rolled back.
func (c *PostgresClient) ReadOnly(ctx context.Context, timeout time.Duration, fn func(ctx context.Context, tx *sql.Tx) error) (Timing, error) {
	var timing Timing

	start := time.Now()
	conn, err := c.db.Conn(ctx)
	timing.Acquire = time.Since(start)
	if err != nil {
		return timing, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return timing, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if timeout > 0 {
		if _, err := tx.ExecContext(ctx, localTimeoutStatement(timeout)); err != nil {
			return timing, fmt.Errorf("failed to set statement timeout: %w", err)
		}
	}

	execStart := time.Now()
	err = fn(ctx, tx)
	timing.Exec = time.Since(execStart)
	return timing, err
}

func localTimeoutStatement(timeout time.Duration) string {
	ms := timeout.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", ms)
}
