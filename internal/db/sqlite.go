package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteClient manages the connection to the local SQLite build history
type SQLiteClient struct {
	db *sql.DB
}

// NewSQLiteClient opens the history database and creates its table if needed
func NewSQLiteClient(ctx context.Context, path string) (*SQLiteClient, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	client := &SQLiteClient{db: db}
	if err := client.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return client, nil
}

// NewSQLiteClientFromDB wraps an already opened database without migrating it
func NewSQLiteClientFromDB(db *sql.DB) *SQLiteClient {
	return &SQLiteClient{db: db}
}

// Close closes the database connection
func (c *SQLiteClient) Close() error {
	return c.db.Close()
}

// Migrate creates the build history table
func (c *SQLiteClient) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS catalog_builds (
			id TEXT PRIMARY KEY,
			fingerprint TEXT NOT NULL,
			table_count INTEGER NOT NULL,
			column_count INTEGER NOT NULL,
			schemas TEXT NOT NULL,
			reason TEXT NOT NULL,
			built_at TEXT NOT NULL
		)
	`
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create history table: %w", err)
	}
	return nil
}

// BuildRecord is one row of the catalog build history
type BuildRecord struct {
	ID          string    `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	Tables      int       `json:"tables"`
	Columns     int       `json:"columns"`
	Schemas     []string  `json:"schemas"`
	Reason      string    `json:"reason"`
	BuiltAt     time.Time `json:"built_at"`
}

// InsertBuild appends a record to the history
func (c *SQLiteClient) InsertBuild(ctx context.Context, rec BuildRecord) error {
	query := `
		INSERT INTO catalog_builds (id, fingerprint, table_count, column_count, schemas, reason, built_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := c.db.ExecContext(ctx, query,
		rec.ID,
		rec.Fingerprint,
		rec.Tables,
		rec.Columns,
		strings.Join(rec.Schemas, ","),
		rec.Reason,
		rec.BuiltAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert build record: %w", err)
	}
	return nil
}

// RecentBuilds returns the newest records first
func (c *SQLiteClient) RecentBuilds(ctx context.Context, limit int) ([]BuildRecord, error) {
	if limit < 1 {
		limit = 1
	}

	query := `
		SELECT id, fingerprint, table_count, column_count, schemas, reason, built_at
		FROM catalog_builds
		ORDER BY built_at DESC, id
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query build history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []BuildRecord
	for rows.Next() {
		var (
			rec     BuildRecord
			schemas string
			builtAt string
		)
		if err := rows.Scan(&rec.ID, &rec.Fingerprint, &rec.Tables, &rec.Columns, &schemas, &rec.Reason, &builtAt); err != nil {
			return nil, fmt.Errorf("failed to scan build record: %w", err)
		}
		if schemas != "" {
			rec.Schemas = strings.Split(schemas, ",")
		}
		rec.BuiltAt, err = time.Parse(time.RFC3339Nano, builtAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse build time %q: %w", builtAt, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
