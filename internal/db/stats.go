package db

import (
	"context"
	"fmt"
	"strings"
)

// DatabaseSize is the on-disk size of the current database
type DatabaseSize struct {
	Name   string `json:"name"`
	Bytes  int64  `json:"bytes"`
	Pretty string `json:"pretty"`
}

// TableSize describes the storage footprint of one table
type TableSize struct {
	Schema     string `json:"schema"`
	Table      string `json:"table"`
	TotalBytes int64  `json:"total_bytes"`
	Pretty     string `json:"pretty"`
	ApproxRows int64  `json:"approx_rows"`
}

// DatabaseSize reports the size of the connected database
func (c *PostgresClient) DatabaseSize(ctx context.Context) (DatabaseSize, error) {
	query := `
		SELECT current_database(),
			pg_database_size(current_database()),
			pg_size_pretty(pg_database_size(current_database()))
	`

	var size DatabaseSize
	if err := c.db.QueryRowContext(ctx, query).Scan(&size.Name, &size.Bytes, &size.Pretty); err != nil {
		return DatabaseSize{}, fmt.Errorf("failed to query database size: %w", err)
	}
	return size, nil
}

// LargestTables returns the biggest tables of the given schemas by total relation size
func (c *PostgresClient) LargestTables(ctx context.Context, schemas []string, limit int) ([]TableSize, error) {
	if limit < 1 {
		limit = 1
	}

	query := `
		SELECT n.nspname, c.relname,
			pg_total_relation_size(c.oid),
			pg_size_pretty(pg_total_relation_size(c.oid)),
			GREATEST(c.reltuples::bigint, 0)
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('r', 'p')
			AND n.nspname = ANY(string_to_array($1, ','))
		ORDER BY pg_total_relation_size(c.oid) DESC, n.nspname, c.relname
		LIMIT $2
	`

	rows, err := c.db.QueryContext(ctx, query, strings.Join(schemas, ","), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query table sizes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []TableSize
	for rows.Next() {
		var t TableSize
		if err := rows.Scan(&t.Schema, &t.Table, &t.TotalBytes, &t.Pretty, &t.ApproxRows); err != nil {
			return nil, fmt.Errorf("failed to scan table size: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// TableScans is the scan activity of one table since statistics were last reset
type TableScans struct {
	Schema   string `json:"schema"`
	Table    string `json:"table"`
	SeqScan  int64  `json:"seq_scan"`
	IdxScan  int64  `json:"idx_scan"`
	LiveRows int64  `json:"live_rows"`
}

// UnusedIndex is an index that has not been scanned since statistics were last reset
type UnusedIndex struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Index  string `json:"index"`
	Bytes  int64  `json:"bytes"`
	Pretty string `json:"pretty"`
}

// Identity names the server the client is connected to
type Identity struct {
	Database string `json:"database"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Version  string `json:"version"`
}

// SeqScans returns the tables of the given schemas with the most sequential scans
func (c *PostgresClient) SeqScans(ctx context.Context, schemas []string, limit int) ([]TableScans, error) {
	if limit < 1 {
		limit = 1
	}

	query := `
		SELECT schemaname, relname,
			COALESCE(seq_scan, 0),
			COALESCE(idx_scan, 0),
			COALESCE(n_live_tup, 0)
		FROM pg_catalog.pg_stat_user_tables
		WHERE schemaname = ANY(string_to_array($1, ','))
		ORDER BY seq_scan DESC NULLS LAST, schemaname, relname
		LIMIT $2
	`

	rows, err := c.db.QueryContext(ctx, query, strings.Join(schemas, ","), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query table scans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []TableScans
	for rows.Next() {
		var t TableScans
		if err := rows.Scan(&t.Schema, &t.Table, &t.SeqScan, &t.IdxScan, &t.LiveRows); err != nil {
			return nil, fmt.Errorf("failed to scan table scans: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// UnusedIndexes returns never-scanned indexes of the given schemas, largest first
func (c *PostgresClient) UnusedIndexes(ctx context.Context, schemas []string, limit int) ([]UnusedIndex, error) {
	if limit < 1 {
		limit = 1
	}

	query := `
		SELECT s.schemaname, s.relname, s.indexrelname,
			pg_relation_size(s.indexrelid),
			pg_size_pretty(pg_relation_size(s.indexrelid))
		FROM pg_catalog.pg_stat_user_indexes s
		JOIN pg_catalog.pg_index i ON i.indexrelid = s.indexrelid
		WHERE s.idx_scan = 0
			AND NOT i.indisprimary
			AND NOT i.indisunique
			AND s.schemaname = ANY(string_to_array($1, ','))
		ORDER BY pg_relation_size(s.indexrelid) DESC, s.schemaname, s.indexrelname
		LIMIT $2
	`

	rows, err := c.db.QueryContext(ctx, query, strings.Join(schemas, ","), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unused indexes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var indexes []UnusedIndex
	for rows.Next() {
		var idx UnusedIndex
		if err := rows.Scan(&idx.Schema, &idx.Table, &idx.Index, &idx.Bytes, &idx.Pretty); err != nil {
			return nil, fmt.Errorf("failed to scan unused index: %w", err)
		}
		indexes = append(indexes, idx)
	}
	return indexes, rows.Err()
}

// Identity reports the connected database, server address and version.
// A unix socket connection reports localhost and port 0.
func (c *PostgresClient) Identity(ctx context.Context) (Identity, error) {
	query := `
		SELECT current_database(),
			COALESCE(host(inet_server_addr()), 'localhost'),
			COALESCE(inet_server_port(), 0),
			version()
	`

	var id Identity
	if err := c.db.QueryRowContext(ctx, query).Scan(&id.Database, &id.Host, &id.Port, &id.Version); err != nil {
		return Identity{}, fmt.Errorf("failed to query database identity: %w", err)
	}
	return id, nil
}

// ShortVersion trims the build details from version(), e.g. "PostgreSQL 16.2" from
// "PostgreSQL 16.2 on x86_64-pc-linux-gnu, compiled by gcc ..."
func (id Identity) ShortVersion() string {
	v, _, _ := strings.Cut(id.Version, " on ")
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}
