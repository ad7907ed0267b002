package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	"github.com/tordrt/schemaguard/internal/schema"
)

// Reflector reads table structure from the PostgreSQL system catalogs
type Reflector struct {
	client *PostgresClient
	logger *zap.Logger
	types  *pgtype.Map
}

// NewReflector creates a new PostgreSQL reflector
func NewReflector(client *PostgresClient, logger *zap.Logger) *Reflector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reflector{
		client: client,
		logger: logger,
		types:  pgtype.NewMap(),
	}
}

// EligibleSchemas keeps the configured schemas the current role holds USAGE on
func (r *Reflector) EligibleSchemas(ctx context.Context, configured []string) ([]string, error) {
	query := `
		SELECT n.nspname
		FROM pg_catalog.pg_namespace n
		WHERE n.nspname = ANY(string_to_array($1, ','))
		  AND has_schema_privilege(n.nspname, 'USAGE')
		ORDER BY n.nspname
	`

	rows, err := r.client.db.QueryContext(ctx, query, strings.Join(configured, ","))
	if err != nil {
		return nil, fmt.Errorf("failed to query schemas: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var schemas []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan schema name: %w", err)
		}
		schemas = append(schemas, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(schemas) < len(configured) {
		r.logger.Debug("skipping schemas without usage privilege",
			zap.Strings("configured", configured),
			zap.Strings("eligible", schemas))
	}
	return schemas, nil
}

// ListTables returns all base tables in the given schemas ordered by schema and name
func (r *Reflector) ListTables(ctx context.Context, schemas []string) ([]schema.TableRef, error) {
	if len(schemas) == 0 {
		return nil, nil
	}

	query := `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_schema = ANY(string_to_array($1, ','))
		  AND table_type = 'BASE TABLE'
		ORDER BY table_schema, table_name
	`

	rows, err := r.client.db.QueryContext(ctx, query, strings.Join(schemas, ","))
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []schema.TableRef
	for rows.Next() {
		var ref schema.TableRef
		if err := rows.Scan(&ref.Schema, &ref.Table); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, ref)
	}
	return tables, rows.Err()
}

// Columns returns the columns of a table in ordinal order with normalized types
func (r *Reflector) Columns(ctx context.Context, schemaName, table string) ([]schema.Column, error) {
	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable,
			c.column_default,
			c.udt_name,
			c.character_maximum_length,
			d.description
		FROM information_schema.columns c
		LEFT JOIN pg_catalog.pg_namespace n ON n.nspname = c.table_schema
		LEFT JOIN pg_catalog.pg_class cl ON cl.relnamespace = n.oid AND cl.relname = c.table_name
		LEFT JOIN pg_catalog.pg_attribute a ON a.attrelid = cl.oid AND a.attname = c.column_name
		LEFT JOIN pg_catalog.pg_description d ON d.objoid = cl.oid AND d.objsubid = a.attnum
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	rows, err := r.client.db.QueryContext(ctx, query, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []schema.Column
	for rows.Next() {
		var (
			col           schema.Column
			dataType      string
			isNullable    string
			defaultVal    sql.NullString
			udtName       string
			charMaxLength sql.NullInt64
			comment       sql.NullString
		)

		if err := rows.Scan(&col.Name, &dataType, &isNullable, &defaultVal, &udtName, &charMaxLength, &comment); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}

		var maxLen *int64
		if charMaxLength.Valid {
			maxLen = &charMaxLength.Int64
		}
		col.Type = normalizePostgresType(dataType, udtName, maxLen)
		col.Category = schema.CategoryOf(col.Type)
		col.Nullable = isNullable == "YES"
		if defaultVal.Valid {
			v := defaultVal.String
			col.Default = &v
		}
		col.Comment = comment.String

		columns = append(columns, col)
	}

	return columns, rows.Err()
}

// PrimaryKey returns the primary key columns of a table in key order
func (r *Reflector) PrimaryKey(ctx context.Context, schemaName, table string) ([]string, error) {
	query := `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
			AND tc.table_name = kcu.table_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = $1
			AND tc.table_name = $2
		ORDER BY kcu.ordinal_position
	`

	rows, err := r.client.db.QueryContext(ctx, query, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query primary key: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pk []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, fmt.Errorf("failed to scan primary key column: %w", err)
		}
		pk = append(pk, col)
	}
	return pk, rows.Err()
}

// ForeignKeys returns one entry per referencing column, composite keys included
func (r *Reflector) ForeignKeys(ctx context.Context, schemaName, table string) ([]schema.ForeignKey, error) {
	query := `
		SELECT a.attname, rn.nspname, rc.relname, ra.attname
		FROM pg_catalog.pg_constraint con
		JOIN pg_catalog.pg_class c ON c.oid = con.conrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_catalog.pg_class rc ON rc.oid = con.confrelid
		JOIN pg_catalog.pg_namespace rn ON rn.oid = rc.relnamespace
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(attnum, refattnum, ord)
		JOIN pg_catalog.pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
		JOIN pg_catalog.pg_attribute ra ON ra.attrelid = con.confrelid AND ra.attnum = k.refattnum
		WHERE con.contype = 'f'
			AND n.nspname = $1
			AND c.relname = $2
		ORDER BY con.conname, k.ord
	`

	rows, err := r.client.db.QueryContext(ctx, query, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var fks []schema.ForeignKey
	for rows.Next() {
		var fk schema.ForeignKey
		if err := rows.Scan(&fk.Column, &fk.RefSchema, &fk.RefTable, &fk.RefColumn); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// Indexes returns the non-primary indexes of a table
func (r *Reflector) Indexes(ctx context.Context, schemaName, table string) ([]schema.Index, error) {
	query := `
		SELECT
			i.relname AS index_name,
			array_agg(a.attname ORDER BY array_position(ix.indkey, a.attnum)) AS column_names,
			ix.indisunique AS is_unique
		FROM pg_catalog.pg_class t
		JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_catalog.pg_index ix ON t.oid = ix.indrelid
		JOIN pg_catalog.pg_class i ON i.oid = ix.indexrelid
		JOIN pg_catalog.pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		WHERE n.nspname = $1
			AND t.relname = $2
			AND NOT ix.indisprimary
		GROUP BY i.relname, ix.indisunique
		ORDER BY i.relname
	`

	rows, err := r.client.db.QueryContext(ctx, query, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query indexes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var indexes []schema.Index
	for rows.Next() {
		var idx schema.Index
		if err := rows.Scan(&idx.Name, r.types.SQLScanner(&idx.Columns), &idx.Unique); err != nil {
			return nil, fmt.Errorf("failed to scan index: %w", err)
		}
		indexes = append(indexes, idx)
	}
	return indexes, rows.Err()
}

// TableComment returns the table comment, or "" when there is none
func (r *Reflector) TableComment(ctx context.Context, schemaName, table string) (string, error) {
	query := `SELECT obj_description(to_regclass($1)::oid, 'pg_class')`

	var comment sql.NullString
	err := r.client.db.QueryRowContext(ctx, query, pgx.Identifier{schemaName, table}.Sanitize()).Scan(&comment)
	if err != nil {
		return "", fmt.Errorf("failed to query table comment: %w", err)
	}
	return comment.String, nil
}

// RowEstimates returns planner row estimates keyed by schema.table.
// Tables never analyzed report -1 and are left out.
func (r *Reflector) RowEstimates(ctx context.Context, schemas []string) (map[string]int64, error) {
	query := `
		SELECT n.nspname, c.relname, c.reltuples::bigint
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('r', 'p')
			AND n.nspname = ANY(string_to_array($1, ','))
	`

	rows, err := r.client.db.QueryContext(ctx, query, strings.Join(schemas, ","))
	if err != nil {
		return nil, fmt.Errorf("failed to query row estimates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	estimates := make(map[string]int64)
	for rows.Next() {
		var (
			schemaName, table string
			tuples            int64
		)
		if err := rows.Scan(&schemaName, &table, &tuples); err != nil {
			return nil, fmt.Errorf("failed to scan row estimate: %w", err)
		}
		if tuples >= 0 {
			estimates[schema.Key(schemaName, table)] = tuples
		}
	}
	return estimates, rows.Err()
}
