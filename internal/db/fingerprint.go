package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/tordrt/schemaguard/internal/schema"
)

const noColumnsMarker = "<no-columns>"

// ColumnSpec is one row of the structural fingerprint.
// A table with no visible columns is represented by a single spec with an empty Column.
type ColumnSpec struct {
	Schema  string
	Table   string
	Column  string
	Ordinal int
	Type    string
}

// Fingerprint hashes the live column layout of the given schemas.
// Types go through the same normalization as reflected cards so both sides compare equal.
func (c *PostgresClient) Fingerprint(ctx context.Context, schemas []string) (string, error) {
	specs, err := c.ColumnSpecs(ctx, schemas)
	if err != nil {
		return "", err
	}
	return FingerprintSpecs(specs), nil
}

// ColumnSpecs reads the ordered (schema, table, column, type) rows for all base tables
func (c *PostgresClient) ColumnSpecs(ctx context.Context, schemas []string) ([]ColumnSpec, error) {
	if len(schemas) == 0 {
		return nil, nil
	}

	query := `
		SELECT
			t.table_schema,
			t.table_name,
			c.column_name,
			c.ordinal_position,
			c.data_type,
			c.udt_name,
			c.character_maximum_length
		FROM information_schema.tables t
		LEFT JOIN information_schema.columns c
			ON c.table_schema = t.table_schema AND c.table_name = t.table_name
		WHERE t.table_schema = ANY(string_to_array($1, ','))
			AND t.table_type = 'BASE TABLE'
		ORDER BY t.table_schema, t.table_name, c.ordinal_position
	`

	rows, err := c.db.QueryContext(ctx, query, strings.Join(schemas, ","))
	if err != nil {
		return nil, fmt.Errorf("failed to query column layout: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var specs []ColumnSpec
	for rows.Next() {
		var (
			spec          ColumnSpec
			column        sql.NullString
			ordinal       sql.NullInt64
			dataType      sql.NullString
			udtName       sql.NullString
			charMaxLength sql.NullInt64
		)
		if err := rows.Scan(&spec.Schema, &spec.Table, &column, &ordinal, &dataType, &udtName, &charMaxLength); err != nil {
			return nil, fmt.Errorf("failed to scan column layout: %w", err)
		}
		if column.Valid {
			var maxLen *int64
			if charMaxLength.Valid {
				maxLen = &charMaxLength.Int64
			}
			spec.Column = column.String
			spec.Ordinal = int(ordinal.Int64)
			spec.Type = normalizePostgresType(dataType.String, udtName.String, maxLen)
		}
		specs = append(specs, spec)
	}
	return specs, rows.Err()
}

// CardSpecs derives fingerprint rows from cached cards
func CardSpecs(cards []*schema.SchemaCard) []ColumnSpec {
	var specs []ColumnSpec
	for _, card := range cards {
		if len(card.Columns) == 0 {
			specs = append(specs, ColumnSpec{Schema: card.Schema, Table: card.Table})
			continue
		}
		for i, col := range card.Columns {
			specs = append(specs, ColumnSpec{
				Schema:  card.Schema,
				Table:   card.Table,
				Column:  col.Name,
				Ordinal: i + 1,
				Type:    col.Type,
			})
		}
	}
	return specs
}

// FingerprintSpecs hashes column specs after sorting them by schema, table and ordinal
func FingerprintSpecs(specs []ColumnSpec) string {
	sorted := make([]ColumnSpec, len(specs))
	copy(sorted, specs)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Schema != b.Schema {
			return a.Schema < b.Schema
		}
		if a.Table != b.Table {
			return a.Table < b.Table
		}
		return a.Ordinal < b.Ordinal
	})

	h := sha256.New()
	for _, s := range sorted {
		var line string
		if s.Column == "" {
			line = strings.Join([]string{s.Schema, s.Table, noColumnsMarker}, "|")
		} else {
			line = strings.Join([]string{s.Schema, s.Table, s.Column, s.Type}, "|")
		}
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// FingerprintCards hashes the layout described by a set of cards
func FingerprintCards(cards []*schema.SchemaCard) string {
	return FingerprintSpecs(CardSpecs(cards))
}
