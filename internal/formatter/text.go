package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/schemaguard/internal/schema"
)

// TextFormatter formats schema cards as compact text
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes the cards in compact text format
func (f *TextFormatter) Format(cards []*schema.SchemaCard) error {
	for i, card := range cards {
		if i > 0 {
			_, _ = fmt.Fprintln(f.writer) // Blank line between tables
		}

		if err := f.formatCard(card); err != nil {
			return err
		}
	}
	return nil
}

func (f *TextFormatter) formatCard(card *schema.SchemaCard) error {
	// Table header with primary key and row estimate
	pkStr := ""
	if len(card.PrimaryKey) > 0 {
		pkStr = fmt.Sprintf(" (PK: %s)", strings.Join(card.PrimaryKey, ", "))
	}
	rowsStr := ""
	if card.RowEstimate != nil {
		rowsStr = fmt.Sprintf(" ~%d rows", *card.RowEstimate)
	}
	_, _ = fmt.Fprintf(f.writer, "TABLE %s%s%s\n", card.Key(), pkStr, rowsStr)
	if card.Comment != "" {
		_, _ = fmt.Fprintf(f.writer, "  -- %s\n", card.Comment)
	}
	if len(card.Aliases) > 0 {
		_, _ = fmt.Fprintf(f.writer, "  ALIASES: %s\n", strings.Join(card.Aliases, ", "))
	}

	if len(card.Columns) == 0 {
		_, _ = fmt.Fprintln(f.writer, "  (no visible columns)")
	}
	for _, col := range card.Columns {
		_, _ = fmt.Fprintf(f.writer, "  %s\n", f.formatColumn(col, card.Examples[col.Name]))
	}

	// Foreign keys
	if len(card.ForeignKeys) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  RELATIONS:")
		for _, fk := range card.ForeignKeys {
			_, _ = fmt.Fprintf(f.writer, "    %s → %s.%s.%s\n", fk.Column, fk.RefSchema, fk.RefTable, fk.RefColumn)
		}
	}

	// Indexes
	if len(card.Indexes) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  INDEXES:")
		for _, idx := range card.Indexes {
			unique := ""
			if idx.Unique {
				unique = " UNIQUE"
			}
			_, _ = fmt.Fprintf(f.writer, "    %s (%s)%s\n", idx.Name, strings.Join(idx.Columns, ", "), unique)
		}
	}

	return nil
}

func (f *TextFormatter) formatColumn(col schema.Column, examples []string) string {
	parts := []string{col.Name + ":", col.Type}

	// Nullable
	if !col.Nullable {
		parts = append(parts, "NOT NULL")
	}

	// Default value
	if col.Default != nil {
		parts = append(parts, fmt.Sprintf("DEFAULT %s", *col.Default))
	}

	if len(examples) > 0 {
		parts = append(parts, fmt.Sprintf("e.g. %s", strings.Join(examples, "|")))
	}

	if col.Comment != "" {
		parts = append(parts, "-- "+col.Comment)
	}

	return strings.Join(parts, " ")
}
