package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/schemaguard/internal/schema"
)

// MarkdownFormatter formats schema cards as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the cards in markdown format
func (f *MarkdownFormatter) Format(cards []*schema.SchemaCard) error {
	_, _ = fmt.Fprintln(f.writer, "# Database Schema")
	_, _ = fmt.Fprintln(f.writer)

	for _, card := range cards {
		if err := f.formatCard(card); err != nil {
			return err
		}
	}
	return nil
}

func (f *MarkdownFormatter) formatCard(card *schema.SchemaCard) error {
	// Table header
	_, _ = fmt.Fprintf(f.writer, "## %s\n\n", card.Key())
	if card.Comment != "" {
		_, _ = fmt.Fprintf(f.writer, "%s\n\n", card.Comment)
	}
	if card.RowEstimate != nil {
		_, _ = fmt.Fprintf(f.writer, "Approximate rows: %d\n\n", *card.RowEstimate)
	}
	if len(card.Aliases) > 0 {
		_, _ = fmt.Fprintf(f.writer, "Also known as: %s\n\n", strings.Join(card.Aliases, ", "))
	}

	// Columns
	_, _ = fmt.Fprintln(f.writer, "### Columns")
	_, _ = fmt.Fprintln(f.writer)

	if len(card.Columns) == 0 {
		_, _ = fmt.Fprintln(f.writer, "_No visible columns._")
	}
	for _, col := range card.Columns {
		constraintStr := f.formatConstraints(col, card.PrimaryKey)
		line := fmt.Sprintf("- **%s:** %s", col.Name, col.Type)
		if constraintStr != "" {
			line += ", " + constraintStr
		}
		if examples := card.Examples[col.Name]; len(examples) > 0 {
			line += fmt.Sprintf(" (e.g. `%s`)", strings.Join(examples, "`, `"))
		}
		if col.Comment != "" {
			line += " - " + col.Comment
		}
		_, _ = fmt.Fprintln(f.writer, line)
	}
	_, _ = fmt.Fprintln(f.writer)

	// Foreign keys
	if len(card.ForeignKeys) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### References")
		_, _ = fmt.Fprintln(f.writer)
		for _, fk := range card.ForeignKeys {
			_, _ = fmt.Fprintf(f.writer, "- %s → %s.%s.%s\n",
				fk.Column,
				fk.RefSchema,
				fk.RefTable,
				fk.RefColumn)
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	// Indexes
	if len(card.Indexes) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### Idx")
		_, _ = fmt.Fprintln(f.writer)
		for _, idx := range card.Indexes {
			if idx.Unique {
				_, _ = fmt.Fprintf(f.writer, "- %s on (%s), unique\n",
					idx.Name,
					strings.Join(idx.Columns, ", "))
			} else {
				_, _ = fmt.Fprintf(f.writer, "- %s on (%s)\n",
					idx.Name,
					strings.Join(idx.Columns, ", "))
			}
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	return nil
}

func (f *MarkdownFormatter) formatConstraints(col schema.Column, primaryKey []string) string {
	var constraints []string

	// Check if this column is part of the primary key
	isPK := false
	for _, pk := range primaryKey {
		if pk == col.Name {
			isPK = true
			break
		}
	}

	if isPK {
		constraints = append(constraints, "PK")
	}

	if !col.Nullable {
		constraints = append(constraints, "NOT NULL")
	}

	if col.Default != nil {
		constraints = append(constraints, fmt.Sprintf("DEFAULT %s", *col.Default))
	}

	return strings.Join(constraints, ", ")
}
