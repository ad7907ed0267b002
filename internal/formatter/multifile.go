package formatter

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tordrt/schemaguard/internal/schema"
)

const (
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// MultiFileFormatter writes one file per schema card plus an overview into a directory
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // "text" or "markdown"
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string) *MultiFileFormatter {
	return &MultiFileFormatter{
		OutputDir:    outputDir,
		OutputFormat: format,
	}
}

// Format writes the cards to multiple files
func (f *MultiFileFormatter) Format(cards []*schema.SchemaCard) error {
	// Create output directory if it doesn't exist
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	sorted := make([]*schema.SchemaCard, len(cards))
	copy(sorted, cards)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Key() < sorted[j].Key()
	})

	if err := f.writeOverview(sorted); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	for _, card := range sorted {
		if err := f.writeCardFile(card, sorted); err != nil {
			return fmt.Errorf("failed to write table file for %s: %w", card.Key(), err)
		}
	}

	return nil
}

func (f *MultiFileFormatter) writeOverview(cards []*schema.SchemaCard) error {
	filename := filepath.Join(f.OutputDir, "_overview"+f.getFileExtension())

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if f.OutputFormat == FormatMarkdown {
		_, _ = fmt.Fprintf(file, "# Schema Overview\n\n")
		_, _ = fmt.Fprintf(file, "Each table has a corresponding file: `<schema.table>%s`\n\n", f.getFileExtension())
		_, _ = fmt.Fprintf(file, "## Tables\n\n")
	} else {
		_, _ = fmt.Fprintf(file, "SCHEMA OVERVIEW\n")
		_, _ = fmt.Fprintf(file, "Each table has a file: <schema.table>%s\n\n", f.getFileExtension())
	}

	for _, card := range cards {
		line := card.Key()
		if f.OutputFormat == FormatMarkdown {
			line = fmt.Sprintf("- **%s**", card.Key())
		}
		if targets := referencedTables(card); len(targets) > 0 {
			line += fmt.Sprintf(" (references: %s)", strings.Join(targets, ", "))
		}
		_, _ = fmt.Fprintln(file, line)
	}
	return nil
}

func (f *MultiFileFormatter) writeCardFile(card *schema.SchemaCard, all []*schema.SchemaCard) error {
	filename := filepath.Join(f.OutputDir, card.Key()+f.getFileExtension())

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if f.OutputFormat != FormatMarkdown {
		return NewTextFormatter(file).formatCard(card)
	}

	if err := NewMarkdownFormatter(file).formatCard(card); err != nil {
		return err
	}

	// Add incoming relationships
	incoming := findIncoming(card, all)
	if len(incoming) > 0 {
		_, _ = fmt.Fprintf(file, "### Referenced by\n\n")
		for _, rel := range incoming {
			_, _ = fmt.Fprintf(file, "- %s.%s → %s\n", rel.SourceTable, rel.SourceColumn, rel.TargetColumn)
		}
		_, _ = fmt.Fprintln(file)
	}
	return nil
}

// IncomingRelation is a foreign key of another table pointing at this one
type IncomingRelation struct {
	SourceTable  string
	SourceColumn string
	TargetColumn string
}

// findIncoming finds all foreign keys pointing to card
func findIncoming(card *schema.SchemaCard, all []*schema.SchemaCard) []IncomingRelation {
	var incoming []IncomingRelation
	for _, other := range all {
		for _, fk := range other.ForeignKeys {
			if fk.RefSchema == card.Schema && fk.RefTable == card.Table {
				incoming = append(incoming, IncomingRelation{
					SourceTable:  other.Key(),
					SourceColumn: fk.Column,
					TargetColumn: fk.RefColumn,
				})
			}
		}
	}
	return incoming
}

func referencedTables(card *schema.SchemaCard) []string {
	seen := make(map[string]bool)
	var targets []string
	for _, fk := range card.ForeignKeys {
		key := schema.Key(fk.RefSchema, fk.RefTable)
		if !seen[key] {
			seen[key] = true
			targets = append(targets, key)
		}
	}
	return targets
}

func (f *MultiFileFormatter) getFileExtension() string {
	if f.OutputFormat == FormatMarkdown {
		return ".md"
	}
	return ".txt"
}
