package formatter

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemaguard/internal/schema"
)

func testCards() []*schema.SchemaCard {
	rows := int64(1000)
	def := "nextval('film_film_id_seq'::regclass)"
	return []*schema.SchemaCard{
		{
			Schema:  "public",
			Table:   "film",
			Comment: "catalog of titles",
			Columns: []schema.Column{
				{Name: "film_id", Type: "integer", Default: &def},
				{Name: "title", Type: "text", Comment: "display title"},
				{Name: "language_id", Type: "smallint"},
			},
			PrimaryKey:  []string{"film_id"},
			ForeignKeys: []schema.ForeignKey{{Column: "language_id", RefSchema: "public", RefTable: "language", RefColumn: "language_id"}},
			Indexes:     []schema.Index{{Name: "film_title_key", Columns: []string{"title"}, Unique: true}},
			RowEstimate: &rows,
			Examples:    map[string][]string{"title": {"ACADEMY DINOSAUR", "ACE GOLDFINGER"}},
			Aliases:     []string{"movie"},
		},
		{
			Schema:  "public",
			Table:   "language",
			Columns: []schema.Column{{Name: "language_id", Type: "smallint"}, {Name: "name", Type: "character(20)"}},
		},
	}
}

func TestTextFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextFormatter(&buf).Format(testCards()))

	out := buf.String()
	assert.Contains(t, out, "TABLE public.film (PK: film_id) ~1000 rows\n")
	assert.Contains(t, out, "  ALIASES: movie\n")
	assert.Contains(t, out, "  film_id: integer NOT NULL DEFAULT nextval('film_film_id_seq'::regclass)\n")
	assert.Contains(t, out, "  title: text NOT NULL e.g. ACADEMY DINOSAUR|ACE GOLDFINGER -- display title\n")
	assert.Contains(t, out, "    language_id → public.language.language_id\n")
	assert.Contains(t, out, "    film_title_key (title) UNIQUE\n")
	assert.Contains(t, out, "\n\nTABLE public.language\n")
}

func TestMarkdownFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewMarkdownFormatter(&buf).Format(testCards()))

	out := buf.String()
	assert.Contains(t, out, "# Database Schema\n\n## public.film\n\ncatalog of titles\n\nApproximate rows: 1000\n")
	assert.Contains(t, out, "- **film_id:** integer, PK, NOT NULL, DEFAULT nextval('film_film_id_seq'::regclass)\n")
	assert.Contains(t, out, "- **title:** text, NOT NULL (e.g. `ACADEMY DINOSAUR`, `ACE GOLDFINGER`) - display title\n")
	assert.Contains(t, out, "- film_title_key on (title), unique\n")
}

func TestMultiFileFormatter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "docs")
	require.NoError(t, NewMultiFileFormatter(dir, FormatMarkdown).Format(testCards()))

	overview, err := os.ReadFile(filepath.Join(dir, "_overview.md"))
	require.NoError(t, err)
	assert.Contains(t, string(overview), "- **public.film** (references: public.language)\n")
	assert.Contains(t, string(overview), "- **public.language**\n")

	language, err := os.ReadFile(filepath.Join(dir, "public.language.md"))
	require.NoError(t, err)
	assert.Contains(t, string(language), "### Referenced by\n\n- public.film.language_id → language_id\n")

	textDir := filepath.Join(t.TempDir(), "txt")
	require.NoError(t, NewMultiFileFormatter(textDir, FormatText).Format(testCards()))
	assert.FileExists(t, filepath.Join(textDir, "_overview.txt"))
	assert.FileExists(t, filepath.Join(textDir, "public.film.txt"))
}
