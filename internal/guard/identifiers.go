package guard

import (
	"regexp"
	"sort"
	"strings"
)

const defaultSchema = "public"

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// Names that parse as identifiers but never denote a column
var nonColumns = map[string]bool{
	"null":              true,
	"true":              true,
	"false":             true,
	"default":           true,
	"current_date":      true,
	"current_time":      true,
	"current_timestamp": true,
	"current_user":      true,
	"session_user":      true,
	"localtime":         true,
	"localtimestamp":    true,
}

// System columns every table has
var systemColumns = map[string]bool{
	"ctid":     true,
	"oid":      true,
	"tableoid": true,
	"xmin":     true,
	"xmax":     true,
	"cmin":     true,
	"cmax":     true,
}

// IdentifierSet holds relation keys and the columns attributed to each
type IdentifierSet struct {
	Relations map[string]bool
	Columns   map[string]map[string]bool
}

// NewIdentifierSet returns an empty set
func NewIdentifierSet() IdentifierSet {
	return IdentifierSet{
		Relations: make(map[string]bool),
		Columns:   make(map[string]map[string]bool),
	}
}

func (s IdentifierSet) addRelation(key string) {
	if key != "" {
		s.Relations[key] = true
	}
}

func (s IdentifierSet) addColumn(key, column string) {
	if key == "" || column == "" {
		return
	}
	cols, ok := s.Columns[key]
	if !ok {
		cols = make(map[string]bool)
		s.Columns[key] = cols
	}
	cols[column] = true
}

// Merge adds every identifier of other to s
func (s IdentifierSet) Merge(other IdentifierSet) {
	for rel := range other.Relations {
		s.addRelation(rel)
	}
	for rel, cols := range other.Columns {
		for col := range cols {
			s.addColumn(rel, col)
		}
	}
}

// RelationList returns the relation keys in order
func (s IdentifierSet) RelationList() []string {
	return sortedKeys(s.Relations)
}

// ColumnList returns the columns attributed to a relation in order
func (s IdentifierSet) ColumnList(key string) []string {
	return sortedKeys(s.Columns[key])
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// foldIdent applies PostgreSQL identifier folding: quoted names keep their case, bare names are lower-cased
func foldIdent(part string) string {
	part = strings.TrimSpace(part)
	if len(part) >= 2 && part[0] == '"' && part[len(part)-1] == '"' {
		return strings.ReplaceAll(part[1:len(part)-1], `""`, `"`)
	}
	return strings.ToLower(strings.Trim(part, `"'`))
}

// splitQualified splits a dotted name on dots outside double quotes
func splitQualified(name string) []string {
	var (
		parts  []string
		cur    strings.Builder
		quoted bool
	)
	for i := 0; i < len(name); i++ {
		ch := name[i]
		switch {
		case ch == '"':
			quoted = !quoted
			cur.WriteByte(ch)
		case ch == '.' && !quoted:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
	parts = append(parts, cur.String())
	return parts
}

// normalizeRelation turns table, schema.table or db.schema.table into a schema.table key
func normalizeRelation(token string) string {
	raw := strings.Trim(strings.TrimSpace(token), ",;")
	if raw == "" {
		return ""
	}
	if fields := strings.Fields(raw); len(fields) > 0 && !strings.Contains(raw, `"`) {
		raw = fields[0]
	}

	var parts []string
	for _, p := range splitQualified(raw) {
		if p = foldIdent(p); p != "" {
			parts = append(parts, p)
		}
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return defaultSchema + "." + parts[0]
	default:
		return parts[len(parts)-2] + "." + parts[len(parts)-1]
	}
}

// normalizeOutput reduces a plan output expression to (qualifier, column).
// JSON path suffixes and casts are stripped; anything with parentheses yields no column.
func normalizeOutput(expr string) (qualifier, column string) {
	name := expr
	if i := strings.LastIndex(name, " -> "); i >= 0 {
		name = name[i+len(" -> "):]
	}
	if i := strings.Index(name, "::"); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, "()'") {
		return "", ""
	}

	parts := splitQualified(name)
	column = foldIdent(parts[len(parts)-1])
	if !identRe.MatchString(column) || nonColumns[column] {
		return "", ""
	}
	if len(parts) > 1 {
		qs := make([]string, 0, len(parts)-1)
		for _, p := range parts[:len(parts)-1] {
			qs = append(qs, foldIdent(p))
		}
		qualifier = strings.Join(qs, ".")
	}
	return qualifier, column
}
