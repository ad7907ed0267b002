package schema

import (
	"fmt"
	"strings"
)

// TypeCategory is the logical family of a column type, resolved once at reflection time
type TypeCategory int

const (
	CategoryOther TypeCategory = iota
	CategoryText
	CategoryNumeric
	CategoryBoolean
	CategoryTemporal
)

var categoryNames = map[TypeCategory]string{
	CategoryOther:    "other",
	CategoryText:     "text",
	CategoryNumeric:  "numeric",
	CategoryBoolean:  "boolean",
	CategoryTemporal: "temporal",
}

func (c TypeCategory) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "other"
}

// MarshalText encodes the category by name so persisted cards stay readable
func (c TypeCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a category name
func (c *TypeCategory) UnmarshalText(text []byte) error {
	for cat, name := range categoryNames {
		if name == string(text) {
			*c = cat
			return nil
		}
	}
	return fmt.Errorf("unknown type category %q", string(text))
}

// IsText reports whether values of the category are text-like
func (c TypeCategory) IsText() bool {
	return c == CategoryText
}

// Arrays are matched first so text[] is not mistaken for text.
var categoryPrefixes = []struct {
	prefix   string
	category TypeCategory
}{
	{"character varying", CategoryText},
	{"varchar", CategoryText},
	{"character", CategoryText},
	{"char", CategoryText},
	{"bpchar", CategoryText},
	{"text", CategoryText},
	{"citext", CategoryText},
	{"name", CategoryText},
	{"uuid", CategoryText},
	{"smallint", CategoryNumeric},
	{"integer", CategoryNumeric},
	{"bigint", CategoryNumeric},
	{"int", CategoryNumeric},
	{"numeric", CategoryNumeric},
	{"decimal", CategoryNumeric},
	{"real", CategoryNumeric},
	{"double precision", CategoryNumeric},
	{"float", CategoryNumeric},
	{"money", CategoryNumeric},
	{"serial", CategoryNumeric},
	{"bigserial", CategoryNumeric},
	{"boolean", CategoryBoolean},
	{"bool", CategoryBoolean},
	{"timestamp", CategoryTemporal},
	{"date", CategoryTemporal},
	{"time", CategoryTemporal},
	{"interval", CategoryTemporal},
}

// CategoryOf classifies a normalized PostgreSQL type name
func CategoryOf(typeName string) TypeCategory {
	t := strings.ToLower(strings.TrimSpace(typeName))
	if t == "" || strings.HasSuffix(t, "[]") {
		return CategoryOther
	}
	for _, p := range categoryPrefixes {
		if t == p.prefix || strings.HasPrefix(t, p.prefix+"(") || strings.HasPrefix(t, p.prefix+" ") || isNumberedVariant(t, p.prefix) {
			return p.category
		}
	}
	return CategoryOther
}

// isNumberedVariant matches names such as int4, float8 or timestamptz
func isNumberedVariant(t, prefix string) bool {
	if !strings.HasPrefix(t, prefix) {
		return false
	}
	rest := t[len(prefix):]
	switch rest {
	case "2", "4", "8", "tz":
		return true
	}
	return false
}
