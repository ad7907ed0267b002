package guard

import (
	"regexp"
	"strconv"
	"strings"
)

// Defaults are injected for unbound pagination binds on SELECT statements
type Defaults struct {
	Limit  int
	Offset int
}

// DefaultDefaults returns the process-wide pagination defaults
func DefaultDefaults() Defaults {
	return Defaults{Limit: 10, Offset: 0}
}

var (
	leadingCommentRe = regexp.MustCompile(`^(\s*--[^\n]*(\n|$)|\s*/\*(?s:.*?)\*/)+`)
	bindRe           = regexp.MustCompile(`(^|[^:]):([a-zA-Z_][a-zA-Z0-9_]*)`)
	limitBindRe      = regexp.MustCompile(`(?i)\bLIMIT\s+:limit\b`)
	firstWordRe      = regexp.MustCompile(`^([A-Za-z]+)`)
)

// StripLeadingComments removes line and block comments that precede the first keyword
func StripLeadingComments(sql string) string {
	return strings.TrimLeft(leadingCommentRe.ReplaceAllString(sql, ""), " \t\r\n")
}

// FirstKeyword returns the upper-cased first word of the statement after leading comments
func FirstKeyword(sql string) string {
	m := firstWordRe.FindStringSubmatch(StripLeadingComments(sql))
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

// MainKeyword returns the upper-cased keyword of the statement body, looking past a WITH prefix
func MainKeyword(sql string) string {
	kw := FirstKeyword(sql)
	if kw != "WITH" {
		return kw
	}
	toks := lex(sql)
	_, i := parseCTEs(toks)
	if i < len(toks) && toks[i].kind == tokWord {
		return strings.ToUpper(toks[i].text)
	}
	return ""
}

// IsSelectOnly reports whether the statement body is a SELECT, with or without CTEs
func IsSelectOnly(sql string) bool {
	return MainKeyword(sql) == "SELECT"
}

// ShouldAnalyse reports whether identifier checking applies to the statement.
// Other statement kinds are left to the write policy.
func ShouldAnalyse(sql string) bool {
	switch FirstKeyword(sql) {
	case "SELECT", "INSERT", "UPDATE", "WITH":
		return true
	}
	return false
}

// namedBinds lists the :name binds of a statement, ignoring :: casts
func namedBinds(sql string) map[string]bool {
	binds := make(map[string]bool)
	for _, m := range bindRe.FindAllStringSubmatch(stripLiteralsAndComments(sql), -1) {
		binds[m[2]] = true
	}
	return binds
}

// Hydrate returns a copy of params with limit and offset defaults filled in for
// SELECT statements that reference them without a value
func Hydrate(sql string, params map[string]any, defaults Defaults) map[string]any {
	hydrated := make(map[string]any, len(params)+2)
	for k, v := range params {
		hydrated[k] = v
	}
	if !IsSelectOnly(sql) {
		return hydrated
	}

	binds := namedBinds(sql)
	if binds["limit"] {
		if _, ok := hydrated["limit"]; !ok {
			hydrated["limit"] = defaults.Limit
		}
	}
	if binds["offset"] {
		if _, ok := hydrated["offset"]; !ok {
			hydrated["offset"] = defaults.Offset
		}
	}
	return hydrated
}

// NormalizeLimitLiteral replaces LIMIT :limit with the default literal when no limit was supplied
func NormalizeLimitLiteral(sql string, params map[string]any, defaults Defaults) string {
	if !IsSelectOnly(sql) {
		return sql
	}
	if v, ok := params["limit"]; ok && v != nil {
		return sql
	}
	return limitBindRe.ReplaceAllString(sql, "LIMIT "+strconv.Itoa(defaults.Limit))
}
