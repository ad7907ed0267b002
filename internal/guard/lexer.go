package guard

import (
	"strings"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokQuoted
	tokString
	tokNumber
	tokParam
	tokPunct
)

type token struct {
	kind tokenKind
	text string
}

func (t token) is(word string) bool {
	return t.kind == tokWord && strings.EqualFold(t.text, word)
}

func (t token) isPunct(p string) bool {
	return t.kind == tokPunct && t.text == p
}

func (t token) isName() bool {
	return t.kind == tokWord || t.kind == tokQuoted
}

// lex splits SQL into tokens. Comments are dropped; string and dollar-quoted literals become one token each.
func lex(sql string) []token {
	var toks []token
	n := len(sql)
	for i := 0; i < n; {
		ch := sql[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f':
			i++
		case ch == '-' && i+1 < n && sql[i+1] == '-':
			for i < n && sql[i] != '\n' {
				i++
			}
		case ch == '/' && i+1 < n && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				i = n
			} else {
				i += end + 4
			}
		case ch == '\'':
			j := skipQuote(sql, i, '\'')
			toks = append(toks, token{kind: tokString, text: sql[i:j]})
			i = j
		case ch == '"':
			j := skipQuote(sql, i, '"')
			toks = append(toks, token{kind: tokQuoted, text: sql[i:j]})
			i = j
		case ch == '$':
			j := i + 1
			for j < n && isWordByte(sql[j]) {
				j++
			}
			switch {
			case j > i+1 && isDigits(sql[i+1:j]):
				toks = append(toks, token{kind: tokParam, text: sql[i:j]})
				i = j
			case j < n && sql[j] == '$':
				tag := sql[i : j+1]
				end := strings.Index(sql[j+1:], tag)
				if end < 0 {
					i = n
				} else {
					i = j + 1 + end + len(tag)
				}
				toks = append(toks, token{kind: tokString, text: "''"})
			default:
				toks = append(toks, token{kind: tokPunct, text: "$"})
				i++
			}
		case ch == ':' && i+1 < n && sql[i+1] == ':':
			toks = append(toks, token{kind: tokPunct, text: "::"})
			i += 2
		case ch == ':' && i+1 < n && isWordStart(sql[i+1]):
			j := i + 1
			for j < n && isWordByte(sql[j]) {
				j++
			}
			toks = append(toks, token{kind: tokParam, text: sql[i:j]})
			i = j
		case isWordStart(ch):
			j := i
			for j < n && (isWordByte(sql[j]) || sql[j] == '$') {
				j++
			}
			toks = append(toks, token{kind: tokWord, text: sql[i:j]})
			i = j
		case ch >= '0' && ch <= '9':
			j := i
			for j < n && ((sql[j] >= '0' && sql[j] <= '9') || sql[j] == '.' || sql[j] == 'e' || sql[j] == 'E') {
				j++
			}
			toks = append(toks, token{kind: tokNumber, text: sql[i:j]})
			i = j
		default:
			toks = append(toks, token{kind: tokPunct, text: string(ch)})
			i++
		}
	}
	return toks
}

func skipQuote(s string, i int, quote byte) int {
	for j := i + 1; j < len(s); j++ {
		if s[j] == quote {
			if j+1 < len(s) && s[j+1] == quote {
				j++
				continue
			}
			return j + 1
		}
	}
	return len(s)
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isWordByte(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9')
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// stripLiteralsAndComments blanks string literals and removes comments, keeping quoted identifiers
func stripLiteralsAndComments(sql string) string {
	var b strings.Builder
	for _, t := range lex(sql) {
		if t.kind == tokString {
			b.WriteString("''")
		} else {
			b.WriteString(t.text)
		}
		b.WriteByte(' ')
	}
	return b.String()
}

// matchParen returns the index of the ")" closing the "(" at open, or len(toks)
func matchParen(toks []token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch {
		case toks[i].isPunct("("):
			depth++
		case toks[i].isPunct(")"):
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(toks)
}

// splitTopLevel splits toks on commas outside parentheses
func splitTopLevel(toks []token) [][]token {
	var (
		parts [][]token
		start int
		depth int
	)
	for i, t := range toks {
		switch {
		case t.isPunct("("):
			depth++
		case t.isPunct(")"):
			if depth > 0 {
				depth--
			}
		case t.isPunct(",") && depth == 0:
			parts = append(parts, toks[start:i])
			start = i + 1
		}
	}
	if start < len(toks) {
		parts = append(parts, toks[start:])
	}
	return parts
}

// qualifiedName reads name(.name)* starting at i and returns its parts and the next index
func qualifiedName(toks []token, i int) ([]string, int) {
	var parts []string
	for i < len(toks) && toks[i].isName() {
		parts = append(parts, toks[i].text)
		if i+2 < len(toks) && toks[i+1].isPunct(".") && (toks[i+2].isName() || toks[i+2].isPunct("*")) {
			if toks[i+2].isPunct("*") {
				return append(parts, "*"), i + 3
			}
			i += 2
			continue
		}
		return parts, i + 1
	}
	return parts, i
}
