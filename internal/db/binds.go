package db

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingParam is returned when a named bind has no value
var ErrMissingParam = errors.New("missing bind parameter")

// BindNamed rewrites :name placeholders into positional $n placeholders.
// Quoted strings, quoted identifiers, dollar-quoted bodies, comments and :: casts are left alone.
// A name used twice maps to the same position.
func BindNamed(query string, params map[string]any) (string, []any, error) {
	var (
		out       strings.Builder
		args      []any
		positions = map[string]int{}
	)

	n := len(query)
	for i := 0; i < n; {
		ch := query[i]
		switch {
		case ch == '\'' || ch == '"':
			end := skipQuoted(query, i, ch)
			out.WriteString(query[i:end])
			i = end
		case ch == '-' && i+1 < n && query[i+1] == '-':
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				end = n
			} else {
				end += i
			}
			out.WriteString(query[i:end])
			i = end
		case ch == '/' && i+1 < n && query[i+1] == '*':
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				end = n
			} else {
				end += i + 4
			}
			out.WriteString(query[i:end])
			i = end
		case ch == '$':
			end := skipDollarQuoted(query, i)
			out.WriteString(query[i:end])
			i = end
		case ch == ':' && i+1 < n && query[i+1] == ':':
			out.WriteString("::")
			i += 2
		case ch == ':' && i+1 < n && isIdentStart(query[i+1]):
			j := i + 1
			for j < n && isIdentPart(query[j]) {
				j++
			}
			name := query[i+1 : j]
			pos, ok := positions[name]
			if !ok {
				value, found := params[name]
				if !found {
					return "", nil, fmt.Errorf("%w: %s", ErrMissingParam, name)
				}
				args = append(args, value)
				pos = len(args)
				positions[name] = pos
			}
			fmt.Fprintf(&out, "$%d", pos)
			i = j
		default:
			out.WriteByte(ch)
			i++
		}
	}
	return out.String(), args, nil
}

// skipQuoted returns the index just past a quoted run starting at i, doubled quotes included
func skipQuoted(s string, i int, quote byte) int {
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

// skipDollarQuoted returns the index past a $tag$...$tag$ body, or i+1 for a plain $
func skipDollarQuoted(s string, i int) int {
	j := i + 1
	for j < len(s) && isIdentPart(s[j]) {
		j++
	}
	if j >= len(s) || s[j] != '$' {
		return i + 1
	}
	tag := s[i : j+1]
	if len(tag) > 2 && tag[1] >= '0' && tag[1] <= '9' {
		// positional placeholder such as $1
		return i + 1
	}
	end := strings.Index(s[j+1:], tag)
	if end < 0 {
		return len(s)
	}
	return j + 1 + end + len(tag)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
