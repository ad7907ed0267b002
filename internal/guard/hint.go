package guard

import (
	"fmt"
	"sort"
	"strings"
)

const (
	summaryTables  = 18
	summaryColumns = 12
	existingShown  = 10
	maxSuggestions = 3
	matchCutoff    = 0.6
)

// SchemaSummary renders up to 18 tables as schema.table(col, ...) lines
func SchemaSummary(lookup Lookup) string {
	if lookup == nil {
		return ""
	}
	var b strings.Builder
	keys := lookup.Keys()
	for i, key := range keys {
		if i == summaryTables {
			fmt.Fprintf(&b, "... and %d more tables\n", len(keys)-summaryTables)
			break
		}
		cols, _ := lookup.TableColumns(key)
		more := ""
		if len(cols) > summaryColumns {
			cols = cols[:summaryColumns]
			more = ", ..."
		}
		fmt.Fprintf(&b, "%s(%s%s)\n", key, strings.Join(cols, ", "), more)
	}
	return strings.TrimSpace(b.String())
}

// FormatMessage summarizes a failed result in one line
func FormatMessage(res Result) string {
	var parts []string
	if len(res.UnknownRelations) > 0 {
		parts = append(parts, "Unknown tables: "+strings.Join(res.UnknownRelations, ", "))
	}
	if len(res.UnknownColumns) > 0 {
		rels := make([]string, 0, len(res.UnknownColumns))
		for rel := range res.UnknownColumns {
			rels = append(rels, rel)
		}
		sort.Strings(rels)
		bits := make([]string, 0, len(rels))
		for _, rel := range rels {
			bits = append(bits, rel+": "+strings.Join(res.UnknownColumns[rel], ", "))
		}
		parts = append(parts, "Unknown columns → "+strings.Join(bits, "; "))
	}
	if len(parts) == 0 {
		if res.ErrorText != "" {
			return res.ErrorText
		}
		return "SQL references unknown identifiers"
	}
	return strings.Join(parts, "; ")
}

// BuildHint lists the schema overview and, for each unknown identifier, the closest known ones
func BuildHint(res Result, lookup Lookup) string {
	lines := []string{
		"Use only tables and columns that exist in this database.",
		"Schema overview:",
		SchemaSummary(lookup),
	}

	if len(res.UnknownRelations) == 0 && len(res.UnknownColumns) == 0 && res.ErrorText != "" {
		lines = append(lines, "- Planner error: "+res.ErrorText)
	}

	var keys []string
	if lookup != nil {
		keys = lookup.Keys()
	}
	for _, rel := range res.UnknownRelations {
		lines = append(lines, fmt.Sprintf("- Unknown table `%s` (did you mean: %s)", rel, suggestionText(rel, keys)))
	}

	rels := make([]string, 0, len(res.UnknownColumns))
	for rel := range res.UnknownColumns {
		rels = append(rels, rel)
	}
	sort.Strings(rels)
	for _, rel := range rels {
		var existing []string
		if lookup != nil {
			existing, _ = lookup.TableColumns(rel)
		}
		allowed := append([]string{}, existing...)
		sort.Strings(allowed)
		shown := allowed
		if len(shown) > existingShown {
			shown = shown[:existingShown]
		}
		for _, col := range res.UnknownColumns[rel] {
			lines = append(lines, fmt.Sprintf("- Unknown column `%s` on `%s` (existing: %s; suggestions: %s)",
				col, rel, strings.Join(shown, ", "), suggestionText(col, allowed)))
		}
	}
	return strings.Join(lines, "\n")
}

func suggestionText(word string, candidates []string) string {
	matches := closeMatches(word, candidates)
	if len(matches) == 0 {
		return "no close matches"
	}
	return strings.Join(matches, ", ")
}

// closeMatches returns up to three candidates whose edit similarity to word is at least 0.6, best first
func closeMatches(word string, candidates []string) []string {
	type scored struct {
		name  string
		ratio float64
	}
	var hits []scored
	for _, c := range candidates {
		if r := similarity(word, c); r >= matchCutoff {
			hits = append(hits, scored{name: c, ratio: r})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].ratio != hits[j].ratio {
			return hits[i].ratio > hits[j].ratio
		}
		return hits[i].name < hits[j].name
	})
	if len(hits) > maxSuggestions {
		hits = hits[:maxSuggestions]
	}
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.name)
	}
	return out
}

func similarity(a, b string) float64 {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
