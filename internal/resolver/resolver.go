package resolver

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/tordrt/schemaguard/internal/catalog"
	"github.com/tordrt/schemaguard/internal/schema"
)

// Intent is the kind of request an utterance expresses
type Intent string

const (
	IntentCount   Intent = "count"
	IntentList    Intent = "list"
	IntentUnknown Intent = "unknown"
)

const (
	aliasWeight  = 0.6
	tableWeight  = 0.3
	columnWeight = 0.1

	aliasCap  = 3.0
	tableCap  = 1.5
	columnCap = 2.0

	topK = 3
)

var (
	countRe = regexp.MustCompile(`(?i)\b(count|how\s+many)\b`)
	listRe  = regexp.MustCompile(`(?i)\b(list|show|give\s+me)\b`)
	tokenRe = regexp.MustCompile(`[a-z0-9_]+`)
)

var preferredListColumns = []string{"username", "email", "name", "slug", "title"}

// Candidate is a table ranked against an utterance
type Candidate struct {
	Key    string  `json:"key"`
	Schema string  `json:"schema"`
	Table  string  `json:"table"`
	Score  float64 `json:"score"`
}

// Result is the resolver's answer for one utterance
type Result struct {
	Intent      Intent      `json:"intent"`
	Candidates  []Candidate `json:"candidates"`
	ColumnHints []string    `json:"column_hints"`
}

// Resolve ranks cards against an utterance. The same inputs always give the same result.
func Resolve(utterance string, cards []*schema.SchemaCard) Result {
	res := Result{
		Intent:      DetectIntent(utterance),
		Candidates:  []Candidate{},
		ColumnHints: []string{},
	}

	tokens := Tokenize(utterance)
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}
	spaced := strings.Join(tokens, " ")
	joined := strings.Join(tokens, "")

	byKey := make(map[string]*schema.SchemaCard, len(cards))
	for _, card := range cards {
		if card == nil || card.Schema == "" || card.Table == "" {
			continue
		}
		score := aliasWeight*scoreAliases(card.Aliases, tokenSet, spaced) +
			tableWeight*scoreTable(card.Table, tokenSet, joined) +
			columnWeight*scoreColumns(card.Columns, tokenSet)
		if score <= 0 {
			continue
		}
		byKey[card.Key()] = card
		res.Candidates = append(res.Candidates, Candidate{
			Key:    card.Key(),
			Schema: card.Schema,
			Table:  card.Table,
			Score:  math.Round(score*10000) / 10000,
		})
	}

	sort.Slice(res.Candidates, func(i, j int) bool {
		a, b := res.Candidates[i], res.Candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Key < b.Key
	})
	if len(res.Candidates) > topK {
		res.Candidates = res.Candidates[:topK]
	}

	if res.Intent == IntentList && len(res.Candidates) > 0 {
		res.ColumnHints = ColumnHints(byKey[res.Candidates[0].Key])
	}
	return res
}

// DetectIntent checks for a count phrase first, then a list phrase
func DetectIntent(utterance string) Intent {
	switch {
	case countRe.MatchString(utterance):
		return IntentCount
	case listRe.MatchString(utterance):
		return IntentList
	}
	return IntentUnknown
}

// Tokenize lower-cases the utterance, splits it on non-word characters and singularizes each token
func Tokenize(utterance string) []string {
	raw := tokenRe.FindAllString(strings.ToLower(utterance), -1)
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		tokens = append(tokens, catalog.Singularize(t))
	}
	return tokens
}

func scoreAliases(aliases []string, tokens map[string]bool, spaced string) float64 {
	score := 0.0
	for _, alias := range aliases {
		alias = strings.ToLower(strings.TrimSpace(alias))
		if alias == "" {
			continue
		}
		all := true
		for _, w := range strings.Fields(alias) {
			if !tokens[w] {
				all = false
				break
			}
		}
		switch {
		case all:
			score += 1.0
		case strings.Contains(spaced, alias):
			score += 0.5
		}
	}
	return math.Min(score, aliasCap)
}

func scoreTable(table string, tokens map[string]bool, joined string) float64 {
	name := strings.ToLower(table)
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	if len(words) == 0 {
		return 0
	}
	hits := 0
	for _, w := range words {
		if tokens[w] {
			hits++
		}
	}
	return math.Min(float64(hits)/float64(len(words))+trigramOverlap(name, joined), tableCap)
}

// trigramOverlap is the share of the name's distinct 3-grams found in the concatenated tokens
func trigramOverlap(name, joined string) float64 {
	if name == "" || joined == "" {
		return 0
	}
	grams := make(map[string]bool)
	for i := 0; i < max(1, len(name)-2); i++ {
		grams[name[i:min(i+3, len(name))]] = true
	}
	hits := 0
	for g := range grams {
		if strings.Contains(joined, g) {
			hits++
		}
	}
	return float64(hits) / float64(len(grams))
}

func scoreColumns(columns []schema.Column, tokens map[string]bool) float64 {
	score := 0.0
	for _, col := range columns {
		if name := strings.ToLower(col.Name); name != "" && tokens[name] {
			score += 0.5
		}
	}
	return math.Min(score, columnCap)
}

// ColumnHints picks the text-like columns worth listing: the preferred names in priority order,
// or else the first text-like column
func ColumnHints(card *schema.SchemaCard) []string {
	hints := []string{}
	if card == nil {
		return hints
	}
	byName := make(map[string]schema.Column, len(card.Columns))
	for _, col := range card.Columns {
		byName[strings.ToLower(col.Name)] = col
	}
	for _, name := range preferredListColumns {
		if col, ok := byName[name]; ok && col.Category.IsText() {
			hints = append(hints, col.Name)
		}
	}
	if len(hints) > 0 {
		return hints
	}
	for _, col := range card.Columns {
		if col.Category.IsText() {
			return append(hints, col.Name)
		}
	}
	return hints
}
