package catalog

import (
	"sort"
	"strings"

	"github.com/tordrt/schemaguard/internal/schema"
)

// synonyms seeds aliases for tables whose name (or one of its underscore-separated words) matches a key.
// Keys are singular.
var synonyms = map[string][]string{
	"customer":    {"customer", "client", "account"},
	"user":        {"user", "account", "member"},
	"account":     {"account", "user"},
	"member":      {"member", "user"},
	"employee":    {"employee", "staff", "worker"},
	"staff":       {"staff", "employee"},
	"product":     {"product", "item"},
	"item":        {"item", "product"},
	"order":       {"order", "purchase"},
	"invoice":     {"invoice", "bill"},
	"payment":     {"payment", "transaction"},
	"transaction": {"transaction", "payment"},
	"category":    {"category", "group"},
	"brand":       {"brand", "manufacturer"},
	"vendor":      {"vendor", "supplier"},
	"supplier":    {"supplier", "vendor"},
	"film":        {"film", "movie"},
	"movie":       {"movie", "film"},
	"address":     {"address", "location"},
	"store":       {"store", "shop"},
	"article":     {"article", "post"},
	"post":        {"post", "article"},
	"comment":     {"comment", "reply"},
	"message":     {"message", "note"},
	"event":       {"event", "activity"},
}

// Column signatures implying a role. A rule fires when at least min of its columns are present;
// foreign key columns only point at the role and never count.
var roleRules = []struct {
	columns []string
	min     int
	aliases []string
}{
	{columns: []string{"email", "username", "password_hash", "last_login"}, min: 2, aliases: []string{"user", "account", "profile"}},
	{columns: []string{"sku", "upc"}, min: 1, aliases: []string{"product", "item"}},
	{columns: []string{"brand_id", "brand_name", "slug"}, min: 2, aliases: []string{"brand", "profile"}},
}

// Singularize applies the naive plural rules shared by alias derivation and utterance tokenization.
// Words of three characters or fewer are returned unchanged.
func Singularize(word string) string {
	if len(word) <= 3 {
		return word
	}
	switch {
	case strings.HasSuffix(word, "ies"):
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(word, "ses"):
		return word[:len(word)-2]
	case strings.HasSuffix(word, "s"):
		return word[:len(word)-1]
	}
	return word
}

// DeriveAliases computes ranking aliases for a card.
// The result is lower-cased, whitespace-normalized, deduplicated and sorted, and never holds the table's own name.
func DeriveAliases(card *schema.SchemaCard) []string {
	table := strings.ToLower(card.Table)
	seen := make(map[string]bool)
	add := func(alias string) {
		alias = strings.Join(strings.Fields(strings.ToLower(alias)), " ")
		if alias == "" || alias == table {
			return
		}
		seen[alias] = true
	}

	words := strings.Split(table, "_")
	singularWords := make([]string, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		singularWords = append(singularWords, Singularize(w))
	}

	for _, w := range singularWords {
		for _, alias := range synonyms[w] {
			add(alias)
		}
	}

	add(Singularize(table))
	if len(singularWords) > 1 {
		add(strings.Join(singularWords, " "))
	}

	references := make(map[string]bool, len(card.ForeignKeys))
	for _, fk := range card.ForeignKeys {
		references[strings.ToLower(fk.Column)] = true
	}
	columns := make(map[string]bool, len(card.Columns))
	for _, col := range card.Columns {
		if name := strings.ToLower(col.Name); !references[name] {
			columns[name] = true
		}
	}
	for _, rule := range roleRules {
		hits := 0
		for _, c := range rule.columns {
			if columns[c] {
				hits++
			}
		}
		if hits >= rule.min {
			for _, alias := range rule.aliases {
				add(alias)
			}
		}
	}
	if strings.Contains(table, "brand") {
		add("brand")
		add("profile")
	}

	aliases := make([]string, 0, len(seen))
	for alias := range seen {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}
