package resolver

import "strings"

// Fact is a question about the database itself rather than its rows
type Fact string

const (
	FactIdentity   Fact = "db_identity"
	FactTableCount Fact = "table_count"
)

var identityPhrases = []string{"what database", "which database", "what db", "which db"}

var tableCountPhrases = []string{"how many tables", "tables does it have", "table count", "number of tables"}

// DetectFacts returns the facts an utterance asks for, identity first.
// "connected to" counts as an identity question only when the utterance also mentions a database.
func DetectFacts(utterance string) []Fact {
	text := strings.Join(strings.Fields(strings.ToLower(utterance)), " ")

	var facts []Fact
	if containsAny(text, identityPhrases) || (strings.Contains(text, "connected to") && strings.Contains(text, "database")) {
		facts = append(facts, FactIdentity)
	}
	if containsAny(text, tableCountPhrases) {
		facts = append(facts, FactTableCount)
	}
	return facts
}

// DecideFacts returns the facts decision for an utterance, and false when it asks for none
func DecideFacts(utterance string) (Decision, []Fact, bool) {
	facts := DetectFacts(utterance)
	if len(facts) == 0 {
		return Decision{}, nil, false
	}
	return Decision{Action: ActionFacts, Intent: DetectIntent(utterance)}, facts, true
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
