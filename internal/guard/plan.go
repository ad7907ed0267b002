package guard

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// planNode is the subset of an EXPLAIN (VERBOSE, FORMAT JSON) node the walk reads
type planNode struct {
	NodeType     string     `json:"Node Type"`
	RelationName string     `json:"Relation Name"`
	Schema       string     `json:"Schema"`
	Alias        string     `json:"Alias"`
	CTEName      string     `json:"CTE Name"`
	Output       []string   `json:"Output"`
	Plans        []planNode `json:"Plans"`
}

// parsePlan decodes the planner's JSON document and returns its root node
func parsePlan(raw []byte) (planNode, error) {
	var doc []struct {
		Plan planNode `json:"Plan"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		// some drivers hand back a single object instead of the array
		var single struct {
			Plan planNode `json:"Plan"`
		}
		if err2 := json.Unmarshal(raw, &single); err2 != nil {
			return planNode{}, fmt.Errorf("failed to decode plan: %w", err)
		}
		return single.Plan, nil
	}
	if len(doc) == 0 {
		return planNode{}, errors.New("empty plan")
	}
	return doc[0].Plan, nil
}

func (n planNode) relationKey() string {
	if n.RelationName == "" {
		return ""
	}
	schemaName := n.Schema
	if schemaName == "" {
		schemaName = defaultSchema
	}
	return schemaName + "." + n.RelationName
}

// aliasTarget records what a range-table alias refers to
type aliasTarget struct {
	relation  string
	derived   bool // CTE, subquery, function or values scan
	ambiguous bool // the alias is reused for different sources
}

// collectAliases maps every alias in the tree to its source
func collectAliases(node planNode) map[string]aliasTarget {
	out := make(map[string]aliasTarget)
	if node.Alias != "" {
		if rel := node.relationKey(); rel != "" {
			out[node.Alias] = aliasTarget{relation: rel}
		} else {
			out[node.Alias] = aliasTarget{derived: true}
		}
	}
	for _, child := range node.Plans {
		for alias, t := range collectAliases(child) {
			if prev, ok := out[alias]; ok && prev != t {
				out[alias] = aliasTarget{ambiguous: true}
				continue
			}
			out[alias] = t
		}
	}
	return out
}

// walkPlan returns the relations and columns the planner touched.
// Qualified outputs go to the relation owning the qualifier, outputs of derived sources
// are skipped, unqualified outputs go to nearest, the closest enclosing relation.
func walkPlan(node planNode, nearest string, aliases map[string]aliasTarget) IdentifierSet {
	set := NewIdentifierSet()

	if rel := node.relationKey(); rel != "" {
		set.addRelation(rel)
		nearest = rel
	} else if node.Alias != "" || node.CTEName != "" {
		nearest = ""
	}

	for _, expr := range node.Output {
		qualifier, column := normalizeOutput(expr)
		if column == "" || systemColumns[column] {
			continue
		}
		target := nearest
		if qualifier != "" {
			t, ok := aliases[qualifier]
			switch {
			case ok && t.derived:
				continue
			case ok && !t.ambiguous:
				target = t.relation
			case !ok && strings.Contains(qualifier, "."):
				target = normalizeRelation(qualifier)
			}
		}
		set.addColumn(target, column)
	}

	for _, child := range node.Plans {
		set.Merge(walkPlan(child, nearest, aliases))
	}
	return set
}

// planIdentifiers decodes a plan and walks it from the root
func planIdentifiers(raw []byte) (IdentifierSet, error) {
	root, err := parsePlan(raw)
	if err != nil {
		return IdentifierSet{}, err
	}
	return walkPlan(root, "", collectAliases(root)), nil
}
