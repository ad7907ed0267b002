package guard

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOutput(t *testing.T) {
	tests := []struct {
		expr      string
		qualifier string
		column    string
	}{
		{expr: "title", column: "title"},
		{expr: "f.title", qualifier: "f", column: "title"},
		{expr: "public.film.title", qualifier: "public.film", column: "title"},
		{expr: `"Orders"."Total"`, qualifier: "Orders", column: "Total"},
		{expr: "film.rating::text", qualifier: "film", column: "rating"},
		{expr: "(payload -> 'a'::text) -> b", column: "b"},
		{expr: "count(*)"},
		{expr: "(f.rental_rate * 2)"},
		{expr: "'G'::mpaa_rating"},
		{expr: "NULL::integer"},
		{expr: "true"},
		{expr: "$1"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			q, c := normalizeOutput(tt.expr)
			assert.Equal(t, tt.qualifier, q)
			assert.Equal(t, tt.column, c)
		})
	}
}

func TestNormalizeRelation(t *testing.T) {
	assert.Equal(t, "public.film", normalizeRelation("film"))
	assert.Equal(t, "sales.orders", normalizeRelation("Sales.Orders"))
	assert.Equal(t, "Sales.Orders", normalizeRelation(`"Sales"."Orders"`))
	assert.Equal(t, "sales.orders", normalizeRelation("db.sales.orders"))
	assert.Equal(t, "public.film", normalizeRelation("film f,"))
	assert.Equal(t, "", normalizeRelation("  "))
}

func TestPlanIdentifiers(t *testing.T) {
	plan := `[{"Plan": {
		"Node Type": "Hash Join",
		"Output": ["r.total", "c.email"],
		"Plans": [
			{
				"Node Type": "CTE Scan", "CTE Name": "recent", "Alias": "r",
				"Output": ["r.customer_id", "r.total"]
			},
			{
				"Node Type": "Hash",
				"Output": ["c.email", "c.customer_id"],
				"Plans": [
					{"Node Type": "Seq Scan", "Relation Name": "customer", "Schema": "public", "Alias": "c",
					 "Output": ["c.email", "c.customer_id", "c.ctid"]}
				]
			},
			{
				"Node Type": "Aggregate", "Output": ["payment.customer_id", "sum(payment.amount)"],
				"Plans": [
					{"Node Type": "Seq Scan", "Relation Name": "payment", "Schema": "sales", "Alias": "payment",
					 "Output": ["customer_id", "amount"]}
				]
			}
		]
	}}]`

	got, err := planIdentifiers([]byte(plan))
	require.NoError(t, err)

	wantRelations := map[string]bool{"public.customer": true, "sales.payment": true}
	wantColumns := map[string]map[string]bool{
		"public.customer": {"email": true, "customer_id": true},
		"sales.payment":   {"customer_id": true, "amount": true},
	}
	if diff := cmp.Diff(wantRelations, got.Relations); diff != "" {
		t.Errorf("relations mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantColumns, got.Columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanIdentifiers_ModifyTable(t *testing.T) {
	plan := `[{"Plan": {
		"Node Type": "ModifyTable", "Operation": "Update", "Relation Name": "film", "Schema": "public", "Alias": "film",
		"Plans": [
			{"Node Type": "Seq Scan", "Relation Name": "film", "Schema": "public", "Alias": "film",
			 "Output": ["'x'::text", "ctid"]}
		]
	}}]`

	got, err := planIdentifiers([]byte(plan))
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"public.film": true}, got.Relations)
	assert.Empty(t, got.Columns)
}

func TestParsePlan(t *testing.T) {
	root, err := parsePlan([]byte(`{"Plan": {"Node Type": "Result"}}`))
	require.NoError(t, err)
	assert.Equal(t, "Result", root.NodeType)

	_, err = parsePlan([]byte(`[]`))
	assert.Error(t, err)

	_, err = parsePlan([]byte(`<html>`))
	assert.Error(t, err)
}
