package resolver

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemaguard/internal/catalog"
	"github.com/tordrt/schemaguard/internal/schema"
)

func col(name, typ string) schema.Column {
	return schema.Column{Name: name, Type: typ, Category: schema.CategoryOf(typ)}
}

func card(schemaName, table string, cols ...schema.Column) *schema.SchemaCard {
	c := &schema.SchemaCard{Schema: schemaName, Table: table, Columns: cols}
	c.Aliases = catalog.DeriveAliases(c)
	return c
}

func storeCards() []*schema.SchemaCard {
	return []*schema.SchemaCard{
		card("public", "customer",
			col("customer_id", "integer"),
			col("email", "text"),
			col("password_hash", "text"),
			col("last_login", "timestamptz")),
		card("public", "brand",
			col("brand_id", "integer"),
			col("brand_name", "varchar(120)"),
			col("slug", "text")),
		card("public", "product",
			col("product_id", "integer"),
			col("sku", "text"),
			col("price", "numeric(10,2)")),
	}
}

func TestResolve_CountUsersFindsCustomer(t *testing.T) {
	res := Resolve("how many users", storeCards())

	assert.Equal(t, IntentCount, res.Intent)
	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, "public.customer", res.Candidates[0].Key)
	assert.Greater(t, res.Candidates[0].Score, 0.0)
	assert.Empty(t, res.ColumnHints)
}

func TestResolve_ListBrandNames(t *testing.T) {
	res := Resolve("list top 5 brand names", storeCards())

	assert.Equal(t, IntentList, res.Intent)
	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, "public.brand", res.Candidates[0].Key)
	assert.Equal(t, []string{"slug"}, res.ColumnHints)
}

func TestResolve_BrandOutranksReferencingTable(t *testing.T) {
	brand := card("public", "brand", col("id", "integer"), col("name", "text"), col("slug", "text"))
	style := card("public", "style", col("id", "integer"), col("brand_id", "integer"), col("name", "text"))
	style.ForeignKeys = []schema.ForeignKey{{Column: "brand_id", RefSchema: "public", RefTable: "brand", RefColumn: "id"}}
	style.Aliases = catalog.DeriveAliases(style)

	res := Resolve("list brands", []*schema.SchemaCard{style, brand})

	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, "public.brand", res.Candidates[0].Key)
	for _, c := range res.Candidates[1:] {
		assert.Less(t, c.Score, res.Candidates[0].Score)
	}

	d := Decide(res)
	assert.Equal(t, ActionRun, d.Action)
	assert.Equal(t, "name", d.Column)
}

func TestResolve_Deterministic(t *testing.T) {
	cards := storeCards()
	first := Resolve("show me every product and brand", cards)
	for i := 0; i < 20; i++ {
		reversed := make([]*schema.SchemaCard, len(cards))
		for j, c := range cards {
			reversed[len(cards)-1-j] = c
		}
		if diff := cmp.Diff(first, Resolve("show me every product and brand", reversed)); diff != "" {
			t.Fatalf("resolution changed with card order (-first +got):\n%s", diff)
		}
	}
}

func TestResolve_TiesBreakByKey(t *testing.T) {
	cards := []*schema.SchemaCard{
		{Schema: "sales", Table: "order"},
		{Schema: "archive", Table: "order"},
	}
	res := Resolve("count orders", cards)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, res.Candidates[0].Score, res.Candidates[1].Score)
	assert.Equal(t, "archive.order", res.Candidates[0].Key)
}

func TestResolve_TopThreeRounded(t *testing.T) {
	var cards []*schema.SchemaCard
	for _, name := range []string{"film", "film_actor", "film_category", "film_text"} {
		cards = append(cards, &schema.SchemaCard{Schema: "public", Table: name})
	}
	res := Resolve("count films", cards)
	require.Len(t, res.Candidates, 3)
	for _, c := range res.Candidates {
		assert.Equal(t, c.Score, float64(int64(c.Score*10000+0.5))/10000)
	}
	assert.Equal(t, "public.film", res.Candidates[0].Key)
}

func TestResolve_NoMatch(t *testing.T) {
	res := Resolve("what is the weather", storeCards())
	assert.Equal(t, IntentUnknown, res.Intent)
	assert.Empty(t, res.Candidates)
	assert.NotNil(t, res.Candidates)
}

func TestDetectIntent(t *testing.T) {
	tests := []struct {
		utterance string
		want      Intent
	}{
		{"How many films are there", IntentCount},
		{"count the rentals", IntentCount},
		{"show me how many actors", IntentCount},
		{"give me all stores", IntentList},
		{"LIST brands", IntentList},
		{"accounting report", IntentUnknown},
		{"", IntentUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectIntent(tt.utterance), tt.utterance)
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"list", "category", "for", "bus", "product"}, Tokenize("List categories for buses, Products!"))
}

func TestTrigramOverlap(t *testing.T) {
	assert.Equal(t, 1.0, trigramOverlap("brand", "listbrandname"))
	assert.Equal(t, 0.0, trigramOverlap("brand", ""))
	// names shorter than three characters use the whole name
	assert.Equal(t, 1.0, trigramOverlap("id", "userid"))
}

func TestColumnHints(t *testing.T) {
	c := &schema.SchemaCard{Columns: []schema.Column{
		col("id", "integer"),
		col("title", "text"),
		col("name", "varchar(20)"),
		col("email", "integer"),
	}}
	assert.Equal(t, []string{"name", "title"}, ColumnHints(c))

	c = &schema.SchemaCard{Columns: []schema.Column{col("id", "integer"), col("code", "char(3)"), col("label", "text")}}
	assert.Equal(t, []string{"code"}, ColumnHints(c))

	c = &schema.SchemaCard{Columns: []schema.Column{col("id", "integer")}}
	assert.Empty(t, ColumnHints(c))
}
