package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstKeyword(t *testing.T) {
	tests := []struct {
		sql     string
		want    string
		analyse bool
	}{
		{sql: "select 1", want: "SELECT", analyse: true},
		{sql: "  -- leading\n  /* block\n comment */ UPDATE film SET title = 'x'", want: "UPDATE", analyse: true},
		{sql: "WITH x AS (SELECT 1) SELECT * FROM x", want: "WITH", analyse: true},
		{sql: "insert into film (title) values ('x')", want: "INSERT", analyse: true},
		{sql: "DELETE FROM film", want: "DELETE"},
		{sql: "(SELECT 1)", want: ""},
		{sql: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			assert.Equal(t, tt.want, FirstKeyword(tt.sql))
			assert.Equal(t, tt.analyse, ShouldAnalyse(tt.sql))
		})
	}
}

func TestMainKeyword(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{sql: "SELECT 1", want: "SELECT"},
		{sql: "WITH t AS (SELECT title FROM public.film) SELECT title FROM t", want: "SELECT"},
		{sql: "with recursive a(n) as (select 1), b as materialized (select 2) select * from a, b", want: "SELECT"},
		{sql: "WITH moved AS (SELECT 1) INSERT INTO film (title) SELECT 'x'", want: "INSERT"},
		{sql: "-- note\nWITH t AS (SELECT 1) UPDATE film SET title = 'x'", want: "UPDATE"},
		{sql: "WITH t AS (SELECT 1", want: ""},
		{sql: "DELETE FROM film", want: "DELETE"},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			assert.Equal(t, tt.want, MainKeyword(tt.sql))
		})
	}
}

func TestHydrate(t *testing.T) {
	defaults := Defaults{Limit: 25, Offset: 5}

	tests := []struct {
		name   string
		sql    string
		params map[string]any
		want   map[string]any
	}{
		{
			name: "fills limit and offset",
			sql:  "SELECT title FROM film LIMIT :limit OFFSET :offset",
			want: map[string]any{"limit": 25, "offset": 5},
		},
		{
			name:   "keeps supplied values",
			sql:    "SELECT title FROM film LIMIT :limit OFFSET :offset",
			params: map[string]any{"limit": 3},
			want:   map[string]any{"limit": 3, "offset": 5},
		},
		{
			name: "only referenced binds",
			sql:  "SELECT title FROM film LIMIT :limit",
			want: map[string]any{"limit": 25},
		},
		{
			name: "ignores binds in literals",
			sql:  "SELECT ':limit' AS label FROM film",
			want: map[string]any{},
		},
		{
			name: "select behind a cte",
			sql:  "WITH t AS (SELECT title FROM public.film) SELECT title FROM t LIMIT :limit",
			want: map[string]any{"limit": 25},
		},
		{
			name: "insert behind a cte",
			sql:  "WITH t AS (SELECT 1) INSERT INTO film (title) SELECT 'x' LIMIT :limit",
			want: map[string]any{},
		},
		{
			name:   "not a select",
			sql:    "UPDATE film SET title = :title LIMIT :limit",
			params: map[string]any{"title": "x"},
			want:   map[string]any{"title": "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Hydrate(tt.sql, tt.params, defaults))
		})
	}
}

func TestHydrate_DoesNotMutateInput(t *testing.T) {
	params := map[string]any{"title": "x"}
	_ = Hydrate("SELECT * FROM film WHERE title = :title LIMIT :limit", params, DefaultDefaults())
	assert.Equal(t, map[string]any{"title": "x"}, params)
}

func TestNormalizeLimitLiteral(t *testing.T) {
	d := DefaultDefaults()
	assert.Equal(t, "SELECT * FROM film LIMIT 10", NormalizeLimitLiteral("SELECT * FROM film LIMIT :limit", nil, d))
	assert.Equal(t, "SELECT * FROM film LIMIT 10", NormalizeLimitLiteral("SELECT * FROM film limit   :limit", nil, d))
	assert.Equal(t, "SELECT * FROM film LIMIT :limit", NormalizeLimitLiteral("SELECT * FROM film LIMIT :limit", map[string]any{"limit": 3}, d))
	assert.Equal(t, "SELECT * FROM film LIMIT :limits", NormalizeLimitLiteral("SELECT * FROM film LIMIT :limits", nil, d))
	assert.Equal(t, "WITH t AS (SELECT title FROM film) SELECT title FROM t LIMIT 10",
		NormalizeLimitLiteral("WITH t AS (SELECT title FROM film) SELECT title FROM t LIMIT :limit", nil, d))
}
