package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindNamed(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		params    map[string]any
		wantSQL   string
		wantArgs  []any
		expectErr bool
	}{
		{
			name:     "no binds",
			query:    "SELECT 1",
			wantSQL:  "SELECT 1",
			wantArgs: nil,
		},
		{
			name:     "single bind",
			query:    "SELECT id FROM users LIMIT :limit",
			params:   map[string]any{"limit": 10},
			wantSQL:  "SELECT id FROM users LIMIT $1",
			wantArgs: []any{10},
		},
		{
			name:     "repeated bind reuses position",
			query:    "SELECT id FROM users WHERE a = :v OR b = :v LIMIT :limit",
			params:   map[string]any{"v": "x", "limit": 5},
			wantSQL:  "SELECT id FROM users WHERE a = $1 OR b = $1 LIMIT $2",
			wantArgs: []any{"x", 5},
		},
		{
			name:     "casts are not binds",
			query:    "SELECT created_at::date FROM users WHERE id = :id",
			params:   map[string]any{"id": 1},
			wantSQL:  "SELECT created_at::date FROM users WHERE id = $1",
			wantArgs: []any{1},
		},
		{
			name:    "string literals are untouched",
			query:   "SELECT ':not_a_bind', 'it''s :x' FROM users",
			wantSQL: "SELECT ':not_a_bind', 'it''s :x' FROM users",
		},
		{
			name:    "quoted identifiers are untouched",
			query:   `SELECT ":odd" FROM users`,
			wantSQL: `SELECT ":odd" FROM users`,
		},
		{
			name:    "comments are untouched",
			query:   "-- filter :x\nSELECT 1 /* :y */",
			wantSQL: "-- filter :x\nSELECT 1 /* :y */",
		},
		{
			name:    "dollar quoted body is untouched",
			query:   "SELECT $body$ :x $body$",
			wantSQL: "SELECT $body$ :x $body$",
		},
		{
			name:     "positional placeholders pass through",
			query:    "SELECT $1, $2",
			wantSQL:  "SELECT $1, $2",
			wantArgs: nil,
		},
		{
			name:      "missing bind",
			query:     "SELECT * FROM users WHERE id = :id",
			params:    map[string]any{},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := BindNamed(tt.query, tt.params)
			if tt.expectErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMissingParam)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
