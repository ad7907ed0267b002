package schema

// SchemaCard is the cached structural description of one table
type SchemaCard struct {
	Schema      string              `json:"schema"`
	Table       string              `json:"table"`
	Comment     string              `json:"comment,omitempty"`
	Columns     []Column            `json:"columns"`
	PrimaryKey  []string            `json:"primary_key"`
	ForeignKeys []ForeignKey        `json:"foreign_keys"`
	Indexes     []Index             `json:"indexes"`
	RowEstimate *int64              `json:"row_estimate"`
	Examples    map[string][]string `json:"examples"`
	Aliases     []string            `json:"aliases"`
}

// Key returns the schema.table key of the card
func (c *SchemaCard) Key() string {
	return Key(c.Schema, c.Table)
}

// Column looks up a column by exact name
func (c *SchemaCard) Column(name string) (Column, bool) {
	for _, col := range c.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// Column represents a table column
type Column struct {
	Name     string       `json:"name"`
	Type     string       `json:"type"`
	Category TypeCategory `json:"category"`
	Nullable bool         `json:"nullable"`
	Default  *string      `json:"default,omitempty"`
	Comment  string       `json:"comment,omitempty"`
}

// ForeignKey represents a foreign key relationship
type ForeignKey struct {
	Column    string `json:"column"`
	RefSchema string `json:"ref_schema"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
}

// Index represents a database index
type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// TableRef names a table and the aliases the catalog derived for it
type TableRef struct {
	Schema  string   `json:"schema"`
	Table   string   `json:"table"`
	Aliases []string `json:"aliases"`
}

// SchemaIndex is the persisted list of cards plus the fingerprint they were built from
type SchemaIndex struct {
	Fingerprint string     `json:"fingerprint"`
	Tables      []TableRef `json:"tables"`
}

// SlimIndex is a reduced projection of the cards used for quick lookups
type SlimIndex struct {
	Fingerprint string      `json:"fingerprint"`
	Tables      []SlimTable `json:"tables"`
}

// SlimTable is the slim projection of a single card
type SlimTable struct {
	Key     string       `json:"key"`
	Schema  string       `json:"schema"`
	Table   string       `json:"table"`
	Aliases []string     `json:"aliases"`
	Columns []SlimColumn `json:"columns"`
}

// SlimColumn keeps only the column name and declared type
type SlimColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Slim projects a card onto its slim form
func Slim(card *SchemaCard) SlimTable {
	cols := make([]SlimColumn, 0, len(card.Columns))
	for _, col := range card.Columns {
		cols = append(cols, SlimColumn{Name: col.Name, Type: col.Type})
	}
	return SlimTable{
		Key:     card.Key(),
		Schema:  card.Schema,
		Table:   card.Table,
		Aliases: append([]string{}, card.Aliases...),
		Columns: cols,
	}
}

// Key joins a schema and table name into a relation key
func Key(schemaName, table string) string {
	return schemaName + "." + table
}
