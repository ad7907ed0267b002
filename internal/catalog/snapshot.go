package catalog

import (
	"sort"
	"time"

	"github.com/tordrt/schemaguard/internal/schema"
)

// Snapshot is an immutable view of the catalog. It is shared read-only once published.
type Snapshot struct {
	Fingerprint string
	Schemas     []string
	Cards       []*schema.SchemaCard
	LoadedAt    time.Time
	FromDisk    bool

	byKey   map[string]*schema.SchemaCard
	columns map[string]map[string]bool
}

// NewSnapshot indexes cards by key. Cards are ordered by key.
func NewSnapshot(cards []*schema.SchemaCard, fingerprint string, schemas []string) *Snapshot {
	sorted := make([]*schema.SchemaCard, len(cards))
	copy(sorted, cards)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Key() < sorted[j].Key()
	})

	s := &Snapshot{
		Fingerprint: fingerprint,
		Schemas:     append([]string{}, schemas...),
		Cards:       sorted,
		LoadedAt:    time.Now(),
		byKey:       make(map[string]*schema.SchemaCard, len(sorted)),
		columns:     make(map[string]map[string]bool, len(sorted)),
	}
	for _, card := range sorted {
		key := card.Key()
		s.byKey[key] = card
		cols := make(map[string]bool, len(card.Columns))
		for _, col := range card.Columns {
			cols[col.Name] = true
		}
		s.columns[key] = cols
	}
	return s
}

// Card returns the card for a schema.table key
func (s *Snapshot) Card(key string) (*schema.SchemaCard, bool) {
	card, ok := s.byKey[key]
	return card, ok
}

// HasTable reports whether a schema.table key is known
func (s *Snapshot) HasTable(key string) bool {
	_, ok := s.byKey[key]
	return ok
}

// HasColumn reports whether a known table has the column
func (s *Snapshot) HasColumn(key, column string) bool {
	return s.columns[key][column]
}

// TableColumns returns a table's column names in ordinal order
func (s *Snapshot) TableColumns(key string) ([]string, bool) {
	card, ok := s.byKey[key]
	if !ok {
		return nil, false
	}
	names := make([]string, 0, len(card.Columns))
	for _, col := range card.Columns {
		names = append(names, col.Name)
	}
	return names, true
}

// Keys returns every schema.table key in order
func (s *Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.Cards))
	for _, card := range s.Cards {
		keys = append(keys, card.Key())
	}
	return keys
}

// ColumnCount is the total number of columns across all cards
func (s *Snapshot) ColumnCount() int {
	n := 0
	for _, card := range s.Cards {
		n += len(card.Columns)
	}
	return n
}
