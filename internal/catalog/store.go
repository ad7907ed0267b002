package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/tordrt/schemaguard/internal/db"
	"github.com/tordrt/schemaguard/internal/schema"
)

// ErrCacheMiss means the persisted catalog is absent, stale or unreadable and must be rebuilt
var ErrCacheMiss = errors.New("catalog cache miss")

const (
	cardsDir      = "cards"
	indexFile     = "index.json"
	slimIndexFile = "index_slim.json"
	cardExt       = ".json"
)

// Store persists cards, the full index and the slim index under one directory
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Save writes every card, then the slim index, then the full index.
// The full index is written last so a reader never sees an index pointing at missing cards.
func (s *Store) Save(cards []*schema.SchemaCard, fingerprint string) error {
	cardPath := filepath.Join(s.dir, cardsDir)
	if err := os.MkdirAll(cardPath, 0755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}

	keep := make(map[string]bool, len(cards))
	index := schema.SchemaIndex{Fingerprint: fingerprint, Tables: make([]schema.TableRef, 0, len(cards))}
	slim := schema.SlimIndex{Fingerprint: fingerprint, Tables: make([]schema.SlimTable, 0, len(cards))}

	for _, card := range cards {
		name := cardFileName(card.Key())
		keep[name] = true
		if err := writeJSON(filepath.Join(cardPath, name), card); err != nil {
			return fmt.Errorf("failed to write card %s: %w", card.Key(), err)
		}
		index.Tables = append(index.Tables, schema.TableRef{
			Schema:  card.Schema,
			Table:   card.Table,
			Aliases: append([]string{}, card.Aliases...),
		})
		slim.Tables = append(slim.Tables, schema.Slim(card))
	}

	if err := writeJSON(filepath.Join(s.dir, slimIndexFile), slim); err != nil {
		return fmt.Errorf("failed to write slim index: %w", err)
	}
	if err := writeJSON(filepath.Join(s.dir, indexFile), index); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}

	s.removeStaleCards(cardPath, keep)
	return nil
}

// removeStaleCards drops card files for tables that no longer exist
func (s *Store) removeStaleCards(cardPath string, keep map[string]bool) {
	entries, err := os.ReadDir(cardPath)
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, cardExt) || keep[name] {
			continue
		}
		_ = os.Remove(filepath.Join(cardPath, name))
	}
}

// ReadIndex reads the full index. Missing or unreadable files are a cache miss.
func (s *Store) ReadIndex() (*schema.SchemaIndex, error) {
	var index schema.SchemaIndex
	if err := readJSON(filepath.Join(s.dir, indexFile), &index); err != nil {
		return nil, err
	}
	if index.Fingerprint == "" {
		return nil, fmt.Errorf("%w: index has no fingerprint", ErrCacheMiss)
	}
	return &index, nil
}

// ReadSlimIndex reads the slim index
func (s *Store) ReadSlimIndex() (*schema.SlimIndex, error) {
	var slim schema.SlimIndex
	if err := readJSON(filepath.Join(s.dir, slimIndexFile), &slim); err != nil {
		return nil, err
	}
	return &slim, nil
}

// Load reads the index and every card it lists. Any missing or corrupt card, or a card set
// whose fingerprint disagrees with the index, is a cache miss; there is no partial repair.
func (s *Store) Load() ([]*schema.SchemaCard, *schema.SchemaIndex, error) {
	index, err := s.ReadIndex()
	if err != nil {
		return nil, nil, err
	}

	cards := make([]*schema.SchemaCard, 0, len(index.Tables))
	for _, ref := range index.Tables {
		key := schema.Key(ref.Schema, ref.Table)
		var card schema.SchemaCard
		if err := readJSON(filepath.Join(s.dir, cardsDir, cardFileName(key)), &card); err != nil {
			return nil, nil, err
		}
		if card.Schema != ref.Schema || card.Table != ref.Table {
			return nil, nil, fmt.Errorf("%w: card file for %s describes %s", ErrCacheMiss, key, card.Key())
		}
		if card.Columns == nil {
			card.Columns = []schema.Column{}
		}
		cards = append(cards, &card)
	}

	if got := db.FingerprintCards(cards); got != index.Fingerprint {
		return nil, nil, fmt.Errorf("%w: cards hash to %s, index says %s", ErrCacheMiss, short(got), short(index.Fingerprint))
	}
	return cards, index, nil
}

func cardFileName(key string) string {
	return url.PathEscape(key) + cardExt
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %w", ErrCacheMiss, err)
		}
		return fmt.Errorf("%w: %v", ErrCacheMiss, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s is corrupt: %v", ErrCacheMiss, filepath.Base(path), err)
	}
	return nil
}

// writeJSON writes through a temp file and a rename so readers never see a half-written file
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
