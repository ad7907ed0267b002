package catalog

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tordrt/schemaguard/internal/db"
	"github.com/tordrt/schemaguard/internal/schema"
)

const (
	DefaultSampleLimit   = 5
	DefaultSampleTimeout = 750 * time.Millisecond
)

// MetadataSource is the reflection surface the builder reads from
type MetadataSource interface {
	EligibleSchemas(ctx context.Context, configured []string) ([]string, error)
	ListTables(ctx context.Context, schemas []string) ([]schema.TableRef, error)
	Columns(ctx context.Context, schemaName, table string) ([]schema.Column, error)
	PrimaryKey(ctx context.Context, schemaName, table string) ([]string, error)
	ForeignKeys(ctx context.Context, schemaName, table string) ([]schema.ForeignKey, error)
	Indexes(ctx context.Context, schemaName, table string) ([]schema.Index, error)
	TableComment(ctx context.Context, schemaName, table string) (string, error)
	RowEstimates(ctx context.Context, schemas []string) (map[string]int64, error)
}

// Sampler reads example values for a column
type Sampler interface {
	SampleValues(ctx context.Context, schemaName, table, column string, limit int, timeout time.Duration) ([]string, error)
}

// BuilderOptions controls which schemas are reflected and how columns are sampled
type BuilderOptions struct {
	Schemas       []string
	SampleLimit   int
	SampleTimeout time.Duration
}

// Builder turns reflected metadata into schema cards
type Builder struct {
	source  MetadataSource
	sampler Sampler
	opts    BuilderOptions
	logger  *zap.Logger
}

// NewBuilder creates a builder. A nil sampler disables example values.
func NewBuilder(source MetadataSource, sampler Sampler, opts BuilderOptions, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(opts.Schemas) == 0 {
		opts.Schemas = []string{"public"}
	}
	if opts.SampleLimit <= 0 {
		opts.SampleLimit = DefaultSampleLimit
	}
	if opts.SampleTimeout <= 0 {
		opts.SampleTimeout = DefaultSampleTimeout
	}
	return &Builder{source: source, sampler: sampler, opts: opts, logger: logger}
}

// enrichment is the outcome of one reflection step that may be denied to the current role
type enrichment[T any] struct {
	value     T
	available bool
}

// tryReflect runs one reflection call. Privilege errors become an unavailable enrichment,
// anything else aborts the build.
func tryReflect[T any](logger *zap.Logger, key, step string, fn func() (T, error)) (enrichment[T], error) {
	v, err := fn()
	if err == nil {
		return enrichment[T]{value: v, available: true}, nil
	}
	if db.IsPrivilegeError(err) {
		logger.Debug("reflection unavailable", zap.String("table", key), zap.String("step", step), zap.Error(err))
		return enrichment[T]{}, nil
	}
	return enrichment[T]{}, fmt.Errorf("failed to reflect %s of %s: %w", step, key, err)
}

// EligibleSchemas narrows the include list to schemas the current role may use
func (b *Builder) EligibleSchemas(ctx context.Context) ([]string, error) {
	schemas, err := b.source.EligibleSchemas(ctx, b.opts.Schemas)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve schemas: %w", err)
	}
	return schemas, nil
}

// Build reflects every table in the eligible schemas into a card
func (b *Builder) Build(ctx context.Context) ([]*schema.SchemaCard, error) {
	schemas, err := b.EligibleSchemas(ctx)
	if err != nil {
		return nil, err
	}

	tables, err := b.source.ListTables(ctx, schemas)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	estimates, err := tryReflect(b.logger, "*", "row estimates", func() (map[string]int64, error) {
		return b.source.RowEstimates(ctx, schemas)
	})
	if err != nil {
		return nil, err
	}

	cards := make([]*schema.SchemaCard, 0, len(tables))
	for _, ref := range tables {
		card, err := b.buildCard(ctx, ref)
		if err != nil {
			return nil, err
		}
		if estimates.available {
			if n, ok := estimates.value[card.Key()]; ok {
				card.RowEstimate = &n
			}
		}
		cards = append(cards, card)
	}
	return cards, nil
}

func (b *Builder) buildCard(ctx context.Context, ref schema.TableRef) (*schema.SchemaCard, error) {
	key := schema.Key(ref.Schema, ref.Table)
	card := &schema.SchemaCard{
		Schema:      ref.Schema,
		Table:       ref.Table,
		Columns:     []schema.Column{},
		PrimaryKey:  []string{},
		ForeignKeys: []schema.ForeignKey{},
		Indexes:     []schema.Index{},
		Examples:    map[string][]string{},
	}

	columns, err := tryReflect(b.logger, key, "columns", func() ([]schema.Column, error) {
		return b.source.Columns(ctx, ref.Schema, ref.Table)
	})
	if err != nil {
		return nil, err
	}
	if columns.available && columns.value != nil {
		card.Columns = columns.value
	}

	pk, err := tryReflect(b.logger, key, "primary key", func() ([]string, error) {
		return b.source.PrimaryKey(ctx, ref.Schema, ref.Table)
	})
	if err != nil {
		return nil, err
	}
	if pk.available && pk.value != nil {
		card.PrimaryKey = pk.value
	}

	fks, err := tryReflect(b.logger, key, "foreign keys", func() ([]schema.ForeignKey, error) {
		return b.source.ForeignKeys(ctx, ref.Schema, ref.Table)
	})
	if err != nil {
		return nil, err
	}
	if fks.available && fks.value != nil {
		card.ForeignKeys = fks.value
	}

	indexes, err := tryReflect(b.logger, key, "indexes", func() ([]schema.Index, error) {
		return b.source.Indexes(ctx, ref.Schema, ref.Table)
	})
	if err != nil {
		return nil, err
	}
	if indexes.available && indexes.value != nil {
		card.Indexes = indexes.value
	}

	comment, err := tryReflect(b.logger, key, "comment", func() (string, error) {
		return b.source.TableComment(ctx, ref.Schema, ref.Table)
	})
	if err != nil {
		return nil, err
	}
	card.Comment = comment.value

	b.sample(ctx, card)
	card.Aliases = DeriveAliases(card)
	return card, nil
}

// sample fills card.Examples for text-like columns. Failures are logged and skipped.
func (b *Builder) sample(ctx context.Context, card *schema.SchemaCard) {
	if b.sampler == nil {
		return
	}
	for _, col := range card.Columns {
		if !col.Category.IsText() {
			continue
		}
		values, err := b.sampler.SampleValues(ctx, card.Schema, card.Table, col.Name, b.opts.SampleLimit, b.opts.SampleTimeout)
		if err != nil {
			b.logger.Debug("sampling skipped",
				zap.String("table", card.Key()),
				zap.String("column", col.Name),
				zap.Error(err))
			continue
		}
		if len(values) > b.opts.SampleLimit {
			values = values[:b.opts.SampleLimit]
		}
		if len(values) > 0 {
			card.Examples[col.Name] = values
		}
	}
}
