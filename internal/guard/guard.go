package guard

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tordrt/schemaguard/internal/catalog"
)

// DefaultPlanTimeout bounds each plan preview
const DefaultPlanTimeout = 5 * time.Second

// Planner previews a statement and returns the EXPLAIN (VERBOSE, FORMAT JSON) document
type Planner interface {
	Explain(ctx context.Context, query string, params map[string]any, timeout time.Duration) ([]byte, error)
}

// Lookup answers which tables and columns exist
type Lookup interface {
	Keys() []string
	TableColumns(key string) ([]string, bool)
}

// Result is the outcome of one validation. Unknown lists are sorted.
type Result struct {
	UnknownRelations []string            `json:"unknown_relations"`
	UnknownColumns   map[string][]string `json:"unknown_columns"`
	ExplainFailed    bool                `json:"explain_failed"`
	ErrorText        string              `json:"error_text,omitempty"`
	StrictViolation  bool                `json:"strict_violation"`
}

// OK reports whether the statement passed: no unknown identifiers and a readable plan
func (r Result) OK() bool {
	return len(r.UnknownRelations) == 0 && len(r.UnknownColumns) == 0 && !r.ExplainFailed
}

// Validator checks statements against a lookup using the planner
type Validator struct {
	planner  Planner
	defaults Defaults
	timeout  time.Duration
}

// NewValidator creates a validator. A zero timeout uses DefaultPlanTimeout.
func NewValidator(planner Planner, defaults Defaults, timeout time.Duration) *Validator {
	if timeout <= 0 {
		timeout = DefaultPlanTimeout
	}
	return &Validator{planner: planner, defaults: defaults, timeout: timeout}
}

// Defaults returns the pagination defaults used for hydration
func (v *Validator) Defaults() Defaults {
	return v.defaults
}

// Validate previews sql and cross-checks every identifier the plan touched against lookup.
// When the plan cannot be produced, the identifiers named in the text are checked instead.
func (v *Validator) Validate(ctx context.Context, sql string, params map[string]any, lookup Lookup) Result {
	res := Result{
		UnknownRelations: []string{},
		UnknownColumns:   map[string][]string{},
	}
	if !ShouldAnalyse(sql) {
		return res
	}

	requested := ExtractRequested(sql)
	used, err := v.planned(ctx, sql, params)
	if err != nil {
		res.ExplainFailed = true
		res.ErrorText = err.Error()
		used = NewIdentifierSet()
		used.Merge(requested.IdentifierSet)
	}

	unknownRels := make(map[string]bool)
	known := func(rel string) ([]string, bool) {
		cols, ok := lookup.TableColumns(rel)
		if !ok {
			unknownRels[rel] = true
		}
		return cols, ok
	}

	for rel := range used.Relations {
		known(rel)
	}
	for rel, cols := range used.Columns {
		existing, ok := known(rel)
		if !ok {
			continue
		}
		have := toSet(existing)
		for col := range cols {
			if !have[col] {
				res.addUnknownColumn(rel, col)
			}
		}
	}

	if res.ExplainFailed {
		for cte, refs := range requested.CTERefs {
			outputs := requested.CTEOutputs[cte]
			if outputs == nil {
				continue
			}
			for col := range refs {
				if !outputs[col] {
					res.addUnknownColumn(cte, col)
				}
			}
		}
	}

	res.UnknownRelations = sortedKeys(unknownRels)
	for rel := range res.UnknownColumns {
		res.UnknownColumns[rel] = sortedKeys(toSet(res.UnknownColumns[rel]))
	}
	res.StrictViolation = strictViolation(res, requested)
	return res
}

func (v *Validator) planned(ctx context.Context, sql string, params map[string]any) (IdentifierSet, error) {
	raw, err := v.planner.Explain(ctx, sql, Hydrate(sql, params, v.defaults), v.timeout)
	if err != nil {
		return IdentifierSet{}, err
	}
	set, err := planIdentifiers(raw)
	if err != nil {
		return IdentifierSet{}, fmt.Errorf("failed to read plan: %w", err)
	}
	return set, nil
}

func (r *Result) addUnknownColumn(rel, col string) {
	r.UnknownColumns[rel] = append(r.UnknownColumns[rel], col)
}

// strictViolation reports whether an unknown identifier is one the statement names literally
func strictViolation(res Result, req Requested) bool {
	for _, rel := range res.UnknownRelations {
		if req.Relations[rel] {
			return true
		}
	}
	for rel, cols := range res.UnknownColumns {
		named := req.Columns[rel]
		if req.CTE[rel] {
			named = req.CTERefs[rel]
		}
		for _, col := range cols {
			if named[col] {
				return true
			}
		}
	}
	return false
}

// Source supplies the lookup a guard validates against
type Source interface {
	Load(ctx context.Context) (Lookup, error)
	// Refresh rechecks the live schema before answering
	Refresh(ctx context.Context) (Lookup, error)
}

type catalogSource struct {
	catalog *catalog.Catalog
}

// FromCatalog adapts a catalog to a Source
func FromCatalog(c *catalog.Catalog) Source {
	return catalogSource{catalog: c}
}

func (s catalogSource) Load(ctx context.Context) (Lookup, error) {
	snap, err := s.catalog.Load(ctx, false)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s catalogSource) Refresh(ctx context.Context) (Lookup, error) {
	snap, err := s.catalog.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Verdict is an approved statement ready to run
type Verdict struct {
	SQL    string
	Params map[string]any
	Result Result
}

// Guard validates statements against the catalog, refreshing it once when a check fails
type Guard struct {
	validator *Validator
	source    Source
	logger    *zap.Logger
}

// New creates a guard
func New(validator *Validator, source Source, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{validator: validator, source: source, logger: logger}
}

// Check validates sql. A failing result triggers one catalog refresh and one retry.
// The returned lookup is the one the final result was computed against.
func (g *Guard) Check(ctx context.Context, sql string, params map[string]any) (Result, Lookup, error) {
	lookup, err := g.source.Load(ctx)
	if err != nil {
		return Result{}, nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	res := g.validator.Validate(ctx, sql, params, lookup)
	if res.OK() {
		return res, lookup, nil
	}

	g.logger.Debug("identifier check failed, refreshing catalog",
		zap.Strings("unknown_relations", res.UnknownRelations),
		zap.Bool("explain_failed", res.ExplainFailed))

	lookup, err = g.source.Refresh(ctx)
	if err != nil {
		return Result{}, nil, fmt.Errorf("failed to refresh catalog: %w", err)
	}
	return g.validator.Validate(ctx, sql, params, lookup), lookup, nil
}

// Ensure is the strict form of Check. It returns the statement with pagination defaults
// applied, or an *IdentifierError describing what is wrong and how to fix it.
func (g *Guard) Ensure(ctx context.Context, sql string, params map[string]any) (*Verdict, error) {
	res, lookup, err := g.Check(ctx, sql, params)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, &IdentifierError{
			Details: res,
			Message: FormatMessage(res),
			Hint:    BuildHint(res, lookup),
		}
	}

	defaults := g.validator.Defaults()
	return &Verdict{
		SQL:    NormalizeLimitLiteral(sql, params, defaults),
		Params: Hydrate(sql, params, defaults),
		Result: res,
	}, nil
}
