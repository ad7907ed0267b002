package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cand(key string, score float64) Candidate {
	return Candidate{Key: key, Schema: "public", Table: key[len("public."):], Score: score}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name   string
		res    Result
		action Action
		reason string
		column string
	}{
		{
			name:   "unknown intent falls back",
			res:    Result{Intent: IntentUnknown, Candidates: []Candidate{cand("public.film", 0.9)}},
			action: ActionFallback,
			reason: ReasonUnknownIntent,
		},
		{
			name:   "no candidates",
			res:    Result{Intent: IntentCount},
			action: ActionClarify,
			reason: ReasonNoCandidates,
		},
		{
			name:   "close scores are ambiguous",
			res:    Result{Intent: IntentCount, Candidates: []Candidate{cand("public.film", 0.6), cand("public.film_text", 0.5)}},
			action: ActionClarify,
			reason: ReasonAmbiguous,
		},
		{
			name:   "weak lead is ambiguous",
			res:    Result{Intent: IntentCount, Candidates: []Candidate{cand("public.film", 0.35), cand("public.film_text", 0.1)}},
			action: ActionClarify,
			reason: ReasonAmbiguous,
		},
		{
			name:   "single weak candidate",
			res:    Result{Intent: IntentList, Candidates: []Candidate{cand("public.film", 0.3)}},
			action: ActionClarify,
			reason: ReasonLowConfidence,
		},
		{
			name:   "clear count",
			res:    Result{Intent: IntentCount, Candidates: []Candidate{cand("public.customer", 0.6), cand("public.store", 0.1)}},
			action: ActionRun,
		},
		{
			name:   "clear list uses first hint",
			res:    Result{Intent: IntentList, Candidates: []Candidate{cand("public.brand", 0.45)}, ColumnHints: []string{"slug", "title"}},
			action: ActionRun,
			column: "slug",
		},
		{
			name:   "list without a text column falls back",
			res:    Result{Intent: IntentList, Candidates: []Candidate{cand("public.payment", 0.45)}},
			action: ActionFallback,
			reason: ReasonNoListColumn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.res)
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.reason, d.Reason)
			assert.Equal(t, tt.column, d.Column)
			if tt.action == ActionRun {
				require.NotNil(t, d.Candidate)
				assert.Equal(t, tt.res.Candidates[0], *d.Candidate)
			}
			if tt.action == ActionClarify {
				assert.NotEmpty(t, d.Message)
			}
		})
	}
}

func TestDecide_AmbiguousListsOptions(t *testing.T) {
	d := Decide(Result{Intent: IntentCount, Candidates: []Candidate{cand("public.film", 0.5), cand("public.film_text", 0.45)}})
	assert.Equal(t, "Did you mean one of these tables: public.film, public.film_text? Reply with one and I'll proceed.", d.Message)
}
