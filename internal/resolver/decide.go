package resolver

import (
	"fmt"
	"strings"
)

// Action is what a caller should do with a resolution
type Action string

const (
	// ActionRun means a template can answer the request
	ActionRun Action = "run"
	// ActionClarify means the caller should ask which table was meant
	ActionClarify Action = "clarify"
	// ActionFallback hands the request to a general planner
	ActionFallback Action = "fallback"
	// ActionFacts means the request asks about the database itself
	ActionFacts Action = "facts"
)

const (
	ReasonNoCandidates  = "no_candidates"
	ReasonAmbiguous     = "ambiguous"
	ReasonLowConfidence = "low_confidence"
	ReasonNoListColumn  = "no_list_column"
	ReasonUnknownIntent = "unknown_intent"
)

const (
	minLeadScore  = 0.40
	minLeadMargin = 0.15
)

// Decision is the shortcut verdict for a resolution
type Decision struct {
	Action    Action     `json:"action"`
	Reason    string     `json:"reason,omitempty"`
	Intent    Intent     `json:"intent"`
	Candidate *Candidate `json:"candidate,omitempty"`
	Column    string     `json:"column,omitempty"`
	Message   string     `json:"message,omitempty"`
}

// Decide turns a resolution into run, clarify or fallback. Only count and list intents can run,
// and only when the top candidate scores at least 0.40 and leads the next one by at least 0.15.
func Decide(res Result) Decision {
	d := Decision{Action: ActionFallback, Intent: res.Intent}
	if res.Intent != IntentCount && res.Intent != IntentList {
		d.Reason = ReasonUnknownIntent
		return d
	}

	cands := res.Candidates
	switch {
	case len(cands) == 0:
		d.Action = ActionClarify
		d.Reason = ReasonNoCandidates
		d.Message = "I don't see a matching table for that. Tell me the table (e.g., public.brand) and I'll run it."
		return d
	case len(cands) >= 2 && (cands[0].Score-cands[1].Score < minLeadMargin || cands[0].Score < minLeadScore):
		keys := make([]string, 0, len(cands))
		for _, c := range cands {
			keys = append(keys, c.Key)
		}
		d.Action = ActionClarify
		d.Reason = ReasonAmbiguous
		d.Message = fmt.Sprintf("Did you mean one of these tables: %s? Reply with one and I'll proceed.", strings.Join(keys, ", "))
		return d
	case cands[0].Score < minLeadScore:
		d.Action = ActionClarify
		d.Reason = ReasonLowConfidence
		d.Message = "I'm not confident which table matches that. Tell me the table name and I'll continue."
		return d
	}

	top := cands[0]
	d.Candidate = &top
	if res.Intent == IntentList {
		if len(res.ColumnHints) == 0 {
			d.Reason = ReasonNoListColumn
			return d
		}
		d.Column = res.ColumnHints[0]
	}
	d.Action = ActionRun
	return d
}
