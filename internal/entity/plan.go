package entity

import (
	"regexp"
	"strings"
)

// PlanItem is an intermediate "question we intend to ask", keyed by a
// normalized string. The planner emits non-deterministic items; the backend
// appends deterministic ones (uploads, gallery, confirmation, triggers).
type PlanItem struct {
	Key           string        `json:"key"`
	Question      string        `json:"question,omitempty"`
	Intent        string        `json:"intent,omitempty"`
	TypeHint      string        `json:"type_hint,omitempty"`
	Priority      int           `json:"priority,omitempty"`
	Deterministic bool          `json:"deterministic,omitempty"`
	Required      bool          `json:"required,omitempty"`
	FunctionCall  *FunctionCall `json:"functionCall,omitempty"`
	OptionHints   []string      `json:"option_hints,omitempty"`
}

// QuestionPlan is the planner's output shape: {"plan": [...]}.
type QuestionPlan struct {
	Plan []PlanItem `json:"plan"`
}

var (
	planKeyJunk   = regexp.MustCompile(`[^a-z0-9]+`)
	planKeyRepeat = regexp.MustCompile(`_+`)
)

const maxPlanKeyLen = 48

// NormalizePlanKey lowercases, collapses non-alphanumerics to single
// underscores and caps the length. Normalizing twice is a no-op.
func NormalizePlanKey(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	t = planKeyJunk.ReplaceAllString(t, "_")
	t = planKeyRepeat.ReplaceAllString(t, "_")
	t = strings.Trim(t, "_")
	if len(t) > maxPlanKeyLen {
		// The cap can land on a separator; trim again to stay idempotent.
		t = strings.Trim(t[:maxPlanKeyLen], "_")
	}
	return t
}
