package flow

import (
	"strings"

	"github.com/intakeflow/intake-backend/internal/entity"
)

// Context is the flat, bounded request context assembled once per request.
// Everything downstream (planner prompt, renderer prompt, cache keys) reads
// from here, never from the raw payload.
type Context struct {
	Industry        string
	Service         string
	ServicesSummary string
	ServiceSummary  string
	CompanySummary  string
	// GroundingSummary is the text the prompts quote; defaults to the
	// services summary and may be backfilled from industry/service.
	GroundingSummary string

	UseCase    string
	GoalIntent string

	AnsweredQA   []entity.AnsweredQA
	AskedStepIDs []string

	RequiredUploads []entity.RequiredUpload
	StepDataSoFar   map[string]any

	BatchIndex     int
	CallsRemaining int

	Constraints       BatchConstraints
	TokensTotalBudget int
	TokensUsedSoFar   int

	ChoiceOptionMin    int
	ChoiceOptionMax    int
	ChoiceOptionTarget int

	SessionID              string
	PreferStructuredInputs bool
	FlowGuide              *FlowGuide
	CopyStyleJSON          string
	Capabilities           map[string]bool
}

// HasServiceContext reports whether the request carries any grounding at all.
func (c *Context) HasServiceContext() bool {
	return c.ServicesSummary != "" || c.Industry != "" || c.Service != ""
}

// AskedSet returns the asked step ids as a set.
func (c *Context) AskedSet() map[string]struct{} {
	out := make(map[string]struct{}, len(c.AskedStepIDs))
	for _, id := range c.AskedStepIDs {
		out[id] = struct{}{}
	}
	return out
}

// BatchConstraints are the backend constraints shared with the frontend.
type BatchConstraints struct {
	MaxBatches           int `json:"maxBatches"`
	MaxStepsTotal        int `json:"maxStepsTotal"`
	MinStepsPerBatch     int `json:"minStepsPerBatch"`
	MaxStepsPerBatch     int `json:"maxStepsPerBatch"`
	DefaultStepsPerBatch int `json:"defaultStepsPerBatch"`
	TokenBudgetTotal     int `json:"tokenBudgetTotal"`
}

// DefaultAllowedMiniTypes is the fallback when neither the client nor the
// flow guide constrains component types.
var DefaultAllowedMiniTypes = []string{
	"multiple_choice",
	"yes_no",
	"slider",
	"rating",
	"file_upload",
	"segmented_choice",
	"chips_multi",
	"searchable_select",
	"gallery",
}

func normalizeType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	if t == "text" {
		t = "text_input"
	}
	return t
}

// EnsureAllowedMiniTypes lowercases and trims the list, falling back to the
// default set when empty.
func EnsureAllowedMiniTypes(allowed []string) []string {
	out := make([]string, 0, len(allowed))
	for _, raw := range allowed {
		t := strings.ToLower(strings.TrimSpace(raw))
		if t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		out = append(out, DefaultAllowedMiniTypes...)
	}
	return out
}

var structuredTypes = map[string]struct{}{
	"choice": {}, "multiple_choice": {}, "segmented_choice": {}, "chips_multi": {},
	"yes_no": {}, "slider": {}, "rating": {}, "range_slider": {},
}

// PreferStructuredMiniTypes drops free-text types when structured ones are
// available; used for early batches.
func PreferStructuredMiniTypes(types []string) []string {
	hasStructured := false
	for _, t := range types {
		if _, ok := structuredTypes[t]; ok {
			hasStructured = true
			break
		}
	}
	if !hasStructured {
		return types
	}
	out := make([]string, 0, len(types))
	for _, t := range types {
		if t == "text" || t == "text_input" {
			continue
		}
		out = append(out, t)
	}
	return out
}

// AllowedTypeMatches reports whether a step type is admissible under the
// allowed set, honoring contract aliases. An empty set allows everything.
func AllowedTypeMatches(stepType string, allowed map[string]struct{}) bool {
	if len(allowed) == 0 {
		return true
	}
	t := strings.ToLower(strings.TrimSpace(stepType))
	if t == "" {
		return false
	}
	if _, ok := allowed[t]; ok {
		return true
	}
	has := func(names ...string) bool {
		for _, n := range names {
			if _, ok := allowed[n]; ok {
				return true
			}
		}
		return false
	}
	switch t {
	case "choice", "multiple_choice":
		return has("choice", "multiple_choice")
	case "text", "text_input":
		return has("text", "text_input")
	case "slider", "rating", "range_slider":
		return has("slider", "rating", "range_slider")
	case "upload", "file_upload", "file_picker":
		return has("upload", "file_upload", "file_picker")
	case "gallery":
		return has("gallery")
	}
	return false
}
