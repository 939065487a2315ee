package entity

import "strings"

// Step types form a closed contract with the form widget. Aliases accepted on
// input are canonicalized during validation; the values below are what the
// backend emits.
const (
	StepTypeTextInput        = "text_input"
	StepTypeMultipleChoice   = "multiple_choice"
	StepTypeSegmentedChoice  = "segmented_choice"
	StepTypeChipsMulti       = "chips_multi"
	StepTypeYesNo            = "yes_no"
	StepTypeImageChoiceGrid  = "image_choice_grid"
	StepTypeSearchableSelect = "searchable_select"
	StepTypeRating           = "rating"
	StepTypeSlider           = "slider"
	StepTypeRangeSlider      = "range_slider"
	StepTypeBudgetCards      = "budget_cards"
	StepTypeFileUpload       = "file_upload"
	StepTypeIntro            = "intro"
	StepTypeDatePicker       = "date_picker"
	StepTypeColorPicker      = "color_picker"
	StepTypeLeadCapture      = "lead_capture"
	StepTypePricing          = "pricing"
	StepTypeConfirmation     = "confirmation"
	StepTypeDesigner         = "designer"
	StepTypeComposite        = "composite"
	StepTypeGallery          = "gallery"
)

// StepTypes lists every type the contract can emit, in contract order.
var StepTypes = []string{
	StepTypeTextInput,
	StepTypeMultipleChoice,
	StepTypeSegmentedChoice,
	StepTypeChipsMulti,
	StepTypeYesNo,
	StepTypeImageChoiceGrid,
	StepTypeSearchableSelect,
	StepTypeRating,
	StepTypeSlider,
	StepTypeRangeSlider,
	StepTypeBudgetCards,
	StepTypeFileUpload,
	StepTypeIntro,
	StepTypeDatePicker,
	StepTypeColorPicker,
	StepTypeLeadCapture,
	StepTypePricing,
	StepTypeConfirmation,
	StepTypeDesigner,
	StepTypeComposite,
	StepTypeGallery,
}

// Option is the canonical choice-option form {label, value}.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// FunctionCall marks a step that should trigger a backend function when the
// user reaches it (e.g. mid-flow image preview generation).
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Step is a fully validated, client-renderable form field. Raw LLM candidates
// are maps; only validation produces a Step.
type Step struct {
	ID            string           `json:"id"`
	Type          string           `json:"type"`
	Title         string           `json:"title,omitempty"`
	Question      string           `json:"question,omitempty"`
	Subtext       string           `json:"subtext,omitempty"`
	Required      bool             `json:"required"`
	MetricGain    float64          `json:"metricGain"`
	AllowMultiple *bool            `json:"allowMultiple,omitempty"`
	Options       []Option         `json:"options,omitempty"`
	Blocks        []map[string]any `json:"blocks,omitempty"`
	FunctionCall  *FunctionCall    `json:"functionCall,omitempty"`
}

// NormalizeStepID canonicalizes step ids to match the frontend: underscores
// become hyphens, whitespace is trimmed.
func NormalizeStepID(stepID string) string {
	t := strings.TrimSpace(stepID)
	if t == "" {
		return t
	}
	return strings.ReplaceAll(t, "_", "-")
}

// DeriveStepID maps a plan key to its deterministic step id.
func DeriveStepID(key string) string {
	return "step-" + strings.ReplaceAll(key, "_", "-")
}

// KeyFromStepID converts `step-foo-bar` back to `foo_bar` so the id derivation
// round-trips.
func KeyFromStepID(stepID string) string {
	t := strings.TrimSpace(stepID)
	t = strings.TrimPrefix(t, "step-")
	return strings.Trim(strings.ReplaceAll(t, "-", "_"), "_")
}
