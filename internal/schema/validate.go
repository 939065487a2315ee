package schema

import (
	"regexp"
	"strings"

	"github.com/intakeflow/intake-backend/internal/entity"
)

// canonicalType maps every accepted input alias to the contract type.
var canonicalType = map[string]string{
	"text":              entity.StepTypeTextInput,
	"text_input":        entity.StepTypeTextInput,
	"choice":            entity.StepTypeMultipleChoice,
	"multiple_choice":   entity.StepTypeMultipleChoice,
	"segmented_choice":  entity.StepTypeSegmentedChoice,
	"chips_multi":       entity.StepTypeChipsMulti,
	"yes_no":            entity.StepTypeYesNo,
	"image_choice_grid": entity.StepTypeImageChoiceGrid,
	"searchable_select": entity.StepTypeSearchableSelect,
	"slider":            entity.StepTypeSlider,
	"rating":            entity.StepTypeRating,
	"range_slider":      entity.StepTypeRangeSlider,
	"budget_cards":      entity.StepTypeBudgetCards,
	"upload":            entity.StepTypeFileUpload,
	"file_upload":       entity.StepTypeFileUpload,
	"file_picker":       entity.StepTypeFileUpload,
	"intro":             entity.StepTypeIntro,
	"date_picker":       entity.StepTypeDatePicker,
	"color_picker":      entity.StepTypeColorPicker,
	"lead_capture":      entity.StepTypeLeadCapture,
	"pricing":           entity.StepTypePricing,
	"confirmation":      entity.StepTypeConfirmation,
	"designer":          entity.StepTypeDesigner,
	"composite":         entity.StepTypeComposite,
	"gallery":           entity.StepTypeGallery,
}

// optionsRequired are the types that are meaningless without options.
var optionsRequired = map[string]struct{}{
	entity.StepTypeMultipleChoice:   {},
	entity.StepTypeSegmentedChoice:  {},
	entity.StepTypeChipsMulti:       {},
	entity.StepTypeYesNo:            {},
	entity.StepTypeImageChoiceGrid:  {},
	entity.StepTypeSearchableSelect: {},
}

// ValidateStep turns one raw candidate object into a contract Step, or nil
// when the candidate cannot be repaired:
//   - legacy field aliases (stepId, component_hint, ...) are coerced,
//   - options are cleaned, coerced, and checked against banned toy sets,
//   - a missing id gets a deterministic fallback derived from content,
//   - metricGain defaults by type when absent.
// Never panics, never errors: invalid in, nil out.
func ValidateStep(obj map[string]any) *entity.Step {
	if obj == nil {
		return nil
	}

	rawType := stringOf(firstOf(obj, "type", "componentType", "component_type", "component_hint", "componentHint"))
	stepType, ok := canonicalType[strings.ToLower(strings.TrimSpace(rawType))]
	if !ok {
		return nil
	}

	step := &entity.Step{
		Type:     stepType,
		Title:    strings.TrimSpace(stringOf(obj["title"])),
		Question: strings.TrimSpace(stringOf(obj["question"])),
		Subtext:  strings.TrimSpace(stringOf(firstOf(obj, "subtext", "subtitle", "description"))),
	}

	if req, ok := obj["required"].(bool); ok {
		step.Required = req
	}

	if raw := firstOf(obj, "allow_multiple", "allowMultiple", "multi_select", "multiSelect"); raw != nil {
		if b, ok := raw.(bool); ok {
			v := b
			step.AllowMultiple = &v
		}
	}

	// Copy normalization: the widget expects both title and question whenever
	// either is present.
	if step.Title != "" && step.Question == "" {
		step.Question = step.Title
	} else if step.Question != "" && step.Title == "" {
		step.Title = step.Question
	}

	if _, needOptions := optionsRequired[stepType]; needOptions {
		opts := CleanOptions(obj["options"])
		if len(opts) == 0 {
			return nil
		}
		if HasBannedOptionSet(opts) {
			return nil
		}
		step.Options = opts
	} else if rawOpts, ok := obj["options"].([]any); ok && len(rawOpts) > 0 {
		step.Options = CleanOptions(obj["options"])
		if HasBannedOptionSet(step.Options) {
			return nil
		}
	}

	if stepType == entity.StepTypeComposite {
		blocks := extractBlocks(obj["blocks"])
		if len(blocks) == 0 {
			return nil
		}
		step.Blocks = blocks
	}

	if fc := extractFunctionCall(firstOf(obj, "functionCall", "function_call")); fc != nil {
		step.FunctionCall = fc
	}

	rawID := stringOf(firstOf(obj, "id", "stepId", "step_id", "stepID"))
	step.ID = entity.NormalizeStepID(rawID)
	if step.ID == "" {
		step.ID = FallbackStepID(stepType, firstNonEmpty(step.Question, step.Title), step.Options)
	}

	step.MetricGain = resolveMetricGain(obj, step)
	return step
}

var fallbackSlugRe = regexp.MustCompile(`[^a-z0-9]+`)

// FallbackStepID is the deterministic backstop id when the model forgets to
// emit one: type, first words of the question, and the first option value.
func FallbackStepID(stepType, question string, options []entity.Option) string {
	t := strings.Trim(fallbackSlugRe.ReplaceAllString(strings.ToLower(stepType), "-"), "-")
	if t == "" {
		t = "step"
	}
	base := "step-" + t

	q := strings.Trim(fallbackSlugRe.ReplaceAllString(strings.ToLower(question), "-"), "-")
	if q != "" {
		parts := strings.Split(q, "-")
		if len(parts) > 6 {
			parts = parts[:6]
		}
		base += "-" + strings.Join(parts, "-")
	}

	if len(options) > 0 {
		opt0 := options[0].Value
		if opt0 == "" {
			opt0 = options[0].Label
		}
		opt0 = strings.Trim(fallbackSlugRe.ReplaceAllString(strings.ToLower(opt0), "-"), "-")
		if opt0 != "" {
			base += "-" + opt0
		}
	}

	if len(base) > 64 {
		base = base[:64]
	}
	return base
}

// resolveMetricGain honors an explicit metricGain and otherwise defaults by
// type, nudged by requiredness, clamped into [0.03, 0.25].
func resolveMetricGain(obj map[string]any, step *entity.Step) float64 {
	if raw := firstOf(obj, "metricGain", "metric_gain"); raw != nil {
		switch t := raw.(type) {
		case float64:
			return t
		case int:
			return float64(t)
		}
	}

	base := 0.1
	switch step.Type {
	case entity.StepTypeMultipleChoice, entity.StepTypeSegmentedChoice, entity.StepTypeChipsMulti,
		entity.StepTypeYesNo, entity.StepTypeImageChoiceGrid, entity.StepTypeSearchableSelect:
		base = 0.12
	case entity.StepTypeSlider, entity.StepTypeRating, entity.StepTypeRangeSlider, entity.StepTypeBudgetCards:
		base = 0.1
	case entity.StepTypeTextInput:
		base = 0.08
	case entity.StepTypeFileUpload:
		base = 0.15
	case entity.StepTypeIntro, entity.StepTypeConfirmation, entity.StepTypePricing,
		entity.StepTypeDesigner, entity.StepTypeComposite:
		base = 0.05
	}

	if explicit, ok := obj["required"].(bool); ok {
		if explicit {
			base += 0.03
			if base > 0.25 {
				base = 0.25
			}
		} else {
			base -= 0.02
			if base < 0.03 {
				base = 0.03
			}
		}
	}
	return base
}

// LooksLikeUploadStepID reports whether an id reads as an upload step.
func LooksLikeUploadStepID(stepID string) bool {
	t := strings.ToLower(stepID)
	return strings.Contains(t, "upload") || strings.Contains(t, "file")
}

func extractBlocks(raw any) []map[string]any {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, v := range list {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func extractFunctionCall(raw any) *entity.FunctionCall {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	name := strings.TrimSpace(stringOf(m["name"]))
	if name == "" {
		return nil
	}
	fc := &entity.FunctionCall{Name: name}
	if args, ok := m["args"].(map[string]any); ok {
		fc.Args = args
	}
	return fc
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
