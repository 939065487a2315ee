package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intakeflow/intake-backend/internal/entity"
)

func choiceCandidate() map[string]any {
	return map[string]any{
		"id":       "step-project-type",
		"type":     "multiple_choice",
		"question": "What kind of project is this?",
		"required": true,
		"options": []any{
			map[string]any{"label": "Kitchen", "value": "kitchen"},
			map[string]any{"label": "Bathroom", "value": "bathroom"},
		},
	}
}

func TestValidateStepHappyPath(t *testing.T) {
	step := ValidateStep(choiceCandidate())

	require.NotNil(t, step)
	assert.Equal(t, "step-project-type", step.ID)
	assert.Equal(t, entity.StepTypeMultipleChoice, step.Type)
	assert.True(t, step.Required)
	assert.Len(t, step.Options, 2)
	// Title syncs from question.
	assert.Equal(t, step.Question, step.Title)
}

func TestValidateStepAliases(t *testing.T) {
	step := ValidateStep(map[string]any{
		"stepId":         "step_alias_test",
		"component_hint": "choice",
		"title":          "Pick one",
		"options":        []any{"A thing", "Another thing"},
		"allow_multiple": true,
	})

	require.NotNil(t, step)
	// Underscores normalize to hyphens, legacy keys are honored.
	assert.Equal(t, "step-alias-test", step.ID)
	assert.Equal(t, entity.StepTypeMultipleChoice, step.Type)
	assert.Equal(t, "Pick one", step.Question)
	require.NotNil(t, step.AllowMultiple)
	assert.True(t, *step.AllowMultiple)
}

func TestValidateStepUnknownType(t *testing.T) {
	assert.Nil(t, ValidateStep(map[string]any{"id": "step-x", "type": "hologram"}))
	assert.Nil(t, ValidateStep(map[string]any{"id": "step-x"}))
	assert.Nil(t, ValidateStep(nil))
}

func TestValidateStepChoiceWithoutOptions(t *testing.T) {
	candidate := choiceCandidate()
	delete(candidate, "options")
	assert.Nil(t, ValidateStep(candidate))

	candidate = choiceCandidate()
	candidate["options"] = []any{"<<max_depth>>"}
	assert.Nil(t, ValidateStep(candidate), "placeholder-only options leave nothing usable")
}

func TestValidateStepBannedOptions(t *testing.T) {
	candidate := choiceCandidate()
	candidate["options"] = []any{"Red", "Blue", "Green"}
	assert.Nil(t, ValidateStep(candidate))
}

func TestValidateStepCompositeRequiresBlocks(t *testing.T) {
	assert.Nil(t, ValidateStep(map[string]any{
		"id":       "step-preview",
		"type":     "composite",
		"question": "Preview?",
	}))

	step := ValidateStep(map[string]any{
		"id":       "step-preview",
		"type":     "composite",
		"question": "Preview?",
		"blocks":   []any{map[string]any{"type": "text", "text": "Preview?"}},
	})
	require.NotNil(t, step)
	assert.Len(t, step.Blocks, 1)
}

func TestValidateStepFallbackID(t *testing.T) {
	candidate := choiceCandidate()
	delete(candidate, "id")
	step := ValidateStep(candidate)

	require.NotNil(t, step)
	assert.Equal(t, "step-multiple-choice-what-kind-of-project-is-this-kitchen", step.ID)
	assert.LessOrEqual(t, len(step.ID), 64)
}

func TestValidateStepFunctionCall(t *testing.T) {
	step := ValidateStep(map[string]any{
		"id":       "step-image-preview-trigger",
		"type":     "composite",
		"question": "Want a preview?",
		"blocks":   []any{map[string]any{"type": "text", "text": "Preview"}},
		"function_call": map[string]any{
			"name": "generate_image_preview",
			"args": map[string]any{"source": "form_answers"},
		},
	})

	require.NotNil(t, step)
	require.NotNil(t, step.FunctionCall)
	assert.Equal(t, "generate_image_preview", step.FunctionCall.Name)
}

func TestResolveMetricGainDefaults(t *testing.T) {
	tests := []struct {
		stepType string
		extra    map[string]any
		want     float64
	}{
		{"multiple_choice", nil, 0.12},
		{"slider", nil, 0.1},
		{"text_input", nil, 0.08},
		{"file_upload", nil, 0.15},
		{"confirmation", nil, 0.05},
		// Required nudges up, capped.
		{"file_upload", map[string]any{"required": true}, 0.18},
		// Explicitly optional nudges down, floored.
		{"confirmation", map[string]any{"required": false}, 0.03},
		// An explicit metricGain wins.
		{"slider", map[string]any{"metricGain": 0.2}, 0.2},
	}
	for _, tt := range tests {
		candidate := map[string]any{
			"id":       "step-x",
			"type":     tt.stepType,
			"question": "How much?",
		}
		if tt.stepType == "multiple_choice" {
			candidate["options"] = []any{"Kitchen", "Bathroom"}
		}
		for k, v := range tt.extra {
			candidate[k] = v
		}
		step := ValidateStep(candidate)
		require.NotNil(t, step, tt.stepType)
		assert.InDelta(t, tt.want, step.MetricGain, 1e-9, "type %s extra %v", tt.stepType, tt.extra)
	}
}

func TestFallbackStepIDDeterministic(t *testing.T) {
	a := FallbackStepID("yes_no", "Do you have existing materials to keep around?", nil)
	b := FallbackStepID("yes_no", "Do you have existing materials to keep around?", nil)
	assert.Equal(t, a, b)
	// Only the first six question words contribute.
	assert.Equal(t, "step-yes-no-do-you-have-existing-materials-to", a)
}

func TestLooksLikeUploadStepID(t *testing.T) {
	assert.True(t, LooksLikeUploadStepID("step-upload-room"))
	assert.True(t, LooksLikeUploadStepID("step-FILE-picker"))
	assert.False(t, LooksLikeUploadStepID("step-budget"))
}
