package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intakeflow/intake-backend/internal/entity"
)

func allowAll() map[string]struct{} { return nil }

func TestFilterRenderedStepsDropsInvalid(t *testing.T) {
	candidates := []map[string]any{
		{"id": "step-a", "type": "yes_no", "question": "Keep?", "options": []any{"Yes", "No"}},
		{"id": "step-a", "type": "yes_no", "question": "dup id", "options": []any{"Yes", "No"}},
		{"id": "", "type": "confirmation", "question": "no id"},
		{"id": "step-b", "type": "hologram", "question": "bad type"},
		{"id": "step-c", "type": "multiple_choice", "question": "no options"},
	}

	taken := map[string]struct{}{}
	steps := FilterRenderedSteps(candidates, allowAll(), nil, taken)

	require.Len(t, steps, 1)
	assert.Equal(t, "step-a", steps[0].ID)
	assert.Contains(t, taken, "step-a")
}

func TestFilterRenderedStepsAllowedTypes(t *testing.T) {
	candidates := []map[string]any{
		{"id": "step-a", "type": "yes_no", "question": "Keep?", "options": []any{"Yes", "No"}},
		{"id": "step-b", "type": "text_input", "question": "Tell us more?"},
	}
	allowed := map[string]struct{}{"yes_no": {}}

	steps := FilterRenderedSteps(candidates, allowed, nil, map[string]struct{}{})
	require.Len(t, steps, 1)
	assert.Equal(t, "step-a", steps[0].ID)
}

func TestFilterRenderedStepsUploadAllowList(t *testing.T) {
	candidates := []map[string]any{
		{"id": "step-upload-room", "type": "file_upload", "question": "Upload a photo?"},
		{"id": "step-upload-stray", "type": "file_upload", "question": "Another upload?"},
	}
	requiredIDs := map[string]struct{}{"step-upload-room": {}}

	steps := FilterRenderedSteps(candidates, allowAll(), requiredIDs, map[string]struct{}{})
	require.Len(t, steps, 1)
	assert.Equal(t, "step-upload-room", steps[0].ID)
}

func TestFilterRenderedStepsSkipsAskedIDs(t *testing.T) {
	candidates := []map[string]any{
		{"id": "step-budget", "type": "yes_no", "question": "Budget?", "options": []any{"Yes", "No"}},
	}
	taken := map[string]struct{}{"step-budget": {}}

	steps := FilterRenderedSteps(candidates, allowAll(), nil, taken)
	assert.Empty(t, steps)
}

func TestBackstopSynthesizesMissingDeterministicSteps(t *testing.T) {
	sliced := []entity.PlanItem{
		{Key: "budget"},
		{Key: "upload_reference", Deterministic: true, TypeHint: entity.StepTypeFileUpload, Question: "Upload an image.", Required: true},
		{Key: "gallery", Deterministic: true, TypeHint: entity.StepTypeGallery, Question: "Review your images."},
		{Key: "confirmation", Deterministic: true, TypeHint: entity.StepTypeConfirmation, Question: "All set. Submit when ready."},
	}

	taken := map[string]struct{}{}
	steps := BackstopDeterministicSteps(sliced, nil, allowAll(), nil, taken)

	require.Len(t, steps, 3)
	assert.Equal(t, "step-upload-reference", steps[0].ID)
	assert.Equal(t, entity.StepTypeFileUpload, steps[0].Type)
	assert.True(t, steps[0].Required)
	assert.Equal(t, "step-gallery", steps[1].ID)
	assert.Equal(t, "step-confirmation", steps[2].ID)
}

func TestBackstopSkipsAlreadyEmitted(t *testing.T) {
	sliced := []entity.PlanItem{
		{Key: "gallery", Deterministic: true, TypeHint: entity.StepTypeGallery, Question: "Review?"},
		{Key: "confirmation", Deterministic: true, TypeHint: entity.StepTypeConfirmation, Question: "Done?"},
	}
	emitted := []entity.Step{{ID: "step-gallery", Type: entity.StepTypeGallery}}
	taken := map[string]struct{}{"step-gallery": {}}

	steps := BackstopDeterministicSteps(sliced, emitted, allowAll(), nil, taken)

	require.Len(t, steps, 2)
	assert.Equal(t, "step-confirmation", steps[1].ID)
}

func TestBackstopCompositeGetsBlocks(t *testing.T) {
	sliced := []entity.PlanItem{
		{Key: "a"},
		{Key: "b"},
		{Key: TriggerKey, Deterministic: true, TypeHint: entity.StepTypeComposite, Question: "Want a preview?"},
	}

	steps := BackstopDeterministicSteps(sliced, nil, allowAll(), nil, map[string]struct{}{})

	require.Len(t, steps, 1)
	assert.Equal(t, entity.StepTypeComposite, steps[0].Type)
	require.NotEmpty(t, steps[0].Blocks)
}

func TestAttachFunctionCalls(t *testing.T) {
	fc := &entity.FunctionCall{Name: "generate_image_preview", Args: map[string]any{"source": "form_answers"}}
	sliced := []entity.PlanItem{
		{Key: TriggerKey, FunctionCall: fc, TypeHint: entity.StepTypeComposite},
		{Key: "budget"},
	}
	emitted := []entity.Step{
		// The renderer turned the trigger into a choice step; it gets forced
		// back into composite shape.
		{ID: entity.DeriveStepID(TriggerKey), Type: entity.StepTypeMultipleChoice, Question: "Preview?"},
		{ID: "step-budget", Type: entity.StepTypeMultipleChoice, Question: "Budget?"},
	}

	out := AttachFunctionCalls(emitted, sliced)

	require.NotNil(t, out[0].FunctionCall)
	assert.Equal(t, "generate_image_preview", out[0].FunctionCall.Name)
	assert.Equal(t, entity.StepTypeComposite, out[0].Type)
	assert.NotEmpty(t, out[0].Blocks)
	assert.Nil(t, out[1].FunctionCall)
}

func TestRequiredUploadIDSet(t *testing.T) {
	set := RequiredUploadIDSet([]entity.RequiredUpload{
		{StepID: "step-upload-room"},
		{StepID: "step_upload_other"},
		{StepID: ""},
	})

	assert.Len(t, set, 2)
	assert.Contains(t, set, "step-upload-room")
	assert.Contains(t, set, "step-upload-other")
}
