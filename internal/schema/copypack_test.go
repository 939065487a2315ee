package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intakeflow/intake-backend/internal/entity"
)

func TestLoadCopyPackUnknownIDFallsBack(t *testing.T) {
	pack := LoadCopyPack("does_not_exist")
	assert.Equal(t, DefaultCopyPackID, pack.PackID)

	pack = LoadCopyPack("")
	assert.Equal(t, DefaultCopyPackID, pack.PackID)
	assert.NotEmpty(t, pack.StyleJSON())
	assert.True(t, pack.Lint.RequireQuestionMark)
}

func TestSanitizeStepsStripsTrailingParenthetical(t *testing.T) {
	pack := LoadCopyPack("")
	steps := SanitizeSteps([]entity.Step{
		{
			ID:       "step-service",
			Type:     entity.StepTypeMultipleChoice,
			Title:    "What do you need (install, replace, repair)",
			Question: "What do you need (install, replace, repair)",
		},
	}, pack.Lint)

	require.Len(t, steps, 1)
	assert.Equal(t, "What do you need?", steps[0].Question)
	assert.Equal(t, steps[0].Question, steps[0].Title)
}

func TestSanitizeStepsEnforcesQuestionMark(t *testing.T) {
	pack := LoadCopyPack("")
	steps := SanitizeSteps([]entity.Step{
		{ID: "step-a", Type: entity.StepTypeYesNo, Question: "Keep existing materials."},
		{ID: "step-b", Type: entity.StepTypeYesNo, Question: "Already terminated?"},
		{ID: "step-c", Type: entity.StepTypeConfirmation, Question: ""},
	}, pack.Lint)

	assert.Equal(t, "Keep existing materials?", steps[0].Question)
	assert.Equal(t, "Already terminated?", steps[1].Question)
	assert.Empty(t, steps[2].Question, "empty questions are left alone")
}

func TestSanitizeStepsNoQuestionMarkWhenDisabled(t *testing.T) {
	steps := SanitizeSteps([]entity.Step{
		{ID: "step-a", Question: "Keep existing materials."},
	}, LintRules{RequireQuestionMark: false})

	assert.Equal(t, "Keep existing materials.", steps[0].Question)
}

func TestLintSteps(t *testing.T) {
	pack := LoadCopyPack("")
	long := make([]byte, 130)
	for i := range long {
		long[i] = 'x'
	}

	violations := LintSteps([]entity.Step{
		{ID: "", Question: "Valid?"},
		{ID: "step-a", Question: ""},
		{ID: "step-b", Question: "No mark"},
		{ID: "step-c", Question: string(long) + "?"},
		{ID: "step-d", Question: "What do you need (install, replace, repair)?"},
		{ID: "step-e", Question: "All fine here?"},
	}, pack.Lint)

	codes := make([]string, 0, len(violations))
	for _, v := range violations {
		codes = append(codes, v.Code)
	}
	assert.Equal(t, []string{
		"missing_id",
		"missing_question",
		"question_no_qmark",
		"question_too_long",
		"banned_phrase",
	}, codes)
}
