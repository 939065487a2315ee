package flow

import (
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intakeflow/intake-backend/internal/entity"
)

func TestBuildContextNilPayload(t *testing.T) {
	ctx := BuildContext(nil, Options{})

	require.NotNil(t, ctx)
	assert.False(t, ctx.HasServiceContext())
	assert.Equal(t, "scene", ctx.UseCase)
	assert.Equal(t, "pricing", ctx.GoalIntent)
	assert.Equal(t, DefaultConstraints.MaxBatches, ctx.Constraints.MaxBatches)
}

func TestBuildContextGroundingBackfill(t *testing.T) {
	ctx := BuildContext(&entity.NextStepsPayload{
		Industry: "Landscaping",
		Service:  "Patio installation",
	}, Options{})

	assert.True(t, ctx.HasServiceContext())
	assert.Contains(t, ctx.GroundingSummary, "Landscaping")
	assert.Contains(t, ctx.GroundingSummary, "Patio installation")
}

func TestBuildContextSummaryTruncation(t *testing.T) {
	long := strings.Repeat("x", 2000)
	ctx := BuildContext(&entity.NextStepsPayload{ServicesSummary: long}, Options{})

	assert.LessOrEqual(t, len(ctx.ServiceSummary), 1200)
	assert.LessOrEqual(t, len(ctx.ServicesSummary), 600)
	assert.Equal(t, ctx.ServicesSummary, ctx.GroundingSummary)
}

func TestBuildContextTruncatesOnRuneBoundary(t *testing.T) {
	// The odd leading byte puts every two-byte rune astride the byte caps.
	long := "a" + strings.Repeat("é", 1200)
	ctx := BuildContext(&entity.NextStepsPayload{ServicesSummary: long}, Options{})

	assert.LessOrEqual(t, len(ctx.ServiceSummary), 1200)
	assert.True(t, utf8.ValidString(ctx.ServiceSummary))
	assert.LessOrEqual(t, len(ctx.ServicesSummary), 600)
	assert.True(t, utf8.ValidString(ctx.ServicesSummary))
}

func TestExtractAnsweredQAFiltersAndCaps(t *testing.T) {
	items := []map[string]any{
		{"stepId": "step-budget", "question": "Budget?", "answer": "about 5k"},
		{"stepId": "not-a-step", "question": "ignored", "answer": "x"},
		{"stepId": "step_timeline", "question": "When?", "answer": "soon"},
		{"stepId": "step-empty"},
		nil,
		{"stepId": "step-structured", "question": "Rooms?", "answer": map[string]any{"count": float64(3)}},
	}
	qa := ExtractAnsweredQA(&entity.NextStepsPayload{AnsweredQA: items})

	require.Len(t, qa, 3)
	assert.Equal(t, "step-budget", qa[0].StepID)
	// Underscore ids are normalized to the hyphen form.
	assert.Equal(t, "step-timeline", qa[1].StepID)
	// Structured answers flatten to compact JSON.
	assert.Equal(t, "step-structured", qa[2].StepID)
	assert.Contains(t, qa[2].Answer, `"count":3`)
}

func TestExtractAnsweredQACap(t *testing.T) {
	var items []map[string]any
	for i := 0; i < 40; i++ {
		items = append(items, map[string]any{
			"stepId":   "step-q" + strconv.Itoa(i),
			"question": "q?",
			"answer":   "a",
		})
	}
	qa := ExtractAnsweredQA(&entity.NextStepsPayload{AnsweredQA: items})
	assert.LessOrEqual(t, len(qa), 24)
}

func TestExtractAskedStepIDsDedupes(t *testing.T) {
	qa := []entity.AnsweredQA{{StepID: "step-budget", Answer: "5k"}}
	payload := &entity.NextStepsPayload{
		AskedStepIDs: []string{"step-budget", "step_timeline", "junk", "step-timeline"},
	}
	asked := ExtractAskedStepIDs(payload, qa)

	assert.Equal(t, []string{"step-budget", "step-timeline"}, asked)
}

func TestExtractRequiredUploadsFromCurrentBatch(t *testing.T) {
	payload := &entity.NextStepsPayload{
		CurrentBatch: map[string]any{
			"requiredUploads": []any{
				map[string]any{"stepId": "step-upload-room"},
				map[string]any{"stepId": "step-upload-room"},
				map[string]any{"stepId": "bogus"},
			},
		},
	}
	uploads := ExtractRequiredUploads(payload)

	require.Len(t, uploads, 1)
	assert.Equal(t, "step-upload-room", uploads[0].StepID)
}

func TestExtractUseCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "scene"},
		{"Try-On", "tryon"},
		{"virtual try on", "tryon"},
		{"scene_placement", "scene_placement"},
		{"product placement", "scene_placement"},
		{"Scene", "scene"},
		{"something else", "something_else"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractUseCase(tt.in), "input %q", tt.in)
	}
}

func TestInferGoalIntent(t *testing.T) {
	assert.Equal(t, "visual", InferGoalIntent("visual"))
	assert.Equal(t, "pricing", InferGoalIntent("PRICING"))
	assert.Equal(t, "pricing", InferGoalIntent(""))
	assert.Equal(t, "pricing", InferGoalIntent("unknown"))
}

func TestExtractTokenBudget(t *testing.T) {
	total, used := ExtractTokenBudget(map[string]any{
		"tokensTotalBudget": float64(3000),
		"tokensUsedSoFar":   float64(1200),
	})
	assert.Equal(t, 3000, total)
	assert.Equal(t, 1200, used)

	total, used = ExtractTokenBudget(nil)
	assert.Zero(t, total)
	assert.Zero(t, used)

	total, used = ExtractTokenBudget(map[string]any{"tokensTotalBudget": float64(-5)})
	assert.Zero(t, total)
	assert.Zero(t, used)
}

func TestExtractAllowedMiniTypes(t *testing.T) {
	// Explicit list wins.
	payload := &entity.NextStepsPayload{AllowedMiniTypes: []any{"Multiple_Choice", " yes_no "}}
	assert.Equal(t, []string{"Multiple_Choice", "yes_no"}, ExtractAllowedMiniTypes(payload))

	// Comma string form.
	payload = &entity.NextStepsPayload{AllowedMiniTypes: "slider, rating"}
	assert.Equal(t, []string{"slider", "rating"}, ExtractAllowedMiniTypes(payload))

	// Legacy per-batch component types with the text alias.
	payload = &entity.NextStepsPayload{CurrentBatch: map[string]any{
		"allowedComponentTypes": []any{"text", "yes_no"},
	}}
	assert.Equal(t, []string{"text_input", "yes_no"}, ExtractAllowedMiniTypes(payload))
}

func TestBuildContextChoiceBounds(t *testing.T) {
	ctx := BuildContext(&entity.NextStepsPayload{
		ServicesSummary:    "summary",
		ChoiceOptionMin:    float64(3),
		ChoiceOptionMax:    float64(5),
		ChoiceOptionTarget: float64(4),
	}, Options{})

	assert.Equal(t, 3, ctx.ChoiceOptionMin)
	assert.Equal(t, 5, ctx.ChoiceOptionMax)
	assert.Equal(t, 4, ctx.ChoiceOptionTarget)

	// Without explicit bounds the target still lands inside the range.
	ctx = BuildContext(&entity.NextStepsPayload{ServicesSummary: "summary"}, Options{})
	assert.GreaterOrEqual(t, ctx.ChoiceOptionTarget, ctx.ChoiceOptionMin)
	assert.LessOrEqual(t, ctx.ChoiceOptionTarget, ctx.ChoiceOptionMax)
}

func TestBuildContextTokenBudgetClamp(t *testing.T) {
	ctx := BuildContext(&entity.NextStepsPayload{
		ServicesSummary: "summary",
		BatchState:      map[string]any{"tokensTotalBudget": float64(100000)},
	}, Options{})
	assert.Equal(t, 5000, ctx.Constraints.TokenBudgetTotal)

	ctx = BuildContext(&entity.NextStepsPayload{
		ServicesSummary: "summary",
		BatchState:      map[string]any{"tokensTotalBudget": float64(10)},
	}, Options{})
	assert.Equal(t, 3000, ctx.Constraints.TokenBudgetTotal)
}
