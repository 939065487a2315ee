package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveStage(t *testing.T) {
	tests := []struct {
		name         string
		batchIndex   int
		totalBatches int
		want         string
	}{
		{"first batch", 0, 3, StageEarly},
		{"middle batch", 1, 3, StageMiddle},
		{"last batch", 2, 3, StageLate},
		{"beyond last", 5, 3, StageLate},
		{"single batch total", 0, 1, StageEarly},
		{"negative index", -1, 3, StageEarly},
		{"zero total", 2, 0, StageEarly},
		{"two batches", 1, 2, StageLate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveStage(tt.batchIndex, tt.totalBatches))
		})
	}
}

func TestStageComponentsWiden(t *testing.T) {
	early := AllowedComponents(StageEarly)
	middle := AllowedComponents(StageMiddle)
	late := AllowedComponents(StageLate)

	asSet := func(list []string) map[string]struct{} {
		out := make(map[string]struct{}, len(list))
		for _, v := range list {
			out[v] = struct{}{}
		}
		return out
	}

	middleSet := asSet(middle)
	for _, v := range early {
		assert.Contains(t, middleSet, v, "middle stage must include every early component")
	}
	lateSet := asSet(late)
	for _, v := range middle {
		assert.Contains(t, lateSet, v, "late stage must include every middle component")
	}
	assert.Contains(t, lateSet, "file_upload")
	assert.NotContains(t, asSet(early), "file_upload")
}

func TestAllowedComponentsUnknownStage(t *testing.T) {
	assert.Equal(t, AllowedComponents(StageEarly), AllowedComponents("bogus"))
}

func TestAllowedComponentsReturnsCopy(t *testing.T) {
	a := AllowedComponents(StageMiddle)
	a[0] = "mutated"
	assert.NotEqual(t, "mutated", AllowedComponents(StageMiddle)[0])
}

func TestApplyGuideIntersectsWithStageSet(t *testing.T) {
	ctx := &Context{Constraints: DefaultConstraints}

	// file_upload is not allowed in the early stage; multiple_choice survives.
	allowed, _ := ApplyGuide(ctx, 1, []string{"multiple_choice", "file_upload"}, 3)
	assert.Equal(t, []string{"multiple_choice"}, allowed)
	require.NotNil(t, ctx.FlowGuide)
	assert.Equal(t, StageEarly, ctx.FlowGuide.Stage)
	assert.True(t, ctx.PreferStructuredInputs)
}

func TestApplyGuideEmptyIntersectionFallsBack(t *testing.T) {
	ctx := &Context{Constraints: DefaultConstraints}

	// Nothing the client asked for is allowed early; the full stage set wins.
	allowed, _ := ApplyGuide(ctx, 1, []string{"file_upload", "gallery"}, 3)
	assert.Equal(t, AllowedComponents(StageEarly), allowed)
	assert.NotEmpty(t, allowed)
}

func TestApplyGuideEmptyClientListUsesStageDefault(t *testing.T) {
	ctx := &Context{Constraints: DefaultConstraints}

	allowed, _ := ApplyGuide(ctx, 2, nil, 4)
	assert.Equal(t, AllowedComponents(StageMiddle), allowed)
}

func TestApplyGuideClampsMaxSteps(t *testing.T) {
	ctx := &Context{Constraints: DefaultConstraints}

	// Early stage tightens to <=3 even though the batch range allows 4.
	_, maxSteps := ApplyGuide(ctx, 1, nil, 10)
	assert.Equal(t, 3, maxSteps)

	// Middle stage allows 4.
	_, maxSteps = ApplyGuide(ctx, 2, nil, 10)
	assert.Equal(t, 4, maxSteps)

	// Below the minimum gets raised.
	_, maxSteps = ApplyGuide(ctx, 2, nil, 1)
	assert.Equal(t, DefaultConstraints.MinStepsPerBatch, maxSteps)

	// Zero means "use the batch default", still clamped.
	_, maxSteps = ApplyGuide(ctx, 3, nil, 0)
	assert.Equal(t, DefaultConstraints.MaxStepsPerBatch, maxSteps)
}

func TestGuideForBatchLateStageAllowsUploads(t *testing.T) {
	ctx := &Context{Constraints: DefaultConstraints}
	guide := GuideForBatch(ctx, 3)

	assert.Equal(t, StageLate, guide.Stage)
	assert.False(t, guide.Rules.PreferStructuredInputs)
	assert.Contains(t, guide.Rules.AllowedMiniTypesDefault, "file_upload")
}

func TestPreferStructuredMiniTypes(t *testing.T) {
	// Text is dropped when structured types are present.
	out := PreferStructuredMiniTypes([]string{"multiple_choice", "text_input", "slider"})
	assert.Equal(t, []string{"multiple_choice", "slider"}, out)

	// Without structured alternatives, text stays.
	out = PreferStructuredMiniTypes([]string{"text_input", "file_upload"})
	assert.Equal(t, []string{"text_input", "file_upload"}, out)
}

func TestAllowedTypeMatchesAliases(t *testing.T) {
	allowed := map[string]struct{}{"multiple_choice": {}, "slider": {}, "file_upload": {}}

	assert.True(t, AllowedTypeMatches("choice", allowed))
	assert.True(t, AllowedTypeMatches("rating", allowed))
	assert.True(t, AllowedTypeMatches("upload", allowed))
	assert.False(t, AllowedTypeMatches("gallery", allowed))
	assert.False(t, AllowedTypeMatches("", allowed))

	// Empty set allows everything.
	assert.True(t, AllowedTypeMatches("anything", nil))
}
