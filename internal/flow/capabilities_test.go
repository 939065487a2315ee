package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/intakeflow/intake-backend/internal/entity"
)

func TestComputeCapabilitiesThresholds(t *testing.T) {
	// Two answers: nothing unlocks.
	caps := ComputeCapabilities(map[string]any{
		"project_type": "bathroom",
		"space_size":   "small",
	}, nil, nil)
	assert.False(t, caps["image_preview"])
	assert.False(t, caps["recommendations"])
	assert.False(t, caps["finalization"])

	// Three answers unlock the preview.
	caps = ComputeCapabilities(map[string]any{
		"project_type": "bathroom",
		"space_size":   "small",
		"style":        "modern",
	}, nil, nil)
	assert.True(t, caps["image_preview"])
	assert.False(t, caps["recommendations"])

	// Five answers: preview plus recommendations (5/6 >= 0.7).
	caps = ComputeCapabilities(map[string]any{
		"a": "1", "b": "2", "c": "3", "d": "4", "e": "5",
	}, nil, nil)
	assert.True(t, caps["recommendations"])
	assert.False(t, caps["finalization"])

	// Eight answers finalize even past the completeness target.
	caps = ComputeCapabilities(map[string]any{
		"a": "1", "b": "2", "c": "3", "d": "4", "e": "5", "f": "6", "g": "7", "h": "8",
	}, nil, nil)
	assert.True(t, caps["finalization"])
}

func TestComputeCapabilitiesPricingPreview(t *testing.T) {
	// Budget without a timeline is not enough.
	caps := ComputeCapabilities(map[string]any{"budget_range": "5k"}, nil, nil)
	assert.False(t, caps["pricing_preview"])

	caps = ComputeCapabilities(map[string]any{
		"budget_range":  "5k",
		"project_start": "",
	}, nil, nil)
	assert.False(t, caps["pricing_preview"], "empty timeline answer does not count")

	caps = ComputeCapabilities(map[string]any{
		"budget_range": "5k",
		"timeline":     "next month",
	}, nil, nil)
	assert.True(t, caps["pricing_preview"])

	// Loose key matching: deadline counts as a timeline signal.
	caps = ComputeCapabilities(map[string]any{
		"total_cost":       "12000",
		"project_deadline": "2026-10-01",
	}, nil, nil)
	assert.True(t, caps["pricing_preview"])
}

func TestComputeCapabilitiesMonotonic(t *testing.T) {
	previous := map[string]bool{"image_preview": true, "pricing_preview": true}

	// No answers at all, but previously unlocked flags survive.
	caps := ComputeCapabilities(nil, nil, previous)
	assert.True(t, caps["image_preview"])
	assert.True(t, caps["pricing_preview"])
	assert.False(t, caps["finalization"])
}

func TestComputeCapabilitiesStableKeySet(t *testing.T) {
	caps := ComputeCapabilities(nil, nil, nil)
	assert.Len(t, caps, len(CapabilityKeys))
	for _, key := range CapabilityKeys {
		assert.Contains(t, caps, key)
	}
}

func TestComputeCapabilitiesCountsQAWhenLarger(t *testing.T) {
	qa := []entity.AnsweredQA{
		{StepID: "step-a", Answer: "1"},
		{StepID: "step-b", Answer: "2"},
		{StepID: "step-c", Answer: "3"},
	}
	caps := ComputeCapabilities(nil, qa, nil)
	assert.True(t, caps["image_preview"])
}

func TestCapabilitiesFieldIgnoredAsAnswer(t *testing.T) {
	caps := ComputeCapabilities(map[string]any{
		CapabilitiesField: map[string]any{"image_preview": true, "x": true, "y": true},
		"only_answer":     "yes",
	}, nil, nil)
	assert.False(t, caps["image_preview"], "persisted flags are not answers")
}

func TestPreviousCapabilities(t *testing.T) {
	out := PreviousCapabilities(map[string]any{
		CapabilitiesField: map[string]any{
			"image_preview":   true,
			"recommendations": false,
			"junk":            "yes",
		},
	})
	assert.Equal(t, map[string]bool{"image_preview": true}, out)

	assert.Empty(t, PreviousCapabilities(nil))
	assert.Empty(t, PreviousCapabilities(map[string]any{CapabilitiesField: "broken"}))
}
