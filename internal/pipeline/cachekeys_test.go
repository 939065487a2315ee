package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortHash(t *testing.T) {
	assert.Equal(t, "none", ShortHash("", 10))
	assert.Equal(t, "none", ShortHash("   ", 10))

	h := ShortHash("interior design services", 10)
	assert.Len(t, h, 10)
	assert.Equal(t, h, ShortHash("interior design services", 10))
	assert.NotEqual(t, h, ShortHash("different text", 10))

	// A huge n keeps the full digest.
	assert.Len(t, ShortHash("x", 500), 64)
}

func TestPlannerCacheKey(t *testing.T) {
	key := PlannerCacheKey("sess-1", "abc123def0", "tryon")
	assert.Equal(t, "question_plan:sess-1:abc123def0:tryon", key)

	// Missing session disables caching entirely.
	assert.Empty(t, PlannerCacheKey("", "abc123def0", "tryon"))
	assert.Empty(t, PlannerCacheKey("   ", "abc123def0", "tryon"))

	// Use case is lowercased, empty becomes "none".
	assert.Equal(t, "question_plan:s:f:tryon", PlannerCacheKey("s", "f", "TryOn"))
	assert.Equal(t, "question_plan:s:f:none", PlannerCacheKey("s", "f", ""))
}

func TestRenderCacheKeyTypeOrderInvariant(t *testing.T) {
	a := RenderCacheKey("sess-1", "3", `{"plan":[]}`, `{"ctx":1}`, []string{"yes_no", "multiple_choice"})
	b := RenderCacheKey("sess-1", "3", `{"plan":[]}`, `{"ctx":1}`, []string{"Multiple_Choice", "YES_NO"})
	assert.Equal(t, a, b)
}

func TestRenderCacheKeySchemaVersionSensitive(t *testing.T) {
	a := RenderCacheKey("sess-1", "3", `{"plan":[]}`, `{"ctx":1}`, []string{"yes_no"})
	b := RenderCacheKey("sess-1", "4", `{"plan":[]}`, `{"ctx":1}`, []string{"yes_no"})
	assert.NotEqual(t, a, b)
}

func TestRenderCacheKeyPlanSensitive(t *testing.T) {
	a := RenderCacheKey("sess-1", "3", `{"plan":["x"]}`, `{"ctx":1}`, nil)
	b := RenderCacheKey("sess-1", "3", `{"plan":["y"]}`, `{"ctx":1}`, nil)
	assert.NotEqual(t, a, b)

	assert.Empty(t, RenderCacheKey("", "3", "{}", "{}", nil))
}
