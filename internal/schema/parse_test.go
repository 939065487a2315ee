package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBestEffortParseJSONStrict(t *testing.T) {
	parsed := BestEffortParseJSON(`{"plan":[{"key":"budget"}]}`)
	m, ok := parsed.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, m, "plan")
}

func TestBestEffortParseJSONFenced(t *testing.T) {
	raw := "```json\n{\"plan\":[]}\n```"
	parsed := BestEffortParseJSON(raw)
	_, ok := parsed.(map[string]any)
	assert.True(t, ok)
}

func TestBestEffortParseJSONEmbedded(t *testing.T) {
	raw := `Sure! Here is the plan you asked for: [{"key":"budget"},{"key":"timeline"}] hope that helps.`
	parsed := BestEffortParseJSON(raw)
	list, ok := parsed.([]any)
	require.True(t, ok)
	assert.Len(t, list, 2)
}

func TestBestEffortParseJSONGarbage(t *testing.T) {
	assert.Nil(t, BestEffortParseJSON("this is not json at all"))
	assert.Nil(t, BestEffortParseJSON(""))
	assert.Nil(t, BestEffortParseJSON("   \n\t "))
}

func TestParseJSONTieredReportsRecoveryTier(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		tier ParseTier
	}{
		{"strict", `{"plan":[]}`, ParseTierStrict},
		{"fenced", "```json\n{\"plan\":[]}\n```", ParseTierFenced},
		{"bracket", `Here you go: {"plan":[]} enjoy.`, ParseTierBracket},
		{"none", "no json here", ParseTierNone},
		{"empty", "", ParseTierNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, tier := ParseJSONTiered(tt.raw)
			assert.Equal(t, tt.tier, tier)
			assert.Equal(t, tier != ParseTierNone, parsed != nil)
		})
	}
}

func TestParseTierString(t *testing.T) {
	assert.Equal(t, "strict", ParseTierStrict.String())
	assert.Equal(t, "fenced", ParseTierFenced.String())
	assert.Equal(t, "bracket", ParseTierBracket.String())
	assert.Equal(t, "none", ParseTierNone.String())
}

func TestParseJSONLObjectsLines(t *testing.T) {
	raw := `{"id":"step-a","type":"yes_no"}
{"id":"step-b","type":"slider"}
not json
{"id":"step-c","type":"file_upload"}`

	out := ParseJSONLObjects(raw)
	require.Len(t, out, 3)
	assert.Equal(t, "step-a", out[0]["id"])
	assert.Equal(t, "step-c", out[2]["id"])
}

func TestParseJSONLObjectsWholeArray(t *testing.T) {
	out := ParseJSONLObjects(`[{"id":"step-a"},{"id":"step-b"}]`)
	require.Len(t, out, 2)
}

func TestParseJSONLObjectsStepsWrapper(t *testing.T) {
	out := ParseJSONLObjects(`{"steps":[{"id":"step-a"},{"id":"step-b"},{"id":"step-c"}]}`)
	assert.Len(t, out, 3)
}

func TestParseJSONLObjectsFenced(t *testing.T) {
	raw := "```json\n{\"id\":\"step-a\"}\n{\"id\":\"step-b\"}\n```"
	assert.Len(t, ParseJSONLObjects(raw), 2)
}

func TestParseJSONLObjectsEmpty(t *testing.T) {
	assert.Empty(t, ParseJSONLObjects(""))
	assert.Empty(t, ParseJSONLObjects("total garbage"))
}

func TestParseJSONLObjectsStatsCleanLines(t *testing.T) {
	out, stats := ParseJSONLObjectsStats("{\"id\":\"step-a\"}\n{\"id\":\"step-b\"}")
	assert.Len(t, out, 2)
	assert.Equal(t, ParseTierStrict, stats.Tier)
	assert.Zero(t, stats.SkippedLines)
}

func TestParseJSONLObjectsStatsCountsSkippedLines(t *testing.T) {
	raw := "{\"id\":\"step-a\"}\nchit-chat\n{\"id\":\"step-b\"}\nmore chit-chat"
	out, stats := ParseJSONLObjectsStats(raw)
	assert.Len(t, out, 2)
	assert.Equal(t, 2, stats.SkippedLines)
}

func TestParseJSONLObjectsStatsFencedTier(t *testing.T) {
	raw := "```json\n{\"id\":\"step-a\"}\n{\"id\":\"step-b\"}\n```"
	out, stats := ParseJSONLObjectsStats(raw)
	assert.Len(t, out, 2)
	assert.Equal(t, ParseTierFenced, stats.Tier)
}

func TestParseJSONLObjectsStatsNothingParses(t *testing.T) {
	out, stats := ParseJSONLObjectsStats("still not JSON")
	assert.Empty(t, out)
	assert.Equal(t, ParseTierNone, stats.Tier)
	assert.Equal(t, 1, stats.SkippedLines)
}

func TestCompactJSON(t *testing.T) {
	// Map keys come out sorted, so the same input always yields the same key.
	assert.Equal(t, `{"a":2,"b":1}`, CompactJSON(map[string]any{"b": 1, "a": 2}))
	assert.Equal(t, "{}", CompactJSON(make(chan int)))
}
