package flow

import (
	"regexp"
	"strings"

	"github.com/intakeflow/intake-backend/internal/entity"
)

// CapabilityKeys is the stable set of backend-owned capability flags exposed
// to clients. The set never changes shape across a session.
var CapabilityKeys = []string{"image_preview", "recommendations", "pricing_preview", "finalization"}

// CapabilitiesField is the reserved stepDataSoFar key clients use to persist
// flags between calls; it never counts as an answer.
const CapabilitiesField = "__capabilities"

var capKeyCleaner = regexp.MustCompile(`[^a-z0-9]+`)

func normCapKey(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	if t == "" {
		return ""
	}
	t = capKeyCleaner.ReplaceAllString(t, "_")
	return strings.Trim(t, "_")
}

func isNonEmptyAnswer(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		// Booleans are meaningful answers.
		return true
	case float64, int, int64:
		return true
	case string:
		return strings.TrimSpace(t) != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

func answeredCountFromStepData(stepData map[string]any) int {
	n := 0
	for k, v := range stepData {
		if k == CapabilitiesField {
			continue
		}
		if isNonEmptyAnswer(v) {
			n++
		}
	}
	return n
}

func answeredCountFromQA(qa []entity.AnsweredQA) int {
	n := 0
	for _, item := range qa {
		if strings.TrimSpace(item.Answer) != "" {
			n++
		}
	}
	return n
}

// hasAnswer is a best-effort presence check for a semantic answer key. The
// service is multi-vertical with no fixed ontology of question keys, so the
// match is deliberately loose: exact, prefix, suffix, or substring.
func hasAnswer(stepData map[string]any, key string) bool {
	want := normCapKey(key)
	if want == "" {
		return false
	}
	for k, v := range stepData {
		nk := normCapKey(k)
		if nk == "" {
			continue
		}
		if nk == want || strings.HasSuffix(nk, "_"+want) || strings.HasPrefix(nk, want+"_") || strings.Contains(nk, want) {
			if isNonEmptyAnswer(v) {
				return true
			}
		}
	}
	return false
}

// ComputeCapabilities derives the capability flags from known answers.
// Deterministic, and monotonic across calls: a flag that was ever true in
// previous stays true in the result.
func ComputeCapabilities(stepData map[string]any, answeredQA []entity.AnsweredQA, previous map[string]bool) map[string]bool {
	answeredN := answeredCountFromStepData(stepData)
	if qaN := answeredCountFromQA(answeredQA); qaN > answeredN {
		answeredN = qaN
	}

	// Completeness proxy for generic flows: 6 answers is "complete enough"
	// for most mid-flow experiences.
	const target = 6.0
	completeness := float64(answeredN) / target
	if completeness > 1.0 {
		completeness = 1.0
	}

	computed := make(map[string]bool, len(CapabilityKeys))
	computed["image_preview"] = answeredN >= 3
	computed["recommendations"] = computed["image_preview"] && completeness >= 0.7

	hasBudget := hasAnswer(stepData, "budget") || hasAnswer(stepData, "price") || hasAnswer(stepData, "cost")
	hasTimeline := hasAnswer(stepData, "timeline") || hasAnswer(stepData, "date") ||
		hasAnswer(stepData, "start_date") || hasAnswer(stepData, "deadline")
	computed["pricing_preview"] = hasBudget && hasTimeline

	computed["finalization"] = completeness >= 1.0 || answeredN >= 8

	out := make(map[string]bool, len(CapabilityKeys))
	for _, k := range CapabilityKeys {
		out[k] = previous[k] || computed[k]
	}
	return out
}

// PreviousCapabilities reads persisted flags out of stepDataSoFar, tolerating
// the loose shapes clients send.
func PreviousCapabilities(stepData map[string]any) map[string]bool {
	out := make(map[string]bool)
	raw, ok := stepData[CapabilitiesField].(map[string]any)
	if !ok {
		return out
	}
	for k, v := range raw {
		if b, ok := v.(bool); ok && b {
			out[k] = true
		}
	}
	return out
}
