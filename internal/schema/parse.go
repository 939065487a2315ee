package schema

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fenceOpenRe  = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	fenceCloseRe = regexp.MustCompile("(?i)\\s*```$")
	bracketRe    = regexp.MustCompile(`(\[[\s\S]*\]|\{[\s\S]*\})`)
)

// ParseTier records which recovery tier produced a parse, ordered from
// cleanest to most degraded. Callers log it so model-output repair rates
// stay visible.
type ParseTier int

const (
	ParseTierNone ParseTier = iota
	ParseTierStrict
	ParseTierFenced
	ParseTierBracket
)

func (t ParseTier) String() string {
	switch t {
	case ParseTierStrict:
		return "strict"
	case ParseTierFenced:
		return "fenced"
	case ParseTierBracket:
		return "bracket"
	default:
		return "none"
	}
}

func safeJSONUnmarshal(text string) any {
	var out any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil
	}
	return out
}

// StripCodeFences removes a leading ```json fence and a trailing ``` fence.
func StripCodeFences(s string) string {
	t := strings.TrimSpace(s)
	t = fenceOpenRe.ReplaceAllString(t, "")
	t = fenceCloseRe.ReplaceAllString(t, "")
	return strings.TrimSpace(t)
}

// ParseJSONTiered parses model output in three tiers: strict, fence-stripped,
// then the first bracketed block found anywhere in the text. The returned
// tier names the one that succeeded, ParseTierNone when nothing parses.
func ParseJSONTiered(text string) (any, ParseTier) {
	t := strings.TrimSpace(text)
	if t == "" {
		return nil, ParseTierNone
	}
	if parsed := safeJSONUnmarshal(t); parsed != nil {
		return parsed, ParseTierStrict
	}
	if stripped := StripCodeFences(t); stripped != t {
		if parsed := safeJSONUnmarshal(stripped); parsed != nil {
			return parsed, ParseTierFenced
		}
		t = stripped
	}
	if m := bracketRe.FindString(t); m != "" {
		if parsed := safeJSONUnmarshal(m); parsed != nil {
			return parsed, ParseTierBracket
		}
	}
	return nil, ParseTierNone
}

// BestEffortParseJSON is ParseJSONTiered for callers that only need the
// value. Returns nil when nothing parses; callers treat nil as "no output".
func BestEffortParseJSON(text string) any {
	parsed, _ := ParseJSONTiered(text)
	return parsed
}

// JSONLStats describes how renderer output was recovered: the most degraded
// tier that contributed a candidate, and how many non-empty lines parsed to
// nothing.
type JSONLStats struct {
	Tier         ParseTier
	SkippedLines int
}

// ParseJSONLObjectsStats extracts candidate step objects from renderer
// output. Primary format is JSONL (one object per line); a whole JSON array
// and fence-wrapped output are tolerated. Unparseable lines are skipped and
// counted.
func ParseJSONLObjectsStats(raw string) ([]map[string]any, JSONLStats) {
	var stats JSONLStats
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, stats
	}

	text := trimmed
	wrapTier := ParseTierStrict
	if stripped := StripCodeFences(trimmed); stripped != trimmed {
		text = stripped
		wrapTier = ParseTierFenced
	}
	if text == "" {
		return nil, stats
	}

	// A single array is a common model deviation; accept it whole.
	if parsed := safeJSONUnmarshal(text); parsed != nil {
		switch t := parsed.(type) {
		case []any:
			stats.Tier = wrapTier
			return objectsOf(t), stats
		case map[string]any:
			// Some models wrap the list in {"steps": [...]}.
			for _, k := range []string{"steps", "mini_steps", "miniSteps"} {
				if list, ok := t[k].([]any); ok {
					stats.Tier = wrapTier
					return objectsOf(list), stats
				}
			}
			stats.Tier = wrapTier
			return []map[string]any{t}, stats
		}
	}

	var out []map[string]any
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parsed, lineTier := ParseJSONTiered(line)
		switch t := parsed.(type) {
		case map[string]any:
			out = append(out, t)
		case []any:
			out = append(out, objectsOf(t)...)
		default:
			stats.SkippedLines++
			continue
		}
		if lineTier > stats.Tier {
			stats.Tier = lineTier
		}
	}
	if len(out) > 0 && wrapTier > stats.Tier {
		stats.Tier = wrapTier
	}
	return out, stats
}

// ParseJSONLObjects is ParseJSONLObjectsStats without the stats.
func ParseJSONLObjects(raw string) []map[string]any {
	out, _ := ParseJSONLObjectsStats(raw)
	return out
}

func objectsOf(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, v := range list {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// CompactJSON renders a stable compact JSON string for prompts and cache
// keys. Map keys are sorted by encoding/json; failures degrade to "{}".
func CompactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
