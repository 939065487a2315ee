package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/intakeflow/intake-backend/internal/entity"
)

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

// bannedOptionSets are "toy" option sets the renderer sometimes hallucinates
// for abstract prompts. A step whose single-token option set covers one of
// these (with at most one extra token) is dropped outright.
var bannedOptionSets = [][]string{
	{"red", "blue", "green"},
	{"circle", "square", "triangle"},
}

var bannedOptionTerms = []string{"abstract"}

// placeholderPatterns mark options leaked from a truncated generation pass.
var placeholderPatterns = []string{"<<max_depth>>", "<<max_depth", "max_depth>>", "<max_depth>", "max_depth"}

// NormalizeOptionLabel lowercases and squashes punctuation to single spaces.
func NormalizeOptionLabel(text string) string {
	return strings.TrimSpace(nonAlnumRe.ReplaceAllString(strings.ToLower(text), " "))
}

// SlugOptionValue derives a snake_case value from a label; never empty.
func SlugOptionValue(label string) string {
	base := strings.Trim(strings.ReplaceAll(NormalizeOptionLabel(label), " ", "_"), "_")
	if base == "" {
		return "option"
	}
	return base
}

// CoerceOptions normalizes a raw options array into the canonical
// {label, value} form. Strings get slugged values; duplicate values get a
// numeric suffix; entries with empty labels are dropped.
func CoerceOptions(raw any) []entity.Option {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]entity.Option, 0, len(list))
	seen := make(map[string]int)
	for _, item := range list {
		var label, value string
		switch opt := item.(type) {
		case string:
			label = strings.TrimSpace(opt)
			value = SlugOptionValue(label)
		case map[string]any:
			label = strings.TrimSpace(stringOf(opt["label"]))
			value = strings.TrimSpace(stringOf(opt["value"]))
			if label == "" {
				label = value
			}
			if value == "" {
				value = SlugOptionValue(label)
			}
		default:
			continue
		}
		if label == "" {
			continue
		}
		if n, dup := seen[value]; dup {
			seen[value] = n + 1
			value = fmt.Sprintf("%s_%d", value, n+1)
		} else {
			seen[value] = 1
		}
		out = append(out, entity.Option{Label: label, Value: value})
	}
	return out
}

// CleanOptions drops generation-placeholder options, then coerces the rest.
func CleanOptions(raw any) []entity.Option {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	cleaned := make([]any, 0, len(list))
	for _, item := range list {
		var combined string
		switch opt := item.(type) {
		case string:
			combined = opt
		case map[string]any:
			combined = stringOf(opt["label"]) + " " + stringOf(opt["value"])
		default:
			continue
		}
		if containsPlaceholder(combined) {
			continue
		}
		cleaned = append(cleaned, item)
	}
	return CoerceOptions(cleaned)
}

func containsPlaceholder(s string) bool {
	low := strings.ToLower(s)
	for _, p := range placeholderPatterns {
		if strings.Contains(low, p) {
			return true
		}
	}
	return false
}

func optionTokenSet(options []entity.Option) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, opt := range options {
		label := opt.Label
		if label == "" {
			label = opt.Value
		}
		norm := NormalizeOptionLabel(label)
		if norm == "" {
			continue
		}
		parts := strings.Fields(norm)
		if len(parts) == 1 {
			tokens[parts[0]] = struct{}{}
		}
	}
	return tokens
}

// HasBannedOptionSet reports whether the option list is one of the known toy
// sets or contains a banned term.
func HasBannedOptionSet(options []entity.Option) bool {
	if len(options) == 0 {
		return false
	}
	tokens := optionTokenSet(options)
	for _, banned := range bannedOptionSets {
		covered := true
		for _, t := range banned {
			if _, ok := tokens[t]; !ok {
				covered = false
				break
			}
		}
		if covered && len(tokens) <= len(banned)+1 {
			return true
		}
	}
	for _, opt := range options {
		combined := strings.ToLower(opt.Label + " " + opt.Value)
		for _, term := range bannedOptionTerms {
			if strings.Contains(combined, term) {
				return true
			}
		}
	}
	return false
}

func stringOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", t), "0"), ".")
	case bool:
		return fmt.Sprintf("%t", t)
	}
	return ""
}
