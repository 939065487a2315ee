package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/intakeflow/intake-backend/internal/entity"
)

const DefaultCopyPackID = "default_v1"

// CopyPack bundles question/option style guidance for the renderer prompt
// with the lint rules enforced after generation.
type CopyPack struct {
	PackID      string    `json:"pack_id"`
	PackVersion string    `json:"pack_version"`
	Style       CopyStyle `json:"style"`
	Lint        LintRules `json:"lint"`
}

type CopyStyle struct {
	Tone          string   `json:"tone"`
	QuestionRules []string `json:"question_rules"`
	OptionRules   []string `json:"option_rules"`
}

type LintRules struct {
	RequireQuestionMark      bool     `json:"require_question_mark"`
	MaxQuestionChars         int      `json:"max_question_chars"`
	BannedQuestionSubstrings []string `json:"banned_question_substrings"`
}

// LoadCopyPack returns the pack for an id; unknown ids fall back to the
// default pack rather than failing the request.
func LoadCopyPack(packID string) CopyPack {
	pid := strings.TrimSpace(packID)
	if pid != DefaultCopyPackID {
		pid = DefaultCopyPackID
	}
	return CopyPack{
		PackID:      pid,
		PackVersion: "1",
		Style: CopyStyle{
			Tone: "direct, friendly, professional",
			QuestionRules: []string{
				"Ask one thing at a time.",
				"Use concrete nouns; avoid generic filler.",
				"Avoid parenthetical enumerations when options are present.",
				"Keep questions under ~12 words when possible.",
			},
			OptionRules: []string{
				"Use parallel phrasing across options.",
				"Avoid overly broad location lists unless the service is outdoor-specific.",
				"Include 'Not sure' only when it reduces drop-off.",
			},
		},
		Lint: LintRules{
			RequireQuestionMark:      true,
			MaxQuestionChars:         120,
			BannedQuestionSubstrings: []string{"(install, replace, repair)"},
		},
	}
}

// StyleJSON is the compact style snippet embedded in the renderer prompt.
func (p CopyPack) StyleJSON() string {
	return CompactJSON(p.Style)
}

var trailingParenRe = regexp.MustCompile(`\s*\([^)]{0,80}\)\s*$`)

// SanitizeSteps applies copy fixes in place of regeneration: trailing
// "(a, b, c)" enumerations are stripped (they duplicate the options list) and
// questions are terminated with a question mark when the pack requires it.
func SanitizeSteps(steps []entity.Step, lint LintRules) []entity.Step {
	out := make([]entity.Step, 0, len(steps))
	for _, step := range steps {
		q := strings.TrimSpace(step.Question)
		if q != "" {
			q = strings.TrimSpace(trailingParenRe.ReplaceAllString(q, ""))
			if lint.RequireQuestionMark && !strings.HasSuffix(q, "?") {
				q = strings.TrimSpace(strings.TrimRight(q, "."))
				if q != "" && !strings.HasSuffix(q, "?") {
					q += "?"
				}
			}
			step.Question = q
			if step.Title != "" {
				step.Title = q
			}
		}
		out = append(out, step)
	}
	return out
}

// LintViolation is one advisory finding from LintSteps.
type LintViolation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// LintSteps checks the generated copy against the pack rules. Violations are
// advisory: they are logged, never used to reject a batch.
func LintSteps(steps []entity.Step, lint LintRules) []LintViolation {
	maxChars := lint.MaxQuestionChars
	if maxChars <= 0 {
		maxChars = 140
	}

	var out []LintViolation
	for _, step := range steps {
		sid := strings.TrimSpace(step.ID)
		q := strings.TrimSpace(step.Question)
		if sid == "" {
			out = append(out, LintViolation{Code: "missing_id", Message: "step is missing id"})
			continue
		}
		if q == "" {
			out = append(out, LintViolation{Code: "missing_question", Message: sid + ": missing question"})
			continue
		}
		if lint.RequireQuestionMark && !strings.HasSuffix(q, "?") {
			out = append(out, LintViolation{Code: "question_no_qmark", Message: sid + ": question should end with '?'"})
		}
		if len(q) > maxChars {
			out = append(out, LintViolation{Code: "question_too_long", Message: fmt.Sprintf("%s: question too long (%d chars)", sid, len(q))})
		}
		qLower := strings.ToLower(q)
		for _, sub := range lint.BannedQuestionSubstrings {
			t := strings.ToLower(strings.TrimSpace(sub))
			if t != "" && strings.Contains(qLower, t) {
				out = append(out, LintViolation{Code: "banned_phrase", Message: sid + ": contains banned phrase '" + sub + "'"})
			}
		}
	}
	return out
}
