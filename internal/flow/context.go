package flow

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/intakeflow/intake-backend/internal/entity"
)

const (
	maxSummaryLen        = 1200
	maxGroundingLen      = 600
	maxAnsweredQA        = 24
	maxQuestionLen       = 200
	maxAnswerLen         = 300
	maxIndustryLen       = 120
	maxSessionIDLen      = 120
	maxUseCaseLen        = 80
	defaultChoiceOptMin  = 4
	defaultChoiceOptMax  = 10
	minTokenBudgetClamp  = 3000
	maxTokenBudgetClamp  = 5000
)

// Options carries the backend-owned defaults the context builder folds into
// batch constraints. Zero values fall back to DefaultConstraints.
type Options struct {
	MaxBatchCalls        int
	MinStepsPerBatch     int
	MaxStepsPerBatch     int
	DefaultStepsPerBatch int
	TokenBudgetTotal     int
}

func (o Options) orDefaults() Options {
	d := DefaultConstraints
	if o.MaxBatchCalls < 1 {
		o.MaxBatchCalls = d.MaxBatches
	}
	o.MaxBatchCalls = clamp(o.MaxBatchCalls, 1, 10)
	if o.MinStepsPerBatch < 1 {
		o.MinStepsPerBatch = d.MinStepsPerBatch
	}
	if o.MaxStepsPerBatch < o.MinStepsPerBatch {
		o.MaxStepsPerBatch = d.MaxStepsPerBatch
		if o.MaxStepsPerBatch < o.MinStepsPerBatch {
			o.MaxStepsPerBatch = o.MinStepsPerBatch
		}
	}
	if o.DefaultStepsPerBatch < 1 {
		o.DefaultStepsPerBatch = d.DefaultStepsPerBatch
	}
	if o.TokenBudgetTotal < 1 {
		o.TokenBudgetTotal = d.TokenBudgetTotal
	}
	return o
}

// BuildContext assembles the bounded request context. Pure transform: no I/O,
// never fails; missing or malformed payload fields degrade to defaults.
func BuildContext(payload *entity.NextStepsPayload, opts Options) *Context {
	if payload == nil {
		payload = &entity.NextStepsPayload{}
	}
	opts = opts.orDefaults()

	answeredQA := ExtractAnsweredQA(payload)
	askedStepIDs := ExtractAskedStepIDs(payload, answeredQA)

	serviceSummary := truncate(strings.TrimSpace(payload.ServiceSummary), maxSummaryLen)
	if serviceSummary == "" {
		serviceSummary = truncate(strings.TrimSpace(payload.ServicesSummary), maxSummaryLen)
	}
	companySummary := truncate(strings.TrimSpace(payload.CompanySummary), maxSummaryLen)
	// Prompts still refer to the shorter services summary.
	servicesSummary := truncate(serviceSummary, maxGroundingLen)

	industry, service := DeriveIndustryAndService(payload)
	grounding := servicesSummary
	if grounding == "" && (industry != "" || service != "") {
		grounding = composeGroundingSummary(industry, service)
	}

	ctx := &Context{
		Industry:         industry,
		Service:          service,
		ServicesSummary:  servicesSummary,
		ServiceSummary:   serviceSummary,
		CompanySummary:   companySummary,
		GroundingSummary: grounding,
		UseCase:          ExtractUseCase(payload.UseCase),
		GoalIntent:       InferGoalIntent(payload.GoalIntent),
		AnsweredQA:       answeredQA,
		AskedStepIDs:     askedStepIDs,
		RequiredUploads:  ExtractRequiredUploads(payload),
		StepDataSoFar:    payload.StepDataSoFar,
		SessionID:        truncate(strings.TrimSpace(payload.SessionID), maxSessionIDLen),
	}

	ctx.BatchIndex, ctx.CallsRemaining = extractBatchInfo(payload)
	ctx.TokensTotalBudget, ctx.TokensUsedSoFar = ExtractTokenBudget(payload.BatchState)
	ctx.Constraints = buildBatchConstraints(payload, opts)

	ctx.ChoiceOptionMin, ctx.ChoiceOptionMax, ctx.ChoiceOptionTarget = extractChoiceBounds(payload)

	return ctx
}

// ExtractAnsweredQA normalizes the answered Q/A list: `step-` ids only,
// capped at 24 entries with length-capped fields. Structured answers are
// flattened to compact JSON.
func ExtractAnsweredQA(payload *entity.NextStepsPayload) []entity.AnsweredQA {
	out := make([]entity.AnsweredQA, 0, len(payload.AnsweredQA))
	for _, item := range payload.AnsweredQA {
		if item == nil {
			continue
		}
		stepID := entity.NormalizeStepID(firstString(item, "stepId", "step_id", "id"))
		question := strings.TrimSpace(firstString(item, "question", "q"))
		answer := coerceAnswerText(firstValue(item, "answer", "a"))

		if stepID == "" || !strings.HasPrefix(stepID, "step-") {
			continue
		}
		if question == "" && answer == "" {
			continue
		}
		out = append(out, entity.AnsweredQA{
			StepID:   stepID,
			Question: truncate(question, maxQuestionLen),
			Answer:   truncate(answer, maxAnswerLen),
		})
		if len(out) >= maxAnsweredQA {
			break
		}
	}
	return out
}

// ExtractAskedStepIDs derives asked ids from answered Q/A first, then merges
// the explicit list, deduped in encounter order.
func ExtractAskedStepIDs(payload *entity.NextStepsPayload, answeredQA []entity.AnsweredQA) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(raw string) {
		sid := entity.NormalizeStepID(raw)
		if sid == "" || !strings.HasPrefix(sid, "step-") {
			return
		}
		if _, ok := seen[sid]; ok {
			return
		}
		seen[sid] = struct{}{}
		out = append(out, sid)
	}
	for _, qa := range answeredQA {
		add(qa.StepID)
	}
	for _, raw := range payload.AskedStepIDs {
		add(raw)
	}
	return out
}

// ExtractRequiredUploads keeps `step-` prefixed upload ids in list order.
func ExtractRequiredUploads(payload *entity.NextStepsPayload) []entity.RequiredUpload {
	raw := payload.RequiredUploads
	if len(raw) == 0 {
		if cb := payload.CurrentBatch; cb != nil {
			if list, ok := cb["requiredUploads"].([]any); ok {
				for _, v := range list {
					if m, ok := v.(map[string]any); ok {
						raw = append(raw, m)
					}
				}
			}
		}
	}
	seen := make(map[string]struct{})
	out := make([]entity.RequiredUpload, 0, len(raw))
	for _, item := range raw {
		if item == nil {
			continue
		}
		sid := strings.TrimSpace(firstString(item, "stepId", "step_id", "id"))
		if sid == "" || !strings.HasPrefix(sid, "step-") {
			continue
		}
		if _, ok := seen[sid]; ok {
			continue
		}
		seen[sid] = struct{}{}
		out = append(out, entity.RequiredUpload{StepID: sid})
	}
	return out
}

// ExtractUseCase normalizes the use-case label; empty input means "scene".
func ExtractUseCase(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	if t == "" {
		return "scene"
	}
	t = strings.ReplaceAll(t, "_", " ")
	t = strings.ReplaceAll(t, "-", " ")
	t = strings.TrimSpace(t)
	switch {
	case strings.Contains(t, "tryon") || strings.Contains(t, "try on"):
		return "tryon"
	case strings.Contains(t, "placement"):
		return "scene_placement"
	case strings.Contains(t, "scene"):
		return "scene"
	}
	return truncate(strings.ReplaceAll(t, " ", "_"), maxUseCaseLen)
}

// InferGoalIntent decides between "pricing" and "visual" intent, preferring
// the explicit value and defaulting to pricing.
func InferGoalIntent(explicit string) string {
	t := strings.ToLower(strings.TrimSpace(explicit))
	if t == "pricing" || t == "visual" {
		return t
	}
	return "pricing"
}

// DeriveIndustryAndService extracts short plain-English industry/service
// strings from the top-level fields or the nested instance context.
func DeriveIndustryAndService(payload *entity.NextStepsPayload) (string, string) {
	industry := strings.TrimSpace(payload.Industry)
	if industry == "" {
		industry = strings.TrimSpace(payload.Vertical)
	}
	service := strings.TrimSpace(payload.Service)

	if (industry == "" || service == "") && payload.InstanceContext != nil {
		ic := payload.InstanceContext
		if industry == "" {
			industry = namedString(ic["industry"])
			if industry == "" {
				industry = firstNamedOfList(ic["categories"])
			}
		}
		if service == "" {
			service = namedString(ic["service"])
			if service == "" {
				service = firstNamedOfList(ic["subcategories"])
			}
		}
	}
	return truncate(industry, maxIndustryLen), truncate(service, maxIndustryLen)
}

// ExtractTokenBudget reads the soft token budget from the batch state.
// Zero means unset.
func ExtractTokenBudget(batchState map[string]any) (total, used int) {
	if batchState == nil {
		return 0, 0
	}
	total = asInt(batchState["tokensTotalBudget"], 0)
	used = asInt(batchState["tokensUsedSoFar"], 0)
	if total < 0 {
		total = 0
	}
	if used < 0 {
		used = 0
	}
	return total, used
}

// ExtractBatchNumber reads the 1-based batch number, defaulting to 1.
func ExtractBatchNumber(payload *entity.NextStepsPayload) int {
	if payload.CurrentBatch != nil {
		if n := asInt(payload.CurrentBatch["batchNumber"], 0); n > 0 {
			return n
		}
	}
	if payload.FormState != nil {
		if n := asInt(payload.FormState["batchNumber"], 0); n > 0 {
			return n
		}
		if n := asInt(payload.FormState["batchIndex"], 0); n > 0 {
			return n
		}
	}
	return 1
}

// ExtractMaxStepsThisCall reads the per-call step cap, 0 when unset.
func ExtractMaxStepsThisCall(payload *entity.NextStepsPayload) int {
	if n := asInt(payload.MaxStepsThisCall, 0); n > 0 {
		return n
	}
	if n := asInt(payload.MaxSteps, 0); n > 0 {
		return n
	}
	if payload.CurrentBatch != nil {
		if n := asInt(payload.CurrentBatch["maxSteps"], 0); n > 0 {
			return n
		}
	}
	return 0
}

// ExtractAllowedMiniTypes reads allowed types from the payload: a list or a
// comma-separated string, with the legacy per-batch component list as a
// fallback ("text" maps to "text_input").
func ExtractAllowedMiniTypes(payload *entity.NextStepsPayload) []string {
	if types := anyToStringList(payload.AllowedMiniTypes); len(types) > 0 {
		return types
	}
	if payload.CurrentBatch != nil {
		raw := payload.CurrentBatch["allowedComponentTypes"]
		if raw == nil {
			raw = payload.CurrentBatch["allowed_component_types"]
		}
		types := anyToStringList(raw)
		out := make([]string, 0, len(types))
		for _, t := range types {
			if n := normalizeType(t); n != "" {
				out = append(out, n)
			}
		}
		return out
	}
	return nil
}

func extractBatchInfo(payload *entity.NextStepsPayload) (batchIndex, callsRemaining int) {
	batchIndex = ExtractBatchNumber(payload) - 1
	if payload.BatchState != nil {
		callsRemaining = asInt(payload.BatchState["callsRemaining"], 0)
	}
	if callsRemaining == 0 && payload.FormState != nil {
		callsRemaining = asInt(payload.FormState["callsRemaining"], 0)
	}
	return batchIndex, callsRemaining
}

func buildBatchConstraints(payload *entity.NextStepsPayload, opts Options) BatchConstraints {
	minSteps := positiveOr(asInt(payload.MinStepsPerBatch, 0), 0)
	if minSteps == 0 && payload.CurrentBatch != nil {
		minSteps = positiveOr(asInt(payload.CurrentBatch["minStepsPerBatch"], 0), 0)
	}
	if minSteps < 1 {
		minSteps = opts.MinStepsPerBatch
	}

	maxSteps := positiveOr(asInt(payload.MaxSteps, 0), 0)
	if maxSteps == 0 && payload.CurrentBatch != nil {
		maxSteps = positiveOr(asInt(payload.CurrentBatch["maxSteps"], 0), 0)
	}
	if maxSteps < 1 {
		maxSteps = opts.MaxStepsPerBatch
	}
	if maxSteps < minSteps {
		maxSteps = minSteps
	}

	defSteps := positiveOr(asInt(payload.DefaultStepsPB, 0), 0)
	if defSteps < 1 {
		defSteps = opts.DefaultStepsPerBatch
	}
	defSteps = clamp(defSteps, minSteps, maxSteps)

	maxBatches := opts.MaxBatchCalls

	maxStepsTotal := 0
	if payload.BatchState != nil {
		maxStepsTotal = positiveOr(asInt(payload.BatchState["maxStepsTotal"], 0), 0)
	}
	if maxStepsTotal == 0 {
		maxStepsTotal = maxSteps * maxBatches
	}

	tokenBudget := 0
	if payload.BatchState != nil {
		tokenBudget = positiveOr(asInt(payload.BatchState["tokensTotalBudget"], 0), 0)
	}
	if tokenBudget == 0 {
		tokenBudget = opts.TokenBudgetTotal
	}
	// Soft product constraint: keep budgets in a sane default range.
	tokenBudget = clamp(tokenBudget, minTokenBudgetClamp, maxTokenBudgetClamp)

	return BatchConstraints{
		MaxBatches:           maxBatches,
		MaxStepsTotal:        maxStepsTotal,
		MinStepsPerBatch:     minSteps,
		MaxStepsPerBatch:     maxSteps,
		DefaultStepsPerBatch: defSteps,
		TokenBudgetTotal:     tokenBudget,
	}
}

func extractChoiceBounds(payload *entity.NextStepsPayload) (min, max, target int) {
	min, max = defaultChoiceOptMin, defaultChoiceOptMax
	if n := asInt(payload.ChoiceOptionMin, 0); n > 0 {
		min = clamp(n, 2, 12)
	}
	if n := asInt(payload.ChoiceOptionMax, 0); n > 0 {
		max = clamp(n, min, 12)
	}
	if max < min {
		max = min
	}
	target = asInt(payload.ChoiceOptionTarget, 0)
	if target < min || target > max {
		// Deterministic midpoint: a random target would change the render
		// context between identical calls and defeat the render cache.
		target = min + (max-min)/2
	}
	return min, max, target
}

func composeGroundingSummary(industry, service string) string {
	var b strings.Builder
	if industry != "" {
		b.WriteString("Industry: ")
		b.WriteString(industry)
		b.WriteString(". ")
	}
	if service != "" {
		b.WriteString("Service: ")
		b.WriteString(service)
		b.WriteString(".")
	}
	return truncate(strings.TrimSpace(b.String()), maxGroundingLen)
}

// truncate caps s at n bytes, backing off to a rune boundary so client text
// never turns into invalid UTF-8 mid-character.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func positiveOr(n, fallback int) int {
	if n > 0 {
		return n
	}
	return fallback
}

func firstValue(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(m map[string]any, keys ...string) string {
	return asString(firstValue(m, keys...))
}

func coerceAnswerText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return strings.TrimSpace(asString(v))
	}
}

func namedString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		for _, k := range []string{"name", "label", "id"} {
			if s := asString(t[k]); s != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func firstNamedOfList(v any) string {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return ""
	}
	return namedString(list[0])
}

func anyToStringList(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := strings.TrimSpace(asString(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		out := make([]string, 0, len(t))
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		parts := strings.Split(t, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return nil
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	}
	return ""
}

func asInt(v any, fallback int) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return fallback
		}
		return n
	}
	return fallback
}
