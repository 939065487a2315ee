package pipeline

import (
	"sort"
	"strings"

	"github.com/intakeflow/intake-backend/internal/entity"
	"github.com/intakeflow/intake-backend/internal/flow"
	"github.com/intakeflow/intake-backend/internal/pkg/cache"
	"github.com/intakeflow/intake-backend/internal/schema"
)

// TriggerKey is the reserved plan key for the mid-flow image preview trigger.
const TriggerKey = "image_preview_trigger"

const defaultTriggerPosition = 3

// ExtractPlanItems parses raw planner output into normalized plan items.
// Accepts a bare array or an object keyed plan/question_keys/items; anything
// unparseable yields an empty plan. Keys are normalized, deduped, and
// filtered against already-asked step ids, capped at maxItems.
func ExtractPlanItems(raw string, maxItems int, asked map[string]struct{}) []entity.PlanItem {
	items, _ := ExtractPlanItemsTiered(raw, maxItems, asked)
	return items
}

// ExtractPlanItemsTiered is ExtractPlanItems plus the parse tier that
// recovered the plan, so callers can report how often planner output needs
// repair.
func ExtractPlanItemsTiered(raw string, maxItems int, asked map[string]struct{}) ([]entity.PlanItem, schema.ParseTier) {
	parsed, tier := schema.ParseJSONTiered(raw)

	var rawItems []any
	switch t := parsed.(type) {
	case []any:
		rawItems = t
	case map[string]any:
		for _, k := range []string{"plan", "question_keys", "items"} {
			if list, ok := t[k].([]any); ok {
				rawItems = list
				break
			}
		}
	}

	out := make([]entity.PlanItem, 0, len(rawItems))
	seen := make(map[string]struct{})
	for _, rawItem := range rawItems {
		m, ok := rawItem.(map[string]any)
		if !ok {
			continue
		}
		key := entity.NormalizePlanKey(planString(m["key"]))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		if _, wasAsked := asked[entity.DeriveStepID(key)]; wasAsked {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, planItemFromMap(key, m))
		if maxItems > 0 && len(out) >= maxItems {
			break
		}
	}
	return out, tier
}

func planItemFromMap(key string, m map[string]any) entity.PlanItem {
	item := entity.PlanItem{
		Key:      key,
		Question: strings.TrimSpace(planString(m["question"])),
		Intent:   strings.TrimSpace(planString(m["intent"])),
		TypeHint: strings.ToLower(strings.TrimSpace(planString(m["type_hint"]))),
	}
	if n, ok := m["priority"].(float64); ok {
		item.Priority = int(n)
	}
	if b, ok := m["deterministic"].(bool); ok {
		item.Deterministic = b
	}
	if b, ok := m["required"].(bool); ok {
		item.Required = b
	}
	if hints, ok := m["option_hints"].([]any); ok {
		for _, h := range hints {
			if s := strings.TrimSpace(planString(h)); s != "" {
				item.OptionHints = append(item.OptionHints, s)
			}
		}
	}
	return item
}

func planString(v any) string {
	s, _ := v.(string)
	return s
}

// ResolveMaxPlanItems caps how many plan items the planner may emit in one
// call, derived from the total-step constraint, clamped into [4, 30] with a
// default of 12.
func ResolveMaxPlanItems(constraints flow.BatchConstraints) int {
	n := constraints.MaxStepsTotal
	if n <= 0 {
		n = 12
	}
	if n < 4 {
		n = 4
	}
	if n > 30 {
		n = 30
	}
	return n
}

// BuildDeterministicSuffix returns the backend-owned plan items every form
// ends with, in fixed order: one file_upload per required upload, then
// gallery, then confirmation. With no required uploads a generic reference
// upload item stands in.
func BuildDeterministicSuffix(fctx *flow.Context) []entity.PlanItem {
	var uploadKeys []string
	for _, upload := range fctx.RequiredUploads {
		if key := entity.KeyFromStepID(upload.StepID); key != "" {
			uploadKeys = append(uploadKeys, key)
		}
	}
	if len(uploadKeys) == 0 {
		uploadKeys = []string{"upload_reference"}
	}

	out := make([]entity.PlanItem, 0, len(uploadKeys)+2)
	for _, key := range uploadKeys {
		out = append(out, entity.PlanItem{
			Key:           key,
			Deterministic: true,
			TypeHint:      entity.StepTypeFileUpload,
			Intent:        "Upload an image to continue.",
			Question:      "Upload an image.",
			Required:      true,
		})
	}
	out = append(out, entity.PlanItem{
		Key:           "gallery",
		Deterministic: true,
		TypeHint:      entity.StepTypeGallery,
		Intent:        "Review uploaded images.",
		Question:      "Review your images.",
	})
	out = append(out, entity.PlanItem{
		Key:           "confirmation",
		Deterministic: true,
		TypeHint:      entity.StepTypeConfirmation,
		Intent:        "Finish the form.",
		Question:      "All set. Submit when ready.",
	})
	return out
}

func buildTriggerItem() entity.PlanItem {
	return entity.PlanItem{
		Key:           TriggerKey,
		Deterministic: true,
		TypeHint:      entity.StepTypeComposite,
		Intent:        "Offer a quick visual preview mid-flow.",
		Question:      "Want a quick preview of your answers so far?",
		FunctionCall: &entity.FunctionCall{
			Name: "generate_image_preview",
			Args: map[string]any{"source": "form_answers"},
		},
	}
}

// AugmentPlanForFunctionCalls inserts the composite preview-trigger plan item
// after `position` planned keys, only when at least three real plan items
// exist and no trigger is present yet. The insertion index is memoized per
// session + leading-keys fingerprint, so retried calls land the trigger at
// the same spot even when the tail of the LLM plan drifts between attempts.
func AugmentPlanForFunctionCalls(memo *cache.TTLCache, sessionID string, items []entity.PlanItem, position int) []entity.PlanItem {
	if position <= 0 {
		position = defaultTriggerPosition
	}
	if len(items) < 3 {
		return items
	}
	for _, item := range items {
		if item.Key == TriggerKey {
			return items
		}
	}

	insertAt := position
	if insertAt > len(items) {
		insertAt = len(items)
	}

	if memo != nil && sessionID != "" {
		head := make([]string, 0, insertAt)
		for _, item := range items[:insertAt] {
			head = append(head, item.Key)
		}
		memoKey := "fc_plan:" + sessionID + ":" + ShortHash(strings.Join(head, ","), 10)
		if v, ok := memo.Get(memoKey); ok {
			if idx, ok := v.(int); ok && idx >= 0 && idx <= len(items) {
				insertAt = idx
			}
		} else {
			memo.Set(memoKey, insertAt, 0)
		}
	}

	out := make([]entity.PlanItem, 0, len(items)+1)
	out = append(out, items[:insertAt]...)
	out = append(out, buildTriggerItem())
	out = append(out, items[insertAt:]...)
	return out
}

// MergePlanItems combines planner output with the deterministic suffix,
// deduped by key in encounter order, dropping already-asked ids. For a
// single effective batch, room for the suffix is reserved up front by taking
// fewer planner items, so truncation can never drop the suffix.
func MergePlanItems(plannerItems, suffixItems []entity.PlanItem, asked map[string]struct{}, maxSteps int, singleBatch bool) []entity.PlanItem {
	if singleBatch && maxSteps > 0 {
		take := maxSteps - len(suffixItems)
		if take < 0 {
			take = 0
		}
		if take < len(plannerItems) {
			plannerItems = plannerItems[:take]
		}
	}

	merged := make([]entity.PlanItem, 0, len(plannerItems)+len(suffixItems))
	seen := make(map[string]struct{})
	for _, item := range append(append([]entity.PlanItem{}, plannerItems...), suffixItems...) {
		key := entity.NormalizePlanKey(item.Key)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		if _, wasAsked := asked[entity.DeriveStepID(key)]; wasAsked {
			continue
		}
		item.Key = key
		merged = append(merged, item)
		seen[key] = struct{}{}
	}
	return merged
}

// SlicePlan takes the next maxSteps unasked items for this call.
func SlicePlan(merged []entity.PlanItem, asked map[string]struct{}, maxSteps int) []entity.PlanItem {
	out := make([]entity.PlanItem, 0, maxSteps)
	for _, item := range merged {
		if item.Key == "" {
			continue
		}
		if _, wasAsked := asked[entity.DeriveStepID(item.Key)]; wasAsked {
			continue
		}
		out = append(out, item)
		if maxSteps > 0 && len(out) >= maxSteps {
			break
		}
	}
	return out
}

// ForcedTypes widens the allowed set with the type hints of sliced plan
// items, so deterministic suffix types stay renderable in early stages.
// Returns a sorted, deduped list.
func ForcedTypes(allowed []string, sliced []entity.PlanItem) []string {
	set := make(map[string]struct{}, len(allowed))
	for _, t := range allowed {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			set[t] = struct{}{}
		}
	}
	forced := false
	for _, item := range sliced {
		if item.TypeHint != "" {
			if _, ok := set[item.TypeHint]; !ok {
				forced = true
			}
			set[item.TypeHint] = struct{}{}
		}
	}
	if !forced && len(set) == len(allowed) {
		return allowed
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
