package pipeline

import (
	"strings"

	"github.com/intakeflow/intake-backend/internal/entity"
	"github.com/intakeflow/intake-backend/internal/flow"
	"github.com/intakeflow/intake-backend/internal/schema"
)

// FilterRenderedSteps validates raw renderer candidates in order: empty or
// duplicate ids, disallowed types, unauthorized upload ids, and schema
// failures all drop the candidate. taken is mutated as ids are accepted.
func FilterRenderedSteps(
	candidates []map[string]any,
	allowedSet map[string]struct{},
	requiredUploadIDs map[string]struct{},
	taken map[string]struct{},
) []entity.Step {
	emitted := make([]entity.Step, 0, len(candidates))
	for _, candidate := range candidates {
		sid := strings.TrimSpace(stringField(candidate, "id"))
		if sid == "" || hasID(taken, sid) {
			continue
		}
		if !flow.AllowedTypeMatches(stringField(candidate, "type"), allowedSet) {
			continue
		}
		// With explicit required uploads, stray upload ids are not allowed.
		if schema.LooksLikeUploadStepID(sid) && len(requiredUploadIDs) > 0 {
			if _, ok := requiredUploadIDs[sid]; !ok {
				continue
			}
		}
		step := schema.ValidateStep(candidate)
		if step == nil {
			continue
		}
		emitted = append(emitted, *step)
		taken[step.ID] = struct{}{}
	}
	return emitted
}

// BackstopDeterministicSteps walks the plan slice and synthesizes a minimal
// valid step for every deterministic item the renderer failed to produce.
// This is what guarantees the upload/gallery/confirmation suffix (and any
// trigger step) survives total renderer failure.
func BackstopDeterministicSteps(
	sliced []entity.PlanItem,
	emitted []entity.Step,
	allowedSet map[string]struct{},
	requiredUploadIDs map[string]struct{},
	taken map[string]struct{},
) []entity.Step {
	if len(emitted) >= len(sliced) {
		return emitted
	}
	for _, item := range sliced {
		if !item.Deterministic || item.Key == "" {
			continue
		}
		sid := entity.DeriveStepID(item.Key)
		if hasID(taken, sid) {
			continue
		}
		if len(emitted) >= len(sliced) {
			break
		}
		if item.TypeHint == "" || !flow.AllowedTypeMatches(item.TypeHint, allowedSet) {
			continue
		}
		if schema.LooksLikeUploadStepID(sid) && len(requiredUploadIDs) > 0 {
			if _, ok := requiredUploadIDs[sid]; !ok {
				continue
			}
		}

		question := strings.TrimSpace(item.Question)
		if question == "" {
			question = strings.TrimSpace(item.Intent)
		}
		if question == "" {
			question = "Continue."
		}
		candidate := map[string]any{
			"id":       sid,
			"type":     item.TypeHint,
			"question": question,
			"required": item.Required,
		}
		if item.TypeHint == entity.StepTypeComposite {
			candidate["blocks"] = []any{
				map[string]any{"type": "text", "text": question},
			}
		}
		step := schema.ValidateStep(candidate)
		if step == nil {
			continue
		}
		emitted = append(emitted, *step)
		taken[step.ID] = struct{}{}
	}
	return emitted
}

// AttachFunctionCalls re-attaches functionCall metadata from the plan to the
// emitted steps, and forces the trigger step back into composite shape if
// the renderer changed its type.
func AttachFunctionCalls(emitted []entity.Step, sliced []entity.PlanItem) []entity.Step {
	byID := make(map[string]entity.PlanItem, len(sliced))
	for _, item := range sliced {
		if item.Key != "" {
			byID[entity.DeriveStepID(item.Key)] = item
		}
	}

	triggerID := entity.DeriveStepID(TriggerKey)
	for i := range emitted {
		item, ok := byID[emitted[i].ID]
		if !ok {
			continue
		}
		if item.FunctionCall != nil && emitted[i].FunctionCall == nil {
			fc := *item.FunctionCall
			emitted[i].FunctionCall = &fc
		}
		if emitted[i].ID == triggerID && emitted[i].Type != entity.StepTypeComposite {
			emitted[i].Type = entity.StepTypeComposite
			if len(emitted[i].Blocks) == 0 {
				emitted[i].Blocks = []map[string]any{
					{"type": "text", "text": emitted[i].Question},
				}
			}
		}
	}
	return emitted
}

// RequiredUploadIDSet collects the normalized required upload ids.
func RequiredUploadIDSet(uploads []entity.RequiredUpload) map[string]struct{} {
	out := make(map[string]struct{}, len(uploads))
	for _, u := range uploads {
		sid := entity.NormalizeStepID(u.StepID)
		if sid != "" {
			out[sid] = struct{}{}
		}
	}
	return out
}

func hasID(set map[string]struct{}, id string) bool {
	_, ok := set[id]
	return ok
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
