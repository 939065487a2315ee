package form

import (
	"github.com/intakeflow/intake-backend/internal/entity"
	"github.com/intakeflow/intake-backend/internal/flow"
)

func appendUnique(ids []string, id string) []string {
	if id == "" {
		return ids
	}
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func mergeAskedStepIDs(payload *entity.NextStepsPayload, stored []string) {
	for _, id := range stored {
		payload.AskedStepIDs = appendUnique(payload.AskedStepIDs, id)
	}
}

func mergeAnsweredQA(payload *entity.NextStepsPayload, stored []entity.AnsweredQA) {
	present := make(map[string]struct{}, len(payload.AnsweredQA))
	for _, item := range payload.AnsweredQA {
		if item == nil {
			continue
		}
		if sid, ok := item["stepId"].(string); ok && sid != "" {
			present[sid] = struct{}{}
		}
	}
	for _, qa := range stored {
		if _, ok := present[qa.StepID]; ok {
			continue
		}
		payload.AnsweredQA = append(payload.AnsweredQA, map[string]any{
			"stepId":   qa.StepID,
			"question": qa.Question,
			"answer":   qa.Answer,
		})
	}
}

func mergeCapabilities(payload *entity.NextStepsPayload, stored map[string]bool) {
	if len(stored) == 0 {
		return
	}
	if payload.StepDataSoFar == nil {
		payload.StepDataSoFar = make(map[string]any)
	}
	current, _ := payload.StepDataSoFar[flow.CapabilitiesField].(map[string]any)
	if current == nil {
		current = make(map[string]any)
	}
	for key, on := range stored {
		if !on {
			continue
		}
		current[key] = true
	}
	payload.StepDataSoFar[flow.CapabilitiesField] = current
}

// mergeTokensUsed takes the larger of the client-reported and stored spend so
// a client that lost track cannot reset the budget.
func mergeTokensUsed(payload *entity.NextStepsPayload, stored int) {
	if stored <= 0 {
		return
	}
	if payload.BatchState == nil {
		payload.BatchState = make(map[string]any)
	}
	_, used := flow.ExtractTokenBudget(payload.BatchState)
	if stored > used {
		payload.BatchState["tokensUsedSoFar"] = stored
	}
}

func tokensUsedAfter(payload *entity.NextStepsPayload, stored *entity.SessionMemory, resp *entity.NextStepsResponse) int {
	_, used := flow.ExtractTokenBudget(payload.BatchState)
	if stored != nil && stored.TokensUsed > used {
		used = stored.TokensUsed
	}
	if resp.LMUsage != nil {
		used += resp.LMUsage.TotalTokens
	}
	return used
}
