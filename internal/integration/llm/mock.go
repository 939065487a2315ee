package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/intakeflow/intake-backend/internal/entity"
)

// MockConnector is a deterministic stand-in for local development and tests.
// The plan it returns depends only on max_steps, so cache behavior is
// reproducible across runs.
type MockConnector struct {
	logger *zap.Logger
}

func NewMockConnector(logger *zap.Logger) *MockConnector {
	return &MockConnector{logger: logger}
}

var mockPlanItems = []entity.PlanItem{
	{Key: "project_type", Question: "What kind of project is this?", Intent: "scope", TypeHint: "multiple_choice", Priority: 1},
	{Key: "space_size", Question: "How large is the space?", Intent: "scope", TypeHint: "multiple_choice", Priority: 2},
	{Key: "style_preference", Question: "Which style fits you best?", Intent: "visual", TypeHint: "multiple_choice", Priority: 3},
	{Key: "budget_range", Question: "What budget range works for you?", Intent: "pricing", TypeHint: "multiple_choice", Priority: 4},
	{Key: "timeline", Question: "When would you like to start?", Intent: "pricing", TypeHint: "multiple_choice", Priority: 5},
	{Key: "existing_materials", Question: "Do you have existing materials to keep?", Intent: "scope", TypeHint: "yes_no", Priority: 6},
}

// PlanQuestions returns a fixed plan truncated to max_steps.
func (m *MockConnector) PlanQuestions(ctx context.Context, req *entity.PlannerRequest) (*entity.PlannerResult, error) {
	ctxzap.Info(ctx, "[MOCK] planning questions", zap.Int("max_steps", req.MaxSteps))

	items := mockPlanItems
	if req.MaxSteps > 0 && req.MaxSteps < len(items) {
		items = items[:req.MaxSteps]
	}
	b, err := json.Marshal(entity.QuestionPlan{Plan: items})
	if err != nil {
		return nil, err
	}

	usage := &entity.LMUsage{PromptTokens: 120, CompletionTokens: 80, TotalTokens: 200}
	return &entity.PlannerResult{QuestionPlanJSON: string(b), Usage: usage}, nil
}

// RenderSteps renders each plan item into one choice step with four options.
func (m *MockConnector) RenderSteps(ctx context.Context, req *entity.RendererRequest) (*entity.RendererResult, error) {
	ctxzap.Info(ctx, "[MOCK] rendering steps", zap.Int("max_steps", req.MaxSteps))

	var plan entity.QuestionPlan
	if err := json.Unmarshal([]byte(req.PlanJSON), &plan); err != nil {
		return nil, fmt.Errorf("mock renderer: bad plan json: %w", err)
	}

	var lines []string
	for i, item := range plan.Plan {
		if req.MaxSteps > 0 && i >= req.MaxSteps {
			break
		}
		stepType := item.TypeHint
		if stepType == "" {
			stepType = "multiple_choice"
		}
		step := map[string]any{
			"id":       entity.DeriveStepID(item.Key),
			"type":     stepType,
			"question": item.Question,
			"required": true,
		}
		if stepType == "multiple_choice" {
			step["options"] = []map[string]string{
				{"label": "Small refresh", "value": "small_refresh"},
				{"label": "Partial update", "value": "partial_update"},
				{"label": "Full makeover", "value": "full_makeover"},
				{"label": "Not sure yet", "value": "not_sure_yet"},
			}
		}
		if stepType == "yes_no" {
			step["options"] = []map[string]string{
				{"label": "Yes", "value": "yes"},
				{"label": "No", "value": "no"},
			}
		}
		b, err := json.Marshal(step)
		if err != nil {
			return nil, err
		}
		lines = append(lines, string(b))
	}

	usage := &entity.LMUsage{PromptTokens: 200, CompletionTokens: 150, TotalTokens: 350}
	return &entity.RendererResult{MiniStepsJSONL: strings.Join(lines, "\n"), Usage: usage}, nil
}
