package entity

import "time"

// LMConfig is the resolved configuration for one LLM program (planner or
// renderer). Resolution happens once, at orchestrator entry; Configured=false
// carries the reason instead of an exception-driven control flow.
type LMConfig struct {
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	Configured  bool
	Reason      string
}

// PlannerRequest carries the compact planning context for LLM call #1.
type PlannerRequest struct {
	ContextJSON      string
	MaxSteps         int
	AllowedMiniTypes []string
	LM               LMConfig
}

// PlannerResult is the planner's raw output. QuestionPlanJSON may be any
// text; the pipeline treats unparseable output as an empty plan.
type PlannerResult struct {
	QuestionPlanJSON string
	Usage            *LMUsage
}

// RendererRequest carries the sliced plan plus render-only context for LLM
// call #2.
type RendererRequest struct {
	PlanJSON          string
	RenderContextJSON string
	MaxSteps          int
	AllowedMiniTypes  []string
	LM                LMConfig
}

// RendererResult is the renderer's raw JSONL output (one candidate step per
// line) before validation.
type RendererResult struct {
	MiniStepsJSONL string
	Usage          *LMUsage
}
