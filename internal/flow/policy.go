package flow

// Stage labels a batch's position within the overall flow. The stage drives
// which UI component types are allowed and how long the batch may be.
const (
	StageEarly  = "early"
	StageMiddle = "middle"
	StageLate   = "late"
)

// Hardcoded, backend-owned defaults for form constraints.
// Keep this section intentionally logic-light.
var DefaultConstraints = BatchConstraints{
	MaxBatches: 3,
	// Keep batches short to reduce variance and improve completion.
	MinStepsPerBatch:     2,
	MaxStepsPerBatch:     4,
	DefaultStepsPerBatch: 8,
	TokenBudgetTotal:     3000,
}

// stageComponents maps each stage to the component types the backend allows.
var stageComponents = map[string][]string{
	// Early = easiest, mostly structured.
	StageEarly: {"multiple_choice"},
	// Middle = add quantifiers/controls.
	StageMiddle: {"multiple_choice", "yes_no", "slider", "range_slider"},
	// Late = allow detail and uploads.
	StageLate: {"multiple_choice", "yes_no", "slider", "range_slider", "file_upload"},
}

// QuestionHint tunes question copy per stage.
type QuestionHint struct {
	Length string `json:"length"`
	Tone   string `json:"tone"`
}

var stageHints = map[string]QuestionHint{
	StageEarly:  {Length: "short", Tone: "simple, broad"},
	StageMiddle: {Length: "medium", Tone: "more specific, quantifying"},
	StageLate:   {Length: "long", Tone: "detailed, pointed"},
}

// ResolveStage maps a 0-based batch index within a 1-based total to a stage.
// Total function: any inputs produce a valid stage.
func ResolveStage(batchIndex, totalBatches int) string {
	if totalBatches <= 1 || batchIndex <= 0 {
		return StageEarly
	}
	if batchIndex < totalBatches-1 {
		return StageMiddle
	}
	return StageLate
}

// AllowedComponents returns a copy of the stage's allowed component types.
// Unknown stages fall back to the early set.
func AllowedComponents(stage string) []string {
	set, ok := stageComponents[stage]
	if !ok {
		set = stageComponents[StageEarly]
	}
	out := make([]string, len(set))
	copy(out, set)
	return out
}

// GetQuestionHints returns the stage's copy hints, defaulting to early.
func GetQuestionHints(stage string) QuestionHint {
	if h, ok := stageHints[stage]; ok {
		return h
	}
	return stageHints[StageEarly]
}

// FlowGuide is the hardcoded flow "skeleton" passed to the model and used for
// runtime defaults.
type FlowGuide struct {
	V            int        `json:"v"`
	Stage        string     `json:"stage"`
	BatchNumber  int        `json:"batchNumber"`
	BatchIndex   int        `json:"batchIndex"`
	TotalBatches int        `json:"totalBatches"`
	Rules        GuideRules `json:"rules"`
	UseCase      string     `json:"useCase,omitempty"`
	GoalIntent   string     `json:"goalIntent,omitempty"`
}

// GuideRules is the per-stage rule block inside a FlowGuide.
type GuideRules struct {
	PreferStructuredInputs  bool         `json:"preferStructuredInputs"`
	AllowedMiniTypesDefault []string     `json:"allowedMiniTypesDefault"`
	QuestionHints           QuestionHint `json:"questionHints"`
}

// GuideForBatch builds the guide for a 1-based batch number.
func GuideForBatch(ctx *Context, batchNumber int) FlowGuide {
	totalBatches := ctx.Constraints.MaxBatches
	if totalBatches < 1 {
		totalBatches = DefaultConstraints.MaxBatches
	}
	batchIndex := batchNumber - 1
	if batchIndex < 0 {
		batchIndex = 0
	}
	stage := ResolveStage(batchIndex, totalBatches)

	if batchNumber < 1 {
		batchNumber = 1
	}
	return FlowGuide{
		V:            1,
		Stage:        stage,
		BatchNumber:  batchNumber,
		BatchIndex:   batchIndex,
		TotalBatches: totalBatches,
		Rules: GuideRules{
			// Early = bias toward structured components.
			PreferStructuredInputs:  stage == StageEarly,
			AllowedMiniTypesDefault: AllowedComponents(stage),
			QuestionHints:           GetQuestionHints(stage),
		},
		UseCase:    ctx.UseCase,
		GoalIntent: ctx.GoalIntent,
	}
}

// ApplyGuide attaches the flow guide to the context and returns the effective
// allowed types and max steps for this call:
//   - client-allowed types are intersected with the stage set; an empty
//     intersection falls back to the full stage set (never empty),
//   - max steps is clamped into [minStepsPerBatch, maxStepsPerBatch], then
//     tightened to <=3 for early and <=4 for middle stages.
func ApplyGuide(ctx *Context, batchNumber int, allowedTypes []string, maxSteps int) ([]string, int) {
	guide := GuideForBatch(ctx, batchNumber)
	ctx.FlowGuide = &guide
	ctx.PreferStructuredInputs = guide.Rules.PreferStructuredInputs

	stageAllowed := AllowedComponents(guide.Stage)
	allowed := make([]string, 0, len(allowedTypes))
	for _, t := range allowedTypes {
		if t = normalizeType(t); t != "" {
			allowed = append(allowed, t)
		}
	}
	if len(allowed) == 0 {
		allowed = append(allowed, guide.Rules.AllowedMiniTypesDefault...)
	}
	// Enforce the stage-specific set: clients/demos must not widen component
	// types beyond the backend-owned flow.
	stageSet := make(map[string]struct{}, len(stageAllowed))
	for _, t := range stageAllowed {
		stageSet[t] = struct{}{}
	}
	filtered := allowed[:0]
	for _, t := range allowed {
		if _, ok := stageSet[t]; ok {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		filtered = stageAllowed
	}

	minSteps := ctx.Constraints.MinStepsPerBatch
	maxPerBatch := ctx.Constraints.MaxStepsPerBatch
	if minSteps < 1 {
		minSteps = DefaultConstraints.MinStepsPerBatch
	}
	if maxPerBatch < minSteps {
		maxPerBatch = minSteps
	}
	if maxSteps <= 0 {
		maxSteps = maxPerBatch
	}
	maxSteps = clamp(maxSteps, minSteps, maxPerBatch)

	// Keep early batches short while respecting the configured range.
	switch guide.Stage {
	case StageEarly:
		maxSteps = clamp(maxSteps, minSteps, 3)
	case StageMiddle:
		maxSteps = clamp(maxSteps, minSteps, 4)
	}
	return filtered, maxSteps
}

func clamp(n, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
