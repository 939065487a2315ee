package entity

// NextStepsResponse is returned for every request, success or failure: the
// caller never sees a raw error, only `ok:false` plus a message.
type NextStepsResponse struct {
	OK            *bool         `json:"ok,omitempty"`
	Error         string        `json:"error,omitempty"`
	RequestID     string        `json:"requestId"`
	SchemaVersion string        `json:"schemaVersion"`
	MiniSteps     []Step        `json:"miniSteps"`
	CopyPackID    string        `json:"copyPackId,omitempty"`
	DebugContext  *DebugContext `json:"debugContext,omitempty"`
	LMUsage       *LMUsage      `json:"lmUsage,omitempty"`
}

// Failed reports whether the response carries an error envelope.
func (r *NextStepsResponse) Failed() bool {
	return r.OK != nil && !*r.OK
}

// DebugContext is attached when the caller asks for metadata.
type DebugContext struct {
	Industry           string          `json:"industry"`
	Service            string          `json:"service"`
	UseCase            string          `json:"useCase"`
	GoalIntent         string          `json:"goalIntent"`
	Stage              string          `json:"stage"`
	AllowedMiniTypes   []string        `json:"allowedMiniTypes"`
	MaxSteps           int             `json:"maxSteps"`
	PlannerCacheHit    bool            `json:"plannerCacheHit"`
	RenderCacheHit     bool            `json:"renderCacheHit"`
	PlannedSteps       int             `json:"plannedSteps"`
	PlanParseTier      string          `json:"planParseTier,omitempty"`
	RenderParseTier    string          `json:"renderParseTier,omitempty"`
	RenderSkippedLines int             `json:"renderSkippedLines,omitempty"`
	RenderedSteps      int             `json:"renderedSteps"`
	EmittedSteps       int             `json:"emittedSteps"`
	TokensTotalBudget  int             `json:"tokensTotalBudget"`
	TokensUsedSoFar    int             `json:"tokensUsedSoFar"`
	TokensRemaining    int             `json:"tokensRemaining"`
	TokensEstimated    int             `json:"tokensEstimatedThisCall"`
	OverageAllowance   int             `json:"overageAllowance"`
	Capabilities       map[string]bool `json:"capabilities,omitempty"`
	LatencyMS          int64           `json:"latencyMs"`
}

// LMUsage aggregates token usage across the planner and renderer calls.
type LMUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Add folds another usage record in.
func (u *LMUsage) Add(other *LMUsage) {
	if other == nil {
		return
	}
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// ErrorResponse builds the failure envelope shared by every fatal path.
func ErrorResponse(requestID, schemaVersion, message string) *NextStepsResponse {
	ok := false
	return &NextStepsResponse{
		OK:            &ok,
		Error:         message,
		RequestID:     requestID,
		SchemaVersion: schemaVersion,
		MiniSteps:     []Step{},
	}
}
