package entity

// NextStepsPayload is the client request for the next batch of form steps.
// Nested shapes the client controls loosely are kept as maps so a partially
// malformed payload degrades to defaults instead of failing the decode.
type NextStepsPayload struct {
	SessionID     string `json:"sessionId"`
	SchemaVersion string `json:"schemaVersion"`
	UseCase       string `json:"useCase"`

	Industry        string         `json:"industry"`
	Vertical        string         `json:"vertical"`
	Service         string         `json:"service"`
	ServiceSummary  string         `json:"serviceSummary"`
	ServicesSummary string         `json:"servicesSummary"`
	CompanySummary  string         `json:"companySummary"`
	GoalIntent      string         `json:"goalIntent"`
	InstanceContext map[string]any `json:"instanceContext"`

	AnsweredQA      []map[string]any `json:"answeredQA"`
	AskedStepIDs    []string         `json:"askedStepIds"`
	RequiredUploads []map[string]any `json:"requiredUploads"`
	StepDataSoFar   map[string]any   `json:"stepDataSoFar"`

	CurrentBatch map[string]any `json:"currentBatch"`
	BatchState   map[string]any `json:"batchState"`
	FormState    map[string]any `json:"formState"`

	AllowedMiniTypes   any `json:"allowedMiniTypes"`
	MaxStepsThisCall   any `json:"maxStepsThisCall"`
	MaxSteps           any `json:"maxSteps"`
	MinStepsPerBatch   any `json:"minStepsPerBatch"`
	DefaultStepsPB     any `json:"defaultStepsPerBatch"`
	ChoiceOptionMin    any `json:"choiceOptionMin"`
	ChoiceOptionMax    any `json:"choiceOptionMax"`
	ChoiceOptionTarget any `json:"choiceOptionTarget"`

	NoCache     bool `json:"noCache"`
	IncludeMeta bool `json:"includeMeta"`
}

// AnsweredQA is one recorded question/answer pair; entries are immutable once
// recorded by the client.
type AnsweredQA struct {
	StepID   string `json:"stepId"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// RequiredUpload names an upload step the flow must end with.
type RequiredUpload struct {
	StepID string `json:"stepId"`
}
