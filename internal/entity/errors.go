package entity

import "errors"

// Fatal request errors. These become `ok:false` envelopes, never HTTP 5xx.
var (
	ErrPlannerNotConfigured  = errors.New("planner LM not configured")
	ErrRendererNotConfigured = errors.New("renderer LM not configured")
	ErrTokenBudgetExhausted  = errors.New("token budget exhausted")
	ErrMissingServiceContext = errors.New("missing service context")

	// ErrSessionNotFound is returned by the session memory store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidParameter marks transport-level payload problems the API
	// rejects before the pipeline runs.
	ErrInvalidParameter = errors.New("invalid parameter")
)
