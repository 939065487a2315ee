package entity

import "time"

// SessionMemory is the per-session state the backend persists between batches:
// which steps were already emitted, what the user answered, and how much of the
// token budget the session has burned. AskedStepIDs only ever grows.
type SessionMemory struct {
	SessionID    string          `json:"sessionId"`
	AskedStepIDs []string        `json:"askedStepIds"`
	AnsweredQA   []AnsweredQA    `json:"answeredQA"`
	TokensUsed   int             `json:"tokensUsed"`
	Capabilities map[string]bool `json:"capabilities"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}
