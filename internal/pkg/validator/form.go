package validator

import (
	"fmt"
	"strings"

	"github.com/intakeflow/intake-backend/internal/entity"
)

const (
	maxSessionIDLen     = 128
	maxSchemaVersionLen = 32
	maxAnsweredQAItems  = 200
	maxAskedStepIDs     = 500
)

// Validator rejects payloads that are structurally out of bounds. Semantic
// looseness (odd types, unknown keys) is tolerated downstream; these checks
// only guard against abuse-sized input.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) ValidateNextSteps(payload *entity.NextStepsPayload) error {
	if payload == nil {
		return fmt.Errorf("%w: empty payload", entity.ErrInvalidParameter)
	}
	if len(payload.SessionID) > maxSessionIDLen {
		return fmt.Errorf("%w: sessionId longer than %d chars", entity.ErrInvalidParameter, maxSessionIDLen)
	}
	if strings.ContainsAny(payload.SessionID, " \t\n") {
		return fmt.Errorf("%w: sessionId contains whitespace", entity.ErrInvalidParameter)
	}
	if len(payload.SchemaVersion) > maxSchemaVersionLen {
		return fmt.Errorf("%w: schemaVersion longer than %d chars", entity.ErrInvalidParameter, maxSchemaVersionLen)
	}
	if len(payload.AnsweredQA) > maxAnsweredQAItems {
		return fmt.Errorf("%w: more than %d answeredQA entries", entity.ErrInvalidParameter, maxAnsweredQAItems)
	}
	if len(payload.AskedStepIDs) > maxAskedStepIDs {
		return fmt.Errorf("%w: more than %d askedStepIds", entity.ErrInvalidParameter, maxAskedStepIDs)
	}
	return nil
}
