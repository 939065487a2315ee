package form

import (
	"context"

	"github.com/intakeflow/intake-backend/internal/entity"
)

// StepPipeline produces the next batch of form steps for a payload.
type StepPipeline interface {
	NextSteps(ctx context.Context, payload *entity.NextStepsPayload) *entity.NextStepsResponse
}

// MemoryStore persists per-session form memory between batches.
type MemoryStore interface {
	GetSessionMemory(ctx context.Context, sessionID string) (*entity.SessionMemory, error)
	UpsertSessionMemory(ctx context.Context, memory *entity.SessionMemory) error
	DeleteSessionMemory(ctx context.Context, sessionID string) error
}
