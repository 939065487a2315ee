package form

import (
	"context"

	"github.com/intakeflow/intake-backend/internal/entity"
)

// FormUsecase is the form flow the handler exposes over HTTP.
type FormUsecase interface {
	NextSteps(ctx context.Context, payload *entity.NextStepsPayload) *entity.NextStepsResponse
	Capabilities(ctx context.Context, sessionID string) (map[string]bool, error)
	ResetSession(ctx context.Context, sessionID string) error
}

// SchemaVersionSource resolves the contract version the backend serves.
type SchemaVersionSource interface {
	ContractVersion(ctx context.Context) string
}
