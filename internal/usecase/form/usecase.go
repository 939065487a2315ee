package form

import (
	"context"
	"errors"
	"fmt"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/intakeflow/intake-backend/internal/entity"
	"github.com/intakeflow/intake-backend/internal/flow"
)

// Usecase glues the step pipeline to the session memory store: it hydrates
// payloads that omit session history and records emitted steps and token
// spend after each batch. The store is optional; without it the usecase is a
// pass-through.
type Usecase struct {
	pipeline StepPipeline
	memory   MemoryStore
}

func NewUsecase(pipeline StepPipeline, memory MemoryStore) *Usecase {
	return &Usecase{
		pipeline: pipeline,
		memory:   memory,
	}
}

// NextSteps runs one pipeline pass. Memory hydration and persistence are
// best-effort: a failing store degrades to stateless operation, it never
// fails the request.
func (u *Usecase) NextSteps(ctx context.Context, payload *entity.NextStepsPayload) *entity.NextStepsResponse {
	stored := u.hydrate(ctx, payload)

	resp := u.pipeline.NextSteps(ctx, payload)

	if !resp.Failed() {
		u.persist(ctx, payload, stored, resp)
	}
	return resp
}

// Capabilities returns the stored capability flags for a session, recomputed
// over the persisted answers so flags stay current even when the client never
// requested metadata.
func (u *Usecase) Capabilities(ctx context.Context, sessionID string) (map[string]bool, error) {
	if u.memory == nil {
		return nil, entity.ErrSessionNotFound
	}
	memory, err := u.memory.GetSessionMemory(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return flow.ComputeCapabilities(nil, memory.AnsweredQA, memory.Capabilities), nil
}

// ResetSession drops the stored memory for a session.
func (u *Usecase) ResetSession(ctx context.Context, sessionID string) error {
	if u.memory == nil {
		return nil
	}
	if err := u.memory.DeleteSessionMemory(ctx, sessionID); err != nil {
		return fmt.Errorf("reset session %q: %w", sessionID, err)
	}
	return nil
}

// hydrate merges stored session memory into a payload that omits history.
// Returns the stored record so persist can merge monotonically.
func (u *Usecase) hydrate(ctx context.Context, payload *entity.NextStepsPayload) *entity.SessionMemory {
	if u.memory == nil || payload == nil || payload.SessionID == "" {
		return nil
	}

	stored, err := u.memory.GetSessionMemory(ctx, payload.SessionID)
	if errors.Is(err, entity.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		ctxzap.Warn(ctx, "session memory read failed, continuing stateless",
			zap.String("session_id", payload.SessionID),
			zap.Error(err),
		)
		return nil
	}

	mergeAskedStepIDs(payload, stored.AskedStepIDs)
	mergeAnsweredQA(payload, stored.AnsweredQA)
	mergeCapabilities(payload, stored.Capabilities)
	mergeTokensUsed(payload, stored.TokensUsed)

	ctxzap.Debug(ctx, "payload hydrated from session memory",
		zap.String("session_id", payload.SessionID),
		zap.Int("stored_asked", len(stored.AskedStepIDs)),
		zap.Int("stored_answered", len(stored.AnsweredQA)),
	)
	return stored
}

// persist records emitted step ids, token spend and capability flags.
// Asked ids only grow and capability flags never flip back.
func (u *Usecase) persist(ctx context.Context, payload *entity.NextStepsPayload, stored *entity.SessionMemory, resp *entity.NextStepsResponse) {
	if u.memory == nil || payload == nil || payload.SessionID == "" {
		return
	}

	answeredQA := flow.ExtractAnsweredQA(payload)
	asked := flow.ExtractAskedStepIDs(payload, answeredQA)
	for _, step := range resp.MiniSteps {
		asked = appendUnique(asked, step.ID)
	}

	previous := flow.PreviousCapabilities(payload.StepDataSoFar)
	if stored != nil {
		for key, on := range stored.Capabilities {
			if on {
				previous[key] = true
			}
		}
	}

	memory := &entity.SessionMemory{
		SessionID:    payload.SessionID,
		AskedStepIDs: asked,
		AnsweredQA:   answeredQA,
		Capabilities: flow.ComputeCapabilities(payload.StepDataSoFar, answeredQA, previous),
		TokensUsed:   tokensUsedAfter(payload, stored, resp),
	}

	if err := u.memory.UpsertSessionMemory(ctx, memory); err != nil {
		ctxzap.Warn(ctx, "session memory write failed",
			zap.String("session_id", payload.SessionID),
			zap.Error(err),
		)
	}
}
