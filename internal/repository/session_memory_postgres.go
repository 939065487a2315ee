package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/intakeflow/intake-backend/internal/entity"
)

// SessionMemoryRepository persists per-session form memory: asked step ids,
// answered Q/A, capability flags and token spend. The pipeline itself never
// touches it; the API layer hydrates payloads from it and writes back after
// each batch.
type SessionMemoryRepository interface {
	GetSessionMemory(ctx context.Context, sessionID string) (*entity.SessionMemory, error)
	UpsertSessionMemory(ctx context.Context, memory *entity.SessionMemory) error
	DeleteSessionMemory(ctx context.Context, sessionID string) error
}

var _ SessionMemoryRepository = &SessionMemoryPostgres{}

// SessionMemoryPostgres implements SessionMemoryRepository using PostgreSQL
type SessionMemoryPostgres struct {
	db *pgxpool.Pool
}

func NewSessionMemoryPostgres(db *pgxpool.Pool) *SessionMemoryPostgres {
	return &SessionMemoryPostgres{db: db}
}

func (r *SessionMemoryPostgres) GetSessionMemory(ctx context.Context, sessionID string) (*entity.SessionMemory, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, entity.ErrSessionNotFound
	}

	const query = `
		SELECT session_id, asked_step_ids, answered_qa, capabilities, tokens_used, created_at, updated_at
		FROM session_memory
		WHERE session_id = $1`

	var (
		memory          entity.SessionMemory
		askedJSON       []byte
		answeredJSON    []byte
		capabilitiesRaw []byte
	)
	err := r.db.QueryRow(ctx, query, sessionID).Scan(
		&memory.SessionID,
		&askedJSON,
		&answeredJSON,
		&capabilitiesRaw,
		&memory.TokensUsed,
		&memory.CreatedAt,
		&memory.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entity.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session memory: %w", err)
	}

	if err := json.Unmarshal(askedJSON, &memory.AskedStepIDs); err != nil {
		return nil, fmt.Errorf("decode asked step ids: %w", err)
	}
	if err := json.Unmarshal(answeredJSON, &memory.AnsweredQA); err != nil {
		return nil, fmt.Errorf("decode answered qa: %w", err)
	}
	if err := json.Unmarshal(capabilitiesRaw, &memory.Capabilities); err != nil {
		return nil, fmt.Errorf("decode capabilities: %w", err)
	}
	return &memory, nil
}

// UpsertSessionMemory writes the merged memory record. Callers must merge
// monotonically before writing (asked ids only grow, capability flags never
// flip back).
func (r *SessionMemoryPostgres) UpsertSessionMemory(ctx context.Context, memory *entity.SessionMemory) error {
	if memory == nil || strings.TrimSpace(memory.SessionID) == "" {
		return fmt.Errorf("session memory requires a session id")
	}

	askedJSON, err := json.Marshal(memory.AskedStepIDs)
	if err != nil {
		return fmt.Errorf("encode asked step ids: %w", err)
	}
	answeredJSON, err := json.Marshal(memory.AnsweredQA)
	if err != nil {
		return fmt.Errorf("encode answered qa: %w", err)
	}
	capabilitiesJSON, err := json.Marshal(memory.Capabilities)
	if err != nil {
		return fmt.Errorf("encode capabilities: %w", err)
	}

	const query = `
		INSERT INTO session_memory (session_id, asked_step_ids, answered_qa, capabilities, tokens_used)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO UPDATE SET
			asked_step_ids = EXCLUDED.asked_step_ids,
			answered_qa    = EXCLUDED.answered_qa,
			capabilities   = EXCLUDED.capabilities,
			tokens_used    = EXCLUDED.tokens_used,
			updated_at     = now()`

	if _, err := r.db.Exec(ctx, query,
		strings.TrimSpace(memory.SessionID), askedJSON, answeredJSON, capabilitiesJSON, memory.TokensUsed,
	); err != nil {
		return fmt.Errorf("upsert session memory: %w", err)
	}
	return nil
}

func (r *SessionMemoryPostgres) DeleteSessionMemory(ctx context.Context, sessionID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM session_memory WHERE session_id = $1`, strings.TrimSpace(sessionID)); err != nil {
		return fmt.Errorf("delete session memory: %w", err)
	}
	return nil
}
