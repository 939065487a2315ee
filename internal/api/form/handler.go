package form

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/intakeflow/intake-backend/internal/entity"
	"github.com/intakeflow/intake-backend/internal/flow"
	"github.com/intakeflow/intake-backend/internal/pkg/logger"
	"github.com/intakeflow/intake-backend/internal/pkg/response"
	"github.com/intakeflow/intake-backend/internal/pkg/validator"
)

type Handler struct {
	usecase   FormUsecase
	versions  SchemaVersionSource
	validator *validator.Validator
}

func NewHandler(usecase FormUsecase, versions SchemaVersionSource, validator *validator.Validator) *Handler {
	return &Handler{
		usecase:   usecase,
		versions:  versions,
		validator: validator,
	}
}

// NextSteps handles POST /api/form - generate the next batch of form steps.
// Pipeline failures come back as an `ok:false` envelope with HTTP 200; only
// transport problems (undecodable body) get a 4xx.
func (h *Handler) NextSteps(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "NextSteps")

	var payload entity.NextStepsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		ctxzap.Error(ctx, "failed to decode request body", zap.Error(err))
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validator.ValidateNextSteps(&payload); err != nil {
		ctxzap.Error(ctx, "failed to validate request", zap.Error(err))
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx = logger.WithSession(ctx, payload.SessionID)
	ctxzap.Info(ctx, "generating next steps",
		zap.String("use_case", payload.UseCase),
		zap.Bool("include_meta", payload.IncludeMeta),
	)

	resp := h.usecase.NextSteps(ctx, &payload)

	ctxzap.Info(ctx, "next steps generated",
		zap.String("request_id", resp.RequestID),
		zap.Int("steps", len(resp.MiniSteps)),
		zap.Bool("failed", resp.Failed()),
	)

	response.JSON(w, http.StatusOK, resp)
}

// Capabilities handles GET /api/form/capabilities - static contract surface
// plus, when a sessionId is given, that session's capability flags.
func (h *Handler) Capabilities(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "Capabilities")

	out := map[string]any{
		"schemaVersion":  h.versions.ContractVersion(ctx),
		"stepTypes":      entity.StepTypes,
		"capabilityKeys": flow.CapabilityKeys,
	}

	if sessionID := r.URL.Query().Get("sessionId"); sessionID != "" {
		flags, err := h.usecase.Capabilities(ctx, sessionID)
		switch {
		case errors.Is(err, entity.ErrSessionNotFound):
			response.Error(w, http.StatusNotFound, "session not found")
			return
		case err != nil:
			ctxzap.Error(ctx, "failed to read session capabilities", zap.Error(err))
			response.Error(w, http.StatusInternalServerError, "internal server error")
			return
		}
		out["sessionId"] = sessionID
		out["capabilities"] = flags
	}

	response.Success(w, out)
}

// ResetSession handles DELETE /api/form/session/{id} - drop stored session memory.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "ResetSession")
	sessionID := chi.URLParam(r, "id")

	if err := h.usecase.ResetSession(ctx, sessionID); err != nil {
		ctxzap.Error(ctx, "failed to reset session", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	ctxzap.Info(ctx, "session memory reset", zap.String("session_id", sessionID))
	response.NoContent(w)
}
