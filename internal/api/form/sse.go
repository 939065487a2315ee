package form

import (
	"encoding/json"
	"net/http"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/intakeflow/intake-backend/internal/entity"
	"github.com/intakeflow/intake-backend/internal/pkg/logger"
	"github.com/intakeflow/intake-backend/internal/pkg/response"
)

// StreamNextSteps handles POST /api/form/stream - same pipeline pass as
// NextSteps, delivered as server-sent events: one `step` event per mini step,
// then a `done` event with the metadata envelope. Pipeline failures become a
// single `error` event. The pipeline itself is not incremental, so the
// stream replays a finished batch; the framing still lets clients paint
// steps one at a time.
func (h *Handler) StreamNextSteps(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "StreamNextSteps")

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

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx = logger.WithSession(ctx, payload.SessionID)
	resp := h.usecase.NextSteps(ctx, &payload)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if resp.Failed() {
		writeEvent(w, flusher, "error", resp)
		return
	}

	for _, step := range resp.MiniSteps {
		writeEvent(w, flusher, "step", step)
	}

	// The done event carries the envelope without the steps already sent.
	done := *resp
	done.MiniSteps = []entity.Step{}
	writeEvent(w, flusher, "done", &done)

	ctxzap.Info(ctx, "streamed next steps",
		zap.String("request_id", resp.RequestID),
		zap.Int("steps", len(resp.MiniSteps)),
	)
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return
	}
	w.Write([]byte("event: " + event + "\n"))
	w.Write([]byte("data: "))
	w.Write(encoded)
	w.Write([]byte("\n\n"))
	flusher.Flush()
}
