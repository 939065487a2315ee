package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/intakeflow/intake-backend/internal/api/docs"
	formapi "github.com/intakeflow/intake-backend/internal/api/form"
	"github.com/intakeflow/intake-backend/internal/api/middleware"
)

// SetupRouter creates and configures the HTTP router
func SetupRouter(formHandler *formapi.Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS)
	// Generous default: one request can hold two sequential LM calls.
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	docs.RegisterRoutes(r)

	formapi.RegisterRoutes(r, formHandler)

	return r
}
