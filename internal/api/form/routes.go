package form

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers form generation routes on the router
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/api/form", func(r chi.Router) {
		r.Post("/", h.NextSteps)
		r.Post("/stream", h.StreamNextSteps)
		r.Get("/capabilities", h.Capabilities)
		r.Delete("/session/{id}", h.ResetSession)
	})
}
