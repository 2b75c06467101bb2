// Package api wires the review server's HTTP routes.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	mw "github.com/kiranshivaraju/bioverify/internal/api/middleware"
	"github.com/kiranshivaraju/bioverify/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	RateLimit *mw.RateLimit

	HealthHandler      http.HandlerFunc
	SubmitHandler      http.HandlerFunc
	ListHandler        http.HandlerFunc
	GetAnalysisHandler http.HandlerFunc
	ReleaseHandler     http.HandlerFunc
	EvidenceHandler    http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Post("/api/v1/analyses", orNotImplemented(deps.SubmitHandler))
		r.Get("/api/v1/analyses", orNotImplemented(deps.ListHandler))
		r.Get("/api/v1/analyses/{id}", orNotImplemented(deps.GetAnalysisHandler))
		r.Delete("/api/v1/analyses/{id}/watch", orNotImplemented(deps.ReleaseHandler))
		r.Get("/api/v1/analyses/{id}/evidence", orNotImplemented(deps.EvidenceHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
