// Package handler exposes the lead intake API over HTTP.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
)

// Logger is the trace-aware logger every handler writes to.
type Logger = otelzap.SugaredLogger

// API groups the handlers mounted under /api/v1.
type API struct {
	Auth   *AuthHandler
	Leads  *LeadHandler
	Health *HealthHandler

	// Files serves stored resumes when the local backend is used. Nil
	// disables the route.
	Files http.Handler
}

// Routes mounts every endpoint on r. Public: root, health, login and lead
// submission. Everything else requires a bearer token.
func (a API) Routes(r chi.Router) {
	r.Get("/", a.Health.Root)
	r.Get("/health", a.Health.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", a.Auth.Login)
		r.Post("/leads", a.Leads.Create)

		r.Group(func(r chi.Router) {
			r.Use(a.Auth.Authenticate)

			r.Get("/leads", a.Leads.List)
			r.Get("/leads/{id}", a.Leads.GetByID)
			r.Patch("/leads/{id}/state", a.Leads.Transition)

			if a.Files != nil {
				r.Handle("/files/*", http.StripPrefix("/api/v1/files", a.Files))
			}
		})
	})
}
