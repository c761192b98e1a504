// Package http assembles the service router: public endorsement routes,
// JWT-guarded admin routes, and the ops endpoints.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	endorsementHandler "coalition/internal/endorsement/handler"
	moderationHandler "coalition/internal/moderation/handler"
	"coalition/internal/platform/middleware"
)

// NewRouter wires the full route tree. Admin routes mount behind RequireAdmin;
// public routes carry only the ambient middleware stack.
func NewRouter(
	public *endorsementHandler.Handler,
	admin *moderationHandler.Handler,
	validator middleware.AdminValidator,
	healthz http.HandlerFunc,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(logger))

	public.Register(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(validator, logger))
		admin.Register(r)
	})

	r.Get("/healthz", healthz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
