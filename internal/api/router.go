package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Get("/health", s.handleHealth)

	r.Route("/v1/mobile/auth", func(r chi.Router) {
		r.Post("/register", s.handleMobileRegister)
		r.Post("/login", s.handleMobileLogin)
		r.Post("/forgot-password", s.handleForgotPassword)
		r.Post("/reset-password", s.handleResetPassword)

		// Bearer token required
		r.Group(func(r chi.Router) {
			r.Use(s.bearerAuthMiddleware)

			r.Get("/me", s.handleMe)
			r.Post("/logout", s.handleMobileLogout)
			r.Post("/logout-all", s.handleLogoutAll)
			r.Get("/devices", s.handleListDevices)
			r.Delete("/devices/{id}", s.handleRevokeDevice)
		})
	})

	r.Route("/v1/web/auth", func(r chi.Router) {
		r.Use(s.csrfMiddleware)

		r.Get("/csrf-cookie", s.handleCSRFCookie)
		r.Post("/register", s.handleWebRegister)
		r.Post("/login", s.handleWebLogin)
		r.Post("/forgot-password", s.handleForgotPassword)
		r.Post("/reset-password", s.handleResetPassword)

		// Authenticated session required
		r.Group(func(r chi.Router) {
			r.Use(s.sessionAuthMiddleware)

			r.Get("/me", s.handleMe)
			r.Post("/logout", s.handleWebLogout)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusNotFound, "Not found.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, "Method not allowed.")
	})

	return r
}
