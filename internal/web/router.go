// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/smarthealth/healthgate/internal/access"
)

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	if s.cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed.")
	})

	r.Post("/register", s.handleRegister)
	r.Get("/validate-email", s.handleValidateEmail)
	r.Post("/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.sessionMiddleware)

		r.Post("/logout", s.handleLogout)
		r.With(s.requireOwnProfile(access.ActionRead)).Get("/user/me", s.handleMe)
		r.With(s.requireOwnProfile(access.ActionWrite)).Post("/changePassword", s.handleChangePassword)
		r.With(s.requireOwnProfile(access.ActionDelete)).Delete("/users/", s.handleDeleteOwnAccount)

		r.Group(func(r chi.Router) {
			r.Use(s.requirePermission(access.PermManageUsers))

			r.Get("/roles", s.handleListRoles)
			r.Get("/users", s.handleListUsers)
			r.Patch("/users/{email}/roles/{roleID}", s.handleAssignRole)
			r.Delete("/users/{email}", s.handleDeleteUser)
			r.Get("/users/merchants/", s.handleListPendingMerchants)
			r.Patch("/users/merchants/{email}", s.handleValidateMerchant)
		})
	})

	return r
}
