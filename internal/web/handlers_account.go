// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/samber/oops"

	"github.com/smarthealth/healthgate/internal/auth"
)

type roleResponse struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type accountResponse struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone"`
	Role  string  `json:"role"`
}

func toAccountResponses(accounts []auth.Account) []accountResponse {
	out := make([]accountResponse, len(accounts))
	for i, a := range accounts {
		out[i] = accountResponse{Name: a.Name, Email: a.Email, Phone: a.Phone, Role: a.Role}
	}
	return out
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in auth.RegistrationInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.registration.Register(r.Context(), in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeMessage(w, "User successfully created.")
}

func (s *Server) handleValidateEmail(w http.ResponseWriter, r *http.Request) {
	if err := s.registration.ValidateEmail(r.Context(), r.URL.Query().Get("token")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeMessage(w, "Email address successfully validated.")
}

func (s *Server) handleDeleteOwnAccount(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	if err := s.admin.DeleteOwnAccount(r.Context(), principal.Email); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.clearSessionCookie(w)
	writeMessage(w, "User and all related data deleted successfully.")
}

func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.admin.ListRoles(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := make([]roleResponse, len(roles))
	for i, role := range roles {
		out[i] = roleResponse{ID: role.ID, Name: role.Name}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.admin.ListUsers(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponses(accounts))
}

func (s *Server) handleListPendingMerchants(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.admin.ListPendingMerchants(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponses(accounts))
}

func (s *Server) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	roleID, err := strconv.Atoi(chi.URLParam(r, "roleID"))
	if err != nil {
		s.writeServiceError(w, r, oops.Code(auth.CodeInvalidInput).With("field", "role_id").Errorf("role id must be an integer"))
		return
	}
	if err := s.admin.AssignRole(r.Context(), email, roleID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeMessage(w, "Update successful.")
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	if err := s.admin.DeleteUser(r.Context(), principal.Email, chi.URLParam(r, "email")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeMessage(w, "User and all related data deleted successfully.")
}

func (s *Server) handleValidateMerchant(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.ValidateMerchant(r.Context(), chi.URLParam(r, "email")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeMessage(w, "Merchant successfully validated.")
}
