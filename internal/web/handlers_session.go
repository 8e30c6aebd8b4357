// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/samber/oops"

	"github.com/smarthealth/healthgate/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword    string `json:"current_password"`
	NewPassword        string `json:"new_password"`
	ConfirmNewPassword string `json:"confirm_new_password"`
}

// decodeJSON reads a JSON body into v. Malformed or oversized bodies are
// input errors.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return oops.Code(auth.CodeInvalidInput).With("limit", tooLarge.Limit).Errorf("request body too large")
		}
		return oops.Code(auth.CodeInvalidInput).Wrapf(err, "invalid request body")
	}
	return nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	origin, ok := s.origin(r)
	if !ok {
		s.writeServiceError(w, r, oops.Code(auth.CodeInvalidInput).
			With("field", FingerprintHeader).
			Errorf("%s header is required", FingerprintHeader))
		return
	}

	token, err := s.sessions.Login(r.Context(), req.Email, req.Password, origin)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.setSessionCookie(w, token)
	writeMessage(w, "Successfully logged in.")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	writeJSON(w, http.StatusOK, principal)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	if err := s.sessions.Logout(r.Context(), principal.Email); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.clearSessionCookie(w)
	writeMessage(w, "Successfully logged out.")
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	err := s.sessions.ChangePassword(r.Context(), principal.Email,
		req.CurrentPassword, req.NewPassword, req.ConfirmNewPassword)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	// The change revoked the session this request came in on.
	s.clearSessionCookie(w)
	writeMessage(w, "User successfully changed password.")
}
