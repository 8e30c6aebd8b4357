// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/samber/oops"

	"github.com/smarthealth/healthgate/internal/auth"
	"github.com/smarthealth/healthgate/pkg/errutil"
)

// Error is the body of every error response.
type Error struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// Message is the body of responses that only confirm an action.
type Message struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // best-effort write; the client may be gone
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, Error{Code: code, Detail: detail})
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, Message{Message: message})
}

// writeServiceError maps an oops error code to a response. Unknown codes
// are logged and answered with a generic 500 so internals do not leak.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := errutil.Code(err)
	status, detail := statusFor(code, err)
	if status == http.StatusInternalServerError {
		logger := s.logger.With("request_id", requestIDFrom(r.Context()), "path", r.URL.Path)
		errutil.LogError(r.Context(), logger, "request failed", err)
		code = "INTERNAL_ERROR"
	}
	writeError(w, status, code, detail)
}

func statusFor(code string, err error) (int, string) {
	switch {
	case code == auth.CodeInvalidCredentials:
		return http.StatusUnauthorized, "Incorrect username or password"
	case code == auth.CodeUnauthenticated:
		return http.StatusUnauthorized, "Could not validate credentials"
	case code == auth.CodeInvalidInput, code == auth.CodeInvalidPassword:
		return http.StatusUnprocessableEntity, publicMessage(err)
	case code == auth.CodeRateLimited:
		return http.StatusTooManyRequests, "Too many login attempts. Try again later."
	case code == auth.CodeForbidden:
		return http.StatusForbidden, "Impermissible action."
	case code == "USER_NOT_FOUND":
		return http.StatusNotFound, "User not found."
	case code == "ROLE_NOT_FOUND":
		return http.StatusNotFound, "Role not found."
	case strings.HasSuffix(code, "_NOT_FOUND"):
		return http.StatusNotFound, "Not found."
	case code == "ADMIN_SELF_DELETE":
		return http.StatusBadRequest, "Administrators cannot delete their own account."
	case code == "VALIDATION_TOKEN_INVALID":
		return http.StatusBadRequest, "Invalid or expired validation token."
	default:
		return http.StatusInternalServerError, "Internal server error."
	}
}

// publicMessage returns the message of the outermost oops error, which
// for input errors names the offending field.
func publicMessage(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		return oopsErr.Error()
	}
	return err.Error()
}
