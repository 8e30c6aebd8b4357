// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned by IdentityRepository.Create when the email is
// already registered.
var ErrEmailTaken = errors.New("email already registered")

// ErrInvalidToken is the cause of every session token decode failure.
var ErrInvalidToken = errors.New("invalid session token")

// Error codes surfaced to callers. Transports map these to status codes.
const (
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeUnauthenticated    = "AUTH_UNAUTHENTICATED"
	CodeInvalidInput       = "AUTH_INVALID_INPUT"
	CodeInvalidPassword    = "AUTH_INVALID_PASSWORD"
	CodeRateLimited        = "AUTH_RATE_LIMITED"
	CodeForbidden          = "AUTH_FORBIDDEN"
)

// Messages are fixed so that no rejection reveals which check failed.
const (
	msgInvalidCredentials = "incorrect username or password"
	msgUnauthenticated    = "could not validate credentials"
)

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf(msgInvalidCredentials)
}

func unauthenticated() error {
	return oops.Code(CodeUnauthenticated).Errorf(msgUnauthenticated)
}

func invalidInput(field, format string, args ...any) error {
	return oops.Code(CodeInvalidInput).With("field", field).Errorf(format, args...)
}
