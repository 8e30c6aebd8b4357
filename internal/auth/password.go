// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package auth

import (
	"unicode/utf8"

	"github.com/samber/oops"
)

// Password length bounds, counted in characters. There are no
// character-class rules.
const (
	MinPasswordLength = 15
	MaxPasswordLength = 64
)

// ValidatePassword checks a plaintext password against the length policy.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength {
		return oops.Code(CodeInvalidPassword).
			With("min_length", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if n > MaxPasswordLength {
		return oops.Code(CodeInvalidPassword).
			With("max_length", MaxPasswordLength).
			Errorf("password must be at most %d characters", MaxPasswordLength)
	}
	return nil
}

// IsPasswordValid reports whether password satisfies the length policy.
func IsPasswordValid(password string) bool {
	return ValidatePassword(password) == nil
}
