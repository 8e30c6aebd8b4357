// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Email validation token configuration.
const (
	ValidationTokenBytes  = 128
	ValidationTokenExpiry = 24 * time.Hour
)

// ValidationToken is a pending email validation. Only the SHA-256 hash of
// the token is stored; the plaintext goes to the user.
type ValidationToken struct {
	IdentityID ulid.ULID
	TokenHash  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// IsExpired returns true if the token has expired.
func (v *ValidationToken) IsExpired() bool {
	return time.Now().After(v.ExpiresAt)
}

// GenerateValidationToken creates a URL-safe random token and its hash.
func GenerateValidationToken() (token, hash string, err error) {
	b := make([]byte, ValidationTokenBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", oops.Code("VALIDATION_TOKEN_GENERATE_FAILED").Wrap(err)
	}
	token = base64.RawURLEncoding.EncodeToString(b)
	return token, HashValidationToken(token), nil
}

// HashValidationToken computes the stored form of a validation token.
func HashValidationToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// ValidationTokenRepository manages email validation tokens. There is at
// most one token per identity.
type ValidationTokenRepository interface {
	// Upsert stores the token, replacing any existing one for the identity.
	Upsert(ctx context.Context, token *ValidationToken) error

	// GetByTokenHash retrieves a token by its hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*ValidationToken, error)

	// DeleteByIdentity removes the identity's token. Deleting a missing
	// token is not an error.
	DeleteByIdentity(ctx context.Context, identityID ulid.ULID) error
}
