// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// DefaultSessionTTL is the lifetime of a session token.
const DefaultSessionTTL = 30 * time.Minute

// MinSecretLength is the minimum signing secret length in bytes.
const MinSecretLength = 32

// SessionClaims is the decoded content of a session token.
type SessionClaims struct {
	Subject   string
	IPAddress string
	Version   int64
	ExpiresAt time.Time
}

// TokenCodec encodes and decodes signed session tokens.
type TokenCodec interface {
	Encode(subject, ipAddress string, version int64, ttl time.Duration) (string, error)
	Decode(token string) (*SessionClaims, error)
}

// CodecConfig configures a JWTCodec.
type CodecConfig struct {
	// Secret is the HMAC signing key.
	Secret []byte
	// Issuer, when set, is written to and required on every token.
	Issuer string
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

// sessionJWTClaims is the wire form. Version is a pointer so a missing
// claim can be told apart from version zero.
type sessionJWTClaims struct {
	IPAddress string `json:"ip_address"`
	Version   *int64 `json:"version"`
	jwt.RegisteredClaims
}

// JWTCodec implements TokenCodec with HS256 JWTs. It holds no state
// beyond its configuration.
type JWTCodec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTCodec creates a JWTCodec. The secret must be at least
// MinSecretLength bytes.
func NewJWTCodec(cfg CodecConfig) (*JWTCodec, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, oops.Code("TOKEN_SECRET_INVALID").
			With("min_length", MinSecretLength).
			Errorf("session signing secret must be at least %d bytes", MinSecretLength)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	return &JWTCodec{secret: secret, issuer: cfg.Issuer, now: now}, nil
}

// Encode signs a token for subject bound to ipAddress and version.
// A non-positive ttl selects DefaultSessionTTL.
func (c *JWTCodec) Encode(subject, ipAddress string, version int64, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := c.now()
	claims := sessionJWTClaims{
		IPAddress: ipAddress,
		Version:   &version,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// Decode verifies token and returns its claims. Every failure wraps
// ErrInvalidToken.
func (c *JWTCodec) Decode(token string) (*SessionClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	claims := &sessionJWTClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID").With("reason", err.Error()).Wrap(ErrInvalidToken)
	}

	switch {
	case claims.Subject == "":
		return nil, oops.Code("TOKEN_INVALID").With("reason", "missing sub").Wrap(ErrInvalidToken)
	case claims.IPAddress == "":
		return nil, oops.Code("TOKEN_INVALID").With("reason", "missing ip_address").Wrap(ErrInvalidToken)
	case claims.Version == nil:
		return nil, oops.Code("TOKEN_INVALID").With("reason", "missing version").Wrap(ErrInvalidToken)
	}

	return &SessionClaims{
		Subject:   claims.Subject,
		IPAddress: claims.IPAddress,
		Version:   *claims.Version,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
