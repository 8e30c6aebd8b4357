// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/samber/oops"
)

// Principal is the authenticated caller resolved from a session token.
type Principal struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// SessionServiceConfig holds the collaborators of a SessionService.
// Limiter, Metrics and Logger are optional.
type SessionServiceConfig struct {
	Identities IdentityRepository
	Roles      RoleResolver
	Codec      TokenCodec
	Hasher     PasswordHasher
	Transactor Transactor
	Limiter    LoginLimiter
	Metrics    MetricsRecorder
	Logger     *slog.Logger

	// SessionTTL defaults to DefaultSessionTTL.
	SessionTTL time.Duration
	// RequireValidatedEmail rejects logins for unvalidated identities.
	RequireValidatedEmail bool
}

// SessionService issues, validates and revokes session tokens.
type SessionService struct {
	identities       IdentityRepository
	roles            RoleResolver
	codec            TokenCodec
	hasher           PasswordHasher
	tx               Transactor
	limiter          LoginLimiter
	metrics          MetricsRecorder
	logger           *slog.Logger
	ttl              time.Duration
	requireValidated bool
}

// NewSessionService creates a SessionService.
func NewSessionService(cfg SessionServiceConfig) (*SessionService, error) {
	switch {
	case cfg.Identities == nil:
		return nil, oops.Code("SERVICE_INVALID").Errorf("identity repository is required")
	case cfg.Roles == nil:
		return nil, oops.Code("SERVICE_INVALID").Errorf("role resolver is required")
	case cfg.Codec == nil:
		return nil, oops.Code("SERVICE_INVALID").Errorf("token codec is required")
	case cfg.Hasher == nil:
		return nil, oops.Code("SERVICE_INVALID").Errorf("password hasher is required")
	case cfg.Transactor == nil:
		return nil, oops.Code("SERVICE_INVALID").Errorf("transactor is required")
	}

	s := &SessionService{
		identities:       cfg.Identities,
		roles:            cfg.Roles,
		codec:            cfg.Codec,
		hasher:           cfg.Hasher,
		tx:               cfg.Transactor,
		limiter:          cfg.Limiter,
		metrics:          cfg.Metrics,
		logger:           cfg.Logger,
		ttl:              cfg.SessionTTL,
		requireValidated: cfg.RequireValidatedEmail,
	}
	if s.limiter == nil {
		s.limiter = noopLimiter{}
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.ttl <= 0 {
		s.ttl = DefaultSessionTTL
	}
	return s, nil
}

// dummyPasswordHash is verified against when the email is unknown so that
// response time does not reveal whether an account exists. It uses the
// current parameters and matches no password.
//
//nolint:gosec // G101: not a credential
const dummyPasswordHash = "$argon2id$v=19$m=19456,t=2,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Login verifies credentials and returns a new session token bound to
// origin. A successful login revokes every earlier token of the identity.
func (s *SessionService) Login(ctx context.Context, email, password, origin string) (string, error) {
	if email == "" || is.Email.Validate(email) != nil || !IsPasswordValid(password) {
		s.metrics.LoginAttempt(ResultRejected)
		return "", invalidCredentials()
	}

	allowed, err := s.limiter.Allow(ctx, email, origin)
	if err != nil {
		s.logger.WarnContext(ctx, "login limiter unavailable, allowing attempt",
			"operation", "check login limit",
			"error", err)
	} else if !allowed {
		s.metrics.LoginAttempt(ResultLimited)
		return "", oops.Code(CodeRateLimited).Errorf("too many failed login attempts")
	}

	identity, lookupErr := s.identities.GetByEmail(ctx, email)
	targetHash := dummyPasswordHash
	switch {
	case lookupErr == nil:
		targetHash = identity.PasswordHash
	case errors.Is(lookupErr, ErrNotFound):
		identity = nil
	default:
		s.metrics.LoginAttempt(ResultError)
		return "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get identity by email").
			Wrap(lookupErr)
	}

	valid := s.hasher.Verify(password, targetHash)
	if identity == nil || !valid || (s.requireValidated && !identity.Validated) {
		if err := s.limiter.RecordFailure(ctx, email, origin); err != nil {
			s.logger.WarnContext(ctx, "failed to record login failure",
				"operation", "record login failure",
				"error", err)
		}
		s.metrics.LoginAttempt(ResultRejected)
		return "", invalidCredentials()
	}

	version, err := s.identities.IncrementTokenVersion(ctx, identity.ID)
	if err != nil {
		s.metrics.LoginAttempt(ResultError)
		return "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "increment token version").
			With("identity_id", identity.ID.String()).
			Wrap(err)
	}
	s.metrics.Revocation(RevocationLogin)

	token, err := s.codec.Encode(identity.Email, origin, version, s.ttl)
	if err != nil {
		s.metrics.LoginAttempt(ResultError)
		return "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "encode session token").
			Wrap(err)
	}

	s.upgradeHash(ctx, identity, password)
	if err := s.limiter.Reset(ctx, email, origin); err != nil {
		s.logger.WarnContext(ctx, "failed to reset login limiter",
			"operation", "reset login limit",
			"error", err)
	}

	s.metrics.LoginAttempt(ResultSuccess)
	return token, nil
}

// upgradeHash rehashes a password stored with outdated parameters.
// Failures are logged and do not fail the login.
func (s *SessionService) upgradeHash(ctx context.Context, identity *Identity, password string) {
	if !s.hasher.NeedsUpgrade(identity.PasswordHash) {
		return
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to rehash password",
			"operation", "rehash password",
			"identity_id", identity.ID.String(),
			"error", err)
		return
	}
	if err := s.identities.UpdatePasswordHash(ctx, identity.ID, hash); err != nil {
		s.logger.WarnContext(ctx, "failed to store upgraded password hash",
			"operation", "store upgraded hash",
			"identity_id", identity.ID.String(),
			"error", err)
	}
}

// Validate resolves a session token presented from origin to a Principal.
// Every rejection returns the same AUTH_UNAUTHENTICATED error. Store
// failures are returned as AUTH_VALIDATE_FAILED.
func (s *SessionService) Validate(ctx context.Context, token, origin string) (*Principal, error) {
	principal, err := s.validate(ctx, token, origin)
	switch {
	case err == nil:
		s.metrics.SessionValidation(ResultSuccess)
	case isCode(err, CodeUnauthenticated):
		s.metrics.SessionValidation(ResultRejected)
	default:
		s.metrics.SessionValidation(ResultError)
	}
	return principal, err
}

func (s *SessionService) validate(ctx context.Context, token, origin string) (*Principal, error) {
	if token == "" {
		return nil, unauthenticated()
	}

	claims, err := s.codec.Decode(token)
	if err != nil {
		s.logger.DebugContext(ctx, "session token rejected", "reason", "decode")
		return nil, unauthenticated()
	}
	if claims.IPAddress != origin {
		s.logger.DebugContext(ctx, "session token rejected", "reason", "origin mismatch")
		return nil, unauthenticated()
	}

	identity, err := s.identities.GetByEmail(ctx, claims.Subject)
	if errors.Is(err, ErrNotFound) {
		s.logger.DebugContext(ctx, "session token rejected", "reason", "unknown subject")
		return nil, unauthenticated()
	}
	if err != nil {
		return nil, oops.Code("AUTH_VALIDATE_FAILED").
			With("operation", "get identity by email").
			Wrap(err)
	}
	if identity.TokenVersion != claims.Version {
		s.logger.DebugContext(ctx, "session token rejected", "reason", "revoked")
		return nil, unauthenticated()
	}

	role, ok, err := s.roles.Resolve(ctx, identity.ID)
	if err != nil {
		return nil, oops.Code("AUTH_VALIDATE_FAILED").
			With("operation", "resolve role").
			Wrap(err)
	}
	if !ok {
		s.logger.DebugContext(ctx, "session token rejected", "reason", "no role")
		return nil, unauthenticated()
	}

	return &Principal{Name: identity.Name, Email: identity.Email, Role: role.Name}, nil
}

// Logout revokes every outstanding token of the identity.
func (s *SessionService) Logout(ctx context.Context, email string) error {
	identity, err := s.identities.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return unauthenticated()
	}
	if err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "get identity by email").
			Wrap(err)
	}
	if _, err := s.identities.IncrementTokenVersion(ctx, identity.ID); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "increment token version").
			With("identity_id", identity.ID.String()).
			Wrap(err)
	}
	s.metrics.Revocation(RevocationLogout)
	return nil
}

// ChangePassword replaces the password after verifying the current one.
// The new hash and the token version bump are committed together, so all
// existing sessions end with the change.
func (s *SessionService) ChangePassword(ctx context.Context, email, currentPassword, newPassword, confirmPassword string) error {
	identity, err := s.identities.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return unauthenticated()
	}
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "get identity by email").
			Wrap(err)
	}

	if !s.hasher.Verify(currentPassword, identity.PasswordHash) {
		return invalidCredentials()
	}
	if newPassword != confirmPassword {
		return invalidInput("confirm_new_password", "new password and confirmation do not match")
	}
	if err := ValidatePassword(newPassword); err != nil {
		return invalidInput("new_password", "%s", err.Error())
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.identities.UpdatePasswordHash(ctx, identity.ID, hash); err != nil {
			return err
		}
		_, err := s.identities.IncrementTokenVersion(ctx, identity.ID)
		return err
	})
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "store new password").
			With("identity_id", identity.ID.String()).
			Wrap(err)
	}
	s.metrics.Revocation(RevocationPasswordChange)
	return nil
}

// isCode reports whether err is an oops error with the given code.
func isCode(err error, code string) bool {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	c, _ := oopsErr.Code().(string)
	return c == code
}
