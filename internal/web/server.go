// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

// Package web exposes the HealthGate operations over HTTP.
//
// Sessions travel in the auth_token cookie. Every protected request is
// resolved to an auth.Principal through SessionService.Validate, which also
// enforces the origin binding; the origin is the client IP or, in
// fingerprint mode, the X-Device-Fingerprint header.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/smarthealth/healthgate/internal/access"
	"github.com/smarthealth/healthgate/internal/auth"
	"github.com/smarthealth/healthgate/internal/observability"
)

// SessionService is the session part of the auth core used by handlers.
type SessionService interface {
	Login(ctx context.Context, email, password, origin string) (string, error)
	Validate(ctx context.Context, token, origin string) (*auth.Principal, error)
	Logout(ctx context.Context, email string) error
	ChangePassword(ctx context.Context, email, currentPassword, newPassword, confirmPassword string) error
}

// RegistrationService is the sign-up part of the auth core.
type RegistrationService interface {
	Register(ctx context.Context, in auth.RegistrationInput) error
	ValidateEmail(ctx context.Context, token string) error
}

// AdminService is the account administration part of the auth core.
type AdminService interface {
	ListRoles(ctx context.Context) ([]auth.Role, error)
	ListUsers(ctx context.Context) ([]auth.Account, error)
	ListPendingMerchants(ctx context.Context) ([]auth.Account, error)
	AssignRole(ctx context.Context, email string, roleID int) error
	DeleteUser(ctx context.Context, actorEmail, email string) error
	DeleteOwnAccount(ctx context.Context, email string) error
	ValidateMerchant(ctx context.Context, email string) error
}

// Binding selects what a session token is bound to.
type Binding string

// Bindings.
const (
	BindIP          Binding = "ip"
	BindFingerprint Binding = "fingerprint"
)

// FingerprintHeader carries the device fingerprint in fingerprint mode.
// Longer values than MaxFingerprintLength are treated as missing.
const (
	FingerprintHeader    = "X-Device-Fingerprint"
	MaxFingerprintLength = 256
)

// Config configures the HTTP layer.
type Config struct {
	Addr            string
	AllowedOrigins  []string
	TrustProxy      bool
	Binding         Binding
	CookieSecure    bool
	SessionTTL      time.Duration
	ShutdownTimeout time.Duration
}

// Deps holds the collaborators of a Server. Metrics is optional.
type Deps struct {
	Config       Config
	Sessions     SessionService
	Registration RegistrationService
	Admin        AdminService
	Policy       *access.Policy
	Metrics      *observability.Metrics
	Logger       *slog.Logger
}

// Server is the HealthGate API server.
type Server struct {
	cfg          Config
	sessions     SessionService
	registration RegistrationService
	admin        AdminService
	policy       *access.Policy
	metrics      *observability.Metrics
	logger       *slog.Logger
	handler      http.Handler

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	running  bool
}

// New creates a Server. The server is not started until Start is called.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Sessions == nil:
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("session service is required")
	case deps.Registration == nil:
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("registration service is required")
	case deps.Admin == nil:
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("admin service is required")
	case deps.Policy == nil:
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("access policy is required")
	case deps.Logger == nil:
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("logger is required")
	}

	cfg := deps.Config
	if cfg.Binding == "" {
		cfg.Binding = BindIP
	}
	if cfg.Binding != BindIP && cfg.Binding != BindFingerprint {
		return nil, oops.Code("WEB_INVALID_CONFIG").With("binding", cfg.Binding).Errorf("unknown session binding")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = auth.DefaultSessionTTL
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		cfg:          cfg,
		sessions:     deps.Sessions,
		registration: deps.Registration,
		admin:        deps.Admin,
		policy:       deps.Policy,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
	}
	s.handler = s.buildRouter()
	return s, nil
}

// Handler returns the API handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening. The returned channel receives a serve error, if
// any, and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil, oops.Code("WEB_ALREADY_RUNNING").Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return nil, oops.Code("WEB_LISTEN_FAILED").With("addr", s.cfg.Addr).Wrap(err)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.running = true

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		s.logger.Info("api server started", "addr", listener.Addr().String())
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", err)
			errCh <- err
		}
	}()

	return errCh, nil
}

// Stop gracefully shuts the server down. Stopping a stopped server is a
// no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	s.running = false
	if err := s.server.Shutdown(ctx); err != nil {
		return oops.Code("WEB_SHUTDOWN_FAILED").Wrap(err)
	}
	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
