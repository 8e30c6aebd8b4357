// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/smarthealth/healthgate/internal/access"
	"github.com/smarthealth/healthgate/internal/auth"
	"github.com/smarthealth/healthgate/internal/auth/postgres"
	"github.com/smarthealth/healthgate/internal/config"
	"github.com/smarthealth/healthgate/internal/mail"
	"github.com/smarthealth/healthgate/internal/observability"
	"github.com/smarthealth/healthgate/internal/ratelimit"
	"github.com/smarthealth/healthgate/internal/store"
	"github.com/smarthealth/healthgate/internal/web"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HealthGate HTTP API together with the metrics and health
server. The database schema must be migrated first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, logger, cmd, nil)
		},
	}

	fs := cmd.Flags()
	addDatabaseFlags(fs)
	fs.String("http-addr", "", "API listen address")
	fs.StringSlice("allowed-origins", nil, "CORS origins allowed to send credentials")
	fs.Bool("trust-proxy", false, "take the client IP from X-Forwarded-For / X-Real-IP")
	fs.String("metrics-addr", "", "metrics/health HTTP address")
	fs.Duration("session-ttl", 0, "session token lifetime")
	fs.String("session-binding", "", "session binding: ip or fingerprint")
	fs.Bool("cookie-secure", true, "set the Secure attribute on the session cookie")
	fs.Bool("require-email-validation", false, "require standard users to confirm their email")
	fs.String("redis-addr", "", "Redis address for login throttling (empty = disabled)")

	return cmd
}

// runServeWithDeps starts the service with injectable dependencies and
// blocks until a signal arrives, ctx is cancelled or a server fails.
func runServeWithDeps(ctx context.Context, cfg *config.Config, logger *slog.Logger, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()

	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required")
	}
	if len(cfg.Session.Secret) < auth.MinSecretLength {
		return oops.Code("CONFIG_INVALID").
			With("min_length", auth.MinSecretLength).
			Errorf("session.secret must be at least %d bytes", auth.MinSecretLength)
	}

	pool, err := deps.PoolFactory(ctx, cfg.Database.URL, store.ConnectOptions{Timeout: cfg.Database.ConnectTimeout})
	if err != nil {
		return oops.With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()
	logger.Info("connected to database")

	var limiter auth.LoginLimiter
	var limiterPing func(context.Context) error
	if cfg.RateLimit.RedisAddr != "" {
		client := deps.RedisFactory(cfg.RateLimit.RedisAddr)
		defer closeRedis(client, logger)
		rl, err := ratelimit.New(client, ratelimit.Config{
			MaxAttempts: cfg.RateLimit.MaxAttempts,
			Window:      cfg.RateLimit.Window,
		})
		if err != nil {
			return err
		}
		limiter, limiterPing = rl, rl.Ping
		logger.Info("login throttling enabled", "redis_addr", cfg.RateLimit.RedisAddr)
	}

	ready := func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return err
		}
		if limiterPing != nil {
			return limiterPing(ctx)
		}
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, ready)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability", logger)
		metrics = obsServer.Metrics()
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	apiDeps, err := buildAPIDeps(cfg, pool, limiter, metrics, logger)
	if err != nil {
		stopAll(logger, obsServer)
		return err
	}
	apiServer, err := deps.APIServerFactory(apiDeps)
	if err != nil {
		stopAll(logger, obsServer)
		return err
	}
	apiErrCh, err := apiServer.Start()
	if err != nil {
		stopAll(logger, obsServer)
		return oops.With("operation", "start api server").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "api", logger)

	if cfg.IsDevelopment() {
		logger.Warn("running in development mode", "cookie_secure", cfg.Cookie.Secure)
	}
	cmd.Println("HealthGate started")
	logger.Info("healthgate ready",
		"addr", apiServer.Addr(),
		"environment", cfg.Environment,
		"session_binding", cfg.Session.Binding)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	stopAll(logger, apiServer, obsServer)
	logger.Info("shutdown complete")
	return nil
}

// buildAPIDeps wires the auth core onto the database pool.
func buildAPIDeps(cfg *config.Config, pool DatabasePool, limiter auth.LoginLimiter, metrics *observability.Metrics, logger *slog.Logger) (web.Deps, error) {
	identities := postgres.NewIdentityRepository(pool)
	roles := postgres.NewRoleRepository(pool)
	tokens := postgres.NewValidationTokenRepository(pool)
	tx := postgres.NewTransactor(pool)
	hasher := auth.NewArgon2idHasher()

	var recorder auth.MetricsRecorder
	if metrics != nil {
		recorder = metrics
	}

	codec, err := auth.NewJWTCodec(auth.CodecConfig{
		Secret: []byte(cfg.Session.Secret),
		Issuer: cfg.Session.Issuer,
	})
	if err != nil {
		return web.Deps{}, err
	}

	sessions, err := auth.NewSessionService(auth.SessionServiceConfig{
		Identities:            identities,
		Roles:                 auth.NewRoleResolver(roles),
		Codec:                 codec,
		Hasher:                hasher,
		Transactor:            tx,
		Limiter:               limiter,
		Metrics:               recorder,
		Logger:                logger,
		SessionTTL:            cfg.Session.TTL,
		RequireValidatedEmail: cfg.Registration.RequireEmailValidation,
	})
	if err != nil {
		return web.Deps{}, err
	}

	var mailer auth.Mailer
	if cfg.Registration.RequireEmailValidation {
		mailer = mail.NewLogMailer(logger)
	}
	registration, err := auth.NewRegistrationService(auth.RegistrationServiceConfig{
		Identities:      identities,
		Roles:           roles,
		Tokens:          tokens,
		Hasher:          hasher,
		Transactor:      tx,
		Mailer:          mailer,
		Metrics:         recorder,
		Logger:          logger,
		EmailValidation: cfg.Registration.RequireEmailValidation,
		ValidationURL:   cfg.Registration.ValidationBaseURL,
		PhoneRegion:     cfg.Registration.PhoneRegion,
	})
	if err != nil {
		return web.Deps{}, err
	}

	admin, err := auth.NewAdminServiceWithLogger(identities, roles, tokens, tx, logger)
	if err != nil {
		return web.Deps{}, err
	}

	return web.Deps{
		Config: web.Config{
			Addr:            cfg.HTTP.Addr,
			AllowedOrigins:  cfg.HTTP.AllowedOrigins,
			TrustProxy:      cfg.HTTP.TrustProxy,
			Binding:         web.Binding(cfg.Session.Binding),
			CookieSecure:    cfg.Cookie.Secure,
			SessionTTL:      cfg.Session.TTL,
			ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		},
		Sessions:     sessions,
		Registration: registration,
		Admin:        admin,
		Policy:       access.DefaultPolicy(),
		Metrics:      metrics,
		Logger:       logger,
	}, nil
}

type stopper interface {
	Stop(ctx context.Context) error
}

// stopAll stops servers in order. Nil entries are skipped.
func stopAll(logger *slog.Logger, servers ...stopper) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	for _, s := range servers {
		if s == nil {
			continue
		}
		if err := s.Stop(ctx); err != nil {
			logger.Warn("error stopping server", "error", err)
		}
	}
}

func closeRedis(client redis.UniversalClient, logger *slog.Logger) {
	if err := client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		logger.Warn("error closing redis client", "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports an error. It
// returns when the channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
