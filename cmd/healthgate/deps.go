// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package main

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/smarthealth/healthgate/internal/auth/postgres"
	"github.com/smarthealth/healthgate/internal/observability"
	"github.com/smarthealth/healthgate/internal/store"
	"github.com/smarthealth/healthgate/internal/web"
)

// ServeDeps contains injectable dependencies for the serve command.
// Fields left nil use their default implementations.
type ServeDeps struct {
	// PoolFactory connects to the database.
	// Default: store.Connect
	PoolFactory func(ctx context.Context, url string, opts store.ConnectOptions) (DatabasePool, error)

	// RedisFactory creates the rate-limit client.
	// Default: redis.NewClient
	RedisFactory func(addr string) redis.UniversalClient

	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker) ObservabilityServer

	// APIServerFactory creates the HTTP API server.
	// Default: web.New
	APIServerFactory func(deps web.Deps) (APIServer, error)
}

// DatabasePool is the part of *pgxpool.Pool used by the commands.
type DatabasePool interface {
	postgres.Pool
	Ping(ctx context.Context) error
	Close()
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// APIServer wraps the methods used from web.Server.
type APIServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.PoolFactory == nil {
		out.PoolFactory = connectPool
	}
	if out.RedisFactory == nil {
		out.RedisFactory = func(addr string) redis.UniversalClient {
			return redis.NewClient(&redis.Options{Addr: addr})
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, ready)
		}
	}
	if out.APIServerFactory == nil {
		out.APIServerFactory = func(deps web.Deps) (APIServer, error) {
			srv, err := web.New(deps)
			if err != nil {
				return nil, err
			}
			return srv, nil
		}
	}
	return &out
}

func connectPool(ctx context.Context, url string, opts store.ConnectOptions) (DatabasePool, error) {
	pool, err := store.Connect(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	return pool, nil
}
