// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

// Package store manages the PostgreSQL connection and schema.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ConnectOptions tune Connect.
type ConnectOptions struct {
	// Timeout bounds the whole connect including retries.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries uint64
	// Backoff is the initial retry delay; it doubles on each retry.
	Backoff time.Duration
}

// DefaultConnectOptions are used for zero fields of ConnectOptions.
var DefaultConnectOptions = ConnectOptions{
	Timeout:    30 * time.Second,
	MaxRetries: 5,
	Backoff:    250 * time.Millisecond,
}

// Connect opens a pgx pool and waits until the database answers a ping.
// Ping failures are retried with exponential backoff so the service can
// start alongside its database.
func Connect(ctx context.Context, databaseURL string, opts ConnectOptions) (*pgxpool.Pool, error) {
	opts = opts.withDefaults()

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	backoff := retry.WithMaxRetries(opts.MaxRetries, retry.NewExponential(opts.Backoff))
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := pool.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}
	return pool, nil
}

func (o ConnectOptions) withDefaults() ConnectOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultConnectOptions.Timeout
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = DefaultConnectOptions.MaxRetries
	}
	if o.Backoff <= 0 {
		o.Backoff = DefaultConnectOptions.Backoff
	}
	return o
}
