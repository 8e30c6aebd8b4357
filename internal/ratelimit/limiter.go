// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

// Package ratelimit throttles failed logins with fixed-window counters in
// Redis. Each failure increments a counter for the email and one for the
// origin; the first hit in a window sets its expiry. Origins are stored as
// SHA-256 digests so a client-supplied fingerprint cannot grow keys.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/smarthealth/healthgate/internal/auth"
)

const (
	emailKeyPrefix  = "healthgate:login:email:"
	originKeyPrefix = "healthgate:login:origin:"
)

// Config tunes a RedisLimiter.
type Config struct {
	// MaxAttempts is the number of failures allowed in one window.
	MaxAttempts int
	// Window is the lifetime of a counter, measured from its first failure.
	Window time.Duration
}

// RedisLimiter implements auth.LoginLimiter.
type RedisLimiter struct {
	client redis.UniversalClient
	cfg    Config
}

var _ auth.LoginLimiter = (*RedisLimiter)(nil)

// New creates a RedisLimiter.
func New(client redis.UniversalClient, cfg Config) (*RedisLimiter, error) {
	if client == nil {
		return nil, oops.Code("RATELIMIT_INVALID_CONFIG").Errorf("redis client is required")
	}
	if cfg.MaxAttempts < 1 {
		return nil, oops.Code("RATELIMIT_INVALID_CONFIG").With("max_attempts", cfg.MaxAttempts).Errorf("max attempts must be positive")
	}
	if cfg.Window <= 0 {
		return nil, oops.Code("RATELIMIT_INVALID_CONFIG").With("window", cfg.Window).Errorf("window must be positive")
	}
	return &RedisLimiter{client: client, cfg: cfg}, nil
}

// Allow reports false once either counter has reached MaxAttempts.
func (l *RedisLimiter) Allow(ctx context.Context, email, origin string) (bool, error) {
	for _, key := range l.keys(email, origin) {
		count, err := l.client.Get(ctx, key).Int64()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return false, unavailable("read counter", err)
		}
		if count >= int64(l.cfg.MaxAttempts) {
			return false, nil
		}
	}
	return true, nil
}

// RecordFailure increments both counters.
func (l *RedisLimiter) RecordFailure(ctx context.Context, email, origin string) error {
	for _, key := range l.keys(email, origin) {
		count, err := l.client.Incr(ctx, key).Result()
		if err != nil {
			return unavailable("increment counter", err)
		}
		if count == 1 {
			if err := l.client.Expire(ctx, key, l.cfg.Window).Err(); err != nil {
				return unavailable("set counter expiry", err)
			}
		}
	}
	return nil
}

// Reset clears the email counter after a successful login. The origin
// counter is left to expire so one good account cannot unlock an origin
// that is guessing at others.
func (l *RedisLimiter) Reset(ctx context.Context, email, _ string) error {
	if err := l.client.Del(ctx, emailKeyPrefix+normalize(email)).Err(); err != nil {
		return unavailable("reset counter", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (l *RedisLimiter) Ping(ctx context.Context) error {
	if err := l.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (l *RedisLimiter) keys(email, origin string) []string {
	keys := []string{emailKeyPrefix + normalize(email)}
	if origin != "" {
		keys = append(keys, originKeyPrefix+digest(origin))
	}
	return keys
}

func digest(origin string) string {
	sum := sha256.Sum256([]byte(origin))
	return hex.EncodeToString(sum[:])
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func unavailable(operation string, err error) error {
	return oops.Code("RATELIMIT_UNAVAILABLE").With("operation", operation).Wrap(err)
}
