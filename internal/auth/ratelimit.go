// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package auth

import (
	"context"
)

// LoginLimiter throttles repeated failed logins per email and origin.
type LoginLimiter interface {
	// Allow reports whether another login attempt may proceed.
	Allow(ctx context.Context, email, origin string) (bool, error)

	// RecordFailure counts a failed attempt.
	RecordFailure(ctx context.Context, email, origin string) error

	// Reset clears the counters after a successful login.
	Reset(ctx context.Context, email, origin string) error
}

// noopLimiter never throttles.
type noopLimiter struct{}

func (noopLimiter) Allow(context.Context, string, string) (bool, error) { return true, nil }
func (noopLimiter) RecordFailure(context.Context, string, string) error { return nil }
func (noopLimiter) Reset(context.Context, string, string) error         { return nil }

// MetricsRecorder receives authentication outcomes.
type MetricsRecorder interface {
	LoginAttempt(result string)
	SessionValidation(result string)
	Revocation(reason string)
	Registration(result string)
}

// Outcome labels passed to MetricsRecorder.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultLimited  = "rate_limited"
	ResultError    = "error"

	RevocationLogin          = "login"
	RevocationLogout         = "logout"
	RevocationPasswordChange = "password_change"
)

type noopMetrics struct{}

func (noopMetrics) LoginAttempt(string)      {}
func (noopMetrics) SessionValidation(string) {}
func (noopMetrics) Revocation(string)        {}
func (noopMetrics) Registration(string)      {}
