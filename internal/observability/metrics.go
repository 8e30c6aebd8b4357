// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/smarthealth/healthgate/internal/auth"
)

// Metrics holds the HealthGate counters. It implements
// auth.MetricsRecorder.
type Metrics struct {
	Logins             *prometheus.CounterVec
	SessionValidations *prometheus.CounterVec
	Revocations        *prometheus.CounterVec
	Registrations      *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthgate_logins_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		SessionValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthgate_session_validations_total",
			Help: "Session validations by result",
		}, []string{"result"}),
		Revocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthgate_revocations_total",
			Help: "Token version increments by reason",
		}, []string{"reason"}),
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthgate_registrations_total",
			Help: "Registration requests by result",
		}, []string{"result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthgate_http_requests_total",
			Help: "HTTP requests by route pattern, method and status",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "healthgate_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.Logins,
		m.SessionValidations,
		m.Revocations,
		m.Registrations,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// LoginAttempt implements auth.MetricsRecorder.
func (m *Metrics) LoginAttempt(result string) { m.Logins.WithLabelValues(result).Inc() }

// SessionValidation implements auth.MetricsRecorder.
func (m *Metrics) SessionValidation(result string) {
	m.SessionValidations.WithLabelValues(result).Inc()
}

// Revocation implements auth.MetricsRecorder.
func (m *Metrics) Revocation(reason string) { m.Revocations.WithLabelValues(reason).Inc() }

// Registration implements auth.MetricsRecorder.
func (m *Metrics) Registration(result string) { m.Registrations.WithLabelValues(result).Inc() }

var _ auth.MetricsRecorder = (*Metrics)(nil)
