// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package observability

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/smarthealth/healthgate/internal/auth"
)

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	s := NewServer("127.0.0.1:0", nil)
	s.Metrics().LoginAttempt(auth.ResultSuccess)
	s.Metrics().Revocation(auth.RevocationLogout)

	code, body := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, `healthgate_logins_total{result="success"} 1`)
	assert.Contains(t, body, `healthgate_revocations_total{reason="logout"} 1`)
}

func TestServer_HealthEndpoints(t *testing.T) {
	tests := []struct {
		name     string
		ready    ReadinessChecker
		path     string
		wantCode int
		wantBody string
	}{
		{"liveness", nil, "/healthz/liveness", http.StatusOK, "ok\n"},
		{"readiness without checker", nil, "/healthz/readiness", http.StatusOK, "ok\n"},
		{"ready", func(context.Context) error { return nil }, "/healthz/readiness", http.StatusOK, "ok\n"},
		{"not ready", func(context.Context) error { return errors.New("db down") }, "/healthz/readiness", http.StatusServiceUnavailable, "not ready\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := get(t, NewServer("127.0.0.1:0", tt.ready).Handler(), tt.path)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestMetrics_RecordsAuthOutcomes(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.LoginAttempt(auth.ResultRejected)
	m.LoginAttempt(auth.ResultRejected)
	m.SessionValidation(auth.ResultSuccess)
	m.Registration(auth.ResultError)

	assert.InDelta(t, 2, testutil.ToFloat64(m.Logins.WithLabelValues(auth.ResultRejected)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SessionValidations.WithLabelValues(auth.ResultSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Registrations.WithLabelValues(auth.ResultError)), 0)
}

func TestServer_Lifecycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := NewServer("127.0.0.1:0", nil)
	errCh, err := s.Start()
	require.NoError(t, err)
	require.NotEmpty(t, s.Addr())

	_, err = s.Start()
	require.Error(t, err, "double start must fail")

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + s.Addr() + "/healthz/liveness")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx), "second stop is a no-op")

	_, open := <-errCh
	assert.False(t, open, "error channel closes on graceful shutdown")
}

func TestServer_StartFailsOnBusyPort(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	_, err = NewServer(l.Addr().String(), nil).Start()
	require.Error(t, err)
}
