// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarthealth/healthgate/internal/config"
	"github.com/smarthealth/healthgate/internal/observability"
	"github.com/smarthealth/healthgate/internal/store"
	"github.com/smarthealth/healthgate/internal/web"
	"github.com/smarthealth/healthgate/pkg/errutil"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type mockServer struct {
	errCh   chan error
	startFn func() (<-chan error, error)
	stopped bool
	metrics *observability.Metrics
}

func newMockServer() *mockServer {
	return &mockServer{
		errCh:   make(chan error, 1),
		metrics: observability.NewMetrics(prometheus.NewRegistry()),
	}
}

func (m *mockServer) Start() (<-chan error, error) {
	if m.startFn != nil {
		return m.startFn()
	}
	return m.errCh, nil
}

func (m *mockServer) Stop(context.Context) error {
	m.stopped = true
	return nil
}

func (m *mockServer) Addr() string                    { return "127.0.0.1:0" }
func (m *mockServer) Metrics() *observability.Metrics { return m.metrics }

// lockedBuffer is a bytes.Buffer safe to read while serve writes to it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newMockCmd() (*cobra.Command, *lockedBuffer) {
	buf := new(lockedBuffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	return cmd, buf
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	cfg.Database.URL = "postgres://healthgate@localhost/healthgate"
	cfg.Session.Secret = testSecret
	cfg.Metrics.Addr = ""
	return cfg
}

// mockPoolFactory returns a factory for a pgxmock pool that expects the
// given number of readiness pings.
func mockPoolFactory(t *testing.T, pings int) func(context.Context, string, store.ConnectOptions) (DatabasePool, error) {
	t.Helper()
	return func(context.Context, string, store.ConnectOptions) (DatabasePool, error) {
		pool, err := pgxmock.NewPool()
		require.NoError(t, err)
		for range pings {
			pool.ExpectPing()
		}
		t.Cleanup(func() {
			assert.NoError(t, pool.ExpectationsWereMet())
		})
		return pool, nil
	}
}

func TestServeCommand_Flags(t *testing.T) {
	cmd := NewServeCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})
	require.NoError(t, cmd.Execute())

	for _, flag := range []string{
		"--http-addr", "--allowed-origins", "--trust-proxy", "--metrics-addr",
		"--session-ttl", "--session-binding", "--cookie-secure",
		"--require-email-validation", "--redis-addr", "--database-url",
		"--log-format", "--log-level", "--env",
	} {
		assert.Contains(t, buf.String(), flag)
	}
}

func TestRunServeWithDeps_RequiresDatabaseURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.URL = ""
	cmd, _ := newMockCmd()

	err := runServeWithDeps(context.Background(), cfg, discardLogger(), cmd, nil)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestRunServeWithDeps_RequiresLongSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.Session.Secret = "short"
	cmd, _ := newMockCmd()

	err := runServeWithDeps(context.Background(), cfg, discardLogger(), cmd, nil)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestRunServeWithDeps_PoolFactoryError(t *testing.T) {
	cmd, _ := newMockCmd()
	deps := &ServeDeps{
		PoolFactory: func(context.Context, string, store.ConnectOptions) (DatabasePool, error) {
			return nil, errors.New("connection refused")
		},
	}

	err := runServeWithDeps(context.Background(), testConfig(t), discardLogger(), cmd, deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRunServeWithDeps_APIStartError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Addr = "127.0.0.1:0"
	cmd, _ := newMockCmd()

	obs := newMockServer()
	api := newMockServer()
	api.startFn = func() (<-chan error, error) { return nil, errors.New("address in use") }

	deps := &ServeDeps{
		PoolFactory: mockPoolFactory(t, 0),
		ObservabilityServerFactory: func(string, observability.ReadinessChecker) ObservabilityServer {
			return obs
		},
		APIServerFactory: func(web.Deps) (APIServer, error) { return api, nil },
	}

	err := runServeWithDeps(context.Background(), cfg, discardLogger(), cmd, deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address in use")
	assert.True(t, obs.stopped, "observability server must be stopped on failure")
}

func TestRunServeWithDeps_HappyPath(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Metrics.Addr = "127.0.0.1:0"
	cfg.RateLimit.RedisAddr = mr.Addr()
	cfg.Session.Binding = config.BindingFingerprint
	cfg.Environment = config.EnvDevelopment
	cmd, out := newMockCmd()
	logs := new(lockedBuffer)
	logger := slog.New(slog.NewTextHandler(logs, nil))

	obs := newMockServer()
	api := newMockServer()
	var (
		ready   observability.ReadinessChecker
		apiDeps web.Deps
	)
	deps := &ServeDeps{
		PoolFactory: mockPoolFactory(t, 2),
		RedisFactory: func(addr string) redis.UniversalClient {
			return redis.NewClient(&redis.Options{Addr: addr})
		},
		ObservabilityServerFactory: func(_ string, r observability.ReadinessChecker) ObservabilityServer {
			ready = r
			return obs
		},
		APIServerFactory: func(d web.Deps) (APIServer, error) {
			apiDeps = d
			return api, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- runServeWithDeps(ctx, cfg, logger, cmd, deps) }()

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "HealthGate started") },
		5*time.Second, 10*time.Millisecond)
	assert.Contains(t, logs.String(), "running in development mode")

	require.NotNil(t, ready)
	require.NoError(t, ready(context.Background()))
	assert.Equal(t, web.BindFingerprint, apiDeps.Config.Binding)
	assert.Equal(t, cfg.Session.TTL, apiDeps.Config.SessionTTL)
	assert.Same(t, obs.metrics, apiDeps.Metrics)
	assert.NotNil(t, apiDeps.Policy)

	mr.Close()
	assert.Error(t, ready(context.Background()), "readiness must fail when redis is gone")

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runServeWithDeps did not return")
	}
	assert.True(t, api.stopped)
	assert.True(t, obs.stopped)
}

func TestRunServeWithDeps_ServerErrorTriggersShutdown(t *testing.T) {
	cmd, _ := newMockCmd()
	api := newMockServer()
	deps := &ServeDeps{
		PoolFactory:      mockPoolFactory(t, 0),
		APIServerFactory: func(web.Deps) (APIServer, error) { return api, nil },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- runServeWithDeps(context.Background(), testConfig(t), discardLogger(), cmd, deps) }()

	api.errCh <- errors.New("listener died")
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server error did not trigger shutdown")
	}
	assert.True(t, api.stopped)
}

func TestMonitorServerErrors(t *testing.T) {
	tests := []struct {
		name       string
		send       func(ch chan error)
		cancelCtx  bool
		wantCancel bool
	}{
		{"error cancels", func(ch chan error) { ch <- errors.New("boom") }, false, true},
		{"nil error ignored", func(ch chan error) { ch <- nil }, false, false},
		{"closed channel", func(ch chan error) { close(ch) }, false, false},
		{"context done", func(chan error) {}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent, parentCancel := context.WithCancel(context.Background())
			defer parentCancel()
			ctx, cancel := context.WithCancel(parent)
			cancelled := false
			wrapped := func() {
				cancelled = true
				cancel()
			}

			ch := make(chan error, 1)
			tt.send(ch)
			if tt.cancelCtx {
				cancel()
			}

			done := make(chan struct{})
			go func() {
				monitorServerErrors(ctx, wrapped, ch, "test", discardLogger())
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("monitorServerErrors did not return")
			}
			assert.Equal(t, tt.wantCancel, cancelled)
		})
	}
}
