// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarthealth/healthgate/internal/config"
	"github.com/smarthealth/healthgate/pkg/errutil"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "healthgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.String("http-addr", ":8080", "")
	fs.Bool("cookie-secure", true, "")
	fs.Duration("session-ttl", 30*time.Minute, "")
	fs.String("env", config.EnvProduction, "")
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, config.EnvProduction, cfg.Environment)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, config.BindingIP, cfg.Session.Binding)
	assert.True(t, cfg.Cookie.Secure)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 5, cfg.RateLimit.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, `
environment: development
http:
  addr: ":7000"
  allowed_origins:
    - https://app.example.com
session:
  ttl: 10m
cookie:
  secure: false
`)
	t.Setenv("HEALTHGATE_SESSION__TTL", "20m")
	t.Setenv("HEALTHGATE_SESSION__SECRET", "from-env")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--http-addr", ":9000"}))

	cfg, err := config.Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTP.Addr, "flag beats file")
	assert.Equal(t, 20*time.Minute, cfg.Session.TTL, "env beats file")
	assert.Equal(t, "from-env", cfg.Session.Secret)
	assert.False(t, cfg.Cookie.Secure, "unset flag default must not override file")
	assert.Equal(t, []string{"https://app.example.com"}, cfg.HTTP.AllowedOrigins)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		cfg, err := config.Load("", nil)
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{"defaults", func(*config.Config) {}, false},
		{"insecure cookie in production", func(c *config.Config) { c.Cookie.Secure = false }, true},
		{"insecure cookie in development", func(c *config.Config) {
			c.Environment = config.EnvDevelopment
			c.Cookie.Secure = false
		}, false},
		{"unknown environment", func(c *config.Config) { c.Environment = "staging" }, true},
		{"unknown binding", func(c *config.Config) { c.Session.Binding = "cookie" }, true},
		{"fingerprint binding", func(c *config.Config) { c.Session.Binding = config.BindingFingerprint }, false},
		{"tiny ttl", func(c *config.Config) { c.Session.TTL = time.Second }, true},
		{"bad log format", func(c *config.Config) { c.Log.Format = "xml" }, true},
		{"email validation without link", func(c *config.Config) { c.Registration.RequireEmailValidation = true }, true},
		{"email validation with link", func(c *config.Config) {
			c.Registration.RequireEmailValidation = true
			c.Registration.ValidationBaseURL = "https://app.example.com/validate-email"
		}, false},
		{"bad origin", func(c *config.Config) { c.HTTP.AllowedOrigins = []string{"not a url"} }, true},
		{"negative attempts", func(c *config.Config) { c.RateLimit.MaxAttempts = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
				return
			}
			require.NoError(t, err)
		})
	}
}
