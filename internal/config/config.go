// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

// Package config loads HealthGate configuration from defaults, a YAML
// file, HEALTHGATE_* environment variables and command-line flags, in
// that order of precedence (flags win).
package config

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment overrides. HEALTHGATE_SESSION__TTL
// sets session.ttl; a double underscore separates sections.
const EnvPrefix = "HEALTHGATE_"

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Session binding modes.
const (
	BindingIP          = "ip"
	BindingFingerprint = "fingerprint"
)

// Config is the complete service configuration.
type Config struct {
	Environment  string             `koanf:"environment"`
	HTTP         HTTPConfig         `koanf:"http"`
	Metrics      MetricsConfig      `koanf:"metrics"`
	Log          LogConfig          `koanf:"log"`
	Database     DatabaseConfig     `koanf:"database"`
	Session      SessionConfig      `koanf:"session"`
	Cookie       CookieConfig       `koanf:"cookie"`
	Registration RegistrationConfig `koanf:"registration"`
	RateLimit    RateLimitConfig    `koanf:"ratelimit"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
	TrustProxy      bool          `koanf:"trust_proxy"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// MetricsConfig configures the metrics and health listener. An empty
// address disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// DatabaseConfig configures PostgreSQL.
type DatabaseConfig struct {
	URL            string        `koanf:"url"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

// SessionConfig configures session tokens.
type SessionConfig struct {
	Secret  string        `koanf:"secret"`
	TTL     time.Duration `koanf:"ttl"`
	Binding string        `koanf:"binding"`
	Issuer  string        `koanf:"issuer"`
}

// CookieConfig configures the session cookie.
type CookieConfig struct {
	Secure bool `koanf:"secure"`
}

// RegistrationConfig configures sign-up.
type RegistrationConfig struct {
	RequireEmailValidation bool   `koanf:"require_email_validation"`
	ValidationBaseURL      string `koanf:"validation_base_url"`
	PhoneRegion            string `koanf:"phone_region"`
}

// RateLimitConfig configures the login throttle. An empty Redis address
// disables it.
type RateLimitConfig struct {
	RedisAddr   string        `koanf:"redis_addr"`
	MaxAttempts int           `koanf:"max_attempts"`
	Window      time.Duration `koanf:"window"`
}

// Defaults returns the built-in configuration.
func Defaults() map[string]any {
	return map[string]any{
		"environment":                           EnvProduction,
		"http.addr":                             ":8080",
		"http.allowed_origins":                  []string{},
		"http.trust_proxy":                      false,
		"http.shutdown_timeout":                 "10s",
		"metrics.addr":                          "127.0.0.1:9100",
		"log.format":                            "json",
		"log.level":                             "info",
		"database.connect_timeout":              "30s",
		"session.ttl":                           "30m",
		"session.binding":                       BindingIP,
		"session.issuer":                        "healthgate",
		"cookie.secure":                         true,
		"registration.require_email_validation": false,
		"registration.phone_region":             "",
		"ratelimit.max_attempts":                5,
		"ratelimit.window":                      "15m",
	}
}

// Load builds the configuration. path may be empty; flags may be nil.
// Only flags the user set override lower layers.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "defaults").Wrap(err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "file").With("path", path).Wrap(err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "env").Wrap(err)
	}
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, flagKey(flags)), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "unmarshal").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps HEALTHGATE_SESSION__TTL to session.ttl.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// flagKey maps --session-ttl style flags onto their section key. Flags
// that are not configuration (for example --config) are ignored.
func flagKey(fs *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
}

var flagKeys = map[string]string{
	"env":                      "environment",
	"http-addr":                "http.addr",
	"allowed-origins":          "http.allowed_origins",
	"trust-proxy":              "http.trust_proxy",
	"metrics-addr":             "metrics.addr",
	"log-format":               "log.format",
	"log-level":                "log.level",
	"database-url":             "database.url",
	"session-ttl":              "session.ttl",
	"session-binding":          "session.binding",
	"cookie-secure":            "cookie.secure",
	"require-email-validation": "registration.require_email_validation",
	"redis-addr":               "ratelimit.redis_addr",
}

// Validate checks the configuration. The session secret and database URL
// are checked by the commands that need them.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Environment, validation.Required, validation.In(EnvDevelopment, EnvProduction)),
		validation.Field(&c.HTTP),
		validation.Field(&c.Log),
		validation.Field(&c.Session),
		validation.Field(&c.Cookie, validation.By(c.cookieRule)),
		validation.Field(&c.Registration),
		validation.Field(&c.RateLimit),
	)
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return nil
}

// cookieRule refuses an insecure session cookie in production.
func (c *Config) cookieRule(any) error {
	if c.Environment == EnvProduction && !c.Cookie.Secure {
		return errors.New("secure must be true in production")
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// Validate implements validation.Validatable.
func (h HTTPConfig) Validate() error {
	return validation.ValidateStruct(&h,
		validation.Field(&h.Addr, validation.Required),
		validation.Field(&h.AllowedOrigins, validation.By(originsRule)),
		validation.Field(&h.ShutdownTimeout, validation.Min(time.Duration(0))),
	)
}

// Validate implements validation.Validatable.
func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Format, validation.Required, validation.In("json", "text")),
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error")),
	)
}

// Validate implements validation.Validatable.
func (s SessionConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.TTL, validation.Required, validation.Min(time.Minute)),
		validation.Field(&s.Binding, validation.Required, validation.In(BindingIP, BindingFingerprint)),
		validation.Field(&s.Issuer, validation.Required),
	)
}

// Validate implements validation.Validatable.
func (r RegistrationConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ValidationBaseURL, validation.By(r.baseURLRule), is.URL),
		validation.Field(&r.PhoneRegion, validation.Length(2, 2)),
	)
}

func (r RegistrationConfig) baseURLRule(value any) error {
	if s, _ := value.(string); r.RequireEmailValidation && s == "" {
		return errors.New("is required when email validation is enabled")
	}
	return nil
}

func originsRule(value any) error {
	origins, _ := value.([]string)
	for _, o := range origins {
		if err := is.URL.Validate(o); err != nil || !strings.Contains(o, "://") {
			return errors.New("must contain only absolute origins such as https://app.example.com")
		}
	}
	return nil
}

// Validate implements validation.Validatable.
func (r RateLimitConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.MaxAttempts, validation.Min(1)),
		validation.Field(&r.Window, validation.Min(time.Second)),
	)
}
