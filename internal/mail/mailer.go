// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

// Package mail delivers account emails.
package mail

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/samber/oops"

	"github.com/smarthealth/healthgate/internal/auth"
)

// LogMailer records validation emails in the service log instead of
// sending them. It is the development mailer; the link's token is never
// written to the log.
type LogMailer struct {
	logger *slog.Logger
}

var _ auth.Mailer = (*LogMailer)(nil)

// NewLogMailer creates a LogMailer. A nil logger uses slog.Default.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// SendValidationEmail implements auth.Mailer.
func (m *LogMailer) SendValidationEmail(ctx context.Context, to, name, link string) error {
	u, err := url.Parse(link)
	if err != nil {
		return oops.Code("MAIL_INVALID_LINK").With("operation", "parse validation link").Wrap(err)
	}
	m.logger.InfoContext(ctx, "validation email queued",
		"to", to,
		"name", name,
		"link_host", u.Host,
		"link_path", u.Path,
		"has_token", u.Query().Get("token") != "")
	return nil
}
