// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

/*
Package mailer delivers transactional auth email over a plain SMTP relay.

It covers exactly two message shapes: a one-time challenge code and a
password-reset link. Both are short plain-text messages, so the package
builds RFC 5322 payloads by hand rather than pulling in a templating or
MIME stack.

Delivery Semantics:

  - Fire-and-forget from the caller's perspective: the auth service logs
    delivery failures but never exposes them to the client, since "we could
    not email you" would confirm the address exists.
  - No retries. The resend endpoint is the retry mechanism.
*/
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/mkrogh/aegis/internal/platform/config"
)

// SMTP sends mail through a single configured relay using PLAIN auth.
type SMTP struct {
	addr   string
	from   string
	auth   smtp.Auth
	logger *slog.Logger
}

// New builds an SMTP mailer from the application configuration.
func New(cfg *config.Config, logger *slog.Logger) *SMTP {
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPHost)
	}

	return &SMTP{
		addr:   fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		from:   cfg.SMTPFrom,
		auth:   auth,
		logger: logger,
	}
}

/*
SendChallengeCode emails a one-time verification code.

Parameters:
  - recipient: Destination address (already normalized by the caller).
  - code: The 6-digit challenge code.
  - purpose: Human-readable reason, e.g. "verify your email" or
    "reset your password", interpolated into the subject and body.
*/
func (m *SMTP) SendChallengeCode(ctx context.Context, recipient, code, purpose string) error {
	subject := "Your Aegis verification code"
	body := fmt.Sprintf(
		"Use this code to %s:\r\n\r\n    %s\r\n\r\nThe code expires in 10 minutes. If you did not request it, ignore this email.",
		purpose, code,
	)
	return m.send(ctx, recipient, subject, body)
}

/*
SendPasswordResetLink emails a one-click password reset URL.
*/
func (m *SMTP) SendPasswordResetLink(ctx context.Context, recipient, resetURL string) error {
	subject := "Reset your Aegis password"
	body := fmt.Sprintf(
		"A password reset was requested for this address.\r\n\r\nReset your password here: %s\r\n\r\nThe link expires soon. If you did not request it, ignore this email.",
		resetURL,
	)
	return m.send(ctx, recipient, subject, body)
}

// send assembles the RFC 5322 payload and hands it to the relay.
//
// net/smtp has no context support; the ctx parameter keeps the interface
// honest for callers and future transports, and is checked before dialing.
func (m *SMTP) send(ctx context.Context, recipient, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := []byte("From: " + m.from + "\r\n" +
		"To: " + recipient + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		body + "\r\n")

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{recipient}, msg); err != nil {
		return fmt.Errorf("mailer: send via %s failed: %w", m.addr, err)
	}

	m.logger.Debug("email_sent",
		slog.String("to", recipient),
		slog.String("subject", subject),
	)

	return nil
}
