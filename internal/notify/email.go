// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

package notify

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/atelierlumiere/lumiere/internal/config"
)

// EmailChannel delivers lead notifications over SMTP. It is the second
// channel in the dispatch chain; Slack remains primary.
type EmailChannel struct {
	smtp config.SMTPConfig
	from string
	to   string
}

// NewEmailChannel creates an SMTP channel from the resolved credential
// set. Returns nil when from/to are not configured.
func NewEmailChannel(smtpCfg *config.SMTPConfig, from, to string) *EmailChannel {
	if smtpCfg == nil || from == "" || to == "" {
		return nil
	}
	return &EmailChannel{smtp: *smtpCfg, from: from, to: to}
}

// Send delivers one plain-text message.
func (c *EmailChannel) Send(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", c.smtp.Host, c.smtp.Port)

	var auth smtp.Auth
	if c.smtp.Username != "" {
		auth = smtp.PlainAuth("", c.smtp.Username, c.smtp.Password, c.smtp.Host)
	}

	msg := buildMessage(c.from, c.to, subject, body)

	if err := smtp.SendMail(addr, auth, c.from, []string{c.to}, msg); err != nil {
		return fmt.Errorf("send mail via %s: %w", c.smtp.Host, err)
	}
	return nil
}

// buildMessage assembles RFC 5322 headers plus a plain-text body.
func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s\r\n", from))
	b.WriteString(fmt.Sprintf("To: %s\r\n", to))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	b.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
