// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

// Package notify dispatches visitor and lead notifications to Slack and
// email. Dispatch is strictly best-effort: every entry point returns a
// bool, never an error, and an unconfigured dispatcher performs zero
// network I/O.
//
// Which webhook fires is decided once at startup by internal/config
// (SLACK_WEBHOOK_VISITORS, then SLACK_WEBHOOK_LEADS, then
// SLACK_WEBHOOK_URL); the dispatcher only consumes the resolved value.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/atelierlumiere/lumiere/internal/config"
	"github.com/atelierlumiere/lumiere/internal/logging"
	"github.com/atelierlumiere/lumiere/internal/metrics"
	"github.com/atelierlumiere/lumiere/internal/models"
)

// Dispatcher fans notifications out to the configured channels.
type Dispatcher struct {
	slack   *SlackChannel
	email   *EmailChannel
	timeout time.Duration
}

// NewDispatcher builds a dispatcher from resolved config. Channels
// without configuration stay nil and are skipped silently.
func NewDispatcher(cfg *config.NotifyConfig) *Dispatcher {
	d := &Dispatcher{timeout: cfg.Timeout}

	if cfg.ResolvedWebhookURL != "" {
		d.slack = NewSlackChannel(cfg.ResolvedWebhookURL, cfg.SlackChannel, cfg.SlackUsername, cfg.Timeout)
	}
	d.email = NewEmailChannel(cfg.ResolvedSMTP, cfg.EmailFrom, cfg.EmailTo)

	return d
}

// Configured reports whether any channel can deliver.
func (d *Dispatcher) Configured() bool {
	return d.slack != nil || d.email != nil
}

// NotifyNewVisitor announces a first-time session. Returns true only
// when at least one channel confirmed delivery.
func (d *Dispatcher) NotifyNewVisitor(ctx context.Context, v *models.Visitor) bool {
	if !d.Configured() {
		return false
	}

	fields := []SlackTextObject{
		{Type: "mrkdwn", Text: fmt.Sprintf("*Location:*\n%s", formatLocation(v.Location))},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Device:*\n%s", formatDevice(v.Device))},
	}
	if v.IPAddress != "" {
		fields = append(fields, SlackTextObject{Type: "mrkdwn", Text: fmt.Sprintf("*IP:*\n%s", v.IPAddress)})
	}
	if len(v.PagesVisited) > 0 {
		fields = append(fields, SlackTextObject{Type: "mrkdwn", Text: fmt.Sprintf("*Landing page:*\n%s", v.PagesVisited[0])})
	}

	return d.deliver(ctx, "New visitor on the site", fields, "")
}

// NotifyNewLead announces a captured subscription.
func (d *Dispatcher) NotifyNewLead(ctx context.Context, sub *models.Subscription) bool {
	if !d.Configured() {
		return false
	}

	fields := []SlackTextObject{
		{Type: "mrkdwn", Text: fmt.Sprintf("*Email:*\n%s", sub.Email)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Location:*\n%s", formatLocation(sub.Location))},
	}
	if sub.Name != "" {
		fields = append(fields, SlackTextObject{Type: "mrkdwn", Text: fmt.Sprintf("*Name:*\n%s", sub.Name)})
	}
	if sub.EntryType != "" {
		entry := string(sub.EntryType)
		if sub.UTMSource != "" {
			entry = fmt.Sprintf("%s (%s)", entry, sub.UTMSource)
		}
		fields = append(fields, SlackTextObject{Type: "mrkdwn", Text: fmt.Sprintf("*Entry:*\n%s", entry)})
	}
	if sub.PagesViewed > 0 || sub.ScrollDepth > 0 {
		fields = append(fields, SlackTextObject{
			Type: "mrkdwn",
			Text: fmt.Sprintf("*Engagement:*\n%d pages, %d%% scroll, %ds to subscribe", sub.PagesViewed, sub.ScrollDepth, sub.TimeToSubscribeSec),
		})
	}

	emailBody := fmt.Sprintf(
		"New lead captured.\n\nEmail: %s\nName: %s\nLocation: %s\nEntry: %s\nUTM: %s / %s / %s\n",
		sub.Email, sub.Name, formatLocation(sub.Location),
		sub.EntryType, sub.UTMSource, sub.UTMMedium, sub.UTMCampaign,
	)

	return d.deliver(ctx, "New lead captured", fields, emailBody)
}

// deliver fans out to the configured channels within the dispatch
// timeout. Failures are logged and swallowed.
func (d *Dispatcher) deliver(ctx context.Context, title string, fields []SlackTextObject, emailBody string) bool {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	delivered := false

	if d.slack != nil {
		start := time.Now()
		err := d.slack.Send(ctx, title, fields)
		if err != nil {
			metrics.RecordNotification("slack", "failed", time.Since(start))
			logging.Warn().Err(err).Str("title", title).Msg("slack notification failed")
		} else {
			metrics.RecordNotification("slack", "delivered", time.Since(start))
			delivered = true
		}
	}

	if d.email != nil && emailBody != "" {
		start := time.Now()
		err := d.email.Send(title, emailBody)
		if err != nil {
			metrics.RecordNotification("email", "failed", time.Since(start))
			logging.Warn().Err(err).Str("title", title).Msg("email notification failed")
		} else {
			metrics.RecordNotification("email", "delivered", time.Since(start))
			delivered = true
		}
	}

	return delivered
}

func formatLocation(loc models.Location) string {
	switch {
	case loc.City != "" && loc.Country != "":
		return fmt.Sprintf("%s, %s", loc.City, loc.Country)
	case loc.Country != "":
		return loc.Country
	default:
		return "unknown"
	}
}

func formatDevice(dev models.Device) string {
	if dev.Type == "" && dev.Browser == "" {
		return "unknown"
	}
	out := dev.Type
	if dev.Browser != "" {
		if out != "" {
			out += " / "
		}
		out += dev.Browser
	}
	if dev.OS != "" {
		out += " on " + dev.OS
	}
	return out
}
