// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// SlackChannel delivers notifications to a Slack incoming webhook.
type SlackChannel struct {
	webhookURL string
	channel    string
	username   string
	client     *http.Client
}

// NewSlackChannel creates a Slack webhook channel. The timeout bounds
// the whole request; a slow Slack must never stall the ingest path.
func NewSlackChannel(webhookURL, channel, username string, timeout time.Duration) *SlackChannel {
	return &SlackChannel{
		webhookURL: webhookURL,
		channel:    channel,
		username:   username,
		client:     &http.Client{Timeout: timeout},
	}
}

// SlackWebhookPayload is the Slack webhook message structure.
type SlackWebhookPayload struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Text        string            `json:"text,omitempty"`
	Blocks      []SlackBlock      `json:"blocks,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackBlock is a Slack Block Kit element.
type SlackBlock struct {
	Type     string            `json:"type"`
	Text     *SlackTextObject  `json:"text,omitempty"`
	Elements []SlackElement    `json:"elements,omitempty"`
	Fields   []SlackTextObject `json:"fields,omitempty"`
}

// SlackTextObject is a Slack text object (plain_text or mrkdwn).
type SlackTextObject struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

// SlackElement is a Slack context/block element.
type SlackElement struct {
	Type string           `json:"type"`
	Text *SlackTextObject `json:"text,omitempty"`
}

// SlackAttachment carries the legacy color accent.
type SlackAttachment struct {
	Color    string `json:"color,omitempty"`
	Fallback string `json:"fallback,omitempty"`
}

// Send posts one message. Slack answers 200 with a literal "ok" body on
// success; anything else is a failure.
func (c *SlackChannel) Send(ctx context.Context, title string, fields []SlackTextObject) error {
	payload := SlackWebhookPayload{
		Channel:   c.channel,
		Username:  c.username,
		IconEmoji: ":sparkles:",
		Text:      title,
		Blocks: []SlackBlock{
			{
				Type: "header",
				Text: &SlackTextObject{Type: "plain_text", Text: title},
			},
			{
				Type:   "section",
				Fields: fields,
			},
			{
				Type: "context",
				Elements: []SlackElement{
					{
						Type: "mrkdwn",
						Text: &SlackTextObject{Type: "mrkdwn", Text: time.Now().Format("Jan 2, 2006 15:04 MST")},
					},
				},
			},
		},
		Attachments: []SlackAttachment{
			{Color: "#1A1A1A"},
		},
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(jsonPayload))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		body = []byte("(failed to read response)")
	}

	if resp.StatusCode == http.StatusOK && string(body) == "ok" {
		return nil
	}

	return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, string(body))
}
