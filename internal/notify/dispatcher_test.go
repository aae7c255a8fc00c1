// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/atelierlumiere/lumiere/internal/config"
	"github.com/atelierlumiere/lumiere/internal/models"
)

func testNotifyConfig(webhookURL string) *config.NotifyConfig {
	return &config.NotifyConfig{
		ResolvedWebhookURL: webhookURL,
		SlackUsername:      "Lumiere",
		Timeout:            5 * time.Second,
	}
}

func TestUnconfiguredDispatcherPerformsNoIO(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	d := NewDispatcher(testNotifyConfig(""))

	if d.Configured() {
		t.Error("Configured() = true, want false with empty webhook chain")
	}

	ok := d.NotifyNewVisitor(context.Background(), &models.Visitor{SessionID: "s1"})
	if ok {
		t.Error("NotifyNewVisitor() = true, want false when unconfigured")
	}
	ok = d.NotifyNewLead(context.Background(), &models.Subscription{Email: "a@b.example"})
	if ok {
		t.Error("NotifyNewLead() = true, want false when unconfigured")
	}

	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("network calls = %d, want 0", n)
	}
}

func TestNotifyNewVisitorDelivered(t *testing.T) {
	var gotPayload SlackWebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotPayload)
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	d := NewDispatcher(testNotifyConfig(srv.URL))

	v := &models.Visitor{
		SessionID:    "sess-1",
		IPAddress:    "203.0.113.7",
		Location:     models.Location{Country: "France", City: "Paris"},
		Device:       models.Device{Type: "mobile", Browser: "Safari", OS: "iOS"},
		PagesVisited: []string{"/collections/fall"},
	}

	if ok := d.NotifyNewVisitor(context.Background(), v); !ok {
		t.Fatal("NotifyNewVisitor() = false, want true")
	}

	if gotPayload.Text != "New visitor on the site" {
		t.Errorf("fallback text = %q, want visitor title", gotPayload.Text)
	}
	if len(gotPayload.Blocks) == 0 || gotPayload.Blocks[0].Type != "header" {
		t.Errorf("blocks = %+v, want header block first", gotPayload.Blocks)
	}
}

func TestNotifyNewLeadDelivered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	d := NewDispatcher(testNotifyConfig(srv.URL))

	sub := &models.Subscription{
		Email:       "sofia@example.com",
		Name:        "Sofia",
		EntryType:   models.EntrySocial,
		UTMSource:   "instagram",
		PagesViewed: 4,
		ScrollDepth: 90,
	}

	if ok := d.NotifyNewLead(context.Background(), sub); !ok {
		t.Error("NotifyNewLead() = false, want true")
	}
}

func TestDeliveryFailureReturnsFalse(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "200 with wrong body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "invalid_payload")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			d := NewDispatcher(testNotifyConfig(srv.URL))
			if ok := d.NotifyNewVisitor(context.Background(), &models.Visitor{SessionID: "s"}); ok {
				t.Error("NotifyNewVisitor() = true, want false on delivery failure")
			}
		})
	}
}

func TestDeliveryTimeoutBounded(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	cfg := testNotifyConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	d := NewDispatcher(cfg)

	start := time.Now()
	ok := d.NotifyNewVisitor(context.Background(), &models.Visitor{SessionID: "s"})
	elapsed := time.Since(start)

	if ok {
		t.Error("NotifyNewVisitor() = true, want false on timeout")
	}
	if elapsed > 2*time.Second {
		t.Errorf("delivery blocked %v, want bounded by the dispatch timeout", elapsed)
	}
}

func TestFormatLocation(t *testing.T) {
	tests := []struct {
		name string
		loc  models.Location
		want string
	}{
		{"city and country", models.Location{City: "Paris", Country: "France"}, "Paris, France"},
		{"country only", models.Location{Country: "France"}, "France"},
		{"empty", models.Location{}, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatLocation(tt.loc); got != tt.want {
				t.Errorf("formatLocation() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("noreply@maison.example", "sales@maison.example", "New lead", "body text"))

	for _, want := range []string{
		"From: noreply@maison.example\r\n",
		"To: sales@maison.example\r\n",
		"Subject: New lead\r\n",
		"\r\n\r\nbody text",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}
