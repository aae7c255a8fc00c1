// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

package collector

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/atelierlumiere/lumiere/internal/logging"
	"github.com/atelierlumiere/lumiere/internal/models"
)

// Transport ships events toward the ingest endpoint. Send must never
// block the caller and must tolerate being called during teardown.
type Transport interface {
	Send(ev models.TrackingEvent)
}

// HTTPTransport posts events to the tracking ingest endpoint through a
// buffered channel drained by one background worker. When the buffer is
// full the event is dropped: losing a beacon beats stalling the page.
type HTTPTransport struct {
	endpoint string
	client   *http.Client

	mu     sync.Mutex
	closed bool
	queue  chan models.TrackingEvent
	done   chan struct{}
}

// NewHTTPTransport creates and starts a transport.
func NewHTTPTransport(endpoint string, timeout time.Duration, bufferSize int) *HTTPTransport {
	if bufferSize <= 0 {
		bufferSize = 64
	}

	t := &HTTPTransport{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		queue:    make(chan models.TrackingEvent, bufferSize),
		done:     make(chan struct{}),
	}

	go t.worker()
	return t
}

// Send enqueues an event without blocking. Fire-and-forget: the caller
// never learns whether delivery succeeded. Events arriving during or
// after teardown are dropped, never a panic.
func (t *HTTPTransport) Send(ev models.TrackingEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		logging.Debug().Str("event_type", string(ev.EventType)).Msg("transport closed, event dropped")
		return
	}

	select {
	case t.queue <- ev:
	default:
		logging.Debug().Str("event_type", string(ev.EventType)).Msg("tracking queue full, event dropped")
	}
}

// Close stops the worker after draining queued events. Idempotent.
func (t *HTTPTransport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.queue)
	t.mu.Unlock()

	<-t.done
}

func (t *HTTPTransport) worker() {
	defer close(t.done)

	for ev := range t.queue {
		t.post(ev)
	}
}

func (t *HTTPTransport) post(ev models.TrackingEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logging.Debug().Err(err).Msg("tracking event marshal failed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		logging.Debug().Err(err).Msg("tracking event delivery failed")
		return
	}
	_ = resp.Body.Close()
}
