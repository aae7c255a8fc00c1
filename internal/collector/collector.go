// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

// Package collector implements the client-side event capture logic as
// an embeddable instrumentation library: session lifecycle, page-view
// and click counters, scroll-depth milestones, exit detection, and
// entry-point classification. The kiosk and preview builds embed it
// directly; the browser build mirrors its behavior.
//
// All events flow through a fire-and-forget Transport: capture never
// blocks on, and never observes, delivery.
package collector

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atelierlumiere/lumiere/internal/models"
)

// scrollMilestones are the reportable scroll-depth thresholds, ascending.
var scrollMilestones = []int{25, 50, 75, 90, 100}

// Collector captures one page session's behavior. Counters accumulate
// for the lifetime of the session; events ship out as they happen and
// may arrive at the server out of order.
type Collector struct {
	sessionID string
	pageURL   string
	referrer  string
	entry     Entry
	transport Transport
	startedAt time.Time

	mu             sync.Mutex
	pageViewCount  int
	clickCount     int
	shareCount     int
	maxScrollDepth int
	firedMilestone map[int]bool
	exitFired      bool
	ended          bool
}

// New starts a session: generates a session ID if none is supplied,
// classifies the entry point, and immediately emits session_start
// followed by the first page_view.
func New(sessionID, pageURL, referrer string, transport Transport) *Collector {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	c := &Collector{
		sessionID:      sessionID,
		pageURL:        pageURL,
		referrer:       referrer,
		entry:          ClassifyEntry(pageURL, referrer),
		transport:      transport,
		startedAt:      time.Now(),
		pageViewCount:  1,
		firedMilestone: make(map[int]bool),
	}

	c.emit(models.EventSessionStart, map[string]interface{}{
		"entry_type":   string(c.entry.Type),
		"search_query": c.entry.SearchQuery,
		"utm_source":   c.entry.UTMSource,
		"utm_medium":   c.entry.UTMMedium,
		"utm_campaign": c.entry.UTMCampaign,
	})
	c.emit(models.EventPageView, map[string]interface{}{"page_view_count": 1})

	return c
}

// SessionID returns the session identifier.
func (c *Collector) SessionID() string { return c.sessionID }

// EntryPoint returns the classification derived at session start.
func (c *Collector) EntryPoint() Entry { return c.entry }

// TrackPageView records navigation to another page within the session.
func (c *Collector) TrackPageView(pageURL string) {
	c.mu.Lock()
	c.pageViewCount++
	c.pageURL = pageURL
	count := c.pageViewCount
	c.mu.Unlock()

	c.emit(models.EventPageView, map[string]interface{}{"page_view_count": count})
}

// RecordClick increments the click counter and emits a click event.
func (c *Collector) RecordClick(target string) {
	c.mu.Lock()
	c.clickCount++
	count := c.clickCount
	c.mu.Unlock()

	c.emit(models.EventClick, map[string]interface{}{
		"target":      target,
		"click_count": count,
	})
}

// RecordShare emits a share event for the given network.
func (c *Collector) RecordShare(network string) {
	c.mu.Lock()
	c.shareCount++
	c.mu.Unlock()

	c.emit(models.EventShare, map[string]interface{}{"network": network})
}

// RecordScroll folds one scroll-depth sample (0-100) into the
// monotonic high-water mark and reports at most one milestone: the
// highest threshold the sample reaches that has not fired yet. A jump
// straight past several thresholds reports only the deepest one, and a
// threshold never fires twice in a session.
//
// Returns the milestone emitted, or 0.
func (c *Collector) RecordScroll(depth int) int {
	if depth < 0 {
		depth = 0
	}
	if depth > 100 {
		depth = 100
	}

	c.mu.Lock()
	if depth > c.maxScrollDepth {
		c.maxScrollDepth = depth
	}

	milestone := 0
	for _, m := range scrollMilestones {
		if depth >= m && !c.firedMilestone[m] {
			milestone = m
		}
	}
	if milestone != 0 {
		c.firedMilestone[milestone] = true
	}
	c.mu.Unlock()

	if milestone != 0 {
		c.emit(models.EventScroll, map[string]interface{}{"depth": milestone})
	}
	return milestone
}

// MaxScrollDepth returns the session's scroll high-water mark.
func (c *Collector) MaxScrollDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxScrollDepth
}

// RecordExitIntent fires an exit event when the pointer leaves through
// the top edge of the viewport (clientY <= 0). One-shot per session.
func (c *Collector) RecordExitIntent(clientY int) bool {
	if clientY > 0 {
		return false
	}

	c.mu.Lock()
	if c.exitFired {
		c.mu.Unlock()
		return false
	}
	c.exitFired = true
	depth := c.maxScrollDepth
	pages := c.pageViewCount
	c.mu.Unlock()

	c.emit(models.EventExit, map[string]interface{}{
		"signal":           "mouse_top_edge",
		"max_scroll_depth": depth,
		"pages_viewed":     pages,
	})
	return true
}

// RecordUnload handles page teardown: emits an exit event (if not
// already fired) and session_end with the final counters. Delivery is
// fire-and-forget; teardown cannot wait for a response.
func (c *Collector) RecordUnload() {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}
	c.ended = true
	exitPending := !c.exitFired
	c.exitFired = true
	depth := c.maxScrollDepth
	pages := c.pageViewCount
	clicks := c.clickCount
	shares := c.shareCount
	c.mu.Unlock()

	if exitPending {
		c.emit(models.EventExit, map[string]interface{}{
			"signal":           "unload",
			"max_scroll_depth": depth,
			"pages_viewed":     pages,
		})
	}

	c.emit(models.EventSessionEnd, map[string]interface{}{
		"duration_sec":     int(time.Since(c.startedAt).Seconds()),
		"pages_viewed":     pages,
		"clicks":           clicks,
		"shares":           shares,
		"max_scroll_depth": depth,
	})
}

// Snapshot returns the behavioral counters frozen at subscribe time.
func (c *Collector) Snapshot() (pagesViewed, scrollDepth, secondsOnSite int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageViewCount, c.maxScrollDepth, int(time.Since(c.startedAt).Seconds())
}

// emit builds the event envelope and hands it to the transport.
func (c *Collector) emit(eventType models.EventType, data map[string]interface{}) {
	c.transport.Send(models.TrackingEvent{
		SessionID: c.sessionID,
		EventType: eventType,
		PageURL:   c.pageURL,
		Referrer:  c.referrer,
		EventData: data,
		CreatedAt: time.Now(),
	})
}
