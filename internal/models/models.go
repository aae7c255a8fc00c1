// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

// Package models defines the persistent entities and wire types shared by
// the ingest, reporting, and notification layers.
package models

import "time"

// EventType enumerates the discrete client actions accepted by the
// tracking ingest endpoint. Unknown types are stored verbatim; the enum
// exists for the collector and for reporting filters, not as a gate.
type EventType string

const (
	EventPageView     EventType = "page_view"
	EventSubscription EventType = "subscription"
	EventShare        EventType = "share"
	EventExit         EventType = "exit"
	EventClick        EventType = "click"
	EventScroll       EventType = "scroll"
	EventSessionStart EventType = "session_start"
	EventSessionEnd   EventType = "session_end"
)

// EntryType classifies how a session arrived at the site.
type EntryType string

const (
	EntryDirect   EntryType = "direct"
	EntrySearch   EntryType = "search"
	EntrySocial   EntryType = "social"
	EntryEmail    EntryType = "email"
	EntryReferral EntryType = "referral"
	EntryOther    EntryType = "other"
)

// Location is a normalized geolocation record produced by the resolver.
// All fields are best-effort; a nil *Location means the IP could not be
// resolved and callers must tolerate that.
type Location struct {
	Country   string  `json:"country,omitempty"`
	City      string  `json:"city,omitempty"`
	Region    string  `json:"region,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Timezone  string  `json:"timezone,omitempty"`
}

// Device holds the denormalized client device fields reported by the
// browser collector.
type Device struct {
	Type             string `json:"type,omitempty"`
	Browser          string `json:"browser,omitempty"`
	OS               string `json:"os,omitempty"`
	ScreenResolution string `json:"screen_resolution,omitempty"`
}

// TrackingEvent is one discrete client action. Rows are append-only:
// never updated, never deleted.
type TrackingEvent struct {
	ID        int64                  `json:"id"`
	SessionID string                 `json:"session_id"`
	EventType EventType              `json:"event_type"`
	PageURL   string                 `json:"page_url,omitempty"`
	Referrer  string                 `json:"referrer,omitempty"`
	UserAgent string                 `json:"user_agent,omitempty"`
	IPAddress string                 `json:"ip_address,omitempty"`
	Location  Location               `json:"location"`
	Device    Device                 `json:"device"`
	EventData map[string]interface{} `json:"event_data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Visitor accumulates one row per session. visit_count is monotonically
// non-decreasing and pages_visited is append-only (duplicates allowed).
type Visitor struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	IPAddress    string    `json:"ip_address,omitempty"`
	Location     Location  `json:"location"`
	Device       Device    `json:"device"`
	PagesVisited []string  `json:"pages_visited"`
	VisitCount   int       `json:"visit_count"`
	FirstVisit   time.Time `json:"first_visit"`
	LastVisit    time.Time `json:"last_visit"`
}

// Subscription is a captured lead. Email is unique: a repeat submission
// updates the existing row, it never creates a second one.
type Subscription struct {
	ID       int64    `json:"id"`
	Email    string   `json:"email"`
	Name     string   `json:"name,omitempty"`
	Location Location `json:"location"`
	Device   Device   `json:"device"`

	IPAddress   string    `json:"ip_address,omitempty"`
	Referrer    string    `json:"referrer,omitempty"`
	EntryType   EntryType `json:"entry_type,omitempty"`
	UTMSource   string    `json:"utm_source,omitempty"`
	UTMMedium   string    `json:"utm_medium,omitempty"`
	UTMCampaign string    `json:"utm_campaign,omitempty"`

	// Behavioral snapshot frozen at subscribe time.
	TimeToSubscribeSec int `json:"time_to_subscribe,omitempty"`
	PagesViewed        int `json:"pages_viewed,omitempty"`
	ScrollDepth        int `json:"scroll_depth,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// IPLabel is an operator-assigned tag for an IP address, keyed uniquely
// by the address. Its lifecycle is independent of visitors and
// subscriptions.
type IPLabel struct {
	ID        int64     `json:"id"`
	IPAddress string    `json:"ip_address"`
	Label     string    `json:"label"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MapPoint is the map-ready projection of a subscription or visitor row:
// only rows with non-null, non-zero coordinates qualify.
type MapPoint struct {
	Label     string    `json:"label"`
	Country   string    `json:"country,omitempty"`
	City      string    `json:"city,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Count     int       `json:"count,omitempty"`
	LastSeen  time.Time `json:"last_seen,omitempty"`
}

// RegionCount is one bucket of a server-side GROUP BY aggregation.
type RegionCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// SubscriptionSummary carries server-side aggregates over the full
// filtered subscription set (not just the current page).
type SubscriptionSummary struct {
	Total     int           `json:"total"`
	ByCountry []RegionCount `json:"by_country"`
	ByCity    []RegionCount `json:"by_city"`
}

// Stats backs the admin dashboard header.
type Stats struct {
	TotalSubscriptions int        `json:"total_subscriptions"`
	TotalVisitors      int        `json:"total_visitors"`
	TotalEvents        int        `json:"total_events"`
	UniqueCountries    int        `json:"unique_countries"`
	LastEventAt        *time.Time `json:"last_event_at,omitempty"`
}
