// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/atelierlumiere/lumiere/internal/logging"
	"github.com/atelierlumiere/lumiere/internal/metrics"
	"github.com/atelierlumiere/lumiere/internal/models"
)

// trackRequest is the beacon payload. Nothing in it is required: the
// tracking path accepts whatever arrives and never hard-fails.
type trackRequest struct {
	SessionID string                 `json:"session_id"`
	EventType string                 `json:"event_type"`
	PageURL   string                 `json:"page_url"`
	Referrer  string                 `json:"referrer"`
	UserAgent string                 `json:"user_agent"`
	Device    models.Device          `json:"device"`
	EventData map[string]interface{} `json:"event_data"`
}

// visitorRequest triggers a session upsert through the same enrichment
// pipeline as /track.
type visitorRequest struct {
	SessionID string        `json:"session_id"`
	PageURL   string        `json:"page_url"`
	Device    models.Device `json:"device"`
}

// respondBeacon always answers {"success":true}. The beacon caller must
// never see a failure that could degrade the user-facing page.
func respondBeacon(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(models.TrackResponse{Success: true})
}

// Track handles POST /api/v1/track. Events are enriched with IP-derived
// location at write time and appended to the event log. Every outcome,
// including a decode or persistence failure, is reported as success.
func (h *Handler) Track(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logging.Debug().Err(err).Msg("Tracking payload decode failed")
		respondBeacon(w)
		return
	}

	ip := clientIP(r)
	ev := &models.TrackingEvent{
		SessionID: req.SessionID,
		EventType: models.EventType(req.EventType),
		PageURL:   req.PageURL,
		Referrer:  req.Referrer,
		UserAgent: req.UserAgent,
		IPAddress: ip,
		Device:    req.Device,
		EventData: req.EventData,
	}
	if ev.UserAgent == "" {
		ev.UserAgent = r.UserAgent()
	}

	if loc := h.geo.Resolve(r.Context(), ip); loc != nil {
		ev.Location = *loc
	}

	metrics.EventsIngested.WithLabelValues(req.EventType).Inc()

	if err := h.store.InsertEvent(r.Context(), ev); err != nil {
		metrics.EventPersistFailures.WithLabelValues(req.EventType).Inc()
		logging.Error().Err(err).
			Str("session_id", req.SessionID).
			Str("event_type", req.EventType).
			Msg("Tracking event persist failed")
	}

	respondBeacon(w)
}

// UpsertVisitor handles POST /api/v1/visitors: enrich, upsert the
// session row atomically, and alert on a first-time visitor. Like the
// beacon, the caller always gets a success-shaped answer.
func (h *Handler) UpsertVisitor(w http.ResponseWriter, r *http.Request) {
	var req visitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		logging.Debug().Err(err).Msg("Visitor payload decode failed")
		respondBeacon(w)
		return
	}

	ip := clientIP(r)
	visitor := &models.Visitor{
		SessionID: req.SessionID,
		IPAddress: ip,
		Device:    req.Device,
	}

	if loc := h.geo.Resolve(r.Context(), ip); loc != nil {
		visitor.Location = *loc
	}

	result, err := h.store.UpsertVisitor(r.Context(), visitor, req.PageURL)
	if err != nil {
		logging.Error().Err(err).
			Str("session_id", req.SessionID).
			Msg("Visitor upsert failed")
		respondBeacon(w)
		return
	}

	if result.IsNewVisitor {
		h.notifyAsync(func(ctx context.Context) {
			h.notifier.NotifyNewVisitor(ctx, result.Visitor)
		})
	}

	respondBeacon(w)
}

// subscribeRequest is the lead-capture form payload.
type subscribeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"max=200"`

	SessionID   string        `json:"session_id"`
	Referrer    string        `json:"referrer"`
	EntryType   string        `json:"entry_type"`
	UTMSource   string        `json:"utm_source"`
	UTMMedium   string        `json:"utm_medium"`
	UTMCampaign string        `json:"utm_campaign"`
	Device      models.Device `json:"device"`

	TimeToSubscribeSec int `json:"time_to_subscribe"`
	PagesViewed        int `json:"pages_viewed"`
	ScrollDepth        int `json:"scroll_depth"`
}

// Subscribe handles POST /api/v1/subscribe. Email is the identity: a
// repeat submission updates the existing lead, never duplicates it.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondJSON(w, http.StatusBadRequest, &models.APIResponse{
			Status:   "error",
			Metadata: models.Metadata{Timestamp: time.Now()},
			Error:    apiErr,
		})
		return
	}

	ip := clientIP(r)
	sub := &models.Subscription{
		Email:       req.Email,
		Name:        req.Name,
		IPAddress:   ip,
		Referrer:    req.Referrer,
		EntryType:   models.EntryType(req.EntryType),
		UTMSource:   req.UTMSource,
		UTMMedium:   req.UTMMedium,
		UTMCampaign: req.UTMCampaign,
		Device:      req.Device,

		TimeToSubscribeSec: req.TimeToSubscribeSec,
		PagesViewed:        req.PagesViewed,
		ScrollDepth:        req.ScrollDepth,
	}

	if loc := h.geo.Resolve(r.Context(), ip); loc != nil {
		sub.Location = *loc
	}

	saved, isNew, err := h.store.UpsertSubscription(r.Context(), sub)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to save subscription", err)
		return
	}

	if isNew {
		h.notifyAsync(func(ctx context.Context) {
			h.notifier.NotifyNewLead(ctx, saved)
		})
	}

	respondSuccess(w, saved, start)
}

// notifyAsync runs a notification off the request goroutine. The request
// context dies with the response, so dispatch gets its own deadline.
func (h *Handler) notifyAsync(fn func(ctx context.Context)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.Notify.Timeout)
		defer cancel()
		fn(ctx)
	}()
}
