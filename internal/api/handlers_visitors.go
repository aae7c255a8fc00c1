// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

package api

import (
	"net/http"
	"time"

	"github.com/atelierlumiere/lumiere/internal/database"
	"github.com/atelierlumiere/lumiere/internal/models"
)

// visitorList is the paginated listing payload.
type visitorList struct {
	Visitors []models.Visitor `json:"visitors"`
	Total    int              `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// ListVisitors handles GET /api/v1/visitors.
func (h *Handler) ListVisitors(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	limit, offset := h.pageBounds(r)

	f := database.VisitorFilter{
		Country: r.URL.Query().Get("country"),
		Since:   getTimeParam(r, "since"),
		Limit:   limit,
		Offset:  offset,
	}

	visitors, total, err := h.store.ListVisitors(r.Context(), f)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to list visitors", err)
		return
	}

	respondSuccess(w, visitorList{
		Visitors: visitors,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	}, start)
}

// VisitorMap handles GET /api/v1/visitors/map.
func (h *Handler) VisitorMap(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	points, err := h.store.VisitorMapPoints(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to load map points", err)
		return
	}

	respondSuccess(w, toFeatureCollection(points), start)
}

// eventList is the paginated event log payload.
type eventList struct {
	Events []models.TrackingEvent `json:"events"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

// ListEvents handles GET /api/v1/events.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	limit, offset := h.pageBounds(r)

	f := database.EventFilter{
		SessionID: r.URL.Query().Get("session_id"),
		EventType: r.URL.Query().Get("event_type"),
		Since:     getTimeParam(r, "since"),
		Limit:     limit,
		Offset:    offset,
	}

	events, total, err := h.store.ListEvents(r.Context(), f)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to list events", err)
		return
	}

	respondSuccess(w, eventList{
		Events: events,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, start)
}
