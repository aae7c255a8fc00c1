// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/atelierlumiere/lumiere/internal/database"
	"github.com/atelierlumiere/lumiere/internal/models"
)

// subscriptionFilter builds the shared filter from query parameters.
func (h *Handler) subscriptionFilter(r *http.Request) database.SubscriptionFilter {
	limit, offset := h.pageBounds(r)
	q := r.URL.Query()

	return database.SubscriptionFilter{
		Country:   q.Get("country"),
		City:      q.Get("city"),
		EntryType: q.Get("entry_type"),
		UTMSource: q.Get("utm_source"),
		Query:     q.Get("q"),
		Since:     getTimeParam(r, "since"),
		Until:     getTimeParam(r, "until"),
		Limit:     limit,
		Offset:    offset,
	}
}

// subscriptionList is the paginated listing payload.
type subscriptionList struct {
	Subscriptions []models.Subscription `json:"subscriptions"`
	Total         int                   `json:"total"`
	Limit         int                   `json:"limit"`
	Offset        int                   `json:"offset"`
}

// ListSubscriptions handles GET /api/v1/subscriptions.
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	f := h.subscriptionFilter(r)

	subs, total, err := h.store.ListSubscriptions(r.Context(), f)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to list subscriptions", err)
		return
	}

	respondSuccess(w, subscriptionList{
		Subscriptions: subs,
		Total:         total,
		Limit:         f.Limit,
		Offset:        f.Offset,
	}, start)
}

// SubscriptionSummary handles GET /api/v1/subscriptions/summary. The
// aggregation runs in the database over the full filtered set, not over
// the page the client happens to hold.
func (h *Handler) SubscriptionSummary(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	f := h.subscriptionFilter(r)

	summary, err := h.store.SubscriptionSummary(r.Context(), f)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to summarize subscriptions", err)
		return
	}

	respondSuccess(w, summary, start)
}

// SubscriptionMap handles GET /api/v1/subscriptions/map: the geocoded
// subset as a GeoJSON FeatureCollection.
func (h *Handler) SubscriptionMap(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	points, err := h.store.SubscriptionMapPoints(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to load map points", err)
		return
	}

	respondSuccess(w, toFeatureCollection(points), start)
}

// csvHeader lists the exported columns in order.
var csvHeader = []string{
	"email", "name", "country", "city", "entry_type",
	"utm_source", "utm_medium", "utm_campaign",
	"pages_viewed", "scroll_depth", "time_to_subscribe", "created_at",
}

// ExportSubscriptions handles GET /api/v1/subscriptions/export: the
// current filtered set as CSV, no pagination.
func (h *Handler) ExportSubscriptions(w http.ResponseWriter, r *http.Request) {
	f := h.subscriptionFilter(r)

	subs, err := h.store.ExportSubscriptions(r.Context(), f)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to export subscriptions", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=subscriptions-%s.csv", time.Now().Format("2006-01-02")))

	var b strings.Builder
	b.WriteString(strings.Join(csvHeader, ","))
	b.WriteByte('\n')

	for _, s := range subs {
		row := []string{
			escapeCSV(s.Email),
			escapeCSV(s.Name),
			escapeCSV(s.Location.Country),
			escapeCSV(s.Location.City),
			escapeCSV(string(s.EntryType)),
			escapeCSV(s.UTMSource),
			escapeCSV(s.UTMMedium),
			escapeCSV(s.UTMCampaign),
			fmt.Sprintf("%d", s.PagesViewed),
			fmt.Sprintf("%d", s.ScrollDepth),
			fmt.Sprintf("%d", s.TimeToSubscribeSec),
			s.CreatedAt.Format(time.RFC3339),
		}
		b.WriteString(strings.Join(row, ","))
		b.WriteByte('\n')
	}

	_, _ = w.Write([]byte(b.String()))
}
