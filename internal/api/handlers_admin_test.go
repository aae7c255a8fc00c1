// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/atelierlumiere/lumiere/internal/models"
)

func get(h http.HandlerFunc, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestListSubscriptionsClampsPagination(t *testing.T) {
	store := newFakeStore()
	h := newTestHandler(store, &fakeGeo{}, newFakeNotifier())

	get(h.ListSubscriptions, "/api/v1/subscriptions?limit=10000&offset=-5")

	if store.listSubsFilter.Limit != 500 {
		t.Errorf("limit = %d, want clamped to 500", store.listSubsFilter.Limit)
	}
	if store.listSubsFilter.Offset != 0 {
		t.Errorf("offset = %d, want floored to 0", store.listSubsFilter.Offset)
	}
}

func TestListSubscriptionsPassesFilters(t *testing.T) {
	store := newFakeStore()
	h := newTestHandler(store, &fakeGeo{}, newFakeNotifier())

	get(h.ListSubscriptions, "/api/v1/subscriptions?country=Italy&city=Milan&q=client&entry_type=search")

	f := store.listSubsFilter
	if f.Country != "Italy" || f.City != "Milan" || f.Query != "client" || f.EntryType != "search" {
		t.Errorf("filter = %+v, want query params mapped through", f)
	}
}

func TestSubscriptionMapReturnsFeatureCollection(t *testing.T) {
	store := newFakeStore()
	store.mapPoints = []models.MapPoint{
		{Label: "Milan", City: "Milan", Country: "Italy", Latitude: 45.46, Longitude: 9.19, Count: 3},
	}
	h := newTestHandler(store, &fakeGeo{}, newFakeNotifier())

	rec := get(h.SubscriptionMap, "/api/v1/subscriptions/map")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Status string            `json:"status"`
		Data   geoJSONCollection `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Type != "FeatureCollection" || len(resp.Data.Features) != 1 {
		t.Fatalf("data = %+v, want one-feature collection", resp.Data)
	}
	coords := resp.Data.Features[0].Geometry.Coordinates
	if coords[0] != 9.19 || coords[1] != 45.46 {
		t.Errorf("coordinates = %v, want [lon, lat] order", coords)
	}
}

func TestExportSubscriptionsCSV(t *testing.T) {
	store := newFakeStore()
	store.subs = []models.Subscription{
		{
			Email:       "client@example.com",
			Name:        `Doe, "Jay"`,
			Location:    models.Location{Country: "Italy", City: "Milan"},
			EntryType:   models.EntrySearch,
			PagesViewed: 4,
			CreatedAt:   time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		},
	}
	h := newTestHandler(store, &fakeGeo{}, newFakeNotifier())

	rec := get(h.ExportSubscriptions, "/api/v1/subscriptions/export")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q, want text/csv", ct)
	}

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want header + 1 row", len(lines))
	}
	if !strings.HasPrefix(lines[0], "email,name,country") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], `"Doe, ""Jay"""`) {
		t.Errorf("row = %q, want quoted and escaped name", lines[1])
	}
}

func TestUpsertIPLabelValidation(t *testing.T) {
	h := newTestHandler(newFakeStore(), &fakeGeo{}, newFakeNotifier())

	tests := []struct {
		name string
		body string
	}{
		{"missing label", `{"ip_address":"8.8.8.8"}`},
		{"missing ip", `{"label":"office"}`},
		{"invalid ip", `{"ip_address":"not-an-ip","label":"office"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h.UpsertIPLabel, "/api/v1/ip-labels", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			var resp models.APIResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Error == nil || resp.Error.Code != "VALIDATION_ERROR" {
				t.Errorf("error = %+v, want VALIDATION_ERROR", resp.Error)
			}
		})
	}
}

func TestIPLabelUpsertThenFetch(t *testing.T) {
	store := newFakeStore()
	h := newTestHandler(store, &fakeGeo{}, newFakeNotifier())

	rec := postJSON(t, h.UpsertIPLabel, "/api/v1/ip-labels",
		`{"ip_address":"203.0.113.9","label":"showroom kiosk","note":"Milan flagship"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert status = %d, want 200", rec.Code)
	}

	rec = get(h.ListIPLabels, "/api/v1/ip-labels?ip=203.0.113.9")
	if rec.Code != http.StatusOK {
		t.Fatalf("fetch status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "showroom kiosk") {
		t.Errorf("body = %s, want stored label", rec.Body.String())
	}
}

func TestDeleteIPLabel(t *testing.T) {
	store := newFakeStore()
	store.ipLabels["203.0.113.9"] = models.IPLabel{IPAddress: "203.0.113.9", Label: "kiosk"}
	h := newTestHandler(store, &fakeGeo{}, newFakeNotifier())

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/ip-labels?ip=203.0.113.9", nil)
	rec := httptest.NewRecorder()
	h.DeleteIPLabel(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	// Second delete finds nothing.
	rec = httptest.NewRecorder()
	h.DeleteIPLabel(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/ip-labels?ip=203.0.113.9", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 after deletion", rec.Code)
	}

	// Missing parameter is the hard-fail class.
	rec = httptest.NewRecorder()
	h.DeleteIPLabel(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/ip-labels", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 without ip parameter", rec.Code)
	}
}

func TestStatsCachesSecondRead(t *testing.T) {
	store := newFakeStore()
	h := newTestHandler(store, &fakeGeo{}, newFakeNotifier())

	get(h.Stats, "/api/v1/stats")
	rec := get(h.Stats, "/api/v1/stats")

	if store.statCalls != 1 {
		t.Errorf("store calls = %d, want 1 with warm cache", store.statCalls)
	}
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Metadata.Cached {
		t.Error("metadata.cached = false on second read, want true")
	}
}

func TestHealthDegradedWhenStoreUnreachable(t *testing.T) {
	store := newFakeStore()
	h := newTestHandler(store, &fakeGeo{}, newFakeNotifier())

	rec := get(h.Health, "/health")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when store answers", rec.Code)
	}

	store.pingErr = errStoreDown
	rec = get(h.Health, "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when store is down", rec.Code)
	}
}
