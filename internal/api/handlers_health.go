// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/atelierlumiere/lumiere/internal/models"
)

// healthStatus is the health endpoint payload.
type healthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Health handles GET /health. Degraded when the datastore does not
// answer a ping; the process itself is still serving.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := healthStatus{Status: "ok", Database: "ok"}
	code := http.StatusOK

	if err := h.store.Ping(r.Context()); err != nil {
		status.Status = "degraded"
		status.Database = "unreachable"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}

// Stats handles GET /api/v1/stats. The totals back the dashboard header
// and are cached briefly; a stale count is fine, a table scan per page
// load is not.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const cacheKey = "stats:dashboard"

	if cached, ok := h.cache.Get(cacheKey); ok {
		respondJSON(w, http.StatusOK, &models.APIResponse{
			Status: "success",
			Data:   cached,
			Metadata: models.Metadata{
				Timestamp: time.Now(),
				Cached:    true,
			},
		})
		return
	}

	stats, err := h.store.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to load stats", err)
		return
	}

	h.cache.SetWithTTL(cacheKey, stats, statsCacheTTL)
	respondSuccess(w, stats, start)
}
