// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/atelierlumiere/lumiere/internal/database"
	"github.com/atelierlumiere/lumiere/internal/models"
)

// ipLabelRequest is the admin upsert payload. This is the one surface
// where malformed input hard-fails with a 400.
type ipLabelRequest struct {
	IPAddress string `json:"ip_address" validate:"required,ip"`
	Label     string `json:"label" validate:"required,min=1,max=120"`
	Note      string `json:"note" validate:"max=500"`
}

// ListIPLabels handles GET /api/v1/ip-labels. With an `ip` query
// parameter it returns the single matching label.
func (h *Handler) ListIPLabels(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if ip := r.URL.Query().Get("ip"); ip != "" {
		label, err := h.store.GetIPLabel(r.Context(), ip)
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "no label for this address", nil)
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to load label", err)
			return
		}
		respondSuccess(w, label, start)
		return
	}

	labels, err := h.store.ListIPLabels(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to list labels", err)
		return
	}
	respondSuccess(w, labels, start)
}

// UpsertIPLabel handles POST /api/v1/ip-labels: insert or, on an
// existing address, overwrite label and note.
func (h *Handler) UpsertIPLabel(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ipLabelRequest
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

	label, err := h.store.UpsertIPLabel(r.Context(), &models.IPLabel{
		IPAddress: req.IPAddress,
		Label:     req.Label,
		Note:      req.Note,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to save label", err)
		return
	}

	respondSuccess(w, label, start)
}

// DeleteIPLabel handles DELETE /api/v1/ip-labels?ip=<address>.
func (h *Handler) DeleteIPLabel(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	ip := r.URL.Query().Get("ip")
	if ip == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "ip query parameter is required", nil)
		return
	}

	err := h.store.DeleteIPLabel(r.Context(), ip)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "no label for this address", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to delete label", err)
		return
	}

	respondSuccess(w, map[string]string{"deleted": ip}, start)
}
