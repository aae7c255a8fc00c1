// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

package models

import "time"

// APIResponse is the standardized envelope for every admin-facing JSON
// endpoint.
//
// Status field values:
//   - "success": see Data
//   - "error": see Error
//
// The tracking beacon endpoint deliberately does NOT use this envelope;
// it answers {"success":true} regardless of outcome so instrumentation
// can never degrade the user-facing page.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
}

// APIError is a structured error payload.
//
// Common codes:
//   - VALIDATION_ERROR: invalid input parameters
//   - DATABASE_ERROR: query execution failure
//   - NOT_FOUND: resource does not exist
//   - SERVICE_ERROR: a dependency is unavailable
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// TrackResponse is the success-shaped tracking beacon answer.
type TrackResponse struct {
	Success bool `json:"success"`
}

// VisitorUpsertResult reports the outcome of a visitor upsert back to the
// caller and to the notification dispatcher.
type VisitorUpsertResult struct {
	Visitor      *Visitor `json:"visitor"`
	IsNewVisitor bool     `json:"is_new_visitor"`
}
