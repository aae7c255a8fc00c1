// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/atelierlumiere/lumiere/internal/metrics"
	"github.com/atelierlumiere/lumiere/internal/models"
)

// InsertEvent appends one tracking event. The table is append-only:
// rows are never updated or deleted by application code.
func (s *Store) InsertEvent(ctx context.Context, ev *models.TrackingEvent) error {
	start := time.Now()

	eventData := ev.EventData
	if eventData == nil {
		eventData = map[string]interface{}{}
	}
	dataJSON, err := json.Marshal(eventData)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO tracking_events
			(session_id, event_type, page_url, referrer, user_agent, ip_address,
			 country, city, region, latitude, longitude,
			 device_type, browser, os, event_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at
	`, ev.SessionID, string(ev.EventType), ev.PageURL, ev.Referrer, ev.UserAgent, ev.IPAddress,
		ev.Location.Country, ev.Location.City, ev.Location.Region,
		ev.Location.Latitude, ev.Location.Longitude,
		ev.Device.Type, ev.Device.Browser, ev.Device.OS, dataJSON,
	).Scan(&ev.ID, &ev.CreatedAt)

	metrics.RecordDBQuery("insert", "tracking_events", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("insert tracking event: %w", err)
	}
	return nil
}

// EventFilter narrows event listings.
type EventFilter struct {
	SessionID string
	EventType string
	Since     time.Time
	Limit     int
	Offset    int
}

// ListEvents returns events matching the filter, newest first, plus the
// total count of the filtered set.
func (s *Store) ListEvents(ctx context.Context, f EventFilter) ([]models.TrackingEvent, int, error) {
	start := time.Now()

	where := " WHERE 1=1"
	args := []interface{}{}
	idx := 1

	if f.SessionID != "" {
		where += fmt.Sprintf(" AND session_id = $%d", idx)
		args = append(args, f.SessionID)
		idx++
	}
	if f.EventType != "" {
		where += fmt.Sprintf(" AND event_type = $%d", idx)
		args = append(args, f.EventType)
		idx++
	}
	if !f.Since.IsZero() {
		where += fmt.Sprintf(" AND created_at >= $%d", idx)
		args = append(args, f.Since)
		idx++
	}

	var total int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tracking_events"+where, args...).Scan(&total)
	if err != nil {
		metrics.RecordDBQuery("count", "tracking_events", time.Since(start), err)
		return nil, 0, fmt.Errorf("count tracking events: %w", err)
	}

	q := `
		SELECT id, session_id, event_type, page_url, referrer, user_agent, ip_address,
		       country, city, region, latitude, longitude,
		       device_type, browser, os, event_data, created_at
		FROM tracking_events` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	metrics.RecordDBQuery("list", "tracking_events", time.Since(start), err)
	if err != nil {
		return nil, 0, fmt.Errorf("list tracking events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.TrackingEvent
	for rows.Next() {
		var ev models.TrackingEvent
		var eventType string
		var dataJSON []byte
		if err := rows.Scan(
			&ev.ID, &ev.SessionID, &eventType, &ev.PageURL, &ev.Referrer, &ev.UserAgent, &ev.IPAddress,
			&ev.Location.Country, &ev.Location.City, &ev.Location.Region,
			&ev.Location.Latitude, &ev.Location.Longitude,
			&ev.Device.Type, &ev.Device.Browser, &ev.Device.OS, &dataJSON, &ev.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan tracking event: %w", err)
		}
		ev.EventType = models.EventType(eventType)
		if len(dataJSON) > 0 {
			if err := json.Unmarshal(dataJSON, &ev.EventData); err != nil {
				return nil, 0, fmt.Errorf("decode event data: %w", err)
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate tracking events: %w", err)
	}

	return out, total, nil
}
