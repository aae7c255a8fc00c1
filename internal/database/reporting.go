// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/atelierlumiere/lumiere/internal/metrics"
	"github.com/atelierlumiere/lumiere/internal/models"
)

// Stats returns the dashboard header counts in a single round-trip.
func (s *Store) Stats(ctx context.Context) (*models.Stats, error) {
	start := time.Now()

	stats := &models.Stats{}
	var lastEvent sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM subscriptions),
			(SELECT COUNT(*) FROM visitors),
			(SELECT COUNT(*) FROM tracking_events),
			(SELECT COUNT(DISTINCT country) FROM visitors WHERE country <> ''),
			(SELECT MAX(created_at) FROM tracking_events)
	`).Scan(
		&stats.TotalSubscriptions,
		&stats.TotalVisitors,
		&stats.TotalEvents,
		&stats.UniqueCountries,
		&lastEvent,
	)

	metrics.RecordDBQuery("stats", "all", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}

	if lastEvent.Valid {
		stats.LastEventAt = &lastEvent.Time
	}
	return stats, nil
}
