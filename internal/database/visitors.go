// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/atelierlumiere/lumiere/internal/metrics"
	"github.com/atelierlumiere/lumiere/internal/models"
)

// UpsertVisitor records a page view for a session in one atomic
// statement. A new session inserts a row with visit_count 1; an
// existing session increments visit_count, appends the page to
// pages_visited (duplicates allowed), and advances last_visit.
// Location and device fields only overwrite when the new value is
// non-empty, so a failed geolocation never erases an earlier success.
//
// The returned flag reports whether the row was newly created.
func (s *Store) UpsertVisitor(ctx context.Context, v *models.Visitor, page string) (*models.VisitorUpsertResult, error) {
	start := time.Now()

	initialPages := []string{}
	if page != "" {
		initialPages = []string{page}
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO visitors
			(session_id, ip_address, country, city, region, latitude, longitude,
			 device_type, browser, os, pages_visited, visit_count, first_visit, last_visit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1, NOW(), NOW())
		ON CONFLICT (session_id) DO UPDATE SET
			ip_address = CASE WHEN EXCLUDED.ip_address <> '' THEN EXCLUDED.ip_address ELSE visitors.ip_address END,
			country = CASE WHEN EXCLUDED.country <> '' THEN EXCLUDED.country ELSE visitors.country END,
			city = CASE WHEN EXCLUDED.city <> '' THEN EXCLUDED.city ELSE visitors.city END,
			region = CASE WHEN EXCLUDED.region <> '' THEN EXCLUDED.region ELSE visitors.region END,
			latitude = CASE WHEN EXCLUDED.latitude <> 0 THEN EXCLUDED.latitude ELSE visitors.latitude END,
			longitude = CASE WHEN EXCLUDED.longitude <> 0 THEN EXCLUDED.longitude ELSE visitors.longitude END,
			device_type = CASE WHEN EXCLUDED.device_type <> '' THEN EXCLUDED.device_type ELSE visitors.device_type END,
			browser = CASE WHEN EXCLUDED.browser <> '' THEN EXCLUDED.browser ELSE visitors.browser END,
			os = CASE WHEN EXCLUDED.os <> '' THEN EXCLUDED.os ELSE visitors.os END,
			pages_visited = CASE WHEN $12 <> '' THEN array_append(visitors.pages_visited, $12) ELSE visitors.pages_visited END,
			visit_count = visitors.visit_count + 1,
			last_visit = NOW()
		RETURNING id, session_id, ip_address, country, city, region, latitude, longitude,
		          device_type, browser, os, pages_visited, visit_count, first_visit, last_visit,
		          (xmax = 0) AS is_new
	`, v.SessionID, v.IPAddress,
		v.Location.Country, v.Location.City, v.Location.Region,
		v.Location.Latitude, v.Location.Longitude,
		v.Device.Type, v.Device.Browser, v.Device.OS,
		pq.Array(initialPages), page)

	out := &models.Visitor{}
	var isNew bool
	err := row.Scan(
		&out.ID, &out.SessionID, &out.IPAddress,
		&out.Location.Country, &out.Location.City, &out.Location.Region,
		&out.Location.Latitude, &out.Location.Longitude,
		&out.Device.Type, &out.Device.Browser, &out.Device.OS,
		pq.Array(&out.PagesVisited), &out.VisitCount, &out.FirstVisit, &out.LastVisit,
		&isNew,
	)

	metrics.RecordDBQuery("upsert", "visitors", time.Since(start), err)
	if err != nil {
		metrics.VisitorUpserts.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("upsert visitor: %w", err)
	}

	if isNew {
		metrics.VisitorUpserts.WithLabelValues("new").Inc()
	} else {
		metrics.VisitorUpserts.WithLabelValues("returning").Inc()
	}

	return &models.VisitorUpsertResult{Visitor: out, IsNewVisitor: isNew}, nil
}

// VisitorFilter narrows visitor listings.
type VisitorFilter struct {
	Country string
	Since   time.Time
	Limit   int
	Offset  int
}

// ListVisitors returns visitors matching the filter ordered by most
// recent activity, plus the total count of the filtered set.
func (s *Store) ListVisitors(ctx context.Context, f VisitorFilter) ([]models.Visitor, int, error) {
	start := time.Now()

	where := " WHERE 1=1"
	args := []interface{}{}
	idx := 1

	if f.Country != "" {
		where += fmt.Sprintf(" AND country = $%d", idx)
		args = append(args, f.Country)
		idx++
	}
	if !f.Since.IsZero() {
		where += fmt.Sprintf(" AND last_visit >= $%d", idx)
		args = append(args, f.Since)
		idx++
	}

	var total int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM visitors"+where, args...).Scan(&total)
	if err != nil {
		metrics.RecordDBQuery("count", "visitors", time.Since(start), err)
		return nil, 0, fmt.Errorf("count visitors: %w", err)
	}

	q := `
		SELECT id, session_id, ip_address, country, city, region, latitude, longitude,
		       device_type, browser, os, pages_visited, visit_count, first_visit, last_visit
		FROM visitors` + where +
		fmt.Sprintf(" ORDER BY last_visit DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	metrics.RecordDBQuery("list", "visitors", time.Since(start), err)
	if err != nil {
		return nil, 0, fmt.Errorf("list visitors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Visitor
	for rows.Next() {
		var v models.Visitor
		if err := rows.Scan(
			&v.ID, &v.SessionID, &v.IPAddress,
			&v.Location.Country, &v.Location.City, &v.Location.Region,
			&v.Location.Latitude, &v.Location.Longitude,
			&v.Device.Type, &v.Device.Browser, &v.Device.OS,
			pq.Array(&v.PagesVisited), &v.VisitCount, &v.FirstVisit, &v.LastVisit,
		); err != nil {
			return nil, 0, fmt.Errorf("scan visitor: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate visitors: %w", err)
	}

	return out, total, nil
}

// VisitorMapPoints returns map-ready visitor locations. Only rows with
// non-zero coordinates qualify; everything else has no place on a map.
func (s *Store) VisitorMapPoints(ctx context.Context) ([]models.MapPoint, error) {
	start := time.Now()

	rows, err := s.db.QueryContext(ctx, `
		SELECT city, country, latitude, longitude, COUNT(*) AS visitors, MAX(last_visit) AS last_seen
		FROM visitors
		WHERE latitude <> 0 AND longitude <> 0
		GROUP BY city, country, latitude, longitude
		ORDER BY visitors DESC
	`)
	metrics.RecordDBQuery("map", "visitors", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("visitor map points: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.MapPoint
	for rows.Next() {
		var p models.MapPoint
		if err := rows.Scan(&p.City, &p.Country, &p.Latitude, &p.Longitude, &p.Count, &p.LastSeen); err != nil {
			return nil, fmt.Errorf("scan visitor map point: %w", err)
		}
		p.Label = p.City
		if p.Label == "" {
			p.Label = p.Country
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate visitor map points: %w", err)
	}

	return out, nil
}
