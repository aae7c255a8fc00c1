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

// UpsertSubscription captures a lead. Email is the natural key: a
// repeat submission refreshes the existing row's context and behavioral
// snapshot instead of creating a duplicate. Returns the stored row and
// whether it was newly created.
func (s *Store) UpsertSubscription(ctx context.Context, sub *models.Subscription) (*models.Subscription, bool, error) {
	start := time.Now()

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO subscriptions
			(email, name, ip_address, country, city, region, latitude, longitude,
			 device_type, browser, os, referrer, entry_type,
			 utm_source, utm_medium, utm_campaign,
			 time_to_subscribe, pages_viewed, scroll_depth)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (email) DO UPDATE SET
			name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE subscriptions.name END,
			ip_address = CASE WHEN EXCLUDED.ip_address <> '' THEN EXCLUDED.ip_address ELSE subscriptions.ip_address END,
			country = CASE WHEN EXCLUDED.country <> '' THEN EXCLUDED.country ELSE subscriptions.country END,
			city = CASE WHEN EXCLUDED.city <> '' THEN EXCLUDED.city ELSE subscriptions.city END,
			region = CASE WHEN EXCLUDED.region <> '' THEN EXCLUDED.region ELSE subscriptions.region END,
			latitude = CASE WHEN EXCLUDED.latitude <> 0 THEN EXCLUDED.latitude ELSE subscriptions.latitude END,
			longitude = CASE WHEN EXCLUDED.longitude <> 0 THEN EXCLUDED.longitude ELSE subscriptions.longitude END,
			device_type = CASE WHEN EXCLUDED.device_type <> '' THEN EXCLUDED.device_type ELSE subscriptions.device_type END,
			browser = CASE WHEN EXCLUDED.browser <> '' THEN EXCLUDED.browser ELSE subscriptions.browser END,
			os = CASE WHEN EXCLUDED.os <> '' THEN EXCLUDED.os ELSE subscriptions.os END,
			referrer = CASE WHEN EXCLUDED.referrer <> '' THEN EXCLUDED.referrer ELSE subscriptions.referrer END,
			entry_type = CASE WHEN EXCLUDED.entry_type <> '' THEN EXCLUDED.entry_type ELSE subscriptions.entry_type END,
			utm_source = CASE WHEN EXCLUDED.utm_source <> '' THEN EXCLUDED.utm_source ELSE subscriptions.utm_source END,
			utm_medium = CASE WHEN EXCLUDED.utm_medium <> '' THEN EXCLUDED.utm_medium ELSE subscriptions.utm_medium END,
			utm_campaign = CASE WHEN EXCLUDED.utm_campaign <> '' THEN EXCLUDED.utm_campaign ELSE subscriptions.utm_campaign END,
			time_to_subscribe = CASE WHEN EXCLUDED.time_to_subscribe <> 0 THEN EXCLUDED.time_to_subscribe ELSE subscriptions.time_to_subscribe END,
			pages_viewed = CASE WHEN EXCLUDED.pages_viewed <> 0 THEN EXCLUDED.pages_viewed ELSE subscriptions.pages_viewed END,
			scroll_depth = CASE WHEN EXCLUDED.scroll_depth <> 0 THEN EXCLUDED.scroll_depth ELSE subscriptions.scroll_depth END
		RETURNING id, email, name, ip_address, country, city, region, latitude, longitude,
		          device_type, browser, os, referrer, entry_type,
		          utm_source, utm_medium, utm_campaign,
		          time_to_subscribe, pages_viewed, scroll_depth, created_at,
		          (xmax = 0) AS is_new
	`, sub.Email, sub.Name, sub.IPAddress,
		sub.Location.Country, sub.Location.City, sub.Location.Region,
		sub.Location.Latitude, sub.Location.Longitude,
		sub.Device.Type, sub.Device.Browser, sub.Device.OS,
		sub.Referrer, string(sub.EntryType),
		sub.UTMSource, sub.UTMMedium, sub.UTMCampaign,
		sub.TimeToSubscribeSec, sub.PagesViewed, sub.ScrollDepth)

	out := &models.Subscription{}
	var entryType string
	var isNew bool
	err := row.Scan(
		&out.ID, &out.Email, &out.Name, &out.IPAddress,
		&out.Location.Country, &out.Location.City, &out.Location.Region,
		&out.Location.Latitude, &out.Location.Longitude,
		&out.Device.Type, &out.Device.Browser, &out.Device.OS,
		&out.Referrer, &entryType,
		&out.UTMSource, &out.UTMMedium, &out.UTMCampaign,
		&out.TimeToSubscribeSec, &out.PagesViewed, &out.ScrollDepth, &out.CreatedAt,
		&isNew,
	)

	metrics.RecordDBQuery("upsert", "subscriptions", time.Since(start), err)
	if err != nil {
		return nil, false, fmt.Errorf("upsert subscription: %w", err)
	}
	out.EntryType = models.EntryType(entryType)

	if isNew {
		metrics.SubscriptionsCaptured.Inc()
	}

	return out, isNew, nil
}

// SubscriptionFilter narrows subscription listings and aggregations.
type SubscriptionFilter struct {
	Country   string
	City      string
	EntryType string
	UTMSource string
	Query     string // email substring, case-insensitive
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

// whereClause builds the shared filter predicate. Listing, summary, and
// export all run over the same filtered set.
func (f SubscriptionFilter) whereClause() (string, []interface{}, int) {
	where := " WHERE 1=1"
	args := []interface{}{}
	idx := 1

	if f.Country != "" {
		where += fmt.Sprintf(" AND country = $%d", idx)
		args = append(args, f.Country)
		idx++
	}
	if f.City != "" {
		where += fmt.Sprintf(" AND city = $%d", idx)
		args = append(args, f.City)
		idx++
	}
	if f.EntryType != "" {
		where += fmt.Sprintf(" AND entry_type = $%d", idx)
		args = append(args, f.EntryType)
		idx++
	}
	if f.UTMSource != "" {
		where += fmt.Sprintf(" AND utm_source = $%d", idx)
		args = append(args, f.UTMSource)
		idx++
	}
	if f.Query != "" {
		where += fmt.Sprintf(" AND email ILIKE $%d", idx)
		args = append(args, "%"+f.Query+"%")
		idx++
	}
	if !f.Since.IsZero() {
		where += fmt.Sprintf(" AND created_at >= $%d", idx)
		args = append(args, f.Since)
		idx++
	}
	if !f.Until.IsZero() {
		where += fmt.Sprintf(" AND created_at <= $%d", idx)
		args = append(args, f.Until)
		idx++
	}

	return where, args, idx
}

const subscriptionColumns = `id, email, name, ip_address, country, city, region, latitude, longitude,
	device_type, browser, os, referrer, entry_type,
	utm_source, utm_medium, utm_campaign,
	time_to_subscribe, pages_viewed, scroll_depth, created_at`

// ListSubscriptions returns subscriptions matching the filter, newest
// first, plus the total count of the filtered set.
func (s *Store) ListSubscriptions(ctx context.Context, f SubscriptionFilter) ([]models.Subscription, int, error) {
	start := time.Now()

	where, args, idx := f.whereClause()

	var total int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM subscriptions"+where, args...).Scan(&total)
	if err != nil {
		metrics.RecordDBQuery("count", "subscriptions", time.Since(start), err)
		return nil, 0, fmt.Errorf("count subscriptions: %w", err)
	}

	q := "SELECT " + subscriptionColumns + " FROM subscriptions" + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	metrics.RecordDBQuery("list", "subscriptions", time.Since(start), err)
	if err != nil {
		return nil, 0, fmt.Errorf("list subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out, err := scanSubscriptions(rows)
	if err != nil {
		return nil, 0, err
	}

	return out, total, nil
}

// ExportSubscriptions returns the full filtered set without pagination,
// for CSV export.
func (s *Store) ExportSubscriptions(ctx context.Context, f SubscriptionFilter) ([]models.Subscription, error) {
	start := time.Now()

	where, args, _ := f.whereClause()
	q := "SELECT " + subscriptionColumns + " FROM subscriptions" + where + " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	metrics.RecordDBQuery("export", "subscriptions", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("export subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanSubscriptions(rows)
}

// SubscriptionSummary aggregates the full filtered set server-side, so
// dashboard breakdowns stay correct past the first page.
func (s *Store) SubscriptionSummary(ctx context.Context, f SubscriptionFilter) (*models.SubscriptionSummary, error) {
	start := time.Now()

	where, args, _ := f.whereClause()

	summary := &models.SubscriptionSummary{}
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM subscriptions"+where, args...).Scan(&summary.Total)
	if err != nil {
		metrics.RecordDBQuery("summary", "subscriptions", time.Since(start), err)
		return nil, fmt.Errorf("subscription total: %w", err)
	}

	byCountry, err := s.groupSubscriptions(ctx, "country", where, args)
	if err != nil {
		return nil, err
	}
	summary.ByCountry = byCountry

	byCity, err := s.groupSubscriptions(ctx, "city", where, args)
	if err != nil {
		return nil, err
	}
	summary.ByCity = byCity

	metrics.RecordDBQuery("summary", "subscriptions", time.Since(start), nil)
	return summary, nil
}

// groupSubscriptions runs one GROUP BY aggregation over the filtered set.
func (s *Store) groupSubscriptions(ctx context.Context, column, where string, args []interface{}) ([]models.RegionCount, error) {
	q := fmt.Sprintf(`
		SELECT %s, COUNT(*) AS n
		FROM subscriptions%s AND %s <> ''
		GROUP BY %s
		ORDER BY n DESC, %s ASC
	`, column, where, column, column, column)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("group subscriptions by %s: %w", column, err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.RegionCount
	for rows.Next() {
		var rc models.RegionCount
		if err := rows.Scan(&rc.Key, &rc.Count); err != nil {
			return nil, fmt.Errorf("scan %s bucket: %w", column, err)
		}
		out = append(out, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s buckets: %w", column, err)
	}

	return out, nil
}

// SubscriptionMapPoints returns map-ready lead locations; rows with
// zero coordinates are excluded.
func (s *Store) SubscriptionMapPoints(ctx context.Context) ([]models.MapPoint, error) {
	start := time.Now()

	rows, err := s.db.QueryContext(ctx, `
		SELECT city, country, latitude, longitude, COUNT(*) AS leads, MAX(created_at) AS last_seen
		FROM subscriptions
		WHERE latitude <> 0 AND longitude <> 0
		GROUP BY city, country, latitude, longitude
		ORDER BY leads DESC
	`)
	metrics.RecordDBQuery("map", "subscriptions", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("subscription map points: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.MapPoint
	for rows.Next() {
		var p models.MapPoint
		if err := rows.Scan(&p.City, &p.Country, &p.Latitude, &p.Longitude, &p.Count, &p.LastSeen); err != nil {
			return nil, fmt.Errorf("scan subscription map point: %w", err)
		}
		p.Label = p.City
		if p.Label == "" {
			p.Label = p.Country
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscription map points: %w", err)
	}

	return out, nil
}

func scanSubscriptions(rows *sql.Rows) ([]models.Subscription, error) {
	var out []models.Subscription
	for rows.Next() {
		var sub models.Subscription
		var entryType string
		if err := rows.Scan(
			&sub.ID, &sub.Email, &sub.Name, &sub.IPAddress,
			&sub.Location.Country, &sub.Location.City, &sub.Location.Region,
			&sub.Location.Latitude, &sub.Location.Longitude,
			&sub.Device.Type, &sub.Device.Browser, &sub.Device.OS,
			&sub.Referrer, &entryType,
			&sub.UTMSource, &sub.UTMMedium, &sub.UTMCampaign,
			&sub.TimeToSubscribeSec, &sub.PagesViewed, &sub.ScrollDepth, &sub.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		sub.EntryType = models.EntryType(entryType)
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return out, nil
}
