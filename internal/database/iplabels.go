// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/atelierlumiere/lumiere/internal/metrics"
	"github.com/atelierlumiere/lumiere/internal/models"
)

// UpsertIPLabel creates or replaces the label for an IP address. The
// address is the natural key: labeling an already-labeled address
// overwrites the previous label and note.
func (s *Store) UpsertIPLabel(ctx context.Context, label *models.IPLabel) (*models.IPLabel, error) {
	start := time.Now()

	out := &models.IPLabel{}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO ip_labels (ip_address, label, note, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (ip_address) DO UPDATE SET
			label = EXCLUDED.label,
			note = EXCLUDED.note,
			updated_at = NOW()
		RETURNING id, ip_address, label, note, created_at, updated_at
	`, label.IPAddress, label.Label, label.Note).Scan(
		&out.ID, &out.IPAddress, &out.Label, &out.Note, &out.CreatedAt, &out.UpdatedAt,
	)

	metrics.RecordDBQuery("upsert", "ip_labels", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("upsert ip label: %w", err)
	}
	return out, nil
}

// ListIPLabels returns all labels ordered by most recently updated.
func (s *Store) ListIPLabels(ctx context.Context) ([]models.IPLabel, error) {
	start := time.Now()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ip_address, label, note, created_at, updated_at
		FROM ip_labels
		ORDER BY updated_at DESC
	`)
	metrics.RecordDBQuery("list", "ip_labels", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("list ip labels: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.IPLabel
	for rows.Next() {
		var l models.IPLabel
		if err := rows.Scan(&l.ID, &l.IPAddress, &l.Label, &l.Note, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan ip label: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ip labels: %w", err)
	}

	return out, nil
}

// GetIPLabel looks up the label for one address. Returns ErrNotFound
// when the address has no label.
func (s *Store) GetIPLabel(ctx context.Context, ipAddress string) (*models.IPLabel, error) {
	start := time.Now()

	out := &models.IPLabel{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, ip_address, label, note, created_at, updated_at
		FROM ip_labels
		WHERE ip_address = $1
	`, ipAddress).Scan(&out.ID, &out.IPAddress, &out.Label, &out.Note, &out.CreatedAt, &out.UpdatedAt)

	metrics.RecordDBQuery("get", "ip_labels", time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ip label: %w", err)
	}
	return out, nil
}

// DeleteIPLabel removes the label for one address. Returns ErrNotFound
// when no row matched.
func (s *Store) DeleteIPLabel(ctx context.Context, ipAddress string) error {
	start := time.Now()

	res, err := s.db.ExecContext(ctx, `DELETE FROM ip_labels WHERE ip_address = $1`, ipAddress)
	metrics.RecordDBQuery("delete", "ip_labels", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("delete ip label: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete ip label rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
