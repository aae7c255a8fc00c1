// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionFilterWhereClause(t *testing.T) {
	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		filter    SubscriptionFilter
		wantWhere string
		wantArgs  []interface{}
	}{
		{
			name:      "empty filter",
			filter:    SubscriptionFilter{},
			wantWhere: " WHERE 1=1",
			wantArgs:  []interface{}{},
		},
		{
			name:      "country only",
			filter:    SubscriptionFilter{Country: "Italy"},
			wantWhere: " WHERE 1=1 AND country = $1",
			wantArgs:  []interface{}{"Italy"},
		},
		{
			name:      "email substring is case-insensitive pattern",
			filter:    SubscriptionFilter{Query: "client"},
			wantWhere: " WHERE 1=1 AND email ILIKE $1",
			wantArgs:  []interface{}{"%client%"},
		},
		{
			name:      "stacked filters keep placeholder order",
			filter:    SubscriptionFilter{Country: "Italy", City: "Milan", Query: "ex", Since: since},
			wantWhere: " WHERE 1=1 AND country = $1 AND city = $2 AND email ILIKE $3 AND created_at >= $4",
			wantArgs:  []interface{}{"Italy", "Milan", "%ex%", since},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args, idx := tt.filter.whereClause()
			assert.Equal(t, tt.wantWhere, where)
			assert.Equal(t, tt.wantArgs, args)
			assert.Equal(t, len(tt.wantArgs)+1, idx)
		})
	}
}

func TestExportSubscriptionsHasNoPagination(t *testing.T) {
	store, mock, cleanup := setupTestStore(t)
	defer cleanup()

	created := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "email", "name", "ip_address", "country", "city", "region",
		"latitude", "longitude", "device_type", "browser", "os", "referrer",
		"entry_type", "utm_source", "utm_medium", "utm_campaign",
		"time_to_subscribe", "pages_viewed", "scroll_depth", "created_at",
	}).
		AddRow(1, "a@example.com", "A", "8.8.8.8", "Italy", "Milan", "Lombardy",
			45.46, 9.19, "mobile", "Safari", "iOS", "", "search", "", "", "",
			42, 3, 90, created).
		AddRow(2, "b@example.com", "B", "8.8.4.4", "Italy", "Rome", "Lazio",
			41.9, 12.49, "desktop", "Chrome", "macOS", "", "direct", "", "", "",
			120, 5, 100, created)

	mock.ExpectQuery(`(?s)SELECT .+ FROM subscriptions WHERE 1=1 AND country = \$1 ORDER BY created_at DESC$`).
		WithArgs("Italy").
		WillReturnRows(rows)

	subs, err := store.ExportSubscriptions(context.Background(), SubscriptionFilter{Country: "Italy"})
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "a@example.com", subs[0].Email)
	assert.Equal(t, "Milan", subs[0].Location.City)
	assert.Equal(t, 90, subs[0].ScrollDepth)
	require.NoError(t, mock.ExpectationsWereMet())
}
