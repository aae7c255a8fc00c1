// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

// Package api exposes the HTTP surface: the tracking beacon endpoints
// (best-effort, always success-shaped) and the admin reporting API
// (structured envelopes, hard validation failures).
package api

import (
	"context"
	"time"

	"github.com/atelierlumiere/lumiere/internal/cache"
	"github.com/atelierlumiere/lumiere/internal/config"
	"github.com/atelierlumiere/lumiere/internal/database"
	"github.com/atelierlumiere/lumiere/internal/models"
)

// Store is the persistence surface the handlers depend on. It is
// satisfied by *database.Store; tests substitute fakes.
type Store interface {
	InsertEvent(ctx context.Context, ev *models.TrackingEvent) error
	ListEvents(ctx context.Context, f database.EventFilter) ([]models.TrackingEvent, int, error)

	UpsertVisitor(ctx context.Context, v *models.Visitor, page string) (*models.VisitorUpsertResult, error)
	ListVisitors(ctx context.Context, f database.VisitorFilter) ([]models.Visitor, int, error)
	VisitorMapPoints(ctx context.Context) ([]models.MapPoint, error)

	UpsertSubscription(ctx context.Context, sub *models.Subscription) (*models.Subscription, bool, error)
	ListSubscriptions(ctx context.Context, f database.SubscriptionFilter) ([]models.Subscription, int, error)
	ExportSubscriptions(ctx context.Context, f database.SubscriptionFilter) ([]models.Subscription, error)
	SubscriptionSummary(ctx context.Context, f database.SubscriptionFilter) (*models.SubscriptionSummary, error)
	SubscriptionMapPoints(ctx context.Context) ([]models.MapPoint, error)

	UpsertIPLabel(ctx context.Context, label *models.IPLabel) (*models.IPLabel, error)
	ListIPLabels(ctx context.Context) ([]models.IPLabel, error)
	GetIPLabel(ctx context.Context, ipAddress string) (*models.IPLabel, error)
	DeleteIPLabel(ctx context.Context, ipAddress string) error

	Stats(ctx context.Context) (*models.Stats, error)
	Ping(ctx context.Context) error
}

// GeoResolver enriches an IP address with a best-effort location.
// A nil result means unresolvable and is always tolerated.
type GeoResolver interface {
	Resolve(ctx context.Context, ip string) *models.Location
}

// Notifier delivers side-channel alerts. Implementations must return
// false without network I/O when no channel is configured.
type Notifier interface {
	Configured() bool
	NotifyNewVisitor(ctx context.Context, v *models.Visitor) bool
	NotifyNewLead(ctx context.Context, sub *models.Subscription) bool
}

// statsCacheTTL bounds how stale the dashboard header may be.
const statsCacheTTL = 30 * time.Second

// Handler implements all HTTP endpoints.
type Handler struct {
	store    Store
	geo      GeoResolver
	notifier Notifier
	cache    *cache.Cache
	cfg      *config.Config
}

// NewHandler creates a Handler with its dependencies.
func NewHandler(store Store, geo GeoResolver, notifier Notifier, c *cache.Cache, cfg *config.Config) *Handler {
	return &Handler{
		store:    store,
		geo:      geo,
		notifier: notifier,
		cache:    c,
		cfg:      cfg,
	}
}
