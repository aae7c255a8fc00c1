// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/atelierlumiere/lumiere/internal/cache"
	"github.com/atelierlumiere/lumiere/internal/config"
	"github.com/atelierlumiere/lumiere/internal/database"
	"github.com/atelierlumiere/lumiere/internal/models"
)

// fakeStore is an in-memory Store with per-call hooks and counters.
type fakeStore struct {
	mu sync.Mutex

	insertedEvents []models.TrackingEvent
	insertErr      error

	upsertResult *models.VisitorUpsertResult
	upsertErr    error

	subscribeIsNew bool
	subscribeErr   error
	lastSub        *models.Subscription

	listSubsFilter database.SubscriptionFilter
	subs           []models.Subscription
	summary        *models.SubscriptionSummary
	mapPoints      []models.MapPoint

	ipLabels  map[string]models.IPLabel
	stats     *models.Stats
	statCalls int
	pingErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		upsertResult: &models.VisitorUpsertResult{
			Visitor:      &models.Visitor{SessionID: "abc123", VisitCount: 1},
			IsNewVisitor: true,
		},
		summary:  &models.SubscriptionSummary{},
		ipLabels: make(map[string]models.IPLabel),
		stats:    &models.Stats{TotalSubscriptions: 7},
	}
}

func (f *fakeStore) InsertEvent(_ context.Context, ev *models.TrackingEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.insertedEvents = append(f.insertedEvents, *ev)
	return nil
}

func (f *fakeStore) ListEvents(context.Context, database.EventFilter) ([]models.TrackingEvent, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertedEvents, len(f.insertedEvents), nil
}

func (f *fakeStore) UpsertVisitor(_ context.Context, v *models.Visitor, _ string) (*models.VisitorUpsertResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	return f.upsertResult, nil
}

func (f *fakeStore) ListVisitors(context.Context, database.VisitorFilter) ([]models.Visitor, int, error) {
	return nil, 0, nil
}

func (f *fakeStore) VisitorMapPoints(context.Context) ([]models.MapPoint, error) {
	return f.mapPoints, nil
}

func (f *fakeStore) UpsertSubscription(_ context.Context, sub *models.Subscription) (*models.Subscription, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, false, f.subscribeErr
	}
	f.lastSub = sub
	return sub, f.subscribeIsNew, nil
}

func (f *fakeStore) ListSubscriptions(_ context.Context, filter database.SubscriptionFilter) ([]models.Subscription, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listSubsFilter = filter
	return f.subs, len(f.subs), nil
}

func (f *fakeStore) ExportSubscriptions(context.Context, database.SubscriptionFilter) ([]models.Subscription, error) {
	return f.subs, nil
}

func (f *fakeStore) SubscriptionSummary(context.Context, database.SubscriptionFilter) (*models.SubscriptionSummary, error) {
	return f.summary, nil
}

func (f *fakeStore) SubscriptionMapPoints(context.Context) ([]models.MapPoint, error) {
	return f.mapPoints, nil
}

func (f *fakeStore) UpsertIPLabel(_ context.Context, label *models.IPLabel) (*models.IPLabel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ipLabels[label.IPAddress] = *label
	return label, nil
}

func (f *fakeStore) ListIPLabels(context.Context) ([]models.IPLabel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.IPLabel, 0, len(f.ipLabels))
	for _, l := range f.ipLabels {
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeStore) GetIPLabel(_ context.Context, ip string) (*models.IPLabel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.ipLabels[ip]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &l, nil
}

func (f *fakeStore) DeleteIPLabel(_ context.Context, ip string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ipLabels[ip]; !ok {
		return database.ErrNotFound
	}
	delete(f.ipLabels, ip)
	return nil
}

func (f *fakeStore) Stats(context.Context) (*models.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statCalls++
	return f.stats, nil
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

// fakeGeo returns a fixed location and counts lookups.
type fakeGeo struct {
	mu    sync.Mutex
	loc   *models.Location
	calls int
	ips   []string
}

func (g *fakeGeo) Resolve(_ context.Context, ip string) *models.Location {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.ips = append(g.ips, ip)
	return g.loc
}

// fakeNotifier signals each delivery on a channel so tests can wait for
// the async dispatch without sleeping.
type fakeNotifier struct {
	visitorCh chan *models.Visitor
	leadCh    chan *models.Subscription
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		visitorCh: make(chan *models.Visitor, 8),
		leadCh:    make(chan *models.Subscription, 8),
	}
}

func (n *fakeNotifier) Configured() bool { return true }

func (n *fakeNotifier) NotifyNewVisitor(_ context.Context, v *models.Visitor) bool {
	n.visitorCh <- v
	return true
}

func (n *fakeNotifier) NotifyNewLead(_ context.Context, sub *models.Subscription) bool {
	n.leadCh <- sub
	return true
}

var errStoreDown = errors.New("connection refused")

// newTestHandler wires a Handler onto fakes with test-friendly config.
func newTestHandler(store *fakeStore, geo *fakeGeo, notifier *fakeNotifier) *Handler {
	cfg := &config.Config{}
	cfg.API.DefaultPageSize = 50
	cfg.API.MaxPageSize = 500
	cfg.Notify.Timeout = time.Second

	return NewHandler(store, geo, notifier, cache.New(time.Minute), cfg)
}
