// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atelierlumiere/lumiere/internal/config"
	"github.com/atelierlumiere/lumiere/internal/middleware"
)

// Router wires handlers onto the Chi mux.
type Router struct {
	handler *Handler
	chiMW   *ChiMiddleware
}

// NewRouter creates a Router from the handler and security config.
func NewRouter(h *Handler, sec config.SecurityConfig) *Router {
	return &Router{
		handler: h,
		chiMW: NewChiMiddleware(&ChiMiddlewareConfig{
			CORSAllowedOrigins: sec.CORSOrigins,
			CORSMaxAge:         86400,
			RateLimitRequests:  sec.RateLimitReqs,
			RateLimitWindow:    sec.RateLimitWindow,
			RateLimitDisabled:  sec.RateLimitDisabled,
		}),
	}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Setup configures all routes and returns the root handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMW.CORS())

	r.Get("/health", router.handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		// Beacon path: permissive limits, always success-shaped.
		r.Group(func(r chi.Router) {
			r.Use(router.chiMW.RateLimitBeacon())
			r.Post("/track", router.handler.Track)
			r.Post("/visitors", router.handler.UpsertVisitor)
		})

		// Lead capture: mutating, validated, tighter limit.
		r.With(router.chiMW.RateLimitWrite()).Post("/subscribe", router.handler.Subscribe)

		// Admin reporting.
		r.Group(func(r chi.Router) {
			r.Use(router.chiMW.RateLimit())

			r.Get("/events", router.handler.ListEvents)
			r.Get("/stats", router.handler.Stats)

			r.Get("/subscriptions", router.handler.ListSubscriptions)
			r.Get("/subscriptions/summary", router.handler.SubscriptionSummary)
			r.Get("/subscriptions/map", router.handler.SubscriptionMap)
			r.Get("/subscriptions/export", router.handler.ExportSubscriptions)

			r.Get("/visitors", router.handler.ListVisitors)
			r.Get("/visitors/map", router.handler.VisitorMap)

			r.Get("/ip-labels", router.handler.ListIPLabels)
			r.Post("/ip-labels", router.handler.UpsertIPLabel)
			r.Delete("/ip-labels", router.handler.DeleteIPLabel)
		})
	})

	return r
}
