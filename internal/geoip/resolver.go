// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

// Package geoip resolves visitor IP addresses to geographic locations
// through an ordered chain of external providers.
//
// Resolution pipeline:
//  1. Private, loopback, and link-local addresses short-circuit to nil
//     with zero network calls.
//  2. A short-TTL cache memoizes results per IP so a burst of events
//     from one visitor costs a single provider round-trip.
//  3. Providers are tried in configured order; the first success wins.
//     Each provider sits behind its own circuit breaker so a dead
//     primary stops eating its timeout on every event.
//  4. An optional keyed refinement pass overlays better place names,
//     but only on a primary-provider result; fallback hits are used
//     as-is. Refinement failures are non-fatal.
//
// A nil Location with a nil error is a valid outcome: geolocation is
// best-effort and callers must persist events without it.
package geoip

import (
	"context"
	"errors"
	"net"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/atelierlumiere/lumiere/internal/cache"
	"github.com/atelierlumiere/lumiere/internal/config"
	"github.com/atelierlumiere/lumiere/internal/logging"
	"github.com/atelierlumiere/lumiere/internal/metrics"
	"github.com/atelierlumiere/lumiere/internal/models"
)

// Resolver coordinates the provider chain, cache, and refinement pass.
type Resolver struct {
	providers []*breakerProvider
	refiner   *Refiner
	cache     *cache.Cache
	cacheTTL  time.Duration
}

// breakerProvider pairs a provider with its circuit breaker.
type breakerProvider struct {
	provider Provider
	cb       *gobreaker.CircuitBreaker[*models.Location]
}

// cachedResult wraps a resolution outcome for the cache. Negative
// results (lookup failed everywhere) are cached too, so a provider
// outage does not translate into a provider call per event.
type cachedResult struct {
	loc *models.Location
}

// NewResolver builds a resolver from config: ip-api.com primary,
// ipapi.co fallback, optional refinement when a key is configured.
func NewResolver(cfg *config.GeoIPConfig) *Resolver {
	providers := []Provider{
		NewIPAPIProvider(cfg.PrimaryURL, cfg.Timeout),
		NewIPAPICoProvider(cfg.SecondaryURL, cfg.Timeout),
	}

	return NewResolverWithProviders(providers, NewRefiner(cfg.RefineURL, cfg.RefineAPIKey, cfg.Timeout), cfg.CacheTTL)
}

// NewResolverWithProviders wires an explicit provider chain. Tests use
// this to point the chain at local fixtures.
func NewResolverWithProviders(providers []Provider, refiner *Refiner, cacheTTL time.Duration) *Resolver {
	wrapped := make([]*breakerProvider, 0, len(providers))
	for _, p := range providers {
		wrapped = append(wrapped, &breakerProvider{
			provider: p,
			cb:       newProviderBreaker(p.Name()),
		})
	}

	return &Resolver{
		providers: wrapped,
		refiner:   refiner,
		cache:     cache.New(cacheTTL),
		cacheTTL:  cacheTTL,
	}
}

// newProviderBreaker creates a circuit breaker for one provider:
// 3 concurrent requests in half-open, 1 minute measurement window,
// 2 minute recovery timeout, opens at >=60% failures over >=10 requests.
func newProviderBreaker(name string) *gobreaker.CircuitBreaker[*models.Location] {
	cbName := "geoip-" + name

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	return gobreaker.NewCircuitBreaker[*models.Location](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6

			if shouldTrip {
				logging.Warn().
					Str("breaker", cbName).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("opening geolocation provider circuit")
			}

			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("geolocation circuit state transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
}

// Resolve maps one IP to a location. Returns (nil, nil) for private or
// unparseable addresses and when every provider fails; the caller
// proceeds without location either way.
func (r *Resolver) Resolve(ctx context.Context, ipAddress string) *models.Location {
	if ipAddress == "" {
		return nil
	}

	if isNonRoutable(ipAddress) {
		metrics.GeoPrivateSkips.Inc()
		return nil
	}

	cacheKey := "geoip:" + ipAddress
	if cached, ok := r.cache.Get(cacheKey); ok {
		metrics.GeoCacheHits.Inc()
		if result, ok := cached.(cachedResult); ok {
			return cloneLocation(result.loc)
		}
		return nil
	}
	metrics.GeoCacheMisses.Inc()

	loc, fromPrimary := r.lookupChain(ctx, ipAddress)

	// Refinement overlays only the primary provider's result. A hit
	// served by the fallback provider is used as-is.
	if loc != nil && fromPrimary && r.refiner.Enabled() {
		if err := r.refiner.Refine(ctx, loc); err != nil {
			logging.Warn().Err(err).Str("ip", ipAddress).Msg("geolocation refinement failed")
		}
	}

	r.cache.SetWithTTL(cacheKey, cachedResult{loc: cloneLocation(loc)}, r.cacheTTL)

	return loc
}

// lookupChain tries each provider once, in order. No per-provider
// retries: the next provider in the chain is the retry. The second
// return value reports whether the primary provider produced the hit.
func (r *Resolver) lookupChain(ctx context.Context, ipAddress string) (*models.Location, bool) {
	for i, bp := range r.providers {
		name := bp.provider.Name()
		cbName := "geoip-" + name

		start := time.Now()
		loc, err := bp.cb.Execute(func() (*models.Location, error) {
			return bp.provider.Lookup(ctx, ipAddress)
		})
		elapsed := time.Since(start)

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				metrics.RecordGeoLookup(name, "rejected", elapsed)
				metrics.CircuitBreakerRequests.WithLabelValues(cbName, "rejected").Inc()
			} else {
				metrics.RecordGeoLookup(name, "failure", elapsed)
				metrics.CircuitBreakerRequests.WithLabelValues(cbName, "failure").Inc()
				logging.Debug().Err(err).Str("provider", name).Str("ip", ipAddress).Msg("geolocation provider failed")
			}
			continue
		}

		metrics.RecordGeoLookup(name, "success", elapsed)
		metrics.CircuitBreakerRequests.WithLabelValues(cbName, "success").Inc()
		return loc, i == 0
	}

	logging.Debug().Str("ip", ipAddress).Msg("all geolocation providers failed")
	return nil, false
}

// CacheStats exposes the memoization cache statistics.
func (r *Resolver) CacheStats() cache.Stats {
	return r.cache.GetStats()
}

// isNonRoutable reports whether the address cannot have a public
// geolocation: private ranges, loopback, link-local, unspecified, or
// simply unparseable.
func isNonRoutable(ipAddress string) bool {
	ip := net.ParseIP(ipAddress)
	if ip == nil {
		return true
	}
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

func cloneLocation(loc *models.Location) *models.Location {
	if loc == nil {
		return nil
	}
	clone := *loc
	return &clone
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
