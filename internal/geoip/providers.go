// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

package geoip

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/atelierlumiere/lumiere/internal/models"
)

// Provider resolves one IP address to a location. Implementations must
// return a non-nil Location on success and an error on any failure,
// including provider-reported soft errors.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, ip string) (*models.Location, error)
}

// maxProviderResponseBytes caps provider response reads. Geolocation
// payloads are a few hundred bytes; anything larger is hostile.
const maxProviderResponseBytes = 64 * 1024

// ipAPIProvider queries ip-api.com, the primary provider. Free tier,
// HTTP only, no key required.
type ipAPIProvider struct {
	baseURL string
	client  *http.Client
}

// NewIPAPIProvider creates the primary provider client.
func NewIPAPIProvider(baseURL string, timeout time.Duration) Provider {
	return &ipAPIProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *ipAPIProvider) Name() string { return "ip-api" }

func (p *ipAPIProvider) Lookup(ctx context.Context, ip string) (*models.Location, error) {
	reqURL := fmt.Sprintf("%s/%s", p.baseURL, url.PathEscape(ip))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("ip-api: build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ip-api: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ip-api: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("ip-api: read body: %w", err)
	}

	var payload struct {
		Status     string  `json:"status"`
		Message    string  `json:"message"`
		Country    string  `json:"country"`
		RegionName string  `json:"regionName"`
		City       string  `json:"city"`
		Lat        float64 `json:"lat"`
		Lon        float64 `json:"lon"`
		Timezone   string  `json:"timezone"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("ip-api: decode body: %w", err)
	}

	if payload.Status != "success" {
		return nil, fmt.Errorf("ip-api: lookup failed: %s", payload.Message)
	}

	return &models.Location{
		Country:   payload.Country,
		Region:    payload.RegionName,
		City:      payload.City,
		Latitude:  payload.Lat,
		Longitude: payload.Lon,
		Timezone:  payload.Timezone,
	}, nil
}

// ipapiCoProvider queries ipapi.co, the secondary provider used when the
// primary fails or its circuit is open.
type ipapiCoProvider struct {
	baseURL string
	client  *http.Client
}

// NewIPAPICoProvider creates the secondary provider client.
func NewIPAPICoProvider(baseURL string, timeout time.Duration) Provider {
	return &ipapiCoProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *ipapiCoProvider) Name() string { return "ipapi-co" }

func (p *ipapiCoProvider) Lookup(ctx context.Context, ip string) (*models.Location, error) {
	reqURL := fmt.Sprintf("%s/%s/json/", p.baseURL, url.PathEscape(ip))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("ipapi-co: build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ipapi-co: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ipapi-co: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("ipapi-co: read body: %w", err)
	}

	var payload struct {
		Error       bool    `json:"error"`
		Reason      string  `json:"reason"`
		CountryName string  `json:"country_name"`
		Region      string  `json:"region"`
		City        string  `json:"city"`
		Latitude    float64 `json:"latitude"`
		Longitude   float64 `json:"longitude"`
		Timezone    string  `json:"timezone"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("ipapi-co: decode body: %w", err)
	}

	if payload.Error {
		return nil, fmt.Errorf("ipapi-co: lookup failed: %s", payload.Reason)
	}

	return &models.Location{
		Country:   payload.CountryName,
		Region:    payload.Region,
		City:      payload.City,
		Latitude:  payload.Latitude,
		Longitude: payload.Longitude,
		Timezone:  payload.Timezone,
	}, nil
}

// Refiner reverse-geocodes resolved coordinates through a keyed service
// for better locality names. Refinement runs only after a successful
// provider lookup and only overwrites fields it returns non-empty.
type Refiner struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRefiner creates a refinement client. An empty apiKey disables it.
func NewRefiner(baseURL, apiKey string, timeout time.Duration) *Refiner {
	return &Refiner{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a refinement key is configured.
func (r *Refiner) Enabled() bool {
	return r != nil && r.apiKey != ""
}

// Refine overlays reverse-geocoded place names onto loc. The input is
// never degraded: empty refinement fields leave the original values in
// place, and any error leaves loc untouched.
func (r *Refiner) Refine(ctx context.Context, loc *models.Location) error {
	if !r.Enabled() || loc == nil {
		return nil
	}

	q := url.Values{}
	q.Set("q", fmt.Sprintf("%f+%f", loc.Latitude, loc.Longitude))
	q.Set("key", r.apiKey)
	q.Set("no_annotations", "1")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("refine: build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("refine: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("refine: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponseBytes))
	if err != nil {
		return fmt.Errorf("refine: read body: %w", err)
	}

	var payload struct {
		Results []struct {
			Components struct {
				Country string `json:"country"`
				State   string `json:"state"`
				City    string `json:"city"`
				Town    string `json:"town"`
				Village string `json:"village"`
			} `json:"components"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("refine: decode body: %w", err)
	}

	if len(payload.Results) == 0 {
		return nil
	}

	comp := payload.Results[0].Components
	if comp.Country != "" {
		loc.Country = comp.Country
	}
	if comp.State != "" {
		loc.Region = comp.State
	}

	city := comp.City
	if city == "" {
		city = comp.Town
	}
	if city == "" {
		city = comp.Village
	}
	if city != "" {
		loc.City = city
	}

	return nil
}
