// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

package geoip

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/atelierlumiere/lumiere/internal/models"
)

type locationAlias = models.Location

// fakeProvider counts calls and returns a canned result.
type fakeProvider struct {
	name  string
	calls int32
	fail  bool
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Lookup(_ context.Context, _ string) (*locationAlias, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.fail {
		return nil, fmt.Errorf("%s: unavailable", f.name)
	}
	return &locationAlias{Country: "France", City: "Paris", Latitude: 48.8566, Longitude: 2.3522}, nil
}

func (f *fakeProvider) callCount() int32 { return atomic.LoadInt32(&f.calls) }

func TestIsNonRoutable(t *testing.T) {
	tests := []struct {
		name string
		ip   string
		want bool
	}{
		{"loopback v4", "127.0.0.1", true},
		{"loopback v6", "::1", true},
		{"rfc1918 10", "10.1.2.3", true},
		{"rfc1918 192.168", "192.168.1.50", true},
		{"rfc1918 172.16", "172.16.0.1", true},
		{"rfc1918 172.31", "172.31.255.254", true},
		{"link local", "169.254.0.1", true},
		{"unspecified", "0.0.0.0", true},
		{"unparseable", "not-an-ip", true},
		{"empty short-circuits earlier", "256.1.1.1", true},
		{"public v4", "203.0.113.7", false},
		{"public boundary 172.32", "172.32.0.1", false},
		{"public v6", "2001:db8::1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNonRoutable(tt.ip); got != tt.want {
				t.Errorf("isNonRoutable(%q) = %v, want %v", tt.ip, got, tt.want)
			}
		})
	}
}

func TestResolvePrivateAddressSkipsProviders(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	r := newTestResolver(primary)

	for _, ip := range []string{"127.0.0.1", "10.0.0.5", "192.168.1.1", "172.20.0.9", "::1", ""} {
		if loc := r.Resolve(context.Background(), ip); loc != nil {
			t.Errorf("Resolve(%q) = %+v, want nil", ip, loc)
		}
	}

	if n := primary.callCount(); n != 0 {
		t.Errorf("provider calls = %d, want 0", n)
	}
}

func TestResolvePrimarySuccess(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	secondary := &fakeProvider{name: "secondary"}
	r := newTestResolver(primary, secondary)

	loc := r.Resolve(context.Background(), "203.0.113.7")
	if loc == nil || loc.City != "Paris" {
		t.Fatalf("Resolve() = %+v, want Paris", loc)
	}

	if n := secondary.callCount(); n != 0 {
		t.Errorf("secondary calls = %d, want 0 when primary succeeds", n)
	}
}

func TestResolveFallsBackToSecondary(t *testing.T) {
	primary := &fakeProvider{name: "primary", fail: true}
	secondary := &fakeProvider{name: "secondary"}
	r := newTestResolver(primary, secondary)

	loc := r.Resolve(context.Background(), "203.0.113.7")
	if loc == nil || loc.City != "Paris" {
		t.Fatalf("Resolve() = %+v, want secondary result", loc)
	}

	if n := primary.callCount(); n != 1 {
		t.Errorf("primary calls = %d, want exactly 1 (no retries)", n)
	}
	if n := secondary.callCount(); n != 1 {
		t.Errorf("secondary calls = %d, want 1", n)
	}
}

func TestResolveAllProvidersFail(t *testing.T) {
	primary := &fakeProvider{name: "primary", fail: true}
	secondary := &fakeProvider{name: "secondary", fail: true}
	r := newTestResolver(primary, secondary)

	if loc := r.Resolve(context.Background(), "203.0.113.7"); loc != nil {
		t.Errorf("Resolve() = %+v, want nil when every provider fails", loc)
	}
}

func TestResolveMemoizesPerIP(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	r := newTestResolver(primary)

	for i := 0; i < 5; i++ {
		if loc := r.Resolve(context.Background(), "203.0.113.7"); loc == nil {
			t.Fatal("Resolve() = nil, want location")
		}
	}

	if n := primary.callCount(); n != 1 {
		t.Errorf("provider calls = %d, want 1 for repeated lookups of one IP", n)
	}
}

func TestResolveCachesNegativeResults(t *testing.T) {
	primary := &fakeProvider{name: "primary", fail: true}
	r := newTestResolver(primary)

	r.Resolve(context.Background(), "203.0.113.7")
	r.Resolve(context.Background(), "203.0.113.7")

	if n := primary.callCount(); n != 1 {
		t.Errorf("provider calls = %d, want 1 when failures are memoized", n)
	}
}

func TestIPAPIProviderParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","country":"Italy","regionName":"Lombardy","city":"Milan","lat":45.4642,"lon":9.19,"timezone":"Europe/Rome"}`)
	}))
	defer srv.Close()

	p := NewIPAPIProvider(srv.URL, time.Second)
	loc, err := p.Lookup(context.Background(), "203.0.113.7")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if loc.Country != "Italy" || loc.City != "Milan" || loc.Region != "Lombardy" {
		t.Errorf("Lookup() = %+v, want Milan/Lombardy/Italy", loc)
	}
	if loc.Latitude != 45.4642 || loc.Longitude != 9.19 {
		t.Errorf("coordinates = (%f, %f), want (45.4642, 9.19)", loc.Latitude, loc.Longitude)
	}
}

func TestIPAPIProviderSoftFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"fail","message":"reserved range"}`)
	}))
	defer srv.Close()

	p := NewIPAPIProvider(srv.URL, time.Second)
	if _, err := p.Lookup(context.Background(), "203.0.113.7"); err == nil {
		t.Error("Lookup() error = nil, want error for status=fail")
	}
}

func TestIPAPICoProviderParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"country_name":"Japan","region":"Tokyo","city":"Tokyo","latitude":35.6762,"longitude":139.6503,"timezone":"Asia/Tokyo"}`)
	}))
	defer srv.Close()

	p := NewIPAPICoProvider(srv.URL, time.Second)
	loc, err := p.Lookup(context.Background(), "203.0.113.7")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if loc.Country != "Japan" || loc.City != "Tokyo" {
		t.Errorf("Lookup() = %+v, want Tokyo/Japan", loc)
	}
}

func TestRefinerOverlaysOnlyNonEmptyFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[{"components":{"country":"France","state":"","town":"Neuilly-sur-Seine"}}]}`)
	}))
	defer srv.Close()

	ref := NewRefiner(srv.URL, "test-key", time.Second)
	loc := &locationAlias{Country: "FR", Region: "Ile-de-France", City: "Paris", Latitude: 48.88, Longitude: 2.27}

	if err := ref.Refine(context.Background(), loc); err != nil {
		t.Fatalf("Refine() error = %v", err)
	}

	if loc.Country != "France" {
		t.Errorf("Country = %q, want refined value France", loc.Country)
	}
	if loc.Region != "Ile-de-France" {
		t.Errorf("Region = %q, want original kept when refinement is empty", loc.Region)
	}
	if loc.City != "Neuilly-sur-Seine" {
		t.Errorf("City = %q, want town fallback Neuilly-sur-Seine", loc.City)
	}
}

func TestRefinerDisabledWithoutKey(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	ref := NewRefiner(srv.URL, "", time.Second)
	loc := &locationAlias{Country: "FR"}

	if err := ref.Refine(context.Background(), loc); err != nil {
		t.Fatalf("Refine() error = %v", err)
	}
	if called {
		t.Error("refinement endpoint called without an API key")
	}
}

func TestRefinementAppliesToPrimaryResult(t *testing.T) {
	var refineCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refineCalls, 1)
		fmt.Fprint(w, `{"results":[{"components":{"country":"France","state":"Ile-de-France","city":"Neuilly-sur-Seine"}}]}`)
	}))
	defer srv.Close()

	primary := &fakeProvider{name: "primary"}
	secondary := &fakeProvider{name: "secondary"}
	r := NewResolverWithProviders([]Provider{primary, secondary}, NewRefiner(srv.URL, "test-key", time.Second), time.Minute)

	loc := r.Resolve(context.Background(), "203.0.113.7")
	if loc == nil {
		t.Fatal("Resolve() = nil, want location")
	}
	if n := atomic.LoadInt32(&refineCalls); n != 1 {
		t.Errorf("refine calls = %d, want 1 for a primary hit", n)
	}
	if loc.City != "Neuilly-sur-Seine" {
		t.Errorf("City = %q, want refined value", loc.City)
	}
}

func TestSecondaryResultIsNotRefined(t *testing.T) {
	var refineCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refineCalls, 1)
		fmt.Fprint(w, `{"results":[{"components":{"country":"Refined"}}]}`)
	}))
	defer srv.Close()

	primary := &fakeProvider{name: "primary", fail: true}
	secondary := &fakeProvider{name: "secondary"}
	r := NewResolverWithProviders([]Provider{primary, secondary}, NewRefiner(srv.URL, "test-key", time.Second), time.Minute)

	loc := r.Resolve(context.Background(), "203.0.113.7")
	if loc == nil || loc.Country != "France" {
		t.Fatalf("Resolve() = %+v, want untouched fallback result", loc)
	}
	if n := atomic.LoadInt32(&refineCalls); n != 0 {
		t.Errorf("refine calls = %d, want 0 for a fallback hit", n)
	}
}

func newTestResolver(providers ...Provider) *Resolver {
	ps := make([]Provider, len(providers))
	copy(ps, providers)
	return NewResolverWithProviders(ps, NewRefiner("", "", time.Second), time.Minute)
}
