// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCacheSetGet(t *testing.T) {
	c := New(1 * time.Minute)

	c.Set("geoip:203.0.113.7", "Paris")

	got, ok := c.Get("geoip:203.0.113.7")
	if !ok {
		t.Fatal("Get() miss, want hit")
	}
	if got != "Paris" {
		t.Errorf("Get() = %v, want Paris", got)
	}
}

func TestCacheMiss(t *testing.T) {
	c := New(1 * time.Minute)

	if _, ok := c.Get("absent"); ok {
		t.Error("Get() hit on absent key, want miss")
	}

	stats := c.GetStats()
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
}

func TestCacheExpiration(t *testing.T) {
	c := New(1 * time.Minute)

	c.SetWithTTL("short", "value", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("short"); ok {
		t.Error("Get() hit on expired key, want miss")
	}

	stats := c.GetStats()
	if stats.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", stats.Evictions)
	}
}

func TestCacheDelete(t *testing.T) {
	c := New(1 * time.Minute)

	c.Set("key", "value")
	c.Delete("key")

	if _, ok := c.Get("key"); ok {
		t.Error("Get() hit after Delete(), want miss")
	}
}

func TestCacheClear(t *testing.T) {
	c := New(1 * time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()

	stats := c.GetStats()
	if stats.TotalKeys != 0 {
		t.Errorf("TotalKeys = %d, want 0", stats.TotalKeys)
	}
	if stats.Evictions != 2 {
		t.Errorf("Evictions = %d, want 2", stats.Evictions)
	}
}

func TestCacheHitRate(t *testing.T) {
	c := New(1 * time.Minute)

	c.Set("key", "value")
	c.Get("key")    // hit
	c.Get("absent") // miss

	if rate := c.HitRate(); rate != 50.0 {
		t.Errorf("HitRate() = %.2f, want 50.00", rate)
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New(1 * time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", n%10)
			c.Set(key, n)
			c.Get(key)
		}(i)
	}
	wg.Wait()

	stats := c.GetStats()
	if stats.TotalKeys != 10 {
		t.Errorf("TotalKeys = %d, want 10", stats.TotalKeys)
	}
}

func TestGenerateKey(t *testing.T) {
	type params struct {
		Country string
		Limit   int
	}

	k1 := GenerateKey("subscriptions", params{Country: "FR", Limit: 50})
	k2 := GenerateKey("subscriptions", params{Country: "FR", Limit: 50})
	k3 := GenerateKey("subscriptions", params{Country: "IT", Limit: 50})

	if k1 != k2 {
		t.Errorf("identical params produced different keys: %q vs %q", k1, k2)
	}
	if k1 == k3 {
		t.Errorf("different params produced identical key: %q", k1)
	}
}
