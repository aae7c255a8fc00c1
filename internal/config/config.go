// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

// Package config holds all application configuration, loaded from
// built-in defaults, an optional YAML file, and environment variables
// (highest priority), in that order, via Koanf v2.
//
// Configuration Categories:
//
//  1. Infrastructure: Database (Postgres), Server (HTTP port, host,
//     timeouts), API (pagination bounds).
//  2. Analytics pipeline: GeoIP (provider endpoints, optional refinement
//     key, lookup cache TTL), Notify (webhook fallback chain, SMTP
//     provider precedence, delivery timeout).
//  3. Security & Observability: CORS origins, rate limiting, Logging.
//
// Ordered fallback chains (Slack webhook URLs, SMTP providers) are
// resolved exactly once inside Load(); call sites consume the single
// resolved value and never re-evaluate precedence.
//
// Config is immutable after Load() and safe for concurrent reads.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration object.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Server   ServerConfig   `koanf:"server"`
	API      APIConfig      `koanf:"api"`
	GeoIP    GeoIPConfig    `koanf:"geoip"`
	Notify   NotifyConfig   `koanf:"notify"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// DatabaseConfig holds Postgres connection settings.
//
// Environment Variables:
//   - DATABASE_URL: Postgres DSN (required)
//   - DATABASE_MAX_OPEN_CONNS / DATABASE_MAX_IDLE_CONNS
//   - DATABASE_CONN_MAX_LIFETIME
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// APIConfig bounds pagination on admin listing endpoints.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// GeoIPConfig configures the geolocation resolver.
//
// Environment Variables:
//   - GEOIP_REFINE_API_KEY: optional enhanced-accuracy reverse-geocode key;
//     when unset the primary provider result is used as-is
//   - GEOIP_CACHE_TTL: memoization TTL per IP (default 15m)
//   - GEOIP_TIMEOUT: per-provider request timeout (default 5s)
//
// PrimaryURL/SecondaryURL/RefineURL exist so tests can point the resolver
// at local fixtures; production keeps the defaults.
type GeoIPConfig struct {
	PrimaryURL   string        `koanf:"primary_url"`
	SecondaryURL string        `koanf:"secondary_url"`
	RefineURL    string        `koanf:"refine_url"`
	RefineAPIKey string        `koanf:"refine_api_key"`
	CacheTTL     time.Duration `koanf:"cache_ttl"`
	Timeout      time.Duration `koanf:"timeout"`
}

// NotifyConfig configures outbound lead/visitor notifications.
//
// Webhook selection: WebhookVisitors, then WebhookLeads, then WebhookURL.
// The first non-empty value wins and is frozen into ResolvedWebhookURL by
// Load(). When the whole chain is empty the dispatcher is a no-op that
// reports false without network I/O.
//
// SMTP providers follow the same precedence: the primary credential set is
// used when complete, otherwise the fallback set, otherwise email delivery
// is disabled.
type NotifyConfig struct {
	WebhookVisitors string        `koanf:"webhook_visitors"`
	WebhookLeads    string        `koanf:"webhook_leads"`
	WebhookURL      string        `koanf:"webhook_url"`
	Timeout         time.Duration `koanf:"timeout"`

	SlackChannel  string `koanf:"slack_channel"`
	SlackUsername string `koanf:"slack_username"`

	EmailFrom    string     `koanf:"email_from"`
	EmailTo      string     `koanf:"email_to"`
	SMTPPrimary  SMTPConfig `koanf:"smtp_primary"`
	SMTPFallback SMTPConfig `koanf:"smtp_fallback"`

	// Resolved by Load(); never set these directly.
	ResolvedWebhookURL string      `koanf:"-"`
	ResolvedSMTP       *SMTPConfig `koanf:"-"`
}

// SMTPConfig is one SMTP credential set.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// configured reports whether this credential set is usable.
func (s SMTPConfig) configured() bool {
	return s.Host != "" && s.Port > 0
}

// SecurityConfig holds CORS and rate-limit settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.API.DefaultPageSize <= 0 || c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("invalid pagination bounds: default=%d max=%d",
			c.API.DefaultPageSize, c.API.MaxPageSize)
	}
	if c.GeoIP.Timeout <= 0 {
		return fmt.Errorf("geoip timeout must be positive")
	}
	if c.Notify.Timeout <= 0 {
		return fmt.Errorf("notify timeout must be positive")
	}
	return nil
}

// resolve freezes the ordered fallback chains into single values.
func (c *Config) resolve() {
	c.Notify.ResolvedWebhookURL = firstNonEmpty(
		c.Notify.WebhookVisitors,
		c.Notify.WebhookLeads,
		c.Notify.WebhookURL,
	)

	switch {
	case c.Notify.SMTPPrimary.configured():
		smtp := c.Notify.SMTPPrimary
		c.Notify.ResolvedSMTP = &smtp
	case c.Notify.SMTPFallback.configured():
		smtp := c.Notify.SMTPFallback
		c.Notify.ResolvedSMTP = &smtp
	default:
		c.Notify.ResolvedSMTP = nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
