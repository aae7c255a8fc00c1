// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/lumiere/config.yaml",
	"/etc/lumiere/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. These are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL:             "",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Server: ServerConfig{
			Port:        8080,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		API: APIConfig{
			DefaultPageSize: 50,
			MaxPageSize:     500,
		},
		GeoIP: GeoIPConfig{
			PrimaryURL:   "http://ip-api.com/json",
			SecondaryURL: "https://ipapi.co",
			RefineURL:    "https://api.opencagedata.com/geocode/v1/json",
			RefineAPIKey: "",
			CacheTTL:     15 * time.Minute,
			Timeout:      5 * time.Second,
		},
		Notify: NotifyConfig{
			WebhookVisitors: "",
			WebhookLeads:    "",
			WebhookURL:      "",
			Timeout:         10 * time.Second,
			SlackChannel:    "",
			SlackUsername:   "Lumiere",
			EmailFrom:       "",
			EmailTo:         "",
			SMTPPrimary:     SMTPConfig{Port: 587},
			SMTPFallback:    SMTPConfig{Port: 587},
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     100,
			RateLimitWindow:   1 * time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in values from defaultConfig
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: override any setting
//
// Precedence is ENV > file > defaults. After unmarshaling, ordered
// fallback chains (webhook URLs, SMTP providers) are resolved once and
// the result validated.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: optional config file
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	// DATABASE_URL -> database.url, SLACK_WEBHOOK_VISITORS -> notify.webhook_visitors
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	cfg.resolve()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as
// comma-separated slices when set via env var.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices
// for known slice fields. Env vars come in as strings but the config
// expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config
// paths. Unmapped variables are skipped so random environment variables
// cannot pollute the config.
//
// Examples:
//   - DATABASE_URL -> database.url
//   - SLACK_WEBHOOK_VISITORS -> notify.webhook_visitors
//   - GEOIP_REFINE_API_KEY -> geoip.refine_api_key
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Database mappings
		"database_url":               "database.url",
		"database_max_open_conns":    "database.max_open_conns",
		"database_max_idle_conns":    "database.max_idle_conns",
		"database_conn_max_lifetime": "database.conn_max_lifetime",

		// Server mappings
		"http_port":    "server.port",
		"port":         "server.port",
		"http_host":    "server.host",
		"http_timeout": "server.timeout",
		"environment":  "server.environment",

		// API mappings
		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",

		// GeoIP mappings
		"geoip_primary_url":    "geoip.primary_url",
		"geoip_secondary_url":  "geoip.secondary_url",
		"geoip_refine_url":     "geoip.refine_url",
		"geoip_refine_api_key": "geoip.refine_api_key",
		"geoip_cache_ttl":      "geoip.cache_ttl",
		"geoip_timeout":        "geoip.timeout",

		// Notification mappings
		"slack_webhook_visitors": "notify.webhook_visitors",
		"slack_webhook_leads":    "notify.webhook_leads",
		"slack_webhook_url":      "notify.webhook_url",
		"notify_timeout":         "notify.timeout",
		"slack_channel":          "notify.slack_channel",
		"slack_username":         "notify.slack_username",
		"email_from":             "notify.email_from",
		"email_to":               "notify.email_to",
		"smtp_host":              "notify.smtp_primary.host",
		"smtp_port":              "notify.smtp_primary.port",
		"smtp_username":          "notify.smtp_primary.username",
		"smtp_password":          "notify.smtp_primary.password",
		"smtp_fallback_host":     "notify.smtp_fallback.host",
		"smtp_fallback_port":     "notify.smtp_fallback.port",
		"smtp_fallback_username": "notify.smtp_fallback.username",
		"smtp_fallback_password": "notify.smtp_fallback.password",

		// Security mappings
		"cors_origins":        "security.cors_origins",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"disable_rate_limit":  "security.rate_limit_disabled",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are dropped
	return ""
}
