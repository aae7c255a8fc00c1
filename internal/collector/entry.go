// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

package collector

import (
	"net/url"
	"strings"

	"github.com/atelierlumiere/lumiere/internal/models"
)

// Entry is the classification of how a session arrived at the site,
// derived once at session start.
type Entry struct {
	Type        models.EntryType
	SearchQuery string
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
}

// searchEngines maps referrer hostname substrings to the query
// parameter carrying the search terms.
var searchEngines = map[string]string{
	"google":     "q",
	"bing":       "q",
	"duckduckgo": "q",
	"yahoo":      "p",
	"yandex":     "text",
	"baidu":      "wd",
	"ecosia":     "q",
}

// socialNetworks are hostname substrings of known social platforms.
var socialNetworks = []string{
	"instagram", "facebook", "fb.com", "twitter", "t.co", "x.com",
	"tiktok", "pinterest", "linkedin", "youtube", "reddit", "threads",
	"weibo", "vk.com",
}

// ClassifyEntry derives the entry point from the landing URL and the
// referrer. UTM parameters take precedence over referrer inference:
// a campaign-tagged arrival is classified by its tags even when the
// referrer would say otherwise.
func ClassifyEntry(pageURL, referrer string) Entry {
	entry := Entry{Type: models.EntryOther}

	if u, err := url.Parse(pageURL); err == nil {
		q := u.Query()
		entry.UTMSource = q.Get("utm_source")
		entry.UTMMedium = q.Get("utm_medium")
		entry.UTMCampaign = q.Get("utm_campaign")
	}

	if entry.UTMSource != "" || entry.UTMMedium != "" {
		entry.Type = classifyUTM(entry.UTMSource, entry.UTMMedium)
		return entry
	}

	if referrer == "" {
		entry.Type = models.EntryDirect
		return entry
	}

	ref, err := url.Parse(referrer)
	if err != nil || ref.Hostname() == "" {
		entry.Type = models.EntryDirect
		return entry
	}
	host := strings.ToLower(ref.Hostname())

	for needle, queryParam := range searchEngines {
		if strings.Contains(host, needle) {
			entry.Type = models.EntrySearch
			entry.SearchQuery = ref.Query().Get(queryParam)
			return entry
		}
	}

	for _, needle := range socialNetworks {
		if strings.Contains(host, needle) {
			entry.Type = models.EntrySocial
			return entry
		}
	}

	entry.Type = models.EntryReferral
	return entry
}

// classifyUTM maps campaign tags to an entry type.
func classifyUTM(source, medium string) models.EntryType {
	source = strings.ToLower(source)
	medium = strings.ToLower(medium)

	switch {
	case strings.Contains(medium, "email") || source == "newsletter":
		return models.EntryEmail
	case strings.Contains(medium, "social"):
		return models.EntrySocial
	case strings.Contains(medium, "cpc"), strings.Contains(medium, "ppc"),
		strings.Contains(medium, "paid"), strings.Contains(medium, "search"):
		return models.EntrySearch
	}

	for _, needle := range socialNetworks {
		if strings.Contains(source, needle) {
			return models.EntrySocial
		}
	}

	if source != "" {
		return models.EntryReferral
	}
	return models.EntryOther
}
