// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

package models

import (
	"strings"
	"time"
)

// Anime represents a single catalog entry.
//
// Genres and Moods are free-form tags, stored lowercase. Rating is the
// catalog-wide average rating on a 0-10 scale (not a per-user rating).
type Anime struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Genres    []string  `json:"genres"`
	Moods     []string  `json:"moods"`
	Rating    float64   `json:"rating"`
	Synopsis  string    `json:"synopsis,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeTags lowercases, trims, and deduplicates a tag list while
// preserving first-seen order. Empty tags are dropped.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		normalized := strings.ToLower(strings.TrimSpace(tag))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		result = append(result, normalized)
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
