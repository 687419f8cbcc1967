// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

package models

import (
	"fmt"
	"time"
)

// WatchStatus tracks where a watchlist entry sits in a user's viewing lifecycle.
type WatchStatus int

// Watch status values.
const (
	StatusPlanToWatch WatchStatus = iota
	StatusWatching
	StatusCompleted
	StatusDropped
)

// String returns the wire/storage representation of the status.
func (s WatchStatus) String() string {
	switch s {
	case StatusPlanToWatch:
		return "plan_to_watch"
	case StatusWatching:
		return "watching"
	case StatusCompleted:
		return "completed"
	case StatusDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// ParseWatchStatus converts a stored status string back to a WatchStatus.
func ParseWatchStatus(s string) (WatchStatus, error) {
	switch s {
	case "plan_to_watch":
		return StatusPlanToWatch, nil
	case "watching":
		return StatusWatching, nil
	case "completed":
		return StatusCompleted, nil
	case "dropped":
		return StatusDropped, nil
	default:
		return StatusPlanToWatch, fmt.Errorf("unknown watch status %q", s)
	}
}

// MarshalJSON emits the status as its string form.
func (s WatchStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// User represents an account that owns a watchlist.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// WatchlistEntry is a single anime on a user's watchlist.
//
// Rating is the user's personal 1-10 rating; zero means unrated. Only rated
// entries participate in similarity computation.
type WatchlistEntry struct {
	AnimeID     int64       `json:"anime_id"`
	Status      WatchStatus `json:"status"`
	Rating      int         `json:"rating,omitempty"`
	Review      string      `json:"review,omitempty"`
	AddedAt     time.Time   `json:"added_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// Rated reports whether the entry carries a personal rating.
func (e WatchlistEntry) Rated() bool {
	return e.Rating > 0
}
