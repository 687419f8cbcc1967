// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

package models

import (
	"fmt"
	"time"
)

// Algorithm identifies which generation strategy produced a recommendation.
type Algorithm int

// Algorithm values.
const (
	AlgorithmCollaborative Algorithm = iota
	AlgorithmContentBased
	AlgorithmHybrid
)

// String returns the wire/storage representation of the algorithm.
func (a Algorithm) String() string {
	switch a {
	case AlgorithmCollaborative:
		return "collaborative"
	case AlgorithmContentBased:
		return "content-based"
	case AlgorithmHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// ParseAlgorithm converts a stored algorithm string back to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "collaborative":
		return AlgorithmCollaborative, nil
	case "content-based":
		return AlgorithmContentBased, nil
	case "hybrid":
		return AlgorithmHybrid, nil
	default:
		return AlgorithmCollaborative, fmt.Errorf("unknown algorithm %q", s)
	}
}

// MarshalJSON emits the algorithm as its string form.
func (a Algorithm) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// Reason explains to the user why an anime was recommended.
type Reason int

// Reason values.
const (
	ReasonSimilarUsers Reason = iota
	ReasonSimilarGenres
	ReasonSimilarMoods
	ReasonHighRated
	ReasonPopular
)

// String returns the wire/storage representation of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonSimilarUsers:
		return "similar_users"
	case ReasonSimilarGenres:
		return "similar_genres"
	case ReasonSimilarMoods:
		return "similar_moods"
	case ReasonHighRated:
		return "high_rated"
	case ReasonPopular:
		return "popular"
	default:
		return "unknown"
	}
}

// ParseReason converts a stored reason string back to a Reason.
func ParseReason(s string) (Reason, error) {
	switch s {
	case "similar_users":
		return ReasonSimilarUsers, nil
	case "similar_genres":
		return ReasonSimilarGenres, nil
	case "similar_moods":
		return ReasonSimilarMoods, nil
	case "high_rated":
		return ReasonHighRated, nil
	case "popular":
		return ReasonPopular, nil
	default:
		return ReasonSimilarUsers, fmt.Errorf("unknown reason %q", s)
	}
}

// MarshalJSON emits the reason as its string form.
func (r Reason) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

// SimilarUserWeight records one contributing neighbor in collaborative metadata.
type SimilarUserWeight struct {
	UserID     int64   `json:"user_id"`
	Similarity float64 `json:"similarity"`
}

// RecommendationMetadata carries explanation data alongside a recommendation.
// Collaborative rows fill SimilarUsers and AverageRating; content-based rows
// fill CommonGenres, CommonMoods, and AverageRating.
type RecommendationMetadata struct {
	SimilarUsers  []SimilarUserWeight `json:"similar_users,omitempty"`
	CommonGenres  []string            `json:"common_genres,omitempty"`
	CommonMoods   []string            `json:"common_moods,omitempty"`
	AverageRating float64             `json:"average_rating,omitempty"`
}

// Recommendation is one generated suggestion for a user.
//
// Score is always within [0, 1]. A row is "active" while it is unviewed and
// unexpired; only active rows are served to clients.
type Recommendation struct {
	ID        int64                  `json:"id"`
	UserID    int64                  `json:"user_id"`
	AnimeID   int64                  `json:"anime_id"`
	Score     float64                `json:"score"`
	Algorithm Algorithm              `json:"algorithm"`
	Reason    Reason                 `json:"reason"`
	Metadata  RecommendationMetadata `json:"metadata"`
	IsViewed  bool                   `json:"is_viewed"`
	ViewedAt  *time.Time             `json:"viewed_at,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	ExpiresAt time.Time              `json:"expires_at"`

	// Anime is the joined catalog entry, populated on read paths for display.
	Anime *Anime `json:"anime,omitempty"`
}

// Active reports whether the recommendation should still be served.
func (r Recommendation) Active(now time.Time) bool {
	return !r.IsViewed && r.ExpiresAt.After(now)
}

// RecommendationStats aggregates stored recommendations per algorithm.
type RecommendationStats struct {
	Algorithm    Algorithm `json:"algorithm"`
	Count        int       `json:"count"`
	AverageScore float64   `json:"average_score"`
	ViewedCount  int       `json:"viewed_count"`
}
