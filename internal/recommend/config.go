// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

package recommend

import (
	"fmt"
	"time"
)

// Config holds the engine's thresholds, limits, and scoring weights.
type Config struct {
	// DefaultLimit is the recommendation count used when a request does not
	// specify one. Default: 20
	DefaultLimit int `json:"default_limit" koanf:"default_limit"`

	// MaxLimit caps the per-request recommendation count. Default: 50
	MaxLimit int `json:"max_limit" koanf:"max_limit"`

	// SimilarUserLimit is the default result size for user-user similarity
	// queries. Default: 10
	SimilarUserLimit int `json:"similar_user_limit" koanf:"similar_user_limit"`

	// SimilarAnimeLimit is the default result size for item-item similarity
	// queries. Default: 10
	SimilarAnimeLimit int `json:"similar_anime_limit" koanf:"similar_anime_limit"`

	// NeighborCount is how many similar users feed the collaborative phase.
	// Default: 5
	NeighborCount int `json:"neighbor_count" koanf:"neighbor_count"`

	// SeedCount is how many of the user's own liked anime seed the
	// content-based phase. Default: 5
	SeedCount int `json:"seed_count" koanf:"seed_count"`

	// MinCommonRatings is the minimum number of shared rated anime before a
	// correlation is computed at all. Default: 3
	MinCommonRatings int `json:"min_common_ratings" koanf:"min_common_ratings"`

	// MinCorrelation is the exclusive lower bound a Pearson score must beat
	// to count as a neighbor. Default: 0.3
	//
	// Zero is treated as unset and replaced by the default. To accept every
	// positive correlation, use a small negative value; Validate accepts
	// anything in [-1, 1).
	MinCorrelation float64 `json:"min_correlation" koanf:"min_correlation"`

	// LikedRating is the minimum personal rating that marks an anime as
	// liked, on both sides of the collaborative phase. Default: 7
	LikedRating int `json:"liked_rating" koanf:"liked_rating"`

	// FallbackMinRating is the catalog rating floor for the fallback phase.
	// Default: 8.0
	//
	// Zero is treated as unset and replaced by the default. To admit the
	// whole catalog, use a value below the rating scale's minimum, such
	// as 0.1.
	FallbackMinRating float64 `json:"fallback_min_rating" koanf:"fallback_min_rating"`

	// GenreWeight, MoodWeight, and RatingWeight are the composite similarity
	// weights for genre overlap, mood overlap, and rating proximity.
	// Defaults: 0.4, 0.3, 0.3
	GenreWeight  float64 `json:"genre_weight" koanf:"genre_weight"`
	MoodWeight   float64 `json:"mood_weight" koanf:"mood_weight"`
	RatingWeight float64 `json:"rating_weight" koanf:"rating_weight"`

	// TopContributors caps how many neighbor weights are recorded in
	// collaborative metadata. Default: 3
	TopContributors int `json:"top_contributors" koanf:"top_contributors"`

	// TTL is how long a generated recommendation stays servable.
	// Default: 168h (7 days)
	TTL time.Duration `json:"ttl" koanf:"ttl"`
}

// DefaultConfig returns the engine configuration with production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultLimit:      20,
		MaxLimit:          50,
		SimilarUserLimit:  10,
		SimilarAnimeLimit: 10,
		NeighborCount:     5,
		SeedCount:         5,
		MinCommonRatings:  3,
		MinCorrelation:    0.3,
		LikedRating:       7,
		FallbackMinRating: 8.0,
		GenreWeight:       0.4,
		MoodWeight:        0.3,
		RatingWeight:      0.3,
		TopContributors:   3,
		TTL:               7 * 24 * time.Hour,
	}
}

// withDefaults fills zero values with defaults so a partially populated
// Config (for example, from a config file) is still usable.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = def.DefaultLimit
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = def.MaxLimit
	}
	if c.SimilarUserLimit <= 0 {
		c.SimilarUserLimit = def.SimilarUserLimit
	}
	if c.SimilarAnimeLimit <= 0 {
		c.SimilarAnimeLimit = def.SimilarAnimeLimit
	}
	if c.NeighborCount <= 0 {
		c.NeighborCount = def.NeighborCount
	}
	if c.SeedCount <= 0 {
		c.SeedCount = def.SeedCount
	}
	if c.MinCommonRatings <= 0 {
		c.MinCommonRatings = def.MinCommonRatings
	}
	if c.MinCorrelation == 0 {
		c.MinCorrelation = def.MinCorrelation
	}
	if c.LikedRating <= 0 {
		c.LikedRating = def.LikedRating
	}
	if c.FallbackMinRating == 0 {
		c.FallbackMinRating = def.FallbackMinRating
	}
	if c.GenreWeight == 0 && c.MoodWeight == 0 && c.RatingWeight == 0 {
		c.GenreWeight = def.GenreWeight
		c.MoodWeight = def.MoodWeight
		c.RatingWeight = def.RatingWeight
	}
	if c.TopContributors <= 0 {
		c.TopContributors = def.TopContributors
	}
	if c.TTL <= 0 {
		c.TTL = def.TTL
	}
	return c
}

// Validate checks the configuration for internally inconsistent values.
func (c Config) Validate() error {
	if c.DefaultLimit <= 0 {
		return fmt.Errorf("%w: default_limit must be positive, got %d", ErrInvalidConfig, c.DefaultLimit)
	}
	if c.MaxLimit < c.DefaultLimit {
		return fmt.Errorf("%w: max_limit %d below default_limit %d", ErrInvalidConfig, c.MaxLimit, c.DefaultLimit)
	}
	if c.MinCommonRatings < 1 {
		return fmt.Errorf("%w: min_common_ratings must be at least 1, got %d", ErrInvalidConfig, c.MinCommonRatings)
	}
	if c.MinCorrelation < -1 || c.MinCorrelation >= 1 {
		return fmt.Errorf("%w: min_correlation must be in [-1, 1), got %g", ErrInvalidConfig, c.MinCorrelation)
	}
	if c.LikedRating < 1 || c.LikedRating > 10 {
		return fmt.Errorf("%w: liked_rating must be in [1, 10], got %d", ErrInvalidConfig, c.LikedRating)
	}
	if c.FallbackMinRating < 0 || c.FallbackMinRating > 10 {
		return fmt.Errorf("%w: fallback_min_rating must be in [0, 10], got %g", ErrInvalidConfig, c.FallbackMinRating)
	}
	if c.GenreWeight < 0 || c.MoodWeight < 0 || c.RatingWeight < 0 {
		return fmt.Errorf("%w: similarity weights must be non-negative", ErrInvalidConfig)
	}
	if c.GenreWeight+c.MoodWeight+c.RatingWeight == 0 {
		return fmt.Errorf("%w: at least one similarity weight must be positive", ErrInvalidConfig)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("%w: ttl must be positive, got %s", ErrInvalidConfig, c.TTL)
	}
	return nil
}

// clampLimit normalizes a requested result count against the configured
// default and maximum.
func (c Config) clampLimit(limit int) int {
	if limit <= 0 {
		return c.DefaultLimit
	}
	if limit > c.MaxLimit {
		return c.MaxLimit
	}
	return limit
}
