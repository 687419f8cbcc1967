// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

package recommend

import (
	"context"

	"github.com/kwatanabe42/animori/internal/models"
)

// SimilarUser is one neighbor found by user-user similarity.
type SimilarUser struct {
	// UserID identifies the neighbor.
	UserID int64 `json:"user_id"`

	// Similarity is the Pearson correlation with the target user, in (0.3, 1].
	Similarity float64 `json:"similarity"`

	// CommonAnime is the number of anime both users have rated.
	CommonAnime int `json:"common_anime"`
}

// ScoredAnime is one candidate found by item-item similarity.
// Score is the unnormalized genre/mood/rating composite.
type ScoredAnime struct {
	Anime *models.Anime `json:"anime"`
	Score float64       `json:"score"`
}

// UserRatings holds the rated portion of one user's watchlist as a vector
// keyed by anime ID. Values are personal 1-10 ratings.
type UserRatings struct {
	UserID  int64
	Ratings map[int64]int
}

// DataProvider supplies catalog and watchlist data to the engine.
// Implementations must be safe for concurrent use.
type DataProvider interface {
	// GetUser returns the user or ErrUserNotFound.
	GetUser(ctx context.Context, userID int64) (*models.User, error)

	// GetWatchlist returns all watchlist entries for a user.
	// A missing user yields an empty list, not an error.
	GetWatchlist(ctx context.Context, userID int64) ([]models.WatchlistEntry, error)

	// GetRaterWatchlists returns the rated watchlist vectors of every user
	// except the excluded one. Users with no rated entries are omitted.
	GetRaterWatchlists(ctx context.Context, excludeUserID int64) ([]UserRatings, error)

	// GetAnime returns the catalog entry or ErrAnimeNotFound.
	GetAnime(ctx context.Context, animeID int64) (*models.Anime, error)

	// GetAnimeSharingTags returns catalog entries that share at least one
	// genre or mood with the given anime, excluding the anime itself.
	GetAnimeSharingTags(ctx context.Context, anime *models.Anime) ([]models.Anime, error)

	// GetHighRatedAnime returns catalog entries rated at or above minRating,
	// sorted by rating descending, excluding the given IDs.
	GetHighRatedAnime(ctx context.Context, excludeIDs []int64, minRating float64, limit int) ([]models.Anime, error)
}

// Store persists and queries generated recommendations.
// Implementations must be safe for concurrent use.
type Store interface {
	// InsertRecommendations writes a generated batch atomically.
	InsertRecommendations(ctx context.Context, recs []models.Recommendation) error

	// GetActiveRecommendations returns unviewed, unexpired rows for a user,
	// highest score first, optionally filtered by algorithm. Joined anime
	// data is populated for display.
	GetActiveRecommendations(ctx context.Context, userID int64, limit int, algorithm *models.Algorithm) ([]models.Recommendation, error)

	// MarkRecommendationsViewed marks every unviewed row for the user/anime
	// pair as viewed and returns the number of rows updated. Calling it
	// again for the same pair is a no-op.
	MarkRecommendationsViewed(ctx context.Context, userID, animeID int64) (int64, error)

	// ClearOldRecommendations deletes the user's viewed or expired rows and
	// returns the number deleted.
	ClearOldRecommendations(ctx context.Context, userID int64) (int64, error)
}
