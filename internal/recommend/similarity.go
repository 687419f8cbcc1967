// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

package recommend

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/kwatanabe42/animori/internal/models"
)

// FindSimilarUsers returns up to limit users whose rating histories correlate
// with the target user's, strongest correlation first.
//
// A candidate must share at least MinCommonRatings rated anime with the
// target and score above MinCorrelation to qualify. A target with no rated
// watchlist entries yields an empty result without error.
func (e *Engine) FindSimilarUsers(ctx context.Context, userID int64, limit int) ([]SimilarUser, error) {
	if limit <= 0 {
		limit = e.config.SimilarUserLimit
	}

	watchlist, err := e.provider.GetWatchlist(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load watchlist: %w", err)
	}

	target := ratingVector(watchlist)
	if len(target) == 0 {
		return nil, nil
	}

	raters, err := e.provider.GetRaterWatchlists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load rater watchlists: %w", err)
	}

	var similar []SimilarUser
	for _, rater := range raters {
		r, common := pearson(target, rater.Ratings)
		if common < e.config.MinCommonRatings {
			continue
		}
		if r <= e.config.MinCorrelation {
			continue
		}
		similar = append(similar, SimilarUser{
			UserID:      rater.UserID,
			Similarity:  r,
			CommonAnime: common,
		})
	}

	sort.Slice(similar, func(i, j int) bool {
		if similar[i].Similarity != similar[j].Similarity {
			return similar[i].Similarity > similar[j].Similarity
		}
		return similar[i].UserID < similar[j].UserID
	})

	if len(similar) > limit {
		similar = similar[:limit]
	}
	return similar, nil
}

// FindSimilarAnime returns up to limit catalog entries similar to the given
// anime, highest composite score first. The reference anime is never part of
// the result. Returns ErrAnimeNotFound if the reference does not exist.
//
// The composite score weighs genre overlap, mood overlap, and rating
// proximity; it is intentionally unnormalized, so scores are comparable to
// each other but not bounded to [0, 1].
func (e *Engine) FindSimilarAnime(ctx context.Context, animeID int64, limit int) ([]ScoredAnime, error) {
	if limit <= 0 {
		limit = e.config.SimilarAnimeLimit
	}

	ref, err := e.provider.GetAnime(ctx, animeID)
	if err != nil {
		return nil, err
	}

	candidates, err := e.provider.GetAnimeSharingTags(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("load tag-sharing candidates: %w", err)
	}

	var scored []ScoredAnime
	for i := range candidates {
		candidate := &candidates[i]
		if candidate.ID == ref.ID {
			continue
		}
		scored = append(scored, ScoredAnime{
			Anime: candidate,
			Score: e.compositeSimilarity(ref, candidate),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Anime.ID < scored[j].Anime.ID
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// compositeSimilarity scores how alike two catalog entries are:
//
//	GenreWeight*|shared genres| + MoodWeight*|shared moods| + RatingWeight*(10 - |rating delta|)
func (e *Engine) compositeSimilarity(a, b *models.Anime) float64 {
	genreOverlap := float64(countShared(a.Genres, b.Genres))
	moodOverlap := float64(countShared(a.Moods, b.Moods))
	ratingCloseness := 10 - math.Abs(a.Rating-b.Rating)

	return e.config.GenreWeight*genreOverlap +
		e.config.MoodWeight*moodOverlap +
		e.config.RatingWeight*ratingCloseness
}

// pearson computes the Pearson correlation coefficient between two rating
// vectors over their shared keys, using the raw-sum form:
//
//	r = (n*Σxy - Σx*Σy) / sqrt((n*Σx² - (Σx)²) * (n*Σy² - (Σy)²))
//
// A zero denominator (either side has no rating variance over the shared
// set) yields r = 0. The second return value is the shared key count.
func pearson(x, y map[int64]int) (float64, int) {
	var n int
	var sumX, sumY, sumXY, sumXSquared, sumYSquared float64

	for animeID, rx := range x {
		ry, ok := y[animeID]
		if !ok {
			continue
		}
		fx, fy := float64(rx), float64(ry)
		n++
		sumX += fx
		sumY += fy
		sumXY += fx * fy
		sumXSquared += fx * fx
		sumYSquared += fy * fy
	}

	if n == 0 {
		return 0, 0
	}

	fn := float64(n)
	numerator := fn*sumXY - sumX*sumY
	denominator := math.Sqrt((fn*sumXSquared - sumX*sumX) * (fn*sumYSquared - sumY*sumY))
	if denominator == 0 {
		return 0, n
	}

	return numerator / denominator, n
}

// ratingVector extracts the rated entries of a watchlist as animeID -> rating.
func ratingVector(watchlist []models.WatchlistEntry) map[int64]int {
	ratings := make(map[int64]int, len(watchlist))
	for _, entry := range watchlist {
		if entry.Rated() {
			ratings[entry.AnimeID] = entry.Rating
		}
	}
	return ratings
}

// countShared counts tags present in both lists. Tags are already normalized
// lowercase, so plain equality suffices.
func countShared(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, tag := range a {
		set[tag] = struct{}{}
	}
	shared := 0
	for _, tag := range b {
		if _, ok := set[tag]; ok {
			shared++
		}
	}
	return shared
}
