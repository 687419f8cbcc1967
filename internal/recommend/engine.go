// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/kwatanabe42/animori/internal/metrics"
	"github.com/kwatanabe42/animori/internal/models"
)

// Engine orchestrates the three generation phases and the read-through
// serving path. Safe for concurrent use.
type Engine struct {
	config   Config
	logger   zerolog.Logger
	provider DataProvider
	store    Store

	// group coalesces concurrent regenerations per user.
	group singleflight.Group

	// now is swappable for tests.
	now func() time.Time
}

// NewEngine creates a recommendation engine. Zero values in cfg fall back to
// defaults before validation.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg Config, provider DataProvider, store Store, logger zerolog.Logger) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, fmt.Errorf("%w: nil data provider", ErrInvalidConfig)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: nil store", ErrInvalidConfig)
	}

	return &Engine{
		config:   cfg,
		logger:   logger.With().Str("component", "recommend").Logger(),
		provider: provider,
		store:    store,
		now:      time.Now,
	}, nil
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// RatedCount returns how many of the user's watchlist entries carry a
// personal rating. Callers use this to enforce the minimum-history
// precondition before explicit generation.
func (e *Engine) RatedCount(ctx context.Context, userID int64) (int, error) {
	watchlist, err := e.provider.GetWatchlist(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load watchlist: %w", err)
	}
	count := 0
	for _, entry := range watchlist {
		if entry.Rated() {
			count++
		}
	}
	return count, nil
}

// MinimumHistory is the rated-entry floor below which explicit generation
// is refused with ErrInsufficientHistory.
func (e *Engine) MinimumHistory() int {
	return e.config.MinCommonRatings
}

// Generate produces a fresh recommendation set for the user and persists it.
//
// Phases run in fixed order: collaborative, content-based, then a high-rated
// fallback that fills the remainder. Earlier stale rows (viewed or expired)
// are cleared first. The phases do not deduplicate against each other; an
// anime surfaced by both collaborative and content-based signals appears
// once per phase, which the serving path tolerates.
func (e *Engine) Generate(ctx context.Context, userID int64, limit int) ([]models.Recommendation, error) {
	limit = e.config.clampLimit(limit)
	start := e.now()

	user, err := e.provider.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			metrics.GenerationErrors.WithLabelValues("user_not_found").Inc()
			return nil, err
		}
		metrics.GenerationErrors.WithLabelValues("provider").Inc()
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}

	watchlist, err := e.provider.GetWatchlist(ctx, userID)
	if err != nil {
		metrics.GenerationErrors.WithLabelValues("provider").Inc()
		return nil, fmt.Errorf("load watchlist: %w", err)
	}
	owned := make(map[int64]struct{}, len(watchlist))
	for _, entry := range watchlist {
		owned[entry.AnimeID] = struct{}{}
	}

	cleared, err := e.store.ClearOldRecommendations(ctx, userID)
	if err != nil {
		metrics.GenerationErrors.WithLabelValues("store").Inc()
		return nil, fmt.Errorf("clear stale recommendations: %w", err)
	}

	now := e.now()
	expiresAt := now.Add(e.config.TTL)

	var recs []models.Recommendation

	collaborative, err := e.collaborativePhase(ctx, userID, owned, limit/2, now, expiresAt)
	if err != nil {
		metrics.GenerationErrors.WithLabelValues("provider").Inc()
		return nil, fmt.Errorf("collaborative phase: %w", err)
	}
	recs = append(recs, collaborative...)
	metrics.RecommendationsGenerated.WithLabelValues("collaborative").Add(float64(len(collaborative)))

	content, err := e.contentPhase(ctx, userID, watchlist, owned, limit/2, now, expiresAt)
	if err != nil {
		metrics.GenerationErrors.WithLabelValues("provider").Inc()
		return nil, fmt.Errorf("content phase: %w", err)
	}
	recs = append(recs, content...)
	metrics.RecommendationsGenerated.WithLabelValues("content").Add(float64(len(content)))

	if remaining := limit - len(recs); remaining > 0 {
		fallback, err := e.fallbackPhase(ctx, userID, owned, remaining, now, expiresAt)
		if err != nil {
			metrics.GenerationErrors.WithLabelValues("provider").Inc()
			return nil, fmt.Errorf("fallback phase: %w", err)
		}
		recs = append(recs, fallback...)
		metrics.RecommendationsGenerated.WithLabelValues("fallback").Add(float64(len(fallback)))
	}

	if len(recs) > 0 {
		if err := e.store.InsertRecommendations(ctx, recs); err != nil {
			metrics.GenerationErrors.WithLabelValues("store").Inc()
			return nil, fmt.Errorf("persist recommendations: %w", err)
		}
	}

	metrics.GenerationDuration.Observe(e.now().Sub(start).Seconds())
	e.logger.Info().
		Int64("user_id", user.ID).
		Int("collaborative", len(collaborative)).
		Int("content", len(content)).
		Int("total", len(recs)).
		Int64("cleared", cleared).
		Dur("duration", e.now().Sub(start)).
		Msg("recommendations generated")

	return recs, nil
}

// collaborativePhase scores anime liked by the target user's neighbors.
// Each candidate accumulates rating*similarity across neighbors; the top
// half-limit candidates become recommendations with normalized scores and
// the strongest contributing neighbors recorded as metadata.
//
// A failing neighbor query aborts the whole generation attempt; only
// per-neighbor watchlist failures degrade to a skip.
func (e *Engine) collaborativePhase(ctx context.Context, userID int64, owned map[int64]struct{}, limit int, now, expiresAt time.Time) ([]models.Recommendation, error) {
	if limit <= 0 {
		return nil, nil
	}

	neighbors, err := e.FindSimilarUsers(ctx, userID, e.config.NeighborCount)
	if err != nil {
		return nil, err
	}
	if len(neighbors) == 0 {
		return nil, nil
	}

	type candidate struct {
		animeID      int64
		aggregate    float64
		contributors []models.SimilarUserWeight
	}
	candidates := make(map[int64]*candidate)

	for _, neighbor := range neighbors {
		watchlist, err := e.provider.GetWatchlist(ctx, neighbor.UserID)
		if err != nil {
			e.logger.Warn().Err(err).Int64("neighbor_id", neighbor.UserID).Msg("neighbor watchlist unavailable")
			continue
		}
		for _, entry := range watchlist {
			if entry.Rating < e.config.LikedRating {
				continue
			}
			if _, ok := owned[entry.AnimeID]; ok {
				continue
			}
			c, ok := candidates[entry.AnimeID]
			if !ok {
				c = &candidate{animeID: entry.AnimeID}
				candidates[entry.AnimeID] = c
			}
			c.aggregate += float64(entry.Rating) * neighbor.Similarity
			c.contributors = append(c.contributors, models.SimilarUserWeight{
				UserID:     neighbor.UserID,
				Similarity: neighbor.Similarity,
			})
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ranked := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].aggregate != ranked[j].aggregate {
			return ranked[i].aggregate > ranked[j].aggregate
		}
		return ranked[i].animeID < ranked[j].animeID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	recs := make([]models.Recommendation, 0, len(ranked))
	for _, c := range ranked {
		contributors := c.contributors
		sort.Slice(contributors, func(i, j int) bool {
			return contributors[i].Similarity > contributors[j].Similarity
		})
		if len(contributors) > e.config.TopContributors {
			contributors = contributors[:e.config.TopContributors]
		}

		recs = append(recs, models.Recommendation{
			UserID:    userID,
			AnimeID:   c.animeID,
			Score:     clampScore(c.aggregate / 10),
			Algorithm: models.AlgorithmCollaborative,
			Reason:    models.ReasonSimilarUsers,
			Metadata: models.RecommendationMetadata{
				SimilarUsers:  contributors,
				AverageRating: c.aggregate / float64(len(neighbors)),
			},
			CreatedAt: now,
			ExpiresAt: expiresAt,
		})
	}
	return recs, nil
}

// contentPhase seeds item-item similarity from the user's own liked anime
// and accumulates composite scores per candidate across seeds. A seed that
// has vanished from the catalog contributes nothing; any other similarity
// failure aborts the generation attempt.
func (e *Engine) contentPhase(ctx context.Context, userID int64, watchlist []models.WatchlistEntry, owned map[int64]struct{}, limit int, now, expiresAt time.Time) ([]models.Recommendation, error) {
	if limit <= 0 {
		return nil, nil
	}

	var seeds []models.WatchlistEntry
	for _, entry := range watchlist {
		if entry.Rating >= e.config.LikedRating {
			seeds = append(seeds, entry)
			if len(seeds) == e.config.SeedCount {
				break
			}
		}
	}
	if len(seeds) == 0 {
		return nil, nil
	}

	type candidate struct {
		anime     *models.Anime
		aggregate float64
	}
	candidates := make(map[int64]*candidate)

	for _, seed := range seeds {
		similar, err := e.FindSimilarAnime(ctx, seed.AnimeID, e.config.SimilarAnimeLimit)
		if errors.Is(err, ErrAnimeNotFound) {
			e.logger.Warn().Int64("anime_id", seed.AnimeID).Msg("seed anime no longer in catalog")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("seed %d similarity: %w", seed.AnimeID, err)
		}
		for _, scored := range similar {
			if _, ok := owned[scored.Anime.ID]; ok {
				continue
			}
			c, ok := candidates[scored.Anime.ID]
			if !ok {
				c = &candidate{anime: scored.Anime}
				candidates[scored.Anime.ID] = c
			}
			c.aggregate += scored.Score
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ranked := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].aggregate != ranked[j].aggregate {
			return ranked[i].aggregate > ranked[j].aggregate
		}
		return ranked[i].anime.ID < ranked[j].anime.ID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	recs := make([]models.Recommendation, 0, len(ranked))
	for _, c := range ranked {
		recs = append(recs, models.Recommendation{
			UserID:    userID,
			AnimeID:   c.anime.ID,
			Score:     clampScore(c.aggregate / 10),
			Algorithm: models.AlgorithmContentBased,
			Reason:    models.ReasonSimilarGenres,
			Metadata: models.RecommendationMetadata{
				CommonGenres:  c.anime.Genres,
				CommonMoods:   c.anime.Moods,
				AverageRating: c.anime.Rating,
			},
			CreatedAt: now,
			ExpiresAt: expiresAt,
		})
	}
	return recs, nil
}

// fallbackPhase fills remaining slots with the best-rated catalog entries
// the user has not watched.
func (e *Engine) fallbackPhase(ctx context.Context, userID int64, owned map[int64]struct{}, limit int, now, expiresAt time.Time) ([]models.Recommendation, error) {
	if limit <= 0 {
		return nil, nil
	}

	excludeIDs := make([]int64, 0, len(owned))
	for animeID := range owned {
		excludeIDs = append(excludeIDs, animeID)
	}

	highRated, err := e.provider.GetHighRatedAnime(ctx, excludeIDs, e.config.FallbackMinRating, limit)
	if err != nil {
		return nil, fmt.Errorf("load high-rated anime: %w", err)
	}

	recs := make([]models.Recommendation, 0, len(highRated))
	for i := range highRated {
		anime := &highRated[i]
		recs = append(recs, models.Recommendation{
			UserID:    userID,
			AnimeID:   anime.ID,
			Score:     clampScore(anime.Rating / 10),
			Algorithm: models.AlgorithmContentBased,
			Reason:    models.ReasonHighRated,
			Metadata: models.RecommendationMetadata{
				AverageRating: anime.Rating,
			},
			CreatedAt: now,
			ExpiresAt: expiresAt,
		})
	}
	return recs, nil
}

// GetUserRecommendations serves the user's active recommendation set,
// regenerating it first when fewer than limit rows remain active.
//
// Regeneration is coalesced per user: concurrent callers that trigger it for
// the same user share a single generation run.
func (e *Engine) GetUserRecommendations(ctx context.Context, userID int64, limit int, algorithm *models.Algorithm) ([]models.Recommendation, error) {
	limit = e.config.clampLimit(limit)

	active, err := e.store.GetActiveRecommendations(ctx, userID, limit, algorithm)
	if err != nil {
		return nil, fmt.Errorf("load active recommendations: %w", err)
	}
	if len(active) >= limit {
		return active, nil
	}

	// Generation runs detached from the initiating request: coalesced waiters
	// must not fail because the first caller went away. Store round trips
	// still carry their own timeouts.
	genCtx := context.WithoutCancel(ctx)

	key := strconv.FormatInt(userID, 10)
	_, err, shared := e.group.Do(key, func() (interface{}, error) {
		_, genErr := e.Generate(genCtx, userID, limit)
		return nil, genErr
	})
	if shared {
		metrics.RegenerationSharedFlights.Inc()
	}
	if err != nil {
		return nil, err
	}

	active, err = e.store.GetActiveRecommendations(ctx, userID, limit, algorithm)
	if err != nil {
		return nil, fmt.Errorf("load regenerated recommendations: %w", err)
	}
	return active, nil
}

// MarkViewed marks every unviewed recommendation of the user for the given
// anime as viewed. Idempotent: a second call updates nothing.
func (e *Engine) MarkViewed(ctx context.Context, userID, animeID int64) error {
	updated, err := e.store.MarkRecommendationsViewed(ctx, userID, animeID)
	if err != nil {
		return fmt.Errorf("mark viewed: %w", err)
	}
	e.logger.Debug().
		Int64("user_id", userID).
		Int64("anime_id", animeID).
		Int64("updated", updated).
		Msg("recommendations marked viewed")
	return nil
}

// clampScore bounds a normalized score to [0, 1].
func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
