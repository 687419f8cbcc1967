// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kwatanabe42/animori/internal/logging"
	"github.com/kwatanabe42/animori/internal/metrics"
	"github.com/kwatanabe42/animori/internal/models"
	"github.com/kwatanabe42/animori/internal/recommend"
)

// GetRecommendations serves the authenticated user's active recommendations.
// When fewer active rows exist than requested, a regeneration runs first
// (read-through, single-flighted per user).
//
// Query parameters:
//   - limit: maximum rows to return (clamped to the configured maximum)
//   - algorithm: optional filter, "collaborative" | "content-based" | "hybrid"
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, codeAuthenticationError, "Authentication required", nil)
		return
	}

	limit := getIntParam(r, "limit", 0)

	var algorithm *models.Algorithm
	if raw := r.URL.Query().Get("algorithm"); raw != "" {
		parsed, err := models.ParseAlgorithm(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, codeValidationError, "Unknown algorithm filter", err)
			return
		}
		algorithm = &parsed
	}

	recs, err := h.engine.GetUserRecommendations(r.Context(), userID, limit, algorithm)
	if errors.Is(err, recommend.ErrUserNotFound) {
		respondError(w, http.StatusNotFound, codeUserNotFound, "User does not exist", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeDatabaseError, "Failed to load recommendations", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"recommendations": recs,
		"count":           len(recs),
	}, started)
}

// GenerateRecommendations explicitly regenerates the authenticated user's
// recommendation set. Users with fewer rated watchlist entries than the
// collaborative overlap floor are refused; recommendations built from almost
// no history would be noise.
func (h *Handler) GenerateRecommendations(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, codeAuthenticationError, "Authentication required", nil)
		return
	}

	ratedCount, err := h.engine.RatedCount(r.Context(), userID)
	if errors.Is(err, recommend.ErrUserNotFound) {
		respondError(w, http.StatusNotFound, codeUserNotFound, "User does not exist", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeDatabaseError, "Failed to load watchlist", err)
		return
	}
	if minimum := h.engine.MinimumHistory(); ratedCount < minimum {
		respondError(w, http.StatusUnprocessableEntity, codeInsufficientHistory,
			fmt.Sprintf("At least %d rated watchlist entries are required, found %d", minimum, ratedCount),
			recommend.ErrInsufficientHistory)
		return
	}

	limit := getIntParam(r, "limit", 0)
	recs, err := h.engine.Generate(r.Context(), userID, limit)
	if errors.Is(err, recommend.ErrUserNotFound) {
		respondError(w, http.StatusNotFound, codeUserNotFound, "User does not exist", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeInternalError, "Failed to generate recommendations", err)
		return
	}

	logging.Info().Int64("user_id", userID).Int("count", len(recs)).Msg("Recommendations generated on request")

	respondSuccess(w, http.StatusCreated, map[string]interface{}{
		"recommendations": recs,
		"count":           len(recs),
	}, started)
}

// MarkViewed marks every unviewed recommendation of the given anime for the
// authenticated user as viewed. Repeat calls are no-ops.
func (h *Handler) MarkViewed(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, codeAuthenticationError, "Authentication required", nil)
		return
	}

	animeID, err := strconv.ParseInt(chi.URLParam(r, "animeID"), 10, 64)
	if err != nil || animeID <= 0 {
		respondError(w, http.StatusBadRequest, codeValidationError, "Invalid anime ID", err)
		return
	}

	if err := h.engine.MarkViewed(r.Context(), userID, animeID); err != nil {
		respondError(w, http.StatusInternalServerError, codeDatabaseError, "Failed to mark recommendation viewed", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"anime_id": animeID,
		"viewed":   true,
	}, started)
}

// GetSimilarAnime serves catalog entries similar to the given anime. The
// endpoint is public and cached; scores are the unnormalized composite
// similarity values.
func (h *Handler) GetSimilarAnime(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	animeID, err := strconv.ParseInt(chi.URLParam(r, "animeID"), 10, 64)
	if err != nil || animeID <= 0 {
		respondError(w, http.StatusBadRequest, codeValidationError, "Invalid anime ID", err)
		return
	}
	limit := getIntParam(r, "limit", h.engine.Config().SimilarAnimeLimit)

	cacheKey := fmt.Sprintf("similar:%d:%d", animeID, limit)
	if h.cache != nil {
		if cached, ok := h.cache.Get(cacheKey); ok {
			metrics.SimilarCacheHits.Inc()
			respondJSON(w, http.StatusOK, &models.APIResponse{
				Status: "success",
				Data:   cached,
				Metadata: models.Metadata{
					Timestamp: time.Now(),
					Cached:    true,
				},
			})
			return
		}
		metrics.SimilarCacheMisses.Inc()
	}

	similar, err := h.engine.FindSimilarAnime(r.Context(), animeID, limit)
	if errors.Is(err, recommend.ErrAnimeNotFound) {
		respondError(w, http.StatusNotFound, codeAnimeNotFound, "Anime does not exist", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeDatabaseError, "Failed to find similar anime", err)
		return
	}

	data := map[string]interface{}{
		"similar": similar,
		"count":   len(similar),
	}
	if h.cache != nil {
		h.cache.Add(cacheKey, data)
	}

	respondSuccess(w, http.StatusOK, data, started)
}

// GetSimilarUsers serves the authenticated user's collaborative neighbors.
func (h *Handler) GetSimilarUsers(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, codeAuthenticationError, "Authentication required", nil)
		return
	}

	limit := getIntParam(r, "limit", h.engine.Config().SimilarUserLimit)

	similar, err := h.engine.FindSimilarUsers(r.Context(), userID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeDatabaseError, "Failed to find similar users", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"similar_users": similar,
		"count":         len(similar),
	}, started)
}

// GetStats serves per-algorithm aggregates over the authenticated user's
// stored recommendations, viewed and expired rows included.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, codeAuthenticationError, "Authentication required", nil)
		return
	}

	stats, err := h.stats.GetRecommendationStats(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeDatabaseError, "Failed to load recommendation stats", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"stats": stats,
		"count": len(stats),
	}, started)
}

// Healthz reports liveness of the service and its storage.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if err := h.health.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, codeDatabaseError, "Storage unavailable", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
	}, started)
}
