// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

package api

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/kwatanabe42/animori/internal/models"
	"github.com/kwatanabe42/animori/internal/recommend"
)

// memoryBackend is an in-memory DataProvider, Store, StatsProvider, and
// HealthChecker for handler tests.
type memoryBackend struct {
	mu         sync.Mutex
	users      map[int64]*models.User
	watchlists map[int64][]models.WatchlistEntry
	anime      map[int64]*models.Anime
	rows       []models.Recommendation
	nextID     int64

	pingErr error
}

var (
	_ recommend.DataProvider = (*memoryBackend)(nil)
	_ recommend.Store        = (*memoryBackend)(nil)
	_ StatsProvider          = (*memoryBackend)(nil)
	_ HealthChecker          = (*memoryBackend)(nil)
)

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		users:      make(map[int64]*models.User),
		watchlists: make(map[int64][]models.WatchlistEntry),
		anime:      make(map[int64]*models.Anime),
		nextID:     1,
	}
}

func (b *memoryBackend) addUser(id int64, entries ...models.WatchlistEntry) {
	b.users[id] = &models.User{ID: id}
	b.watchlists[id] = entries
}

func (b *memoryBackend) addAnime(id int64, genres, moods []string, rating float64) {
	b.anime[id] = &models.Anime{
		ID:     id,
		Genres: models.NormalizeTags(genres),
		Moods:  models.NormalizeTags(moods),
		Rating: rating,
	}
}

func (b *memoryBackend) GetUser(_ context.Context, userID int64) (*models.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	user, ok := b.users[userID]
	if !ok {
		return nil, recommend.ErrUserNotFound
	}
	return user, nil
}

func (b *memoryBackend) GetWatchlist(_ context.Context, userID int64) ([]models.WatchlistEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.watchlists[userID], nil
}

func (b *memoryBackend) GetRaterWatchlists(_ context.Context, excludeUserID int64) ([]recommend.UserRatings, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var raters []recommend.UserRatings
	for userID, entries := range b.watchlists {
		if userID == excludeUserID {
			continue
		}
		ratings := make(map[int64]int)
		for _, entry := range entries {
			if entry.Rated() {
				ratings[entry.AnimeID] = entry.Rating
			}
		}
		if len(ratings) > 0 {
			raters = append(raters, recommend.UserRatings{UserID: userID, Ratings: ratings})
		}
	}
	sort.Slice(raters, func(i, j int) bool { return raters[i].UserID < raters[j].UserID })
	return raters, nil
}

func (b *memoryBackend) GetAnime(_ context.Context, animeID int64) (*models.Anime, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	anime, ok := b.anime[animeID]
	if !ok {
		return nil, recommend.ErrAnimeNotFound
	}
	return anime, nil
}

func (b *memoryBackend) GetAnimeSharingTags(_ context.Context, ref *models.Anime) ([]models.Anime, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var result []models.Anime
	for _, candidate := range b.anime {
		if candidate.ID == ref.ID {
			continue
		}
		if hasCommonTag(ref.Genres, candidate.Genres) || hasCommonTag(ref.Moods, candidate.Moods) {
			result = append(result, *candidate)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (b *memoryBackend) GetHighRatedAnime(_ context.Context, excludeIDs []int64, minRating float64, limit int) ([]models.Anime, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	excluded := make(map[int64]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	var result []models.Anime
	for _, anime := range b.anime {
		if anime.Rating < minRating {
			continue
		}
		if _, ok := excluded[anime.ID]; ok {
			continue
		}
		result = append(result, *anime)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Rating != result[j].Rating {
			return result[i].Rating > result[j].Rating
		}
		return result[i].ID < result[j].ID
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (b *memoryBackend) InsertRecommendations(_ context.Context, recs []models.Recommendation) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, rec := range recs {
		rec.ID = b.nextID
		b.nextID++
		b.rows = append(b.rows, rec)
	}
	return nil
}

func (b *memoryBackend) GetActiveRecommendations(_ context.Context, userID int64, limit int, algorithm *models.Algorithm) ([]models.Recommendation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	var active []models.Recommendation
	for _, rec := range b.rows {
		if rec.UserID != userID || !rec.Active(now) {
			continue
		}
		if algorithm != nil && rec.Algorithm != *algorithm {
			continue
		}
		active = append(active, rec)
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].Score != active[j].Score {
			return active[i].Score > active[j].Score
		}
		return active[i].ID < active[j].ID
	})
	if len(active) > limit {
		active = active[:limit]
	}
	return active, nil
}

func (b *memoryBackend) MarkRecommendationsViewed(_ context.Context, userID, animeID int64) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	var updated int64
	for i := range b.rows {
		rec := &b.rows[i]
		if rec.UserID == userID && rec.AnimeID == animeID && !rec.IsViewed {
			rec.IsViewed = true
			viewedAt := now
			rec.ViewedAt = &viewedAt
			updated++
		}
	}
	return updated, nil
}

func (b *memoryBackend) ClearOldRecommendations(_ context.Context, userID int64) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	var kept []models.Recommendation
	var deleted int64
	for _, rec := range b.rows {
		if rec.UserID == userID && (rec.IsViewed || !rec.ExpiresAt.After(now)) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	b.rows = kept
	return deleted, nil
}

func (b *memoryBackend) GetRecommendationStats(_ context.Context, userID int64) ([]models.RecommendationStats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	byAlgorithm := make(map[models.Algorithm]*models.RecommendationStats)
	for _, rec := range b.rows {
		if rec.UserID != userID {
			continue
		}
		s, ok := byAlgorithm[rec.Algorithm]
		if !ok {
			s = &models.RecommendationStats{Algorithm: rec.Algorithm}
			byAlgorithm[rec.Algorithm] = s
		}
		s.Count++
		s.AverageScore += rec.Score
		if rec.IsViewed {
			s.ViewedCount++
		}
	}

	var stats []models.RecommendationStats
	for _, s := range byAlgorithm {
		s.AverageScore /= float64(s.Count)
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Algorithm < stats[j].Algorithm })
	return stats, nil
}

func (b *memoryBackend) Ping(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pingErr
}

func (b *memoryBackend) setPingError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pingErr = err
}

func hasCommonTag(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

var errPingFailed = errors.New("storage unreachable")
