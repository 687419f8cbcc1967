// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

package recommend

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kwatanabe42/animori/internal/models"
)

// mockProvider is an in-memory DataProvider for engine tests.
type mockProvider struct {
	mu         sync.Mutex
	users      map[int64]*models.User
	watchlists map[int64][]models.WatchlistEntry
	anime      map[int64]*models.Anime

	// userGate, when non-nil, blocks GetUser until closed.
	userGate chan struct{}

	// ratersGate, when non-nil, blocks GetRaterWatchlists until closed or
	// the call's context ends.
	ratersGate chan struct{}

	// Injected failures.
	ratersErr      error
	sharingTagsErr error
	highRatedErr   error

	getUserCalls int
}

var _ DataProvider = (*mockProvider)(nil)

func newMockProvider() *mockProvider {
	return &mockProvider{
		users:      make(map[int64]*models.User),
		watchlists: make(map[int64][]models.WatchlistEntry),
		anime:      make(map[int64]*models.Anime),
	}
}

func (m *mockProvider) addUser(id int64, entries ...models.WatchlistEntry) {
	m.users[id] = &models.User{ID: id}
	m.watchlists[id] = entries
}

func (m *mockProvider) addAnime(id int64, genres, moods []string, rating float64) {
	m.anime[id] = &models.Anime{
		ID:     id,
		Genres: models.NormalizeTags(genres),
		Moods:  models.NormalizeTags(moods),
		Rating: rating,
	}
}

func (m *mockProvider) GetUser(_ context.Context, userID int64) (*models.User, error) {
	if m.userGate != nil {
		<-m.userGate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getUserCalls++
	user, ok := m.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (m *mockProvider) GetWatchlist(_ context.Context, userID int64) ([]models.WatchlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watchlists[userID], nil
}

func (m *mockProvider) GetRaterWatchlists(ctx context.Context, excludeUserID int64) ([]UserRatings, error) {
	if m.ratersGate != nil {
		select {
		case <-m.ratersGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ratersErr != nil {
		return nil, m.ratersErr
	}

	var raters []UserRatings
	for userID, entries := range m.watchlists {
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
			raters = append(raters, UserRatings{UserID: userID, Ratings: ratings})
		}
	}
	sort.Slice(raters, func(i, j int) bool { return raters[i].UserID < raters[j].UserID })
	return raters, nil
}

func (m *mockProvider) GetAnime(_ context.Context, animeID int64) (*models.Anime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	anime, ok := m.anime[animeID]
	if !ok {
		return nil, ErrAnimeNotFound
	}
	return anime, nil
}

func (m *mockProvider) GetAnimeSharingTags(_ context.Context, ref *models.Anime) ([]models.Anime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sharingTagsErr != nil {
		return nil, m.sharingTagsErr
	}

	var result []models.Anime
	for _, candidate := range m.anime {
		if candidate.ID == ref.ID {
			continue
		}
		if countShared(ref.Genres, candidate.Genres) > 0 || countShared(ref.Moods, candidate.Moods) > 0 {
			result = append(result, *candidate)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockProvider) GetHighRatedAnime(_ context.Context, excludeIDs []int64, minRating float64, limit int) ([]models.Anime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.highRatedErr != nil {
		return nil, m.highRatedErr
	}

	excluded := make(map[int64]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	var result []models.Anime
	for _, anime := range m.anime {
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

// mockStore is an in-memory Store that records operation order.
type mockStore struct {
	mu     sync.Mutex
	rows   []models.Recommendation
	nextID int64
	ops    []string

	insertCalls int
}

var _ Store = (*mockStore)(nil)

func newMockStore() *mockStore {
	return &mockStore{nextID: 1}
}

func (s *mockStore) InsertRecommendations(_ context.Context, recs []models.Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, "insert")
	s.insertCalls++
	for _, rec := range recs {
		rec.ID = s.nextID
		s.nextID++
		s.rows = append(s.rows, rec)
	}
	return nil
}

func (s *mockStore) GetActiveRecommendations(_ context.Context, userID int64, limit int, algorithm *models.Algorithm) ([]models.Recommendation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var active []models.Recommendation
	for _, rec := range s.rows {
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

func (s *mockStore) MarkRecommendationsViewed(_ context.Context, userID, animeID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var updated int64
	for i := range s.rows {
		rec := &s.rows[i]
		if rec.UserID == userID && rec.AnimeID == animeID && !rec.IsViewed {
			rec.IsViewed = true
			viewedAt := now
			rec.ViewedAt = &viewedAt
			updated++
		}
	}
	return updated, nil
}

func (s *mockStore) ClearOldRecommendations(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, "clear")

	now := time.Now()
	var kept []models.Recommendation
	var deleted int64
	for _, rec := range s.rows {
		if rec.UserID == userID && (rec.IsViewed || !rec.ExpiresAt.After(now)) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	s.rows = kept
	return deleted, nil
}

func (s *mockStore) opOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ops...)
}

func (s *mockStore) rowsForUser(userID int64) []models.Recommendation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Recommendation
	for _, rec := range s.rows {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out
}
