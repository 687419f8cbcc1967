// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kwatanabe42/animori/internal/models"
	"github.com/kwatanabe42/animori/internal/recommend"
)

const animeColumns = `id, title, genres, moods, rating, synopsis, image_url, created_at, updated_at`

// GetAnime returns a single catalog entry by ID.
func (db *DB) GetAnime(ctx context.Context, animeID int64) (*models.Anime, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	start := time.Now()
	query := `SELECT ` + animeColumns + ` FROM anime WHERE id = ?`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		observeQuery(start, "select", "anime", err)
		return nil, err
	}

	anime, err := scanAnime(stmt.QueryRowContext(ctx, animeID))
	observeQuery(start, "select", "anime", err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, recommend.ErrAnimeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get anime %d: %w", animeID, err)
	}
	return anime, nil
}

// GetAnimeSharingTags returns catalog entries that share at least one genre
// or mood with the reference anime. The reference itself is excluded. An
// untagged reference has no candidates.
func (db *DB) GetAnimeSharingTags(ctx context.Context, ref *models.Anime) ([]models.Anime, error) {
	tags := append(append([]string(nil), ref.Genres...), ref.Moods...)
	if len(tags) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// Tags are stored comma-joined, so the SQL match is a coarse substring
	// prefilter; exact tag membership is verified after splitting.
	conds := make([]string, 0, len(tags)*2)
	args := make([]any, 0, len(tags)*2+1)
	args = append(args, ref.ID)
	for _, tag := range tags {
		conds = append(conds, "genres LIKE ?", "moods LIKE ?")
		pattern := "%" + tag + "%"
		args = append(args, pattern, pattern)
	}

	start := time.Now()
	query := `SELECT ` + animeColumns + ` FROM anime WHERE id <> ? AND (` + strings.Join(conds, " OR ") + `) ORDER BY id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		observeQuery(start, "select", "anime", err)
		return nil, fmt.Errorf("failed to query related anime: %w", err)
	}
	defer closeQuietly(rows)

	var result []models.Anime
	for rows.Next() {
		anime, err := scanAnime(rows)
		if err != nil {
			observeQuery(start, "select", "anime", err)
			return nil, fmt.Errorf("failed to scan related anime: %w", err)
		}
		if sharesAnyTag(ref.Genres, anime.Genres) || sharesAnyTag(ref.Moods, anime.Moods) {
			result = append(result, *anime)
		}
	}
	err = rows.Err()
	observeQuery(start, "select", "anime", err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate related anime: %w", err)
	}
	return result, nil
}

// GetHighRatedAnime returns catalog entries rated at or above minRating,
// excluding the given IDs, ordered by catalog rating descending.
func (db *DB) GetHighRatedAnime(ctx context.Context, excludeIDs []int64, minRating float64, limit int) ([]models.Anime, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	args := make([]any, 0, len(excludeIDs)+2)
	args = append(args, minRating)

	query := `SELECT ` + animeColumns + ` FROM anime WHERE rating >= ?`
	if len(excludeIDs) > 0 {
		placeholders := make([]string, len(excludeIDs))
		for i, id := range excludeIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		query += ` AND id NOT IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY rating DESC, id ASC LIMIT ?`
	args = append(args, limit)

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		observeQuery(start, "select", "anime", err)
		return nil, fmt.Errorf("failed to query high rated anime: %w", err)
	}
	defer closeQuietly(rows)

	var result []models.Anime
	for rows.Next() {
		anime, err := scanAnime(rows)
		if err != nil {
			observeQuery(start, "select", "anime", err)
			return nil, fmt.Errorf("failed to scan high rated anime: %w", err)
		}
		result = append(result, *anime)
	}
	err = rows.Err()
	observeQuery(start, "select", "anime", err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate high rated anime: %w", err)
	}
	return result, nil
}

// InsertAnime stores a catalog entry, assigning its ID from the sequence.
// Tags are case-normalized before storage.
func (db *DB) InsertAnime(ctx context.Context, anime *models.Anime) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	start := time.Now()
	query := `INSERT INTO anime (title, genres, moods, rating, synopsis, image_url)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id, created_at, updated_at`

	err := db.conn.QueryRowContext(ctx, query,
		anime.Title,
		joinTags(models.NormalizeTags(anime.Genres)),
		joinTags(models.NormalizeTags(anime.Moods)),
		anime.Rating,
		anime.Synopsis,
		anime.ImageURL,
	).Scan(&anime.ID, &anime.CreatedAt, &anime.UpdatedAt)
	observeQuery(start, "insert", "anime", err)
	if err != nil {
		return fmt.Errorf("failed to insert anime: %w", err)
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnime(row rowScanner) (*models.Anime, error) {
	var anime models.Anime
	var genres, moods string
	err := row.Scan(
		&anime.ID,
		&anime.Title,
		&genres,
		&moods,
		&anime.Rating,
		&anime.Synopsis,
		&anime.ImageURL,
		&anime.CreatedAt,
		&anime.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	anime.Genres = splitAndTrim(genres)
	anime.Moods = splitAndTrim(moods)
	return &anime, nil
}

// sharesAnyTag reports whether the two tag slices have a common element.
func sharesAnyTag(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, tag := range a {
		set[tag] = struct{}{}
	}
	for _, tag := range b {
		if _, ok := set[tag]; ok {
			return true
		}
	}
	return false
}
