// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/kwatanabe42/animori/internal/logging"
	"github.com/kwatanabe42/animori/internal/models"
)

// InsertRecommendations stores a generated batch in one transaction.
// IDs are assigned by the recommendation sequence.
func (db *DB) InsertRecommendations(ctx context.Context, recs []models.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	start := time.Now()
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		observeQuery(start, "insert", "recommendations", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			logging.Debug().Err(err).Msg("Transaction rollback failed")
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO recommendations
		(user_id, anime_id, score, algorithm, reason, metadata, is_viewed, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, FALSE, ?, ?)`)
	if err != nil {
		observeQuery(start, "insert", "recommendations", err)
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer closeQuietly(stmt)

	for _, rec := range recs {
		metadata, err := json.Marshal(rec.Metadata)
		if err != nil {
			observeQuery(start, "insert", "recommendations", err)
			return fmt.Errorf("failed to encode metadata for anime %d: %w", rec.AnimeID, err)
		}
		_, err = stmt.ExecContext(ctx,
			rec.UserID,
			rec.AnimeID,
			rec.Score,
			rec.Algorithm.String(),
			rec.Reason.String(),
			string(metadata),
			rec.CreatedAt,
			rec.ExpiresAt,
		)
		if err != nil {
			observeQuery(start, "insert", "recommendations", err)
			return fmt.Errorf("failed to insert recommendation for anime %d: %w", rec.AnimeID, err)
		}
	}

	err = tx.Commit()
	observeQuery(start, "insert", "recommendations", err)
	if err != nil {
		return fmt.Errorf("failed to commit recommendations: %w", err)
	}
	return nil
}

// GetActiveRecommendations returns a user's unviewed, unexpired rows ordered
// by score descending, with the catalog entry joined for display. A non-nil
// algorithm restricts the result to that generation strategy.
func (db *DB) GetActiveRecommendations(ctx context.Context, userID int64, limit int, algorithm *models.Algorithm) ([]models.Recommendation, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT
			r.id, r.user_id, r.anime_id, r.score, r.algorithm, r.reason, r.metadata,
			r.is_viewed, r.viewed_at, r.created_at, r.expires_at,
			a.id, a.title, a.genres, a.moods, a.rating, a.synopsis, a.image_url, a.created_at, a.updated_at
		FROM recommendations r
		JOIN anime a ON a.id = r.anime_id
		WHERE r.user_id = ? AND r.is_viewed = FALSE AND r.expires_at > ?`
	args := []any{userID, time.Now()}
	if algorithm != nil {
		query += ` AND r.algorithm = ?`
		args = append(args, algorithm.String())
	}
	query += ` ORDER BY r.score DESC, r.id ASC LIMIT ?`
	args = append(args, limit)

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		observeQuery(start, "select", "recommendations", err)
		return nil, fmt.Errorf("failed to query recommendations for user %d: %w", userID, err)
	}
	defer closeQuietly(rows)

	var recs []models.Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			observeQuery(start, "select", "recommendations", err)
			return nil, err
		}
		recs = append(recs, *rec)
	}
	err = rows.Err()
	observeQuery(start, "select", "recommendations", err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate recommendations: %w", err)
	}
	return recs, nil
}

// MarkRecommendationsViewed marks all unviewed rows for the user/anime pair
// as viewed. Returns the number of rows updated; zero means the pair had no
// unviewed rows, which callers treat as success (idempotent view tracking).
func (db *DB) MarkRecommendationsViewed(ctx context.Context, userID, animeID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	start := time.Now()
	query := `UPDATE recommendations SET is_viewed = TRUE, viewed_at = ?
		WHERE user_id = ? AND anime_id = ? AND is_viewed = FALSE`

	res, err := db.conn.ExecContext(ctx, query, time.Now(), userID, animeID)
	observeQuery(start, "update", "recommendations", err)
	if err != nil {
		return 0, fmt.Errorf("failed to mark recommendations viewed: %w", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return updated, nil
}

// ClearOldRecommendations deletes a user's viewed or expired rows.
func (db *DB) ClearOldRecommendations(ctx context.Context, userID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	start := time.Now()
	query := `DELETE FROM recommendations WHERE user_id = ? AND (is_viewed = TRUE OR expires_at <= ?)`

	res, err := db.conn.ExecContext(ctx, query, userID, time.Now())
	observeQuery(start, "delete", "recommendations", err)
	if err != nil {
		return 0, fmt.Errorf("failed to clear old recommendations: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return deleted, nil
}

// PurgeExpired deletes expired and viewed rows system-wide. DuckDB has no
// TTL index, so the maintenance sweeper calls this periodically.
func (db *DB) PurgeExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	start := time.Now()
	query := `DELETE FROM recommendations WHERE expires_at <= ? OR is_viewed = TRUE`

	res, err := db.conn.ExecContext(ctx, query, time.Now())
	observeQuery(start, "delete", "recommendations", err)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired recommendations: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return deleted, nil
}

// GetRecommendationStats aggregates a user's stored rows per algorithm.
// Viewed and expired rows are included so the numbers reflect everything
// generated, not just what is currently served.
func (db *DB) GetRecommendationStats(ctx context.Context, userID int64) ([]models.RecommendationStats, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	start := time.Now()
	query := `SELECT algorithm, COUNT(*), AVG(score),
			COUNT(*) FILTER (WHERE is_viewed)
		FROM recommendations WHERE user_id = ?
		GROUP BY algorithm ORDER BY algorithm`

	rows, err := db.conn.QueryContext(ctx, query, userID)
	if err != nil {
		observeQuery(start, "select", "recommendations", err)
		return nil, fmt.Errorf("failed to query recommendation stats: %w", err)
	}
	defer closeQuietly(rows)

	var stats []models.RecommendationStats
	for rows.Next() {
		var s models.RecommendationStats
		var algorithm string
		if err := rows.Scan(&algorithm, &s.Count, &s.AverageScore, &s.ViewedCount); err != nil {
			observeQuery(start, "select", "recommendations", err)
			return nil, fmt.Errorf("failed to scan recommendation stats: %w", err)
		}
		parsed, err := models.ParseAlgorithm(algorithm)
		if err != nil {
			logging.Warn().Int64("user_id", userID).Str("algorithm", algorithm).
				Msg("Unknown algorithm in storage, skipping stats row")
			continue
		}
		s.Algorithm = parsed
		stats = append(stats, s)
	}
	err = rows.Err()
	observeQuery(start, "select", "recommendations", err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate recommendation stats: %w", err)
	}
	return stats, nil
}

func scanRecommendation(rows *sql.Rows) (*models.Recommendation, error) {
	var rec models.Recommendation
	var anime models.Anime
	var algorithm, reason, metadata, genres, moods string
	var viewedAt sql.NullTime

	err := rows.Scan(
		&rec.ID, &rec.UserID, &rec.AnimeID, &rec.Score, &algorithm, &reason, &metadata,
		&rec.IsViewed, &viewedAt, &rec.CreatedAt, &rec.ExpiresAt,
		&anime.ID, &anime.Title, &genres, &moods, &anime.Rating, &anime.Synopsis,
		&anime.ImageURL, &anime.CreatedAt, &anime.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan recommendation: %w", err)
	}

	if rec.Algorithm, err = models.ParseAlgorithm(algorithm); err != nil {
		return nil, fmt.Errorf("stored recommendation %d invalid: %w", rec.ID, err)
	}
	if rec.Reason, err = models.ParseReason(reason); err != nil {
		return nil, fmt.Errorf("stored recommendation %d invalid: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(metadata), &rec.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata for recommendation %d: %w", rec.ID, err)
	}
	if viewedAt.Valid {
		t := viewedAt.Time
		rec.ViewedAt = &t
	}

	anime.Genres = splitAndTrim(genres)
	anime.Moods = splitAndTrim(moods)
	rec.Anime = &anime
	return &rec, nil
}
