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
	"time"

	"github.com/kwatanabe42/animori/internal/logging"
	"github.com/kwatanabe42/animori/internal/models"
	"github.com/kwatanabe42/animori/internal/recommend"
)

// GetUser returns a user by ID.
func (db *DB) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	start := time.Now()
	query := `SELECT id, username, email, created_at FROM users WHERE id = ?`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		observeQuery(start, "select", "users", err)
		return nil, err
	}

	var user models.User
	err = stmt.QueryRowContext(ctx, userID).Scan(&user.ID, &user.Username, &user.Email, &user.CreatedAt)
	observeQuery(start, "select", "users", err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, recommend.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return &user, nil
}

// InsertUser stores a user, assigning its ID from the sequence.
func (db *DB) InsertUser(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	start := time.Now()
	query := `INSERT INTO users (username, email) VALUES (?, ?) RETURNING id, created_at`

	err := db.conn.QueryRowContext(ctx, query, user.Username, user.Email).Scan(&user.ID, &user.CreatedAt)
	observeQuery(start, "insert", "users", err)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetWatchlist returns a user's watchlist in insertion order.
func (db *DB) GetWatchlist(ctx context.Context, userID int64) ([]models.WatchlistEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	start := time.Now()
	query := `SELECT anime_id, status, rating, review, added_at, completed_at
		FROM watchlist WHERE user_id = ? ORDER BY added_at ASC, anime_id ASC`

	rows, err := db.conn.QueryContext(ctx, query, userID)
	if err != nil {
		observeQuery(start, "select", "watchlist", err)
		return nil, fmt.Errorf("failed to query watchlist for user %d: %w", userID, err)
	}
	defer closeQuietly(rows)

	var entries []models.WatchlistEntry
	for rows.Next() {
		var entry models.WatchlistEntry
		var status string
		var rating sql.NullInt32
		var completedAt sql.NullTime
		if err := rows.Scan(&entry.AnimeID, &status, &rating, &entry.Review, &entry.AddedAt, &completedAt); err != nil {
			observeQuery(start, "select", "watchlist", err)
			return nil, fmt.Errorf("failed to scan watchlist entry: %w", err)
		}
		parsed, err := models.ParseWatchStatus(status)
		if err != nil {
			logging.Warn().Int64("user_id", userID).Int64("anime_id", entry.AnimeID).Str("status", status).
				Msg("Unknown watch status in storage, defaulting to plan_to_watch")
		}
		entry.Status = parsed
		if rating.Valid {
			entry.Rating = int(rating.Int32)
		}
		if completedAt.Valid {
			t := completedAt.Time
			entry.CompletedAt = &t
		}
		entries = append(entries, entry)
	}
	err = rows.Err()
	observeQuery(start, "select", "watchlist", err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate watchlist: %w", err)
	}
	return entries, nil
}

// UpsertWatchlistEntry inserts or updates one watchlist row for a user.
func (db *DB) UpsertWatchlistEntry(ctx context.Context, userID int64, entry models.WatchlistEntry) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rating any
	if entry.Rated() {
		rating = entry.Rating
	}
	var completedAt any
	if entry.CompletedAt != nil {
		completedAt = *entry.CompletedAt
	}

	start := time.Now()
	query := `INSERT INTO watchlist (user_id, anime_id, status, rating, review, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, anime_id) DO UPDATE SET
			status = excluded.status,
			rating = excluded.rating,
			review = excluded.review,
			completed_at = excluded.completed_at`

	_, err := db.conn.ExecContext(ctx, query, userID, entry.AnimeID, entry.Status.String(), rating, entry.Review, completedAt)
	observeQuery(start, "upsert", "watchlist", err)
	if err != nil {
		return fmt.Errorf("failed to upsert watchlist entry: %w", err)
	}
	return nil
}

// GetRaterWatchlists returns the rating vectors of every user other than
// excludeUserID who has rated at least one anime. Used to find collaborative
// neighbors.
func (db *DB) GetRaterWatchlists(ctx context.Context, excludeUserID int64) ([]recommend.UserRatings, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	start := time.Now()
	query := `SELECT user_id, anime_id, rating FROM watchlist
		WHERE rating IS NOT NULL AND rating > 0 AND user_id <> ?
		ORDER BY user_id ASC, anime_id ASC`

	rows, err := db.conn.QueryContext(ctx, query, excludeUserID)
	if err != nil {
		observeQuery(start, "select", "watchlist", err)
		return nil, fmt.Errorf("failed to query rater watchlists: %w", err)
	}
	defer closeQuietly(rows)

	var raters []recommend.UserRatings
	for rows.Next() {
		var userID, animeID int64
		var rating int
		if err := rows.Scan(&userID, &animeID, &rating); err != nil {
			observeQuery(start, "select", "watchlist", err)
			return nil, fmt.Errorf("failed to scan rater watchlist row: %w", err)
		}
		// Rows arrive grouped by user, so a new userID starts a new vector.
		if len(raters) == 0 || raters[len(raters)-1].UserID != userID {
			raters = append(raters, recommend.UserRatings{
				UserID:  userID,
				Ratings: make(map[int64]int),
			})
		}
		raters[len(raters)-1].Ratings[animeID] = rating
	}
	err = rows.Err()
	observeQuery(start, "select", "watchlist", err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate rater watchlists: %w", err)
	}
	return raters, nil
}
