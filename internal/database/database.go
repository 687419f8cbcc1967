// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

// Package database wraps the DuckDB connection and provides all data access
// methods. It implements both data-source interfaces the recommendation
// engine depends on.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/kwatanabe42/animori/internal/config"
	"github.com/kwatanabe42/animori/internal/logging"
	"github.com/kwatanabe42/animori/internal/metrics"
	"github.com/kwatanabe42/animori/internal/recommend"
)

// queryTimeout bounds individual queries, writeTimeout bounds batch writes.
const (
	queryTimeout = 10 * time.Second
	writeTimeout = 30 * time.Second
)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig

	// Prepared statement caching
	stmtCache   map[string]*sql.Stmt
	stmtCacheMu sync.RWMutex
}

var (
	_ recommend.DataProvider = (*DB)(nil)
	_ recommend.Store        = (*DB)(nil)
)

// New creates a new database connection and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure the parent directory exists so DuckDB can create the file.
	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	// Disable auto-install/auto-load to prevent hangs in restricted network
	// environments. No extensions are needed for the catalog schema.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{
		conn:      conn,
		cfg:       cfg,
		stmtCache: make(map[string]*sql.Stmt),
	}

	// DuckDB is embedded; a small pool avoids contention on the single file.
	conn.SetMaxOpenConns(numThreads)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(0)

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Int("threads", numThreads).
		Str("max_memory", cfg.MaxMemory).
		Msg("Database initialized")

	return db, nil
}

// Conn exposes the underlying connection for advanced callers and tests.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Close closes all cached prepared statements and the connection.
// A CHECKPOINT is attempted first to flush the WAL into the database file.
func (db *DB) Close() error {
	db.stmtCacheMu.Lock()
	for _, stmt := range db.stmtCache {
		if stmt != nil {
			closeQuietly(stmt)
		}
	}
	db.stmtCache = make(map[string]*sql.Stmt)
	db.stmtCacheMu.Unlock()

	if db.conn == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
	}

	return db.conn.Close()
}

// Ping checks whether the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// initialize creates tables, sequences, and indexes.
func (db *DB) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	statements := []string{
		`CREATE SEQUENCE IF NOT EXISTS anime_id_seq START 1`,
		`CREATE SEQUENCE IF NOT EXISTS user_id_seq START 1`,
		`CREATE SEQUENCE IF NOT EXISTS recommendation_id_seq START 1`,

		`CREATE TABLE IF NOT EXISTS anime (
			id BIGINT PRIMARY KEY DEFAULT nextval('anime_id_seq'),
			title VARCHAR NOT NULL,
			genres VARCHAR NOT NULL DEFAULT '',
			moods VARCHAR NOT NULL DEFAULT '',
			rating DOUBLE NOT NULL DEFAULT 0,
			synopsis VARCHAR NOT NULL DEFAULT '',
			image_url VARCHAR NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY DEFAULT nextval('user_id_seq'),
			username VARCHAR NOT NULL UNIQUE,
			email VARCHAR NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS watchlist (
			user_id BIGINT NOT NULL,
			anime_id BIGINT NOT NULL,
			status VARCHAR NOT NULL DEFAULT 'plan_to_watch',
			rating INTEGER,
			review VARCHAR NOT NULL DEFAULT '',
			added_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			completed_at TIMESTAMP,
			PRIMARY KEY (user_id, anime_id)
		)`,

		`CREATE TABLE IF NOT EXISTS recommendations (
			id BIGINT PRIMARY KEY DEFAULT nextval('recommendation_id_seq'),
			user_id BIGINT NOT NULL,
			anime_id BIGINT NOT NULL,
			score DOUBLE NOT NULL,
			algorithm VARCHAR NOT NULL,
			reason VARCHAR NOT NULL,
			metadata VARCHAR NOT NULL DEFAULT '{}',
			is_viewed BOOLEAN NOT NULL DEFAULT FALSE,
			viewed_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			expires_at TIMESTAMP NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_watchlist_user ON watchlist (user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_watchlist_rated ON watchlist (rating)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_user ON recommendations (user_id, is_viewed, expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_expiry ON recommendations (expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_anime_rating ON anime (rating)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}

	return nil
}

// getStmt returns a cached prepared statement, preparing it on first use.
func (db *DB) getStmt(ctx context.Context, query string) (*sql.Stmt, error) {
	db.stmtCacheMu.RLock()
	stmt, ok := db.stmtCache[query]
	db.stmtCacheMu.RUnlock()
	if ok {
		return stmt, nil
	}

	db.stmtCacheMu.Lock()
	defer db.stmtCacheMu.Unlock()
	if stmt, ok := db.stmtCache[query]; ok {
		return stmt, nil
	}

	stmt, err := db.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	db.stmtCache[query] = stmt
	return stmt, nil
}

// observeQuery records query duration and errors for Prometheus.
func observeQuery(start time.Time, operation, table string, err error) {
	metrics.DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// splitAndTrim splits a comma-joined tag column into a clean slice.
// Empty columns yield nil.
func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// joinTags stores a tag slice as a comma-joined column value.
func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func closeQuietly(c interface{ Close() error }) {
	if err := c.Close(); err != nil {
		logging.Debug().Err(err).Msg("Close failed")
	}
}
