// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

// Package api exposes the recommendation engine over HTTP using chi.
// All responses use the APIResponse envelope from the models package.
package api

import (
	"context"
	"fmt"

	"github.com/kwatanabe42/animori/internal/cache"
	"github.com/kwatanabe42/animori/internal/models"
	"github.com/kwatanabe42/animori/internal/recommend"
)

// StatsProvider serves per-user recommendation aggregates.
type StatsProvider interface {
	GetRecommendationStats(ctx context.Context, userID int64) ([]models.RecommendationStats, error)
}

// HealthChecker reports storage liveness.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Handler holds the dependencies of all HTTP handlers.
type Handler struct {
	engine *recommend.Engine
	stats  StatsProvider
	health HealthChecker
	cache  *cache.LRU
}

// NewHandler creates a Handler. The cache may be nil to disable caching of
// similar-anime responses.
func NewHandler(engine *recommend.Engine, stats StatsProvider, health HealthChecker, lru *cache.LRU) (*Handler, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if stats == nil {
		return nil, fmt.Errorf("stats provider is required")
	}
	if health == nil {
		return nil, fmt.Errorf("health checker is required")
	}
	return &Handler{
		engine: engine,
		stats:  stats,
		health: health,
		cache:  lru,
	}, nil
}
