// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ExpiringCache is the slice of the cache the cleanup service needs.
type ExpiringCache interface {
	CleanupExpired() int
}

// CacheCleanupService periodically evicts expired entries from the
// similar-anime response cache. Expired entries are also dropped lazily on
// access; this service just keeps memory bounded for keys never read again.
type CacheCleanupService struct {
	cache    ExpiringCache
	interval time.Duration
	logger   zerolog.Logger
	name     string
}

// NewCacheCleanupService creates a cache cleanup service. Non-positive
// intervals fall back to five minutes.
func NewCacheCleanupService(cache ExpiringCache, interval time.Duration, logger zerolog.Logger) *CacheCleanupService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CacheCleanupService{
		cache:    cache,
		interval: interval,
		logger:   logger.With().Str("service", "cache-cleanup").Logger(),
		name:     "cache-cleanup-service",
	}
}

// Serve implements the suture.Service interface.
func (s *CacheCleanupService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			if removed := s.cache.CleanupExpired(); removed > 0 {
				s.logger.Debug().Int("removed", removed).Msg("cache cleanup complete")
			}
		}
	}
}

// String returns the service name for logging.
func (s *CacheCleanupService) String() string {
	return s.name
}
