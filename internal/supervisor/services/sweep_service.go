// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

// Package services provides suture service wrappers for application
// components.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kwatanabe42/animori/internal/metrics"
)

// SweepStore is the slice of the storage layer the sweeper needs.
type SweepStore interface {
	// PurgeExpired deletes expired and viewed recommendation rows
	// system-wide, returning how many were removed.
	PurgeExpired(ctx context.Context) (int64, error)
}

// SweepService periodically purges expired and viewed recommendations.
// The storage engine has no TTL mechanism, so without the sweep the
// recommendations table grows without bound.
type SweepService struct {
	store    SweepStore
	interval time.Duration
	logger   zerolog.Logger
	name     string
}

// NewSweepService creates a sweep service. Non-positive intervals fall back
// to one hour.
func NewSweepService(store SweepStore, interval time.Duration, logger zerolog.Logger) *SweepService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SweepService{
		store:    store,
		interval: interval,
		logger:   logger.With().Str("service", "sweep").Logger(),
		name:     "sweep-service",
	}
}

// Serve implements the suture.Service interface. One sweep runs immediately
// on startup, then on every tick.
func (s *SweepService) Serve(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Msg("sweep service starting")

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sweep service shutting down")
			return ctx.Err()

		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep performs one purge cycle. Failures are logged and retried on the
// next tick rather than crashing the service.
func (s *SweepService) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	start := time.Now()
	deleted, err := s.store.PurgeExpired(sweepCtx)
	if err != nil {
		metrics.SweepRuns.WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Msg("sweep failed")
		return
	}

	metrics.SweepRuns.WithLabelValues("ok").Inc()
	metrics.SweepDeletedRows.Add(float64(deleted))

	s.logger.Info().
		Int64("deleted", deleted).
		Dur("duration", time.Since(start)).
		Msg("sweep complete")
}

// String returns the service name for logging.
func (s *SweepService) String() string {
	return s.name
}
