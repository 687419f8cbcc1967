// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

// Package metrics exposes Prometheus instrumentation for the AniMori backend:
// recommendation generation, store query performance, API traffic, the expiry
// sweeper, and the similar-anime response cache.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recommendation Generation Metrics
	RecommendationsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_generated_total",
			Help: "Total number of recommendations generated, by phase",
		},
		[]string{"phase"}, // "collaborative", "content", "fallback"
	)

	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_generation_duration_seconds",
			Help:    "Duration of full recommendation generation runs in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	GenerationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_generation_errors_total",
			Help: "Total number of failed generation runs",
		},
		[]string{"error_type"}, // "user_not_found", "provider", "store"
	)

	RegenerationSharedFlights = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_regeneration_shared_total",
			Help: "Total read-through regenerations coalesced onto an in-flight run",
		},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Expiry Sweeper Metrics
	SweepDeletedRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_sweep_deleted_total",
			Help: "Total expired or viewed recommendation rows removed by the sweeper",
		},
	)

	SweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_sweep_runs_total",
			Help: "Total sweeper runs, by outcome",
		},
		[]string{"outcome"}, // "ok", "error"
	)

	// Similar-Anime Cache Metrics
	SimilarCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "similar_anime_cache_hits_total",
			Help: "Total similar-anime response cache hits",
		},
	)

	SimilarCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "similar_anime_cache_misses_total",
			Help: "Total similar-anime response cache misses",
		},
	)
)
