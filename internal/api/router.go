// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kwatanabe42/animori/internal/config"
	"github.com/kwatanabe42/animori/internal/logging"
	"github.com/kwatanabe42/animori/internal/metrics"
)

// Router wires handlers, middleware, and configuration into an http.Handler.
type Router struct {
	handler *Handler
	auth    *Authenticator
	cfg     *config.SecurityConfig
}

// NewRouter creates a Router.
func NewRouter(handler *Handler, auth *Authenticator, cfg *config.SecurityConfig) *Router {
	return &Router{
		handler: handler,
		auth:    auth,
		cfg:     cfg,
	}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: router.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-User-ID"},
		MaxAge:         86400,
	}))

	// ========================
	// Health and Observability
	// ========================
	r.Get("/api/v1/healthz", router.handler.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// ========================
	// Recommendation Endpoints
	// ========================
	r.Route("/api/v1/recommendations", func(r chi.Router) {
		r.Use(router.rateLimit())

		// Similar-anime lookups are public, everything else is user-scoped.
		r.With(prometheusMetrics("/api/v1/recommendations/similar")).
			Get("/similar/{animeID}", router.handler.GetSimilarAnime)

		r.Group(func(r chi.Router) {
			r.Use(prometheusMetrics("/api/v1/recommendations"))
			r.Use(router.auth.Middleware)

			r.Get("/", router.handler.GetRecommendations)
			r.Post("/generate", router.handler.GenerateRecommendations)
			r.Post("/{animeID}/view", router.handler.MarkViewed)
			r.Get("/similar-users", router.handler.GetSimilarUsers)
			r.Get("/stats", router.handler.GetStats)
		})
	})

	return r
}

// rateLimit returns an IP-keyed rate limiter, or a no-op when disabled.
func (router *Router) rateLimit() func(http.Handler) http.Handler {
	if router.cfg.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.Limit(
		router.cfg.RateLimitReqs,
		router.cfg.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)
}

// requestID assigns each request a UUID, echoed in the X-Request-ID header
// and attached to the request-scoped logger.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		logger := logging.With().Str("request_id", id).Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
	})
}

// prometheusMetrics records request counts and latency for an endpoint group.
func prometheusMetrics(endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			metrics.APIRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(ww.Status())).Inc()
			metrics.APIRequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		})
	}
}
