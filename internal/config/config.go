// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

// Package config holds all application configuration, loaded from built-in
// defaults, an optional YAML config file, and environment variables, in that
// order of precedence (env wins).
//
// Config is immutable after Load and safe for concurrent reads.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kwatanabe42/animori/internal/recommend"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig     `koanf:"server"`
	Database  DatabaseConfig   `koanf:"database"`
	Security  SecurityConfig   `koanf:"security"`
	Logging   LoggingConfig    `koanf:"logging"`
	Recommend recommend.Config `koanf:"recommend"`
	Sweep     SweepConfig      `koanf:"sweep"`
	Cache     CacheConfig      `koanf:"cache"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - HTTP_HOST: Listen address (default: 0.0.0.0)
//   - HTTP_PORT: Listen port (default: 8560)
//   - HTTP_TIMEOUT: Read/write timeout (default: 30s)
type ServerConfig struct {
	Host    string        `koanf:"host" validate:"required"`
	Port    int           `koanf:"port" validate:"gt=0,lte=65535"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// DatabaseConfig holds DuckDB settings.
//
// Environment Variables:
//   - DUCKDB_PATH: Database file path (default: /data/animori.duckdb)
//   - DUCKDB_MAX_MEMORY: Memory limit passed to DuckDB (default: 1GB)
//   - DUCKDB_THREADS: Worker threads, 0 means runtime.NumCPU() (default: 0)
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads" validate:"gte=0"`
}

// SecurityConfig holds authentication and rate limiting settings.
//
// AuthMode "jwt" requires JWTSecret and protects the per-user endpoints;
// "none" disables authentication and trusts the X-User-ID header, which is
// only suitable for development.
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode" validate:"oneof=jwt none"`
	JWTSecret         string        `koanf:"jwt_secret"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"gt=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// SweepConfig controls the background job that purges expired recommendations.
type SweepConfig struct {
	Interval time.Duration `koanf:"interval" validate:"gt=0"`
}

// CacheConfig controls the in-process cache for similar-anime responses.
type CacheConfig struct {
	Size int           `koanf:"size" validate:"gt=0"`
	TTL  time.Duration `koanf:"ttl" validate:"gt=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the configuration is internally consistent.
// Recommendation engine parameters are validated separately by the engine.
func (c *Config) Validate() error {
	if err := validate.Struct(c.Server); err != nil {
		return fmt.Errorf("server config invalid: %w", err)
	}
	if err := validate.Struct(c.Database); err != nil {
		return fmt.Errorf("database config invalid: %w", err)
	}
	if err := validate.Struct(c.Security); err != nil {
		return fmt.Errorf("security config invalid: %w", err)
	}
	if err := validate.Struct(c.Logging); err != nil {
		return fmt.Errorf("logging config invalid: %w", err)
	}
	if err := validate.Struct(c.Sweep); err != nil {
		return fmt.Errorf("sweep config invalid: %w", err)
	}
	if err := validate.Struct(c.Cache); err != nil {
		return fmt.Errorf("cache config invalid: %w", err)
	}

	if c.Security.AuthMode == "jwt" {
		if c.Security.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_MODE=jwt")
		}
		if len(c.Security.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters, got %d", len(c.Security.JWTSecret))
		}
	}

	return c.Recommend.Validate()
}
