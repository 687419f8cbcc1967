// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

package recommend

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig should validate, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative default limit", func(c *Config) { c.DefaultLimit = -1 }},
		{"max below default", func(c *Config) { c.MaxLimit = 5; c.DefaultLimit = 20 }},
		{"zero min common ratings", func(c *Config) { c.MinCommonRatings = 0 }},
		{"correlation out of range", func(c *Config) { c.MinCorrelation = 1.5 }},
		{"liked rating out of range", func(c *Config) { c.LikedRating = 11 }},
		{"fallback rating out of range", func(c *Config) { c.FallbackMinRating = 12 }},
		{"negative weight", func(c *Config) { c.GenreWeight = -0.1 }},
		{"all weights zero", func(c *Config) { c.GenreWeight = 0; c.MoodWeight = 0; c.RatingWeight = 0 }},
		{"non-positive ttl", func(c *Config) { c.TTL = -time.Hour }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error should wrap ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero config with defaults should validate, got %v", err)
	}
	if cfg.DefaultLimit != 20 || cfg.MaxLimit != 50 {
		t.Errorf("unexpected limits: default=%d max=%d", cfg.DefaultLimit, cfg.MaxLimit)
	}
	if cfg.TTL != 7*24*time.Hour {
		t.Errorf("unexpected TTL: %s", cfg.TTL)
	}

	// Explicit values survive.
	cfg = Config{DefaultLimit: 10, MaxLimit: 30}.withDefaults()
	if cfg.DefaultLimit != 10 || cfg.MaxLimit != 30 {
		t.Errorf("explicit limits overridden: default=%d max=%d", cfg.DefaultLimit, cfg.MaxLimit)
	}
}

func TestConfigZeroThresholdsMeanUnset(t *testing.T) {
	// Zero thresholds are documented as "unset" and coerced to defaults.
	cfg := Config{MinCorrelation: 0, FallbackMinRating: 0}.withDefaults()
	if cfg.MinCorrelation != 0.3 {
		t.Errorf("MinCorrelation = %g, want default 0.3", cfg.MinCorrelation)
	}
	if cfg.FallbackMinRating != 8.0 {
		t.Errorf("FallbackMinRating = %g, want default 8.0", cfg.FallbackMinRating)
	}

	// The documented escape hatches survive defaulting and validation.
	cfg = Config{MinCorrelation: -0.01, FallbackMinRating: 0.1}.withDefaults()
	if cfg.MinCorrelation != -0.01 {
		t.Errorf("negative MinCorrelation overridden: %g", cfg.MinCorrelation)
	}
	if cfg.FallbackMinRating != 0.1 {
		t.Errorf("low FallbackMinRating overridden: %g", cfg.FallbackMinRating)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("escape-hatch thresholds should validate, got %v", err)
	}
}

func TestClampLimit(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		in   int
		want int
	}{
		{0, 20},
		{-5, 20},
		{10, 10},
		{50, 50},
		{51, 50},
		{1000, 50},
	}

	for _, tt := range tests {
		if got := cfg.clampLimit(tt.in); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
