// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

package models

import (
	"testing"
	"time"
)

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "lowercases and trims",
			input: []string{" Action ", "DRAMA"},
			want:  []string{"action", "drama"},
		},
		{
			name:  "deduplicates preserving first-seen order",
			input: []string{"action", "Drama", "ACTION", "drama"},
			want:  []string{"action", "drama"},
		},
		{
			name:  "drops empty tags",
			input: []string{"", "  ", "comedy"},
			want:  []string{"comedy"},
		},
		{
			name:  "nil input",
			input: nil,
			want:  nil,
		},
		{
			name:  "all empty returns nil",
			input: []string{"", "   "},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTags(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("NormalizeTags(%v) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("NormalizeTags(%v)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestWatchStatusRoundTrip(t *testing.T) {
	statuses := []WatchStatus{StatusPlanToWatch, StatusWatching, StatusCompleted, StatusDropped}
	for _, status := range statuses {
		parsed, err := ParseWatchStatus(status.String())
		if err != nil {
			t.Fatalf("ParseWatchStatus(%q) returned error: %v", status.String(), err)
		}
		if parsed != status {
			t.Errorf("ParseWatchStatus(%q) = %v, want %v", status.String(), parsed, status)
		}
	}

	if _, err := ParseWatchStatus("binging"); err == nil {
		t.Error("ParseWatchStatus should reject unknown status")
	}
}

func TestAlgorithmRoundTrip(t *testing.T) {
	algorithms := []Algorithm{AlgorithmCollaborative, AlgorithmContentBased, AlgorithmHybrid}
	for _, alg := range algorithms {
		parsed, err := ParseAlgorithm(alg.String())
		if err != nil {
			t.Fatalf("ParseAlgorithm(%q) returned error: %v", alg.String(), err)
		}
		if parsed != alg {
			t.Errorf("ParseAlgorithm(%q) = %v, want %v", alg.String(), parsed, alg)
		}
	}

	if _, err := ParseAlgorithm("oracle"); err == nil {
		t.Error("ParseAlgorithm should reject unknown algorithm")
	}
}

func TestReasonRoundTrip(t *testing.T) {
	reasons := []Reason{ReasonSimilarUsers, ReasonSimilarGenres, ReasonSimilarMoods, ReasonHighRated, ReasonPopular}
	for _, reason := range reasons {
		parsed, err := ParseReason(reason.String())
		if err != nil {
			t.Fatalf("ParseReason(%q) returned error: %v", reason.String(), err)
		}
		if parsed != reason {
			t.Errorf("ParseReason(%q) = %v, want %v", reason.String(), parsed, reason)
		}
	}
}

func TestRecommendationActive(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		rec  Recommendation
		want bool
	}{
		{
			name: "unviewed and unexpired",
			rec:  Recommendation{IsViewed: false, ExpiresAt: now.Add(time.Hour)},
			want: true,
		},
		{
			name: "viewed",
			rec:  Recommendation{IsViewed: true, ExpiresAt: now.Add(time.Hour)},
			want: false,
		},
		{
			name: "expired",
			rec:  Recommendation{IsViewed: false, ExpiresAt: now.Add(-time.Hour)},
			want: false,
		},
		{
			name: "viewed and expired",
			rec:  Recommendation{IsViewed: true, ExpiresAt: now.Add(-time.Hour)},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Active(now); got != tt.want {
				t.Errorf("Active() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWatchlistEntryRated(t *testing.T) {
	if (WatchlistEntry{Rating: 0}).Rated() {
		t.Error("entry with zero rating should not be rated")
	}
	if !(WatchlistEntry{Rating: 7}).Rated() {
		t.Error("entry with rating 7 should be rated")
	}
}
