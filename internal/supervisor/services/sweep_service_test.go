// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type mockSweepStore struct {
	calls   atomic.Int64
	deleted int64
	err     error
}

func (m *mockSweepStore) PurgeExpired(context.Context) (int64, error) {
	m.calls.Add(1)
	return m.deleted, m.err
}

func TestSweepServiceRunsOnStartupAndTicks(t *testing.T) {
	store := &mockSweepStore{deleted: 3}
	svc := NewSweepService(store, 20*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Millisecond)
	defer cancel()

	err := svc.Serve(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Serve returned %v, want context deadline", err)
	}

	// One startup sweep plus at least two ticks.
	if calls := store.calls.Load(); calls < 3 {
		t.Errorf("expected at least 3 sweeps, got %d", calls)
	}
}

func TestSweepServiceSurvivesStoreErrors(t *testing.T) {
	store := &mockSweepStore{err: errors.New("storage down")}
	svc := NewSweepService(store, 20*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 70*time.Millisecond)
	defer cancel()

	// Errors are logged and retried, never returned before cancellation.
	err := svc.Serve(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Serve returned %v, want context deadline", err)
	}
	if calls := store.calls.Load(); calls < 2 {
		t.Errorf("expected retries after errors, got %d calls", calls)
	}
}

func TestSweepServiceDefaultsInterval(t *testing.T) {
	svc := NewSweepService(&mockSweepStore{}, 0, zerolog.Nop())
	if svc.interval != time.Hour {
		t.Errorf("interval = %s, want 1h", svc.interval)
	}
}

func TestSweepServiceString(t *testing.T) {
	svc := NewSweepService(&mockSweepStore{}, time.Minute, zerolog.Nop())
	if svc.String() != "sweep-service" {
		t.Errorf("String() = %q", svc.String())
	}
}
