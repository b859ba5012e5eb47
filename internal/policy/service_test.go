package policy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// ── Stub store ───────────────────────────────────────────────────────────

type stubStore struct {
	mu      sync.Mutex
	value   *Policy
	getErr  error
	gets    int
	upserts int
}

func (s *stubStore) Get(_ context.Context) (*Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.value == nil {
		return nil, ErrNotFound
	}
	cp := *s.value
	return &cp, nil
}

func (s *stubStore) Upsert(_ context.Context, p *Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	cp := *p
	s.value = &cp
	return nil
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestResolveCreatesDefaultsOnFirstAccess(t *testing.T) {
	store := &stubStore{}
	svc := NewService(store, 0, zap.NewNop())

	p, err := svc.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.HighVolumeThreshold != DefaultHighVolumeThreshold {
		t.Errorf("high_volume_threshold = %d, want %d", p.HighVolumeThreshold, DefaultHighVolumeThreshold)
	}
	if p.AlertRiskThreshold != DefaultAlertRiskThreshold {
		t.Errorf("alert_risk_threshold = %v, want %v", p.AlertRiskThreshold, DefaultAlertRiskThreshold)
	}
	if store.upserts != 1 {
		t.Errorf("upserts = %d, want 1 (defaults must be persisted)", store.upserts)
	}
}

func TestResolveReturnsStoredVerbatim(t *testing.T) {
	stored := Default()
	stored.AlertRiskThreshold = -3.5 // out of range, but accepted as configured
	stored.AllowDomains = []string{"Corp.Example.COM"}
	store := &stubStore{value: stored}
	svc := NewService(store, 0, zap.NewNop())

	p, err := svc.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.AlertRiskThreshold != -3.5 {
		t.Errorf("alert_risk_threshold = %v, want -3.5 (no validation)", p.AlertRiskThreshold)
	}
	if store.upserts != 0 {
		t.Errorf("upserts = %d, want 0", store.upserts)
	}
}

func TestResolveSurfacesStoreErrors(t *testing.T) {
	store := &stubStore{getErr: errors.New("connection refused")}
	svc := NewService(store, 0, zap.NewNop())

	if _, err := svc.Resolve(context.Background()); err == nil {
		t.Fatal("expected error when the store is unreachable")
	}
	if store.upserts != 0 {
		t.Error("defaults must not be written when the store is unreachable")
	}
}

func TestCacheServesRepeatReads(t *testing.T) {
	store := &stubStore{value: Default()}
	svc := NewService(store, time.Minute, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := svc.Resolve(ctx); err != nil {
			t.Fatalf("Resolve: %v", err)
		}
	}
	if store.gets != 1 {
		t.Errorf("store gets = %d, want 1 (cache should absorb repeats)", store.gets)
	}
}

func TestUpdateInvalidatesCache(t *testing.T) {
	store := &stubStore{value: Default()}
	svc := NewService(store, time.Minute, zap.NewNop())
	ctx := context.Background()

	if _, err := svc.Resolve(ctx); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	updated := Default()
	updated.ProcessConnThreshold = 99
	if err := svc.Update(ctx, updated); err != nil {
		t.Fatalf("Update: %v", err)
	}

	p, err := svc.Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve after update: %v", err)
	}
	if p.ProcessConnThreshold != 99 {
		t.Errorf("process_conn_threshold = %d, want 99 (stale cache served)", p.ProcessConnThreshold)
	}
}
