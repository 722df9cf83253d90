package store

import (
	"testing"
	"time"
)

func TestBillingConfigMissing(t *testing.T) {
	bcs := NewBillingConfigStore(setupTestDB(t))

	cfg, err := bcs.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cfg != nil {
		t.Error("expected nil config when no row exists")
	}
}

func TestBillingConfigUpsertAndGet(t *testing.T) {
	bcs := NewBillingConfigStore(setupTestDB(t))

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	if err := bcs.Upsert(&start, &end, 30, 20); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	cfg, err := bcs.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected config, got nil")
	}
	if cfg.PromoCommissionPercent != 30 || cfg.DefaultCommissionPercent != 20 {
		t.Errorf("percents = %v/%v, want 30/20", cfg.PromoCommissionPercent, cfg.DefaultCommissionPercent)
	}
	if cfg.PromoStartAt == nil || !cfg.PromoStartAt.Equal(start) {
		t.Errorf("promo start = %v, want %v", cfg.PromoStartAt, start)
	}

	// Singleton: a second upsert replaces, never duplicates.
	if err := bcs.Upsert(nil, nil, 25, 15); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	cfg, _ = bcs.Get()
	if cfg.PromoStartAt != nil {
		t.Error("promo window not cleared")
	}
	if cfg.DefaultCommissionPercent != 15 {
		t.Errorf("default percent = %v, want 15", cfg.DefaultCommissionPercent)
	}
}
