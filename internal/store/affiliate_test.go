package store

import (
	"errors"
	"testing"
)

func TestAffiliateCodeActiveLookup(t *testing.T) {
	as := NewAffiliateStore(setupTestDB(t))

	if err := as.UpsertCode("TRADE20", "aff-1", 20, true); err != nil {
		t.Fatalf("upsert code: %v", err)
	}

	code, err := as.GetActiveCode("trade20")
	if err != nil {
		t.Fatalf("get active code: %v", err)
	}
	if code == nil {
		t.Fatal("expected code, got nil")
	}
	if code.AffiliateUserID != "aff-1" {
		t.Errorf("affiliate = %q, want aff-1", code.AffiliateUserID)
	}
	if code.CommissionPercent != 20 {
		t.Errorf("percent = %v, want 20", code.CommissionPercent)
	}
}

func TestAffiliateCodeInactiveIgnored(t *testing.T) {
	as := NewAffiliateStore(setupTestDB(t))

	as.UpsertCode("TRADE20", "aff-1", 20, true)
	as.UpsertCode("TRADE20", "aff-1", 20, false)

	code, err := as.GetActiveCode("TRADE20")
	if err != nil {
		t.Fatalf("get active code: %v", err)
	}
	if code != nil {
		t.Error("inactive code returned")
	}
}

func TestReferralCreateAndGet(t *testing.T) {
	as := NewAffiliateStore(setupTestDB(t))

	r, err := as.CreateReferral("user-1", "aff-1", "TRADE20")
	if err != nil {
		t.Fatalf("create referral: %v", err)
	}
	if r == nil || r.AffiliateUserID != "aff-1" {
		t.Fatalf("referral = %+v, want aff-1", r)
	}
}

func TestReferralImmutable(t *testing.T) {
	as := NewAffiliateStore(setupTestDB(t))

	as.CreateReferral("user-1", "aff-1", "TRADE20")

	// A second attribution attempt keeps the original affiliate.
	r, err := as.CreateReferral("user-1", "aff-2", "OTHER")
	if err != nil {
		t.Fatalf("re-create referral: %v", err)
	}
	if r.AffiliateUserID != "aff-1" {
		t.Errorf("affiliate = %q, want original aff-1", r.AffiliateUserID)
	}
	if r.Code != "TRADE20" {
		t.Errorf("code = %q, want original TRADE20", r.Code)
	}
}

func TestReferralSelfRejected(t *testing.T) {
	as := NewAffiliateStore(setupTestDB(t))

	_, err := as.CreateReferral("aff-1", "aff-1", "TRADE20")
	if !errors.Is(err, ErrSelfReferral) {
		t.Errorf("err = %v, want ErrSelfReferral", err)
	}
}
