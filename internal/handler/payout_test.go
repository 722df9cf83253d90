package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tradylo/billing/internal/database"
	"github.com/tradylo/billing/internal/model"
	"github.com/tradylo/billing/internal/payout"
	"github.com/tradylo/billing/internal/store"
)

func setupPayoutHandler(t *testing.T, secret string) (*PayoutHandler, *store.CommissionStore, *store.PayoutAccountStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	commissions := store.NewCommissionStore(db)
	accounts := store.NewPayoutAccountStore(db)
	processor := payout.New(commissions, accounts, transferStub{}, nil, slog.Default())
	return NewPayoutHandler(processor, secret, slog.Default()), commissions, accounts
}

type transferStub struct{}

func (transferStub) CreateTransfer(_ context.Context, _ string, _ int64, _, _ string) (string, error) {
	return "tr_stub", nil
}

func TestPayoutRunRejectsBadSecret(t *testing.T) {
	h, _, _ := setupPayoutHandler(t, "hunter2")

	req := httptest.NewRequest(http.MethodPost, "/api/payouts/run", nil)
	req.Header.Set("X-Payout-Secret", "wrong")
	rec := httptest.NewRecorder()
	h.Run(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestPayoutRunRejectsMissingSecret(t *testing.T) {
	h, _, _ := setupPayoutHandler(t, "hunter2")

	req := httptest.NewRequest(http.MethodPost, "/api/payouts/run", nil)
	rec := httptest.NewRecorder()
	h.Run(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestPayoutRunSummary(t *testing.T) {
	h, commissions, accounts := setupPayoutHandler(t, "hunter2")

	accounts.Upsert("aff-1", "acct_1", model.PayoutAccountActive)
	c := &model.Commission{
		AffiliateUserID: "aff-1",
		ReferredUserID:  "user-1",
		StripeInvoiceID: "in_1",
		AmountCents:     10000,
		CommissionCents: 2000,
		Currency:        "usd",
		Status:          model.CommissionPending,
		AvailableAt:     time.Now().UTC().Add(-time.Hour),
	}
	if err := commissions.Upsert(c); err != nil {
		t.Fatalf("seed commission: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/payouts/run", nil)
	req.Header.Set("X-Payout-Secret", "hunter2")
	rec := httptest.NewRecorder()
	h.Run(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var resp struct {
		OK        bool             `json:"ok"`
		Processed int              `json:"processed"`
		Paid      int              `json:"paid"`
		Skipped   []payout.Skipped `json:"skipped"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.OK || resp.Processed != 1 || resp.Paid != 1 {
		t.Errorf("response = %+v, want ok processed=1 paid=1", resp)
	}
	if len(resp.Skipped) != 0 {
		t.Errorf("skipped = %+v, want empty", resp.Skipped)
	}
}

func TestPayoutRunNoSecretConfigured(t *testing.T) {
	h, _, _ := setupPayoutHandler(t, "")

	req := httptest.NewRequest(http.MethodPost, "/api/payouts/run", nil)
	rec := httptest.NewRecorder()
	h.Run(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with no secret configured", rec.Code)
	}
}
