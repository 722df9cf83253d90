package store

import (
	"testing"
	"time"

	"github.com/tradylo/billing/internal/model"
)

func pendingCommission(invoiceID string, availableAt time.Time) *model.Commission {
	return &model.Commission{
		AffiliateUserID: "aff-1",
		ReferredUserID:  "user-1",
		StripeInvoiceID: invoiceID,
		AmountCents:     10000,
		CommissionCents: 2000,
		Currency:        "usd",
		Status:          model.CommissionPending,
		AvailableAt:     availableAt,
	}
}

func TestCommissionUpsertDeduplicates(t *testing.T) {
	cs := NewCommissionStore(setupTestDB(t))

	availableAt := time.Now().UTC().Add(24 * time.Hour)
	if err := cs.Upsert(pendingCommission("in_1", availableAt)); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// Redelivery with refreshed amounts updates in place.
	second := pendingCommission("in_1", availableAt.Add(time.Hour))
	second.CommissionCents = 3000
	if err := cs.Upsert(second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	c, err := cs.GetByInvoice("aff-1", "in_1")
	if err != nil {
		t.Fatalf("get by invoice: %v", err)
	}
	if c == nil {
		t.Fatal("expected commission, got nil")
	}
	if c.CommissionCents != 3000 {
		t.Errorf("commission_cents = %d, want 3000", c.CommissionCents)
	}
	if !c.AvailableAt.Equal(availableAt) {
		t.Errorf("available_at changed by redelivery: %v, want %v", c.AvailableAt, availableAt)
	}

	rows, err := cs.ListDue(time.Now().UTC().Add(48*time.Hour), 10)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one row for redelivered invoice, got %d", len(rows))
	}
}

func TestCommissionUpsertDoesNotTouchNonPending(t *testing.T) {
	cs := NewCommissionStore(setupTestDB(t))

	past := time.Now().UTC().Add(-time.Hour)
	cs.Upsert(pendingCommission("in_1", past))
	c, _ := cs.GetByInvoice("aff-1", "in_1")
	if ok, err := cs.TransitionStatus(c.ID, model.CommissionPending, model.CommissionPayable); err != nil || !ok {
		t.Fatalf("promote: ok=%v err=%v", ok, err)
	}
	if ok, err := cs.MarkPaid(c.ID, "tr_1", time.Now().UTC()); err != nil || !ok {
		t.Fatalf("mark paid: ok=%v err=%v", ok, err)
	}

	// A very late redelivery must not rewrite a paid row.
	stale := pendingCommission("in_1", past)
	stale.CommissionCents = 9999
	if err := cs.Upsert(stale); err != nil {
		t.Fatalf("stale upsert: %v", err)
	}
	c, _ = cs.GetByInvoice("aff-1", "in_1")
	if c.CommissionCents != 2000 {
		t.Errorf("paid row rewritten: commission_cents = %d, want 2000", c.CommissionCents)
	}
	if c.Status != model.CommissionPaid {
		t.Errorf("status = %q, want paid", c.Status)
	}
}

func TestCommissionListDueRespectsAvailability(t *testing.T) {
	cs := NewCommissionStore(setupTestDB(t))

	now := time.Now().UTC()
	cs.Upsert(pendingCommission("in_mature", now.Add(-time.Hour)))
	cs.Upsert(pendingCommission("in_held", now.Add(23*time.Hour)))

	due, err := cs.ListDue(now, 10)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected 1 due row, got %d", len(due))
	}
	if due[0].StripeInvoiceID != "in_mature" {
		t.Errorf("due invoice = %q, want in_mature", due[0].StripeInvoiceID)
	}
}

func TestCommissionListDueExcludesPayableBeforeAvailability(t *testing.T) {
	cs := NewCommissionStore(setupTestDB(t))

	now := time.Now().UTC()
	cs.Upsert(pendingCommission("in_1", now.Add(time.Hour)))
	c, _ := cs.GetByInvoice("aff-1", "in_1")
	// Already payable, but still inside the hold window.
	if _, err := cs.TransitionStatus(c.ID, model.CommissionPending, model.CommissionPayable); err != nil {
		t.Fatalf("promote: %v", err)
	}

	due, err := cs.ListDue(now, 10)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("payable row inside hold window selected: %d rows", len(due))
	}
}

func TestCommissionListDueOrdersOldestFirstAndLimits(t *testing.T) {
	cs := NewCommissionStore(setupTestDB(t))

	now := time.Now().UTC()
	cs.Upsert(pendingCommission("in_new", now.Add(-1*time.Hour)))
	cs.Upsert(pendingCommission("in_old", now.Add(-48*time.Hour)))
	cs.Upsert(pendingCommission("in_mid", now.Add(-24*time.Hour)))

	due, err := cs.ListDue(now, 2)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 rows with limit, got %d", len(due))
	}
	if due[0].StripeInvoiceID != "in_old" || due[1].StripeInvoiceID != "in_mid" {
		t.Errorf("order = %q, %q; want in_old, in_mid", due[0].StripeInvoiceID, due[1].StripeInvoiceID)
	}
}

func TestCommissionListDueExcludesTransferred(t *testing.T) {
	cs := NewCommissionStore(setupTestDB(t))

	now := time.Now().UTC()
	cs.Upsert(pendingCommission("in_1", now.Add(-time.Hour)))
	c, _ := cs.GetByInvoice("aff-1", "in_1")
	cs.TransitionStatus(c.ID, model.CommissionPending, model.CommissionPayable)
	cs.MarkPaid(c.ID, "tr_1", now)

	due, err := cs.ListDue(now, 10)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("paid row reselected: %d rows", len(due))
	}
}

func TestCommissionTransitionGuards(t *testing.T) {
	cs := NewCommissionStore(setupTestDB(t))

	now := time.Now().UTC()
	cs.Upsert(pendingCommission("in_1", now.Add(-time.Hour)))
	c, _ := cs.GetByInvoice("aff-1", "in_1")

	ok, err := cs.TransitionStatus(c.ID, model.CommissionPending, model.CommissionPayable)
	if err != nil || !ok {
		t.Fatalf("promote: ok=%v err=%v", ok, err)
	}

	// Second promote loses the guard.
	ok, err = cs.TransitionStatus(c.ID, model.CommissionPending, model.CommissionPayable)
	if err != nil {
		t.Fatalf("second promote: %v", err)
	}
	if ok {
		t.Error("second promote applied, guard failed")
	}

	// Illegal transitions are rejected outright.
	if _, err := cs.TransitionStatus(c.ID, model.CommissionPaid, model.CommissionPending); err == nil {
		t.Error("expected error for illegal transition paid -> pending")
	}
}

func TestCommissionMarkPaidOnce(t *testing.T) {
	cs := NewCommissionStore(setupTestDB(t))

	now := time.Now().UTC()
	cs.Upsert(pendingCommission("in_1", now.Add(-time.Hour)))
	c, _ := cs.GetByInvoice("aff-1", "in_1")
	cs.TransitionStatus(c.ID, model.CommissionPending, model.CommissionPayable)

	ok, err := cs.MarkPaid(c.ID, "tr_1", now)
	if err != nil || !ok {
		t.Fatalf("mark paid: ok=%v err=%v", ok, err)
	}

	ok, err = cs.MarkPaid(c.ID, "tr_2", now)
	if err != nil {
		t.Fatalf("second mark paid: %v", err)
	}
	if ok {
		t.Error("second mark paid applied, null-transfer guard failed")
	}

	got, _ := cs.GetByID(c.ID)
	if got.StripeTransferID == nil || *got.StripeTransferID != "tr_1" {
		t.Errorf("transfer id = %v, want tr_1", got.StripeTransferID)
	}
	if got.PaidAt == nil {
		t.Error("paid_at not set")
	}
}

func TestCommissionMarkFailedTerminal(t *testing.T) {
	cs := NewCommissionStore(setupTestDB(t))

	now := time.Now().UTC()
	cs.Upsert(pendingCommission("in_1", now.Add(-time.Hour)))
	c, _ := cs.GetByInvoice("aff-1", "in_1")
	cs.TransitionStatus(c.ID, model.CommissionPending, model.CommissionPayable)

	ok, err := cs.MarkFailed(c.ID)
	if err != nil || !ok {
		t.Fatalf("mark failed: ok=%v err=%v", ok, err)
	}

	due, _ := cs.ListDue(now, 10)
	if len(due) != 0 {
		t.Error("failed row still selected for payout")
	}

	// Terminal means terminal.
	if ok, _ := cs.MarkPaid(c.ID, "tr_1", now); ok {
		t.Error("failed row marked paid")
	}
}
