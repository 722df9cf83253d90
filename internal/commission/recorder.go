// Package commission records referral commissions for paid invoices.
package commission

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/tradylo/billing/internal/model"
	"github.com/tradylo/billing/internal/rate"
	"github.com/tradylo/billing/internal/store"
)

// HoldWindow is how long a commission stays pending before it can be paid
// out, covering the product's refund window.
const HoldWindow = 24 * time.Hour

type Recorder struct {
	affiliates  *store.AffiliateStore
	commissions *store.CommissionStore
	logger      *slog.Logger
	now         func() time.Time
}

func NewRecorder(as *store.AffiliateStore, cs *store.CommissionStore, logger *slog.Logger) *Recorder {
	return &Recorder{
		affiliates:  as,
		commissions: cs,
		logger:      logger,
		now:         time.Now,
	}
}

// Params describes one paid invoice.
type Params struct {
	ReferredUserID string
	InvoiceID      string
	AmountCents    int64
	Currency       string
	CustomerID     string
	EventTime      time.Time
}

// Record resolves the referring affiliate and upserts a pending commission
// for the invoice. Users without a referral, inactive codes, and zero rates
// are all legitimate no-ops. The (affiliate, invoice) unique key makes
// redelivery of the same invoice an update of the existing row.
func (r *Recorder) Record(p Params, cfg *model.BillingConfig) error {
	if p.ReferredUserID == "" || p.InvoiceID == "" || p.AmountCents <= 0 {
		return nil
	}

	referral, err := r.affiliates.GetReferral(p.ReferredUserID)
	if err != nil {
		return fmt.Errorf("record commission: %w", err)
	}
	if referral == nil {
		return nil
	}

	code, err := r.affiliates.GetActiveCode(referral.Code)
	if err != nil {
		return fmt.Errorf("record commission: %w", err)
	}
	if code == nil {
		return nil
	}

	pct := rate.Resolve(code.CommissionPercent, p.EventTime, cfg)
	if pct <= 0 {
		return nil
	}
	commissionCents := int64(math.Round(float64(p.AmountCents) * pct / 100))
	if commissionCents <= 0 {
		return nil
	}

	currency := p.Currency
	if currency == "" {
		currency = "usd"
	}
	c := &model.Commission{
		AffiliateUserID: referral.AffiliateUserID,
		ReferredUserID:  p.ReferredUserID,
		StripeInvoiceID: p.InvoiceID,
		AmountCents:     p.AmountCents,
		CommissionCents: commissionCents,
		Currency:        currency,
		Status:          model.CommissionPending,
		AvailableAt:     r.now().UTC().Add(HoldWindow),
	}
	if p.CustomerID != "" {
		c.StripeCustomerID = &p.CustomerID
	}
	if err := r.commissions.Upsert(c); err != nil {
		return fmt.Errorf("record commission: %w", err)
	}

	r.logger.Info("recorded commission",
		"affiliate_user_id", referral.AffiliateUserID,
		"invoice_id", p.InvoiceID,
		"amount_cents", p.AmountCents,
		"commission_cents", commissionCents,
		"percent", pct,
	)
	return nil
}
