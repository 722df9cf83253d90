package model

import "time"

type CommissionStatus string

const (
	CommissionPending  CommissionStatus = "pending"
	CommissionPayable  CommissionStatus = "payable"
	CommissionPaid     CommissionStatus = "paid"
	CommissionFailed   CommissionStatus = "failed"
	CommissionReversed CommissionStatus = "reversed"
)

// commissionTransitions is the closed transition table for commission rows.
// paid -> reversed is reserved for future refund handling; nothing writes it
// yet. Anything absent here is an illegal transition.
var commissionTransitions = map[CommissionStatus][]CommissionStatus{
	CommissionPending: {CommissionPayable},
	CommissionPayable: {CommissionPaid, CommissionFailed},
	CommissionPaid:    {CommissionReversed},
}

// CanTransitionTo reports whether the status machine allows moving to next.
func (s CommissionStatus) CanTransitionTo(next CommissionStatus) bool {
	for _, allowed := range commissionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further automated transition leaves this status.
func (s CommissionStatus) Terminal() bool {
	return s == CommissionFailed || s == CommissionReversed
}

type Commission struct {
	ID               int64            `json:"id"`
	AffiliateUserID  string           `json:"affiliate_user_id"`
	ReferredUserID   string           `json:"referred_user_id"`
	StripeInvoiceID  string           `json:"stripe_invoice_id"`
	StripeCustomerID *string          `json:"stripe_customer_id"`
	AmountCents      int64            `json:"amount_cents"`
	CommissionCents  int64            `json:"commission_cents"`
	Currency         string           `json:"currency"`
	Status           CommissionStatus `json:"status"`
	AvailableAt      time.Time        `json:"available_at"`
	StripeTransferID *string          `json:"stripe_transfer_id"`
	PaidAt           *time.Time       `json:"paid_at"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
