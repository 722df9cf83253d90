package model

import "time"

type AffiliateCode struct {
	Code              string    `json:"code"`
	AffiliateUserID   string    `json:"affiliate_user_id"`
	CommissionPercent float64   `json:"commission_percent"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
}

// Referral links a referred user to the affiliate whose code they used.
// One row per referred user, immutable once written.
type Referral struct {
	ReferredUserID  string    `json:"referred_user_id"`
	AffiliateUserID string    `json:"affiliate_user_id"`
	Code            string    `json:"code"`
	CreatedAt       time.Time `json:"created_at"`
}

type PayoutAccountStatus string

const (
	PayoutAccountPending PayoutAccountStatus = "pending"
	PayoutAccountActive  PayoutAccountStatus = "active"
	PayoutAccountPaused  PayoutAccountStatus = "paused"
)

type PayoutAccount struct {
	AffiliateUserID string              `json:"affiliate_user_id"`
	StripeAccountID string              `json:"stripe_account_id"`
	Status          PayoutAccountStatus `json:"status"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}
