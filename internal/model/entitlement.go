package model

import "time"

type Plan string

const (
	PlanFree          Plan = "free"
	PlanPro           Plan = "pro"
	PlanGrandfathered Plan = "grandfathered"
	PlanLifetime      Plan = "lifetime"
)

// FreeTradeLimit is the trade cap applied to free-tier entitlements.
const FreeTradeLimit = 15

// Protected reports whether automated downgrade logic must leave the plan
// alone. Only explicit administrative action changes these tiers.
func (p Plan) Protected() bool {
	return p == PlanGrandfathered || p == PlanLifetime
}

type Entitlement struct {
	UserID               string     `json:"user_id"`
	Plan                 Plan       `json:"plan"`
	TradeLimit           *int64     `json:"trade_limit"`
	StripeCustomerID     *string    `json:"stripe_customer_id"`
	StripeSubscriptionID *string    `json:"stripe_subscription_id"`
	SubscriptionStatus   *string    `json:"subscription_status"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// BillingConfig is the singleton promo-window row. A nil *BillingConfig means
// no configuration exists: no promo, no default floor.
type BillingConfig struct {
	PromoStartAt             *time.Time `json:"promo_start_at"`
	PromoEndAt               *time.Time `json:"promo_end_at"`
	PromoCommissionPercent   float64    `json:"promo_commission_percent"`
	DefaultCommissionPercent float64    `json:"default_commission_percent"`
	UpdatedAt                time.Time  `json:"updated_at"`
}
